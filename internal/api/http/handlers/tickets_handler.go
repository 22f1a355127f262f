package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk-service/internal/api/dto"
	"github.com/deskflow/helpdesk-service/internal/auth"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/service"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		Title:           req.Title,
		Description:     req.Description,
		Priority:        domain.TicketPriority(req.Priority),
		Status:          domain.TicketStatus(req.Status),
		UserID:          req.User,
		AssignedAgentID: req.AssignedAgent,
		DueDate:         req.DueDate,
	}
	ticket, err := h.service.CreateTicket(c.Context(), actor, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	tickets, err := h.service.ListTickets(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	ticket, err := h.service.GetTicket(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// UpdateTicket PUT /api/tickets/:id applies status and assignment changes.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketTransitionInput{
		Status:           req.Status,
		AssignedAgentID:  req.AssignedAgent.Value,
		AssignedAgentSet: req.AssignedAgent.Set,
	}
	ticket, err := h.service.TransitionTicket(c.Context(), actor, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

func personRef(person *domain.Person) *dto.PersonRef {
	if person == nil {
		return nil
	}
	return &dto.PersonRef{
		ID:    person.ID,
		Name:  person.Name,
		Email: person.Email,
	}
}

func ticketResponse(resolved *service.ResolvedTicket) dto.TicketResponse {
	ticket := resolved.Ticket
	return dto.TicketResponse{
		ID:              ticket.ID,
		Title:           ticket.Title,
		Description:     ticket.Description,
		Status:          ticket.Status,
		Priority:        ticket.Priority,
		User:            personRef(resolved.User),
		RaisedBy:        personRef(resolved.RaisedBy),
		AssignedAgent:   personRef(resolved.AssignedAgent),
		StatusChangedBy: personRef(resolved.StatusChangedBy),
		DueDate:         ticket.DueDate,
		Version:         ticket.Version,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
	}
}
