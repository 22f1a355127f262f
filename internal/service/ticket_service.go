package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/repository"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util"
)

// TicketService owns the ticket lifecycle: it is the only component that
// constructs tickets or mutates their status and assignment fields.
type TicketService struct {
	tickets    repository.TicketRepository
	persons    repository.PersonRepository
	resolver   *PersonResolver
	dispatcher events.Dispatcher
}

// TicketDependencies bundles collaborators for the lifecycle service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	PersonRepo repository.PersonRepository
	Dispatcher events.Dispatcher
}

// TicketCreateInput describes the ticket creation payload. Priority, Status
// and DueDate are normalized to defaults when absent or invalid.
type TicketCreateInput struct {
	Title           string
	Description     string
	Priority        domain.TicketPriority
	Status          domain.TicketStatus
	UserID          string
	AssignedAgentID *string
	DueDate         *time.Time
}

// TicketTransitionInput describes a lifecycle transition. Status and
// assignment apply independently in the same call. AssignedAgentSet
// distinguishes "key absent" from "key present but empty": the latter
// unassigns the ticket.
type TicketTransitionInput struct {
	Status           *string
	AssignedAgentID  *string
	AssignedAgentSet bool
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		persons:    deps.PersonRepo,
		resolver:   NewPersonResolver(deps.PersonRepo),
		dispatcher: deps.Dispatcher,
	}
}

// CreateTicket creates a ticket on behalf of actor. The actor becomes the
// raisedBy reference; statusChangedBy starts empty because the initial
// status is an assignment, not a transition.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.Person, input TicketCreateInput) (*ResolvedTicket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" || strings.TrimSpace(input.UserID) == "" {
		return nil, apperrors.NewValidationError("title and user are required", nil)
	}
	if _, err := uuid.Parse(input.UserID); err != nil {
		return nil, apperrors.NewValidationError("malformed user id", map[string]any{"user_id": input.UserID})
	}
	if _, err := s.persons.GetByID(ctx, input.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": input.UserID})
		}
		return nil, apperrors.MapError(err)
	}

	var assignedAgentID *string
	if input.AssignedAgentID != nil && strings.TrimSpace(*input.AssignedAgentID) != "" {
		agentID := strings.TrimSpace(*input.AssignedAgentID)
		if _, err := uuid.Parse(agentID); err != nil {
			return nil, apperrors.NewValidationError("malformed agent id", map[string]any{"agent_id": agentID})
		}
		if _, err := s.persons.GetByID(ctx, agentID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
			}
			return nil, apperrors.MapError(err)
		}
		assignedAgentID = &agentID
	}

	dueDate := time.Now()
	if input.DueDate != nil {
		dueDate = *input.DueDate
	}

	raisedBy := actor.ID
	ticket := &domain.Ticket{
		Title:           title,
		Description:     strings.TrimSpace(input.Description),
		Status:          domain.NormalizeStatus(input.Status),
		Priority:        domain.NormalizePriority(input.Priority),
		UserID:          input.UserID,
		RaisedByID:      &raisedBy,
		AssignedAgentID: assignedAgentID,
		DueDate:         dueDate,
	}

	if err := s.tickets.Insert(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, actor, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			Title:           ticket.Title,
			Priority:        ticket.Priority,
			UserID:          ticket.UserID,
			AssignedAgentID: ticket.AssignedAgentID,
		},
	})
	return s.resolver.Resolve(ctx, ticket)
}

// TransitionTicket applies a status change, an assignment change, or both
// in one call. Status and assignment are independent: re-submitting the
// current status re-stamps nothing, and assignment changes never touch
// statusChangedBy.
func (s *TicketService) TransitionTicket(ctx context.Context, actor *domain.Person, ticketID string, input TicketTransitionInput) (*ResolvedTicket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, apperrors.NewValidationError("malformed ticket id", map[string]any{"ticket_id": ticketID})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	var statusEvent *events.TicketStatusChangedPayload
	if input.Status != nil {
		next := domain.TicketStatus(strings.TrimSpace(*input.Status))
		if !next.Valid() {
			return nil, apperrors.NewValidationError("invalid status value", map[string]any{"status": *input.Status})
		}
		if next != ticket.Status {
			statusEvent = &events.TicketStatusChangedPayload{
				OldStatus: ticket.Status,
				NewStatus: next,
			}
			ticket.Status = next
			changedBy := actor.ID
			ticket.StatusChangedByID = &changedBy
		}
	}

	var assignEvent *events.TicketAssignedPayload
	if input.AssignedAgentSet {
		oldAgent := ticket.AssignedAgentID
		if input.AssignedAgentID == nil || strings.TrimSpace(*input.AssignedAgentID) == "" {
			ticket.AssignedAgentID = nil
		} else {
			agentID := strings.TrimSpace(*input.AssignedAgentID)
			if _, err := uuid.Parse(agentID); err != nil {
				return nil, apperrors.NewValidationError("malformed agent id", map[string]any{"agent_id": agentID})
			}
			agent, err := s.persons.GetByID(ctx, agentID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
				}
				return nil, apperrors.MapError(err)
			}
			if agent.Role != domain.PersonRoleAgent {
				return nil, apperrors.NewValidationError("assignee must have the agent role", map[string]any{"agent_id": agentID})
			}
			ticket.AssignedAgentID = &agent.ID
		}
		assignEvent = &events.TicketAssignedPayload{
			OldAgentID: oldAgent,
			NewAgentID: ticket.AssignedAgentID,
		}
	}

	if err := s.tickets.Save(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, apperrors.NewConflict("ticket was modified concurrently, re-fetch and retry", map[string]any{"ticket_id": ticketID})
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	if statusEvent != nil {
		s.publishEvent(ctx, actor, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Payload:  *statusEvent,
		})
	}
	if assignEvent != nil {
		s.publishEvent(ctx, actor, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			Payload:  *assignEvent,
		})
	}
	return s.resolver.Resolve(ctx, ticket)
}

// GetTicket fetches a single ticket with references resolved.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*ResolvedTicket, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, apperrors.NewValidationError("malformed ticket id", map[string]any{"ticket_id": ticketID})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return s.resolver.Resolve(ctx, ticket)
}

// ListTickets returns all tickets with references resolved. Visibility
// filtering, if any, belongs to the caller.
func (s *TicketService) ListTickets(ctx context.Context) ([]ResolvedTicket, error) {
	tickets, err := s.tickets.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.resolver.ResolveAll(ctx, tickets)
}

func (s *TicketService) publishEvent(ctx context.Context, actor *domain.Person, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Actor = events.Actor{PersonID: actor.ID, Role: actor.Role}
	_ = s.dispatcher.Publish(ctx, event)
}
