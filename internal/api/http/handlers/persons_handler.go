package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/deskflow/helpdesk-service/internal/api/dto"
	"github.com/deskflow/helpdesk-service/internal/auth"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/repository"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util"
)

// PersonsHandler serves the read-only person directory.
type PersonsHandler struct {
	persons repository.PersonRepository
}

// NewPersonsHandler constructs handler.
func NewPersonsHandler(persons repository.PersonRepository) *PersonsHandler {
	return &PersonsHandler{persons: persons}
}

// ListPersons GET /api/users.
func (h *PersonsHandler) ListPersons(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	persons, err := h.persons.List(c.Context())
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.PersonResponse, 0, len(persons))
	for i := range persons {
		items = append(items, personResponse(&persons[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetPerson GET /api/users/:id.
func (h *PersonsHandler) GetPerson(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	person, err := h.persons.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("person", map[string]any{"person_id": c.Params("id")})
		}
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": personResponse(person)})
}

func personResponse(person *domain.Person) dto.PersonResponse {
	return dto.PersonResponse{
		ID:        person.ID,
		Name:      person.Name,
		Email:     person.Email,
		Role:      person.Role,
		CreatedAt: person.CreatedAt,
		UpdatedAt: person.UpdatedAt,
	}
}
