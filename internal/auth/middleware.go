package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/repository"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util"
)

const actorKey = "auth_actor"

// ActorMiddleware resolves bearer tokens into the acting Person. The token
// is issued upstream; this middleware only verifies it and loads the actor
// for attribution.
type ActorMiddleware struct {
	tokens  *TokenManager
	persons repository.PersonRepository
}

// NewActorMiddleware constructs middleware.
func NewActorMiddleware(tokens *TokenManager, persons repository.PersonRepository) *ActorMiddleware {
	return &ActorMiddleware{tokens: tokens, persons: persons}
}

// Handle enforces authentication for protected routes.
func (m *ActorMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	actor, err := m.persons.GetByID(c.Context(), claims.ActorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("actor not found")
		}
		return apperrors.MapError(err)
	}

	c.Locals(actorKey, actor)
	return c.Next()
}

// ActorFromContext retrieves the authenticated person.
func ActorFromContext(c *fiber.Ctx) (*domain.Person, bool) {
	val := c.Locals(actorKey)
	if val == nil {
		return nil, false
	}
	actor, ok := val.(*domain.Person)
	return actor, ok
}
