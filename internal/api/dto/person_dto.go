package dto

import (
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// PersonResponse is the directory view of a person.
type PersonResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Role      domain.PersonRole `json:"role"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
