package dto

import (
	"encoding/json"
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// OptionalString distinguishes an absent JSON key from one present with a
// null or empty value. Needed for the assignedAgent contract: present and
// falsy means "unassign", absent means "leave alone".
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON is only invoked when the key is present in the payload.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Priority      string     `json:"priority"`
	Status        string     `json:"status"`
	User          string     `json:"user"`
	AssignedAgent *string    `json:"assignedAgent"`
	DueDate       *time.Time `json:"dueDate"`
}

// UpdateTicketRequest payload for status/assignment transitions.
type UpdateTicketRequest struct {
	Status        *string        `json:"status"`
	AssignedAgent OptionalString `json:"assignedAgent"`
}

// PersonRef is the display form of a person reference.
type PersonRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TicketResponse provides full ticket info with references resolved.
type TicketResponse struct {
	ID              string                `json:"id"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	User            *PersonRef            `json:"user"`
	RaisedBy        *PersonRef            `json:"raisedBy"`
	AssignedAgent   *PersonRef            `json:"assignedAgent"`
	StatusChangedBy *PersonRef            `json:"statusChangedBy"`
	DueDate         time.Time             `json:"dueDate"`
	Version         int64                 `json:"version"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}
