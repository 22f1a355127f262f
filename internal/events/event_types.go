package events

import (
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
)

// Actor identifies who caused the event.
type Actor struct {
	PersonID string            `json:"person_id"`
	Role     domain.PersonRole `json:"role"`
}

// Event represents a domain event emitted by the lifecycle service.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title           string                `json:"title"`
	Priority        domain.TicketPriority `json:"priority"`
	UserID          string                `json:"user_id"`
	AssignedAgentID *string               `json:"assigned_agent_id,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload. A nil NewAgentID means the ticket was
// unassigned.
type TicketAssignedPayload struct {
	OldAgentID *string `json:"old_agent_id,omitempty"`
	NewAgentID *string `json:"new_agent_id,omitempty"`
}
