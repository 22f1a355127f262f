package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets. The values are the
// exact wire strings stored in the database and exchanged with clients.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusClosed     TicketStatus = "Closed"
)

// Valid reports whether the status is one of the enumerated values.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusClosed:
		return true
	}
	return false
}

// NormalizeStatus coerces absent or unknown values to the Open default.
// Applied only at creation time; transitions reject invalid values instead.
func NormalizeStatus(s TicketStatus) TicketStatus {
	if s.Valid() {
		return s
	}
	return TicketStatusOpen
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
)

// Valid reports whether the priority is one of the enumerated values.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// NormalizePriority coerces absent or unknown values to the Low default.
func NormalizePriority(p TicketPriority) TicketPriority {
	if p.Valid() {
		return p
	}
	return TicketPriorityLow
}

// Ticket is the aggregate for support requests. Person references are kept
// as raw identifiers; display resolution happens at read time. Version backs
// optimistic concurrency control on updates.
type Ticket struct {
	ID                string
	Title             string
	Description       string
	Status            TicketStatus
	Priority          TicketPriority
	UserID            string
	RaisedByID        *string
	AssignedAgentID   *string
	StatusChangedByID *string
	DueDate           time.Time
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
