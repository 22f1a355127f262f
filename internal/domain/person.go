package domain

import "time"

// PersonRole enumerates helpdesk roles.
type PersonRole string

const (
	PersonRoleUser  PersonRole = "user"
	PersonRoleAgent PersonRole = "agent"
	PersonRoleAdmin PersonRole = "admin"
)

// Valid reports whether the role is one of the enumerated values.
func (r PersonRole) Valid() bool {
	switch r {
	case PersonRoleUser, PersonRoleAgent, PersonRoleAdmin:
		return true
	}
	return false
}

// Person is the directory entry referenced by tickets. The ticket lifecycle
// never mutates persons; it only validates references and resolves them for
// display.
type Person struct {
	ID        string
	Name      string
	Email     string
	Role      PersonRole
	CreatedAt time.Time
	UpdatedAt time.Time
}
