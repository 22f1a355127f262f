package service

import (
	"context"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/repository"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util"
)

// ResolvedTicket pairs a ticket with the display identities of its person
// references. A nil person means the reference is unset (or dangling, which
// read-time resolution tolerates).
type ResolvedTicket struct {
	Ticket          domain.Ticket
	User            *domain.Person
	RaisedBy        *domain.Person
	AssignedAgent   *domain.Person
	StatusChangedBy *domain.Person
}

// PersonResolver projects raw person references onto display identities.
// It keeps resolution out of the store and the lifecycle rules.
type PersonResolver struct {
	persons repository.PersonRepository
}

// NewPersonResolver constructs a resolver.
func NewPersonResolver(persons repository.PersonRepository) *PersonResolver {
	return &PersonResolver{persons: persons}
}

// Resolve resolves the references of a single ticket.
func (r *PersonResolver) Resolve(ctx context.Context, ticket *domain.Ticket) (*ResolvedTicket, error) {
	resolved, err := r.ResolveAll(ctx, []domain.Ticket{*ticket})
	if err != nil {
		return nil, err
	}
	return &resolved[0], nil
}

// ResolveAll resolves references for a batch of tickets with a single
// directory lookup.
func (r *PersonResolver) ResolveAll(ctx context.Context, tickets []domain.Ticket) ([]ResolvedTicket, error) {
	ids := make([]string, 0, len(tickets)*4)
	seen := make(map[string]struct{})
	collect := func(id *string) {
		if id == nil {
			return
		}
		if _, ok := seen[*id]; ok {
			return
		}
		seen[*id] = struct{}{}
		ids = append(ids, *id)
	}
	for i := range tickets {
		userID := tickets[i].UserID
		collect(&userID)
		collect(tickets[i].RaisedByID)
		collect(tickets[i].AssignedAgentID)
		collect(tickets[i].StatusChangedByID)
	}

	persons, err := r.persons.ListByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byID := make(map[string]*domain.Person, len(persons))
	for i := range persons {
		byID[persons[i].ID] = &persons[i]
	}
	lookup := func(id *string) *domain.Person {
		if id == nil {
			return nil
		}
		return byID[*id]
	}

	result := make([]ResolvedTicket, 0, len(tickets))
	for i := range tickets {
		result = append(result, ResolvedTicket{
			Ticket:          tickets[i],
			User:            byID[tickets[i].UserID],
			RaisedBy:        lookup(tickets[i].RaisedByID),
			AssignedAgent:   lookup(tickets[i].AssignedAgentID),
			StatusChangedBy: lookup(tickets[i].StatusChangedByID),
		})
	}
	return result, nil
}
