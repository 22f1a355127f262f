package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/repository"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util"
)

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket

	// beforeSave runs between the version check setup and the actual save,
	// letting tests interleave a concurrent writer.
	beforeSave func(stored *domain.Ticket)
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) Insert(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	ticket.ID = uuid.NewString()
	ticket.Version = 1
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *fakeTicketRepo) List(_ context.Context) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]domain.Ticket, 0, len(r.tickets))
	for _, stored := range r.tickets {
		result = append(result, *stored)
	}
	return result, nil
}

func (r *fakeTicketRepo) Save(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if r.beforeSave != nil {
		hook := r.beforeSave
		r.beforeSave = nil
		hook(stored)
	}
	if stored.Version != ticket.Version {
		return repository.ErrVersionConflict
	}
	ticket.Version++
	ticket.UpdatedAt = time.Now()
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

type fakePersonRepo struct {
	mu      sync.Mutex
	persons map[string]*domain.Person
}

func newFakePersonRepo() *fakePersonRepo {
	return &fakePersonRepo{persons: make(map[string]*domain.Person)}
}

func (r *fakePersonRepo) Create(_ context.Context, person *domain.Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	clone := *person
	r.persons[person.ID] = &clone
	return nil
}

func (r *fakePersonRepo) GetByID(_ context.Context, id string) (*domain.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	person, ok := r.persons[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *person
	return &clone, nil
}

func (r *fakePersonRepo) GetByEmail(_ context.Context, email string) (*domain.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, person := range r.persons {
		if person.Email == email {
			clone := *person
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakePersonRepo) List(_ context.Context) ([]domain.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]domain.Person, 0, len(r.persons))
	for _, person := range r.persons {
		result = append(result, *person)
	}
	return result, nil
}

func (r *fakePersonRepo) ListByIDs(_ context.Context, ids []string) ([]domain.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Person
	for _, id := range ids {
		if person, ok := r.persons[id]; ok {
			result = append(result, *person)
		}
	}
	return result, nil
}

type fixture struct {
	service  *TicketService
	tickets  *fakeTicketRepo
	persons  *fakePersonRepo
	captured *[]events.Event

	admin  *domain.Person
	agent1 *domain.Person
	agent2 *domain.Person
	user1  *domain.Person
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tickets := newFakeTicketRepo()
	persons := newFakePersonRepo()

	addPerson := func(name, email string, role domain.PersonRole) *domain.Person {
		person := &domain.Person{Name: name, Email: email, Role: role}
		if err := persons.Create(context.Background(), person); err != nil {
			t.Fatalf("seed person: %v", err)
		}
		return person
	}

	dispatcher := events.NewInMemoryDispatcher()
	captured := &[]events.Event{}
	record := func(_ context.Context, event events.Event) error {
		*captured = append(*captured, event)
		return nil
	}
	dispatcher.Subscribe(events.EventTicketCreated, record)
	dispatcher.Subscribe(events.EventTicketStatusChanged, record)
	dispatcher.Subscribe(events.EventTicketAssigned, record)

	return &fixture{
		service: NewTicketService(TicketDependencies{
			TicketRepo: tickets,
			PersonRepo: persons,
			Dispatcher: dispatcher,
		}),
		tickets:  tickets,
		persons:  persons,
		captured: captured,
		admin:    addPerson("Admin", "admin@example.com", domain.PersonRoleAdmin),
		agent1:   addPerson("Agent One", "agent1@example.com", domain.PersonRoleAgent),
		agent2:   addPerson("Agent Two", "agent2@example.com", domain.PersonRoleAgent),
		user1:    addPerson("End User", "user@example.com", domain.PersonRoleUser),
	}
}

func (f *fixture) createTicket(t *testing.T, input TicketCreateInput) *ResolvedTicket {
	t.Helper()
	if input.UserID == "" {
		input.UserID = f.user1.ID
	}
	if input.Title == "" {
		input.Title = "Printer down"
	}
	resolved, err := f.service.CreateTicket(context.Background(), f.admin, input)
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return resolved
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	de := apperrors.ToDomainError(err)
	if de.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, de.Code, err)
	}
}

func strPtr(s string) *string {
	return &s
}

func TestCreateTicketDefaults(t *testing.T) {
	f := newFixture(t)

	resolved := f.createTicket(t, TicketCreateInput{Title: "Printer down"})
	ticket := resolved.Ticket

	if ticket.Status != domain.TicketStatusOpen {
		t.Errorf("status = %q, want Open", ticket.Status)
	}
	if ticket.Priority != domain.TicketPriorityLow {
		t.Errorf("priority = %q, want Low", ticket.Priority)
	}
	if ticket.RaisedByID == nil || *ticket.RaisedByID != f.admin.ID {
		t.Errorf("raisedBy = %v, want admin %s", ticket.RaisedByID, f.admin.ID)
	}
	if ticket.StatusChangedByID != nil {
		t.Errorf("statusChangedBy = %v, want nil on a fresh ticket", ticket.StatusChangedByID)
	}
	if ticket.AssignedAgentID != nil {
		t.Errorf("assignedAgent = %v, want nil", ticket.AssignedAgentID)
	}
	if ticket.DueDate.IsZero() {
		t.Error("dueDate should default to creation time")
	}
	if resolved.User == nil || resolved.User.Email != f.user1.Email {
		t.Errorf("user reference not resolved: %+v", resolved.User)
	}
	if resolved.RaisedBy == nil || resolved.RaisedBy.ID != f.admin.ID {
		t.Errorf("raisedBy reference not resolved: %+v", resolved.RaisedBy)
	}
}

func TestCreateTicketNormalizesInvalidEnums(t *testing.T) {
	f := newFixture(t)

	resolved := f.createTicket(t, TicketCreateInput{
		Title:    "Broken keyboard",
		Priority: domain.TicketPriority("Critical"),
		Status:   domain.TicketStatus("Pending"),
	})

	if resolved.Ticket.Priority != domain.TicketPriorityLow {
		t.Errorf("priority = %q, want Low after normalization", resolved.Ticket.Priority)
	}
	if resolved.Ticket.Status != domain.TicketStatusOpen {
		t.Errorf("status = %q, want Open after normalization", resolved.Ticket.Status)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input TicketCreateInput
		code  string
	}{
		{"missing title", TicketCreateInput{UserID: f.user1.ID}, "VALIDATION_FAILED"},
		{"blank title", TicketCreateInput{Title: "   ", UserID: f.user1.ID}, "VALIDATION_FAILED"},
		{"missing user", TicketCreateInput{Title: "No user"}, "VALIDATION_FAILED"},
		{"malformed user id", TicketCreateInput{Title: "Bad ref", UserID: "u1"}, "VALIDATION_FAILED"},
		{"unknown user", TicketCreateInput{Title: "Ghost", UserID: uuid.NewString()}, "NOT_FOUND"},
		{"unknown agent", TicketCreateInput{Title: "Ghost agent", UserID: f.user1.ID, AssignedAgentID: strPtr(uuid.NewString())}, "NOT_FOUND"},
		{"malformed agent id", TicketCreateInput{Title: "Bad agent", UserID: f.user1.ID, AssignedAgentID: strPtr("agent-1")}, "VALIDATION_FAILED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.CreateTicket(ctx, f.admin, tc.input)
			assertCode(t, err, tc.code)
		})
	}
}

func TestTransitionStatusStampsActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.createTicket(t, TicketCreateInput{}).Ticket

	resolved, err := f.service.TransitionTicket(ctx, f.agent1, ticket.ID, TicketTransitionInput{
		Status: strPtr("In Progress"),
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}

	if resolved.Ticket.Status != domain.TicketStatusInProgress {
		t.Errorf("status = %q, want In Progress", resolved.Ticket.Status)
	}
	if resolved.Ticket.StatusChangedByID == nil || *resolved.Ticket.StatusChangedByID != f.agent1.ID {
		t.Errorf("statusChangedBy = %v, want agent1 %s", resolved.Ticket.StatusChangedByID, f.agent1.ID)
	}
	if resolved.StatusChangedBy == nil || resolved.StatusChangedBy.ID != f.agent1.ID {
		t.Errorf("statusChangedBy reference not resolved: %+v", resolved.StatusChangedBy)
	}
}

func TestAssignmentPreservesStatusChangedBy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.createTicket(t, TicketCreateInput{}).Ticket

	if _, err := f.service.TransitionTicket(ctx, f.agent1, ticket.ID, TicketTransitionInput{
		Status: strPtr("In Progress"),
	}); err != nil {
		t.Fatalf("status transition: %v", err)
	}

	resolved, err := f.service.TransitionTicket(ctx, f.agent2, ticket.ID, TicketTransitionInput{
		AssignedAgentID:  &f.agent2.ID,
		AssignedAgentSet: true,
	})
	if err != nil {
		t.Fatalf("assignment transition: %v", err)
	}

	if resolved.Ticket.AssignedAgentID == nil || *resolved.Ticket.AssignedAgentID != f.agent2.ID {
		t.Errorf("assignedAgent = %v, want agent2 %s", resolved.Ticket.AssignedAgentID, f.agent2.ID)
	}
	if resolved.Ticket.StatusChangedByID == nil || *resolved.Ticket.StatusChangedByID != f.agent1.ID {
		t.Errorf("statusChangedBy = %v, want still agent1 %s", resolved.Ticket.StatusChangedByID, f.agent1.ID)
	}
}

func TestSameStatusDoesNotRestamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.createTicket(t, TicketCreateInput{}).Ticket

	if _, err := f.service.TransitionTicket(ctx, f.agent1, ticket.ID, TicketTransitionInput{
		Status: strPtr("Closed"),
	}); err != nil {
		t.Fatalf("first transition: %v", err)
	}

	resolved, err := f.service.TransitionTicket(ctx, f.agent2, ticket.ID, TicketTransitionInput{
		Status: strPtr("Closed"),
	})
	if err != nil {
		t.Fatalf("repeat transition: %v", err)
	}

	if resolved.Ticket.StatusChangedByID == nil || *resolved.Ticket.StatusChangedByID != f.agent1.ID {
		t.Errorf("statusChangedBy = %v, want agent1 after no-op repeat", resolved.Ticket.StatusChangedByID)
	}

	for _, event := range *f.captured {
		if event.Type == events.EventTicketStatusChanged && event.Actor.PersonID == f.agent2.ID {
			t.Error("no-op status transition must not emit a status-changed event")
		}
	}
}

func TestUnassignWithExplicitNull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.createTicket(t, TicketCreateInput{AssignedAgentID: &f.agent1.ID}).Ticket
	if ticket.AssignedAgentID == nil {
		t.Fatal("expected agent assigned at creation")
	}

	resolved, err := f.service.TransitionTicket(ctx, f.admin, ticket.ID, TicketTransitionInput{
		AssignedAgentSet: true,
	})
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if resolved.Ticket.AssignedAgentID != nil {
		t.Errorf("assignedAgent = %v, want nil after unassign", resolved.Ticket.AssignedAgentID)
	}

	// Empty string behaves like null.
	ticket2 := f.createTicket(t, TicketCreateInput{AssignedAgentID: &f.agent1.ID}).Ticket
	resolved, err = f.service.TransitionTicket(ctx, f.admin, ticket2.ID, TicketTransitionInput{
		AssignedAgentID:  strPtr(""),
		AssignedAgentSet: true,
	})
	if err != nil {
		t.Fatalf("unassign with empty string: %v", err)
	}
	if resolved.Ticket.AssignedAgentID != nil {
		t.Errorf("assignedAgent = %v, want nil after empty-string unassign", resolved.Ticket.AssignedAgentID)
	}
}

func TestCombinedStatusAndUnassign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.createTicket(t, TicketCreateInput{AssignedAgentID: &f.agent1.ID}).Ticket

	resolved, err := f.service.TransitionTicket(ctx, f.admin, ticket.ID, TicketTransitionInput{
		Status:           strPtr("Closed"),
		AssignedAgentSet: true,
	})
	if err != nil {
		t.Fatalf("combined transition: %v", err)
	}

	if resolved.Ticket.Status != domain.TicketStatusClosed {
		t.Errorf("status = %q, want Closed", resolved.Ticket.Status)
	}
	if resolved.Ticket.StatusChangedByID == nil || *resolved.Ticket.StatusChangedByID != f.admin.ID {
		t.Errorf("statusChangedBy = %v, want admin", resolved.Ticket.StatusChangedByID)
	}
	if resolved.Ticket.AssignedAgentID != nil {
		t.Errorf("assignedAgent = %v, want nil", resolved.Ticket.AssignedAgentID)
	}
}

func TestReopenClosedTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.createTicket(t, TicketCreateInput{}).Ticket
	if _, err := f.service.TransitionTicket(ctx, f.agent1, ticket.ID, TicketTransitionInput{
		Status: strPtr("Closed"),
	}); err != nil {
		t.Fatalf("close: %v", err)
	}

	resolved, err := f.service.TransitionTicket(ctx, f.agent2, ticket.ID, TicketTransitionInput{
		Status: strPtr("Open"),
	})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if resolved.Ticket.Status != domain.TicketStatusOpen {
		t.Errorf("status = %q, want Open after reopen", resolved.Ticket.Status)
	}
	if resolved.Ticket.StatusChangedByID == nil || *resolved.Ticket.StatusChangedByID != f.agent2.ID {
		t.Errorf("statusChangedBy = %v, want agent2 after reopen", resolved.Ticket.StatusChangedByID)
	}
}

func TestTransitionFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.createTicket(t, TicketCreateInput{}).Ticket

	t.Run("unknown ticket", func(t *testing.T) {
		_, err := f.service.TransitionTicket(ctx, f.admin, uuid.NewString(), TicketTransitionInput{
			Status: strPtr("Closed"),
		})
		assertCode(t, err, "NOT_FOUND")
	})

	t.Run("malformed ticket id", func(t *testing.T) {
		_, err := f.service.TransitionTicket(ctx, f.admin, "not-an-id", TicketTransitionInput{
			Status: strPtr("Closed"),
		})
		assertCode(t, err, "VALIDATION_FAILED")
	})

	t.Run("invalid status value", func(t *testing.T) {
		_, err := f.service.TransitionTicket(ctx, f.admin, ticket.ID, TicketTransitionInput{
			Status: strPtr("Done"),
		})
		assertCode(t, err, "VALIDATION_FAILED")
	})

	t.Run("unknown agent", func(t *testing.T) {
		_, err := f.service.TransitionTicket(ctx, f.admin, ticket.ID, TicketTransitionInput{
			AssignedAgentID:  strPtr(uuid.NewString()),
			AssignedAgentSet: true,
		})
		assertCode(t, err, "NOT_FOUND")
	})

	t.Run("assignee without agent role", func(t *testing.T) {
		_, err := f.service.TransitionTicket(ctx, f.admin, ticket.ID, TicketTransitionInput{
			AssignedAgentID:  &f.user1.ID,
			AssignedAgentSet: true,
		})
		assertCode(t, err, "VALIDATION_FAILED")
	})
}

func TestTransitionFailureLeavesTicketUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.createTicket(t, TicketCreateInput{}).Ticket

	_, err := f.service.TransitionTicket(ctx, f.admin, ticket.ID, TicketTransitionInput{
		Status:           strPtr("Closed"),
		AssignedAgentID:  strPtr(uuid.NewString()),
		AssignedAgentSet: true,
	})
	assertCode(t, err, "NOT_FOUND")

	stored, err := f.tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != domain.TicketStatusOpen {
		t.Errorf("status = %q, want Open: failed transition must not persist partial changes", stored.Status)
	}
	if stored.StatusChangedByID != nil {
		t.Errorf("statusChangedBy = %v, want nil after failed transition", stored.StatusChangedByID)
	}
}

func TestConcurrentTransitionConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.createTicket(t, TicketCreateInput{}).Ticket

	// Interleave a competing writer between this transition's load and save.
	f.tickets.beforeSave = func(stored *domain.Ticket) {
		stored.Version++
		agentID := f.agent2.ID
		stored.AssignedAgentID = &agentID
	}

	_, err := f.service.TransitionTicket(ctx, f.agent1, ticket.ID, TicketTransitionInput{
		Status: strPtr("In Progress"),
	})
	assertCode(t, err, "CONFLICT")

	// The competing writer's assignment survived.
	stored, err := f.tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.AssignedAgentID == nil || *stored.AssignedAgentID != f.agent2.ID {
		t.Errorf("assignedAgent = %v, want the concurrent writer's agent2", stored.AssignedAgentID)
	}
	if stored.Status != domain.TicketStatusOpen {
		t.Errorf("status = %q, want Open: losing writer must not be persisted", stored.Status)
	}

	// Retry after re-fetch succeeds and merges cleanly.
	resolved, err := f.service.TransitionTicket(ctx, f.agent1, ticket.ID, TicketTransitionInput{
		Status: strPtr("In Progress"),
	})
	if err != nil {
		t.Fatalf("retry after conflict: %v", err)
	}
	if resolved.Ticket.Status != domain.TicketStatusInProgress {
		t.Errorf("status = %q, want In Progress after retry", resolved.Ticket.Status)
	}
	if resolved.Ticket.AssignedAgentID == nil || *resolved.Ticket.AssignedAgentID != f.agent2.ID {
		t.Errorf("assignedAgent = %v, want agent2 preserved through retry", resolved.Ticket.AssignedAgentID)
	}
}

func TestGetTicketRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.createTicket(t, TicketCreateInput{
		Title:       "VPN flaky",
		Description: "Drops every hour",
		Priority:    domain.TicketPriorityHigh,
	})

	fetched, err := f.service.GetTicket(ctx, created.Ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Ticket.Title != created.Ticket.Title ||
		fetched.Ticket.Description != created.Ticket.Description ||
		fetched.Ticket.Priority != created.Ticket.Priority ||
		fetched.Ticket.Status != created.Ticket.Status {
		t.Errorf("fetched ticket differs from created: %+v vs %+v", fetched.Ticket, created.Ticket)
	}
}

func TestListTicketsResolvesReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createTicket(t, TicketCreateInput{Title: "One"})
	f.createTicket(t, TicketCreateInput{Title: "Two", AssignedAgentID: &f.agent1.ID})

	tickets, err := f.service.ListTickets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tickets) != 2 {
		t.Fatalf("got %d tickets, want 2", len(tickets))
	}
	for _, resolved := range tickets {
		if resolved.User == nil || resolved.User.Name == "" {
			t.Errorf("ticket %s: user reference not resolved", resolved.Ticket.ID)
		}
		if resolved.RaisedBy == nil || resolved.RaisedBy.ID != f.admin.ID {
			t.Errorf("ticket %s: raisedBy reference not resolved", resolved.Ticket.ID)
		}
		if strings.Contains(resolved.Ticket.Title, "Two") {
			if resolved.AssignedAgent == nil || resolved.AssignedAgent.ID != f.agent1.ID {
				t.Errorf("ticket %s: assignedAgent reference not resolved", resolved.Ticket.ID)
			}
		}
	}
}

func TestLifecycleEventsEmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.createTicket(t, TicketCreateInput{}).Ticket
	if _, err := f.service.TransitionTicket(ctx, f.agent1, ticket.ID, TicketTransitionInput{
		Status:           strPtr("In Progress"),
		AssignedAgentID:  &f.agent1.ID,
		AssignedAgentSet: true,
	}); err != nil {
		t.Fatalf("transition: %v", err)
	}

	var types []events.EventType
	for _, event := range *f.captured {
		types = append(types, event.Type)
	}
	want := []events.EventType{events.EventTicketCreated, events.EventTicketStatusChanged, events.EventTicketAssigned}
	if len(types) != len(want) {
		t.Fatalf("captured %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("captured %v, want %v", types, want)
		}
	}
}
