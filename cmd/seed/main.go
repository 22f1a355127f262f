package main

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/auth"
	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/observability"
	"github.com/deskflow/helpdesk-service/internal/persistence"
	"github.com/deskflow/helpdesk-service/internal/repository"
	"github.com/deskflow/helpdesk-service/internal/service"
)

// Seeds the sample admin, agent and user persons plus one sample ticket,
// and prints a dev bearer token for each person.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	personRepo := repository.NewPersonRepository(pg.PoolHandle())
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	samples := []domain.Person{
		{Name: "Admin", Email: "admin@example.com", Role: domain.PersonRoleAdmin},
		{Name: "Test Agent", Email: "agent@test.com", Role: domain.PersonRoleAgent},
		{Name: "Test User", Email: "user@test.com", Role: domain.PersonRoleUser},
	}

	persons := make(map[domain.PersonRole]*domain.Person, len(samples))
	for i := range samples {
		person, err := ensurePerson(ctx, personRepo, &samples[i], logger)
		if err != nil {
			logger.Fatal("seed person", zap.Error(err), zap.String("email", samples[i].Email))
		}
		persons[person.Role] = person

		token, expiresAt, err := tokenManager.GenerateToken(person)
		if err != nil {
			logger.Fatal("generate token", zap.Error(err))
		}
		logger.Info("dev token",
			zap.String("name", person.Name),
			zap.String("role", string(person.Role)),
			zap.String("token", token),
			zap.Time("expires_at", expiresAt))
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repository.NewTicketRepository(pg.PoolHandle()),
		PersonRepo: personRepo,
	})

	ticket, err := ticketService.CreateTicket(ctx, persons[domain.PersonRoleAdmin], service.TicketCreateInput{
		Title:       "Sample Issue",
		Description: "This is a test ticket",
		UserID:      persons[domain.PersonRoleUser].ID,
	})
	if err != nil {
		logger.Fatal("seed ticket", zap.Error(err))
	}
	logger.Info("sample ticket created",
		zap.String("ticket_id", ticket.Ticket.ID),
		zap.String("status", string(ticket.Ticket.Status)))
}

func ensurePerson(ctx context.Context, repo repository.PersonRepository, person *domain.Person, logger *zap.Logger) (*domain.Person, error) {
	existing, err := repo.GetByEmail(ctx, person.Email)
	if err == nil {
		logger.Info("person already exists", zap.String("email", person.Email))
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err := repo.Create(ctx, person); err != nil {
		return nil, err
	}
	logger.Info("person created", zap.String("email", person.Email), zap.String("role", string(person.Role)))
	return person, nil
}
