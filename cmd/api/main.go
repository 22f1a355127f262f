package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/deskflow/helpdesk-service/internal/api/http"
	"github.com/deskflow/helpdesk-service/internal/api/http/handlers"
	"github.com/deskflow/helpdesk-service/internal/auth"
	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/observability"
	"github.com/deskflow/helpdesk-service/internal/persistence"
	"github.com/deskflow/helpdesk-service/internal/repository"
	"github.com/deskflow/helpdesk-service/internal/service"
	"github.com/deskflow/helpdesk-service/internal/worker"
)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	personRepo := repository.NewPersonRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		PersonRepo: personRepo,
		Dispatcher: dispatcher,
	})

	relay := service.NewStreamRelay(dispatcher, redis.Client, logger, cfg.Events)
	worker.StartEventRelay(relay)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	actorMiddleware := auth.NewActorMiddleware(tokenManager, personRepo)

	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:         handlers.NewTicketsHandler(ticketService),
		Persons:         handlers.NewPersonsHandler(personRepo),
		ActorMiddleware: actorMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
