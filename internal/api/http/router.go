package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk-service/internal/api/http/handlers"
	"github.com/deskflow/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Tickets         *handlers.TicketsHandler
	Persons         *handlers.PersonsHandler
	ActorMiddleware *auth.ActorMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api", cfg.ActorMiddleware.Handle)

	api.Get("/tickets", cfg.Tickets.ListTickets)
	api.Post("/tickets", cfg.Tickets.CreateTicket)
	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	api.Put("/tickets/:id", cfg.Tickets.UpdateTicket)

	api.Get("/users", cfg.Persons.ListPersons)
	api.Get("/users/:id", cfg.Persons.GetPerson)
}
