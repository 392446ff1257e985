package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/repairdesk/repair-desk/internal/api/http/handlers"
	"github.com/repairdesk/repair-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Chat           *handlers.ChatHandler
	Tickets        *handlers.TicketsHandler
	Technicians    *handlers.TechniciansHandler
	AuthMiddleware *auth.AuthMiddleware
	Authorizer     *auth.Authorizer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/chat/webhook", cfg.Chat.Webhook)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)
	staffOnly := auth.RequireStaff(cfg.Authorizer)

	api.Get("/tickets/:id", staffOnly, cfg.Tickets.GetTicket)
	api.Post("/tickets/:id/assign", staffOnly, cfg.Tickets.AssignTicket)
	// technicians act on their own tickets; the service decides
	api.Post("/tickets/:id/status", auth.RequireAnyActor(), cfg.Tickets.UpdateStatus)

	api.Get("/technicians", staffOnly, cfg.Technicians.List)
}
