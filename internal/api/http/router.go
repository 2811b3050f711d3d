package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Requests       *handlers.RequestsHandler
	Review         *handlers.ReviewHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.Middleware
	MetricsHandler http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.MetricsHandler != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.MetricsHandler))
	}

	app.Post("/auth/staff/login", cfg.Staff.Login)

	// Submission and task polling are open; task ids are unguessable.
	app.Post("/account/requests", cfg.Requests.Submit)
	app.Get("/account/tasks/:id", cfg.Requests.TaskStatus)

	review := app.Group("/account", cfg.AuthMiddleware.Handle, auth.RequireStaffRole())
	review.Get("/requests", cfg.Review.ListPending)
	review.Post("/requests/:identifier/approve", cfg.Review.Approve)
	review.Post("/requests/:identifier/reject", cfg.Review.Reject)
}
