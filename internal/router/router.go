package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/config"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/handler"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ScheduleHandler *handler.ScheduleHandler
	StatusHandler   *handler.StatusHandler
	SearchHandler   *handler.SearchHandler
	JWTMiddleware   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	profile := api.Group("/profile", jwtMiddleware)
	if deps.ScheduleHandler != nil {
		deps.ScheduleHandler.Register(profile)
	}
	if deps.StatusHandler != nil {
		deps.StatusHandler.Register(profile)
	}

	if deps.SearchHandler != nil {
		search := api.Group("/search", jwtMiddleware)
		deps.SearchHandler.Register(search)
	}
}
