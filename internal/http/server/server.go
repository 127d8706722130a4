package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"a11y-gateway/internal/config"
	"a11y-gateway/internal/http/handlers"
	"a11y-gateway/internal/http/middleware"
	"a11y-gateway/internal/infra/logging"
	"a11y-gateway/internal/infra/metrics"
	"a11y-gateway/internal/infra/storage"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Config   config.Config
	Service  handlers.Accessibility
	Store    *storage.ReportStore
	Renderer handlers.PoolSource
	Metrics  *metrics.Metrics
	// RateLimitStore backs the upload limiter; nil picks one from Config.
	RateLimitStore fiber.Storage
}

// New creates and configures the Fiber app.
func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               d.Config.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             d.Config.Server.BodyLimitMB * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    code,
					"message": msg,
				},
			})
		},
	})

	middleware.Register(app, d.Config)
	registerRoutes(app, d)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

func registerRoutes(app *fiber.App, d Deps) {
	var limit fiber.Handler
	if d.Config.RateLimiter.UserLimit > 0 {
		store := d.RateLimitStore
		if store == nil {
			store = middleware.NewRateLimitStore(d.Config)
		}
		limit = middleware.UploadRateLimit(d.Config, store)
	}
	upload := func(h fiber.Handler) []fiber.Handler {
		if limit == nil {
			return []fiber.Handler{h}
		}
		return []fiber.Handler{limit, h}
	}

	h := handlers.NewUploadHandlers(d.Service, d.Store)
	app.Post("/upload-pdf", upload(h.HandleAccessibilityCheck)...)
	app.Post("/autotag", upload(h.HandleAutoTag)...)

	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}

	v1 := app.Group("/v1")
	if d.Renderer != nil {
		v1.Get("/chrome/stats", handlers.HandleChromeStats(d.Renderer, d.Config.PDF.ChromePoolSize, d.Config.PDF.TimeoutSecs))
	}
	v1.Get("/monitor", monitor.New())
}
