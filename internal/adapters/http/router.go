package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/metrics"
)

const readTimeout = 15 * time.Second

// legacySunset is when POST /v1/locations goes away.
var legacySunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers all REST and GraphQL routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Conductor devices report every few seconds; 240/min leaves headroom
	// for several devices behind one NAT.
	app.Use(limiter.New(limiter.Config{
		Max:        240,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Method: fiber.MethodPost, Path: "/v1/locations", SunsetDate: legacySunset, Alternative: "/v1/buses/{id}/location"},
	}))

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")

	// Reads
	v1.Get("/buses", timeout.NewWithContext(ListBusesHandler(deps), readTimeout))
	v1.Get("/buses/:id", timeout.NewWithContext(GetBusHandler(deps), readTimeout))
	v1.Get("/resolve", timeout.NewWithContext(ResolveHandler(deps), readTimeout))
	v1.Get("/geofences", timeout.NewWithContext(MapDataHandler(deps), readTimeout))

	// Writes carry their own deadline (deps.WriteTimeout)
	v1.Post("/buses/:id/location", ReportLocationHandler(deps))
	v1.Delete("/buses/:id/location", ClearLocationHandler(deps))
	v1.Put("/buses/:id/status", UpdateStatusHandler(deps))
	v1.Put("/buses/:id/seats", SetSeatsHandler(deps))
	v1.Post("/locations", LegacyReportLocationHandler(deps))
	v1.Post("/geofences/reload", ReloadGeofencesHandler(deps))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app, deps.OpenAPIPath)
}
