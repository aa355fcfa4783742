package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/adapters/http"
	natsadapter "github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/adapters/nats"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/adapters/valkey"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/bootstrap"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/ports"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/config"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/logging"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("byahero-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup("byahero-api", cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Bus store
	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()
	if store.PG != nil {
		go store.PG.ReportPoolMetrics(ctx, 15*time.Second)
	}

	deps := &http.Dependencies{
		Store:        store.Repo,
		WriteTimeout: bootstrap.WriteTimeout(cfg),
		Version:      version,
	}

	// Cache
	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		vc, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer vc.Close()
			cache = vc
			deps.Cache = vc
		}
	}

	// NATS
	var events ports.EventPublisher
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			events = pub
			deps.NATS = pub
		}
	}

	// Use cases
	svc := bootstrap.NewServices(ctx, cfg, store.Repo, events, cache)
	if err := bootstrap.SeedFleet(ctx, cfg, svc.Buses); err != nil {
		log.Fatalf("seed fleet: %v", err)
	}
	deps.Buses = svc.Buses
	deps.Resolver = svc.Resolver
	deps.Features = svc.Features

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "ByaHero API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "store", store.Driver)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
