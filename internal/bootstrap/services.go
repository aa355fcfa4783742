package bootstrap

import (
	"context"
	"log/slog"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/adapters/geofence"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/ports"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/usecases"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/config"
)

// Services is the core of every binary: geofences, the resolver and the bus
// service on top of an opened store.
type Services struct {
	Features *geofence.Store
	Resolver *usecases.ResolveService
	Buses    *usecases.BusService
}

// NewServices loads the geofences once and builds the use cases. events and
// cache may be nil.
func NewServices(ctx context.Context, cfg *config.Config, repo ports.BusRepository, events ports.EventPublisher, cache ports.CacheService) *Services {
	features := geofence.NewStore(cfg.Geofence.Dirs, cfg.Geofence.Extensions, slog.Default())
	if _, err := features.Reload(ctx); err != nil {
		slog.Warn("geofence load failed", "error", err)
	}
	resolver := usecases.NewResolveService(features)
	return &Services{
		Features: features,
		Resolver: resolver,
		Buses:    usecases.NewBusService(repo, resolver, events, cache),
	}
}

// SeedFleet provisions the configured fleet when the store is empty.
func SeedFleet(ctx context.Context, cfg *config.Config, buses *usecases.BusService) error {
	fleet, err := config.LoadFleet(cfg.Fleet.SeedFile)
	if err != nil {
		return err
	}
	n, err := buses.SeedIfEmpty(ctx, fleet)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("seeded fleet", "buses", n, "file", cfg.Fleet.SeedFile)
	}
	return nil
}
