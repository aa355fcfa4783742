package http

import (
	"context"
	"time"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/adapters/geofence"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/usecases"
)

// FeatureStore is the geofence snapshot holder the handlers read and reload.
type FeatureStore interface {
	Current() *domain.FeatureSet
	Reload(ctx context.Context) (geofence.LoadStats, error)
}

// Pinger is anything readiness can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnStatus reports whether a long-lived connection is up.
type ConnStatus interface {
	Connected() bool
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Buses    *usecases.BusService
	Resolver *usecases.ResolveService
	Features FeatureStore
	Store    Pinger
	NATS     ConnStatus
	Cache    Pinger

	// WriteTimeout bounds a single bus mutation. Zero means 2s.
	WriteTimeout time.Duration
	// OpenAPIPath is served at /docs/openapi.yaml. Empty means api/openapi.yaml.
	OpenAPIPath string
	Version     string
}

func (d *Dependencies) writeTimeout() time.Duration {
	if d.WriteTimeout <= 0 {
		return 2 * time.Second
	}
	return d.WriteTimeout
}
