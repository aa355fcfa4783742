package ports

import (
	"context"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishBusUpdated(ctx context.Context, bus *domain.Bus) error
}

// FeatureProvider hands out the current geofence snapshot.
type FeatureProvider interface {
	Current() *domain.FeatureSet
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
