package ports

import (
	"context"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

// BusRepository persists bus records. Implementations return copies, so
// callers may modify what they get without affecting stored state.
type BusRepository interface {
	// Create inserts a new bus and assigns its ID. A duplicate code yields
	// domain.ErrConflict.
	Create(ctx context.Context, bus *domain.Bus) error
	// Get returns domain.ErrUnknownBus when id does not exist.
	Get(ctx context.Context, id int64) (*domain.Bus, error)
	// Save replaces every mutable field of an existing bus in one atomic write
	// and increments bus.Version. It fails with domain.ErrStaleWrite when the
	// stored version differs from bus.Version, i.e. another writer got there
	// first.
	Save(ctx context.Context, bus *domain.Bus) error
	// List returns all buses sorted by code ascending.
	List(ctx context.Context) ([]domain.Bus, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}
