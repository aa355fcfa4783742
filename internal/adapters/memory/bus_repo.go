package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

// BusRepo implements ports.BusRepository in process memory. Every read and
// write copies the record, so no caller ever shares state with the map.
type BusRepo struct {
	mu     sync.RWMutex
	buses  map[int64]*domain.Bus
	codes  map[string]int64
	nextID int64
}

// NewBusRepo creates an empty repository.
func NewBusRepo() *BusRepo {
	return &BusRepo{
		buses:  make(map[int64]*domain.Bus),
		codes:  make(map[string]int64),
		nextID: 1,
	}
}

func (r *BusRepo) Create(ctx context.Context, bus *domain.Bus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codes[bus.Code]; ok {
		return fmt.Errorf("%w: bus code %q exists", domain.ErrConflict, bus.Code)
	}
	bus.ID = r.nextID
	bus.Version = 1
	r.nextID++
	r.buses[bus.ID] = bus.Clone()
	r.codes[bus.Code] = bus.ID
	return nil
}

func (r *BusRepo) Get(ctx context.Context, id int64) (*domain.Bus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.buses[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrUnknownBus, id)
	}
	return b.Clone(), nil
}

// Save stores bus if nobody else saved it since it was read, then bumps
// bus.Version.
func (r *BusRepo) Save(ctx context.Context, bus *domain.Bus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.buses[bus.ID]
	if !ok {
		return fmt.Errorf("%w: id %d", domain.ErrUnknownBus, bus.ID)
	}
	if cur.Version != bus.Version {
		return fmt.Errorf("%w: id %d at version %d, have %d", domain.ErrStaleWrite, bus.ID, cur.Version, bus.Version)
	}
	if cur.Code != bus.Code {
		if _, taken := r.codes[bus.Code]; taken {
			return fmt.Errorf("%w: bus code %q exists", domain.ErrConflict, bus.Code)
		}
		delete(r.codes, cur.Code)
		r.codes[bus.Code] = bus.ID
	}
	bus.Version++
	r.buses[bus.ID] = bus.Clone()
	return nil
}

func (r *BusRepo) List(ctx context.Context) ([]domain.Bus, error) {
	r.mu.RLock()
	out := make([]domain.Bus, 0, len(r.buses))
	for _, b := range r.buses {
		out = append(out, *b.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *BusRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buses), nil
}

func (r *BusRepo) Ping(ctx context.Context) error { return nil }
