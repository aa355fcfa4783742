package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/ports"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/metrics"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/telemetry"
)

const (
	busListCacheKey = "buses:list"
	busListCacheTTL = 2 // seconds; viewers poll every few seconds

	// maxWriteAttempts bounds the re-reads after another process saved the
	// same bus between our Get and Save.
	maxWriteAttempts = 3
)

// errSkipWrite lets a mutate callback leave the bus untouched.
var errSkipWrite = errors.New("skip write")

// BusService owns all bus state transitions. Writes to one bus are
// serialised; writes to different buses never wait on each other.
type BusService struct {
	buses    ports.BusRepository
	resolver *ResolveService
	events   ports.EventPublisher
	cache    ports.CacheService
	locks    *busLocks
	now      func() time.Time
	// listGen moves on every invalidation, so a List that read the store
	// before a write does not put its result back in the cache.
	listGen atomic.Uint64
}

// NewBusService creates a new BusService. events and cache may be nil.
func NewBusService(
	buses ports.BusRepository,
	resolver *ResolveService,
	events ports.EventPublisher,
	cache ports.CacheService,
) *BusService {
	return &BusService{
		buses:    buses,
		resolver: resolver,
		events:   events,
		cache:    cache,
		locks:    newBusLocks(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ReportLocation resolves the reported point and stores it as the bus's
// current location. The name is, in order: the matched geofence's name, the
// name carried in the client's properties, or the coordinates themselves.
// Route, seats and status in the report are applied in the same write.
func (s *BusService) ReportLocation(ctx context.Context, r domain.LocationReport) (*domain.UpdateResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanReportLocation)
	defer span.End()
	span.SetAttributes(attribute.Int64("bus.id", r.BusID))

	if err := validateReport(r); err != nil {
		return nil, s.fail(span, "report_location", err)
	}

	res := s.resolver.ResolveCurrent(ctx, r.Point)

	result := &domain.UpdateResult{Resolution: res.Kind}
	result.ProvidedName, _ = r.Properties.DisplayName()
	if name, ok := res.ServerName(); ok {
		result.ServerResolvedName = name
		result.LocationName = name
	} else if result.ProvidedName != "" {
		result.LocationName = result.ProvidedName
	} else {
		result.LocationName = r.Point.CoordinateLabel()
	}

	received := r.ReceivedAt
	if received.IsZero() {
		received = s.now()
	}
	props := r.Properties.Clone()
	if _, ok := props.Get(domain.PropTimestamp); !ok {
		props.Set(domain.PropTimestamp, received.Format(time.RFC3339))
	}
	props.Set(domain.PropLocationName, result.LocationName)
	props.Set(domain.PropCurrentLocation, result.LocationName)

	loc := &domain.BusLocation{Point: r.Point, Name: result.LocationName, Properties: props}

	bus, _, err := s.mutate(ctx, r.BusID, func(b *domain.Bus) error {
		b.Location = loc
		if r.Route != nil {
			b.Route = *r.Route
		}
		if r.SeatsAvailable != nil {
			b.SeatsAvailable = *r.SeatsAvailable
		}
		if r.Status != nil {
			b.Status = *r.Status
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(span, "report_location", err)
	}

	metrics.BusUpdates.WithLabelValues("report_location", "ok").Inc()
	span.SetAttributes(
		attribute.String("resolution.kind", string(res.Kind)),
		attribute.String("location.name", result.LocationName),
	)
	result.Bus = bus
	return result, nil
}

func validateReport(r domain.LocationReport) error {
	if r.BusID <= 0 {
		return fmt.Errorf("%w: bus_id is required", domain.ErrInvalidInput)
	}
	if err := r.Point.Validate(); err != nil {
		return err
	}
	if r.SeatsAvailable != nil && *r.SeatsAvailable < 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidSeats, *r.SeatsAvailable)
	}
	if r.Status != nil && !r.Status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, *r.Status)
	}
	return nil
}

// UpdateStatus sets the operational status of a bus.
func (s *BusService) UpdateStatus(ctx context.Context, id int64, status domain.BusStatus) (*domain.Bus, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanUpdateStatus)
	defer span.End()

	if !status.Valid() {
		return nil, s.fail(span, "update_status", fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status))
	}
	bus, _, err := s.mutate(ctx, id, func(b *domain.Bus) error {
		b.Status = status
		return nil
	})
	if err != nil {
		return nil, s.fail(span, "update_status", err)
	}
	metrics.BusUpdates.WithLabelValues("update_status", "ok").Inc()
	return bus, nil
}

// SetSeatsAvailable records how many seats are free.
func (s *BusService) SetSeatsAvailable(ctx context.Context, id int64, n int) (*domain.Bus, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanSetSeats)
	defer span.End()

	if n < 0 {
		return nil, s.fail(span, "set_seats", fmt.Errorf("%w: %d", domain.ErrInvalidSeats, n))
	}
	bus, _, err := s.mutate(ctx, id, func(b *domain.Bus) error {
		b.SeatsAvailable = n
		return nil
	})
	if err != nil {
		return nil, s.fail(span, "set_seats", err)
	}
	metrics.BusUpdates.WithLabelValues("set_seats", "ok").Inc()
	return bus, nil
}

// ClearLocation forgets the bus's location and marks it unavailable.
func (s *BusService) ClearLocation(ctx context.Context, id int64) (*domain.Bus, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanClearLocation)
	defer span.End()

	bus, _, err := s.mutate(ctx, id, func(b *domain.Bus) error {
		b.Location = nil
		b.Status = domain.StatusUnavailable
		return nil
	})
	if err != nil {
		return nil, s.fail(span, "clear_location", err)
	}
	metrics.BusUpdates.WithLabelValues("clear_location", "ok").Inc()
	return bus, nil
}

// ClearLocationIfStale clears the bus like ClearLocation, but only while its
// last write is still older than before. A bus that reported in the meantime
// is returned unchanged with cleared set to false.
func (s *BusService) ClearLocationIfStale(ctx context.Context, id int64, before time.Time) (bus *domain.Bus, cleared bool, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanClearLocation)
	defer span.End()
	span.SetAttributes(attribute.Int64("bus.id", id))

	bus, cleared, err = s.mutate(ctx, id, func(b *domain.Bus) error {
		if b.Location == nil || !b.UpdatedAt.Before(before) {
			return errSkipWrite
		}
		b.Location = nil
		b.Status = domain.StatusUnavailable
		return nil
	})
	if err != nil {
		return nil, false, s.fail(span, "clear_location", err)
	}
	if !cleared {
		metrics.BusUpdates.WithLabelValues("clear_location", "skipped").Inc()
		return bus, false, nil
	}
	metrics.BusUpdates.WithLabelValues("clear_location", "ok").Inc()
	return bus, true, nil
}

// Get returns one bus.
func (s *BusService) Get(ctx context.Context, id int64) (*domain.Bus, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: id %d", domain.ErrUnknownBus, id)
	}
	return s.buses.Get(ctx, id)
}

// List returns every bus ordered by code.
func (s *BusService) List(ctx context.Context) ([]domain.Bus, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, busListCacheKey); err == nil {
			var buses []domain.Bus
			if err := json.Unmarshal(data, &buses); err == nil {
				metrics.CacheHits.WithLabelValues("bus_list").Inc()
				return buses, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("bus_list").Inc()
	}

	gen := s.listGen.Load()
	buses, err := s.buses.List(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.listGen.Load() == gen {
		if data, err := json.Marshal(buses); err == nil {
			_ = s.cache.Set(ctx, busListCacheKey, data, busListCacheTTL)
		}
	}
	return buses, nil
}

// StaleFilter selects buses whose location has not been refreshed.
type StaleFilter struct {
	Before time.Time
	Status *domain.BusStatus
}

// ListStale returns buses that have a location last written before
// f.Before, optionally restricted to one status.
func (s *BusService) ListStale(ctx context.Context, f StaleFilter) ([]domain.Bus, error) {
	buses, err := s.buses.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Bus
	for _, b := range buses {
		if b.Location == nil || !b.UpdatedAt.Before(f.Before) {
			continue
		}
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Seed provisions buses whose code is not present yet and returns how many
// were created.
func (s *BusService) Seed(ctx context.Context, fleet []domain.SeedBus) (int, error) {
	existing, err := s.buses.List(ctx)
	if err != nil {
		return 0, err
	}
	codes := make(map[string]struct{}, len(existing))
	for _, b := range existing {
		codes[b.Code] = struct{}{}
	}

	created := 0
	for _, sb := range fleet {
		if err := validate.Struct(sb); err != nil {
			return created, fmt.Errorf("%w: seed %q: %v", domain.ErrInvalidInput, sb.Code, err)
		}
		if _, ok := codes[sb.Code]; ok {
			continue
		}
		seats := sb.SeatsTotal
		if seats == 0 {
			seats = domain.DefaultSeats
		}
		bus := &domain.Bus{
			Code:           sb.Code,
			Route:          sb.Route,
			SeatsTotal:     seats,
			SeatsAvailable: seats,
			Status:         domain.StatusAvailable,
			UpdatedAt:      s.now(),
		}
		if err := s.buses.Create(ctx, bus); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			return created, fmt.Errorf("create %s: %w", sb.Code, err)
		}
		codes[sb.Code] = struct{}{}
		created++
	}
	if created > 0 {
		s.invalidate(ctx)
	}
	return created, nil
}

// SeedIfEmpty provisions fleet only when the store holds no buses at all.
func (s *BusService) SeedIfEmpty(ctx context.Context, fleet []domain.SeedBus) (int, error) {
	n, err := s.buses.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	return s.Seed(ctx, fleet)
}

// mutate applies fn to a copy of the bus under its lock and commits the copy
// with a single Save. fn must validate before changing anything. If ctx ends
// before the save, nothing is written. The lock only covers this process, so
// a Save that lost to another writer is retried on a fresh read; fn may run
// more than once. When fn returns errSkipWrite the bus is returned as read
// and wrote is false.
func (s *BusService) mutate(ctx context.Context, id int64, fn func(*domain.Bus) error) (bus *domain.Bus, wrote bool, err error) {
	if id <= 0 {
		return nil, false, fmt.Errorf("%w: id %d", domain.ErrUnknownBus, id)
	}
	if err := ctxErr(ctx); err != nil {
		return nil, false, err
	}

	release, err := s.locks.acquire(ctx, id)
	if err != nil {
		return nil, false, err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		bus, err = s.buses.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if err := fn(bus); err != nil {
			if errors.Is(err, errSkipWrite) {
				return bus, false, nil
			}
			return nil, false, err
		}
		bus.UpdatedAt = s.now()

		if err := ctxErr(ctx); err != nil {
			return nil, false, err
		}
		err = s.buses.Save(ctx, bus)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrStaleWrite) || attempt == maxWriteAttempts {
			return nil, false, err
		}
		metrics.BusUpdates.WithLabelValues("save", "retry").Inc()
		slog.DebugContext(ctx, "bus changed concurrently, retrying", "bus_id", id, "attempt", attempt)
	}

	s.invalidate(ctx)
	s.publish(ctx, bus)
	return bus, true, nil
}

func (s *BusService) invalidate(ctx context.Context) {
	s.listGen.Add(1)
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(context.WithoutCancel(ctx), busListCacheKey); err != nil {
		slog.WarnContext(ctx, "bus list cache invalidation failed", "error", err)
	}
}

func (s *BusService) publish(ctx context.Context, bus *domain.Bus) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishBusUpdated(context.WithoutCancel(ctx), bus); err != nil {
		slog.WarnContext(ctx, "publish bus update failed", "bus_id", bus.ID, "error", err)
	}
}

func (s *BusService) fail(span trace.Span, op string, err error) error {
	metrics.BusUpdates.WithLabelValues(op, resultLabel(err)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownBus):
		return "unknown_bus"
	case errors.Is(err, domain.ErrInvalidStatus):
		return "invalid_status"
	case errors.Is(err, domain.ErrInvalidSeats):
		return "invalid_seats"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	}
	return "error"
}
