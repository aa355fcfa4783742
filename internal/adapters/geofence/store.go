package geofence

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/metrics"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/telemetry"
)

// Store holds the current FeatureSet. Readers get an immutable snapshot;
// Reload builds a new set and swaps it in. The filesystem is never watched.
type Store struct {
	dirs    []string
	exts    []string
	logger  *slog.Logger
	current atomic.Pointer[domain.FeatureSet]
	last    atomic.Pointer[LoadStats]
	version atomic.Uint64
	group   singleflight.Group
}

// NewStore creates a store with an empty snapshot. Call Reload to populate it.
func NewStore(dirs, exts []string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{dirs: dirs, exts: exts, logger: logger.With("component", "geofence")}
	s.current.Store(&domain.FeatureSet{})
	return s
}

// NewStaticStore wraps an already built set. Useful for tools and tests.
func NewStaticStore(set *domain.FeatureSet) *Store {
	s := NewStore(nil, nil, nil)
	if set != nil {
		s.current.Store(set)
		s.version.Store(set.Version)
	}
	return s
}

// Current returns the snapshot in effect right now.
func (s *Store) Current() *domain.FeatureSet {
	return s.current.Load()
}

// LastStats returns the stats of the most recent reload, if any.
func (s *Store) LastStats() (LoadStats, bool) {
	st := s.last.Load()
	if st == nil {
		return LoadStats{}, false
	}
	return *st, true
}

// Dirs returns the configured source directories in scan order.
func (s *Store) Dirs() []string {
	return append([]string(nil), s.dirs...)
}

// Reload rescans the source directories. Concurrent calls share one load.
// A cancelled context aborts before the swap and leaves the old set in place.
func (s *Store) Reload(ctx context.Context) (LoadStats, error) {
	v, err, shared := s.group.Do("reload", func() (any, error) {
		ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanReload)
		defer span.End()

		start := time.Now()
		set, stats := LoadDirs(ctx, s.dirs, s.exts, s.logger)
		if err := ctx.Err(); err != nil {
			return LoadStats{}, err
		}

		set.Version = s.version.Add(1)
		stats.Version = set.Version
		s.current.Store(set)
		s.last.Store(&stats)

		metrics.FeaturesLoaded.Set(float64(stats.Features))
		metrics.FeatureFilesSkipped.Add(float64(stats.Skipped))
		metrics.FeatureReloadDuration.Observe(time.Since(start).Seconds())

		s.logger.Info("geofences loaded",
			"version", stats.Version,
			"dirs", stats.Dirs,
			"files", stats.Files,
			"skipped", stats.Skipped,
			"features", stats.Features,
			"areas", stats.Areas,
			"duration", stats.Duration.String(),
		)
		return stats, nil
	})
	if err != nil {
		return LoadStats{}, err
	}
	if shared {
		s.logger.Debug("reload coalesced")
	}
	return v.(LoadStats), nil
}
