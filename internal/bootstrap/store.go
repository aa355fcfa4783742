// Package bootstrap wires configuration into the adapters every binary needs.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/adapters/memory"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/adapters/postgres"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/adapters/redis"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/adapters/sqlite"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/ports"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/config"
)

// Store is an opened bus repository plus whatever must be closed with it.
type Store struct {
	Repo   ports.BusRepository
	Driver string

	// PG is set only for the postgres driver.
	PG *postgres.DB

	closers []func()
}

// Close releases the underlying connections in reverse order.
func (s *Store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// OpenStore opens the repository selected by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	s := &Store{Driver: cfg.Store.Driver}

	switch cfg.Store.Driver {
	case config.DriverMemory:
		s.Repo = memory.NewBusRepo()

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		s.closers = append(s.closers, func() { _ = db.Close() })
		s.Repo = sqlite.NewBusRepo(db)

	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		s.closers = append(s.closers, db.Close)
		s.PG = db
		s.Repo = postgres.NewBusRepo(db)

	case config.DriverRedis:
		rdb, err := redis.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		s.closers = append(s.closers, func() { _ = rdb.Close() })
		s.Repo = redis.NewBusRepo(rdb)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	slog.Info("bus store opened", "driver", cfg.Store.Driver)
	return s, nil
}

// WriteTimeout returns the per-mutation deadline from cfg.
func WriteTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.WriteDeadline <= 0 {
		return 2 * time.Second
	}
	return time.Duration(cfg.Server.WriteDeadline) * time.Millisecond
}
