package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

const uniqueViolation = "23505"

const busColumns = `id, code, route, seats_total, seats_available, status, current_location, updated_at, version`

// BusRepo implements ports.BusRepository with pgx.
type BusRepo struct {
	db *DB
}

// NewBusRepo creates a new BusRepo.
func NewBusRepo(db *DB) *BusRepo {
	return &BusRepo{db: db}
}

// Create inserts a bus and assigns its id.
func (r *BusRepo) Create(ctx context.Context, b *domain.Bus) error {
	loc, lat, lng, name, err := locationColumns(b.Location)
	if err != nil {
		return err
	}
	err = r.db.Pool.QueryRow(ctx, `
		INSERT INTO buses (code, route, seats_total, seats_available, status,
		                   lat, lng, current_location_name, current_location, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, version
	`, b.Code, b.Route, b.SeatsTotal, b.SeatsAvailable, string(b.Status),
		lat, lng, name, loc, b.UpdatedAt).Scan(&b.ID, &b.Version)
	if err != nil {
		return mapError(err, b.Code)
	}
	return nil
}

// Get returns a bus by id.
func (r *BusRepo) Get(ctx context.Context, id int64) (*domain.Bus, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+busColumns+` FROM buses WHERE id = $1`, id)
	b, err := scanBus(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrUnknownBus, id)
	}
	if err != nil {
		return nil, mapError(err, "")
	}
	return b, nil
}

// Save writes every mutable column in a single UPDATE that only applies while
// the stored version still matches b.Version.
func (r *BusRepo) Save(ctx context.Context, b *domain.Bus) error {
	loc, lat, lng, name, err := locationColumns(b.Location)
	if err != nil {
		return err
	}
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE buses
		SET code = $2, route = $3, seats_total = $4, seats_available = $5, status = $6,
		    lat = $7, lng = $8, current_location_name = $9, current_location = $10,
		    updated_at = $11, version = version + 1
		WHERE id = $1 AND version = $12
	`, b.ID, b.Code, b.Route, b.SeatsTotal, b.SeatsAvailable, string(b.Status),
		lat, lng, name, loc, b.UpdatedAt, b.Version)
	if err != nil {
		return mapError(err, b.Code)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM buses WHERE id = $1)`, b.ID).Scan(&exists); err != nil {
			return mapError(err, "")
		}
		if !exists {
			return fmt.Errorf("%w: id %d", domain.ErrUnknownBus, b.ID)
		}
		return fmt.Errorf("%w: id %d", domain.ErrStaleWrite, b.ID)
	}
	b.Version++
	return nil
}

// List returns all buses ordered by code.
func (r *BusRepo) List(ctx context.Context) ([]domain.Bus, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+busColumns+` FROM buses ORDER BY code`)
	if err != nil {
		return nil, mapError(err, "")
	}
	defer rows.Close()

	var buses []domain.Bus
	for rows.Next() {
		b, err := scanBus(rows)
		if err != nil {
			return nil, err
		}
		buses = append(buses, *b)
	}
	return buses, rows.Err()
}

func (r *BusRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM buses`).Scan(&n); err != nil {
		return 0, mapError(err, "")
	}
	return n, nil
}

func (r *BusRepo) Ping(ctx context.Context) error {
	if err := r.db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func scanBus(row pgx.Row) (*domain.Bus, error) {
	var (
		b      domain.Bus
		status string
		loc    []byte
	)
	if err := row.Scan(&b.ID, &b.Code, &b.Route, &b.SeatsTotal, &b.SeatsAvailable, &status, &loc, &b.UpdatedAt, &b.Version); err != nil {
		return nil, err
	}
	b.Status = domain.BusStatus(status)
	if len(loc) > 0 {
		var l domain.BusLocation
		if err := json.Unmarshal(loc, &l); err != nil {
			return nil, fmt.Errorf("bus %d location: %w", b.ID, err)
		}
		b.Location = &l
	}
	return &b, nil
}

// locationColumns flattens a location into the stored feature plus the
// lat, lng and name columns kept for ad hoc queries.
func locationColumns(l *domain.BusLocation) (loc []byte, lat, lng *float64, name *string, err error) {
	if l == nil {
		return nil, nil, nil, nil, nil
	}
	loc, err = json.Marshal(l)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode location: %w", err)
	}
	la, ln, n := l.Point.Lat, l.Point.Lon, l.Name
	return loc, &la, &ln, &n, nil
}

func mapError(err error, code string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: bus code %q exists", domain.ErrConflict, code)
	}
	if pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}
