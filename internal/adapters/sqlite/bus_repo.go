package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
)

const busColumns = `id, code, route, current_location, seats_total, seats_available, status, updated_at, version`

// BusRepo implements ports.BusRepository on SQLite.
type BusRepo struct {
	db *sql.DB
}

// NewBusRepo creates a new BusRepo.
func NewBusRepo(db *sql.DB) *BusRepo {
	return &BusRepo{db: db}
}

func (r *BusRepo) Create(ctx context.Context, b *domain.Bus) error {
	loc, name, err := encodeLocation(b.Location)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO buses (code, route, current_location, current_location_name,
		                   seats_total, seats_available, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Code, b.Route, loc, name, b.SeatsTotal, b.SeatsAvailable, string(b.Status), formatTime(b.UpdatedAt))
	if err != nil {
		return mapError(err, b.Code)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return mapError(err, b.Code)
	}
	b.ID = id
	b.Version = 1
	return nil
}

func (r *BusRepo) Get(ctx context.Context, id int64) (*domain.Bus, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+busColumns+` FROM buses WHERE id = ?`, id)
	b, err := scanBus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrUnknownBus, id)
	}
	if err != nil {
		return nil, mapError(err, "")
	}
	return b, nil
}

// Save writes the whole record with one UPDATE statement guarded by the
// version read earlier.
func (r *BusRepo) Save(ctx context.Context, b *domain.Bus) error {
	loc, name, err := encodeLocation(b.Location)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE buses
		SET code = ?, route = ?, current_location = ?, current_location_name = ?,
		    seats_total = ?, seats_available = ?, status = ?, updated_at = ?,
		    version = version + 1
		WHERE id = ? AND version = ?`,
		b.Code, b.Route, loc, name, b.SeatsTotal, b.SeatsAvailable, string(b.Status), formatTime(b.UpdatedAt),
		b.ID, b.Version)
	if err != nil {
		return mapError(err, b.Code)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err, b.Code)
	}
	if n == 0 {
		return r.missedSave(ctx, b.ID)
	}
	b.Version++
	return nil
}

// missedSave tells a deleted bus apart from one saved by someone else.
func (r *BusRepo) missedSave(ctx context.Context, id int64) error {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM buses WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: id %d", domain.ErrUnknownBus, id)
	}
	if err != nil {
		return mapError(err, "")
	}
	return fmt.Errorf("%w: id %d", domain.ErrStaleWrite, id)
}

func (r *BusRepo) List(ctx context.Context) ([]domain.Bus, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+busColumns+` FROM buses ORDER BY code ASC`)
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
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM buses`).Scan(&n); err != nil {
		return 0, mapError(err, "")
	}
	return n, nil
}

func (r *BusRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBus(row scanner) (*domain.Bus, error) {
	var (
		b       domain.Bus
		route   sql.NullString
		loc     sql.NullString
		status  string
		updated sql.NullString
	)
	if err := row.Scan(&b.ID, &b.Code, &route, &loc, &b.SeatsTotal, &b.SeatsAvailable, &status, &updated, &b.Version); err != nil {
		return nil, err
	}
	b.Route = route.String
	b.Status = domain.BusStatus(status)
	b.UpdatedAt = parseTime(updated.String)

	// Rows written by older tools may carry a location that is not a point
	// feature; those read as "no location" rather than failing the list.
	if loc.Valid && strings.TrimSpace(loc.String) != "" {
		var l domain.BusLocation
		if err := json.Unmarshal([]byte(loc.String), &l); err == nil {
			b.Location = &l
		}
	}
	return &b, nil
}

func encodeLocation(l *domain.BusLocation) (loc, name sql.NullString, err error) {
	if l == nil {
		return loc, name, nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return loc, name, fmt.Errorf("encode location: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, sql.NullString{String: l.Name, Valid: true}, nil
}

// Timestamps are stored as RFC 3339 text; CURRENT_TIMESTAMP defaults use
// SQLite's "YYYY-MM-DD HH:MM:SS" form.
func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func mapError(err error, code string) error {
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return fmt.Errorf("%w: bus code %q exists", domain.ErrConflict, code)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}
