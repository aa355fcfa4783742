package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/usecases"
)

func openTestRepo(t *testing.T) *BusRepo {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "byahero.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBusRepo(db)
}

func TestBusRepo_RoundTripsLocation(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	bus := &domain.Bus{Code: "BUS-001", SeatsTotal: 40, SeatsAvailable: 40, Status: domain.StatusAvailable}
	if err := repo.Create(ctx, bus); err != nil {
		t.Fatal(err)
	}
	if bus.ID != 1 {
		t.Fatalf("expected id 1, got %d", bus.ID)
	}

	bus.Route = "Tanauan - Laurel"
	bus.SeatsAvailable = 12
	bus.Status = domain.StatusOnStop
	bus.UpdatedAt = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	bus.Location = &domain.BusLocation{
		Point: domain.GeoPoint{Lat: 14.0931, Lon: 121.0233},
		Name:  "Laurel",
		Properties: domain.Properties{
			{Key: "speed", Value: 30.0},
			{Key: domain.PropLocationName, Value: "Laurel"},
		},
	}
	if err := repo.Save(ctx, bus); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Route != "Tanauan - Laurel" || got.SeatsAvailable != 12 || got.Status != domain.StatusOnStop {
		t.Errorf("fields not stored: %+v", got)
	}
	if !got.UpdatedAt.Equal(bus.UpdatedAt) {
		t.Errorf("updated_at %v, want %v", got.UpdatedAt, bus.UpdatedAt)
	}
	if got.Location == nil || got.Location.Name != "Laurel" || got.Location.Point != bus.Location.Point {
		t.Fatalf("location not stored: %+v", got.Location)
	}
	if got.Location.Properties[0].Key != "speed" {
		t.Errorf("property order lost: %+v", got.Location.Properties)
	}

	got.Location = nil
	if err := repo.Save(ctx, got); err != nil {
		t.Fatal(err)
	}
	cleared, _ := repo.Get(ctx, 1)
	if cleared.Location != nil {
		t.Error("expected location cleared")
	}
}

func TestBusRepo_Errors(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	if err := repo.Create(ctx, &domain.Bus{Code: "BUS-001", Status: domain.StatusAvailable}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, &domain.Bus{Code: "BUS-001", Status: domain.StatusAvailable}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	if _, err := repo.Get(ctx, 5); !errors.Is(err, domain.ErrUnknownBus) {
		t.Errorf("expected ErrUnknownBus, got %v", err)
	}
	if err := repo.Save(ctx, &domain.Bus{ID: 5, Code: "X", Status: domain.StatusAvailable}); !errors.Is(err, domain.ErrUnknownBus) {
		t.Errorf("expected ErrUnknownBus on save, got %v", err)
	}
}

func TestBusRepo_ListOrderAndCount(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	for _, code := range []string{"BUS-003", "BUS-001", "BUS-002"} {
		if err := repo.Create(ctx, &domain.Bus{Code: code, Status: domain.StatusAvailable}); err != nil {
			t.Fatal(err)
		}
	}
	buses, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(buses) != 3 || buses[0].Code != "BUS-001" || buses[2].Code != "BUS-003" {
		t.Errorf("unexpected order %+v", buses)
	}
	if n, _ := repo.Count(ctx); n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Error(err)
	}
}

func TestBusRepo_SaveRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	if err := repo.Create(ctx, &domain.Bus{Code: "BUS-001", SeatsTotal: 40, SeatsAvailable: 40, Status: domain.StatusAvailable}); err != nil {
		t.Fatal(err)
	}

	first, _ := repo.Get(ctx, 1)
	second, _ := repo.Get(ctx, 1)

	first.SeatsAvailable = 10
	if err := repo.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	if first.Version != 2 {
		t.Errorf("expected version 2 after save, got %d", first.Version)
	}

	second.Status = domain.StatusFull
	err := repo.Save(ctx, second)
	if !errors.Is(err, domain.ErrStaleWrite) || !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrStaleWrite, got %v", err)
	}

	got, _ := repo.Get(ctx, 1)
	if got.SeatsAvailable != 10 || got.Status != domain.StatusAvailable || got.Version != 2 {
		t.Errorf("stale save leaked through: %+v", got)
	}
}

// interleavedRepo runs between once, right after the first Get, the way a
// second process might write between our read and our save.
type interleavedRepo struct {
	*BusRepo
	once    sync.Once
	between func()
}

func (r *interleavedRepo) Get(ctx context.Context, id int64) (*domain.Bus, error) {
	b, err := r.BusRepo.Get(ctx, id)
	r.once.Do(r.between)
	return b, err
}

func TestBusService_TwoProcessesOnOneDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "byahero.db")
	open := func() *BusRepo {
		db, err := Open(ctx, path)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { db.Close() })
		return NewBusRepo(db)
	}

	apiRepo := open()
	if err := apiRepo.Create(ctx, &domain.Bus{Code: "BUS-001", SeatsTotal: 40, SeatsAvailable: 40, Status: domain.StatusAvailable}); err != nil {
		t.Fatal(err)
	}
	api := usecases.NewBusService(apiRepo, usecases.NewResolveService(nil), nil, nil)

	ingestRepo := &interleavedRepo{BusRepo: open(), between: func() {
		if _, err := api.SetSeatsAvailable(ctx, 1, 5); err != nil {
			t.Error(err)
		}
	}}
	ingestor := usecases.NewBusService(ingestRepo, usecases.NewResolveService(nil), nil, nil)

	pt := domain.GeoPoint{Lat: 14.0931, Lon: 121.0233}
	if _, err := ingestor.ReportLocation(ctx, domain.LocationReport{BusID: 1, Point: pt}); err != nil {
		t.Fatal(err)
	}

	got, err := apiRepo.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.SeatsAvailable != 5 {
		t.Errorf("seats change from the other process was lost: %d", got.SeatsAvailable)
	}
	if got.Location == nil || got.Location.Point != pt {
		t.Errorf("location report was lost: %+v", got.Location)
	}
	if got.Version != 3 {
		t.Errorf("expected two committed writes, version %d", got.Version)
	}
}
