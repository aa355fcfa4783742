package workflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/adapters/memory"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/ports"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/usecases"
)

var now = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type failingSaveRepo struct {
	ports.BusRepository
	failID int64
}

func (r *failingSaveRepo) Save(ctx context.Context, b *domain.Bus) error {
	if b.ID == r.failID {
		return domain.ErrStoreUnavailable
	}
	return r.BusRepository.Save(ctx, b)
}

// fleet creates BUS-001 (stale, available), BUS-002 (stale, full),
// BUS-003 (fresh) and BUS-004 (never tracked).
func fleet(t *testing.T) *memory.BusRepo {
	t.Helper()
	repo := memory.NewBusRepo()
	loc := &domain.BusLocation{Point: domain.GeoPoint{Lat: 14.0931, Lon: 121.0233}, Name: "Laurel"}
	buses := []*domain.Bus{
		{Code: "BUS-001", Status: domain.StatusAvailable, Location: loc, UpdatedAt: now.Add(-2 * time.Hour)},
		{Code: "BUS-002", Status: domain.StatusFull, Location: loc, UpdatedAt: now.Add(-45 * time.Minute)},
		{Code: "BUS-003", Status: domain.StatusAvailable, Location: loc, UpdatedAt: now.Add(-5 * time.Minute)},
		{Code: "BUS-004", Status: domain.StatusAvailable, UpdatedAt: now.Add(-24 * time.Hour)},
	}
	for _, b := range buses {
		if err := repo.Create(context.Background(), b); err != nil {
			t.Fatal(err)
		}
	}
	return repo
}

func activities(repo ports.BusRepository) *HousekeepingActivities {
	svc := usecases.NewBusService(repo, usecases.NewResolveService(nil), nil, nil)
	return &HousekeepingActivities{Buses: svc, Now: func() time.Time { return now }}
}

func TestFindStaleBuses(t *testing.T) {
	acts := activities(fleet(t))
	ctx := context.Background()

	scan, err := acts.FindStaleBuses(ctx, SweepInput{StaleMinutes: 30})
	if err != nil {
		t.Fatal(err)
	}
	if ids := scan.BusIDs; len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("expected [1 2], got %v", ids)
	}
	if !scan.Before.Equal(now.Add(-30 * time.Minute)) {
		t.Errorf("unexpected cutoff %v", scan.Before)
	}

	scan, err = acts.FindStaleBuses(ctx, SweepInput{StaleMinutes: 30, Status: "full"})
	if err != nil {
		t.Fatal(err)
	}
	if ids := scan.BusIDs; len(ids) != 1 || ids[0] != 2 {
		t.Errorf("status filter: expected [2], got %v", ids)
	}

	if _, err := acts.FindStaleBuses(ctx, SweepInput{StaleMinutes: 0}); err == nil {
		t.Error("expected error for zero threshold")
	}
	if _, err := acts.FindStaleBuses(ctx, SweepInput{StaleMinutes: 5, Status: "parked"}); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestClearBusLocation_UnknownBusIsDone(t *testing.T) {
	acts := activities(fleet(t))
	cleared, err := acts.ClearBusLocation(context.Background(), ClearRequest{BusID: 99, Before: now})
	if err != nil || cleared {
		t.Errorf("expected nothing to do for vanished bus, got %v, %v", cleared, err)
	}
}

func TestClearBusLocation_KeepsBusThatReportedAfterScan(t *testing.T) {
	repo := fleet(t)
	acts := activities(repo)
	ctx := context.Background()

	scan, err := acts.FindStaleBuses(ctx, SweepInput{StaleMinutes: 30})
	if err != nil {
		t.Fatal(err)
	}
	fresh := domain.GeoPoint{Lat: 14.0935, Lon: 121.0240}
	if _, err := acts.Buses.ReportLocation(ctx, domain.LocationReport{BusID: 1, Point: fresh}); err != nil {
		t.Fatal(err)
	}

	for _, id := range scan.BusIDs {
		cleared, err := acts.ClearBusLocation(ctx, ClearRequest{BusID: id, Before: scan.Before})
		if err != nil {
			t.Fatal(err)
		}
		if want := id != 1; cleared != want {
			t.Errorf("bus %d: cleared=%v, want %v", id, cleared, want)
		}
	}

	b, _ := repo.Get(ctx, 1)
	if b.Location == nil || b.Location.Point != fresh || b.Status != domain.StatusAvailable {
		t.Errorf("fresh report was lost: %+v", b)
	}
}

func TestStaleSweepWorkflow(t *testing.T) {
	repo := fleet(t)
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(StaleSweepWorkflow)
	env.RegisterActivity(activities(repo))

	env.ExecuteWorkflow(StaleSweepWorkflow, SweepInput{StaleMinutes: 30})
	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatal(err)
	}
	var res SweepResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatal(err)
	}
	if res.Found != 2 || res.Cleared != 2 || res.Skipped != 0 || len(res.Failed) != 0 {
		t.Errorf("unexpected result %+v", res)
	}

	for id, tracked := range map[int64]bool{1: false, 2: false, 3: true} {
		b, _ := repo.Get(context.Background(), id)
		if (b.Location != nil) != tracked {
			t.Errorf("bus %d: tracked=%v, want %v", id, b.Location != nil, tracked)
		}
		if !tracked && b.Status != domain.StatusUnavailable {
			t.Errorf("bus %d: expected unavailable, got %s", id, b.Status)
		}
	}
}

func TestStaleSweepWorkflow_DryRun(t *testing.T) {
	repo := fleet(t)
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(StaleSweepWorkflow)
	env.RegisterActivity(activities(repo))

	env.ExecuteWorkflow(StaleSweepWorkflow, SweepInput{StaleMinutes: 30, DryRun: true})
	var res SweepResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatal(err)
	}
	if res.Found != 2 || res.Cleared != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if b, _ := repo.Get(context.Background(), 1); b.Location == nil {
		t.Error("dry run must not clear")
	}
}

func TestStaleSweepWorkflow_SkipsBusThatReportedAfterScan(t *testing.T) {
	repo := fleet(t)
	acts := activities(repo)
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(StaleSweepWorkflow)
	env.RegisterActivity(acts)

	// Bus 2 reports once the scan has completed.
	env.SetOnActivityCompletedListener(func(info *activity.Info, _ converter.EncodedValue, _ error) {
		if info.ActivityType.Name != "FindStaleBuses" {
			return
		}
		if _, err := acts.Buses.ReportLocation(context.Background(), domain.LocationReport{
			BusID: 2, Point: domain.GeoPoint{Lat: 14.0935, Lon: 121.0240},
		}); err != nil {
			t.Error(err)
		}
	})

	env.ExecuteWorkflow(StaleSweepWorkflow, SweepInput{StaleMinutes: 30})
	var res SweepResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatal(err)
	}
	if res.Found != 2 || res.Cleared != 1 || res.Skipped != 1 || len(res.Failed) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if b, _ := repo.Get(context.Background(), 2); b.Location == nil || b.Status != domain.StatusFull {
		t.Errorf("bus 2 should still be tracked: %+v", b)
	}
}

func TestStaleSweepWorkflow_PartialFailure(t *testing.T) {
	repo := &failingSaveRepo{BusRepository: fleet(t), failID: 2}
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(StaleSweepWorkflow)
	env.RegisterActivity(activities(repo))

	env.ExecuteWorkflow(StaleSweepWorkflow, SweepInput{StaleMinutes: 30})
	var res SweepResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatal(err)
	}
	if res.Cleared != 1 || len(res.Failed) != 1 || res.Failed[0] != 2 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestStaleSweepWorkflow_InvalidInputFails(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(StaleSweepWorkflow)
	env.RegisterActivity(activities(fleet(t)))

	env.ExecuteWorkflow(StaleSweepWorkflow, SweepInput{StaleMinutes: -1})
	err := env.GetWorkflowError()
	if err == nil {
		t.Fatal("expected workflow error")
	}
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || appErr.Type() != ErrTypeInvalidSweep {
		t.Errorf("expected %s application error, got %v", ErrTypeInvalidSweep, err)
	}
}
