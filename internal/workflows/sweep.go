package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// SweepInput selects which tracked buses count as stale.
type SweepInput struct {
	StaleMinutes int
	// Status restricts the sweep to one bus status. Empty means any.
	Status string
	// DryRun lists stale buses without clearing them.
	DryRun bool
}

// StaleScan is what FindStaleBuses saw: the cutoff it applied and the buses
// that were older than it.
type StaleScan struct {
	Before time.Time
	BusIDs []int64
}

// ClearRequest asks to clear one bus if it is still older than Before.
type ClearRequest struct {
	BusID  int64
	Before time.Time
}

// SweepResult summarises one sweep. Skipped counts buses that reported
// between the scan and their clear.
type SweepResult struct {
	Found   int
	Cleared int
	Skipped int
	Failed  []int64
}

// StaleSweepWorkflow stops tracking every bus whose location has not been
// refreshed for StaleMinutes. Each bus is cleared by its own activity so one
// failure does not hold back the rest.
func StaleSweepWorkflow(ctx workflow.Context, input SweepInput) (SweepResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting stale sweep", "staleMinutes", input.StaleMinutes, "status", input.Status)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeInvalidSweep},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var result SweepResult

	// Step 1: find stale buses
	var scan StaleScan
	if err := workflow.ExecuteActivity(ctx, "FindStaleBuses", input).Get(ctx, &scan); err != nil {
		return result, err
	}
	ids := scan.BusIDs
	result.Found = len(ids)
	if input.DryRun || len(ids) == 0 {
		logger.Info("Stale sweep finished", "found", result.Found, "dryRun", input.DryRun)
		return result, nil
	}

	// Step 2: clear each one that is still stale
	futures := make([]workflow.Future, len(ids))
	for i, id := range ids {
		futures[i] = workflow.ExecuteActivity(ctx, "ClearBusLocation", ClearRequest{BusID: id, Before: scan.Before})
	}
	for i, f := range futures {
		var cleared bool
		if err := f.Get(ctx, &cleared); err != nil {
			logger.Warn("clear failed", "busID", ids[i], "error", err)
			result.Failed = append(result.Failed, ids[i])
			continue
		}
		if cleared {
			result.Cleared++
		} else {
			result.Skipped++
		}
	}

	logger.Info("Stale sweep finished", "found", result.Found, "cleared", result.Cleared,
		"skipped", result.Skipped, "failed", len(result.Failed))
	return result, nil
}
