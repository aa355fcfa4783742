package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/usecases"
)

// ErrTypeInvalidSweep marks sweep input that no retry can fix.
const ErrTypeInvalidSweep = "InvalidSweep"

// HousekeepingActivities holds the activity implementations for the stale sweep.
type HousekeepingActivities struct {
	Buses *usecases.BusService
	// Now defaults to time.Now.
	Now func() time.Time
}

func (a *HousekeepingActivities) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// FindStaleBuses returns the IDs of tracked buses last updated more than
// input.StaleMinutes ago, together with the cutoff used.
func (a *HousekeepingActivities) FindStaleBuses(ctx context.Context, input SweepInput) (StaleScan, error) {
	if input.StaleMinutes <= 0 {
		return StaleScan{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("stale minutes must be positive, got %d", input.StaleMinutes), ErrTypeInvalidSweep, nil)
	}
	filter := usecases.StaleFilter{
		Before: a.now().Add(-time.Duration(input.StaleMinutes) * time.Minute),
	}
	if input.Status != "" {
		st, err := domain.ParseBusStatus(input.Status)
		if err != nil {
			return StaleScan{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidSweep, err)
		}
		filter.Status = &st
	}

	buses, err := a.Buses.ListStale(ctx, filter)
	if err != nil {
		return StaleScan{}, fmt.Errorf("list stale buses: %w", err)
	}
	scan := StaleScan{Before: filter.Before, BusIDs: make([]int64, len(buses))}
	for i, b := range buses {
		scan.BusIDs[i] = b.ID
	}
	return scan, nil
}

// ClearBusLocation stops tracking one bus unless it reported after
// req.Before, and says whether it cleared anything. A bus deleted since the
// scan is treated as already cleared.
func (a *HousekeepingActivities) ClearBusLocation(ctx context.Context, req ClearRequest) (bool, error) {
	bus, cleared, err := a.Buses.ClearLocationIfStale(ctx, req.BusID, req.Before)
	if errors.Is(err, domain.ErrUnknownBus) {
		slog.Warn("stale bus vanished before clear", "bus_id", req.BusID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("clear bus %d: %w", req.BusID, err)
	}
	if !cleared {
		slog.Info("bus reported since scan, kept", "bus_id", bus.ID, "code", bus.Code)
		return false, nil
	}
	slog.Info("cleared stale location", "bus_id", bus.ID, "code", bus.Code)
	return true, nil
}
