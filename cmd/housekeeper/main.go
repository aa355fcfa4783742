package main

import (
	"context"
	"errors"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/bootstrap"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/config"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/logging"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/workflows"
)

const scheduleID = "byahero-stale-sweep"

func main() {
	cfg, err := config.Load("byahero-housekeeper")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup("byahero-housekeeper", cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()
	svc := bootstrap.NewServices(ctx, cfg, store.Repo, nil, nil)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if err := ensureSchedule(ctx, c, cfg); err != nil {
		log.Fatalf("schedule: %v", err)
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.StaleSweepWorkflow)
	w.RegisterActivity(&workflows.HousekeepingActivities{Buses: svc.Buses})

	slog.Info("housekeeper worker started", "queue", cfg.Temporal.TaskQueue, "cron", cfg.Housekeeping.Cron)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// ensureSchedule registers the periodic sweep. An existing schedule is left
// as it is so operators can pause it from the Temporal UI.
func ensureSchedule(ctx context.Context, c client.Client, cfg *config.Config) error {
	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: scheduleID,
		Spec: client.ScheduleSpec{
			CronExpressions: []string{cfg.Housekeeping.Cron},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        scheduleID + "-run",
			Workflow:  workflows.StaleSweepWorkflow,
			Args:      []interface{}{workflows.SweepInput{
				StaleMinutes: cfg.Housekeeping.StaleMinutes,
				Status:       cfg.Housekeeping.Status,
			}},
			TaskQueue: cfg.Temporal.TaskQueue,
		},
	})
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		slog.Info("stale sweep schedule already registered", "id", scheduleID)
		return nil
	}
	return err
}
