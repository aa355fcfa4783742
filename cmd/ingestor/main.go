package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natsadapter "github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/adapters/nats"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/adapters/valkey"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/bootstrap"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/ports"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/usecases"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/config"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/logging"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/telemetry"
)

// The ingestor consumes location reports published by conductor devices on
// byahero.reports.<bus_id> and applies them through the bus service.
func main() {
	cfg, err := config.Load("byahero-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("byahero-ingestor", cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, "byahero-ingestor", cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		vc, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer vc.Close()
			cache = vc
		}
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	svc := bootstrap.NewServices(ctx, cfg, store.Repo, pub, cache)
	timeout := bootstrap.WriteTimeout(cfg)

	handle := func(ctx context.Context, busID int64, data []byte) error {
		report, err := usecases.DecodeLocationReport(data, busID)
		if err != nil {
			slog.Warn("dropping undecodable report", "bus_id", busID, "error", err)
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		res, err := svc.Buses.ReportLocation(ctx, report)
		if err != nil {
			slog.Warn("report failed", "bus_id", report.BusID, "error", err)
			return err
		}
		slog.Debug("report applied", "bus_id", res.Bus.ID, "location", res.LocationName, "resolution", res.Resolution)
		return nil
	}

	if err := sub.SubscribeReports(ctx, handle); err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	slog.Info("ingestor started", "subject", natsadapter.SubjectReports, "store", store.Driver)

	<-ctx.Done()
	slog.Info("ingestor stopping")
}
