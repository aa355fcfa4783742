package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/adapters/geofence"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/bootstrap"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/domain"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/core/usecases"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/config"
)

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create fleet buses whose code does not exist yet",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Usage: "fleet YAML (defaults to fleet.seed_file)"},
		},
		Action: func(c *cli.Context) error {
			return withServices(c, func(ctx context.Context, cfg *config.Config, svc *bootstrap.Services) error {
				path := c.String("file")
				if path == "" {
					path = cfg.Fleet.SeedFile
				}
				fleet, err := config.LoadFleet(path)
				if err != nil {
					return err
				}
				n, err := svc.Buses.Seed(ctx, fleet)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "created %d of %d buses\n", n, len(fleet))
				return nil
			})
		},
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Show every bus and its last location",
		Action: func(c *cli.Context) error {
			return withServices(c, func(ctx context.Context, _ *config.Config, svc *bootstrap.Services) error {
				buses, err := svc.Buses.List(ctx)
				if err != nil {
					return err
				}
				return printBuses(c.App.Writer, buses, c.Bool("json"))
			})
		},
	}
}

type clearOptions struct {
	BusID        int64
	All          bool
	StaleMinutes int
	Status       string
	Force        bool
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Stop tracking buses (dry run unless --force)",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "bus-id", Usage: "clear one bus"},
			&cli.BoolFlag{Name: "all", Usage: "clear every tracked bus"},
			&cli.IntFlag{Name: "stale-minutes", Usage: "clear buses not updated for this many minutes"},
			&cli.StringFlag{Name: "status", Usage: "only buses with this status"},
			&cli.BoolFlag{Name: "force", Usage: "actually clear"},
		},
		Action: func(c *cli.Context) error {
			opts := clearOptions{
				BusID:        c.Int64("bus-id"),
				All:          c.Bool("all"),
				StaleMinutes: c.Int("stale-minutes"),
				Status:       c.String("status"),
				Force:        c.Bool("force"),
			}
			return withServices(c, func(ctx context.Context, _ *config.Config, svc *bootstrap.Services) error {
				return runClear(ctx, c.App.Writer, svc.Buses, opts, time.Now())
			})
		},
	}
}

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve a coordinate against the geofence files",
		ArgsUsage: "<lat> <lng>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("usage: busctl resolve <lat> <lng>")
			}
			lat, errLat := strconv.ParseFloat(c.Args().Get(0), 64)
			lng, errLng := strconv.ParseFloat(c.Args().Get(1), 64)
			if errLat != nil || errLng != nil {
				return errors.New("lat and lng must be numbers")
			}
			pt := domain.GeoPoint{Lat: lat, Lon: lng}
			if err := pt.Validate(); err != nil {
				return err
			}
			cfg, err := config.Load("byahero-busctl")
			if err != nil {
				return err
			}
			set, _ := geofence.LoadDirs(c.Context, cfg.Geofence.Dirs, cfg.Geofence.Extensions, nil)
			res := usecases.NewResolveService(nil).Resolve(c.Context, pt, set)
			return printResolution(c.App.Writer, res, c.Bool("json"))
		},
	}
}

func geofencesCommand() *cli.Command {
	return &cli.Command{
		Name:  "geofences",
		Usage: "Load the geofence directories and print statistics",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load("byahero-busctl")
			if err != nil {
				return err
			}
			set, stats := geofence.LoadDirs(c.Context, cfg.Geofence.Dirs, cfg.Geofence.Extensions, nil)
			if c.Bool("json") {
				return writeJSON(c.App.Writer, stats)
			}
			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "dirs\t%v\n", cfg.Geofence.Dirs)
			fmt.Fprintf(w, "files\t%d (skipped %d)\n", stats.Files, stats.Skipped)
			fmt.Fprintf(w, "features\t%d (areas %d)\n", stats.Features, stats.Areas)
			fmt.Fprintf(w, "load time\t%s\n", stats.Duration)
			if err := w.Flush(); err != nil {
				return err
			}
			for _, f := range set.Features {
				name, _ := f.Properties.DisplayName()
				fmt.Fprintf(c.App.Writer, "  #%d %-30s %s\n", f.Index, name, f.SourceID)
			}
			return nil
		},
	}
}

// runClear picks the buses selected by opts and clears them when opts.Force
// is set; otherwise it only lists them.
func runClear(ctx context.Context, w io.Writer, buses *usecases.BusService, opts clearOptions, now time.Time) error {
	var (
		targets []domain.Bus
		cutoff  time.Time
	)
	switch {
	case opts.BusID > 0:
		b, err := buses.Get(ctx, opts.BusID)
		if err != nil {
			return err
		}
		targets = []domain.Bus{*b}
	case opts.All || opts.StaleMinutes > 0:
		filter := usecases.StaleFilter{Before: now}
		if opts.StaleMinutes > 0 {
			filter.Before = now.Add(-time.Duration(opts.StaleMinutes) * time.Minute)
			cutoff = filter.Before
		} else {
			// Anything tracked at all.
			filter.Before = now.Add(time.Hour)
		}
		if opts.Status != "" {
			st, err := domain.ParseBusStatus(opts.Status)
			if err != nil {
				return err
			}
			filter.Status = &st
		}
		var err error
		if targets, err = buses.ListStale(ctx, filter); err != nil {
			return err
		}
	default:
		return errors.New("one of --bus-id, --all or --stale-minutes is required")
	}

	if len(targets) == 0 {
		fmt.Fprintln(w, "nothing to clear")
		return nil
	}
	if !opts.Force {
		fmt.Fprintf(w, "would clear %d bus(es), rerun with --force:\n", len(targets))
		for _, b := range targets {
			fmt.Fprintf(w, "  %s (id %d)\n", b.Code, b.ID)
		}
		return nil
	}

	var failed int
	for _, b := range targets {
		cleared := true
		var err error
		if cutoff.IsZero() {
			_, err = buses.ClearLocation(ctx, b.ID)
		} else {
			// A bus that reported since the listing is no longer stale.
			_, cleared, err = buses.ClearLocationIfStale(ctx, b.ID, cutoff)
		}
		if err != nil {
			fmt.Fprintf(w, "  %s: %v\n", b.Code, err)
			failed++
			continue
		}
		if !cleared {
			fmt.Fprintf(w, "  kept %s, reported since listing\n", b.Code)
			continue
		}
		fmt.Fprintf(w, "  cleared %s\n", b.Code)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d clears failed", failed, len(targets))
	}
	return nil
}

func printBuses(w io.Writer, buses []domain.Bus, asJSON bool) error {
	if asJSON {
		return writeJSON(w, buses)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCODE\tROUTE\tSEATS\tSTATUS\tLOCATION\tUPDATED")
	for _, b := range buses {
		loc := "-"
		if b.Location != nil {
			loc = fmt.Sprintf("%s (%.5f, %.5f)", b.Location.Name, b.Location.Point.Lat, b.Location.Point.Lon)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d/%d\t%s\t%s\t%s\n",
			b.ID, b.Code, b.Route, b.SeatsAvailable, b.SeatsTotal, b.Status, loc, b.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func printResolution(w io.Writer, res domain.Resolution, asJSON bool) error {
	if asJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "kind: %s (checked %d features)\n", res.Kind, res.Checked)
	if res.Match != nil {
		name := res.Match.Name
		if !res.Match.Named {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "matched: #%d %s from %s\n", res.Match.Feature.Index, name, res.Match.Feature.SourceID)
		return nil
	}
	for _, cand := range res.Candidates {
		fmt.Fprintf(w, "  #%d %-30s %8.0f m  %s\n", cand.Feature.Index, cand.Name, cand.DistanceMeters, cand.Feature.SourceID)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
