package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/bootstrap"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/config"
	"github.com/sijey-CJAA/ByaHero-Prototype-V3/internal/pkg/logging"
)

func main() {
	app := &cli.App{
		Name:  "busctl",
		Usage: "ByaHero fleet administration",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of tables"},
		},
		Before: func(c *cli.Context) error {
			logging.Setup("byahero-busctl", "warn", "text")
			return nil
		},
		Commands: []*cli.Command{
			seedCommand(),
			inspectCommand(),
			clearCommand(),
			resolveCommand(),
			geofencesCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// withServices loads configuration, opens the store and builds the core
// services for the duration of fn.
func withServices(c *cli.Context, fn func(ctx context.Context, cfg *config.Config, svc *bootstrap.Services) error) error {
	cfg, err := config.Load("byahero-busctl")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx := c.Context
	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, cfg, bootstrap.NewServices(ctx, cfg, store.Repo, nil, nil))
}
