package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/infra"
	"github.com/xela07ax/integrationhub/internal/repository"
	"github.com/xela07ax/integrationhub/internal/seed"
)

func main() {
	cmd := &cli.Command{
		Name:  "seed",
		Usage: "Generate mock integrations and metrics for the dashboard",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "integrations",
				Usage:   "Number of integrations to create",
				Value:   10,
				Sources: cli.EnvVars("SEED_INTEGRATIONS"),
			},
			&cli.IntFlag{
				Name:    "metrics",
				Usage:   "Metrics per integration",
				Value:   100,
				Sources: cli.EnvVars("SEED_METRICS"),
			},
			&cli.DurationFlag{
				Name:  "span",
				Usage: "Spread metric timestamps over this trailing period",
				Value: 30 * 24 * time.Hour,
			},
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "Delete existing integrations (and their metrics) first",
			},
			&cli.IntFlag{
				Name:  "seed",
				Usage: "Random seed, 0 picks one from the clock",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Database.Driver == "memory" {
		logger.Warn("seeding the in-memory store has no lasting effect")
	}

	store, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	rndSeed := uint64(c.Int("seed"))
	if rndSeed == 0 {
		rndSeed = uint64(time.Now().UnixNano())
	}

	res, err := seed.NewGenerator(store, rndSeed, logger).Run(ctx, seed.Options{
		Integrations:          int(c.Int("integrations")),
		MetricsPerIntegration: int(c.Int("metrics")),
		Span:                  c.Duration("span"),
		Reset:                 c.Bool("reset"),
	})
	if err != nil {
		return err
	}

	logger.Info("seed complete",
		zap.Int("integrations", res.Integrations),
		zap.Int("metrics", res.Metrics),
		zap.Uint64("seed", rndSeed),
	)
	return nil
}
