package main

import (
	"os"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/config"
	"github.com/andresuchdata/retail-ledger/backend-go/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string (overrides DB_* settings)",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func newMemoryFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "memory",
		Usage: "Run against an in-memory ledger seeded from --data-dir instead of PostgreSQL",
	}
}

func newDataDirFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "data-dir",
		Usage:   "Directory containing the catalog CSV files",
		Value:   "./data/catalog",
		EnvVars: []string{"APP_DATA_DIR"},
	}
}

func newSeedFlag() *cli.Uint64Flag {
	return &cli.Uint64Flag{
		Name:  "seed",
		Usage: "Random seed (defaults to SIM_SEED for simulate, to the clock for single events)",
	}
}

func newAtFlag() *cli.TimestampFlag {
	return &cli.TimestampFlag{
		Name:   "at",
		Usage:  "Booking time, for example 2024-05-02T10:30:00 (defaults to now)",
		Layout: "2006-01-02T15:04:05",
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{newDBURLFlag(), newMemoryFlag(), newDataDirFlag()}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	app := &cli.App{
		Name:  "ledgersim",
		Usage: "Inventory ledger and replenishment simulation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg := config.Load()
			level := cfg.Log.Level
			if c.IsSet("log-level") {
				level = c.String("log-level")
			}
			logger.SetLevel(level)
			log.Logger = logger.Log
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply the embedded schema migrations",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: openStore,
				After:  closeStore,
				Action: runMigrate,
			},
			{
				Name:  "seed",
				Usage: "Seed reference data",
				Subcommands: []*cli.Command{
					{
						Name:   "catalog",
						Usage:  "Upsert articles, suppliers, offers, price list, tiers and customers from CSV",
						Flags:  []cli.Flag{newDBURLFlag(), newDataDirFlag()},
						Before: openStore,
						After:  closeStore,
						Action: runSeedCatalog,
					},
				},
			},
			{
				Name:   "reset",
				Usage:  "Delete all purchases and sales and zero every stock position",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: openStore,
				After:  closeStore,
				Action: runReset,
			},
			{
				Name:  "simulate",
				Usage: "Simulate the initial stocking and the daily sales history",
				Flags: append(storeFlags(),
					newSeedFlag(),
					&cli.BoolFlag{
						Name:  "no-reset",
						Usage: "Keep existing documents and stock instead of resetting first",
					},
					&cli.StringFlag{
						Name:    "report-dir",
						Usage:   "Directory the run report CSV is written to",
						Value:   "./data/reports",
						EnvVars: []string{"APP_REPORT_DIR"},
					},
					&cli.StringFlag{
						Name:    "metrics-addr",
						Usage:   "Serve /health and /metrics on this address while running",
						EnvVars: []string{"METRICS_ADDR"},
					},
				),
				Before: openStore,
				After:  closeStore,
				Action: runSimulate,
			},
			{
				Name:   "restock",
				Usage:  "Restock every article below the batch threshold, one purchase per supplier",
				Flags:  append(storeFlags(), newSeedFlag(), newAtFlag()),
				Before: openStore,
				After:  closeStore,
				Action: runRestock,
			},
			{
				Name:  "sale",
				Usage: "Book random sales",
				Flags: append(storeFlags(), newSeedFlag(), newAtFlag(),
					&cli.IntFlag{Name: "count", Usage: "Number of sales to book", Value: 1},
				),
				Before: openStore,
				After:  closeStore,
				Action: runSale,
			},
			{
				Name:  "purchase",
				Usage: "Book random purchases",
				Flags: append(storeFlags(), newSeedFlag(), newAtFlag(),
					&cli.IntFlag{Name: "count", Usage: "Number of purchases to book", Value: 1},
				),
				Before: openStore,
				After:  closeStore,
				Action: runPurchase,
			},
			{
				Name:  "status",
				Usage: "Show a recorded run (the latest run when --id is omitted)",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.Int64Flag{Name: "id", Usage: "Run id"},
				},
				Before: openStore,
				After:  closeStore,
				Action: runStatus,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("ledgersim failed")
		os.Exit(1)
	}
}
