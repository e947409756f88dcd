package main

import (
	"context"
	"fmt"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/cache"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/catalog"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/config"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository/memory"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository/postgres"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

type envKey struct{}

// env is what a command's Before hook prepares for its Action.
type env struct {
	cfg   *config.Config
	db    *postgres.DB
	repo  repository.LedgerRepository
	runs  repository.RunRepository
	cache cache.ReportCache
}

func envFrom(c *cli.Context) *env {
	e, _ := c.Context.Value(envKey{}).(*env)
	return e
}

// openStore connects the ledger store for the command: PostgreSQL by default,
// an in-memory store seeded from --data-dir with --memory.
func openStore(c *cli.Context) error {
	cfg := config.Load()
	e := &env{cfg: cfg}

	if c.Bool("memory") {
		store := memory.NewStore()
		snap, err := catalog.LoadDir(c.String("data-dir"))
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		if err := snap.Seed(c.Context, store); err != nil {
			return fmt.Errorf("failed to seed in-memory store: %w", err)
		}
		e.repo, e.runs = store, store
		e.cache = cache.NewNoopReportCache()
		log.Info().Str("data_dir", c.String("data-dir")).Msg("using in-memory ledger")
	} else {
		dbCfg := cfg.Database
		if url := c.String("db-url"); url != "" {
			dbCfg.URL = url
		}
		db, err := postgres.NewDB(&dbCfg)
		if err != nil {
			return err
		}
		e.db = db
		e.repo = postgres.NewLedgerRepository(db)
		e.runs = postgres.NewRunRepository(db)

		reportCache, err := cache.NewReportCache(cfg.Cache)
		if err != nil {
			log.Warn().Err(err).Msg("report cache unavailable, continuing without it")
			reportCache = cache.NewNoopReportCache()
		}
		e.cache = reportCache
	}

	c.Context = context.WithValue(c.Context, envKey{}, e)
	return nil
}

func closeStore(c *cli.Context) error {
	if e := envFrom(c); e != nil && e.db != nil {
		return e.db.Close()
	}
	return nil
}

// invalidateReports drops cached reports after the ledger changed. Failures are logged only.
func invalidateReports(ctx context.Context, e *env) {
	if err := e.cache.InvalidateAll(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("could not invalidate report cache")
	}
}
