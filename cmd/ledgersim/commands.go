package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/catalog"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/metrics"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/ops"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/random"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/simulation"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/storage"
	"github.com/andresuchdata/retail-ledger/backend-go/pkg/logger"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func requireDB(e *env) error {
	if e.db == nil {
		return fmt.Errorf("this command needs PostgreSQL")
	}
	return nil
}

func runMigrate(c *cli.Context) error {
	e := envFrom(c)
	if err := requireDB(e); err != nil {
		return err
	}

	applied, err := postgres.Migrate(c.Context, e.db)
	if err != nil {
		return err
	}
	fmt.Printf("%d migration(s) applied\n", len(applied))
	return nil
}

func runSeedCatalog(c *cli.Context) error {
	e := envFrom(c)
	if err := requireDB(e); err != nil {
		return err
	}

	snap, err := catalog.LoadDir(c.String("data-dir"))
	if err != nil {
		return err
	}

	err = e.db.WithTx(c.Context, func(tx *sqlx.Tx) error {
		return snap.Seed(c.Context, repository.NewIngestRepository(tx))
	})
	if err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	invalidateReports(c.Context, e)
	fmt.Println("Catalog seeding completed successfully!")
	return nil
}

func runReset(c *cli.Context) error {
	e := envFrom(c)
	if err := e.repo.Reset(c.Context); err != nil {
		return fmt.Errorf("failed to reset ledger: %w", err)
	}
	invalidateReports(c.Context, e)
	fmt.Println("Ledger reset: all purchases and sales deleted, stock zeroed")
	return nil
}

func runSimulate(c *cli.Context) error {
	e := envFrom(c)
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := e.cfg.Simulation
	if c.IsSet("seed") {
		sim.Seed = c.Uint64("seed")
	}

	if !c.Bool("no-reset") {
		if err := e.repo.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset ledger: %w", err)
		}
		log.Info().Msg("ledger reset before simulation")
	}

	registry := metrics.NewRegistry()
	if addr := c.String("metrics-addr"); addr != "" {
		var pinger ops.Pinger
		if e.db != nil {
			pinger = e.db
		}
		srv := ops.NewServer(addr, ops.NewRouter(pinger, registry.Handler()))
		srv.Start()
		defer func() {
			if err := srv.Shutdown(); err != nil {
				log.Warn().Err(err).Msg("ops server shutdown")
			}
		}()
	}

	scheduler := simulation.NewScheduler(e.repo, sim,
		simulation.WithRuns(e.runs),
		simulation.WithRecorder(registry),
		simulation.WithLogger(logger.Component("simulation")),
	)
	report, runErr := scheduler.Run(ctx)

	fmt.Print(report.Summary())
	publishReport(ctx, e, report, c.String("report-dir"))
	invalidateReports(ctx, e)

	if errors.Is(runErr, domain.ErrInterrupted) {
		return nil
	}
	return runErr
}

// publishReport writes the CSV report, uploads it when storage is enabled and
// caches the run record. Every step only logs on failure.
func publishReport(ctx context.Context, e *env, report *simulation.Report, dir string) {
	ctx = context.WithoutCancel(ctx)

	path, err := writeReport(report, dir)
	if err != nil {
		log.Warn().Err(err).Msg("could not write run report")
		return
	}
	log.Info().Str("path", path).Msg("run report written")

	if e.cfg.Storage.Enabled {
		client, err := storage.NewMinioClient(ctx, e.cfg.Storage)
		if err != nil {
			log.Warn().Err(err).Msg("report storage unavailable")
		} else if _, err := storage.NewReportArchive(client, e.cfg.Storage.Prefix).UploadFile(ctx, report.FinishedAt, path); err != nil {
			log.Warn().Err(err).Msg("could not upload run report")
		}
	}

	if report.RunID != 0 {
		run := &domain.Run{
			ID:            report.RunID,
			Kind:          "simulation",
			Status:        report.Status.RunStatus(),
			Seed:          report.Seed,
			DaysProcessed: report.InitialDays + report.SalesDays,
			Purchases:     report.Purchases,
			Sales:         report.Sales,
			Lines:         report.PurchaseLines + report.SaleLines,
			SkippedLines:  report.SkippedTotal(),
			StartedAt:     report.StartedAt,
			CompletedAt:   &report.FinishedAt,
		}
		if report.Err != nil {
			msg := report.Err.Error()
			run.ErrorMessage = &msg
		}
		if err := e.cache.PutLastRun(ctx, run); err != nil {
			log.Warn().Err(err).Msg("could not cache run")
		}
	}
}

func writeReport(report *simulation.Report, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed creating %s: %w", dir, err)
	}

	name := fmt.Sprintf("run-%s.csv", report.StartedAt.UTC().Format("20060102-150405"))
	if report.RunID != 0 {
		name = fmt.Sprintf("run-%d.csv", report.RunID)
	}
	path := filepath.Join(dir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed creating %s: %w", path, err)
	}
	defer file.Close()

	if err := report.WriteCSV(file); err != nil {
		return "", err
	}
	return path, nil
}

// newEvents seeds single-event bookings from --seed or the clock.
func newEvents(c *cli.Context, e *env) *simulation.Events {
	seed := uint64(time.Now().UnixNano())
	if c.IsSet("seed") {
		seed = c.Uint64("seed")
	}
	log.Debug().Uint64("seed", seed).Msg("event generator seeded")
	return simulation.NewEvents(e.repo, e.cfg.Simulation, random.New(seed), logger.Component("events"))
}

func bookingTime(c *cli.Context) time.Time {
	if at := c.Timestamp("at"); at != nil {
		return *at
	}
	return time.Now()
}

func runRestock(c *cli.Context) error {
	e := envFrom(c)
	res, outcome, err := newEvents(c, e).RestockBelowThreshold(c.Context, bookingTime(c))
	if err != nil {
		return err
	}
	if !outcome.Committed {
		return fmt.Errorf("restock aborted: %w", outcome.Reason)
	}

	fmt.Printf("Restock committed: %d purchase(s) created, %d reused, %d line(s) booked\n",
		len(res.Created), len(res.Reused), res.Booked())
	for reason, n := range res.Skipped() {
		fmt.Printf("  skipped %s: %d\n", reason, n)
	}
	for _, line := range res.Lines {
		if line.Reason == domain.SkipNoSupplierOffer {
			fmt.Printf("  no supplier offer for article %d\n", line.ArticleID)
		}
	}

	invalidateReports(c.Context, e)
	return nil
}

func runSale(c *cli.Context) error {
	return runEvents(c, "sale", func(ev *simulation.Events, at time.Time) (simulation.EventResult, error) {
		return ev.BookRandomSale(c.Context, at)
	})
}

func runPurchase(c *cli.Context) error {
	return runEvents(c, "purchase", func(ev *simulation.Events, at time.Time) (simulation.EventResult, error) {
		return ev.BookRandomPurchase(c.Context, at)
	})
}

// runEvents books --count events. An aborted event is reported and the next one still runs.
func runEvents(c *cli.Context, kind string, book func(*simulation.Events, time.Time) (simulation.EventResult, error)) error {
	e := envFrom(c)
	ev := newEvents(c, e)
	at := bookingTime(c)

	committed := 0
	for i := 0; i < c.Int("count"); i++ {
		res, err := book(ev, at)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d: %s\n", kind, i+1, res.Outcome)
		for _, line := range res.Lines {
			if line.IsSkipped() {
				fmt.Printf("  %s\n", line)
			}
		}
		if res.Outcome.Committed {
			committed++
		}
	}

	if committed > 0 {
		invalidateReports(c.Context, e)
	}
	fmt.Printf("%d of %d %s(s) committed\n", committed, c.Int("count"), kind)
	return nil
}

func runStatus(c *cli.Context) error {
	e := envFrom(c)

	var run *domain.Run
	if id := c.Int64("id"); id != 0 {
		if err := requireDB(e); err != nil {
			return err
		}
		found, err := postgres.NewRunRepository(e.db).GetRun(c.Context, id)
		if err != nil {
			return err
		}
		run = found
	} else {
		cached, ok, err := e.cache.LastRun(c.Context)
		if err != nil {
			return err
		}
		if ok {
			run = cached
		} else if e.db != nil {
			latest, err := postgres.NewRunRepository(e.db).LatestRun(c.Context)
			if err != nil {
				return err
			}
			run = latest
		}
	}

	if run == nil {
		fmt.Println("No run found")
		return nil
	}

	fmt.Printf("Run %d (%s): %s\n", run.ID, run.Kind, run.Status.Label())
	fmt.Printf("  seed:       %d\n", run.Seed)
	fmt.Printf("  started:    %s\n", run.StartedAt.Format(time.RFC3339))
	if run.CompletedAt != nil {
		fmt.Printf("  completed:  %s\n", run.CompletedAt.Format(time.RFC3339))
	}
	fmt.Printf("  days:       %d\n", run.DaysProcessed)
	fmt.Printf("  purchases:  %d\n", run.Purchases)
	fmt.Printf("  sales:      %d\n", run.Sales)
	fmt.Printf("  lines:      %d (%d skipped)\n", run.Lines, run.SkippedLines)
	if run.ErrorMessage != nil {
		fmt.Printf("  error:      %s\n", *run.ErrorMessage)
	}
	return nil
}
