// Package simulation drives the multi-year purchase and sale history: an
// initial stocking phase followed by daily customer sales with predictive restocking.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/booking"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/config"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/ledger"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/pricing"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/random"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/replenish"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
	"github.com/rs/zerolog"
)

const NoteInitialStock = "Initial stock fill"

// Recorder receives committed batch totals, for example to export metrics.
type Recorder interface {
	RecordBatch(c Counters, elapsed time.Duration)
	RecordRun(status Status)
}

type noopRecorder struct{}

func (noopRecorder) RecordBatch(Counters, time.Duration) {}
func (noopRecorder) RecordRun(Status)                    {}

type Option func(*Scheduler)

// WithRuns persists a run record for every Run.
func WithRuns(runs repository.RunRepository) Option {
	return func(s *Scheduler) {
		s.runs = runs
	}
}

func WithRecorder(rec Recorder) Option {
	return func(s *Scheduler) {
		if rec != nil {
			s.recorder = rec
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

// Scheduler runs a full simulation against a ledger repository. All randomness
// comes from one generator seeded per run, so equal seeds on equally reset
// stores produce equal histories.
type Scheduler struct {
	repo     repository.LedgerRepository
	runs     repository.RunRepository
	cfg      config.SimulationConfig
	recorder Recorder
	log      zerolog.Logger
}

func NewScheduler(repo repository.LedgerRepository, cfg config.SimulationConfig, opts ...Option) *Scheduler {
	s := &Scheduler{
		repo:     repo,
		cfg:      cfg,
		recorder: noopRecorder{},
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// engine holds the run-scoped caches and collaborators. It lives for one Run.
type engine struct {
	cfg       config.SimulationConfig
	rng       *random.Rand
	offers    *replenish.OfferBook
	builder   *booking.Builder
	resolver  *pricing.Resolver
	policy    *replenish.Policy
	articles  []int64
	customers []domain.Customer
}

func newEngine(ctx context.Context, repo repository.CatalogRepository, cfg config.SimulationConfig, log zerolog.Logger) (*engine, error) {
	rng := random.New(cfg.Seed)

	articles, err := repo.ListArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load articles: %w", err)
	}
	customers, err := repo.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}
	offers, err := replenish.LoadOfferBook(ctx, repo)
	if err != nil {
		return nil, err
	}
	prices, err := pricing.LoadPriceBook(ctx, repo)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	sort.Slice(customers, func(i, j int) bool { return customers[i].ID < customers[j].ID })

	stock := ledger.New(log)
	builder := booking.NewBuilder(stock, log, booking.WithInvoiceNumbers(func(int64, time.Time) string {
		return fmt.Sprintf("INV-%05d", rng.Between(10000, 99999))
	}))
	policy := replenish.NewPolicy(offers, builder, stock, rng, replenish.Config{
		Quantity:    cfg.RestockQuantity,
		LeadMinutes: cfg.RestockLeadMinutes,
	}, log)

	return &engine{
		cfg:       cfg,
		rng:       rng,
		offers:    offers,
		builder:   builder,
		resolver:  pricing.NewResolver(prices, stock, cfg.FallbackMarkup),
		policy:    policy,
		articles:  ids,
		customers: customers,
	}, nil
}

// Run executes both phases. The returned report is always non-nil. The error
// wraps domain.ErrInterrupted when ctx was cancelled, and is the cause of the
// abort otherwise.
func (s *Scheduler) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		Seed:           s.cfg.Seed,
		StartedAt:      time.Now(),
		TotalSalesDays: daysBetween(s.cfg.SalesStart, s.cfg.SalesEnd),
	}

	if err := s.cfg.Validate(); err != nil {
		return s.finish(ctx, report, nil, fmt.Errorf("invalid simulation config: %w", err))
	}

	run := s.startRun(ctx)
	if run != nil {
		report.RunID = run.ID
	}

	eng, err := newEngine(ctx, s.repo, s.cfg, s.log)
	if err != nil {
		return s.finish(ctx, report, run, err)
	}

	s.log.Info().
		Uint64("seed", s.cfg.Seed).
		Int("articles", len(eng.articles)).
		Int("customers", len(eng.customers)).
		Int("replenishable", len(eng.offers.Articles())).
		Msg("simulation started")

	if err := s.initialStocking(ctx, eng, report); err != nil {
		return s.finish(ctx, report, run, err)
	}
	if err := s.dailySales(ctx, eng, report); err != nil {
		return s.finish(ctx, report, run, err)
	}

	return s.finish(ctx, report, run, nil)
}

func (s *Scheduler) initialStocking(ctx context.Context, eng *engine, report *Report) error {
	pool := eng.offers.Articles()
	if len(pool) == 0 {
		s.log.Warn().Msg("no article has a supplier offer, initial stocking skipped")
		return nil
	}

	for day := s.cfg.InitialStart; !day.After(s.cfg.InitialEnd); day = day.AddDate(0, 0, 1) {
		var batch Counters
		started := time.Now()

		err := s.repo.WithTx(ctx, func(tx repository.LedgerTx) error {
			return s.stockDay(ctx, tx, eng, pool, day, &batch)
		})
		if err != nil {
			return fmt.Errorf("initial stocking %s: %w", day.Format(time.DateOnly), err)
		}

		s.commit(report, batch, day, time.Since(started))
		report.InitialDays++
		s.log.Info().
			Str("day", day.Format(time.DateOnly)).
			Int("purchases", batch.Purchases).
			Int("lines", batch.PurchaseLines).
			Msg("initial stock committed")
	}
	return nil
}

// stockDay buys a large quantity of a random third of the replenishable
// articles, one purchase per supplier in first-appearance order.
func (s *Scheduler) stockDay(ctx context.Context, tx repository.LedgerTx, eng *engine, pool []int64, day time.Time, c *Counters) error {
	when := eng.rng.Clock(day, s.cfg.StoreOpenHour, s.cfg.StoreCloseHour)
	eng.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	n := len(pool) / 3
	if n < 10 {
		n = 10
	}
	if n > len(pool) {
		n = len(pool)
	}

	var order []int64
	plan := make(map[int64][]booking.PurchaseItem)
	for _, articleID := range pool[:n] {
		offer := random.Pick(eng.rng, eng.offers.ForArticle(articleID))
		qty := eng.rng.Between(s.cfg.InitialQuantity.Min, s.cfg.InitialQuantity.Max)
		if _, ok := plan[offer.SupplierID]; !ok {
			order = append(order, offer.SupplierID)
		}
		plan[offer.SupplierID] = append(plan[offer.SupplierID], booking.PurchaseItem{
			ArticleID: articleID,
			Quantity:  qty,
			UnitPrice: offer.UnitPrice,
		})
	}

	for _, supplierID := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := eng.builder.BookPurchase(ctx, tx, supplierID, when, NoteInitialStock, plan[supplierID])
		if err != nil {
			return err
		}
		c.Purchases++
		c.PurchaseLines += len(doc.Lines)
	}
	return nil
}

func (s *Scheduler) dailySales(ctx context.Context, eng *engine, report *Report) error {
	if len(eng.articles) == 0 || len(eng.customers) == 0 {
		s.log.Warn().Msg("no articles or customers, daily sales skipped")
		return nil
	}

	schedule := BuildSchedule(eng.rng, s.cfg.SalesStart, s.cfg.SalesEnd, eng.customers, s.cfg.WeeklyVisits)

	dayIndex := 0
	for first := s.cfg.SalesStart; !first.After(s.cfg.SalesEnd); {
		var (
			batch   Counters
			last    time.Time
			inBatch int
		)
		started := time.Now()

		err := s.repo.WithTx(ctx, func(tx repository.LedgerTx) error {
			for day := first; !day.After(s.cfg.SalesEnd) && inBatch < s.cfg.CommitEveryDays; day = day.AddDate(0, 0, 1) {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := s.salesDay(ctx, tx, eng, schedule, day, &batch); err != nil {
					return fmt.Errorf("sales day %s: %w", day.Format(time.DateOnly), err)
				}
				last = day
				inBatch++
			}
			return nil
		})
		if err != nil {
			return err
		}

		s.commit(report, batch, last, time.Since(started))
		for i := 0; i < inBatch; i++ {
			dayIndex++
			report.SalesDays++
			if dayIndex%s.cfg.ProgressEveryDays == 0 || dayIndex == report.TotalSalesDays {
				s.log.Info().
					Int("day", dayIndex).
					Int("total", report.TotalSalesDays).
					Str("date", first.AddDate(0, 0, i).Format(time.DateOnly)).
					Int("sales", report.Sales).
					Int("restocks", report.Restocks).
					Msg("committed")
			}
		}
		first = last.AddDate(0, 0, 1)
	}
	return nil
}

func (s *Scheduler) salesDay(ctx context.Context, tx repository.LedgerTx, eng *engine, schedule *Schedule, day time.Time, c *Counters) error {
	for _, customer := range eng.customers {
		if !schedule.Active(customer.ID, day) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.customerSale(ctx, tx, eng, customer, day, c); err != nil {
			return fmt.Errorf("customer %d: %w", customer.ID, err)
		}
	}
	return nil
}

func (s *Scheduler) customerSale(ctx context.Context, tx repository.LedgerTx, eng *engine, customer domain.Customer, day time.Time, c *Counters) error {
	rule := s.cfg.Rule(customer.Tier)

	n := eng.rng.Between(rule.Items.Min, rule.Items.Max)
	n = domain.IntRange{Min: 1, Max: len(eng.articles)}.Clamp(n)
	when := eng.rng.Clock(day, s.cfg.StoreOpenHour, s.cfg.StoreCloseHour)
	chosen := random.SampleOf(eng.rng, eng.articles, n)

	items := make([]booking.SaleItem, 0, len(chosen))
	for _, articleID := range chosen {
		qty := eng.rng.Between(rule.Quantity.Min, rule.Quantity.Max)

		needed := qty
		if needed < s.cfg.RestockThreshold {
			needed = s.cfg.RestockThreshold
		}
		out, err := eng.policy.MaybeRestock(ctx, tx, articleID, needed, when)
		if err != nil {
			return err
		}
		if out.Restocked() {
			c.Restocks++
			c.Purchases++
			c.PurchaseLines += len(out.Purchase.Lines)
		} else if out.Line != nil && out.Line.IsSkipped() {
			c.skip(out.Line.Reason)
		}

		quote, err := eng.resolver.Resolve(ctx, tx, articleID, when)
		if err != nil {
			return err
		}
		if quote.Source == pricing.SourceFallback {
			c.FallbackPrices++
		}

		items = append(items, booking.SaleItem{
			ArticleID:   articleID,
			Quantity:    qty,
			UnitPrice:   pricing.SalePrice(quote.Price, customer.DiscountPct),
			DiscountPct: customer.DiscountPct,
		})
	}

	receipt, err := eng.builder.BookSale(ctx, tx, customer.ID, when, items)
	if err != nil {
		return err
	}
	c.Sales++
	c.SaleLines += len(receipt.Document.Lines)
	c.ClampedUnits += receipt.ClampedUnits
	return nil
}

func (s *Scheduler) commit(report *Report, batch Counters, day time.Time, elapsed time.Duration) {
	report.Merge(batch)
	report.LastCommittedDay = day
	s.recorder.RecordBatch(batch, elapsed)
}

func (s *Scheduler) startRun(ctx context.Context) *domain.Run {
	if s.runs == nil {
		return nil
	}
	run := &domain.Run{
		Kind:      "simulation",
		Status:    domain.RunProcessing,
		Seed:      s.cfg.Seed,
		StartedAt: time.Now(),
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		s.log.Warn().Err(err).Msg("could not record simulation run")
		return nil
	}
	return run
}

func (s *Scheduler) finish(ctx context.Context, report *Report, run *domain.Run, err error) (*Report, error) {
	report.FinishedAt = time.Now()

	switch {
	case err == nil:
		report.Status = StatusCompleted
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		report.Status = StatusInterrupted
		err = fmt.Errorf("%w: %v", domain.ErrInterrupted, err)
	default:
		report.Status = StatusAborted
	}
	report.Err = err

	s.recorder.RecordRun(report.Status)

	if run != nil {
		run.Status = report.Status.RunStatus()
		run.DaysProcessed = report.InitialDays + report.SalesDays
		run.Purchases = report.Purchases
		run.Sales = report.Sales
		run.Lines = report.PurchaseLines + report.SaleLines
		run.SkippedLines = report.SkippedTotal()
		completed := report.FinishedAt
		run.CompletedAt = &completed
		if err != nil {
			msg := err.Error()
			run.ErrorMessage = &msg
		}
		if uerr := s.runs.UpdateRun(context.WithoutCancel(ctx), run); uerr != nil {
			s.log.Warn().Err(uerr).Int64("run_id", run.ID).Msg("could not update simulation run")
		}
	}

	event := s.log.Info()
	if report.Status == StatusAborted {
		event = s.log.Error().Err(err)
	}
	event.
		Str("status", string(report.Status)).
		Int("sales_days", report.SalesDays).
		Int("purchases", report.Purchases).
		Int("sales", report.Sales).
		Msg("simulation finished")

	return report, err
}

func daysBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours()/24) + 1
}
