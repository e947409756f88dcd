package simulation

import (
	"context"
	"errors"
	"fmt"
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

const NoteManualPurchase = "Auto-Generated"

// EventResult is the outcome of one single-event booking. A failed event is
// reported through Outcome and leaves nothing behind.
type EventResult struct {
	Outcome  domain.TxOutcome
	Lines    []domain.LineResult
	Sale     *domain.SaleDocument
	Purchase *domain.PurchaseDocument
	Customer *domain.Customer
	Supplier *domain.Supplier
}

// Events books one random sale or purchase per call, each in its own transaction.
type Events struct {
	repo    repository.LedgerRepository
	cfg     config.SimulationConfig
	rng     *random.Rand
	stock   *ledger.StockLedger
	builder *booking.Builder
	log     zerolog.Logger
}

func NewEvents(repo repository.LedgerRepository, cfg config.SimulationConfig, rng *random.Rand, log zerolog.Logger) *Events {
	stock := ledger.New(log)
	return &Events{
		repo:  repo,
		cfg:   cfg,
		rng:   rng,
		stock: stock,
		builder: booking.NewBuilder(stock, log, booking.WithInvoiceNumbers(func(int64, time.Time) string {
			return fmt.Sprintf("INV-%05d", rng.Between(10000, 99999))
		})),
		log: log,
	}
}

// BookRandomSale sells up to a tier-dependent number of random in-stock
// articles to a random customer. Quantities never exceed stock and every line
// needs a list price or a prior cost. The returned error is reserved for
// failures outside the transaction.
func (e *Events) BookRandomSale(ctx context.Context, at time.Time) (EventResult, error) {
	customers, err := e.repo.ListCustomers(ctx)
	if err != nil {
		return EventResult{}, fmt.Errorf("failed to load customers: %w", err)
	}
	if len(customers) == 0 {
		return EventResult{}, fmt.Errorf("no customers in catalog")
	}
	prices, err := pricing.LoadPriceBook(ctx, e.repo)
	if err != nil {
		return EventResult{}, err
	}
	resolver := pricing.NewResolver(prices, e.stock, e.cfg.FallbackMarkup)

	customer := random.Pick(e.rng, customers)
	rule := e.cfg.Rule(customer.Tier)
	maxItems := e.rng.Between(rule.Items.Min, rule.Items.Max)

	res := EventResult{Customer: &customer}
	err = e.repo.WithTx(ctx, func(tx repository.LedgerTx) error {
		res.Lines = nil

		inStock, err := tx.ArticlesInStock(ctx)
		if err != nil {
			return fmt.Errorf("failed to list stock: %w", err)
		}

		var items []booking.SaleItem
		for _, level := range random.SampleOf(e.rng, inStock, maxItems) {
			if level.Quantity <= 0 {
				res.Lines = append(res.Lines, domain.Skipped(level.ArticleID, domain.SkipNoStock, ""))
				continue
			}
			qty := e.rng.Between(rule.Quantity.Min, rule.Quantity.Max)
			if qty > level.Quantity {
				qty = level.Quantity
			}

			quote, err := resolver.ResolveListed(ctx, tx, level.ArticleID, at)
			if errors.Is(err, domain.ErrNoPrice) {
				res.Lines = append(res.Lines, domain.Skipped(level.ArticleID, domain.SkipNoPrice, ""))
				return err
			}
			if err != nil {
				return err
			}

			items = append(items, booking.SaleItem{
				ArticleID:   level.ArticleID,
				Quantity:    qty,
				UnitPrice:   pricing.SalePrice(quote.Price, customer.DiscountPct),
				DiscountPct: customer.DiscountPct,
			})
			res.Lines = append(res.Lines, domain.Booked(level.ArticleID))
		}

		receipt, err := e.builder.BookSale(ctx, tx, customer.ID, at, items)
		if err != nil {
			return err
		}
		res.Sale = receipt.Document
		return nil
	})

	res.Outcome = outcome(err)
	if err != nil {
		res.Sale = nil
		e.log.Warn().Err(err).Int64("customer_id", customer.ID).Msg("sale aborted")
	} else {
		e.log.Info().
			Int64("sale_id", res.Sale.ID).
			Int64("customer_id", customer.ID).
			Str("tier", string(customer.Tier)).
			Int("lines", len(res.Sale.Lines)).
			Msg("sale created")
	}
	return res, nil
}

// BookRandomPurchase buys 10..100 units of a few random offers of a random supplier.
func (e *Events) BookRandomPurchase(ctx context.Context, at time.Time) (EventResult, error) {
	suppliers, err := e.repo.ListSuppliers(ctx)
	if err != nil {
		return EventResult{}, fmt.Errorf("failed to load suppliers: %w", err)
	}
	if len(suppliers) == 0 {
		return EventResult{}, fmt.Errorf("no suppliers in catalog")
	}
	offers, err := replenish.LoadOfferBook(ctx, e.repo)
	if err != nil {
		return EventResult{}, err
	}

	supplier := random.Pick(e.rng, suppliers)
	n := e.rng.Between(e.cfg.PurchaseLines.Min, e.cfg.PurchaseLines.Max)
	chosen := random.SampleOf(e.rng, offers.ForSupplier(supplier.ID), n)

	items := make([]booking.PurchaseItem, 0, len(chosen))
	for _, o := range chosen {
		items = append(items, booking.PurchaseItem{
			ArticleID: o.ArticleID,
			Quantity:  e.rng.Between(e.cfg.PurchaseQuantity.Min, e.cfg.PurchaseQuantity.Max),
			UnitPrice: o.UnitPrice,
		})
	}

	res := EventResult{Supplier: &supplier}
	err = e.repo.WithTx(ctx, func(tx repository.LedgerTx) error {
		doc, err := e.builder.BookPurchase(ctx, tx, supplier.ID, at, NoteManualPurchase, items)
		if err != nil {
			return err
		}
		res.Purchase = doc
		return nil
	})

	res.Outcome = outcome(err)
	if err != nil {
		res.Purchase = nil
		e.log.Warn().Err(err).Int64("supplier_id", supplier.ID).Msg("purchase aborted")
		return res, nil
	}

	for _, l := range res.Purchase.Lines {
		res.Lines = append(res.Lines, domain.Booked(l.ArticleID))
	}
	e.log.Info().
		Int64("purchase_id", res.Purchase.ID).
		Int64("supplier_id", supplier.ID).
		Int("lines", len(res.Purchase.Lines)).
		Msg("purchase created")
	return res, nil
}

// RestockBelowThreshold runs the batch restock job in one transaction.
func (e *Events) RestockBelowThreshold(ctx context.Context, at time.Time) (replenish.BatchResult, domain.TxOutcome, error) {
	offers, err := replenish.LoadOfferBook(ctx, e.repo)
	if err != nil {
		return replenish.BatchResult{}, domain.TxOutcome{}, err
	}
	policy := replenish.NewPolicy(offers, booking.NewBuilder(e.stock, e.log), e.stock, e.rng, replenish.Config{
		Quantity:    e.cfg.RestockQuantity,
		LeadMinutes: e.cfg.RestockLeadMinutes,
	}, e.log)

	cfg := replenish.DefaultBatchConfig()
	cfg.Threshold = e.cfg.BatchThreshold
	cfg.Quantity = e.cfg.BatchQuantity

	var res replenish.BatchResult
	err = e.repo.WithTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		res, err = policy.BatchRestock(ctx, tx, at, cfg)
		return err
	})
	if err != nil {
		return replenish.BatchResult{}, outcome(err), nil
	}
	return res, outcome(nil), nil
}

func outcome(err error) domain.TxOutcome {
	if err != nil {
		return domain.Aborted(err)
	}
	return domain.Committed()
}
