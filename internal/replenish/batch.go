package replenish

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/booking"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/random"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
)

// BatchConfig parameterizes the standalone low-stock restock job.
type BatchConfig struct {
	Threshold int
	Quantity  domain.IntRange
	Note      string
}

// DefaultBatchConfig restocks every article below 300 units with 200..1000 more.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Threshold: 300,
		Quantity:  domain.IntRange{Min: 200, Max: 1000},
		Note:      NoteBatchRestock,
	}
}

// BatchResult summarizes one batch restock.
type BatchResult struct {
	Created []*domain.PurchaseDocument
	Reused  []*domain.PurchaseDocument
	Lines   []domain.LineResult
}

// Booked counts lines that were added to a purchase.
func (r BatchResult) Booked() int {
	n := 0
	for _, l := range r.Lines {
		if !l.IsSkipped() {
			n++
		}
	}
	return n
}

// Skipped counts lines by skip reason.
func (r BatchResult) Skipped() map[domain.SkipReason]int {
	out := make(map[domain.SkipReason]int)
	for _, l := range r.Lines {
		if l.IsSkipped() {
			out[l.Reason]++
		}
	}
	return out
}

type plannedSupplier struct {
	supplierID int64
	items      []booking.PurchaseItem
}

// BatchRestock books one purchase per supplier covering every article below the
// threshold. A tagged purchase already placed for the supplier on the same day
// is extended instead of duplicated, and an article already on such a purchase
// from any of its suppliers is skipped as a duplicate.
func (p *Policy) BatchRestock(ctx context.Context, tx repository.LedgerTx, at time.Time, cfg BatchConfig) (BatchResult, error) {
	var res BatchResult

	low, err := tx.ArticlesBelow(ctx, cfg.Threshold)
	if err != nil {
		return res, fmt.Errorf("failed to list low stock articles: %w", err)
	}

	var plan []*plannedSupplier
	index := make(map[int64]*plannedSupplier)
	for _, level := range low {
		offers := p.offers.ForArticle(level.ArticleID)
		if len(offers) == 0 {
			res.Lines = append(res.Lines, domain.Skipped(level.ArticleID, domain.SkipNoSupplierOffer, ""))
			continue
		}

		offer := random.Pick(p.rng, offers)
		qty := p.rng.Between(cfg.Quantity.Min, cfg.Quantity.Max)

		holder, err := taggedHolder(ctx, tx, level.ArticleID, offers, at, cfg.Note)
		if err != nil {
			return res, err
		}
		if holder != 0 {
			res.Lines = append(res.Lines, domain.Skipped(level.ArticleID, domain.SkipDuplicateRestock,
				fmt.Sprintf("supplier %d", holder)))
			continue
		}

		ps, ok := index[offer.SupplierID]
		if !ok {
			ps = &plannedSupplier{supplierID: offer.SupplierID}
			index[offer.SupplierID] = ps
			plan = append(plan, ps)
		}
		ps.items = append(ps.items, booking.PurchaseItem{
			ArticleID: level.ArticleID,
			Quantity:  qty,
			UnitPrice: offer.UnitPrice,
		})
		res.Lines = append(res.Lines, domain.Booked(level.ArticleID))
	}

	for _, ps := range plan {
		existing, err := tx.FindTaggedPurchase(ctx, ps.supplierID, at, cfg.Note)
		if err != nil {
			return res, fmt.Errorf("failed to look up tagged purchase: %w", err)
		}

		if existing != nil {
			if err := p.builder.AppendPurchaseLines(ctx, tx, existing, ps.items); err != nil {
				return res, err
			}
			res.Reused = append(res.Reused, existing)
			continue
		}

		doc, err := p.builder.BookPurchase(ctx, tx, ps.supplierID, at, cfg.Note, ps.items)
		if err != nil {
			return res, err
		}
		res.Created = append(res.Created, doc)
	}

	p.log.Info().
		Int("low_stock", len(low)).
		Int("created", len(res.Created)).
		Int("reused", len(res.Reused)).
		Int("lines", res.Booked()).
		Msg("batch restock planned")

	return res, nil
}

// taggedHolder returns the supplier whose tagged purchase of the day already
// carries the article, or 0. Every supplier offering the article is checked.
func taggedHolder(ctx context.Context, tx repository.LedgerTx, articleID int64, offers []domain.SupplierOffer, at time.Time, note string) (int64, error) {
	seen := make(map[int64]bool, len(offers))
	for _, o := range offers {
		if seen[o.SupplierID] {
			continue
		}
		seen[o.SupplierID] = true
		dup, err := tx.HasTaggedPurchaseLine(ctx, articleID, o.SupplierID, at, note)
		if err != nil {
			return 0, fmt.Errorf("failed to check existing restock: %w", err)
		}
		if dup {
			return o.SupplierID, nil
		}
	}
	return 0, nil
}
