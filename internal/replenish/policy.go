// Package replenish decides when, how much and from whom to restock.
package replenish

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/booking"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/ledger"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/random"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
	"github.com/rs/zerolog"
)

const (
	NoteAutoRestock  = "Auto restock"
	NoteBatchRestock = "Auto restock (batch)"
)

// Config holds the auto restock parameters.
type Config struct {
	Quantity    domain.IntRange
	LeadMinutes domain.IntRange
}

// DefaultConfig restocks 200..1000 units booked 65..100 minutes before the sale.
func DefaultConfig() Config {
	return Config{
		Quantity:    domain.IntRange{Min: 200, Max: 1000},
		LeadMinutes: domain.IntRange{Min: 65, Max: 100},
	}
}

// Outcome of a restock check. Purchase is nil when nothing was bought; Line is
// set whenever a restock was attempted.
type Outcome struct {
	Purchase *domain.PurchaseDocument
	Line     *domain.LineResult
}

// Restocked reports whether a purchase was booked.
func (o Outcome) Restocked() bool {
	return o.Purchase != nil
}

// Policy picks a random supplier offer for an article that cannot cover a demand.
type Policy struct {
	offers  *OfferBook
	builder *booking.Builder
	stock   *ledger.StockLedger
	rng     *random.Rand
	cfg     Config
	log     zerolog.Logger
}

func NewPolicy(offers *OfferBook, builder *booking.Builder, stock *ledger.StockLedger, rng *random.Rand, cfg Config, log zerolog.Logger) *Policy {
	return &Policy{
		offers:  offers,
		builder: builder,
		stock:   stock,
		rng:     rng,
		cfg:     cfg,
		log:     log,
	}
}

// MaybeRestock buys stock when the article holds fewer than needed units. The
// purchase is back-dated before at so it always precedes the sale it enables.
// An article without offers is skipped, not failed.
func (p *Policy) MaybeRestock(ctx context.Context, tx repository.LedgerTx, articleID int64, needed int, at time.Time) (Outcome, error) {
	level, err := p.stock.Current(ctx, tx, articleID)
	if err != nil {
		return Outcome{}, err
	}
	if level.Quantity >= needed {
		return Outcome{}, nil
	}

	offers := p.offers.ForArticle(articleID)
	if len(offers) == 0 {
		skip := domain.Skipped(articleID, domain.SkipNoSupplierOffer, "")
		p.log.Debug().Int64("article_id", articleID).Msg("no supplier offer, restock skipped")
		return Outcome{Line: &skip}, nil
	}

	offer := random.Pick(p.rng, offers)
	qty := p.rng.Between(p.cfg.Quantity.Min, p.cfg.Quantity.Max)
	lead := p.rng.Between(p.cfg.LeadMinutes.Min, p.cfg.LeadMinutes.Max)
	when := at.Add(-time.Duration(lead) * time.Minute)

	doc, err := p.builder.BookPurchase(ctx, tx, offer.SupplierID, when, NoteAutoRestock, []booking.PurchaseItem{
		{ArticleID: articleID, Quantity: qty, UnitPrice: offer.UnitPrice},
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("restock article %d: %w", articleID, err)
	}

	booked := domain.Booked(articleID)
	return Outcome{Purchase: doc, Line: &booked}, nil
}
