// Package pricing resolves the unit sale price of an article at a point in time.
package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/ledger"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
	"github.com/shopspring/decimal"
)

// DefaultMarkup is applied to the weighted-average cost when no list price applies.
var DefaultMarkup = decimal.RequireFromString("1.35")

// Source tells where a quoted price came from.
type Source string

const (
	SourceList     Source = "list"
	SourceFallback Source = "fallback"
)

// Quote is a resolved base price before any customer discount.
type Quote struct {
	Price  decimal.Decimal
	Source Source
}

// PriceSource finds the list price entry applicable at a time.
type PriceSource interface {
	Lookup(articleID int64, at time.Time) (domain.PriceListEntry, bool)
}

// PriceBook is a run-scoped cache of the price list, grouped by article.
// Build one at the start of a run and drop it at the end.
type PriceBook struct {
	entries map[int64][]domain.PriceListEntry
}

var _ PriceSource = (*PriceBook)(nil)

func NewPriceBook(entries []domain.PriceListEntry) *PriceBook {
	b := &PriceBook{entries: make(map[int64][]domain.PriceListEntry)}
	for _, e := range entries {
		b.entries[e.ArticleID] = append(b.entries[e.ArticleID], e)
	}
	return b
}

// LoadPriceBook reads the whole price list once.
func LoadPriceBook(ctx context.Context, repo repository.CatalogRepository) (*PriceBook, error) {
	entries, err := repo.ListPriceEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load price list: %w", err)
	}
	return NewPriceBook(entries), nil
}

func (b *PriceBook) Lookup(articleID int64, at time.Time) (domain.PriceListEntry, bool) {
	return SelectEntry(b.entries[articleID], at)
}

// SelectEntry picks the entry whose window contains at. Among overlapping
// candidates the latest end wins (open-ended counts as latest), then the latest start.
func SelectEntry(entries []domain.PriceListEntry, at time.Time) (domain.PriceListEntry, bool) {
	var (
		best  domain.PriceListEntry
		found bool
	)
	for _, e := range entries {
		if !e.Contains(at) {
			continue
		}
		if !found || preferred(e, best) {
			best, found = e, true
		}
	}
	return best, found
}

func preferred(a, b domain.PriceListEntry) bool {
	switch {
	case a.ValidTo == nil && b.ValidTo != nil:
		return true
	case a.ValidTo != nil && b.ValidTo == nil:
		return false
	case a.ValidTo != nil && b.ValidTo != nil && !a.ValidTo.Equal(*b.ValidTo):
		return a.ValidTo.After(*b.ValidTo)
	}
	return a.ValidFrom.After(b.ValidFrom)
}

// Resolver quotes base prices from a PriceSource with a cost-based fallback.
type Resolver struct {
	prices PriceSource
	stock  *ledger.StockLedger
	markup decimal.Decimal
}

func NewResolver(prices PriceSource, stock *ledger.StockLedger, markup decimal.Decimal) *Resolver {
	if !markup.IsPositive() {
		markup = DefaultMarkup
	}
	return &Resolver{prices: prices, stock: stock, markup: markup}
}

// Resolve always yields a price: the list price, or cost times markup with an
// unknown cost counted as 1.0.
func (r *Resolver) Resolve(ctx context.Context, tx repository.LedgerTx, articleID int64, at time.Time) (Quote, error) {
	if e, ok := r.prices.Lookup(articleID, at); ok {
		return Quote{Price: e.ListPrice, Source: SourceList}, nil
	}

	level, err := r.stock.Current(ctx, tx, articleID)
	if err != nil {
		return Quote{}, err
	}
	cost := level.Cost()
	if cost.IsZero() {
		cost = decimal.NewFromInt(1)
	}
	return Quote{Price: cost.Mul(r.markup), Source: SourceFallback}, nil
}

// ResolveListed is the strict variant used by single sales: without a list
// price and without a prior cost it fails with ErrNoPrice.
func (r *Resolver) ResolveListed(ctx context.Context, tx repository.LedgerTx, articleID int64, at time.Time) (Quote, error) {
	if e, ok := r.prices.Lookup(articleID, at); ok {
		return Quote{Price: e.ListPrice, Source: SourceList}, nil
	}

	level, err := r.stock.Current(ctx, tx, articleID)
	if err != nil {
		return Quote{}, err
	}
	if !level.Cost().IsPositive() {
		return Quote{}, fmt.Errorf("article %d at %s: %w", articleID, at.Format(time.DateTime), domain.ErrNoPrice)
	}
	return Quote{Price: level.Cost().Mul(r.markup), Source: SourceFallback}, nil
}

// SalePrice applies a percentage discount and rounds to cents.
func SalePrice(base, discountPct decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(discountPct.Div(decimal.NewFromInt(100)))
	return base.Mul(factor).Round(2)
}
