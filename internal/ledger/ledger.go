// Package ledger owns each article's stock quantity and weighted-average cost.
// Every change goes through Increase or Decrease inside the caller's transaction.
package ledger

import (
	"context"
	"fmt"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CostPlaces is the precision of the stored weighted-average cost.
const CostPlaces = 4

// StockLedger applies purchases and sales to stock positions.
type StockLedger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *StockLedger {
	return &StockLedger{log: log}
}

// DecreaseResult is the position after a decrease. Clamped is the part of the
// requested quantity that could not be taken because stock ran out.
type DecreaseResult struct {
	Level   domain.StockLevel
	Clamped int
}

// Current returns the article's quantity and cost. A never purchased article reads as (0, null).
func (l *StockLedger) Current(ctx context.Context, tx repository.LedgerTx, articleID int64) (domain.StockLevel, error) {
	level, err := tx.Stock(ctx, articleID)
	if err != nil {
		return domain.StockLevel{}, fmt.Errorf("failed to read stock: %w", err)
	}
	return level, nil
}

// Increase books qty incoming units at unitPrice and recomputes the weighted-average cost.
func (l *StockLedger) Increase(ctx context.Context, tx repository.LedgerTx, articleID int64, qty int, unitPrice decimal.Decimal) (domain.StockLevel, error) {
	if qty <= 0 {
		return domain.StockLevel{}, fmt.Errorf("increase article %d by %d: %w", articleID, qty, domain.ErrInvalidQuantity)
	}
	if unitPrice.IsNegative() {
		return domain.StockLevel{}, fmt.Errorf("increase article %d: %w", articleID, domain.ErrInvalidPrice)
	}

	cur, err := l.Current(ctx, tx, articleID)
	if err != nil {
		return domain.StockLevel{}, err
	}

	next := domain.StockLevel{
		ArticleID: articleID,
		Quantity:  cur.Quantity + qty,
		AvgCost:   decimal.NewNullDecimal(WeightedAverage(cur.Quantity, cur.Cost(), qty, unitPrice)),
	}
	if err := tx.SetStock(ctx, next); err != nil {
		return domain.StockLevel{}, fmt.Errorf("failed to update stock: %w", err)
	}

	l.log.Trace().
		Int64("article_id", articleID).
		Int("qty", qty).
		Str("avg_cost", next.Cost().String()).
		Msg("stock increased")

	return next, nil
}

// Decrease takes qty units out of stock. The quantity never drops below zero and the cost is kept.
func (l *StockLedger) Decrease(ctx context.Context, tx repository.LedgerTx, articleID int64, qty int) (DecreaseResult, error) {
	if qty <= 0 {
		return DecreaseResult{}, fmt.Errorf("decrease article %d by %d: %w", articleID, qty, domain.ErrInvalidQuantity)
	}

	cur, err := l.Current(ctx, tx, articleID)
	if err != nil {
		return DecreaseResult{}, err
	}

	res := DecreaseResult{Level: cur}
	res.Level.Quantity = cur.Quantity - qty
	if res.Level.Quantity < 0 {
		res.Clamped = -res.Level.Quantity
		res.Level.Quantity = 0
		l.log.Debug().
			Int64("article_id", articleID).
			Int("requested", qty).
			Int("clamped", res.Clamped).
			Msg("sale exceeds stock, clamped to zero")
	}

	if err := tx.SetStock(ctx, res.Level); err != nil {
		return DecreaseResult{}, fmt.Errorf("failed to update stock: %w", err)
	}

	return res, nil
}

// WeightedAverage returns (oldQty*oldAvg + inQty*inPrice) / (oldQty+inQty) rounded to CostPlaces.
func WeightedAverage(oldQty int, oldAvg decimal.Decimal, inQty int, inPrice decimal.Decimal) decimal.Decimal {
	total := oldQty + inQty
	if total <= 0 {
		return decimal.Zero
	}
	value := decimal.NewFromInt(int64(oldQty)).Mul(oldAvg).
		Add(decimal.NewFromInt(int64(inQty)).Mul(inPrice))
	return value.DivRound(decimal.NewFromInt(int64(total)), CostPlaces+4).Round(CostPlaces)
}
