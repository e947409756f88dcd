package ledger

import (
	"context"
	"testing"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository/memory"
	"github.com/andresuchdata/retail-ledger/backend-go/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, ids ...int64) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	for _, id := range ids {
		require.NoError(t, s.UpsertArticle(context.Background(), &domain.Article{ID: id, Name: "article"}))
	}
	return s
}

func inTx(t *testing.T, s *memory.Store, fn func(tx repository.LedgerTx) error) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), fn))
}

func TestSampleScenario(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 1)
	l := New(logger.Discard())

	inTx(t, s, func(tx repository.LedgerTx) error {
		level, err := l.Increase(ctx, tx, 1, 300, decimal.RequireFromString("2.00"))
		require.NoError(t, err)
		assert.Equal(t, 300, level.Quantity)
		assert.True(t, level.Cost().Equal(decimal.RequireFromString("2")))

		res, err := l.Decrease(ctx, tx, 1, 50)
		require.NoError(t, err)
		assert.Equal(t, 250, res.Level.Quantity)
		assert.Zero(t, res.Clamped)
		assert.True(t, res.Level.Cost().Equal(decimal.RequireFromString("2")))

		level, err = l.Increase(ctx, tx, 1, 100, decimal.RequireFromString("5.00"))
		require.NoError(t, err)
		assert.Equal(t, 350, level.Quantity)
		assert.Equal(t, "2.8571", level.Cost().StringFixed(4))
		return nil
	})
}

func TestWeightedAverageFromZero(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 7)
	l := New(logger.Discard())

	inTx(t, s, func(tx repository.LedgerTx) error {
		_, err := l.Increase(ctx, tx, 7, 3, decimal.RequireFromString("1.10"))
		require.NoError(t, err)
		level, err := l.Increase(ctx, tx, 7, 7, decimal.RequireFromString("2.35"))
		require.NoError(t, err)

		// (3*1.10 + 7*2.35) / 10 = 1.975
		assert.Equal(t, "1.9750", level.Cost().StringFixed(4))
		return nil
	})
}

func TestDecreaseNeverNegative(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 1)
	l := New(logger.Discard())

	inTx(t, s, func(tx repository.LedgerTx) error {
		_, err := l.Increase(ctx, tx, 1, 10, decimal.NewFromInt(3))
		require.NoError(t, err)

		for _, qty := range []int{4, 4, 4, 100} {
			res, err := l.Decrease(ctx, tx, 1, qty)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, res.Level.Quantity, 0)
			assert.True(t, res.Level.Cost().Equal(decimal.NewFromInt(3)))
		}
		return nil
	})

	level, ok := s.StockOf(1)
	require.True(t, ok)
	assert.Equal(t, 0, level.Quantity)
}

func TestDecreaseReportsClampedUnits(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 1)
	s.PutStock(domain.StockLevel{ArticleID: 1, Quantity: 5})
	l := New(logger.Discard())

	inTx(t, s, func(tx repository.LedgerTx) error {
		res, err := l.Decrease(ctx, tx, 1, 8)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Level.Quantity)
		assert.Equal(t, 3, res.Clamped)
		return nil
	})
}

func TestCurrentOfNeverPurchasedArticle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 9)
	l := New(logger.Discard())

	inTx(t, s, func(tx repository.LedgerTx) error {
		level, err := l.Current(ctx, tx, 9)
		require.NoError(t, err)
		assert.Equal(t, 0, level.Quantity)
		assert.False(t, level.AvgCost.Valid)
		assert.True(t, level.Cost().IsZero())
		return nil
	})
}

func TestRejectsNonPositiveQuantities(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 1)
	l := New(logger.Discard())

	err := s.WithTx(ctx, func(tx repository.LedgerTx) error {
		_, err := l.Increase(ctx, tx, 1, 0, decimal.NewFromInt(1))
		return err
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	err = s.WithTx(ctx, func(tx repository.LedgerTx) error {
		_, err := l.Decrease(ctx, tx, 1, -2)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	err = s.WithTx(ctx, func(tx repository.LedgerTx) error {
		_, err := l.Increase(ctx, tx, 404, 1, decimal.NewFromInt(1))
		return err
	})
	assert.ErrorIs(t, err, domain.ErrArticleNotFound)
}

func TestWeightedAverageRounding(t *testing.T) {
	got := WeightedAverage(250, decimal.NewFromInt(2), 100, decimal.NewFromInt(5))
	assert.Equal(t, "2.8571", got.StringFixed(4))
	assert.True(t, WeightedAverage(0, decimal.Zero, 0, decimal.NewFromInt(5)).IsZero())
}
