package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/ledger"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository/memory"
	"github.com/andresuchdata/retail-ledger/backend-go/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func entry(id int64, price string, from time.Time, to *time.Time) domain.PriceListEntry {
	return domain.PriceListEntry{ID: id, ArticleID: 1, ListPrice: decimal.RequireFromString(price), ValidFrom: from, ValidTo: to}
}

func TestSelectEntryWindows(t *testing.T) {
	entries := []domain.PriceListEntry{
		entry(1, "9.99", day(2024, 1, 1), ptr(day(2024, 6, 1))),
		entry(2, "11.49", day(2024, 6, 1), nil),
	}

	tests := []struct {
		name  string
		at    time.Time
		want  int64
		found bool
	}{
		{"before any window", day(2023, 12, 31), 0, false},
		{"start is inclusive", day(2024, 1, 1), 1, true},
		{"end is exclusive", day(2024, 6, 1), 2, true},
		{"open ended", day(2030, 1, 1), 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectEntry(entries, tt.at)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestSelectEntryOverlapTieBreak(t *testing.T) {
	at := day(2024, 3, 1)

	got, ok := SelectEntry([]domain.PriceListEntry{
		entry(1, "1", day(2024, 1, 1), ptr(day(2024, 12, 1))),
		entry(2, "2", day(2024, 2, 1), nil),
		entry(3, "3", day(2024, 2, 15), ptr(day(2024, 4, 1))),
	}, at)
	require.True(t, ok)
	assert.Equal(t, int64(2), got.ID, "open end is the latest end")

	got, ok = SelectEntry([]domain.PriceListEntry{
		entry(1, "1", day(2024, 1, 1), ptr(day(2024, 12, 1))),
		entry(2, "2", day(2024, 2, 1), ptr(day(2024, 12, 1))),
	}, at)
	require.True(t, ok)
	assert.Equal(t, int64(2), got.ID, "same end, later start wins")
}

func newResolver(t *testing.T, entries ...domain.PriceListEntry) (*Resolver, *memory.Store) {
	t.Helper()
	s := memory.NewStore()
	require.NoError(t, s.UpsertArticle(context.Background(), &domain.Article{ID: 1, Name: "Apfel"}))
	return NewResolver(NewPriceBook(entries), ledger.New(logger.Discard()), DefaultMarkup), s
}

func TestResolveListPrice(t *testing.T) {
	r, s := newResolver(t, entry(1, "4.20", day(2024, 1, 1), nil))
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx repository.LedgerTx) error {
		q, err := r.Resolve(ctx, tx, 1, day(2024, 5, 5))
		require.NoError(t, err)
		assert.Equal(t, SourceList, q.Source)
		assert.Equal(t, "4.20", q.Price.StringFixed(2))
		return nil
	}))
}

func TestResolveFallbackUsesCostMarkup(t *testing.T) {
	r, s := newResolver(t)
	s.PutStock(domain.StockLevel{ArticleID: 1, Quantity: 10, AvgCost: decimal.NewNullDecimal(decimal.RequireFromString("2.00"))})
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx repository.LedgerTx) error {
		q, err := r.Resolve(ctx, tx, 1, day(2024, 5, 5))
		require.NoError(t, err)
		assert.Equal(t, SourceFallback, q.Source)
		assert.Equal(t, "2.70", q.Price.StringFixed(2))
		return nil
	}))
}

func TestResolveFallbackWithoutCost(t *testing.T) {
	r, s := newResolver(t)
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx repository.LedgerTx) error {
		q, err := r.Resolve(ctx, tx, 1, day(2024, 5, 5))
		require.NoError(t, err)
		assert.Equal(t, "1.35", q.Price.StringFixed(2))

		_, err = r.ResolveListed(ctx, tx, 1, day(2024, 5, 5))
		assert.ErrorIs(t, err, domain.ErrNoPrice)
		return nil
	}))
}

func TestResolveListedFallsBackToPriorCost(t *testing.T) {
	r, s := newResolver(t)
	s.PutStock(domain.StockLevel{ArticleID: 1, Quantity: 3, AvgCost: decimal.NewNullDecimal(decimal.NewFromInt(10))})
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx repository.LedgerTx) error {
		q, err := r.ResolveListed(ctx, tx, 1, day(2024, 5, 5))
		require.NoError(t, err)
		assert.Equal(t, "13.50", q.Price.StringFixed(2))
		return nil
	}))
}

func TestSalePrice(t *testing.T) {
	assert.Equal(t, "9.00", SalePrice(decimal.NewFromInt(10), decimal.NewFromInt(10)).StringFixed(2))
	assert.Equal(t, "2.57", SalePrice(decimal.RequireFromString("2.70"), decimal.RequireFromString("5")).StringFixed(2))
	assert.Equal(t, "4.20", SalePrice(decimal.RequireFromString("4.20"), decimal.Zero).StringFixed(2))
}
