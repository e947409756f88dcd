package simulation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/config"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// seedCatalog loads 30 articles (27..30 without offers, 21..30 without list
// price), 3 suppliers, the four tiers and 6 customers.
func seedCatalog(t *testing.T, s *memory.Store) {
	t.Helper()
	ctx := context.Background()

	for id := int64(1); id <= 30; id++ {
		require.NoError(t, s.UpsertArticle(ctx, &domain.Article{ID: id, Name: fmt.Sprintf("Artikel %02d", id)}))
		if id <= 26 {
			offer := domain.SupplierOffer{
				ArticleID:  id,
				SupplierID: 100 + id%3,
				UnitPrice:  decimal.NewFromInt(id).Div(decimal.NewFromInt(4)).Add(decimal.NewFromInt(1)),
			}
			require.NoError(t, s.UpsertSupplierOffer(ctx, &offer))
		}
		if id%5 == 0 && id <= 26 {
			second := domain.SupplierOffer{ArticleID: id, SupplierID: 103, UnitPrice: decimal.NewFromInt(3)}
			require.NoError(t, s.UpsertSupplierOffer(ctx, &second))
		}
		if id <= 20 {
			switchAt := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
			first := domain.PriceListEntry{
				ID: id * 10, ArticleID: id, ListPrice: decimal.NewFromInt(id + 2),
				ValidFrom: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), ValidTo: &switchAt,
			}
			second := domain.PriceListEntry{
				ID: id*10 + 1, ArticleID: id, ListPrice: decimal.NewFromInt(id + 3), ValidFrom: switchAt,
			}
			require.NoError(t, s.UpsertPriceEntry(ctx, &first))
			require.NoError(t, s.UpsertPriceEntry(ctx, &second))
		}
	}

	for id := int64(100); id <= 103; id++ {
		require.NoError(t, s.UpsertSupplier(ctx, &domain.Supplier{ID: id, Name: fmt.Sprintf("Lieferant %d", id)}))
	}
	require.NoError(t, s.UpsertSupplier(ctx, &domain.Supplier{ID: 104, Name: "Lieferant ohne Sortiment"}))

	tiers := []domain.CustomerTier{
		{ID: 1, Name: "Standard", DiscountPct: decimal.Zero},
		{ID: 2, Name: "Silber", DiscountPct: decimal.NewFromInt(3)},
		{ID: 3, Name: "Gold", DiscountPct: decimal.NewFromInt(5)},
		{ID: 4, Name: "Platin", DiscountPct: decimal.RequireFromString("7.5")},
	}
	for _, tier := range tiers {
		require.NoError(t, s.UpsertCustomerTier(ctx, &tier))
	}

	tierOf := []int64{1, 2, 3, 4, 1, 0}
	for i, tierID := range tierOf {
		c := domain.Customer{ID: int64(i + 1), Name: fmt.Sprintf("Kunde %d", i+1)}
		if tierID != 0 {
			id := tierID
			c.TierID = &id
		}
		require.NoError(t, s.UpsertCustomer(ctx, &c))
	}
}

func newSeededStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	seedCatalog(t, s)
	return s
}

// shortConfig simulates January 2024 only.
func shortConfig() config.SimulationConfig {
	cfg := config.DefaultSimulation()
	cfg.SalesEnd = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	return cfg
}

// trippingRepo calls trip right before the n-th sale header is inserted.
type trippingRepo struct {
	*memory.Store
	n     int
	sales int
	trip  func() error
}

func (r *trippingRepo) WithTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	return r.Store.WithTx(ctx, func(tx repository.LedgerTx) error {
		return fn(&trippingTx{LedgerTx: tx, repo: r})
	})
}

type trippingTx struct {
	repository.LedgerTx
	repo *trippingRepo
}

func (t *trippingTx) InsertSale(ctx context.Context, doc *domain.SaleDocument) error {
	t.repo.sales++
	if t.repo.sales == t.repo.n {
		if err := t.repo.trip(); err != nil {
			return err
		}
	}
	return t.LedgerTx.InsertSale(ctx, doc)
}
