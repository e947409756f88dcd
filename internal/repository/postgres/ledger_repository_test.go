package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/ledger"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
	"github.com/andresuchdata/retail-ledger/backend-go/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_URL, migrates and clears the schema.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping PostgreSQL integration test")
	}

	ctx := context.Background()
	db, err := Open(url, 4)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = Migrate(ctx, db)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `TRUNCATE sale_lines, sales, purchase_lines, purchases, supplier_offers,
		price_list_entries, customers, customer_tiers, suppliers, articles RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	ingest := repository.NewIngestRepository(db)
	require.NoError(t, ingest.UpsertArticle(ctx, &domain.Article{ID: 1, Name: "Apfelsaft"}))
	require.NoError(t, ingest.UpsertSupplier(ctx, &domain.Supplier{ID: 10, Name: "Getränke Nord"}))
	require.NoError(t, ingest.UpsertSupplierOffer(ctx, &domain.SupplierOffer{ArticleID: 1, SupplierID: 10, UnitPrice: decimal.NewFromInt(2)}))
	require.NoError(t, ingest.UpsertCustomerTier(ctx, &domain.CustomerTier{ID: 3, Name: "Gold", DiscountPct: decimal.NewFromInt(5)}))
	tier := int64(3)
	require.NoError(t, ingest.UpsertCustomer(ctx, &domain.Customer{ID: 1, Name: "Kunde", TierID: &tier}))
	require.NoError(t, ingest.UpsertCustomer(ctx, &domain.Customer{ID: 2, Name: "Ohne Typ"}))

	return db
}

func TestLedgerRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewLedgerRepository(db)
	stock := ledger.New(logger.Discard())
	ctx := context.Background()
	at := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.WithTx(ctx, func(tx repository.LedgerTx) error {
		doc := &domain.PurchaseDocument{SupplierID: 10, PurchasedAt: at, Note: "Auto restock (batch)"}
		require.NoError(t, tx.InsertPurchase(ctx, doc))
		require.NoError(t, tx.InsertPurchaseLine(ctx, &domain.PurchaseLine{PurchaseID: doc.ID, ArticleID: 1, Quantity: 300, UnitPrice: decimal.NewFromInt(2)}))
		if _, err := stock.Increase(ctx, tx, 1, 300, decimal.NewFromInt(2)); err != nil {
			return err
		}
		_, err := stock.Decrease(ctx, tx, 1, 50)
		return err
	}))

	require.NoError(t, repo.WithTx(ctx, func(tx repository.LedgerTx) error {
		level, err := stock.Increase(ctx, tx, 1, 100, decimal.NewFromInt(5))
		require.NoError(t, err)
		assert.Equal(t, "2.8571", level.Cost().StringFixed(4))

		found, err := tx.FindTaggedPurchase(ctx, 10, at.Add(5*time.Hour), "Auto restock (batch)")
		require.NoError(t, err)
		require.NotNil(t, found)

		dup, err := tx.HasTaggedPurchaseLine(ctx, 1, 10, at, "Auto restock (batch)")
		require.NoError(t, err)
		assert.True(t, dup)

		other, err := tx.FindTaggedPurchase(ctx, 10, at.AddDate(0, 0, 1), "Auto restock (batch)")
		require.NoError(t, err)
		assert.Nil(t, other)
		return nil
	}))

	articles, err := repo.ListArticles(ctx)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, 350, articles[0].Quantity)

	customers, err := repo.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, domain.TierGold, customers[0].Tier)
	assert.Equal(t, domain.TierStandard, customers[1].Tier)
	assert.True(t, customers[1].DiscountPct.IsZero())
}

func TestRollbackAndReset(t *testing.T) {
	db := openTestDB(t)
	repo := NewLedgerRepository(db)
	stock := ledger.New(logger.Discard())
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx repository.LedgerTx) error {
		if _, err := stock.Increase(ctx, tx, 1, 10, decimal.NewFromInt(1)); err != nil {
			return err
		}
		_, err := stock.Increase(ctx, tx, 1, 0, decimal.NewFromInt(1))
		return err
	})
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)

	articles, err := repo.ListArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, articles[0].Quantity)

	require.NoError(t, repo.WithTx(ctx, func(tx repository.LedgerTx) error {
		_, err := stock.Increase(ctx, tx, 1, 10, decimal.NewFromInt(1))
		return err
	}))

	for i := 0; i < 2; i++ {
		require.NoError(t, repo.Reset(ctx))
		articles, err = repo.ListArticles(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, articles[0].Quantity)
		assert.False(t, articles[0].AvgCost.Valid)
	}
}

func TestRunTracking(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db)
	ctx := context.Background()

	run := &domain.Run{Kind: "simulation", Status: domain.RunProcessing, Seed: 42, StartedAt: time.Now().UTC()}
	require.NoError(t, runs.CreateRun(ctx, run))
	require.NotZero(t, run.ID)

	run.Status = domain.RunInterrupted
	run.Sales = 12
	require.NoError(t, runs.UpdateRun(ctx, run))

	got, err := runs.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunInterrupted, got.Status)
	assert.Equal(t, 12, got.Sales)
	assert.Equal(t, uint64(42), got.Seed)

	next := &domain.Run{Kind: "simulation", Status: domain.RunProcessing, Seed: 7, StartedAt: time.Now().UTC()}
	require.NoError(t, runs.CreateRun(ctx, next))

	latest, err := runs.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, next.ID, latest.ID)
	assert.Equal(t, uint64(7), latest.Seed)
}
