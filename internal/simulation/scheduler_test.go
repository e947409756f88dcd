package simulation

import (
	"context"
	"errors"
	"testing"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/replenish"
	"github.com/andresuchdata/retail-ledger/backend-go/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCompletes(t *testing.T) {
	s := newSeededStore(t)
	cfg := shortConfig()

	report, err := NewScheduler(s, cfg, WithRuns(s), WithLogger(logger.Discard())).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, 3, report.InitialDays)
	assert.Equal(t, 28, report.TotalSalesDays)
	assert.Equal(t, 28, report.SalesDays)
	assert.Equal(t, "2024-01-31", report.LastCommittedDay.Format("2006-01-02"))

	purchases := s.Purchases()
	sales := s.Sales()
	assert.Len(t, purchases, report.Purchases)
	assert.Len(t, sales, report.Sales)
	assert.NotZero(t, report.Sales)
	assert.NotZero(t, report.Restocks)
	assert.NotZero(t, report.Skipped[domain.SkipNoSupplierOffer])
	assert.NotZero(t, report.FallbackPrices)
	assert.NotZero(t, report.ClampedUnits)

	for _, p := range purchases {
		require.NotEmpty(t, p.Lines, "purchase %d has no lines", p.ID)
	}
	for _, sale := range sales {
		require.NotEmpty(t, sale.Lines, "sale %d has no lines", sale.ID)
		h := sale.SoldAt.Hour()
		assert.True(t, h >= cfg.StoreOpenHour && h < cfg.StoreCloseHour)
	}

	articles, err := s.ListArticles(context.Background())
	require.NoError(t, err)
	for _, a := range articles {
		assert.GreaterOrEqual(t, a.Quantity, 0)
	}

	runs := s.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunCompleted, runs[0].Status)
	assert.Equal(t, report.Sales, runs[0].Sales)
}

func TestRestockPrecedesItsSale(t *testing.T) {
	s := newSeededStore(t)
	_, err := NewScheduler(s, shortConfig()).Run(context.Background())
	require.NoError(t, err)

	sales := s.Sales()
	for _, p := range s.Purchases() {
		if p.Note != replenish.NoteAutoRestock {
			continue
		}
		article := p.Lines[0].ArticleID
		found := false
		for _, sale := range sales {
			for _, l := range sale.Lines {
				if l.ArticleID == article && sale.SoldAt.After(p.PurchasedAt) && sale.SoldAt.Sub(p.PurchasedAt).Minutes() <= 100 {
					found = true
				}
			}
		}
		assert.True(t, found, "auto restock %d has no later sale of article %d", p.ID, article)
	}
}

func TestRunIsReproducible(t *testing.T) {
	cfg := shortConfig()

	first := newSeededStore(t)
	_, err := NewScheduler(first, cfg).Run(context.Background())
	require.NoError(t, err)

	second := newSeededStore(t)
	_, err = NewScheduler(second, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Purchases(), second.Purchases())
	assert.Equal(t, first.Sales(), second.Sales())

	third := newSeededStore(t)
	cfg.Seed = 7
	_, err = NewScheduler(third, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.Sales(), third.Sales())
}

func TestRerunAfterResetIsReproducible(t *testing.T) {
	ctx := context.Background()
	cfg := shortConfig()
	s := newSeededStore(t)

	_, err := NewScheduler(s, cfg).Run(ctx)
	require.NoError(t, err)
	sales := s.Sales()

	require.NoError(t, s.Reset(ctx))
	_, err = NewScheduler(s, cfg).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, sales, s.Sales())
}

func TestInterruptRollsBackOpenDay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := &trippingRepo{Store: newSeededStore(t), n: 20, trip: func() error {
		cancel()
		return nil
	}}

	report, err := NewScheduler(repo, shortConfig(), WithRuns(repo.Store)).Run(ctx)
	require.ErrorIs(t, err, domain.ErrInterrupted)
	assert.Equal(t, StatusInterrupted, report.Status)
	assert.Contains(t, report.Headline(), "interruption")

	assert.Len(t, repo.Sales(), report.Sales)
	assert.Less(t, report.Sales, 20)
	assert.Positive(t, report.SalesDays)
	assert.Less(t, report.SalesDays, report.TotalSalesDays)

	runs := repo.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunInterrupted, runs[0].Status)
}

func TestErrorAbortsWholeRun(t *testing.T) {
	boom := errors.New("connection reset by peer")
	repo := &trippingRepo{Store: newSeededStore(t), n: 25, trip: func() error { return boom }}

	report, err := NewScheduler(repo, shortConfig()).Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrInterrupted)
	assert.Equal(t, StatusAborted, report.Status)
	assert.Contains(t, report.Headline(), "Aborted by error")

	assert.Len(t, repo.Sales(), report.Sales)
	assert.Less(t, report.Sales, 25)
	assert.Less(t, report.SalesDays, report.TotalSalesDays)
}

func TestCommitCadenceGroupsDays(t *testing.T) {
	boom := errors.New("disk full")
	cfg := shortConfig()
	cfg.CommitEveryDays = 7

	repo := &trippingRepo{Store: newSeededStore(t), n: 25, trip: func() error { return boom }}
	report, err := NewScheduler(repo, cfg).Run(context.Background())
	require.Error(t, err)

	assert.Zero(t, report.SalesDays%7)
	assert.Len(t, repo.Sales(), report.Sales)
}

func TestInvalidConfigAborts(t *testing.T) {
	cfg := shortConfig()
	cfg.CommitEveryDays = 0

	report, err := NewScheduler(newSeededStore(t), cfg).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusAborted, report.Status)
}
