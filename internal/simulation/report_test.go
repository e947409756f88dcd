package simulation

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersMerge(t *testing.T) {
	var total Counters
	total.Merge(Counters{Sales: 2, SaleLines: 5, Skipped: map[domain.SkipReason]int{domain.SkipNoSupplierOffer: 1}})
	total.Merge(Counters{Sales: 1, ClampedUnits: 4, Skipped: map[domain.SkipReason]int{domain.SkipNoSupplierOffer: 2}})

	assert.Equal(t, 3, total.Sales)
	assert.Equal(t, 5, total.SaleLines)
	assert.Equal(t, 4, total.ClampedUnits)
	assert.Equal(t, 3, total.SkippedTotal())
}

func TestReportCSVAndSummary(t *testing.T) {
	started := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	r := &Report{
		RunID:          3,
		Seed:           42,
		StartedAt:      started,
		FinishedAt:     started.Add(90 * time.Second),
		InitialDays:    3,
		SalesDays:      10,
		TotalSalesDays: 28,
		Counters:       Counters{Sales: 12, Skipped: map[domain.SkipReason]int{domain.SkipNoSupplierOffer: 2}},
		Status:         StatusAborted,
		Err:            errors.New("connection refused"),
	}

	var buf bytes.Buffer
	require.NoError(t, r.WriteCSV(&buf))
	out := buf.String()
	assert.Contains(t, out, "metric,value\n")
	assert.Contains(t, out, "status,aborted\n")
	assert.Contains(t, out, "skipped_no_supplier_offer,2\n")
	assert.Contains(t, out, "error,connection refused\n")

	summary := r.Summary()
	assert.Contains(t, summary, "Aborted by error")
	assert.Contains(t, summary, "sales days:        10/28")
	assert.Equal(t, domain.RunFailed, r.Status.RunStatus())
}
