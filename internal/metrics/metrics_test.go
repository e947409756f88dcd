package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/simulation"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBatch(t *testing.T) {
	reg := NewRegistry()
	reg.RecordBatch(simulation.Counters{
		Purchases:     2,
		PurchaseLines: 5,
		Sales:         3,
		SaleLines:     7,
		ClampedUnits:  4,
		Skipped:       map[domain.SkipReason]int{domain.SkipNoSupplierOffer: 2},
	}, 150*time.Millisecond)
	reg.RecordBatch(simulation.Counters{Sales: 1, SaleLines: 1}, 10*time.Millisecond)
	reg.RecordRun(simulation.StatusInterrupted)

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.Purchases))
	assert.Equal(t, 4.0, testutil.ToFloat64(reg.Sales))
	assert.Equal(t, 8.0, testutil.ToFloat64(reg.Lines.WithLabelValues("sale")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.Skipped.WithLabelValues(string(domain.SkipNoSupplierOffer))))
	assert.Equal(t, 4.0, testutil.ToFloat64(reg.ClampedUnits))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Runs.WithLabelValues("interrupted")))
	assert.Equal(t, 1, testutil.CollectAndCount(reg.CommitLatency))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := NewRegistry()
	reg.RecordRun(simulation.StatusCompleted)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ledger_runs_total{status="completed"} 1`)
}
