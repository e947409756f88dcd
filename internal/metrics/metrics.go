package metrics

import (
	"net/http"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/simulation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the ledger simulation metrics on a private Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	Purchases      prometheus.Counter
	Sales          prometheus.Counter
	Lines          *prometheus.CounterVec
	Skipped        *prometheus.CounterVec
	Restocks       prometheus.Counter
	FallbackPrices prometheus.Counter
	ClampedUnits   prometheus.Counter
	Runs           *prometheus.CounterVec
	CommitLatency  prometheus.Histogram
}

var _ simulation.Recorder = (*Registry)(nil)

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	purchases := prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_purchases_booked_total"})
	sales := prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_sales_booked_total"})
	lines := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ledger_lines_booked_total"}, []string{"kind"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ledger_lines_skipped_total"}, []string{"reason"})
	restocks := prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_auto_restocks_total"})
	fallback := prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_fallback_prices_total"})
	clamped := prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_clamped_units_total"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ledger_runs_total"}, []string{"status"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_batch_commit_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(purchases, sales, lines, skipped, restocks, fallback, clamped, runs, latency)
	return &Registry{
		reg:            r,
		Purchases:      purchases,
		Sales:          sales,
		Lines:          lines,
		Skipped:        skipped,
		Restocks:       restocks,
		FallbackPrices: fallback,
		ClampedUnits:   clamped,
		Runs:           runs,
		CommitLatency:  latency,
	}
}

// RecordBatch adds the counters of one committed batch.
func (r *Registry) RecordBatch(c simulation.Counters, elapsed time.Duration) {
	r.Purchases.Add(float64(c.Purchases))
	r.Sales.Add(float64(c.Sales))
	r.Lines.WithLabelValues("purchase").Add(float64(c.PurchaseLines))
	r.Lines.WithLabelValues("sale").Add(float64(c.SaleLines))
	r.Restocks.Add(float64(c.Restocks))
	r.FallbackPrices.Add(float64(c.FallbackPrices))
	r.ClampedUnits.Add(float64(c.ClampedUnits))
	for reason, n := range c.Skipped {
		r.Skipped.WithLabelValues(string(reason)).Add(float64(n))
	}
	r.CommitLatency.Observe(elapsed.Seconds())
}

func (r *Registry) RecordRun(status simulation.Status) {
	r.Runs.WithLabelValues(string(status)).Inc()
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
