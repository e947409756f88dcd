package simulation

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
)

// Status is the final state of a run as shown to the operator.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
	StatusAborted     Status = "aborted"
)

// RunStatus maps the report status onto the persisted run status.
func (s Status) RunStatus() domain.RunStatus {
	switch s {
	case StatusCompleted:
		return domain.RunCompleted
	case StatusInterrupted:
		return domain.RunInterrupted
	default:
		return domain.RunFailed
	}
}

// Counters accumulate what a batch of days booked. A batch's counters are
// merged into the report only after the batch committed.
type Counters struct {
	Purchases      int
	PurchaseLines  int
	Sales          int
	SaleLines      int
	Restocks       int
	FallbackPrices int
	ClampedUnits   int
	Skipped        map[domain.SkipReason]int
}

func (c *Counters) skip(reason domain.SkipReason) {
	if c.Skipped == nil {
		c.Skipped = make(map[domain.SkipReason]int)
	}
	c.Skipped[reason]++
}

// SkippedTotal is the number of skipped lines across all reasons.
func (c Counters) SkippedTotal() int {
	n := 0
	for _, v := range c.Skipped {
		n += v
	}
	return n
}

// Merge adds o into c.
func (c *Counters) Merge(o Counters) {
	c.Purchases += o.Purchases
	c.PurchaseLines += o.PurchaseLines
	c.Sales += o.Sales
	c.SaleLines += o.SaleLines
	c.Restocks += o.Restocks
	c.FallbackPrices += o.FallbackPrices
	c.ClampedUnits += o.ClampedUnits
	for reason, n := range o.Skipped {
		if c.Skipped == nil {
			c.Skipped = make(map[domain.SkipReason]int)
		}
		c.Skipped[reason] += n
	}
}

// Report describes a finished run. Only committed work is counted.
type Report struct {
	RunID      int64
	Seed       uint64
	StartedAt  time.Time
	FinishedAt time.Time

	InitialDays      int
	SalesDays        int
	TotalSalesDays   int
	LastCommittedDay time.Time

	Counters

	Status Status
	Err    error
}

// Headline is the one-line verdict that distinguishes interruption from failure.
func (r *Report) Headline() string {
	switch r.Status {
	case StatusCompleted:
		return "Simulation completed"
	case StatusInterrupted:
		return "Stopped by interruption, open transaction rolled back"
	default:
		return fmt.Sprintf("Aborted by error, open transaction rolled back: %v", r.Err)
	}
}

// Summary renders a multi-line human-readable report.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintln(&b, r.Headline())
	fmt.Fprintf(&b, "  seed:              %d\n", r.Seed)
	fmt.Fprintf(&b, "  initial days:      %d\n", r.InitialDays)
	fmt.Fprintf(&b, "  sales days:        %d/%d\n", r.SalesDays, r.TotalSalesDays)
	if !r.LastCommittedDay.IsZero() {
		fmt.Fprintf(&b, "  last committed:    %s\n", r.LastCommittedDay.Format(time.DateOnly))
	}
	fmt.Fprintf(&b, "  purchases:         %d (%d lines, %d auto restocks)\n", r.Purchases, r.PurchaseLines, r.Restocks)
	fmt.Fprintf(&b, "  sales:             %d (%d lines)\n", r.Sales, r.SaleLines)
	fmt.Fprintf(&b, "  fallback prices:   %d\n", r.FallbackPrices)
	fmt.Fprintf(&b, "  clamped units:     %d\n", r.ClampedUnits)
	for _, reason := range sortedReasons(r.Skipped) {
		fmt.Fprintf(&b, "  skipped %-18s %d\n", string(reason)+":", r.Skipped[reason])
	}
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "  duration:          %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	return b.String()
}

// WriteCSV exports the report as metric,value rows.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"metric", "value"},
		{"run_id", strconv.FormatInt(r.RunID, 10)},
		{"status", string(r.Status)},
		{"seed", strconv.FormatUint(r.Seed, 10)},
		{"started_at", r.StartedAt.Format(time.RFC3339)},
		{"finished_at", r.FinishedAt.Format(time.RFC3339)},
		{"initial_days", strconv.Itoa(r.InitialDays)},
		{"sales_days", strconv.Itoa(r.SalesDays)},
		{"total_sales_days", strconv.Itoa(r.TotalSalesDays)},
		{"purchases", strconv.Itoa(r.Purchases)},
		{"purchase_lines", strconv.Itoa(r.PurchaseLines)},
		{"auto_restocks", strconv.Itoa(r.Restocks)},
		{"sales", strconv.Itoa(r.Sales)},
		{"sale_lines", strconv.Itoa(r.SaleLines)},
		{"fallback_prices", strconv.Itoa(r.FallbackPrices)},
		{"clamped_units", strconv.Itoa(r.ClampedUnits)},
	}
	for _, reason := range sortedReasons(r.Skipped) {
		rows = append(rows, []string{"skipped_" + string(reason), strconv.Itoa(r.Skipped[reason])})
	}
	if r.Err != nil {
		rows = append(rows, []string{"error", r.Err.Error()})
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func sortedReasons(m map[domain.SkipReason]int) []domain.SkipReason {
	out := make([]domain.SkipReason, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
