package domain

import "fmt"

// SkipReason explains why a line was left out without aborting its transaction.
type SkipReason string

const (
	SkipNoSupplierOffer  SkipReason = "no_supplier_offer"
	SkipNoStock          SkipReason = "no_stock"
	SkipNoPrice          SkipReason = "no_price"
	SkipDuplicateRestock SkipReason = "duplicate_restock"
)

// LineResult is the per-line outcome: either booked or skipped with a reason.
// A skipped line never aborts the surrounding transaction.
type LineResult struct {
	ArticleID int64
	Reason    SkipReason
	Detail    string
}

// Booked returns a result for a line that made it onto its document.
func Booked(articleID int64) LineResult {
	return LineResult{ArticleID: articleID}
}

// Skipped returns a result for a line that was left out.
func Skipped(articleID int64, reason SkipReason, detail string) LineResult {
	return LineResult{ArticleID: articleID, Reason: reason, Detail: detail}
}

// IsSkipped reports whether the line was left out.
func (r LineResult) IsSkipped() bool {
	return r.Reason != ""
}

func (r LineResult) String() string {
	if !r.IsSkipped() {
		return fmt.Sprintf("article %d booked", r.ArticleID)
	}
	if r.Detail == "" {
		return fmt.Sprintf("article %d skipped: %s", r.ArticleID, r.Reason)
	}
	return fmt.Sprintf("article %d skipped: %s (%s)", r.ArticleID, r.Reason, r.Detail)
}

// TxOutcome is the per-transaction outcome. An aborted outcome means everything
// written inside the transaction was rolled back.
type TxOutcome struct {
	Committed bool
	Reason    error
}

// Committed returns a successful transaction outcome.
func Committed() TxOutcome {
	return TxOutcome{Committed: true}
}

// Aborted returns a rolled back transaction outcome.
func Aborted(reason error) TxOutcome {
	return TxOutcome{Reason: reason}
}

func (o TxOutcome) String() string {
	if o.Committed {
		return "committed"
	}
	return fmt.Sprintf("aborted: %v", o.Reason)
}
