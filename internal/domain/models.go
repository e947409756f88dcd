// backend-go/internal/domain/models.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Article is a sellable item together with its current stock position.
// Quantity and AvgCost are only ever changed through the stock ledger.
type Article struct {
	ID       int64               `json:"id" db:"id"`
	Name     string              `json:"name" db:"name"`
	Quantity int                 `json:"stock_qty" db:"stock_qty"`
	AvgCost  decimal.NullDecimal `json:"avg_cost" db:"avg_cost"`
}

// StockLevel is a point-in-time read of an article's quantity and weighted-average cost.
type StockLevel struct {
	ArticleID int64               `json:"article_id" db:"id"`
	Quantity  int                 `json:"stock_qty" db:"stock_qty"`
	AvgCost   decimal.NullDecimal `json:"avg_cost" db:"avg_cost"`
}

// Cost returns the weighted-average cost, or zero when the article was never purchased.
func (s StockLevel) Cost() decimal.Decimal {
	if !s.AvgCost.Valid {
		return decimal.Zero
	}
	return s.AvgCost.Decimal
}

// Supplier is a vendor the store purchases from.
type Supplier struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// SupplierOffer says that a supplier sells an article at a fixed unit purchase price.
type SupplierOffer struct {
	ArticleID  int64           `json:"article_id" db:"article_id"`
	SupplierID int64           `json:"supplier_id" db:"supplier_id"`
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
}

// PriceListEntry is a list price valid in [ValidFrom, ValidTo). A nil ValidTo never expires.
type PriceListEntry struct {
	ID        int64           `json:"id" db:"id"`
	ArticleID int64           `json:"article_id" db:"article_id"`
	ListPrice decimal.Decimal `json:"list_price" db:"list_price"`
	ValidFrom time.Time       `json:"valid_from" db:"valid_from"`
	ValidTo   *time.Time      `json:"valid_to" db:"valid_to"`
}

// Contains reports whether at falls inside the entry's validity window.
func (e PriceListEntry) Contains(at time.Time) bool {
	if at.Before(e.ValidFrom) {
		return false
	}
	return e.ValidTo == nil || at.Before(*e.ValidTo)
}

// CustomerTier is a customer classification carrying the discount granted to its members.
type CustomerTier struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	DiscountPct decimal.Decimal `json:"discount_pct" db:"discount_pct"`
}

// Customer is read-only for the ledger; Tier and DiscountPct come from the customer's tier.
type Customer struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	TierID      *int64          `json:"tier_id" db:"tier_id"`
	Tier        Tier            `json:"tier" db:"tier"`
	DiscountPct decimal.Decimal `json:"discount_pct" db:"discount_pct"`
}

// PurchaseDocument is a purchase header. Lines are filled in by the booking layer.
type PurchaseDocument struct {
	ID          int64          `json:"id" db:"id"`
	SupplierID  int64          `json:"supplier_id" db:"supplier_id"`
	PurchasedAt time.Time      `json:"purchased_at" db:"purchased_at"`
	InvoiceNo   string         `json:"invoice_no" db:"invoice_no"`
	Note        string         `json:"note" db:"note"`
	Lines       []PurchaseLine `json:"lines" db:"-"`
}

// PurchaseLine is one article on a purchase document.
type PurchaseLine struct {
	ID         int64           `json:"id" db:"id"`
	PurchaseID int64           `json:"purchase_id" db:"purchase_id"`
	ArticleID  int64           `json:"article_id" db:"article_id"`
	Quantity   int             `json:"quantity" db:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
}

// SaleDocument is a sale (receipt) header.
type SaleDocument struct {
	ID         int64      `json:"id" db:"id"`
	CustomerID int64      `json:"customer_id" db:"customer_id"`
	SoldAt     time.Time  `json:"sold_at" db:"sold_at"`
	Lines      []SaleLine `json:"lines" db:"-"`
}

// SaleLine is one article on a sale document. UnitPrice already has the discount applied.
type SaleLine struct {
	ID          int64           `json:"id" db:"id"`
	SaleID      int64           `json:"sale_id" db:"sale_id"`
	ArticleID   int64           `json:"article_id" db:"article_id"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	DiscountPct decimal.Decimal `json:"discount_pct" db:"discount_pct"`
}

// IntRange is an inclusive integer range.
type IntRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Valid reports whether the range is non-empty.
func (r IntRange) Valid() bool {
	return r.Min <= r.Max
}

// Clamp limits v to the range.
func (r IntRange) Clamp(v int) int {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Run tracks one simulation, restock or single-event execution.
type Run struct {
	ID            int64      `json:"id" db:"id"`
	Kind          string     `json:"kind" db:"kind"`
	Status        RunStatus  `json:"status" db:"status"`
	Seed          uint64     `json:"seed" db:"seed"`
	DaysProcessed int        `json:"days_processed" db:"days_processed"`
	Purchases     int        `json:"purchases" db:"purchases"`
	Sales         int        `json:"sales" db:"sales"`
	Lines         int        `json:"lines" db:"lines"`
	SkippedLines  int        `json:"skipped_lines" db:"skipped_lines"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	CompletedAt   *time.Time `json:"completed_at" db:"completed_at"`
	ErrorMessage  *string    `json:"error_message" db:"error_message"`
}
