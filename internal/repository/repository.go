// backend-go/internal/repository/repository.go
package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
)

// CatalogRepository reads the static catalog. Results are ordered by id.
type CatalogRepository interface {
	ListArticles(ctx context.Context) ([]domain.Article, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	ListSupplierOffers(ctx context.Context) ([]domain.SupplierOffer, error)
	ListPriceEntries(ctx context.Context) ([]domain.PriceListEntry, error)
	PriceEntriesForArticle(ctx context.Context, articleID int64) ([]domain.PriceListEntry, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
}

// CatalogWriter upserts catalog rows. Upserting an article never touches its stock position.
type CatalogWriter interface {
	UpsertArticle(ctx context.Context, article *domain.Article) error
	UpsertSupplier(ctx context.Context, supplier *domain.Supplier) error
	UpsertSupplierOffer(ctx context.Context, offer *domain.SupplierOffer) error
	UpsertPriceEntry(ctx context.Context, entry *domain.PriceListEntry) error
	UpsertCustomerTier(ctx context.Context, tier *domain.CustomerTier) error
	UpsertCustomer(ctx context.Context, customer *domain.Customer) error
}

// LedgerTx is the set of reads and writes available inside one transaction.
type LedgerTx interface {
	// Stock returns the article's stock position and locks it for the rest of the transaction.
	Stock(ctx context.Context, articleID int64) (domain.StockLevel, error)
	SetStock(ctx context.Context, level domain.StockLevel) error

	InsertPurchase(ctx context.Context, doc *domain.PurchaseDocument) error
	InsertPurchaseLine(ctx context.Context, line *domain.PurchaseLine) error
	InsertSale(ctx context.Context, doc *domain.SaleDocument) error
	InsertSaleLine(ctx context.Context, line *domain.SaleLine) error

	ArticlesBelow(ctx context.Context, threshold int) ([]domain.StockLevel, error)
	ArticlesInStock(ctx context.Context) ([]domain.StockLevel, error)

	// FindTaggedPurchase returns the first purchase of the supplier on the given day
	// carrying note, or nil when there is none.
	FindTaggedPurchase(ctx context.Context, supplierID int64, day time.Time, note string) (*domain.PurchaseDocument, error)
	HasTaggedPurchaseLine(ctx context.Context, articleID, supplierID int64, day time.Time, note string) (bool, error)
}

// LedgerRepository is the write side of the ledger.
type LedgerRepository interface {
	CatalogRepository

	// WithTx runs fn in a transaction. It commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx LedgerTx) error) error

	// Reset deletes every purchase and sale and zeroes all stock positions.
	Reset(ctx context.Context) error
}

// RunRepository tracks run records.
type RunRepository interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	UpdateRun(ctx context.Context, run *domain.Run) error
}

// DayBounds returns [start of day, start of next day) for t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
