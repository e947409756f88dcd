// Package booking writes purchase and sale documents and applies each line to the stock ledger.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/ledger"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PurchaseItem is one requested purchase line.
type PurchaseItem struct {
	ArticleID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// SaleItem is one requested sale line. UnitPrice is the discounted price.
type SaleItem struct {
	ArticleID   int64
	Quantity    int
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal
}

// SaleReceipt is a booked sale plus the units the ledger could not take out of stock.
type SaleReceipt struct {
	Document     *domain.SaleDocument
	ClampedUnits int
}

// InvoiceFunc produces the invoice number of a new purchase header.
type InvoiceFunc func(supplierID int64, at time.Time) string

// DefaultInvoice numbers purchases as AUTO-<yyyymmdd>-<supplier>.
func DefaultInvoice(supplierID int64, at time.Time) string {
	return fmt.Sprintf("AUTO-%s-%d", at.Format("20060102"), supplierID)
}

type Option func(*Builder)

// WithInvoiceNumbers overrides how invoice numbers are generated.
func WithInvoiceNumbers(fn InvoiceFunc) Option {
	return func(b *Builder) {
		b.invoice = fn
	}
}

// Builder creates header and line records. It never commits: partial work is
// undone by the caller's transaction.
type Builder struct {
	stock   *ledger.StockLedger
	invoice InvoiceFunc
	log     zerolog.Logger
}

func NewBuilder(stock *ledger.StockLedger, log zerolog.Logger, opts ...Option) *Builder {
	b := &Builder{stock: stock, invoice: DefaultInvoice, log: log}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BookPurchase creates a purchase header and its lines, increasing stock per line.
func (b *Builder) BookPurchase(ctx context.Context, tx repository.LedgerTx, supplierID int64, at time.Time, note string, items []PurchaseItem) (*domain.PurchaseDocument, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("supplier %d: %w", supplierID, domain.ErrEmptyPurchase)
	}

	doc := &domain.PurchaseDocument{
		SupplierID:  supplierID,
		PurchasedAt: at,
		InvoiceNo:   b.invoice(supplierID, at),
		Note:        note,
	}
	if err := tx.InsertPurchase(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to insert purchase: %w", err)
	}

	if err := b.AppendPurchaseLines(ctx, tx, doc, items); err != nil {
		return nil, err
	}

	b.log.Debug().
		Int64("purchase_id", doc.ID).
		Int64("supplier_id", supplierID).
		Int("lines", len(items)).
		Str("note", note).
		Msg("purchase booked")

	return doc, nil
}

// AppendPurchaseLines adds lines to an existing purchase header.
func (b *Builder) AppendPurchaseLines(ctx context.Context, tx repository.LedgerTx, doc *domain.PurchaseDocument, items []PurchaseItem) error {
	for _, item := range items {
		if item.Quantity <= 0 {
			return fmt.Errorf("purchase %d article %d: %w", doc.ID, item.ArticleID, domain.ErrInvalidQuantity)
		}

		line := domain.PurchaseLine{
			PurchaseID: doc.ID,
			ArticleID:  item.ArticleID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		}
		if err := tx.InsertPurchaseLine(ctx, &line); err != nil {
			return fmt.Errorf("failed to insert purchase line: %w", err)
		}
		if _, err := b.stock.Increase(ctx, tx, item.ArticleID, item.Quantity, item.UnitPrice); err != nil {
			return err
		}
		doc.Lines = append(doc.Lines, line)
	}
	return nil
}

// BookSale creates a sale header and its lines, decreasing stock per line.
// Callers drop unsellable items beforehand; an empty item list is rejected
// before anything is written.
func (b *Builder) BookSale(ctx context.Context, tx repository.LedgerTx, customerID int64, at time.Time, items []SaleItem) (*SaleReceipt, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("customer %d: %w", customerID, domain.ErrEmptySale)
	}

	doc := &domain.SaleDocument{CustomerID: customerID, SoldAt: at}
	if err := tx.InsertSale(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to insert sale: %w", err)
	}

	receipt := &SaleReceipt{Document: doc}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("sale %d article %d: %w", doc.ID, item.ArticleID, domain.ErrInvalidQuantity)
		}

		line := domain.SaleLine{
			SaleID:      doc.ID,
			ArticleID:   item.ArticleID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			DiscountPct: item.DiscountPct,
		}
		if err := tx.InsertSaleLine(ctx, &line); err != nil {
			return nil, fmt.Errorf("failed to insert sale line: %w", err)
		}
		res, err := b.stock.Decrease(ctx, tx, item.ArticleID, item.Quantity)
		if err != nil {
			return nil, err
		}
		receipt.ClampedUnits += res.Clamped
		doc.Lines = append(doc.Lines, line)
	}

	b.log.Debug().
		Int64("sale_id", doc.ID).
		Int64("customer_id", customerID).
		Int("lines", len(items)).
		Msg("sale booked")

	return receipt, nil
}
