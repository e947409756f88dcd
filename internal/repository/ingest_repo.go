package repository

import (
	"context"
	"fmt"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/jmoiron/sqlx"
)

// IngestRepository upserts catalog rows into PostgreSQL. It works on a pool or inside a transaction.
type IngestRepository struct {
	db sqlx.ExtContext
}

var _ CatalogWriter = (*IngestRepository)(nil)

func NewIngestRepository(db sqlx.ExtContext) *IngestRepository {
	return &IngestRepository{db: db}
}

func (r *IngestRepository) UpsertArticle(ctx context.Context, article *domain.Article) error {
	query := `
		INSERT INTO articles (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, article.ID, article.Name); err != nil {
		return fmt.Errorf("failed to upsert article %d: %w", article.ID, err)
	}
	return nil
}

func (r *IngestRepository) UpsertSupplier(ctx context.Context, supplier *domain.Supplier) error {
	query := `
		INSERT INTO suppliers (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, supplier.ID, supplier.Name); err != nil {
		return fmt.Errorf("failed to upsert supplier %d: %w", supplier.ID, err)
	}
	return nil
}

func (r *IngestRepository) UpsertSupplierOffer(ctx context.Context, offer *domain.SupplierOffer) error {
	query := `
		INSERT INTO supplier_offers (article_id, supplier_id, unit_price)
		VALUES ($1, $2, $3)
		ON CONFLICT (article_id, supplier_id)
		DO UPDATE SET unit_price = EXCLUDED.unit_price
	`
	if _, err := r.db.ExecContext(ctx, query, offer.ArticleID, offer.SupplierID, offer.UnitPrice); err != nil {
		return fmt.Errorf("failed to upsert offer article=%d supplier=%d: %w", offer.ArticleID, offer.SupplierID, err)
	}
	return nil
}

func (r *IngestRepository) UpsertPriceEntry(ctx context.Context, entry *domain.PriceListEntry) error {
	query := `
		INSERT INTO price_list_entries (id, article_id, list_price, valid_from, valid_to)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET
			article_id = EXCLUDED.article_id,
			list_price = EXCLUDED.list_price,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ArticleID,
		entry.ListPrice,
		entry.ValidFrom,
		entry.ValidTo,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert price entry %d: %w", entry.ID, err)
	}
	return nil
}

func (r *IngestRepository) UpsertCustomerTier(ctx context.Context, tier *domain.CustomerTier) error {
	query := `
		INSERT INTO customer_tiers (id, name, discount_pct)
		VALUES ($1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, discount_pct = EXCLUDED.discount_pct
	`
	if _, err := r.db.ExecContext(ctx, query, tier.ID, tier.Name, tier.DiscountPct); err != nil {
		return fmt.Errorf("failed to upsert customer tier %d: %w", tier.ID, err)
	}
	return nil
}

func (r *IngestRepository) UpsertCustomer(ctx context.Context, customer *domain.Customer) error {
	query := `
		INSERT INTO customers (id, name, tier_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, tier_id = EXCLUDED.tier_id, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, customer.ID, customer.Name, customer.TierID); err != nil {
		return fmt.Errorf("failed to upsert customer %d: %w", customer.ID, err)
	}
	return nil
}
