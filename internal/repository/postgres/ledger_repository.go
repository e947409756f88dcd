package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
	"github.com/jmoiron/sqlx"
)

type ledgerRepository struct {
	db *DB
}

var _ repository.LedgerRepository = (*ledgerRepository)(nil)

func NewLedgerRepository(db *DB) repository.LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) ListArticles(ctx context.Context) ([]domain.Article, error) {
	query := `
		SELECT id, name, stock_qty, avg_cost
		FROM articles
		ORDER BY id
	`

	var articles []domain.Article
	if err := sqlx.SelectContext(ctx, r.db, &articles, query); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	return articles, nil
}

func (r *ledgerRepository) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	var suppliers []domain.Supplier
	if err := sqlx.SelectContext(ctx, r.db, &suppliers, `SELECT id, name FROM suppliers ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	return suppliers, nil
}

func (r *ledgerRepository) ListSupplierOffers(ctx context.Context) ([]domain.SupplierOffer, error) {
	query := `
		SELECT article_id, supplier_id, unit_price
		FROM supplier_offers
		ORDER BY article_id, supplier_id
	`

	var offers []domain.SupplierOffer
	if err := sqlx.SelectContext(ctx, r.db, &offers, query); err != nil {
		return nil, fmt.Errorf("failed to list supplier offers: %w", err)
	}
	return offers, nil
}

func (r *ledgerRepository) ListPriceEntries(ctx context.Context) ([]domain.PriceListEntry, error) {
	query := `
		SELECT id, article_id, list_price, valid_from, valid_to
		FROM price_list_entries
		ORDER BY id
	`

	var entries []domain.PriceListEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query); err != nil {
		return nil, fmt.Errorf("failed to list price entries: %w", err)
	}
	return entries, nil
}

func (r *ledgerRepository) PriceEntriesForArticle(ctx context.Context, articleID int64) ([]domain.PriceListEntry, error) {
	query := `
		SELECT id, article_id, list_price, valid_from, valid_to
		FROM price_list_entries
		WHERE article_id = $1
		ORDER BY id
	`

	var entries []domain.PriceListEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, articleID); err != nil {
		return nil, fmt.Errorf("failed to list price entries for article %d: %w", articleID, err)
	}
	return entries, nil
}

func (r *ledgerRepository) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	query := `
		SELECT
			c.id,
			c.name,
			c.tier_id,
			COALESCE(t.name, 'Standard') AS tier,
			COALESCE(t.discount_pct, 0) AS discount_pct
		FROM customers c
		LEFT JOIN customer_tiers t ON t.id = c.tier_id
		ORDER BY c.id
	`

	var customers []domain.Customer
	if err := sqlx.SelectContext(ctx, r.db, &customers, query); err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	for i := range customers {
		customers[i].Tier = domain.ParseTier(string(customers[i].Tier))
	}
	return customers, nil
}

func (r *ledgerRepository) WithTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&ledgerTx{tx: tx})
	})
}

// Reset truncates every movement table and zeroes all stock positions.
func (r *ledgerRepository) Reset(ctx context.Context) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `TRUNCATE sale_lines, sales, purchase_lines, purchases RESTART IDENTITY`); err != nil {
			return fmt.Errorf("failed to truncate movements: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE articles SET stock_qty = 0, avg_cost = NULL`); err != nil {
			return fmt.Errorf("failed to reset stock: %w", err)
		}
		return nil
	})
}

type ledgerTx struct {
	tx *sqlx.Tx
}

func (t *ledgerTx) Stock(ctx context.Context, articleID int64) (domain.StockLevel, error) {
	var level domain.StockLevel
	err := t.tx.GetContext(ctx, &level, `SELECT id, stock_qty, avg_cost FROM articles WHERE id = $1 FOR UPDATE`, articleID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StockLevel{}, fmt.Errorf("article %d: %w", articleID, domain.ErrArticleNotFound)
	}
	if err != nil {
		return domain.StockLevel{}, fmt.Errorf("failed to read stock of article %d: %w", articleID, err)
	}
	return level, nil
}

func (t *ledgerTx) SetStock(ctx context.Context, level domain.StockLevel) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE articles SET stock_qty = $1, avg_cost = $2, updated_at = NOW() WHERE id = $3`,
		level.Quantity, level.AvgCost, level.ArticleID,
	)
	if err != nil {
		return fmt.Errorf("failed to update stock of article %d: %w", level.ArticleID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("article %d: %w", level.ArticleID, domain.ErrArticleNotFound)
	}
	return nil
}

func (t *ledgerTx) InsertPurchase(ctx context.Context, doc *domain.PurchaseDocument) error {
	query := `
		INSERT INTO purchases (supplier_id, purchased_at, invoice_no, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := t.tx.QueryRowxContext(ctx, query, doc.SupplierID, doc.PurchasedAt, doc.InvoiceNo, doc.Note).Scan(&doc.ID); err != nil {
		return fmt.Errorf("failed to insert purchase: %w", err)
	}
	return nil
}

func (t *ledgerTx) InsertPurchaseLine(ctx context.Context, line *domain.PurchaseLine) error {
	query := `
		INSERT INTO purchase_lines (purchase_id, article_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := t.tx.QueryRowxContext(ctx, query, line.PurchaseID, line.ArticleID, line.Quantity, line.UnitPrice).Scan(&line.ID); err != nil {
		return fmt.Errorf("failed to insert purchase line: %w", err)
	}
	return nil
}

func (t *ledgerTx) InsertSale(ctx context.Context, doc *domain.SaleDocument) error {
	query := `
		INSERT INTO sales (customer_id, sold_at)
		VALUES ($1, $2)
		RETURNING id
	`
	if err := t.tx.QueryRowxContext(ctx, query, doc.CustomerID, doc.SoldAt).Scan(&doc.ID); err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}
	return nil
}

func (t *ledgerTx) InsertSaleLine(ctx context.Context, line *domain.SaleLine) error {
	query := `
		INSERT INTO sale_lines (sale_id, article_id, quantity, unit_price, discount_pct)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := t.tx.QueryRowxContext(ctx, query,
		line.SaleID,
		line.ArticleID,
		line.Quantity,
		line.UnitPrice,
		line.DiscountPct,
	).Scan(&line.ID)
	if err != nil {
		return fmt.Errorf("failed to insert sale line: %w", err)
	}
	return nil
}

func (t *ledgerTx) ArticlesBelow(ctx context.Context, threshold int) ([]domain.StockLevel, error) {
	var levels []domain.StockLevel
	err := t.tx.SelectContext(ctx, &levels, `SELECT id, stock_qty, avg_cost FROM articles WHERE stock_qty < $1 ORDER BY id`, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles below %d: %w", threshold, err)
	}
	return levels, nil
}

func (t *ledgerTx) ArticlesInStock(ctx context.Context) ([]domain.StockLevel, error) {
	var levels []domain.StockLevel
	err := t.tx.SelectContext(ctx, &levels, `SELECT id, stock_qty, avg_cost FROM articles WHERE stock_qty > 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles in stock: %w", err)
	}
	return levels, nil
}

func (t *ledgerTx) FindTaggedPurchase(ctx context.Context, supplierID int64, day time.Time, note string) (*domain.PurchaseDocument, error) {
	from, to := repository.DayBounds(day)
	query := `
		SELECT id, supplier_id, purchased_at, invoice_no, note
		FROM purchases
		WHERE supplier_id = $1
		  AND purchased_at >= $2 AND purchased_at < $3
		  AND note = $4
		ORDER BY id
		LIMIT 1
	`

	var doc domain.PurchaseDocument
	err := t.tx.GetContext(ctx, &doc, query, supplierID, from, to, note)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tagged purchase: %w", err)
	}
	return &doc, nil
}

func (t *ledgerTx) HasTaggedPurchaseLine(ctx context.Context, articleID, supplierID int64, day time.Time, note string) (bool, error) {
	from, to := repository.DayBounds(day)
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM purchase_lines pl
			JOIN purchases p ON p.id = pl.purchase_id
			WHERE pl.article_id = $1
			  AND p.supplier_id = $2
			  AND p.purchased_at >= $3 AND p.purchased_at < $4
			  AND p.note = $5
		)
	`

	var exists bool
	if err := t.tx.GetContext(ctx, &exists, query, articleID, supplierID, from, to, note); err != nil {
		return false, fmt.Errorf("failed to check tagged purchase line: %w", err)
	}
	return exists, nil
}
