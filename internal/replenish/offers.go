package replenish

import (
	"context"
	"fmt"
	"sort"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
)

// OfferBook is a run-scoped index of supplier offers by article and by supplier.
type OfferBook struct {
	byArticle  map[int64][]domain.SupplierOffer
	bySupplier map[int64][]domain.SupplierOffer
}

func NewOfferBook(offers []domain.SupplierOffer) *OfferBook {
	b := &OfferBook{
		byArticle:  make(map[int64][]domain.SupplierOffer),
		bySupplier: make(map[int64][]domain.SupplierOffer),
	}
	for _, o := range offers {
		b.byArticle[o.ArticleID] = append(b.byArticle[o.ArticleID], o)
		b.bySupplier[o.SupplierID] = append(b.bySupplier[o.SupplierID], o)
	}
	return b
}

// LoadOfferBook reads all supplier offers once.
func LoadOfferBook(ctx context.Context, repo repository.CatalogRepository) (*OfferBook, error) {
	offers, err := repo.ListSupplierOffers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load supplier offers: %w", err)
	}
	return NewOfferBook(offers), nil
}

// ForArticle returns the offers for an article in catalog order.
func (b *OfferBook) ForArticle(articleID int64) []domain.SupplierOffer {
	return b.byArticle[articleID]
}

// ForSupplier returns the offers of a supplier in catalog order.
func (b *OfferBook) ForSupplier(supplierID int64) []domain.SupplierOffer {
	return b.bySupplier[supplierID]
}

// Articles returns the ids of all articles with at least one offer, ascending.
func (b *OfferBook) Articles() []int64 {
	return sortedKeys(b.byArticle)
}

// Suppliers returns the ids of all suppliers with at least one offer, ascending.
func (b *OfferBook) Suppliers() []int64 {
	return sortedKeys(b.bySupplier)
}

func sortedKeys(m map[int64][]domain.SupplierOffer) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
