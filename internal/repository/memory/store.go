// Package memory is an in-process ledger store. It backs dry runs without a
// database and the unit tests of every component above the repository layer.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
	"github.com/shopspring/decimal"
)

// Store keeps the catalog, the stock positions and all booked documents in memory.
// Transactions are serialized; a rolled back transaction restores every stock
// position it touched and truncates the documents it appended.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	articles  map[int64]*domain.Article
	suppliers map[int64]domain.Supplier
	offers    map[offerKey]domain.SupplierOffer
	prices    map[int64]domain.PriceListEntry
	tiers     map[int64]domain.CustomerTier
	customers map[int64]domain.Customer

	purchases     []domain.PurchaseDocument
	purchaseLines []domain.PurchaseLine
	sales         []domain.SaleDocument
	saleLines     []domain.SaleLine
	runs          []domain.Run

	seq    sequences
	faults map[string]error
}

type offerKey struct {
	articleID  int64
	supplierID int64
}

type sequences struct {
	purchase     int64
	purchaseLine int64
	sale         int64
	saleLine     int64
	run          int64
}

var (
	_ repository.LedgerRepository = (*Store)(nil)
	_ repository.CatalogWriter    = (*Store)(nil)
	_ repository.RunRepository    = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		articles:  make(map[int64]*domain.Article),
		suppliers: make(map[int64]domain.Supplier),
		offers:    make(map[offerKey]domain.SupplierOffer),
		prices:    make(map[int64]domain.PriceListEntry),
		tiers:     make(map[int64]domain.CustomerTier),
		customers: make(map[int64]domain.Customer),
		faults:    make(map[string]error),
	}
}

// InjectFault makes the named transaction operation (for example "InsertSale")
// fail with err until ClearFaults is called.
func (s *Store) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]error)
}

// Catalog writes

func (s *Store) UpsertArticle(_ context.Context, article *domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.articles[article.ID]; ok {
		existing.Name = article.Name
		return nil
	}
	a := *article
	if a.Quantity < 0 {
		return fmt.Errorf("article %d: %w", a.ID, domain.ErrInvalidQuantity)
	}
	s.articles[a.ID] = &a
	return nil
}

func (s *Store) UpsertSupplier(_ context.Context, supplier *domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppliers[supplier.ID] = *supplier
	return nil
}

func (s *Store) UpsertSupplierOffer(_ context.Context, offer *domain.SupplierOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers[offerKey{offer.ArticleID, offer.SupplierID}] = *offer
	return nil
}

func (s *Store) UpsertPriceEntry(_ context.Context, entry *domain.PriceListEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[entry.ID] = *entry
	return nil
}

func (s *Store) UpsertCustomerTier(_ context.Context, tier *domain.CustomerTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[tier.ID] = *tier
	return nil
}

func (s *Store) UpsertCustomer(_ context.Context, customer *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[customer.ID] = *customer
	return nil
}

// PutStock overwrites an article's stock position outside any transaction.
func (s *Store) PutStock(level domain.StockLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[level.ArticleID]
	if !ok {
		a = &domain.Article{ID: level.ArticleID}
		s.articles[level.ArticleID] = a
	}
	a.Quantity = level.Quantity
	a.AvgCost = level.AvgCost
}

// Catalog reads

func (s *Store) ListArticles(_ context.Context) ([]domain.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Article, 0, len(s.articles))
	for _, a := range s.articles {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		out = append(out, sup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListSupplierOffers(_ context.Context) ([]domain.SupplierOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SupplierOffer, 0, len(s.offers))
	for _, o := range s.offers {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ArticleID != out[j].ArticleID {
			return out[i].ArticleID < out[j].ArticleID
		}
		return out[i].SupplierID < out[j].SupplierID
	})
	return out, nil
}

func (s *Store) ListPriceEntries(_ context.Context) ([]domain.PriceListEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedPrices(func(domain.PriceListEntry) bool { return true }), nil
}

func (s *Store) PriceEntriesForArticle(_ context.Context, articleID int64) ([]domain.PriceListEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedPrices(func(e domain.PriceListEntry) bool { return e.ArticleID == articleID }), nil
}

func (s *Store) sortedPrices(keep func(domain.PriceListEntry) bool) []domain.PriceListEntry {
	out := make([]domain.PriceListEntry, 0)
	for _, e := range s.prices {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		c.Tier = domain.TierStandard
		c.DiscountPct = decimal.Zero
		if c.TierID != nil {
			if tier, ok := s.tiers[*c.TierID]; ok {
				c.Tier = domain.ParseTier(tier.Name)
				c.DiscountPct = tier.DiscountPct
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Transactions

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := s.begin()
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) Reset(_ context.Context) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purchases = nil
	s.purchaseLines = nil
	s.sales = nil
	s.saleLines = nil
	run := s.seq.run
	s.seq = sequences{run: run}
	for _, a := range s.articles {
		a.Quantity = 0
		a.AvgCost.Valid = false
	}
	return nil
}

// Runs

func (s *Store) CreateRun(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq.run++
	run.ID = s.seq.run
	s.runs = append(s.runs, *run)
	return nil
}

func (s *Store) UpdateRun(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == run.ID {
			s.runs[i] = *run
			return nil
		}
	}
	return fmt.Errorf("run %d not found", run.ID)
}

// Inspection helpers

func (s *Store) Runs() []domain.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Run(nil), s.runs...)
}

// Purchases returns every purchase header with its lines attached.
func (s *Store) Purchases() []domain.PurchaseDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PurchaseDocument, len(s.purchases))
	for i, p := range s.purchases {
		for _, l := range s.purchaseLines {
			if l.PurchaseID == p.ID {
				p.Lines = append(p.Lines, l)
			}
		}
		out[i] = p
	}
	return out
}

// Sales returns every sale header with its lines attached.
func (s *Store) Sales() []domain.SaleDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SaleDocument, len(s.sales))
	for i, doc := range s.sales {
		for _, l := range s.saleLines {
			if l.SaleID == doc.ID {
				doc.Lines = append(doc.Lines, l)
			}
		}
		out[i] = doc
	}
	return out
}

// StockOf returns the current stock position of an article.
func (s *Store) StockOf(articleID int64) (domain.StockLevel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[articleID]
	if !ok {
		return domain.StockLevel{}, false
	}
	return domain.StockLevel{ArticleID: a.ID, Quantity: a.Quantity, AvgCost: a.AvgCost}, true
}

// tx records enough state to undo itself: the original stock of every
// touched article and the document slice lengths at begin.
type tx struct {
	s          *Store
	seq        sequences
	purchases  int
	pLines     int
	sales      int
	sLines     int
	origStocks map[int64]domain.StockLevel
}

func (s *Store) begin() *tx {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &tx{
		s:          s,
		seq:        s.seq,
		purchases:  len(s.purchases),
		pLines:     len(s.purchaseLines),
		sales:      len(s.sales),
		sLines:     len(s.saleLines),
		origStocks: make(map[int64]domain.StockLevel),
	}
}

func (t *tx) rollback() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purchases = s.purchases[:t.purchases]
	s.purchaseLines = s.purchaseLines[:t.pLines]
	s.sales = s.sales[:t.sales]
	s.saleLines = s.saleLines[:t.sLines]
	run := s.seq.run
	s.seq = t.seq
	s.seq.run = run
	for id, level := range t.origStocks {
		if a, ok := s.articles[id]; ok {
			a.Quantity = level.Quantity
			a.AvgCost = level.AvgCost
		}
	}
}

// fault must be called with s.mu held.
func (t *tx) fault(op string) error {
	if err, ok := t.s.faults[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (t *tx) Stock(ctx context.Context, articleID int64) (domain.StockLevel, error) {
	if err := ctx.Err(); err != nil {
		return domain.StockLevel{}, err
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	if err := t.fault("Stock"); err != nil {
		return domain.StockLevel{}, err
	}
	a, ok := t.s.articles[articleID]
	if !ok {
		return domain.StockLevel{}, fmt.Errorf("article %d: %w", articleID, domain.ErrArticleNotFound)
	}
	return domain.StockLevel{ArticleID: a.ID, Quantity: a.Quantity, AvgCost: a.AvgCost}, nil
}

func (t *tx) SetStock(ctx context.Context, level domain.StockLevel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.fault("SetStock"); err != nil {
		return err
	}
	if level.Quantity < 0 {
		return fmt.Errorf("article %d: %w", level.ArticleID, domain.ErrInvalidQuantity)
	}
	a, ok := t.s.articles[level.ArticleID]
	if !ok {
		return fmt.Errorf("article %d: %w", level.ArticleID, domain.ErrArticleNotFound)
	}
	if _, seen := t.origStocks[a.ID]; !seen {
		t.origStocks[a.ID] = domain.StockLevel{ArticleID: a.ID, Quantity: a.Quantity, AvgCost: a.AvgCost}
	}
	a.Quantity = level.Quantity
	a.AvgCost = level.AvgCost
	return nil
}

func (t *tx) InsertPurchase(ctx context.Context, doc *domain.PurchaseDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.fault("InsertPurchase"); err != nil {
		return err
	}
	t.s.seq.purchase++
	doc.ID = t.s.seq.purchase
	header := *doc
	header.Lines = nil
	t.s.purchases = append(t.s.purchases, header)
	return nil
}

func (t *tx) InsertPurchaseLine(ctx context.Context, line *domain.PurchaseLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.fault("InsertPurchaseLine"); err != nil {
		return err
	}
	t.s.seq.purchaseLine++
	line.ID = t.s.seq.purchaseLine
	t.s.purchaseLines = append(t.s.purchaseLines, *line)
	return nil
}

func (t *tx) InsertSale(ctx context.Context, doc *domain.SaleDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.fault("InsertSale"); err != nil {
		return err
	}
	t.s.seq.sale++
	doc.ID = t.s.seq.sale
	header := *doc
	header.Lines = nil
	t.s.sales = append(t.s.sales, header)
	return nil
}

func (t *tx) InsertSaleLine(ctx context.Context, line *domain.SaleLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.fault("InsertSaleLine"); err != nil {
		return err
	}
	t.s.seq.saleLine++
	line.ID = t.s.seq.saleLine
	t.s.saleLines = append(t.s.saleLines, *line)
	return nil
}

func (t *tx) ArticlesBelow(_ context.Context, threshold int) ([]domain.StockLevel, error) {
	return t.levels(func(a *domain.Article) bool { return a.Quantity < threshold }), nil
}

func (t *tx) ArticlesInStock(_ context.Context) ([]domain.StockLevel, error) {
	return t.levels(func(a *domain.Article) bool { return a.Quantity > 0 }), nil
}

func (t *tx) levels(keep func(*domain.Article) bool) []domain.StockLevel {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	out := make([]domain.StockLevel, 0)
	for _, a := range t.s.articles {
		if keep(a) {
			out = append(out, domain.StockLevel{ArticleID: a.ID, Quantity: a.Quantity, AvgCost: a.AvgCost})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArticleID < out[j].ArticleID })
	return out
}

func (t *tx) FindTaggedPurchase(_ context.Context, supplierID int64, day time.Time, note string) (*domain.PurchaseDocument, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	from, to := repository.DayBounds(day)
	for _, p := range t.s.purchases {
		if p.SupplierID == supplierID && p.Note == note && !p.PurchasedAt.Before(from) && p.PurchasedAt.Before(to) {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (t *tx) HasTaggedPurchaseLine(_ context.Context, articleID, supplierID int64, day time.Time, note string) (bool, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	from, to := repository.DayBounds(day)
	tagged := make(map[int64]bool)
	for _, p := range t.s.purchases {
		if p.SupplierID == supplierID && p.Note == note && !p.PurchasedAt.Before(from) && p.PurchasedAt.Before(to) {
			tagged[p.ID] = true
		}
	}
	for _, l := range t.s.purchaseLines {
		if l.ArticleID == articleID && tagged[l.PurchaseID] {
			return true, nil
		}
	}
	return false, nil
}
