// Package catalog reads the read-only catalog (articles, suppliers, offers,
// price list, tiers and customers) from a directory of CSV files. Any file may
// be replaced by an .xlsx workbook of the same base name.
package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// File names expected inside a catalog directory.
const (
	ArticlesFile       = "articles.csv"
	SuppliersFile      = "suppliers.csv"
	SupplierOffersFile = "supplier_offers.csv"
	PriceListFile      = "price_list.csv"
	CustomerTiersFile  = "customer_tiers.csv"
	CustomersFile      = "customers.csv"
)

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// Snapshot is one complete catalog as read from disk.
type Snapshot struct {
	Articles      []domain.Article
	Suppliers     []domain.Supplier
	Offers        []domain.SupplierOffer
	Prices        []domain.PriceListEntry
	CustomerTiers []domain.CustomerTier
	Customers     []domain.Customer
}

// LoadDir reads every catalog file in dir. customer_tiers.csv and price_list.csv are optional.
func LoadDir(dir string) (*Snapshot, error) {
	snap := &Snapshot{}

	steps := []struct {
		file     string
		optional bool
		parse    func(row) error
	}{
		{ArticlesFile, false, snap.addArticle},
		{SuppliersFile, false, snap.addSupplier},
		{SupplierOffersFile, false, snap.addOffer},
		{PriceListFile, true, snap.addPrice},
		{CustomerTiersFile, true, snap.addTier},
		{CustomersFile, false, snap.addCustomer},
	}

	for _, step := range steps {
		path := resolve(dir, step.file)
		n, err := readFile(path, step.parse)
		if errors.Is(err, os.ErrNotExist) && step.optional {
			log.Warn().Str("file", path).Msg("optional catalog file missing")
			continue
		}
		if err != nil {
			return nil, err
		}
		log.Debug().Str("file", path).Int("rows", n).Msg("catalog file loaded")
	}

	return snap, nil
}

// Seed upserts the snapshot in dependency order.
func (s *Snapshot) Seed(ctx context.Context, w repository.CatalogWriter) error {
	for i := range s.Articles {
		if err := w.UpsertArticle(ctx, &s.Articles[i]); err != nil {
			return err
		}
	}
	for i := range s.Suppliers {
		if err := w.UpsertSupplier(ctx, &s.Suppliers[i]); err != nil {
			return err
		}
	}
	for i := range s.Offers {
		if err := w.UpsertSupplierOffer(ctx, &s.Offers[i]); err != nil {
			return err
		}
	}
	for i := range s.Prices {
		if err := w.UpsertPriceEntry(ctx, &s.Prices[i]); err != nil {
			return err
		}
	}
	for i := range s.CustomerTiers {
		if err := w.UpsertCustomerTier(ctx, &s.CustomerTiers[i]); err != nil {
			return err
		}
	}
	for i := range s.Customers {
		if err := w.UpsertCustomer(ctx, &s.Customers[i]); err != nil {
			return err
		}
	}

	log.Info().
		Int("articles", len(s.Articles)).
		Int("suppliers", len(s.Suppliers)).
		Int("offers", len(s.Offers)).
		Int("prices", len(s.Prices)).
		Int("customers", len(s.Customers)).
		Msg("catalog seeded")
	return nil
}

func (s *Snapshot) addArticle(r row) error {
	id, err := r.int64("id")
	if err != nil {
		return err
	}
	s.Articles = append(s.Articles, domain.Article{ID: id, Name: r.get("name")})
	return nil
}

func (s *Snapshot) addSupplier(r row) error {
	id, err := r.int64("id")
	if err != nil {
		return err
	}
	s.Suppliers = append(s.Suppliers, domain.Supplier{ID: id, Name: r.get("name")})
	return nil
}

func (s *Snapshot) addOffer(r row) error {
	articleID, err := r.int64("article_id")
	if err != nil {
		return err
	}
	supplierID, err := r.int64("supplier_id")
	if err != nil {
		return err
	}
	price, err := r.decimal("unit_price")
	if err != nil {
		return err
	}
	if price.IsNegative() {
		return r.errorf("unit_price %s: %w", price, domain.ErrInvalidPrice)
	}
	s.Offers = append(s.Offers, domain.SupplierOffer{ArticleID: articleID, SupplierID: supplierID, UnitPrice: price})
	return nil
}

func (s *Snapshot) addPrice(r row) error {
	id, err := r.int64("id")
	if err != nil {
		return err
	}
	articleID, err := r.int64("article_id")
	if err != nil {
		return err
	}
	price, err := r.decimal("list_price")
	if err != nil {
		return err
	}
	from, err := r.time("valid_from")
	if err != nil {
		return err
	}
	if from == nil {
		return r.errorf("valid_from is required")
	}
	to, err := r.time("valid_to")
	if err != nil {
		return err
	}
	if to != nil && !to.After(*from) {
		return r.errorf("valid_to %s not after valid_from %s", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	s.Prices = append(s.Prices, domain.PriceListEntry{ID: id, ArticleID: articleID, ListPrice: price, ValidFrom: *from, ValidTo: to})
	return nil
}

func (s *Snapshot) addTier(r row) error {
	id, err := r.int64("id")
	if err != nil {
		return err
	}
	discount := decimal.Zero
	if r.get("discount_pct") != "" {
		if discount, err = r.decimal("discount_pct"); err != nil {
			return err
		}
	}
	s.CustomerTiers = append(s.CustomerTiers, domain.CustomerTier{ID: id, Name: r.get("name"), DiscountPct: discount})
	return nil
}

func (s *Snapshot) addCustomer(r row) error {
	id, err := r.int64("id")
	if err != nil {
		return err
	}
	c := domain.Customer{ID: id, Name: r.get("name")}
	if r.get("tier_id") != "" {
		tierID, err := r.int64("tier_id")
		if err != nil {
			return err
		}
		c.TierID = &tierID
	}
	s.Customers = append(s.Customers, c)
	return nil
}

// row is one CSV record addressed by header name.
type row struct {
	file   string
	line   int
	header map[string]int
	record []string
}

func (r row) get(col string) string {
	idx, ok := r.header[col]
	if !ok || idx >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[idx])
}

func (r row) errorf(format string, args ...any) error {
	return fmt.Errorf("%s line %d: %w", r.file, r.line, fmt.Errorf(format, args...))
}

func (r row) int64(col string) (int64, error) {
	v, err := strconv.ParseInt(r.get(col), 10, 64)
	if err != nil {
		return 0, r.errorf("column %s: %w", col, err)
	}
	return v, nil
}

func (r row) decimal(col string) (decimal.Decimal, error) {
	v, err := parseDecimal(r.get(col))
	if err != nil {
		return decimal.Zero, r.errorf("column %s: %w", col, err)
	}
	return v, nil
}

// parseDecimal accepts a decimal comma ("2,50") as well as grouped values in
// either convention ("1,234.50", "1.234,50"). The last separator is the
// decimal one.
func parseDecimal(raw string) (decimal.Decimal, error) {
	comma, dot := strings.LastIndex(raw, ","), strings.LastIndex(raw, ".")
	switch {
	case comma >= 0 && dot >= 0 && dot > comma:
		raw = strings.ReplaceAll(raw, ",", "")
	case comma >= 0 && dot >= 0:
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.Replace(raw, ",", ".", 1)
	case comma >= 0:
		raw = strings.Replace(raw, ",", ".", 1)
	}
	return decimal.NewFromString(raw)
}

func (r row) time(col string) (*time.Time, error) {
	raw := r.get(col)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return &t, nil
		}
	}
	return nil, r.errorf("column %s: unrecognized time %q", col, raw)
}

// resolve prefers name (a .csv file) and falls back to a sheet with the same base name.
func resolve(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	xlsx := strings.TrimSuffix(path, filepath.Ext(path)) + ".xlsx"
	if _, err := os.Stat(xlsx); err == nil {
		return xlsx
	}
	return path
}

// readFile calls parse for every data row of a CSV (comma or semicolon) or XLSX file.
func readFile(path string, parse func(row) error) (int, error) {
	var (
		records [][]string
		err     error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		records, err = readXLSX(path)
	} else {
		records, err = readCSV(path)
	}
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("%s has no header row", path)
	}

	index := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}

	n := 0
	for i, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		if err := parse(row{file: filepath.Base(path), line: i + 2, header: index, record: record}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func readCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	firstLine, _, _ := strings.Cut(string(data), "\n")
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		reader.Comma = ';'
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV %s: %w", path, err)
	}
	return records, nil
}

// readXLSX returns the rows of the first sheet.
func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx file %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx file %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
