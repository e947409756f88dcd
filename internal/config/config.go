// backend-go/internal/config/config.go
package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Database   DatabaseConfig
	Cache      CacheConfig
	Storage    StorageConfig
	Metrics    MetricsConfig
	Log        LogConfig
	App        AppConfig
	Simulation SimulationConfig
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

type AppConfig struct {
	DataDir   string
	ReportDir string
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	ReportPrefix  string
	RunTTLSeconds int
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

type MetricsConfig struct {
	// Addr is the ops listen address (":9102"); empty disables the endpoint.
	Addr string
}

type LogConfig struct {
	Level string
}

// SimulationConfig is the full tuning surface of a simulation run.
type SimulationConfig struct {
	InitialStart time.Time
	InitialEnd   time.Time
	SalesStart   time.Time
	SalesEnd     time.Time

	StoreOpenHour  int
	StoreCloseHour int

	InitialQuantity    domain.IntRange
	RestockThreshold   int
	RestockQuantity    domain.IntRange
	RestockLeadMinutes domain.IntRange
	WeeklyVisits       domain.IntRange
	TierRules          map[domain.Tier]domain.TierRule
	FallbackMarkup     decimal.Decimal

	Seed              uint64
	CommitEveryDays   int
	ProgressEveryDays int

	BatchThreshold int
	BatchQuantity  domain.IntRange

	PurchaseLines    domain.IntRange
	PurchaseQuantity domain.IntRange
}

var (
	once     sync.Once
	instance *Config
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DefaultTierRules widen basket sizes and quantities with tier rank.
func DefaultTierRules() map[domain.Tier]domain.TierRule {
	return map[domain.Tier]domain.TierRule{
		domain.TierStandard: {Items: domain.IntRange{Min: 1, Max: 25}, Quantity: domain.IntRange{Min: 1, Max: 25}},
		domain.TierSilber:   {Items: domain.IntRange{Min: 1, Max: 50}, Quantity: domain.IntRange{Min: 1, Max: 50}},
		domain.TierGold:     {Items: domain.IntRange{Min: 5, Max: 100}, Quantity: domain.IntRange{Min: 5, Max: 100}},
		domain.TierPlatin:   {Items: domain.IntRange{Min: 5, Max: 200}, Quantity: domain.IntRange{Min: 10, Max: 200}},
	}
}

// DefaultSimulation returns the stock simulation parameters.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		InitialStart:       date(2024, 1, 1),
		InitialEnd:         date(2024, 1, 3),
		SalesStart:         date(2024, 1, 4),
		SalesEnd:           date(2025, 10, 31),
		StoreOpenHour:      9,
		StoreCloseHour:     18,
		InitialQuantity:    domain.IntRange{Min: 200, Max: 1000},
		RestockThreshold:   20,
		RestockQuantity:    domain.IntRange{Min: 200, Max: 1000},
		RestockLeadMinutes: domain.IntRange{Min: 65, Max: 100},
		WeeklyVisits:       domain.IntRange{Min: 1, Max: 7},
		TierRules:          DefaultTierRules(),
		FallbackMarkup:     decimal.RequireFromString("1.35"),
		Seed:               42,
		CommitEveryDays:    1,
		ProgressEveryDays:  7,
		BatchThreshold:     300,
		BatchQuantity:      domain.IntRange{Min: 200, Max: 1000},
		PurchaseLines:      domain.IntRange{Min: 1, Max: 8},
		PurchaseQuantity:   domain.IntRange{Min: 10, Max: 100},
	}
}

// Rule returns the rules of a tier, falling back to Standard.
func (c SimulationConfig) Rule(tier domain.Tier) domain.TierRule {
	if rule, ok := c.TierRules[tier]; ok {
		return rule
	}
	return c.TierRules[domain.TierStandard]
}

// Validate rejects inverted ranges, empty windows and non-positive cadences.
func (c SimulationConfig) Validate() error {
	if c.InitialEnd.Before(c.InitialStart) {
		return fmt.Errorf("initial stocking window ends before it starts")
	}
	if c.SalesEnd.Before(c.SalesStart) {
		return fmt.Errorf("sales window ends before it starts")
	}
	if c.StoreOpenHour < 0 || c.StoreCloseHour > 24 || c.StoreOpenHour >= c.StoreCloseHour {
		return fmt.Errorf("invalid store hours %d..%d", c.StoreOpenHour, c.StoreCloseHour)
	}
	ranges := map[string]domain.IntRange{
		"initial quantity":     c.InitialQuantity,
		"restock quantity":     c.RestockQuantity,
		"restock lead minutes": c.RestockLeadMinutes,
		"weekly visits":        c.WeeklyVisits,
		"batch quantity":       c.BatchQuantity,
		"purchase lines":       c.PurchaseLines,
		"purchase quantity":    c.PurchaseQuantity,
	}
	for name, r := range ranges {
		if !r.Valid() || r.Min < 0 {
			return fmt.Errorf("invalid %s range %d-%d", name, r.Min, r.Max)
		}
	}
	if c.InitialQuantity.Min <= 0 || c.RestockQuantity.Min <= 0 || c.BatchQuantity.Min <= 0 || c.PurchaseQuantity.Min <= 0 {
		return fmt.Errorf("purchase quantities must be positive")
	}
	if c.RestockLeadMinutes.Min <= 0 {
		return fmt.Errorf("restock lead must be positive so purchases precede sales")
	}
	if c.WeeklyVisits.Max > 7 {
		return fmt.Errorf("weekly visits cannot exceed 7")
	}
	if _, ok := c.TierRules[domain.TierStandard]; !ok {
		return fmt.Errorf("missing %s tier rule", domain.TierStandard)
	}
	for tier, rule := range c.TierRules {
		if !rule.Items.Valid() || !rule.Quantity.Valid() || rule.Quantity.Min <= 0 {
			return fmt.Errorf("invalid rule for tier %s", tier)
		}
	}
	if !c.FallbackMarkup.IsPositive() {
		return fmt.Errorf("fallback markup must be positive")
	}
	if c.CommitEveryDays <= 0 || c.ProgressEveryDays <= 0 {
		return fmt.Errorf("commit and progress cadence must be positive")
	}
	return nil
}

func Load() *Config {
	once.Do(func() {
		instance = load()
	})

	return instance
}

func load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	def := DefaultSimulation()

	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "retail_ledger")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("APP_DATA_DIR", "./data/catalog")
	viper.SetDefault("APP_REPORT_DIR", "./data/reports")
	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_REPORT_PREFIX", "reports:")
	viper.SetDefault("CACHE_RUN_TTL_SECONDS", 86400)
	viper.SetDefault("STORAGE_ENABLED", false)
	viper.SetDefault("STORAGE_ENDPOINT", "")
	viper.SetDefault("STORAGE_ACCESS_KEY", "")
	viper.SetDefault("STORAGE_SECRET_KEY", "")
	viper.SetDefault("STORAGE_BUCKET", "ledger-reports")
	viper.SetDefault("STORAGE_USE_SSL", true)
	viper.SetDefault("STORAGE_PREFIX", "runs/")
	viper.SetDefault("METRICS_ADDR", "")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("SIM_INITIAL_START", def.InitialStart.Format(time.DateOnly))
	viper.SetDefault("SIM_INITIAL_END", def.InitialEnd.Format(time.DateOnly))
	viper.SetDefault("SIM_SALES_START", def.SalesStart.Format(time.DateOnly))
	viper.SetDefault("SIM_SALES_END", def.SalesEnd.Format(time.DateOnly))
	viper.SetDefault("SIM_STORE_OPEN_HOUR", def.StoreOpenHour)
	viper.SetDefault("SIM_STORE_CLOSE_HOUR", def.StoreCloseHour)
	viper.SetDefault("SIM_INITIAL_QTY", formatRange(def.InitialQuantity))
	viper.SetDefault("SIM_RESTOCK_THRESHOLD", def.RestockThreshold)
	viper.SetDefault("SIM_RESTOCK_QTY", formatRange(def.RestockQuantity))
	viper.SetDefault("SIM_RESTOCK_LEAD_MINUTES", formatRange(def.RestockLeadMinutes))
	viper.SetDefault("SIM_WEEKLY_VISITS", formatRange(def.WeeklyVisits))
	viper.SetDefault("SIM_FALLBACK_MARKUP", def.FallbackMarkup.String())
	viper.SetDefault("SIM_SEED", def.Seed)
	viper.SetDefault("SIM_COMMIT_EVERY_DAYS", def.CommitEveryDays)
	viper.SetDefault("SIM_PROGRESS_EVERY_DAYS", def.ProgressEveryDays)
	viper.SetDefault("SIM_BATCH_THRESHOLD", def.BatchThreshold)
	viper.SetDefault("SIM_BATCH_QTY", formatRange(def.BatchQuantity))
	viper.SetDefault("SIM_PURCHASE_LINES", formatRange(def.PurchaseLines))
	viper.SetDefault("SIM_PURCHASE_QTY", formatRange(def.PurchaseQuantity))
	for tier, rule := range def.TierRules {
		key := strings.ToUpper(string(tier))
		viper.SetDefault("SIM_TIER_"+key+"_ITEMS", formatRange(rule.Items))
		viper.SetDefault("SIM_TIER_"+key+"_QTY", formatRange(rule.Quantity))
	}

	// Read from environment variables
	viper.AutomaticEnv()

	return &Config{
		Database: DatabaseConfig{
			URL:      viper.GetString("DATABASE_URL"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
			MaxConns: viper.GetInt("DB_MAX_CONNS"),
		},
		App: AppConfig{
			DataDir:   viper.GetString("APP_DATA_DIR"),
			ReportDir: viper.GetString("APP_REPORT_DIR"),
		},
		Cache: CacheConfig{
			Enabled:       viper.GetBool("CACHE_ENABLED"),
			RedisURL:      viper.GetString("REDIS_URL"),
			RedisHost:     viper.GetString("REDIS_HOST"),
			RedisPort:     viper.GetString("REDIS_PORT"),
			RedisPassword: viper.GetString("REDIS_PASSWORD"),
			RedisDB:       viper.GetInt("REDIS_DB"),
			ReportPrefix:  viper.GetString("CACHE_REPORT_PREFIX"),
			RunTTLSeconds: viper.GetInt("CACHE_RUN_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:   viper.GetBool("STORAGE_ENABLED"),
			Endpoint:  viper.GetString("STORAGE_ENDPOINT"),
			AccessKey: viper.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: viper.GetString("STORAGE_SECRET_KEY"),
			Bucket:    viper.GetString("STORAGE_BUCKET"),
			UseSSL:    viper.GetBool("STORAGE_USE_SSL"),
			Prefix:    viper.GetString("STORAGE_PREFIX"),
		},
		Metrics: MetricsConfig{
			Addr: viper.GetString("METRICS_ADDR"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Simulation: loadSimulation(def),
	}
}

// loadSimulation reads SIM_* keys, keeping the default for any unparsable value.
func loadSimulation(def SimulationConfig) SimulationConfig {
	sim := def
	sim.InitialStart = getDate("SIM_INITIAL_START", def.InitialStart)
	sim.InitialEnd = getDate("SIM_INITIAL_END", def.InitialEnd)
	sim.SalesStart = getDate("SIM_SALES_START", def.SalesStart)
	sim.SalesEnd = getDate("SIM_SALES_END", def.SalesEnd)
	sim.StoreOpenHour = viper.GetInt("SIM_STORE_OPEN_HOUR")
	sim.StoreCloseHour = viper.GetInt("SIM_STORE_CLOSE_HOUR")
	sim.InitialQuantity = getRange("SIM_INITIAL_QTY", def.InitialQuantity)
	sim.RestockThreshold = viper.GetInt("SIM_RESTOCK_THRESHOLD")
	sim.RestockQuantity = getRange("SIM_RESTOCK_QTY", def.RestockQuantity)
	sim.RestockLeadMinutes = getRange("SIM_RESTOCK_LEAD_MINUTES", def.RestockLeadMinutes)
	sim.WeeklyVisits = getRange("SIM_WEEKLY_VISITS", def.WeeklyVisits)
	sim.Seed = viper.GetUint64("SIM_SEED")
	sim.CommitEveryDays = viper.GetInt("SIM_COMMIT_EVERY_DAYS")
	sim.ProgressEveryDays = viper.GetInt("SIM_PROGRESS_EVERY_DAYS")
	sim.BatchThreshold = viper.GetInt("SIM_BATCH_THRESHOLD")
	sim.BatchQuantity = getRange("SIM_BATCH_QTY", def.BatchQuantity)
	sim.PurchaseLines = getRange("SIM_PURCHASE_LINES", def.PurchaseLines)
	sim.PurchaseQuantity = getRange("SIM_PURCHASE_QTY", def.PurchaseQuantity)

	if markup, err := decimal.NewFromString(viper.GetString("SIM_FALLBACK_MARKUP")); err == nil {
		sim.FallbackMarkup = markup
	}

	sim.TierRules = make(map[domain.Tier]domain.TierRule, len(def.TierRules))
	for tier, rule := range def.TierRules {
		key := strings.ToUpper(string(tier))
		sim.TierRules[tier] = domain.TierRule{
			Items:    getRange("SIM_TIER_"+key+"_ITEMS", rule.Items),
			Quantity: getRange("SIM_TIER_"+key+"_QTY", rule.Quantity),
		}
	}
	return sim
}

func getDate(key string, fallback time.Time) time.Time {
	t, err := time.ParseInLocation(time.DateOnly, viper.GetString(key), time.UTC)
	if err != nil {
		return fallback
	}
	return t
}

func getRange(key string, fallback domain.IntRange) domain.IntRange {
	r, err := ParseRange(viper.GetString(key))
	if err != nil {
		return fallback
	}
	return r
}

// ParseRange parses "min-max" or a single number into an inclusive range.
func ParseRange(s string) (domain.IntRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.IntRange{}, fmt.Errorf("empty range")
	}
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		hi = lo
	}
	min, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return domain.IntRange{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	max, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return domain.IntRange{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	r := domain.IntRange{Min: min, Max: max}
	if !r.Valid() {
		return domain.IntRange{}, fmt.Errorf("invalid range %q: min greater than max", s)
	}
	return r, nil
}

func formatRange(r domain.IntRange) string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}
