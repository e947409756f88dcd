package config

import (
	"testing"
	"time"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSimulationIsValid(t *testing.T) {
	sim := DefaultSimulation()
	require.NoError(t, sim.Validate())
	assert.Equal(t, uint64(42), sim.Seed)
	assert.Equal(t, "1.35", sim.FallbackMarkup.String())
	assert.Equal(t, domain.IntRange{Min: 10, Max: 200}, sim.Rule(domain.TierPlatin).Quantity)
}

func TestRuleFallsBackToStandard(t *testing.T) {
	sim := DefaultSimulation()
	assert.Equal(t, sim.TierRules[domain.TierStandard], sim.Rule(domain.Tier("Bronze")))
}

func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SimulationConfig)
	}{
		{"inverted range", func(c *SimulationConfig) { c.RestockQuantity = domain.IntRange{Min: 10, Max: 1} }},
		{"sales window", func(c *SimulationConfig) { c.SalesEnd = c.SalesStart.Add(-24 * time.Hour) }},
		{"store hours", func(c *SimulationConfig) { c.StoreOpenHour = 18 }},
		{"commit cadence", func(c *SimulationConfig) { c.CommitEveryDays = 0 }},
		{"weekly visits", func(c *SimulationConfig) { c.WeeklyVisits = domain.IntRange{Min: 1, Max: 8} }},
		{"zero lead", func(c *SimulationConfig) { c.RestockLeadMinutes = domain.IntRange{Min: 0, Max: 5} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := DefaultSimulation()
			tt.mutate(&sim)
			assert.Error(t, sim.Validate())
		})
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("200-1000")
	require.NoError(t, err)
	assert.Equal(t, domain.IntRange{Min: 200, Max: 1000}, r)

	r, err = ParseRange(" 7 ")
	require.NoError(t, err)
	assert.Equal(t, domain.IntRange{Min: 7, Max: 7}, r)

	_, err = ParseRange("9-1")
	assert.Error(t, err)
	_, err = ParseRange("a-b")
	assert.Error(t, err)
}

func TestLoadSimulationFromEnv(t *testing.T) {
	t.Setenv("SIM_SEED", "7")
	t.Setenv("SIM_RESTOCK_QTY", "50-60")
	t.Setenv("SIM_SALES_END", "2024-02-01")
	t.Setenv("SIM_TIER_GOLD_QTY", "not-a-range")

	viper.Reset()
	cfg := load()

	assert.Equal(t, uint64(7), cfg.Simulation.Seed)
	assert.Equal(t, domain.IntRange{Min: 50, Max: 60}, cfg.Simulation.RestockQuantity)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), cfg.Simulation.SalesEnd)
	assert.Equal(t, DefaultTierRules()[domain.TierGold].Quantity, cfg.Simulation.Rule(domain.TierGold).Quantity)
	assert.Equal(t, "retail_ledger", cfg.Database.DBName)
}
