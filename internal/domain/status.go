package domain

import "strings"

// Tier is a customer classification. Ranks widen basket sizes and quantities.
type Tier string

const (
	TierStandard Tier = "Standard"
	TierSilber   Tier = "Silber"
	TierGold     Tier = "Gold"
	TierPlatin   Tier = "Platin"
)

var tierRanks = map[Tier]int{
	TierStandard: 0,
	TierSilber:   1,
	TierGold:     2,
	TierPlatin:   3,
}

var tierNames = map[string]Tier{
	"standard": TierStandard,
	"silber":   TierSilber,
	"gold":     TierGold,
	"platin":   TierPlatin,
}

// ParseTier returns the tier for a given name (case-insensitive). Unknown or empty names are Standard.
func ParseTier(name string) Tier {
	if tier, ok := tierNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return tier
	}

	return TierStandard
}

// Rank orders tiers from Standard (0) to Platin (3).
func (t Tier) Rank() int {
	return tierRanks[ParseTier(string(t))]
}

// Tiers returns every known tier in rank order.
func Tiers() []Tier {
	return []Tier{TierStandard, TierSilber, TierGold, TierPlatin}
}

// TierRule parameterizes basket generation for one tier.
type TierRule struct {
	Items    IntRange `json:"items"`
	Quantity IntRange `json:"quantity"`
}

// RunStatus is the lifecycle state of a simulation or restock run.
type RunStatus string

const (
	RunPending     RunStatus = "pending"
	RunProcessing  RunStatus = "processing"
	RunCompleted   RunStatus = "completed"
	RunInterrupted RunStatus = "interrupted"
	RunFailed      RunStatus = "failed"
)

var runStatusLabels = map[RunStatus]string{
	RunPending:     "Pending",
	RunProcessing:  "Processing",
	RunCompleted:   "Completed",
	RunInterrupted: "Stopped by interruption",
	RunFailed:      "Aborted by error",
}

// Label returns a human-readable label for a run status.
func (s RunStatus) Label() string {
	if label, ok := runStatusLabels[s]; ok {
		return label
	}

	return "Unknown"
}
