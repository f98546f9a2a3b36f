package models

import (
	"math"

	"github.com/shopspring/decimal"
)

// CombinatorMode selects how per-signal outputs merge into one decision.
type CombinatorMode string

const (
	CombinatorAll     CombinatorMode = "ALL"
	CombinatorAny     CombinatorMode = "ANY"
	CombinatorAtLeast CombinatorMode = "AT_LEAST"
)

// Combinator is the entry/exit combination rule of a recipe.
// K is only meaningful for AT_LEAST.
type Combinator struct {
	Mode CombinatorMode `json:"mode"`
	K    int            `json:"k,omitempty"`
}

// SignalEntry is a weighted reference to a named signal algorithm.
// Immutable once stored in a recipe; replaced whole, never patched.
type SignalEntry struct {
	SignalID     string             `json:"signal_id"`
	StrategyType string             `json:"strategy_type"`
	Params       map[string]float64 `json:"params,omitempty"`
	Weight       float64            `json:"weight"`
}

// RiskConfig holds per-recipe risk limits, in percent.
type RiskConfig struct {
	StopLossPct     decimal.Decimal `json:"stop_loss_pct"`
	TakeProfitPct   decimal.Decimal `json:"take_profit_pct"`
	PositionSizePct decimal.Decimal `json:"position_size_pct"`
}

// Recipe bundles signals, a combinator, filters and risk settings.
// A recipe without an ID is a draft; the backend assigns the ID on first
// save and owns the document afterwards.
type Recipe struct {
	ID                string             `json:"id,omitempty"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	Signals           []SignalEntry      `json:"signals"`
	Combinator        Combinator         `json:"combinator"`
	CustomFilters     map[string]float64 `json:"custom_filters,omitempty"`
	TargetInstruments []string           `json:"target_instruments"`
	Risk              RiskConfig         `json:"risk_config"`
	IsActive          bool               `json:"is_active"`
}

// IsDraft reports whether the recipe has never been saved.
func (r *Recipe) IsDraft() bool { return r.ID == "" }

// SignalIDs returns the configured signal ids in order.
func (r *Recipe) SignalIDs() []string {
	ids := make([]string, 0, len(r.Signals))
	for _, s := range r.Signals {
		ids = append(ids, s.SignalID)
	}
	return ids
}

// HasStrategyType reports whether a signal of the given type is configured.
func (r *Recipe) HasStrategyType(strategyType string) bool {
	for _, s := range r.Signals {
		if s.StrategyType == strategyType {
			return true
		}
	}
	return false
}

// DefaultAtLeastK is the k chosen when a recipe first switches to AT_LEAST:
// half the configured signals, rounded, never below 1.
func DefaultAtLeastK(signalCount int) int {
	k := int(math.Round(float64(signalCount) / 2))
	if k < 1 {
		k = 1
	}
	return k
}

// ClampK bounds k to [1, signalCount] so a shrunk signal set can never
// leave the rule permanently unsatisfiable.
func ClampK(k, signalCount int) int {
	if signalCount > 0 && k > signalCount {
		k = signalCount
	}
	if k < 1 {
		k = 1
	}
	return k
}

// ExecutionResult is the batch summary returned by a recipe execution.
type ExecutionResult struct {
	RecipeID       string `json:"recipe_id"`
	TotalSubmitted int    `json:"total_submitted"`
	TotalFailed    int    `json:"total_failed"`
}

// SearchJobStatus is the lifecycle state of a strategy search job.
type SearchJobStatus string

const (
	SearchJobRunning  SearchJobStatus = "running"
	SearchJobComplete SearchJobStatus = "complete"
	SearchJobError    SearchJobStatus = "error"
)

// IsTerminal reports whether polling for this job should stop.
func (s SearchJobStatus) IsTerminal() bool {
	return s == SearchJobComplete || s == SearchJobError
}

// SearchJob is a polled strategy search job snapshot.
type SearchJob struct {
	ID       string          `json:"id"`
	Status   SearchJobStatus `json:"status"`
	Progress float64         `json:"progress"`
	Message  string          `json:"message,omitempty"`
}
