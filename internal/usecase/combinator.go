package usecase

import (
	"TradeDeck/internal/domain/models"
)

// EvaluateCombinator merges per-signal boolean outputs into a single
// fire/no-fire decision. Pure function: no I/O, no store access, so the
// decision logic is testable without the backend.
//
// Missing-output semantics differ by mode:
//   - ALL fails closed: every configured signal must have reported true.
//   - ANY treats a missing output as false; one true output fires.
//   - AT_LEAST counts true outputs against k clamped to the configured
//     signal count, so removing signals never makes a recipe
//     permanently unsatisfiable.
func EvaluateCombinator(outputs map[string]bool, signalIDs []string, c models.Combinator) bool {
	switch c.Mode {
	case models.CombinatorAll:
		if len(signalIDs) == 0 {
			return false
		}
		for _, id := range signalIDs {
			v, ok := outputs[id]
			if !ok || !v {
				return false
			}
		}
		return true

	case models.CombinatorAny:
		for _, id := range signalIDs {
			if outputs[id] {
				return true
			}
		}
		return false

	case models.CombinatorAtLeast:
		if len(signalIDs) == 0 {
			return false
		}
		k := models.ClampK(c.K, len(signalIDs))
		return countTrue(outputs, signalIDs) >= k
	}
	return false
}

// EffectiveK returns the k actually used at evaluation time for AT_LEAST,
// or 0 for the other modes.
func EffectiveK(signalIDs []string, c models.Combinator) int {
	if c.Mode != models.CombinatorAtLeast || len(signalIDs) == 0 {
		return 0
	}
	return models.ClampK(c.K, len(signalIDs))
}

func countTrue(outputs map[string]bool, signalIDs []string) int {
	n := 0
	for _, id := range signalIDs {
		if outputs[id] {
			n++
		}
	}
	return n
}
