package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"TradeDeck/internal/domain/models"
)

func sigIDs(ids ...string) []string { return ids }

func TestEvaluateAllFiresOnlyWhenEveryOutputTrue(t *testing.T) {
	ids := sigIDs("sma_crossover", "rsi_mean_reversion", "macd_trend")
	all := models.Combinator{Mode: models.CombinatorAll}

	outputs := map[string]bool{
		"sma_crossover":      true,
		"rsi_mean_reversion": true,
		"macd_trend":         true,
	}
	assert.True(t, EvaluateCombinator(outputs, ids, all))

	// flipping any single signal to false breaks it
	for _, id := range ids {
		flipped := map[string]bool{}
		for k, v := range outputs {
			flipped[k] = v
		}
		flipped[id] = false
		assert.False(t, EvaluateCombinator(flipped, ids, all), "flipped %s", id)
	}
}

func TestEvaluateAllFailsClosedOnMissingOutput(t *testing.T) {
	ids := sigIDs("sma_crossover", "rsi_mean_reversion")
	all := models.Combinator{Mode: models.CombinatorAll}

	// rsi never reported
	outputs := map[string]bool{"sma_crossover": true}
	assert.False(t, EvaluateCombinator(outputs, ids, all))
}

func TestEvaluateAnyTreatsMissingAsFalse(t *testing.T) {
	ids := sigIDs("sma_crossover", "rsi_mean_reversion")
	any := models.Combinator{Mode: models.CombinatorAny}

	assert.True(t, EvaluateCombinator(map[string]bool{"sma_crossover": true}, ids, any))
	assert.True(t, EvaluateCombinator(map[string]bool{
		"sma_crossover":      true,
		"rsi_mean_reversion": false,
	}, ids, any))
	assert.False(t, EvaluateCombinator(map[string]bool{"sma_crossover": false}, ids, any))
	assert.False(t, EvaluateCombinator(map[string]bool{}, ids, any))
}

func TestEvaluateAtLeastCountsTrueOutputs(t *testing.T) {
	ids := sigIDs("a", "b", "c")
	atLeast2 := models.Combinator{Mode: models.CombinatorAtLeast, K: 2}

	assert.True(t, EvaluateCombinator(map[string]bool{"a": true, "b": true}, ids, atLeast2))
	assert.False(t, EvaluateCombinator(map[string]bool{"a": true}, ids, atLeast2))
}

func TestEvaluateAtLeastClampsKToSignalCount(t *testing.T) {
	// recipe shrunk from 4 signals to 2 with k=3 persisted
	ids := sigIDs("a", "b")
	atLeast3 := models.Combinator{Mode: models.CombinatorAtLeast, K: 3}

	assert.Equal(t, 2, EffectiveK(ids, atLeast3))
	assert.True(t, EvaluateCombinator(map[string]bool{"a": true, "b": true}, ids, atLeast3))
}

func TestEvaluateEmptySignalSetNeverFires(t *testing.T) {
	for _, c := range []models.Combinator{
		{Mode: models.CombinatorAll},
		{Mode: models.CombinatorAny},
		{Mode: models.CombinatorAtLeast, K: 1},
	} {
		assert.False(t, EvaluateCombinator(map[string]bool{"a": true}, nil, c), "mode %s", c.Mode)
	}
}

func TestEvaluateUnknownModeIsNoFire(t *testing.T) {
	ids := sigIDs("a")
	c := models.Combinator{Mode: "WEIGHTED"}
	assert.False(t, EvaluateCombinator(map[string]bool{"a": true}, ids, c))
}
