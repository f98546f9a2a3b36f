package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeDeck/internal/domain/models"
)

func draftRecipe(signals ...models.SignalEntry) *models.Recipe {
	return &models.Recipe{
		Name:              "momentum breakout",
		Signals:           signals,
		Combinator:        models.Combinator{Mode: models.CombinatorAll},
		TargetInstruments: []string{"600519"},
	}
}

func entry(id, strategyType string) models.SignalEntry {
	return models.SignalEntry{SignalID: id, StrategyType: strategyType, Weight: 1}
}

func TestAddSignalIsIdempotentPerStrategyType(t *testing.T) {
	svc := NewRecipeService(newFakeBrokerage(), nil, testLogger(t))
	r := draftRecipe()

	assert.True(t, svc.AddSignal(r, entry("s-1", "rsi")))
	assert.False(t, svc.AddSignal(r, entry("s-2", "rsi")))
	assert.Len(t, r.Signals, 1)
	assert.Equal(t, "s-1", r.Signals[0].SignalID)
}

func TestRemoveSignalReportsPresence(t *testing.T) {
	svc := NewRecipeService(newFakeBrokerage(), nil, testLogger(t))
	r := draftRecipe(entry("s-1", "rsi"), entry("s-2", "macd"))

	assert.True(t, svc.RemoveSignal(r, "s-1"))
	assert.False(t, svc.RemoveSignal(r, "s-1"))
	assert.Len(t, r.Signals, 1)
}

func TestSetCombinatorDefaultsKToHalfSignals(t *testing.T) {
	svc := NewRecipeService(newFakeBrokerage(), nil, testLogger(t))

	r := draftRecipe(entry("s-1", "rsi"), entry("s-2", "macd"), entry("s-3", "boll"))
	svc.SetCombinator(r, models.Combinator{Mode: models.CombinatorAtLeast})
	assert.Equal(t, 2, r.Combinator.K) // round(3/2)

	single := draftRecipe(entry("s-1", "rsi"))
	svc.SetCombinator(single, models.Combinator{Mode: models.CombinatorAtLeast})
	assert.Equal(t, 1, single.Combinator.K)
}

func TestSetCombinatorPreservesPriorKClamped(t *testing.T) {
	svc := NewRecipeService(newFakeBrokerage(), nil, testLogger(t))
	r := draftRecipe(entry("s-1", "rsi"), entry("s-2", "macd"), entry("s-3", "boll"), entry("s-4", "kdj"))

	svc.SetCombinator(r, models.Combinator{Mode: models.CombinatorAtLeast, K: 3})
	require.Equal(t, 3, r.Combinator.K)

	// leave AT_LEAST and come back with fewer signals: k is clamped
	svc.SetCombinator(r, models.Combinator{Mode: models.CombinatorAll})
	assert.Equal(t, 0, r.Combinator.K)

	svc.RemoveSignal(r, "s-3")
	svc.RemoveSignal(r, "s-4")
	svc.SetCombinator(r, models.Combinator{Mode: models.CombinatorAtLeast, K: 3})
	assert.Equal(t, 2, r.Combinator.K)
}

func TestValidateRejectsBadRecipes(t *testing.T) {
	svc := NewRecipeService(newFakeBrokerage(), nil, testLogger(t))

	noName := draftRecipe(entry("s-1", "rsi"))
	noName.Name = "  "
	assert.True(t, IsValidationError(svc.Validate(noName)))

	noInstruments := draftRecipe(entry("s-1", "rsi"))
	noInstruments.TargetInstruments = nil
	assert.True(t, IsValidationError(svc.Validate(noInstruments)))

	badK := draftRecipe(entry("s-1", "rsi"))
	badK.Combinator = models.Combinator{Mode: models.CombinatorAtLeast, K: 0}
	assert.True(t, IsValidationError(svc.Validate(badK)))

	assert.NoError(t, svc.Validate(draftRecipe(entry("s-1", "rsi"))))
}

func TestSaveAssignsIDAndClampsPersistedK(t *testing.T) {
	fb := newFakeBrokerage()
	svc := NewRecipeService(fb, nil, testLogger(t))

	r := draftRecipe(entry("s-1", "rsi"), entry("s-2", "macd"))
	r.Combinator = models.Combinator{Mode: models.CombinatorAtLeast, K: 5}

	saved, err := svc.Save(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "rcp-1", saved.ID)
	assert.Equal(t, 2, saved.Combinator.K)
	assert.Equal(t, 1, fb.saveCalls)
}

func TestSaveRejectsInvalidRecipeWithoutBackendCall(t *testing.T) {
	fb := newFakeBrokerage()
	svc := NewRecipeService(fb, nil, testLogger(t))

	r := draftRecipe(entry("s-1", "rsi"))
	r.TargetInstruments = nil

	_, err := svc.Save(context.Background(), r)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, 0, fb.saveCalls)
}

func TestActivateRequiresSavedRecipe(t *testing.T) {
	svc := NewRecipeService(newFakeBrokerage(), nil, testLogger(t))

	_, err := svc.Activate(context.Background(), "")
	assert.ErrorIs(t, err, ErrRecipeNotSaved)
}

func TestActivateTakesActiveFlagFromResponse(t *testing.T) {
	fb := newFakeBrokerage()
	svc := NewRecipeService(fb, nil, testLogger(t))

	saved, err := svc.Save(context.Background(), draftRecipe(entry("s-1", "rsi")))
	require.NoError(t, err)
	require.False(t, saved.IsActive)

	activated, err := svc.Activate(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
}
