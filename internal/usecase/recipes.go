package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TradeDeck/internal/domain/models"
	drepo "TradeDeck/internal/domain/repository"
	pkgcache "TradeDeck/pkg/cache"
	applogger "TradeDeck/pkg/logger"
)

const recipeCacheTTL = 30 * time.Second

// RecipeService owns draft-recipe editing rules and the save/activate
// round-trips. After a save the server is the source of truth; the cache
// only shortens reads and is invalidated on every write.
type RecipeService struct {
	brokerage drepo.Brokerage
	cache     pkgcache.Service
	logger    *applogger.Logger
}

// NewRecipeService creates a RecipeService. cache may be nil.
func NewRecipeService(brokerage drepo.Brokerage, cache pkgcache.Service, logger *applogger.Logger) *RecipeService {
	return &RecipeService{brokerage: brokerage, cache: cache, logger: logger}
}

// AddSignal appends a signal entry to the draft. One configuration per
// strategy type per recipe: adding an existing type is an idempotent
// no-op, not an error. Returns whether the entry was added.
func (s *RecipeService) AddSignal(r *models.Recipe, entry models.SignalEntry) bool {
	if r.HasStrategyType(entry.StrategyType) {
		return false
	}
	r.Signals = append(r.Signals, entry)
	return true
}

// RemoveSignal drops the signal with the given id. Returns whether it was
// present.
func (s *RecipeService) RemoveSignal(r *models.Recipe, signalID string) bool {
	for i, e := range r.Signals {
		if e.SignalID == signalID {
			r.Signals = append(r.Signals[:i], r.Signals[i+1:]...)
			return true
		}
	}
	return false
}

// SetCombinator switches the combination rule. Entering AT_LEAST with no
// prior k picks half the signal count; a prior k is preserved but clamped
// to the current signal count.
func (s *RecipeService) SetCombinator(r *models.Recipe, c models.Combinator) {
	if c.Mode == models.CombinatorAtLeast {
		prior := 0
		if r.Combinator.Mode == models.CombinatorAtLeast {
			prior = r.Combinator.K
		}
		if c.K > 0 {
			prior = c.K
		}
		if prior == 0 {
			c.K = models.DefaultAtLeastK(len(r.Signals))
		} else {
			c.K = models.ClampK(prior, len(r.Signals))
		}
	} else {
		c.K = 0
	}
	r.Combinator = c
}

// Validate checks the invariants a recipe must hold before it can be
// saved or run.
func (s *RecipeService) Validate(r *models.Recipe) error {
	if strings.TrimSpace(r.Name) == "" {
		return newValidationError("name must not be empty")
	}
	if len(r.TargetInstruments) == 0 {
		return newValidationError("target_instruments must not be empty")
	}
	if r.Combinator.Mode == models.CombinatorAtLeast && r.Combinator.K < 1 {
		return newValidationError("at_least combinator requires k >= 1")
	}
	return nil
}

// Get fetches a recipe, serving from cache when fresh.
func (s *RecipeService) Get(ctx context.Context, id string) (*models.Recipe, error) {
	key := recipeCacheKey(id)
	if s.cache != nil {
		var cached models.Recipe
		if err := pkgcache.GetTyped(ctx, s.cache, key, &cached); err == nil {
			return &cached, nil
		}
	}

	r, err := s.brokerage.GetRecipe(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get recipe %s: %w", id, err)
	}
	if s.cache != nil {
		_ = pkgcache.SetTyped(ctx, s.cache, key, r, recipeCacheTTL)
	}
	return r, nil
}

// Save persists the full recipe document. The first save returns the
// server-assigned id; later saves are whole-document replaces, never
// partial patches. A persisted AT_LEAST k is rewritten to the clamped
// value here, on explicit save only.
func (s *RecipeService) Save(ctx context.Context, r *models.Recipe) (*models.Recipe, error) {
	if err := s.Validate(r); err != nil {
		return nil, err
	}
	if r.Combinator.Mode == models.CombinatorAtLeast {
		r.Combinator.K = models.ClampK(r.Combinator.K, len(r.Signals))
	}

	saved, err := s.brokerage.SaveRecipe(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("save recipe: %w", err)
	}
	s.invalidate(ctx, saved.ID)
	s.logger.Info("recipe saved",
		applogger.String("recipe_id", saved.ID),
		applogger.Bool("first_save", r.IsDraft()))
	return saved, nil
}

// Activate asks the backend to schedule the recipe. The recipe must have
// been saved. is_active is taken from the response only: server-side risk
// checks can reject the activation, so the client never sets it ahead of
// the call.
func (s *RecipeService) Activate(ctx context.Context, id string) (*models.Recipe, error) {
	if id == "" {
		return nil, ErrRecipeNotSaved
	}
	r, err := s.brokerage.ActivateRecipe(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("activate recipe %s: %w", id, err)
	}
	s.invalidate(ctx, id)
	s.logger.Info("recipe activation",
		applogger.String("recipe_id", id),
		applogger.Bool("is_active", r.IsActive))
	return r, nil
}

func (s *RecipeService) invalidate(ctx context.Context, id string) {
	if s.cache == nil || id == "" {
		return
	}
	_ = s.cache.Delete(ctx, recipeCacheKey(id))
}

func recipeCacheKey(id string) string { return pkgcache.GenerateKey("recipe", id) }
