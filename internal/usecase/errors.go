package usecase

import (
	"errors"
	"fmt"
)

// ValidationError is a recipe invariant violation. It blocks the save,
// is recoverable by a user edit, and never reaches the network layer.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

func newValidationError(format string, a ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, a...)}
}

// IsValidationError reports whether err is a recipe validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrExecutionInFlight rejects a second concurrent execution of the same
// recipe. At most one execution per recipe per session.
var ErrExecutionInFlight = errors.New("execution already in flight for recipe")

// ErrRecipeNotSaved rejects activation or execution of a draft recipe.
var ErrRecipeNotSaved = errors.New("recipe has no id; save it first")
