package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/ports/secondary"
)

// conflictAttempts bounds how often a transaction runs when it keeps losing
// to concurrent writers.
const conflictAttempts = 3

// retryOnConflict runs fn until it succeeds, fails with anything other than
// secondary.ErrConflict, or uses up conflictAttempts. Each run of fn must be a
// whole transaction.
func retryOnConflict(logger *slog.Logger, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= conflictAttempts; attempt++ {
		if err = fn(); !errors.Is(err, secondary.ErrConflict) {
			return err
		}
		logger.Debug("write conflict, retrying", "op", op, "attempt", attempt)
	}
	return err
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, primary.ErrNotFound)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", primary.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// storageError classifies err for callers of a primary port. NotFound and
// input errors pass through; anything else is a retryable storage failure.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, primary.ErrNotFound) || errors.Is(err, primary.ErrInvalidInput) {
		return err
	}
	if errors.Is(err, secondary.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, primary.ErrNotFound)
	}
	var se *primary.StorageError
	if errors.As(err, &se) {
		return err
	}
	return &primary.StorageError{Op: op, Err: err}
}
