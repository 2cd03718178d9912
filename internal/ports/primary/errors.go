package primary

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a classification, group or rule does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput is returned when a request fails validation.
var ErrInvalidInput = errors.New("invalid input")

// StorageError wraps a failure of the classification store. The operation can
// be retried by the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
