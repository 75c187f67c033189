package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStorage is a generic sentinel for underlying storage failures.
	ErrStorage = errors.New("storage failure")
)

// NotFound wraps ErrNotFound with a caller-facing message.
func NotFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

// Invalid wraps ErrInvalidArgument with a caller-facing message.
func Invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInvalidArgument)
}

// Storage wraps a storage failure with operation context. Both ErrStorage and
// the underlying cause stay matchable via errors.Is/As.
func Storage(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorage, cause))
}
