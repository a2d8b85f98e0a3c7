package ratelimit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned before any store call when the identity, limit or window is unusable.
	ErrInvalidInput = errors.New("ratelimit: invalid input")

	// ErrStoreUnavailable is returned when a store round trip fails, times out or is cancelled.
	ErrStoreUnavailable = errors.New("ratelimit: store unavailable")

	// ErrStoreInconsistent is returned when the store reports a count that cannot be trusted.
	ErrStoreInconsistent = errors.New("ratelimit: store inconsistent")
)

// InputError describes which argument of a check was rejected.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("ratelimit: invalid %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// StoreError records the store operation that failed and its cause.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ratelimit: %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes both the classification sentinel and the underlying cause.
func (e *StoreError) Unwrap() []error {
	if errors.Is(e.Err, ErrStoreInconsistent) {
		return []error{e.Err}
	}

	return []error{ErrStoreUnavailable, e.Err}
}

func storeError(op, key string, err error) error {
	return &StoreError{Op: op, Key: key, Err: err}
}

func inconsistentCount(count int64) error {
	return fmt.Errorf("%w: negative cardinality %d", ErrStoreInconsistent, count)
}
