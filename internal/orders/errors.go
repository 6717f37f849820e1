package orders

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrTerminalOrder     = errors.New("order is terminal")
)

// ValidationError collects every missing or malformed field, not just
// the first one, so a clarification turn can ask for all of them at once.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, ", ")
}

// ConflictError reports an interval clash with an existing reservation.
// Suggested, when set, is the earliest alternative slot of the same
// duration.
type ConflictError struct {
	SKU               string
	ConflictingOrders []string
	Suggested         *TimeRange
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("sku %s already reserved (conflicts: %s)",
		e.SKU, strings.Join(e.ConflictingOrders, ", "))
}

// StoreError wraps a transaction failure that is not a domain condition.
// Retryable is set for transient serialization conflicts.
type StoreError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }
