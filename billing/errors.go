/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error kinds in one place. Callers classify with errors.Is against the
  sentinels; structured types carry context and Unwrap to their sentinel.

ERROR CATEGORIES:
  1. Validation errors - malformed schedule-generation input, rejected before
     any mutation (never partially applied)
  2. Not-found errors  - operations referencing a missing enrollment/schedule
  3. Concurrency errors - student-number retry budget exhausted
  4. Store errors      - immutability guard on the transaction ledger

SEE ALSO:
  - schedule.go: raises validation errors
  - studentno.go: raises duplicate/exhausted errors
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input to schedule generation:
	// negative fee, out-of-range percent, negative installment count.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced enrollment or schedule
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateStudentNumber is returned when a freshly allocated student
	// number collides with an existing one. Retryable.
	ErrDuplicateStudentNumber = errors.New("duplicate student number")

	// ErrSequenceExhausted is returned when the student-number retry budget
	// runs out. The whole operation must be retried later.
	ErrSequenceExhausted = errors.New("student number retries exhausted")

	// ErrImmutableLedger is returned by stores on any attempt to update or
	// delete a payment transaction. The ledger is append-only.
	ErrImmutableLedger = errors.New("payment transactions are append-only")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError reports which field of the enrollment terms was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Kind string // "enrollment", "schedule", "package"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable reports whether the operation might succeed if retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDuplicateStudentNumber)
}

// IsClientError reports whether the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound)
}
