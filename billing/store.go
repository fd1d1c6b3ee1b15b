/*
store.go - Persistence interface for enrollments, schedules, and the ledger

PURPOSE:
  Defines the interface between the billing engine and the database. The core
  never touches SQL; the HTTP layer never touches these interfaces directly,
  it goes through the engines.

KEY INTERFACES:
  Store:   row-level persistence for the four tables
  TxStore: Store plus WithTx for atomic multi-write operations

APPEND-ONLY LEDGER CONTRACT:
  payment_transactions has exactly one write operation: AppendTransaction.
  No update or delete method exists for it, in any implementation. Schedule
  status and enrollment balance are the mutable projections; the ledger is
  the source of truth.

ATOMICITY:
  Schedule regeneration and payment recording run inside WithTx: either the
  whole operation commits or none of it does. A crash mid-sequence must never
  leave partially inserted schedules or a transaction without its status
  updates. The overdue updater is the deliberate exception (see overdue.go).

STUDENT NUMBER LOCKING:
  AllocateStudentSequence must perform its read-increment-write under mutual
  exclusion so two concurrent callers can never compute the same next value.
  The SQLite store holds its write lock for the duration; the memory store
  holds its mutex.

IMPLEMENTATIONS:
  - store/sqlite:        production SQLite
  - billing/store:       in-memory, for tests and dev
*/
package billing

import "context"

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// --- enrollments ---

	// SaveEnrollment inserts or updates an enrollment (the derived
	// RemainingBalance is rewritten after every payment application).
	SaveEnrollment(ctx context.Context, e Enrollment) error

	// GetEnrollment returns a NotFoundError for unknown ids.
	GetEnrollment(ctx context.Context, id string) (Enrollment, error)

	// --- payment schedules ---

	// ReplaceSchedules deletes every schedule row of the enrollment and
	// inserts the given rows as a batch. Regeneration is destructive:
	// prior rows (and any transaction references to them) are gone.
	ReplaceSchedules(ctx context.Context, enrollmentID string, schedules []PaymentSchedule) error

	// SchedulesByEnrollment returns all rows ordered by installment number.
	SchedulesByEnrollment(ctx context.Context, enrollmentID string) ([]PaymentSchedule, error)

	// OutstandingSchedules returns UNPAID and OVERDUE rows ordered by due
	// date ascending, then installment number ascending. This ordering is
	// the payment-application order.
	OutstandingSchedules(ctx context.Context, enrollmentID string) ([]PaymentSchedule, error)

	// GetSchedule returns a NotFoundError for unknown ids.
	GetSchedule(ctx context.Context, id string) (PaymentSchedule, error)

	// UpdateScheduleStatus flips one row's status projection.
	// paidAt/method/receiptNo apply only on settlement and may be zero.
	UpdateScheduleStatus(ctx context.Context, s PaymentSchedule) error

	// UnpaidDueBefore returns UNPAID rows with due_date strictly before day,
	// across all enrollments, for the overdue updater.
	UnpaidDueBefore(ctx context.Context, day Date) ([]PaymentSchedule, error)

	// --- payment transactions (append-only) ---

	AppendTransaction(ctx context.Context, tx PaymentTransaction) error
	TransactionsByEnrollment(ctx context.Context, enrollmentID string) ([]PaymentTransaction, error)
	TransactionsBySchedule(ctx context.Context, scheduleID string) ([]PaymentTransaction, error)

	// --- student numbers ---

	// AllocateStudentSequence reserves and returns the next sequence value
	// for the year (1 for the first of a year): select the current maximum
	// under the store's write lock, increment, and record the claim in the
	// same critical section. A uniqueness violation on the claim surfaces as
	// ErrDuplicateStudentNumber, which generators treat as retryable.
	AllocateStudentSequence(ctx context.Context, year int) (int, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support. If fn returns an error the
// transaction is rolled back, otherwise committed.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
