/*
types.go - Domain entities

PURPOSE:
  Plain data entities for the billing core. No framework, transport, or
  persistence knowledge; the HTTP layer and the stores depend on these types,
  never the reverse.

ENTITIES:
  Package:            immutable billing template (fee, downpayment %, months)
  Enrollment:         one student's subscription to a package
  PaymentSchedule:    one owed amount on one due date (installment)
  PaymentTransaction: immutable ledger entry (the source of truth for "paid")

LIFECYCLE:
  Enrollment created -> schedule generator populates PaymentSchedule rows
  (UNPAID) -> PaymentTransactions recorded over time -> ledger engine flips
  schedules to PAID as they settle -> overdue updater flips stale UNPAID rows
  to OVERDUE.

STATUS IS A PROJECTION:
  PaymentSchedule.Status and Enrollment.RemainingBalance are cached views of
  the transaction ledger. The ledger engine recomputes them after every
  mutating operation; callers must not treat a stale stored value as
  authoritative at a decision point.

SEE ALSO:
  - schedule.go: generation algorithm and validation
  - ledger.go: payment application
*/
package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SCHEDULE STATUS / TRANSACTION TYPE
// =============================================================================

type ScheduleStatus string

const (
	StatusUnpaid  ScheduleStatus = "UNPAID"
	StatusPaid    ScheduleStatus = "PAID"
	StatusOverdue ScheduleStatus = "OVERDUE"
)

// Outstanding reports whether the schedule still owes money. OVERDUE is
// outstanding exactly like UNPAID; the ledger engine treats both identically.
func (s ScheduleStatus) Outstanding() bool {
	return s == StatusUnpaid || s == StatusOverdue
}

type TransactionType string

const (
	TxPayment    TransactionType = "PAYMENT"
	TxAdjustment TransactionType = "ADJUSTMENT"
	TxRefund     TransactionType = "REFUND"
)

// =============================================================================
// PACKAGE - Billing terms template
// =============================================================================

// Package is an immutable billing template. Enrollments copy its terms at
// enrollment time; later edits to a package never rewrite history.
type Package struct {
	ID                 string
	Name               string
	TotalFee           Money
	DownpaymentPercent decimal.Decimal // 0..100, fractional allowed (33.33)
	InstallmentMonths  int
	CreatedAt          time.Time
}

// =============================================================================
// ENROLLMENT
// =============================================================================

type Enrollment struct {
	ID             string
	StudentID      string
	PackageID      string
	EnrollmentDate Date

	// Terms copied from the package at enrollment time.
	TotalFee           Money
	DownpaymentPercent decimal.Decimal
	InstallmentMonths  int

	// Derived, persisted. DownpaymentAmount is fixed at creation;
	// RemainingBalance is recomputed after every payment.
	DownpaymentAmount Money
	RemainingBalance  Money

	CreatedAt time.Time
}

// NewEnrollment derives the persisted downpayment and initial balance:
//
//	DownpaymentAmount = round(TotalFee * DownpaymentPercent / 100, 2)
//	RemainingBalance  = TotalFee - DownpaymentAmount
//
// The schedule generator spreads the stored RemainingBalance across
// installments rather than re-deriving it; see GenerateSchedules.
func NewEnrollment(studentID string, pkg Package, enrolledOn Date) Enrollment {
	down := pkg.TotalFee.PercentOf(pkg.DownpaymentPercent)
	return Enrollment{
		ID:                 uuid.NewString(),
		StudentID:          studentID,
		PackageID:          pkg.ID,
		EnrollmentDate:     enrolledOn,
		TotalFee:           pkg.TotalFee,
		DownpaymentPercent: pkg.DownpaymentPercent,
		InstallmentMonths:  pkg.InstallmentMonths,
		DownpaymentAmount:  down,
		RemainingBalance:   pkg.TotalFee.Sub(down),
		CreatedAt:          time.Now().UTC(),
	}
}

// =============================================================================
// PAYMENT SCHEDULE - One installment
// =============================================================================

// PaymentSchedule is one owed amount. InstallmentNo 0 is the downpayment,
// due on the enrollment date itself; 1..N are the monthly installments.
// Rows are owned by their enrollment and replaced wholesale on regeneration.
type PaymentSchedule struct {
	ID            string
	EnrollmentID  string
	InstallmentNo int
	DueDate       Date
	AmountDue     Money
	Status        ScheduleStatus
	PaidAt        *time.Time
	PaymentMethod string
	ReceiptNo     string
}

// =============================================================================
// PAYMENT TRANSACTION - Immutable ledger entry
// =============================================================================

// PaymentTransaction records one money movement against an enrollment.
// Append-only: never mutated or deleted. ScheduleID is set only for direct
// single-schedule settlements (MarkAsPaid); general payments are tracked at
// the enrollment level.
type PaymentTransaction struct {
	ID              string
	EnrollmentID    string
	ScheduleID      string // optional
	Amount          Money
	Type            TransactionType
	TransactionDate Date
	PaymentMethod   string
	ReferenceNo     string
	Remarks         string
	ActorID         string
	CreatedAt       time.Time
}
