/*
schedule.go - Installment schedule generation

PURPOSE:
  Turns enrollment terms into the deterministic set of PaymentSchedule rows:
  a downpayment due on the enrollment date plus N monthly installments
  anchored to the 15th of each following month.

ALGORITHM:
  1. Validate terms; reject before any mutation.
  2. Installment 0 (downpayment): due on the enrollment date, amount =
     round(total_fee * percent / 100, 2), taken from the enrollment's
     persisted DownpaymentAmount.
  3. Spread the enrollment's persisted RemainingBalance over the months:
       base       = floor(remaining / months to the cent)
       adjustment = remaining - base*months   (always >= 0)
     Installments 1..N-1 get base; installment N gets base + adjustment, so
     the rounding error is absorbed entirely by the last row and
     sum(amount_due) reconciles to the cent.
  4. Due dates: installment i falls on the 15th of the i-th month strictly
     after the enrollment month, regardless of the enrollment day-of-month.

REGENERATION:
  Generate replaces any existing rows wholesale inside one transaction.
  The effect is idempotent; the history is not: transactions that referenced
  deleted schedule rows keep their dangling ScheduleID. That fragility is
  inherited behavior, kept deliberately (see DESIGN.md).

TRUSTED BALANCE:
  The generator spreads the enrollment's STORED RemainingBalance, never a
  fresh TotalFee - DownpaymentAmount recomputation. At creation the two are
  equal; after payments they diverge, and regeneration spreads the
  post-payment balance. This is a behavioral contract of the source system.

SEE ALSO:
  - dates.go: InstallmentDueDate
  - events.go: post-commit ScheduleGenerated hook
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// ValidateTerms rejects malformed enrollment terms. Called before any state
// is touched; a failing enrollment never gets partial schedules.
func ValidateTerms(totalFee Money, downpaymentPercent decimal.Decimal, installmentMonths int) error {
	if totalFee.IsNegative() {
		return &ValidationError{Field: "total_fee", Message: "must not be negative"}
	}
	if downpaymentPercent.IsNegative() || downpaymentPercent.GreaterThan(oneHundred) {
		return &ValidationError{Field: "downpayment_percent", Message: "must be between 0 and 100"}
	}
	if installmentMonths < 0 {
		return &ValidationError{Field: "installment_months", Message: "must not be negative"}
	}
	return nil
}

// BuildSchedules computes the schedule rows for an enrollment without
// touching storage. Pure apart from row id generation.
func BuildSchedules(e Enrollment) ([]PaymentSchedule, error) {
	if err := ValidateTerms(e.TotalFee, e.DownpaymentPercent, e.InstallmentMonths); err != nil {
		return nil, err
	}
	if e.EnrollmentDate.IsZero() {
		return nil, &ValidationError{Field: "enrollment_date", Message: "must be a valid calendar date"}
	}

	rows := make([]PaymentSchedule, 0, e.InstallmentMonths+1)
	rows = append(rows, PaymentSchedule{
		ID:            uuid.NewString(),
		EnrollmentID:  e.ID,
		InstallmentNo: 0,
		DueDate:       e.EnrollmentDate,
		AmountDue:     e.DownpaymentAmount,
		Status:        StatusUnpaid,
	})

	if e.InstallmentMonths == 0 {
		return rows, nil
	}

	remaining := e.RemainingBalance
	base := remaining.DivFloor(e.InstallmentMonths)
	adjustment := remaining.Sub(base.MulInt(e.InstallmentMonths))

	for i := 1; i <= e.InstallmentMonths; i++ {
		amount := base
		if i == e.InstallmentMonths {
			amount = base.Add(adjustment)
		}
		rows = append(rows, PaymentSchedule{
			ID:            uuid.NewString(),
			EnrollmentID:  e.ID,
			InstallmentNo: i,
			DueDate:       InstallmentDueDate(e.EnrollmentDate, i),
			AmountDue:     amount,
			Status:        StatusUnpaid,
		})
	}
	return rows, nil
}

// =============================================================================
// SCHEDULE GENERATOR - Persisting service
// =============================================================================

// ScheduleGenerator regenerates an enrollment's schedule set atomically and
// fires the post-commit hook. The hook receives a plain data payload; the
// core knows nothing about how it is delivered.
type ScheduleGenerator struct {
	Store TxStore
	Hook  ScheduleHook // optional

	// Clock is overridable for tests; defaults to time.Now.
	Clock func() time.Time
}

func NewScheduleGenerator(store TxStore) *ScheduleGenerator {
	return &ScheduleGenerator{Store: store}
}

func (g *ScheduleGenerator) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now().UTC()
}

// Generate replaces the enrollment's schedules with a freshly computed set.
// All rows are inserted in one transaction; on validation failure nothing
// is written.
func (g *ScheduleGenerator) Generate(ctx context.Context, enrollmentID string) ([]PaymentSchedule, error) {
	e, err := g.Store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	rows, err := BuildSchedules(e)
	if err != nil {
		return nil, err
	}

	err = g.Store.WithTx(ctx, func(s Store) error {
		return s.ReplaceSchedules(ctx, e.ID, rows)
	})
	if err != nil {
		return nil, fmt.Errorf("replace schedules: %w", err)
	}

	g.fire(e, len(rows))
	return rows, nil
}

// Enroll creates the enrollment and its initial schedule set in a single
// transaction. This is the normal entry point for new enrollments.
func (g *ScheduleGenerator) Enroll(ctx context.Context, studentID string, pkg Package, enrolledOn Date) (Enrollment, []PaymentSchedule, error) {
	if err := ValidateTerms(pkg.TotalFee, pkg.DownpaymentPercent, pkg.InstallmentMonths); err != nil {
		return Enrollment{}, nil, err
	}

	e := NewEnrollment(studentID, pkg, enrolledOn)
	rows, err := BuildSchedules(e)
	if err != nil {
		return Enrollment{}, nil, err
	}

	err = g.Store.WithTx(ctx, func(s Store) error {
		if err := s.SaveEnrollment(ctx, e); err != nil {
			return err
		}
		return s.ReplaceSchedules(ctx, e.ID, rows)
	})
	if err != nil {
		return Enrollment{}, nil, fmt.Errorf("enroll: %w", err)
	}

	g.fire(e, len(rows))
	return e, rows, nil
}

func (g *ScheduleGenerator) fire(e Enrollment, count int) {
	if g.Hook == nil {
		return
	}
	g.Hook(ScheduleGenerated{
		EnrollmentID: e.ID,
		StudentID:    e.StudentID,
		Count:        count,
		GeneratedAt:  g.now(),
	})
}
