/*
ledger.go - Payment recording and ordered application

PURPOSE:
  The ledger is the immutable source of truth for money movement. Recording
  a payment appends a PAYMENT transaction and, in the same database
  transaction, applies the amount to the enrollment's outstanding schedules
  earliest-obligation-first, flipping fully settled rows to PAID and
  recomputing the enrollment's RemainingBalance.

APPLICATION ORDER:
  Outstanding schedules (UNPAID or OVERDUE) ordered by due date ascending,
  then installment number ascending. The downpayment is the earliest-dated
  row, so it is naturally settled first.

PARTIAL PAYMENTS:
  A schedule flips to PAID only on full settlement. A payment smaller than
  the next outstanding schedule's balance leaves that schedule's status
  untouched; the partial amount lives in the transaction ledger and shows up
  in the enrollment balance. Status is binary; cent precision is the
  ledger's job.

OVERPAYMENT:
  Not guarded. Payments against a settled enrollment simply append to the
  ledger and the balance floors at zero. Inherited permissive behavior.

CORRECTIONS:
  Transactions are never edited. Adjustments and refunds are appended as
  their own transaction types and only affect the balance projection.

SEE ALSO:
  - balance.go: the read-only balance summary
  - overdue.go: status aging, safe to race with payment recording
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER ENGINE
// =============================================================================

type LedgerEngine struct {
	Store TxStore

	// Clock is overridable for tests; defaults to time.Now.
	Clock func() time.Time
}

func NewLedgerEngine(store TxStore) *LedgerEngine {
	return &LedgerEngine{Store: store}
}

func (l *LedgerEngine) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}

// RecordPayment appends an immutable PAYMENT transaction and applies the
// amount to the enrollment's outstanding schedules. Both happen in one
// database transaction: either the payment exists with its status updates,
// or neither does.
func (l *LedgerEngine) RecordPayment(ctx context.Context, enrollmentID string, amount Money, method, referenceNo, remarks, actorID string) (PaymentTransaction, error) {
	if amount.IsNegative() {
		return PaymentTransaction{}, &ValidationError{Field: "amount", Message: "must not be negative"}
	}

	e, err := l.Store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return PaymentTransaction{}, err
	}

	tx := PaymentTransaction{
		ID:              uuid.NewString(),
		EnrollmentID:    e.ID,
		Amount:          amount,
		Type:            TxPayment,
		TransactionDate: DateOf(l.now()),
		PaymentMethod:   method,
		ReferenceNo:     referenceNo,
		Remarks:         remarks,
		ActorID:         actorID,
		CreatedAt:       l.now(),
	}

	err = l.Store.WithTx(ctx, func(s Store) error {
		if err := s.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		return l.apply(ctx, s, e, amount)
	})
	if err != nil {
		return PaymentTransaction{}, fmt.Errorf("record payment: %w", err)
	}
	return tx, nil
}

// RecordAdjustment appends an ADJUSTMENT transaction. Adjustments feed the
// balance projection only; schedule statuses are untouched.
func (l *LedgerEngine) RecordAdjustment(ctx context.Context, enrollmentID string, amount Money, remarks, actorID string) (PaymentTransaction, error) {
	return l.recordBalanceOnly(ctx, enrollmentID, amount, TxAdjustment, remarks, actorID)
}

// RecordRefund appends a REFUND transaction. Refunds reduce net paid.
func (l *LedgerEngine) RecordRefund(ctx context.Context, enrollmentID string, amount Money, remarks, actorID string) (PaymentTransaction, error) {
	return l.recordBalanceOnly(ctx, enrollmentID, amount, TxRefund, remarks, actorID)
}

func (l *LedgerEngine) recordBalanceOnly(ctx context.Context, enrollmentID string, amount Money, typ TransactionType, remarks, actorID string) (PaymentTransaction, error) {
	e, err := l.Store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return PaymentTransaction{}, err
	}

	tx := PaymentTransaction{
		ID:              uuid.NewString(),
		EnrollmentID:    e.ID,
		Amount:          amount,
		Type:            typ,
		TransactionDate: DateOf(l.now()),
		Remarks:         remarks,
		ActorID:         actorID,
		CreatedAt:       l.now(),
	}

	err = l.Store.WithTx(ctx, func(s Store) error {
		if err := s.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		return l.recomputeBalance(ctx, s, e)
	})
	if err != nil {
		return PaymentTransaction{}, fmt.Errorf("record %s: %w", typ, err)
	}
	return tx, nil
}

// ApplyPaymentToSchedules re-runs the allocation loop for an enrollment.
// A zero amount is legal and used purely to trigger recomputation of the
// PAID projections and the remaining balance.
func (l *LedgerEngine) ApplyPaymentToSchedules(ctx context.Context, enrollmentID string, amount Money) error {
	e, err := l.Store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return err
	}
	return l.Store.WithTx(ctx, func(s Store) error {
		return l.apply(ctx, s, e, amount)
	})
}

// apply consumes outstanding schedules in order while the remaining amount
// lasts, then recomputes the persisted balance. Runs inside a transaction.
func (l *LedgerEngine) apply(ctx context.Context, s Store, e Enrollment, amount Money) error {
	outstanding, err := s.OutstandingSchedules(ctx, e.ID)
	if err != nil {
		return err
	}

	remaining := amount
	for _, sched := range outstanding {
		if !remaining.IsPositive() {
			break
		}

		balance, err := l.scheduleBalance(ctx, s, sched)
		if err != nil {
			return err
		}

		if remaining.GreaterThanOrEqual(balance) {
			paidAt := l.now()
			sched.Status = StatusPaid
			sched.PaidAt = &paidAt
			if err := s.UpdateScheduleStatus(ctx, sched); err != nil {
				return err
			}
			remaining = remaining.Sub(balance)
		}
		// Partial: status stays UNPAID/OVERDUE; the ledger already holds
		// the amount. No per-schedule write happens.
	}

	return l.recomputeBalance(ctx, s, e)
}

// scheduleBalance is the schedule's amount due minus PAYMENT transactions
// already linked directly to it (via MarkAsPaid).
func (l *LedgerEngine) scheduleBalance(ctx context.Context, s Store, sched PaymentSchedule) (Money, error) {
	linked, err := s.TransactionsBySchedule(ctx, sched.ID)
	if err != nil {
		return Money{}, err
	}
	balance := sched.AmountDue
	for _, tx := range linked {
		if tx.Type == TxPayment {
			balance = balance.Sub(tx.Amount)
		}
	}
	return balance.FloorZero(), nil
}

// recomputeBalance persists RemainingBalance = max(0, total_fee - total_paid)
// from the ledger, never from the previous stored value.
func (l *LedgerEngine) recomputeBalance(ctx context.Context, s Store, e Enrollment) error {
	txs, err := s.TransactionsByEnrollment(ctx, e.ID)
	if err != nil {
		return err
	}

	totalPaid := ZeroMoney()
	for _, tx := range txs {
		if tx.Type == TxPayment {
			totalPaid = totalPaid.Add(tx.Amount)
		}
	}

	e.RemainingBalance = e.TotalFee.Sub(totalPaid).FloorZero()
	return s.SaveEnrollment(ctx, e)
}

// =============================================================================
// DIRECT SETTLEMENT
// =============================================================================

// MarkAsPaid settles a single schedule manually, bypassing the allocation
// order. It appends a PAYMENT transaction for the schedule's outstanding
// balance, linked to the schedule, and flips it to PAID - atomically.
// Intended for single-schedule corrections at the counter.
func (l *LedgerEngine) MarkAsPaid(ctx context.Context, scheduleID, method, receiptNo, remarks string) (PaymentTransaction, error) {
	sched, err := l.Store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return PaymentTransaction{}, err
	}
	e, err := l.Store.GetEnrollment(ctx, sched.EnrollmentID)
	if err != nil {
		return PaymentTransaction{}, err
	}

	balance, err := l.scheduleBalance(ctx, l.Store, sched)
	if err != nil {
		return PaymentTransaction{}, err
	}

	paidAt := l.now()
	tx := PaymentTransaction{
		ID:              uuid.NewString(),
		EnrollmentID:    e.ID,
		ScheduleID:      sched.ID,
		Amount:          balance,
		Type:            TxPayment,
		TransactionDate: DateOf(paidAt),
		PaymentMethod:   method,
		ReferenceNo:     receiptNo,
		Remarks:         remarks,
		CreatedAt:       paidAt,
	}

	err = l.Store.WithTx(ctx, func(s Store) error {
		if err := s.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		sched.Status = StatusPaid
		sched.PaidAt = &paidAt
		sched.PaymentMethod = method
		sched.ReceiptNo = receiptNo
		if err := s.UpdateScheduleStatus(ctx, sched); err != nil {
			return err
		}
		return l.recomputeBalance(ctx, s, e)
	})
	if err != nil {
		return PaymentTransaction{}, fmt.Errorf("mark as paid: %w", err)
	}
	return tx, nil
}
