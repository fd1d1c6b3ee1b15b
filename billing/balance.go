/*
balance.go - Read-only balance projection

PURPOSE:
  Answers "where does this enrollment stand?" from the transaction ledger.
  Pure computation over the appended transactions; no side effects.

ARITHMETIC:
  net_paid = PAYMENT_sum + ADJUSTMENT_sum - REFUND_sum
  balance  = max(0, total_fee - net_paid)

  Note the asymmetry with the persisted RemainingBalance, which tracks
  PAYMENT transactions only. The summary is the full picture; the stored
  field is the schedule-facing cache.
*/
package billing

import "context"

// =============================================================================
// BALANCE SUMMARY
// =============================================================================

type BalanceSummary struct {
	EnrollmentID string
	TotalFee     Money
	TotalPaid    Money
	Adjustments  Money
	Refunds      Money
	NetPaid      Money
	Balance      Money
}

// SummarizeTransactions folds a transaction list into a BalanceSummary.
// Exposed for callers that already hold the transactions.
func SummarizeTransactions(e Enrollment, txs []PaymentTransaction) BalanceSummary {
	paid := ZeroMoney()
	adjustments := ZeroMoney()
	refunds := ZeroMoney()

	for _, tx := range txs {
		switch tx.Type {
		case TxPayment:
			paid = paid.Add(tx.Amount)
		case TxAdjustment:
			adjustments = adjustments.Add(tx.Amount)
		case TxRefund:
			refunds = refunds.Add(tx.Amount)
		}
	}

	net := paid.Add(adjustments).Sub(refunds)
	return BalanceSummary{
		EnrollmentID: e.ID,
		TotalFee:     e.TotalFee,
		TotalPaid:    paid,
		Adjustments:  adjustments,
		Refunds:      refunds,
		NetPaid:      net,
		Balance:      e.TotalFee.Sub(net).FloorZero(),
	}
}

// GetBalance loads the enrollment's ledger and summarizes it. Read-only.
func (l *LedgerEngine) GetBalance(ctx context.Context, enrollmentID string) (BalanceSummary, error) {
	e, err := l.Store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return BalanceSummary{}, err
	}
	txs, err := l.Store.TransactionsByEnrollment(ctx, e.ID)
	if err != nil {
		return BalanceSummary{}, err
	}
	return SummarizeTransactions(e, txs), nil
}
