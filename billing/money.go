/*
Package billing is the tuition payment scheduling and ledger engine.

PURPOSE:
  This package contains the domain types and algorithms for turning an
  enrollment (total fee, downpayment percent, installment count, enrollment
  date) into a deterministic installment schedule, and for applying incoming
  payments against that schedule through an append-only transaction ledger.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: an exact 2-decimal fixed-point amount (never binary floating point)
  - Percent-of and floor-to-the-cent helpers used by the schedule generator

DESIGN PRINCIPLES:
  1. Precision: All arithmetic runs on decimal.Decimal; cent drift across N
     installments is structurally impossible.
  2. Immutability: PaymentTransaction rows are never modified, only appended.
  3. Recompute, don't trust: cached balances (Enrollment.RemainingBalance)
     are projections recomputed after every mutating operation.

USAGE:
  fee := billing.MustMoney("10000.00")
  down := fee.PercentOf(decimal.NewFromFloat(25)) // 2500.00

SEE ALSO:
  - schedule.go: installment generation and rounding reconciliation
  - ledger.go: payment application and balance recomputation
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Exact 2-decimal fixed-point amount
// =============================================================================

// Money is a monetary amount carried at 2-decimal precision.
// The zero value is 0.00.
type Money struct {
	Value decimal.Decimal
}

func NewMoneyFromInt(v int64) Money {
	return Money{Value: decimal.NewFromInt(v)}
}

// NewMoneyFromFloat rounds the input to the cent immediately so that float
// noise never enters the domain. Prefer ParseMoney at API boundaries.
func NewMoneyFromFloat(v float64) Money {
	return Money{Value: decimal.NewFromFloat(v).Round(2)}
}

func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Value: d.Round(2)}, nil
}

// MustMoney parses a money literal and panics on malformed input.
// For tests and constants only.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(o Money) Money { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Neg() Money        { return Money{Value: m.Value.Neg()} }

func (m Money) IsZero() bool          { return m.Value.IsZero() }
func (m Money) IsNegative() bool      { return m.Value.IsNegative() }
func (m Money) IsPositive() bool      { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool    { return m.Value.Equal(o.Value) }
func (m Money) LessThan(o Money) bool { return m.Value.LessThan(o.Value) }
func (m Money) GreaterThanOrEqual(o Money) bool {
	return m.Value.GreaterThanOrEqual(o.Value)
}

// FloorZero clamps negative amounts to 0.00. Balances never go below zero;
// overpayment is permitted and simply floors out.
func (m Money) FloorZero() Money {
	if m.IsNegative() {
		return ZeroMoney()
	}
	return m
}

// PercentOf returns m * pct / 100 rounded half-up to the cent.
// This is the downpayment rule: round(total_fee * percent / 100, 2).
func (m Money) PercentOf(pct decimal.Decimal) Money {
	return Money{Value: m.Value.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)}
}

// DivFloor splits m into n parts rounded DOWN to the cent (never up), so the
// sum of the parts never exceeds m. The leftover cents are the caller's
// rounding adjustment, absorbed by the final installment.
func (m Money) DivFloor(n int) Money {
	return Money{Value: m.Value.Div(decimal.NewFromInt(int64(n))).RoundFloor(2)}
}

// MulInt returns m * n (exact; no rounding needed for cent inputs).
func (m Money) MulInt(n int) Money {
	return Money{Value: m.Value.Mul(decimal.NewFromInt(int64(n)))}
}

// String renders with exactly two decimal places ("2500.00").
func (m Money) String() string { return m.Value.StringFixed(2) }

// ParsePercent parses a percentage literal ("25", "33.33"). Range checking
// belongs to ValidateTerms; this only rejects malformed input.
func ParsePercent(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
