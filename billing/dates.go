package billing

import (
	"time"
)

// =============================================================================
// DATE - Calendar date, no time-of-day semantics
// =============================================================================

// Date is a calendar date normalized to midnight UTC. Enrollment dates and
// due dates carry no time component; comparisons are whole-day comparisons.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return DateOf(time.Now().UTC())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(o Date) bool { return d.normalize().Before(o.normalize()) }
func (d Date) After(o Date) bool  { return d.normalize().After(o.normalize()) }
func (d Date) Equal(o Date) bool  { return d.normalize().Equal(o.normalize()) }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }

func (d Date) AddDays(n int) Date { return DateOf(d.Time.AddDate(0, 0, n)) }

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// =============================================================================
// BILLING CYCLE - 15th-of-month anchoring
// =============================================================================

// BillingDay is the fixed day-of-month all installments fall on. Day 15 is
// valid in every month, so there is no day-overflow case to handle.
const BillingDay = 15

// InstallmentDueDate returns the due date for installment n (1-indexed) of an
// enrollment dated enrolled: the 15th of the n-th month strictly after the
// enrollment month. The enrollment day is irrelevant; even an enrollment on
// the 1st skips to the NEXT month's 15th.
//
// The date is constructed directly (time.Date normalizes month overflow, so
// December + 1 rolls into January of the next year) rather than via AddDate
// on the enrollment date, which would misbehave for day-of-month > 28.
func InstallmentDueDate(enrolled Date, n int) Date {
	return NewDate(enrolled.Year(), enrolled.Month()+time.Month(n), BillingDay)
}

// FirstBillingDate is the due date of installment 1.
func FirstBillingDate(enrolled Date) Date {
	return InstallmentDueDate(enrolled, 1)
}
