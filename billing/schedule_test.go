package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tuition-engine/billing"
	"github.com/brightpath/tuition-engine/billing/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func testPackage(fee string, pct string, months int) billing.Package {
	return billing.Package{
		ID:                 "pkg-1",
		Name:               "Test Package",
		TotalFee:           billing.MustMoney(fee),
		DownpaymentPercent: mustDecimal(pct),
		InstallmentMonths:  months,
		CreatedAt:          time.Now().UTC(),
	}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func date(y int, m time.Month, d int) billing.Date {
	return billing.NewDate(y, m, d)
}

func sumDue(schedules []billing.PaymentSchedule) billing.Money {
	total := billing.ZeroMoney()
	for _, s := range schedules {
		total = total.Add(s.AmountDue)
	}
	return total
}

// =============================================================================
// SUM RECONCILIATION
// =============================================================================

func TestBuildSchedules_SumEqualsTotalFee(t *testing.T) {
	// GIVEN: A variety of fee/percent/month combinations, including ones
	//        that do not divide evenly to the cent
	// THEN: sum(amount_due) always reconciles exactly to the total fee

	cases := []struct {
		name   string
		fee    string
		pct    string
		months int
	}{
		{"even split", "10000.00", "25", 10},
		{"fractional percent", "1000.00", "33.33", 3},
		{"awkward cents", "999.99", "10", 7},
		{"no downpayment", "500.00", "0", 6},
		{"full downpayment", "1200.00", "100", 4},
		{"single installment", "750.50", "20", 1},
		{"many installments", "88888.88", "12.5", 36},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pkg := testPackage(tc.fee, tc.pct, tc.months)
			e := billing.NewEnrollment("STU-2026-0001", pkg, date(2026, time.January, 10))

			rows, err := billing.BuildSchedules(e)
			require.NoError(t, err)
			require.Len(t, rows, tc.months+1)

			assert.True(t, sumDue(rows).Equal(e.TotalFee),
				"sum %s != total fee %s", sumDue(rows), e.TotalFee)
		})
	}
}

func TestBuildSchedules_DownpaymentRow(t *testing.T) {
	// GIVEN: 10000.00 at 25% down
	// THEN: Installment 0 is due on the enrollment date for 2500.00

	pkg := testPackage("10000.00", "25", 10)
	enrolledOn := date(2026, time.March, 3)
	e := billing.NewEnrollment("STU-2026-0001", pkg, enrolledOn)

	rows, err := billing.BuildSchedules(e)
	require.NoError(t, err)

	down := rows[0]
	assert.Equal(t, 0, down.InstallmentNo)
	assert.True(t, down.DueDate.Equal(enrolledOn))
	assert.Equal(t, "2500.00", down.AmountDue.String())
	assert.Equal(t, billing.StatusUnpaid, down.Status)
}

func TestBuildSchedules_LastInstallmentAbsorbsRounding(t *testing.T) {
	// GIVEN: 1000.00 with no downpayment over 3 months (333.33... each)
	// THEN: Installments 1 and 2 get the floored base, installment 3 gets
	//       the base plus the leftover cent

	pkg := testPackage("1000.00", "0", 3)
	e := billing.NewEnrollment("STU-2026-0001", pkg, date(2026, time.January, 10))

	rows, err := billing.BuildSchedules(e)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "333.33", rows[1].AmountDue.String())
	assert.Equal(t, "333.33", rows[2].AmountDue.String())
	assert.Equal(t, "333.34", rows[3].AmountDue.String())
}

func TestBuildSchedules_FractionalPercentAmounts(t *testing.T) {
	// GIVEN: 1000.00 at 33.33% down over 3 months
	// THEN: Downpayment rounds half-up to 333.30; the remainder 666.70
	//       splits 222.23 / 222.23 / 222.24

	pkg := testPackage("1000.00", "33.33", 3)
	e := billing.NewEnrollment("STU-2026-0001", pkg, date(2026, time.January, 10))

	rows, err := billing.BuildSchedules(e)
	require.NoError(t, err)

	assert.Equal(t, "333.30", rows[0].AmountDue.String())
	assert.Equal(t, "222.23", rows[1].AmountDue.String())
	assert.Equal(t, "222.23", rows[2].AmountDue.String())
	assert.Equal(t, "222.24", rows[3].AmountDue.String())
}

func TestBuildSchedules_ZeroInstallments(t *testing.T) {
	// GIVEN: A package with zero installment months
	// THEN: Only the downpayment row is produced

	pkg := testPackage("800.00", "100", 0)
	e := billing.NewEnrollment("STU-2026-0001", pkg, date(2026, time.May, 1))

	rows, err := billing.BuildSchedules(e)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "800.00", rows[0].AmountDue.String())
}

// =============================================================================
// DUE DATE ANCHORING
// =============================================================================

func TestInstallmentDueDate_AnchorsToFifteenth(t *testing.T) {
	cases := []struct {
		name     string
		enrolled billing.Date
		n        int
		want     billing.Date
	}{
		{"mid-month", date(2026, time.January, 20), 1, date(2026, time.February, 15)},
		{"first of month still skips ahead", date(2026, time.April, 1), 1, date(2026, time.May, 15)},
		{"on the 15th", date(2026, time.June, 15), 1, date(2026, time.July, 15)},
		{"december rolls into january", date(2025, time.December, 31), 1, date(2026, time.January, 15)},
		{"leap day", date(2024, time.February, 29), 1, date(2024, time.March, 15)},
		{"multi-month across year end", date(2025, time.October, 5), 5, date(2026, time.March, 15)},
		{"jan 31 never lands on feb 31", date(2026, time.January, 31), 1, date(2026, time.February, 15)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := billing.InstallmentDueDate(tc.enrolled, tc.n)
			assert.True(t, got.Equal(tc.want), "got %s, want %s", got, tc.want)
		})
	}
}

func TestBuildSchedules_ConsecutiveMonthlyDueDates(t *testing.T) {
	// GIVEN: Enrollment on 2025-11-20 with 4 installments
	// THEN: Due dates land on Dec 15, Jan 15, Feb 15, Mar 15

	pkg := testPackage("4000.00", "0", 4)
	e := billing.NewEnrollment("STU-2025-0001", pkg, date(2025, time.November, 20))

	rows, err := billing.BuildSchedules(e)
	require.NoError(t, err)

	want := []billing.Date{
		date(2025, time.December, 15),
		date(2026, time.January, 15),
		date(2026, time.February, 15),
		date(2026, time.March, 15),
	}
	for i, w := range want {
		assert.True(t, rows[i+1].DueDate.Equal(w),
			"installment %d due %s, want %s", i+1, rows[i+1].DueDate, w)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidateTerms_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		fee    string
		pct    string
		months int
	}{
		{"negative fee", "-100.00", "25", 10},
		{"percent above 100", "1000.00", "101", 10},
		{"negative percent", "1000.00", "-5", 10},
		{"negative months", "1000.00", "25", -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := billing.ValidateTerms(
				billing.MustMoney(tc.fee), mustDecimal(tc.pct), tc.months)
			assert.ErrorIs(t, err, billing.ErrValidation)
		})
	}
}

func TestScheduleGenerator_Enroll_InvalidTermsWriteNothing(t *testing.T) {
	// GIVEN: A package with percent above 100
	// WHEN: Enrolling
	// THEN: The error surfaces and no enrollment or schedules are persisted

	ts := store.NewTxMemory()
	gen := billing.NewScheduleGenerator(ts)
	ctx := context.Background()

	pkg := testPackage("1000.00", "150", 3)
	e, rows, err := gen.Enroll(ctx, "STU-2026-0001", pkg, date(2026, time.January, 10))

	assert.ErrorIs(t, err, billing.ErrValidation)
	assert.Empty(t, e.ID)
	assert.Nil(t, rows)
}

// =============================================================================
// GENERATOR (persisting service)
// =============================================================================

func TestScheduleGenerator_Enroll_PersistsAtomically(t *testing.T) {
	ts := store.NewTxMemory()
	gen := billing.NewScheduleGenerator(ts)
	ctx := context.Background()

	pkg := testPackage("10000.00", "25", 10)
	e, rows, err := gen.Enroll(ctx, "STU-2026-0001", pkg, date(2026, time.January, 10))
	require.NoError(t, err)
	require.Len(t, rows, 11)

	stored, err := ts.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "2500.00", stored.DownpaymentAmount.String())
	assert.Equal(t, "7500.00", stored.RemainingBalance.String())

	persisted, err := ts.SchedulesByEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, persisted, 11)
	assert.True(t, sumDue(persisted).Equal(e.TotalFee))
}

func TestScheduleGenerator_Generate_IsIdempotent(t *testing.T) {
	// GIVEN: An enrollment with generated schedules
	// WHEN: Regenerating twice with no intervening payments
	// THEN: Amounts, due dates, and statuses are identical (row ids change)

	ts := store.NewTxMemory()
	gen := billing.NewScheduleGenerator(ts)
	ctx := context.Background()

	pkg := testPackage("999.99", "10", 7)
	e, first, err := gen.Enroll(ctx, "STU-2026-0001", pkg, date(2026, time.February, 28))
	require.NoError(t, err)

	second, err := gen.Generate(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, second, len(first))

	for i := range first {
		assert.Equal(t, first[i].InstallmentNo, second[i].InstallmentNo)
		assert.True(t, first[i].AmountDue.Equal(second[i].AmountDue))
		assert.True(t, first[i].DueDate.Equal(second[i].DueDate))
		assert.Equal(t, first[i].Status, second[i].Status)
	}
}

func TestScheduleGenerator_Generate_UnknownEnrollment(t *testing.T) {
	ts := store.NewTxMemory()
	gen := billing.NewScheduleGenerator(ts)

	_, err := gen.Generate(context.Background(), "missing")
	assert.ErrorIs(t, err, billing.ErrNotFound)

	var nf *billing.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "enrollment", nf.Kind)
}

func TestScheduleGenerator_Hook_FiresAfterCommit(t *testing.T) {
	ts := store.NewTxMemory()
	gen := billing.NewScheduleGenerator(ts)
	ctx := context.Background()

	var got billing.ScheduleGenerated
	gen.Hook = func(ev billing.ScheduleGenerated) { got = ev }

	pkg := testPackage("1000.00", "20", 4)
	e, _, err := gen.Enroll(ctx, "STU-2026-0007", pkg, date(2026, time.March, 1))
	require.NoError(t, err)

	assert.Equal(t, e.ID, got.EnrollmentID)
	assert.Equal(t, "STU-2026-0007", got.StudentID)
	assert.Equal(t, 5, got.Count)
}

func TestScheduleGenerator_RegenerateAfterPayment_SpreadsStoredBalance(t *testing.T) {
	// GIVEN: 1000.00, no downpayment, 4 installments, then a 400.00 payment
	// WHEN: Schedules are regenerated
	// THEN: The post-payment balance of 600.00 is spread (150.00 each),
	//       not the original 1000.00. Regeneration trusts the stored balance.

	ts := store.NewTxMemory()
	gen := billing.NewScheduleGenerator(ts)
	ledger := billing.NewLedgerEngine(ts)
	ctx := context.Background()

	pkg := testPackage("1000.00", "0", 4)
	e, _, err := gen.Enroll(ctx, "STU-2026-0001", pkg, date(2026, time.January, 10))
	require.NoError(t, err)

	_, err = ledger.RecordPayment(ctx, e.ID, billing.MustMoney("400.00"), "cash", "", "", "")
	require.NoError(t, err)

	rows, err := gen.Generate(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	for i := 1; i <= 4; i++ {
		assert.Equal(t, "150.00", rows[i].AmountDue.String(),
			"installment %d after regeneration", i)
	}
}
