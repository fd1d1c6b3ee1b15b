package sqlite_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tuition-engine/billing"
	"github.com/brightpath/tuition-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testEnrollment(id string) billing.Enrollment {
	pkg := billing.Package{
		ID:                 "pkg-1",
		Name:               "Standard",
		TotalFee:           billing.MustMoney("1000.00"),
		DownpaymentPercent: decimal.NewFromInt(20),
		InstallmentMonths:  4,
		CreatedAt:          time.Now().UTC(),
	}
	e := billing.NewEnrollment("STU-2026-0001", pkg, billing.NewDate(2026, time.January, 10))
	e.ID = id
	return e
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestSQLite_EnrollmentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := testEnrollment("enr-1")
	require.NoError(t, s.SaveEnrollment(ctx, e))

	got, err := s.GetEnrollment(ctx, "enr-1")
	require.NoError(t, err)

	assert.Equal(t, e.StudentID, got.StudentID)
	assert.Equal(t, e.PackageID, got.PackageID)
	assert.True(t, got.EnrollmentDate.Equal(e.EnrollmentDate))
	assert.Equal(t, "1000.00", got.TotalFee.String())
	assert.Equal(t, "200.00", got.DownpaymentAmount.String())
	assert.Equal(t, "800.00", got.RemainingBalance.String())
	assert.Equal(t, 4, got.InstallmentMonths)
}

func TestSQLite_SaveEnrollmentUpdatesBalance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := testEnrollment("enr-1")
	require.NoError(t, s.SaveEnrollment(ctx, e))

	e.RemainingBalance = billing.MustMoney("600.00")
	require.NoError(t, s.SaveEnrollment(ctx, e))

	got, err := s.GetEnrollment(ctx, "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "600.00", got.RemainingBalance.String())
}

func TestSQLite_GetEnrollmentNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetEnrollment(context.Background(), "missing")
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

func TestSQLite_SchedulesOrderedByDueDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := testEnrollment("enr-1")
	require.NoError(t, s.SaveEnrollment(ctx, e))

	rows, err := billing.BuildSchedules(e)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceSchedules(ctx, e.ID, rows))

	outstanding, err := s.OutstandingSchedules(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, outstanding, 5)

	for i := 1; i < len(outstanding); i++ {
		prev, cur := outstanding[i-1], outstanding[i]
		assert.False(t, cur.DueDate.Before(prev.DueDate),
			"outstanding rows must be due-date ascending")
	}
	assert.Equal(t, 0, outstanding[0].InstallmentNo, "downpayment first")
}

func TestSQLite_ReplaceSchedulesIsDestructive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := testEnrollment("enr-1")
	require.NoError(t, s.SaveEnrollment(ctx, e))

	first, err := billing.BuildSchedules(e)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceSchedules(ctx, e.ID, first))

	second, err := billing.BuildSchedules(e)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceSchedules(ctx, e.ID, second))

	rows, err := s.SchedulesByEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 5, "old rows gone, not accumulated")

	_, err = s.GetSchedule(ctx, first[0].ID)
	assert.ErrorIs(t, err, billing.ErrNotFound, "replaced row ids no longer resolve")
}

func TestSQLite_TransactionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := testEnrollment("enr-1")
	require.NoError(t, s.SaveEnrollment(ctx, e))

	tx := billing.PaymentTransaction{
		ID:              "tx-1",
		EnrollmentID:    e.ID,
		Amount:          billing.MustMoney("250.00"),
		Type:            billing.TxPayment,
		TransactionDate: billing.NewDate(2026, time.February, 1),
		PaymentMethod:   "cash",
		ReferenceNo:     "RCV-9",
		Remarks:         "february payment",
		ActorID:         "admin",
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, s.AppendTransaction(ctx, tx))

	txs, err := s.TransactionsByEnrollment(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	got := txs[0]
	assert.Equal(t, "250.00", got.Amount.String())
	assert.Equal(t, billing.TxPayment, got.Type)
	assert.Equal(t, "RCV-9", got.ReferenceNo)
	assert.Empty(t, got.ScheduleID)
}

func TestSQLite_PackageRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := billing.Package{
		ID:                 "pkg-1",
		Name:               "Premium",
		TotalFee:           billing.MustMoney("12000.00"),
		DownpaymentPercent: decimal.NewFromFloat(33.33),
		InstallmentMonths:  12,
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, s.SavePackage(ctx, p))

	got, err := s.GetPackage(ctx, "pkg-1")
	require.NoError(t, err)
	assert.Equal(t, "Premium", got.Name)
	assert.Equal(t, "12000.00", got.TotalFee.String())
	assert.Equal(t, "33.33", got.DownpaymentPercent.String())

	all, err := s.ListPackages(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// =============================================================================
// TRANSACTIONS (WithTx)
// =============================================================================

func TestSQLite_WithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := testEnrollment("enr-1")
	sentinel := errors.New("boom")

	err := s.WithTx(ctx, func(tx billing.Store) error {
		if err := tx.SaveEnrollment(ctx, e); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	_, err = s.GetEnrollment(ctx, "enr-1")
	assert.ErrorIs(t, err, billing.ErrNotFound, "rolled-back write must not persist")
}

func TestSQLite_WithTxCommitsAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := testEnrollment("enr-1")
	rows, err := billing.BuildSchedules(e)
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx billing.Store) error {
		if err := tx.SaveEnrollment(ctx, e); err != nil {
			return err
		}
		return tx.ReplaceSchedules(ctx, e.ID, rows)
	})
	require.NoError(t, err)

	got, err := s.SchedulesByEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

// =============================================================================
// ENGINES AGAINST SQLITE
// =============================================================================

func TestSQLite_FullPaymentFlow(t *testing.T) {
	// The same invariants the memory-store tests cover, exercised against
	// the real persistence path.

	s := newTestStore(t)
	ctx := context.Background()

	gen := billing.NewScheduleGenerator(s)
	ledger := billing.NewLedgerEngine(s)

	pkg := billing.Package{
		ID:                 "pkg-1",
		Name:               "Standard",
		TotalFee:           billing.MustMoney("1000.00"),
		DownpaymentPercent: decimal.NewFromInt(20),
		InstallmentMonths:  4,
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, s.SavePackage(ctx, pkg))

	e, rows, err := gen.Enroll(ctx, "STU-2026-0001", pkg, billing.NewDate(2026, time.January, 10))
	require.NoError(t, err)
	require.Len(t, rows, 5)

	_, err = ledger.RecordPayment(ctx, e.ID, billing.MustMoney("400.00"), "cash", "", "", "")
	require.NoError(t, err)

	stored, err := s.SchedulesByEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, stored[0].Status)
	assert.Equal(t, billing.StatusPaid, stored[1].Status)
	assert.Equal(t, billing.StatusUnpaid, stored[2].Status)

	enr, err := s.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "600.00", enr.RemainingBalance.String())

	summary, err := ledger.GetBalance(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "600.00", summary.Balance.String())
}

// =============================================================================
// STUDENT SEQUENCES
// =============================================================================

func TestSQLite_AllocateStudentSequenceMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		seq, err := s.AllocateStudentSequence(ctx, 2026)
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}

	// Separate years run their own sequences.
	seq, err := s.AllocateStudentSequence(ctx, 2027)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)
}

func TestSQLite_AllocateStudentSequenceConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 25
	results := make(chan int, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := s.AllocateStudentSequence(ctx, 2026)
			if err != nil {
				t.Error(err)
				return
			}
			results <- seq
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool)
	for seq := range results {
		assert.False(t, seen[seq], "duplicate sequence %d", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, n)
}
