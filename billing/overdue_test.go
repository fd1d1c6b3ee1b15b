package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tuition-engine/billing"
	"github.com/brightpath/tuition-engine/billing/store"
)

func newOverdueFixture(t *testing.T) (context.Context, *store.TxMemory, billing.Enrollment) {
	t.Helper()

	ts := store.NewTxMemory()
	gen := billing.NewScheduleGenerator(ts)
	ctx := context.Background()

	// Downpayment due Jan 10, installments on Feb 15, Mar 15, Apr 15.
	pkg := testPackage("900.00", "10", 3)
	e, _, err := gen.Enroll(ctx, "STU-2026-0001", pkg, date(2026, time.January, 10))
	require.NoError(t, err)
	return ctx, ts, e
}

func TestOverdueUpdater_FlipsPastDueOnly(t *testing.T) {
	// GIVEN: Reference day Mar 1
	// THEN: The downpayment (Jan 10) and installment 1 (Feb 15) flip;
	//       Mar 15 and Apr 15 stay UNPAID

	ctx, ts, e := newOverdueFixture(t)
	updater := billing.NewOverdueUpdater(ts)

	flipped, err := updater.UpdateAsOf(ctx, date(2026, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, flipped)

	statuses := scheduleStatuses(t, ts, e.ID)
	assert.Equal(t, []billing.ScheduleStatus{
		billing.StatusOverdue, billing.StatusOverdue,
		billing.StatusUnpaid, billing.StatusUnpaid,
	}, statuses)
}

func TestOverdueUpdater_DueTodayIsNotOverdue(t *testing.T) {
	// due_date < today is strict: a schedule due today stays UNPAID.

	ctx, ts, e := newOverdueFixture(t)
	updater := billing.NewOverdueUpdater(ts)

	flipped, err := updater.UpdateAsOf(ctx, date(2026, time.February, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, flipped, "only the Jan 10 downpayment")

	statuses := scheduleStatuses(t, ts, e.ID)
	assert.Equal(t, billing.StatusUnpaid, statuses[1], "installment due today")
}

func TestOverdueUpdater_SkipsPaidSchedules(t *testing.T) {
	ctx, ts, e := newOverdueFixture(t)
	ledger := billing.NewLedgerEngine(ts)

	// Settle the downpayment (90.00) before aging.
	_, err := ledger.RecordPayment(ctx, e.ID, billing.MustMoney("90.00"), "cash", "", "", "")
	require.NoError(t, err)

	updater := billing.NewOverdueUpdater(ts)
	flipped, err := updater.UpdateAsOf(ctx, date(2026, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, flipped, "only installment 1; the PAID downpayment is skipped")

	statuses := scheduleStatuses(t, ts, e.ID)
	assert.Equal(t, billing.StatusPaid, statuses[0])
	assert.Equal(t, billing.StatusOverdue, statuses[1])
}

func TestOverdueUpdater_IsIdempotent(t *testing.T) {
	ctx, ts, _ := newOverdueFixture(t)
	updater := billing.NewOverdueUpdater(ts)

	first, err := updater.UpdateAsOf(ctx, date(2026, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, first)

	second, err := updater.UpdateAsOf(ctx, date(2026, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, second, "already-OVERDUE rows are not re-flipped")
}

func TestOverdueUpdater_NothingDue(t *testing.T) {
	ctx, ts, _ := newOverdueFixture(t)
	updater := billing.NewOverdueUpdater(ts)

	flipped, err := updater.UpdateAsOf(ctx, date(2026, time.January, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, flipped)
}
