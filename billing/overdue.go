/*
overdue.go - Batch status aging

PURPOSE:
  Flips UNPAID schedules whose due date has passed to OVERDUE. Invoked by an
  external periodic scheduler (daily); also exposed for manual admin runs.

NOT TRANSACTIONAL, ON PURPOSE:
  Each row's flip is independent and idempotent, so partial completion on a
  crash is acceptable and self-heals on the next run. The updater may race
  with payment recording: the ledger engine treats OVERDUE and UNPAID
  identically as outstanding, so the worst case is one missed status
  transition cycle, never a corrupted ledger.
*/
package billing

import "context"

// =============================================================================
// OVERDUE STATUS UPDATER
// =============================================================================

type OverdueUpdater struct {
	Store Store

	// Clock is overridable for tests; defaults to Today.
	Clock func() Date
}

func NewOverdueUpdater(store Store) *OverdueUpdater {
	return &OverdueUpdater{Store: store}
}

func (u *OverdueUpdater) today() Date {
	if u.Clock != nil {
		return u.Clock()
	}
	return Today()
}

// UpdateOverdueStatuses flips every UNPAID schedule with due_date < today to
// OVERDUE and returns how many rows changed. Safe to run repeatedly.
func (u *OverdueUpdater) UpdateOverdueStatuses(ctx context.Context) (int, error) {
	return u.UpdateAsOf(ctx, u.today())
}

// UpdateAsOf is UpdateOverdueStatuses with an explicit reference day.
func (u *OverdueUpdater) UpdateAsOf(ctx context.Context, day Date) (int, error) {
	stale, err := u.Store.UnpaidDueBefore(ctx, day)
	if err != nil {
		return 0, err
	}

	flipped := 0
	for _, sched := range stale {
		sched.Status = StatusOverdue
		if err := u.Store.UpdateScheduleStatus(ctx, sched); err != nil {
			// Row-level failure is acceptable here; remaining rows are
			// picked up on the next run.
			return flipped, err
		}
		flipped++
	}
	return flipped, nil
}
