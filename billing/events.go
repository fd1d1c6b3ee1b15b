package billing

import "time"

// ScheduleGenerated is the payload handed to the post-commit hook after a
// schedule set is (re)generated. Consumers (live dashboards, notifications)
// live outside the core; the engine only invokes the callback.
type ScheduleGenerated struct {
	EnrollmentID string
	StudentID    string
	Count        int
	GeneratedAt  time.Time
}

// ScheduleHook is invoked synchronously after the generating transaction
// commits. A nil hook is a no-op.
type ScheduleHook func(ScheduleGenerated)
