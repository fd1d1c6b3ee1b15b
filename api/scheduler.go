/*
scheduler.go - Periodic overdue status scheduler

PURPOSE:
  Runs the overdue updater on a fixed interval (daily in production) so
  UNPAID schedules whose due date has passed get flipped to OVERDUE without
  operator intervention.

DESIGN:
  - Background goroutine with a configurable tick interval
  - Runs once immediately on Start, then on every tick
  - Each run is idempotent; a failed run self-heals on the next one
  - Stop blocks until the goroutine exits

USAGE:
  sched := NewOverdueScheduler(updater, logger)
  sched.Start()
  // ... later
  sched.Stop()

SEE ALSO:
  - billing/overdue.go: the updater itself
  - handlers.go: RunOverdueUpdate (manual trigger)
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath/tuition-engine/billing"
)

// OverdueScheduler runs the overdue updater periodically.
type OverdueScheduler struct {
	Updater       *billing.OverdueUpdater
	CheckInterval time.Duration
	Enabled       bool

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewOverdueScheduler creates a scheduler with a 24h default interval.
func NewOverdueScheduler(updater *billing.OverdueUpdater, logger *zap.Logger) *OverdueScheduler {
	return &OverdueScheduler{
		Updater:       updater,
		CheckInterval: 24 * time.Hour,
		Enabled:       true,
		logger:        logger,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *OverdueScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger.Info("overdue scheduler disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.logger.Info("overdue scheduler started",
		zap.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for the current run to finish.
func (s *OverdueScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.logger.Info("overdue scheduler stopped")
	}
}

func (s *OverdueScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.runOnce()

	for {
		select {
		case <-s.ticker.C:
			s.runOnce()
		case <-s.stop:
			return
		}
	}
}

func (s *OverdueScheduler) runOnce() {
	flipped, err := s.Updater.UpdateOverdueStatuses(context.Background())
	if err != nil {
		s.logger.Error("overdue update failed",
			zap.Int("flipped_before_error", flipped),
			zap.Error(err))
		return
	}
	if flipped > 0 {
		s.logger.Info("overdue update completed", zap.Int("flipped", flipped))
	}
}

// RunNow triggers an immediate run (for testing/admin).
func (s *OverdueScheduler) RunNow() {
	s.runOnce()
}
