package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultRefreshInterval is the recommended background refresh cadence
const DefaultRefreshInterval = 30 * time.Second

// Refresher re-runs Engine.Refresh on a fixed cadence so the collection
// tracks the service even while no screen is actively triggering refreshes.
// Failures feed the engine's health counters; the refresher never disables
// itself, since every failure here is recoverable on the next cycle.
type Refresher struct {
	engine    *Engine
	interval  time.Duration
	scheduler Scheduler
	logger    *logrus.Logger

	mu  sync.Mutex
	job Job
}

// NewRefresher creates a refresher with the production timer scheduler.
// A non-positive interval selects DefaultRefreshInterval.
func NewRefresher(engine *Engine, interval time.Duration, logger *logrus.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		engine:    engine,
		interval:  interval,
		scheduler: NewTimerScheduler(),
		logger:    logger,
	}
}

// SetScheduler sets a custom job scheduler (useful for testing)
func (r *Refresher) SetScheduler(scheduler Scheduler) {
	r.scheduler = scheduler
}

// Start begins the background refresh job. The first cycle runs immediately.
func (r *Refresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.job != nil {
		return fmt.Errorf("refresher already running")
	}

	job, err := r.scheduler.Schedule("alert_collection_refresh", r.nextWaitInterval, r.run)
	if err != nil {
		return fmt.Errorf("failed to schedule refresh job: %w", err)
	}

	r.job = job
	r.logger.WithField("interval", r.interval).Info("Background refresher started")
	return nil
}

// Stop gracefully stops the refresh job
func (r *Refresher) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.job == nil {
		return nil
	}

	err := r.job.Close()
	r.job = nil
	if err != nil {
		return fmt.Errorf("failed to close refresh job: %w", err)
	}

	r.logger.Info("Background refresher stopped")
	return nil
}

// nextWaitInterval runs the first cycle immediately, then keeps the
// configured spacing measured from the end of the previous cycle
func (r *Refresher) nextWaitInterval(now, lastFinished time.Time) time.Duration {
	if lastFinished.IsZero() {
		return 0
	}
	sinceLastFinished := now.Sub(lastFinished)
	if sinceLastFinished < r.interval {
		return r.interval - sinceLastFinished
	}
	return 0
}

// run executes one refresh cycle
func (r *Refresher) run() {
	if err := r.engine.Refresh(context.Background()); err != nil {
		health := r.engine.Health()
		r.logger.WithFields(logrus.Fields{
			"consecutive_failures": health.ConsecutiveFailures,
		}).WithError(err).Warn("Background refresh failed")
	}
}
