package engine

import "time"

// Job represents a scheduled job that can be closed
type Job interface {
	Close() error
}

// Scheduler is the seam between the refresher and the clock, so tests can
// drive refresh cycles without waiting on real timers
type Scheduler interface {
	Schedule(
		jobID string,
		nextWaitInterval func(now, lastFinished time.Time) time.Duration,
		callback func(),
	) (Job, error)
}

// TimerScheduler is the production Scheduler, backed by a plain goroutine
// and timer
type TimerScheduler struct{}

// NewTimerScheduler creates a timer-backed scheduler
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

// Schedule starts a goroutine that repeatedly waits for nextWaitInterval
// and invokes the callback until the returned job is closed
func (s *TimerScheduler) Schedule(
	jobID string,
	nextWaitInterval func(now, lastFinished time.Time) time.Duration,
	callback func(),
) (Job, error) {
	_ = jobID // identifies the job in logs only; one process, no shared registry

	j := &timerJob{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(j.done)
		var lastFinished time.Time
		for {
			timer := time.NewTimer(nextWaitInterval(time.Now(), lastFinished))
			select {
			case <-j.stop:
				timer.Stop()
				return
			case <-timer.C:
			}
			callback()
			lastFinished = time.Now()
		}
	}()

	return j, nil
}

type timerJob struct {
	stop chan struct{}
	done chan struct{}
}

// Close stops the job and waits for a running callback to finish
func (j *timerJob) Close() error {
	close(j.stop)
	<-j.done
	return nil
}
