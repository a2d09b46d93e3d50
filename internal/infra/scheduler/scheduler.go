package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// IntervalScheduler runs cancellable fixed-interval tasks on a single cron engine.
// A task that is still running when its next tick comes is skipped, so a slow
// status request never overlaps with the next poll of the same job.
type IntervalScheduler struct {
	cronEngine *cron.Cron
	logger     *logrus.Entry

	mu      sync.Mutex
	started bool
}

func NewIntervalScheduler(logger *logrus.Entry) *IntervalScheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &IntervalScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger: logger,
	}
}

// Every schedules task every interval. Intervals are rounded down to whole
// seconds by cron, so anything under a second is rejected.
func (s *IntervalScheduler) Every(name string, interval time.Duration, task func()) (func(), error) {
	if interval < time.Second {
		return nil, fmt.Errorf("interval for %s must be at least 1s, got %s", name, interval)
	}

	id, err := s.cronEngine.AddFunc(fmt.Sprintf("@every %s", interval), task)
	if err != nil {
		return nil, fmt.Errorf("could not schedule %s: %w", name, err)
	}
	s.logger.WithFields(logrus.Fields{"task": name, "interval": interval, "entry_id": id}).Debug("Interval task scheduled")

	var once sync.Once
	return func() {
		once.Do(func() {
			s.cronEngine.Remove(id)
			s.logger.WithFields(logrus.Fields{"task": name, "entry_id": id}).Debug("Interval task cancelled")
		})
	}, nil
}

// Len returns the number of scheduled tasks.
func (s *IntervalScheduler) Len() int {
	return len(s.cronEngine.Entries())
}

func (s *IntervalScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.logger.Info("Starting interval scheduler...")
	s.cronEngine.Start()
	s.started = true
}

// Stop stops the engine and waits for running tasks to finish.
func (s *IntervalScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.logger.Info("Stopping interval scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from running new tasks, waits for running ones.
	<-ctx.Done()
	s.started = false
	s.logger.Info("Interval scheduler gracefully stopped.")
}
