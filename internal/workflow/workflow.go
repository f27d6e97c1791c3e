// Package workflow holds what every page handler shares: how a request
// outcome becomes a notification and how the post-success refresh is
// scheduled.
package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"shiftdesk/internal/clock"
	"shiftdesk/internal/domain"
	"shiftdesk/internal/feedback"
	"shiftdesk/internal/logging"
)

// Notifier shows transient messages.
type Notifier interface {
	Success(text string) feedback.Notification
	Error(text string) feedback.Notification
}

// Failure shows the notification matching err: the server text (or fallback)
// for a rejection, generic for anything else. nil shows nothing.
func Failure(n Notifier, err error, fallback, generic string) {
	if err == nil {
		return
	}
	var rejected *domain.RejectedError
	if errors.As(err, &rejected) {
		n.Error(rejected.Text(fallback))
		return
	}
	n.Error(generic)
}

// Refresher reloads whatever a view shows after a successful write.
type Refresher func(ctx context.Context) error

// Scheduler runs a refresher once per Schedule call after a fixed delay.
type Scheduler struct {
	clock  clock.Clock
	delay  time.Duration
	run    Refresher
	logger *zap.Logger

	mu     sync.Mutex
	seq    uint64
	timers map[uint64]clock.Timer
}

func NewScheduler(clk clock.Clock, delay time.Duration, run Refresher, logger *zap.Logger) *Scheduler {
	if clk == nil {
		clk = clock.System{}
	}
	return &Scheduler{
		clock:  clk,
		delay:  delay,
		run:    run,
		logger: logging.OrNop(logger),
		timers: map[uint64]clock.Timer{},
	}
}

// Schedule arms one refresh. A timer is forgotten once it fires. The lock is
// held while arming so a callback that fires at once waits for its entry.
func (s *Scheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := s.seq
	s.timers[id] = s.clock.AfterFunc(s.delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		if s.run == nil {
			return
		}
		if err := s.run(context.Background()); err != nil {
			s.logger.Warn("refresh failed", zap.Error(err))
		}
	})
}

// Pending reports how many refreshes are armed and have not run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels refreshes that have not run yet.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	timers := s.timers
	s.timers = map[uint64]clock.Timer{}
	s.mu.Unlock()
	for _, t := range timers {
		t.Stop()
	}
}
