package giveaway

import (
	"log/slog"
	"sync"
	"time"
)

// Scheduler owns one timer goroutine per pending giveaway. Expiry calls the
// fire callback with the giveaway id; the callback runs on the timer
// goroutine and must tolerate losing the race against manual closure.
type Scheduler struct {
	fire func(id int64)

	timers       sync.Map // int64 -> *armedTimer
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

type armedTimer struct {
	timer  *time.Timer
	cancel chan struct{}
}

func NewScheduler(fire func(id int64)) *Scheduler {
	return &Scheduler{
		fire:     fire,
		shutdown: make(chan struct{}),
	}
}

// Arm schedules the giveaway to fire after delay. Arming an id that already
// has a timer cancels the prior one first.
func (s *Scheduler) Arm(id int64, delay time.Duration) {
	s.Cancel(id)

	armed := &armedTimer{
		timer:  time.NewTimer(delay),
		cancel: make(chan struct{}),
	}
	s.timers.Store(id, armed)

	slog.Debug("Giveaway timer armed",
		slog.Int64("giveaway_id", id),
		slog.Duration("delay", delay),
	)

	go func() {
		defer armed.timer.Stop()
		select {
		case <-armed.timer.C:
			// Remove only our own entry; the id may have been re-armed.
			s.timers.CompareAndDelete(id, armed)
			s.fire(id)
		case <-armed.cancel:
		case <-s.shutdown:
		}
	}()
}

// Cancel stops the giveaway's pending timer if one exists.
func (s *Scheduler) Cancel(id int64) {
	if prev, ok := s.timers.LoadAndDelete(id); ok {
		armed := prev.(*armedTimer)
		armed.timer.Stop()
		close(armed.cancel)
	}
}

// Armed reports whether the giveaway has a pending timer.
func (s *Scheduler) Armed(id int64) bool {
	_, ok := s.timers.Load(id)
	return ok
}

// Shutdown releases every timer goroutine. Pending giveaways are left
// active in storage; the next startup re-arms them.
func (s *Scheduler) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
	})
}
