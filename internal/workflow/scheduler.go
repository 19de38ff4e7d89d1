package workflow

import (
	"slices"
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop cancels the callback; it reports false if it already ran or was stopped.
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// SystemScheduler returns a Scheduler backed by time.AfterFunc.
func SystemScheduler() Scheduler { return systemScheduler{} }

// ManualScheduler is a deterministic Clock and Scheduler. Time only moves
// through Advance, and callbacks run on the goroutine calling Advance.
// Replays and tests use it to fire auto-advances at well-defined points.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	s       *ManualScheduler
	due     time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

// NewManualScheduler starts the clock at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// Now returns the manual clock's time.
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// AfterFunc registers f to run once the clock reaches now+d.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTimer{s: s, due: s.now.Add(d), seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Pending returns the number of timers not yet fired or stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d and runs every timer that became
// due, in due order. It returns the number of callbacks run.
func (s *ManualScheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	s.now = s.now.Add(d)
	var due []*manualTimer
	keep := s.timers[:0]
	for _, t := range s.timers {
		switch {
		case t.stopped || t.fired:
		case !t.due.After(s.now):
			t.fired = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	s.timers = keep
	s.mu.Unlock()

	slices.SortFunc(due, func(a, b *manualTimer) int {
		if c := a.due.Compare(b.due); c != 0 {
			return c
		}
		return a.seq - b.seq
	})
	for _, t := range due {
		t.f()
	}
	return len(due)
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
