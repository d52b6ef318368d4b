// Package reveal decides when the browser window becomes visible.
//
// Two triggers race: a wall-clock timeout and a page-settled hint. The first
// trigger wins and every later one is a no-op. A cancelled scheduler never
// fires, so a session that resolves through a silent redirect never flashes
// a window.
//
// A Scheduler is owned by a single event loop and is not safe for
// concurrent use.
package reveal

import (
	"time"
)

// DefaultTimeout is the delay before the window is revealed when the page
// has not settled earlier.
const DefaultTimeout = 5 * time.Second

// Trigger identifies which side of the race raised the signal.
type Trigger string

const (
	TriggerTimeout Trigger = "timeout"
	TriggerSettled Trigger = "page_settled"
)

// Timer is the subset of *time.Timer the scheduler relies on.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// TimerFunc creates a Timer firing after d.
type TimerFunc func(d time.Duration) Timer

type stdTimer struct{ t *time.Timer }

func (s stdTimer) C() <-chan time.Time { return s.t.C }
func (s stdTimer) Stop() bool          { return s.t.Stop() }

// NewTimer wraps time.NewTimer.
func NewTimer(d time.Duration) Timer { return stdTimer{t: time.NewTimer(d)} }

type state int

const (
	stateIdle state = iota
	stateArmed
	stateFired
	stateCancelled
)

// Scheduler raises at most one reveal signal per session.
type Scheduler struct {
	timeout  time.Duration
	newTimer TimerFunc

	state   state
	timer   Timer
	trigger Trigger
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithTimerFunc replaces the timer factory, mainly for tests.
func WithTimerFunc(fn TimerFunc) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.newTimer = fn
		}
	}
}

// NewScheduler returns an idle scheduler. A non-positive timeout falls back
// to DefaultTimeout.
func NewScheduler(timeout time.Duration, opts ...Option) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Scheduler{timeout: timeout, newTimer: NewTimer}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Arm starts the timeout. Calling it again has no effect.
func (s *Scheduler) Arm() {
	if s.state != stateIdle {
		return
	}
	s.timer = s.newTimer(s.timeout)
	s.state = stateArmed
}

// Timeout returns the channel the event loop selects on. It is nil, and
// therefore never ready, unless the scheduler is armed.
func (s *Scheduler) Timeout() <-chan time.Time {
	if s.state != stateArmed || s.timer == nil {
		return nil
	}
	return s.timer.C()
}

// Fire records trigger as the winner and reports whether the caller should
// reveal the window. It returns true at most once.
func (s *Scheduler) Fire(trigger Trigger) bool {
	if s.state != stateArmed {
		return false
	}
	s.state = stateFired
	s.trigger = trigger
	s.stopTimer()
	return true
}

// Settle is Fire(TriggerSettled).
func (s *Scheduler) Settle() bool { return s.Fire(TriggerSettled) }

// Cancel prevents any future signal.
func (s *Scheduler) Cancel() {
	if s.state == stateFired || s.state == stateCancelled {
		return
	}
	s.state = stateCancelled
	s.stopTimer()
}

// Fired reports whether the signal was raised, and by which trigger.
func (s *Scheduler) Fired() (Trigger, bool) {
	return s.trigger, s.state == stateFired
}

// Cancelled reports whether the scheduler was cancelled before firing.
func (s *Scheduler) Cancelled() bool { return s.state == stateCancelled }

func (s *Scheduler) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
}
