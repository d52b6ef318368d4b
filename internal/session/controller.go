// Package session drives one authorization session from the first
// navigation to the single terminal outcome.
//
// All state is owned by the goroutine calling Controller.Run. Browser,
// timer, and signal events are multiplexed into that loop, so the outcome
// slot is written at most once by the transition into StateTerminated.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgnsrekt/lcap/internal/browser"
	"github.com/dgnsrekt/lcap/internal/result"
	"github.com/dgnsrekt/lcap/internal/reveal"
	"github.com/dgnsrekt/lcap/internal/types"
)

// Surface is the browser engine capability the controller consumes.
type Surface interface {
	Events() <-chan browser.Event
	Navigate(ctx context.Context, url string) error
	Resolve(ctx context.Context, ev browser.Event, allow bool) error
	Reveal(ctx context.Context) error
	Close() error
}

// Observer recognizes terminal redirect URLs.
type Observer interface {
	Inspect(rawURL string) (types.Outcome, bool)
}

// State is the controller's lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateAwaitingRedirect
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAwaitingRedirect:
		return "awaiting_redirect"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Options configures a Controller.
type Options struct {
	// StartURL is the provider authorization URL loaded first.
	StartURL string
	// SessionTimeout bounds the whole session when positive.
	SessionTimeout time.Duration
	// NewTimer creates the session deadline timer. Defaults to reveal.NewTimer.
	NewTimer reveal.TimerFunc
}

// Report summarizes a finished session.
type Report struct {
	Outcome   types.Outcome
	Delivered bool
	Revealed  bool
	ExitCode  int
	Err       error
}

// Controller owns the session state machine.
type Controller struct {
	surface   Surface
	observer  Observer
	scheduler *reveal.Scheduler
	sink      result.Sink
	opts      Options

	state    State
	revealed bool
	report   Report
}

// NewController wires the session components together.
func NewController(surface Surface, observer Observer, scheduler *reveal.Scheduler, sink result.Sink, opts Options) *Controller {
	return &Controller{
		surface:   surface,
		observer:  observer,
		scheduler: scheduler,
		sink:      sink,
		opts:      opts,
		state:     StateInitializing,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.state }

// Run executes the session until it terminates and closes the surface
// before returning.
func (c *Controller) Run(ctx context.Context) Report {
	defer c.closeSurface()

	c.scheduler.Arm()
	if err := c.surface.Navigate(ctx, c.opts.StartURL); err != nil {
		c.scheduler.Cancel()
		c.state = StateTerminated
		slog.Error("initial navigation could not be issued", "url", c.opts.StartURL, "error", err)
		return Report{ExitCode: ExitCodeFor(err), Err: err}
	}
	c.transition(StateAwaitingRedirect)

	var deadline <-chan time.Time
	if c.opts.SessionTimeout > 0 {
		newTimer := c.opts.NewTimer
		if newTimer == nil {
			newTimer = reveal.NewTimer
		}
		t := newTimer(c.opts.SessionTimeout)
		defer t.Stop()
		deadline = t.C()
	}

	events := c.surface.Events()
	for c.state == StateAwaitingRedirect {
		select {
		case ev, ok := <-events:
			if !ok {
				slog.Info("browser event stream ended")
				c.terminate(types.ErrorOutcome(types.ErrUserCancelled))
				continue
			}
			c.handle(ctx, ev)
		case <-c.scheduler.Timeout():
			if c.scheduler.Fire(reveal.TriggerTimeout) {
				c.reveal(ctx, reveal.TriggerTimeout)
			}
		case <-deadline:
			slog.Warn("session deadline reached", "timeout", c.opts.SessionTimeout)
			c.terminate(types.ErrorOutcome(types.ErrSessionTimeout))
		case <-ctx.Done():
			slog.Warn("session interrupted", "error", ctx.Err())
			c.terminate(types.ErrorOutcome(types.ErrInterrupted))
		}
	}

	c.report.Revealed = c.revealed
	return c.report
}

func (c *Controller) handle(ctx context.Context, ev browser.Event) {
	switch ev.Kind {
	case browser.EventNavigation:
		outcome, ok := c.observer.Inspect(ev.URL)
		if !ok {
			if err := c.surface.Resolve(ctx, ev, true); err != nil {
				slog.Warn("continue navigation failed", "url", ev.URL, "error", err)
			}
			return
		}
		c.scheduler.Cancel()
		if err := c.surface.Resolve(ctx, ev, false); err != nil {
			slog.Debug("abort redirect navigation failed", "error", err)
		}
		slog.Info("redirect captured", "kind", outcome.Kind)
		c.terminate(outcome)
	case browser.EventPageLoaded:
		if c.scheduler.Settle() {
			c.reveal(ctx, reveal.TriggerSettled)
		}
	case browser.EventNavigationFailed:
		slog.Warn("navigation failed", "url", ev.URL, "error", ev.Err)
		if c.scheduler.Settle() {
			c.reveal(ctx, reveal.TriggerSettled)
		}
	case browser.EventClosed:
		slog.Info("browser window closed before redirect")
		c.terminate(types.ErrorOutcome(types.ErrUserCancelled))
	}
}

func (c *Controller) reveal(ctx context.Context, trigger reveal.Trigger) {
	if c.revealed || c.state == StateTerminated {
		return
	}
	c.revealed = true
	slog.Info("revealing window", "trigger", trigger)
	if err := c.surface.Reveal(ctx); err != nil {
		slog.Warn("reveal window failed", "error", err)
	}
}

// terminate delivers outcome. Only the first call has any effect.
func (c *Controller) terminate(outcome types.Outcome) {
	if c.state == StateTerminated {
		return
	}
	c.scheduler.Cancel()
	c.transition(StateTerminated)
	c.report.Outcome = outcome

	if err := c.sink.Emit(outcome); err != nil {
		slog.Error("result delivery failed", "target", c.sink.Target(), "error", err)
		c.report.ExitCode = ExitDeliveryFailed
		c.report.Err = err
		return
	}
	c.report.Delivered = true
	if outcome.Success() {
		c.report.ExitCode = ExitSuccess
	} else {
		c.report.ExitCode = ExitHandledFailure
	}
	slog.Info("result delivered", "target", c.sink.Target(), "kind", outcome.Kind, "exit_code", c.report.ExitCode)
}

func (c *Controller) transition(next State) {
	slog.Debug("session state", "from", c.state, "to", next)
	c.state = next
}

func (c *Controller) closeSurface() {
	if err := c.surface.Close(); err != nil {
		slog.Debug("browser close failed", "error", err)
	}
}
