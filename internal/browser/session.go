package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/lcap/internal/types"
)

const (
	commandTimeout = 10 * time.Second
	revealFraction = 0.6
)

// Session is a launched browser bound to one app window.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	targetID target.ID
	windowID cdpbrowser.WindowID

	queue      *eventQueue
	events     chan Event
	pumpCancel context.CancelFunc

	pauseResponses bool

	revealed  atomic.Bool
	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newSession(ctx context.Context, cancel, allocCancel context.CancelFunc) *Session {
	return &Session{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		queue:       newEventQueue(),
		events:      make(chan Event),
	}
}

// attach wires listeners, hides the window, and enables request
// interception for documents.
func (s *Session) attach(ctx context.Context, cfg Config) error {
	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Target == nil {
		return types.NewError(types.CodeBrowserLaunch, "no page target attached", nil)
	}
	s.targetID = c.Target.TargetID

	chromedp.ListenTarget(s.ctx, s.onTargetEvent)
	chromedp.ListenBrowser(s.ctx, s.onBrowserEvent)

	pumpCtx, pumpCancel := context.WithCancel(context.Background())
	s.pumpCancel = pumpCancel
	go s.queue.pump(pumpCtx, s.events)
	go s.watchBrowser()

	if err := s.run(ctx, s.hideAction()); err != nil {
		slog.Warn("hide window failed, window may be visible early", "error", err)
	}

	patterns := []*fetch.RequestPattern{{
		URLPattern:   "*",
		ResourceType: network.ResourceTypeDocument,
		RequestStage: fetch.RequestStageRequest,
	}}
	if interceptResponses(cfg.RedirectURL) {
		s.pauseResponses = true
		patterns = append(patterns, &fetch.RequestPattern{
			URLPattern:   "*",
			ResourceType: network.ResourceTypeDocument,
			RequestStage: fetch.RequestStageResponse,
		})
	}
	actions := []chromedp.Action{
		fetch.Enable().WithPatterns(patterns),
		page.Enable(),
	}
	if script := titleScript(cfg.Title); script != "" {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}))
	}
	if err := s.run(ctx, actions...); err != nil {
		return types.NewError(types.CodeCDPFailure, "enable navigation interception", err)
	}
	return nil
}

func (s *Session) hideAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		windowID, _, err := cdpbrowser.GetWindowForTarget().WithTargetID(s.targetID).Do(ctx)
		if err != nil {
			return err
		}
		s.windowID = windowID
		return cdpbrowser.SetWindowBounds(windowID, &cdpbrowser.Bounds{
			WindowState: cdpbrowser.WindowStateMinimized,
		}).Do(ctx)
	})
}

func (s *Session) onTargetEvent(ev any) {
	if s.closing.Load() {
		return
	}
	switch e := ev.(type) {
	case *fetch.EventRequestPaused:
		if e.ResponseStatusCode != 0 || e.ResponseErrorReason != "" {
			s.onResponsePaused(e)
			return
		}
		url := e.Request.URL + e.Request.URLFragment
		slog.Debug("navigation paused", "request_id", e.RequestID, "url", truncateURL(url))
		s.queue.push(Event{Kind: EventNavigation, URL: url, requestID: e.RequestID})
	case *page.EventFrameRequestedNavigation:
		// Renderer-initiated jumps to an app scheme never produce a request.
		if externalURL(e.URL) {
			slog.Debug("external navigation requested", "reason", e.Reason, "url", truncateURL(e.URL))
			s.queue.push(Event{Kind: EventNavigation, URL: e.URL})
		}
	case *page.EventLoadEventFired:
		s.queue.push(Event{Kind: EventPageLoaded})
	case *inspector.EventDetached:
		slog.Debug("inspector detached", "reason", e.Reason)
		s.pushClosed()
	}
}

// onResponsePaused surfaces a redirect into an external scheme as a
// navigation and lets every other document response through.
func (s *Session) onResponsePaused(e *fetch.EventRequestPaused) {
	if location, ok := externalRedirect(e); ok {
		slog.Debug("external redirect paused", "request_id", e.RequestID, "url", truncateURL(location))
		s.queue.push(Event{Kind: EventNavigation, URL: location, requestID: e.RequestID})
		return
	}
	go s.continuePaused(e.RequestID)
}

func (s *Session) continuePaused(id fetch.RequestID) {
	if s.closing.Load() {
		return
	}
	if err := s.run(context.Background(), fetch.ContinueRequest(id)); err != nil && !s.closing.Load() {
		slog.Debug("continue paused response failed", "request_id", id, "error", err)
	}
}

func (s *Session) onBrowserEvent(ev any) {
	if s.closing.Load() {
		return
	}
	switch e := ev.(type) {
	case *target.EventTargetDestroyed:
		if e.TargetID == s.targetID {
			s.pushClosed()
		}
	case *target.EventTargetCrashed:
		if e.TargetID == s.targetID {
			slog.Warn("browser target crashed", "status", e.Status, "error_code", e.ErrorCode)
			s.pushClosed()
		}
	}
}

// watchBrowser reports the browser process going away on its own.
func (s *Session) watchBrowser() {
	<-s.ctx.Done()
	s.pushClosed()
}

func (s *Session) pushClosed() {
	if s.closing.Load() {
		return
	}
	s.queue.push(Event{Kind: EventClosed})
}

// Events returns the ordered event stream. It is closed by Close.
func (s *Session) Events() <-chan Event { return s.events }

// Navigate starts loading url without waiting for it. A failure is
// delivered as EventNavigationFailed.
func (s *Session) Navigate(_ context.Context, url string) error {
	if s.closing.Load() {
		return types.NewError(types.CodeCDPFailure, "navigate on closed session", nil)
	}
	go func() {
		if err := chromedp.Run(s.ctx, chromedp.Navigate(url)); err != nil && !s.closing.Load() {
			s.queue.push(Event{Kind: EventNavigationFailed, URL: url, Err: err})
		}
	}()
	return nil
}

// Resolve continues or aborts the paused request behind a navigation event.
func (s *Session) Resolve(ctx context.Context, ev Event, allow bool) error {
	if ev.Kind != EventNavigation || ev.requestID == "" {
		return nil
	}
	var action chromedp.Action = fetch.ContinueRequest(ev.requestID)
	if !allow {
		action = fetch.FailRequest(ev.requestID, network.ErrorReasonAborted)
	}
	if err := s.run(ctx, action); err != nil {
		return types.NewError(types.CodeCDPFailure, "resolve paused navigation", err)
	}
	return nil
}

// Reveal restores the window centered at a share of the screen and brings
// it to front. Later calls are no-ops.
func (s *Session) Reveal(ctx context.Context) error {
	if !s.revealed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if s.windowID == 0 {
			windowID, _, err := cdpbrowser.GetWindowForTarget().WithTargetID(s.targetID).Do(ctx)
			if err != nil {
				return err
			}
			s.windowID = windowID
		}
		if err := cdpbrowser.SetWindowBounds(s.windowID, &cdpbrowser.Bounds{
			WindowState: cdpbrowser.WindowStateNormal,
		}).Do(ctx); err != nil {
			return err
		}

		var screen screenSize
		if err := chromedp.Evaluate(`({w: screen.availWidth, h: screen.availHeight})`, &screen).Do(ctx); err != nil {
			slog.Debug("screen size query failed, keeping launch size", "error", err)
		} else if bounds, ok := centeredBounds(screen, revealFraction); ok {
			if err := cdpbrowser.SetWindowBounds(s.windowID, bounds).Do(ctx); err != nil {
				slog.Debug("window resize failed", "error", err)
			}
		}
		return page.BringToFront().Do(ctx)
	}))
	if err != nil {
		return types.NewError(types.CodeCDPFailure, "reveal window", err)
	}
	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		if err := chromedp.Cancel(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = err
		}
		s.teardown()
		slog.Info("browser session closed")
	})
	return s.closeErr
}

func (s *Session) teardown() {
	s.closing.Store(true)
	s.queue.close()
	if s.pumpCancel != nil {
		s.pumpCancel()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// run executes actions on the session target, bounded by commandTimeout and
// by the caller's ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, commandTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

type screenSize struct {
	W int64 `json:"w"`
	H int64 `json:"h"`
}

// centeredBounds sizes a normal window to fraction of the screen, centered.
func centeredBounds(screen screenSize, fraction float64) (*cdpbrowser.Bounds, bool) {
	if screen.W <= 0 || screen.H <= 0 || fraction <= 0 || fraction > 1 {
		return nil, false
	}
	w := int64(float64(screen.W)*fraction + 0.5)
	h := int64(float64(screen.H)*fraction + 0.5)
	return &cdpbrowser.Bounds{
		Left:        (screen.W - w) / 2,
		Top:         (screen.H - h) / 2,
		Width:       w,
		Height:      h,
		WindowState: cdpbrowser.WindowStateNormal,
	}, true
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
