package browser

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/fetch"
)

// EventKind tags events delivered by a Session.
type EventKind int

const (
	// EventNavigation is a paused document request awaiting Resolve.
	EventNavigation EventKind = iota + 1
	// EventPageLoaded fires on each page load event of the main target.
	EventPageLoaded
	// EventNavigationFailed reports that a Navigate call failed.
	EventNavigationFailed
	// EventClosed reports that the window or browser went away.
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventNavigation:
		return "navigation"
	case EventPageLoaded:
		return "page_loaded"
	case EventNavigationFailed:
		return "navigation_failed"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one notification from the browser engine.
type Event struct {
	Kind EventKind
	URL  string
	Err  error

	requestID fetch.RequestID
}

// NavigationEvent builds an EventNavigation without a paused request behind
// it. Resolve treats it as already decided.
func NavigationEvent(url string) Event {
	return Event{Kind: EventNavigation, URL: url}
}

// eventQueue is an unbounded FIFO between chromedp listener callbacks,
// which must never block, and the consumer of Session.Events.
type eventQueue struct {
	mu     sync.Mutex
	items  []Event
	notify chan struct{}
	closed bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{notify: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
}

// pump forwards queued events to out in push order until ctx is done,
// then closes out.
func (q *eventQueue) pump(ctx context.Context, out chan<- Event) {
	defer close(out)
	for {
		for _, ev := range q.drain() {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return
		}
	}
}
