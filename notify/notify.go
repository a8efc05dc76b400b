// Package notify surfaces transient, dismissible feedback for asynchronous
// outcomes.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity classifies a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// DefaultTTL is how long a notification stays visible unless dismissed.
const DefaultTTL = 5 * time.Second

// Notification is a transient feedback value. It is never persisted.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier accepts notifications. Notify cannot fail.
type Notifier interface {
	Notify(message string, severity Severity)
}

// EventKind says what happened to a notification.
type EventKind string

const (
	EventShown     EventKind = "shown"
	EventExpired   EventKind = "expired"
	EventDismissed EventKind = "dismissed"
)

// Event is delivered to subscribers whenever a notification appears or
// goes away.
type Event struct {
	Kind         EventKind
	Notification Notification
}

// Handler renders notification events.
type Handler func(ev Event)

// timer is the subset of *time.Timer the centre needs.
type timer interface {
	Stop() bool
}

type active struct {
	n     Notification
	timer timer
}

type handlerEntry struct {
	id      int
	handler Handler
}

// Center is a thread-safe notification fan-out with automatic expiry.
type Center struct {
	mu       sync.Mutex
	ttl      time.Duration
	active   map[string]*active
	order    []string
	handlers []handlerEntry
	nextID   int
	history  []Notification
	maxHist  int

	now       func() time.Time
	afterFunc func(time.Duration, func()) timer
}

// NewCenter creates a Center whose notifications expire after ttl. A
// non-positive ttl uses DefaultTTL.
func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{
		ttl:     ttl,
		active:  make(map[string]*active),
		maxHist: 100,
		now:     time.Now,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
}

// Notify shows a notification and schedules its removal.
func (c *Center) Notify(message string, severity Severity) {
	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		CreatedAt: c.now(),
	}

	c.mu.Lock()
	a := &active{n: n}
	c.active[n.ID] = a
	c.order = append(c.order, n.ID)
	c.history = append(c.history, n)
	if len(c.history) > c.maxHist {
		c.history = c.history[len(c.history)-c.maxHist:]
	}
	a.timer = c.afterFunc(c.ttl, func() { c.remove(n.ID, EventExpired) })
	targets := c.targets()
	c.mu.Unlock()

	deliver(targets, Event{Kind: EventShown, Notification: n})
}

// Dismiss removes a visible notification early. It reports whether the
// notification was still visible.
func (c *Center) Dismiss(id string) bool {
	return c.remove(id, EventDismissed)
}

func (c *Center) remove(id string, kind EventKind) bool {
	c.mu.Lock()
	a, ok := c.active[id]
	if !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.active, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if kind == EventDismissed && a.timer != nil {
		a.timer.Stop()
	}
	targets := c.targets()
	c.mu.Unlock()

	deliver(targets, Event{Kind: kind, Notification: a.n})
	return true
}

// Active returns the visible notifications, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.active[id].n)
	}
	return out
}

// History returns up to limit of the most recent notifications, oldest
// first, whether or not they are still visible. limit <= 0 means all.
func (c *Center) History(limit int) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.history
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]Notification(nil), h...)
}

// Subscribe registers a handler for notification events. The returned
// function unsubscribes it.
func (c *Center) Subscribe(h Handler) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.handlers = append(c.handlers, handlerEntry{id: id, handler: h})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		filtered := c.handlers[:0]
		for _, e := range c.handlers {
			if e.id != id {
				filtered = append(filtered, e)
			}
		}
		c.handlers = filtered
	}
}

// Close stops every pending expiry timer and clears the visible set
// without emitting events.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.active {
		if a.timer != nil {
			a.timer.Stop()
		}
	}
	c.active = make(map[string]*active)
	c.order = nil
}

// targets copies the handler list; callers hold c.mu.
func (c *Center) targets() []Handler {
	out := make([]Handler, len(c.handlers))
	for i, e := range c.handlers {
		out[i] = e.handler
	}
	return out
}

func deliver(targets []Handler, ev Event) {
	for _, h := range targets {
		h(ev)
	}
}
