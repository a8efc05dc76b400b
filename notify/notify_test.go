package notify

import (
	"sync"
	"testing"
	"time"
)

// fakeTimer fires only when the test calls fire.
type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) fire() {
	if !t.stopped {
		t.fn()
	}
}

func newFakeCenter(t *testing.T) (*Center, *[]*fakeTimer, *[]time.Duration) {
	t.Helper()
	c := NewCenter(0)
	var timers []*fakeTimer
	var delays []time.Duration
	c.afterFunc = func(d time.Duration, f func()) timer {
		ft := &fakeTimer{fn: f}
		timers = append(timers, ft)
		delays = append(delays, d)
		return ft
	}
	return c, &timers, &delays
}

func TestCenter_NotifyAndExpire(t *testing.T) {
	c, timers, delays := newFakeCenter(t)

	var events []Event
	c.Subscribe(func(ev Event) { events = append(events, ev) })

	c.Notify("saved", SeveritySuccess)

	if got := c.Active(); len(got) != 1 || got[0].Message != "saved" || got[0].Severity != SeveritySuccess {
		t.Fatalf("Active = %+v", got)
	}
	if (*delays)[0] != DefaultTTL {
		t.Errorf("ttl = %v, want %v", (*delays)[0], DefaultTTL)
	}

	(*timers)[0].fire()

	if got := c.Active(); len(got) != 0 {
		t.Errorf("Active after expiry = %+v", got)
	}
	if len(events) != 2 || events[0].Kind != EventShown || events[1].Kind != EventExpired {
		t.Errorf("events = %+v", events)
	}
	if len(c.History(0)) != 1 {
		t.Errorf("history should keep expired notification")
	}
}

func TestCenter_DismissBeforeExpiry(t *testing.T) {
	c, timers, _ := newFakeCenter(t)

	var kinds []EventKind
	c.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	c.Notify("oops", SeverityError)
	id := c.Active()[0].ID

	if !c.Dismiss(id) {
		t.Fatal("Dismiss returned false for visible notification")
	}
	if !(*timers)[0].stopped {
		t.Error("dismiss should stop the expiry timer")
	}
	(*timers)[0].fire()
	if c.Dismiss(id) {
		t.Error("second Dismiss should return false")
	}
	if len(kinds) != 2 || kinds[1] != EventDismissed {
		t.Errorf("kinds = %v, want [shown dismissed]", kinds)
	}
}

func TestCenter_Unsubscribe(t *testing.T) {
	c, _, _ := newFakeCenter(t)
	count := 0
	unsub := c.Subscribe(func(Event) { count++ })
	c.Notify("a", SeverityInfo)
	unsub()
	c.Notify("b", SeverityInfo)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestCenter_HistoryLimit(t *testing.T) {
	c, _, _ := newFakeCenter(t)
	c.Notify("a", SeverityInfo)
	c.Notify("b", SeverityInfo)
	c.Notify("c", SeverityInfo)

	h := c.History(2)
	if len(h) != 2 || h[0].Message != "b" || h[1].Message != "c" {
		t.Errorf("History(2) = %+v", h)
	}
}

func TestCenter_RealTimerExpires(t *testing.T) {
	c := NewCenter(20 * time.Millisecond)
	var wg sync.WaitGroup
	wg.Add(1)
	c.Subscribe(func(ev Event) {
		if ev.Kind == EventExpired {
			wg.Done()
		}
	})
	c.Notify("bye", SeverityWarning)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification did not expire")
	}
	if len(c.Active()) != 0 {
		t.Error("expired notification still active")
	}
}
