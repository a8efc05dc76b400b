package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/GoCodeAlone/fieldops/cache"
	"github.com/GoCodeAlone/fieldops/session"
)

// Pending records refresh requests made while no poller is running, so a
// one-shot command can perform the refresh before exiting.
type Pending struct {
	mu        sync.Mutex
	requested bool
	delay     time.Duration
}

// Schedule records a refresh request; the longest delay wins.
func (p *Pending) Schedule(delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requested = true
	if delay > p.delay {
		p.delay = delay
	}
}

// Requested reports whether any refresh was scheduled.
func (p *Pending) Requested() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requested
}

// Flush waits out the longest requested delay and refreshes once. It does
// nothing and returns false when no refresh was requested.
func (p *Pending) Flush(ctx context.Context, e *Engine, sess *session.Context) (cache.State, bool, error) {
	p.mu.Lock()
	requested, delay := p.requested, p.delay
	p.requested, p.delay = false, 0
	p.mu.Unlock()

	if !requested {
		return e.repo.Current(), false, nil
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return e.repo.Current(), true, ctx.Err()
		case <-t.C:
		}
	}
	st, err := e.Refresh(ctx, sess)
	return st, true, err
}
