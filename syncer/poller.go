package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/GoCodeAlone/fieldops/cache"
	"github.com/GoCodeAlone/fieldops/session"
)

// DefaultInterval is the polling period while the dashboard is open.
const DefaultInterval = 30 * time.Second

// Poller refreshes on a fixed interval, backs off on consecutive failures,
// and refreshes early when triggered. Run stops when its context ends.
type Poller struct {
	engine     *Engine
	sess       *session.Context
	interval   time.Duration
	maxBackoff time.Duration
	logger     *slog.Logger

	trigger chan struct{}

	mu       sync.Mutex
	failures int
	pending  map[*time.Timer]struct{}

	// OnRefresh, when set, is called after every refresh the poller runs.
	OnRefresh func(cache.State, error)
}

// NewPoller returns a Poller for sess. interval <= 0 uses DefaultInterval;
// maxBackoff below interval disables backoff.
func NewPoller(e *Engine, sess *session.Context, interval, maxBackoff time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxBackoff < interval {
		maxBackoff = interval
	}
	return &Poller{
		engine:     e,
		sess:       sess,
		interval:   interval,
		maxBackoff: maxBackoff,
		logger:     e.logger,
		trigger:    make(chan struct{}, 1),
		pending:    make(map[*time.Timer]struct{}),
	}
}

// Trigger requests an immediate refresh. Requests made while one is
// already queued are coalesced.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Schedule triggers a refresh after delay.
func (p *Poller) Schedule(delay time.Duration) {
	if delay <= 0 {
		p.Trigger()
		return
	}
	// Holding mu until t is recorded keeps the callback's delete after the insert.
	p.mu.Lock()
	defer p.mu.Unlock()
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		p.mu.Lock()
		delete(p.pending, t)
		p.mu.Unlock()
		p.Trigger()
	})
	p.pending[t] = struct{}{}
}

// Failures returns the current count of consecutive failed refreshes.
func (p *Poller) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// Run refreshes immediately, then keeps refreshing until ctx is done.
// Scheduled refreshes still pending when Run returns are cancelled.
func (p *Poller) Run(ctx context.Context) error {
	defer p.stopPending()

	for {
		p.refresh(ctx)

		timer := time.NewTimer(p.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-p.trigger:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	st, err := p.engine.Refresh(ctx, p.sess)
	if ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	if err != nil {
		p.failures++
	} else {
		p.failures = 0
	}
	failures := p.failures
	p.mu.Unlock()

	if err != nil {
		p.logger.Info("poll failed", slog.Int("consecutive_failures", failures), slog.Duration("next", p.nextDelay()))
	}
	if p.OnRefresh != nil {
		p.OnRefresh(st, err)
	}
}

// nextDelay doubles the interval per consecutive failure up to maxBackoff.
func (p *Poller) nextDelay() time.Duration {
	p.mu.Lock()
	n := p.failures
	p.mu.Unlock()
	return backoff(p.interval, p.maxBackoff, n)
}

func backoff(interval, max time.Duration, failures int) time.Duration {
	d := interval
	for i := 0; i < failures && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return d
}

func (p *Poller) stopPending() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for t := range p.pending {
		t.Stop()
		delete(p.pending, t)
	}
}
