package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/GoCodeAlone/fieldops/client"
)

// EventSource streams server-pushed task events.
type EventSource interface {
	Events(ctx context.Context, fn func(client.Event)) error
}

// Watch triggers a refresh on every task event from src, reconnecting with
// backoff when the stream drops. It returns when ctx is done.
func (p *Poller) Watch(ctx context.Context, src EventSource) {
	failures := 0
	for {
		connected := false
		err := src.Events(ctx, func(ev client.Event) {
			switch ev.Type {
			case client.EventConnected:
				connected = true
			case client.EventTaskClaimed, client.EventTaskStatus, client.EventTaskCreated:
				p.logger.Debug("task event, refreshing", slog.String("type", ev.Type))
				p.Trigger()
			}
		})
		if ctx.Err() != nil {
			return
		}
		if connected {
			failures = 0
		} else {
			failures++
		}
		wait := backoff(time.Second, p.maxBackoff, failures)
		p.logger.Debug("event stream ended", slog.Any("err", err), slog.Duration("retry_in", wait))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
