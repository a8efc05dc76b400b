// Package syncer keeps the client's task repository in step with the
// server: one-shot refreshes, a cancellable poller with backoff, push
// triggered refreshes, and the degraded-mode fallback.
package syncer

import (
	"context"
	"log/slog"

	"github.com/GoCodeAlone/fieldops/cache"
	"github.com/GoCodeAlone/fieldops/notify"
	"github.com/GoCodeAlone/fieldops/session"
	"github.com/GoCodeAlone/fieldops/task"
)

// LoadFailedMessage is shown when a refresh fails.
const LoadFailedMessage = "Failed to load tasks"

// Fetcher reads a technician's snapshot from the server.
type Fetcher interface {
	TechnicianTasks(ctx context.Context, technicianID int64) (*task.Snapshot, error)
}

// Engine performs refreshes into a repository.
type Engine struct {
	fetch    Fetcher
	repo     *cache.Repository
	notifier notify.Notifier
	logger   *slog.Logger
	fallback func() *task.Snapshot
}

// NewEngine wires an Engine. logger may be nil.
func NewEngine(f Fetcher, repo *cache.Repository, n notify.Notifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		fetch:    f,
		repo:     repo,
		notifier: n,
		logger:   logger,
		fallback: Generate,
	}
}

// Repository returns the repository the engine writes to.
func (e *Engine) Repository() *cache.Repository { return e.repo }

// Refresh loads the technician's snapshot and replaces the repository
// contents with it. On failure it emits exactly one error notification,
// substitutes the fallback snapshot, and returns the error alongside the
// degraded state. A cancelled ctx returns ctx.Err() and changes nothing.
//
// Overlapping refreshes are allowed; whichever completes last wins.
func (e *Engine) Refresh(ctx context.Context, sess *session.Context) (cache.State, error) {
	techID := sess.TechnicianID()
	snap, err := e.fetch.TechnicianTasks(ctx, techID)
	if err != nil {
		if ctx.Err() != nil {
			return e.repo.Current(), ctx.Err()
		}
		e.logger.Warn("refresh failed, showing fallback",
			slog.Int64("technician_id", techID),
			slog.Any("err", err),
		)
		e.notifier.Notify(LoadFailedMessage, notify.SeverityError)
		return e.repo.Replace(e.fallback(), cache.SourceFallback), err
	}

	st := e.repo.Replace(snap, cache.SourceServer)
	e.logger.Debug("refreshed",
		slog.Int64("technician_id", techID),
		slog.Int("active", st.Snapshot.Stats.Active),
		slog.Int("available", st.Snapshot.Stats.Available),
		slog.Uint64("seq", st.Seq),
	)
	return st, nil
}
