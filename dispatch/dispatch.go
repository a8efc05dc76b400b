// Package dispatch issues the technician's write requests: claiming an
// available task, completing an owned one, and submitting a new request.
// The server is the only judge of every write; on success the dispatcher
// schedules a refresh instead of editing local state.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoCodeAlone/fieldops/cache"
	"github.com/GoCodeAlone/fieldops/client"
	"github.com/GoCodeAlone/fieldops/notify"
	"github.com/GoCodeAlone/fieldops/task"
)

// DefaultSettleDelay is how long to wait after an accepted write before
// refreshing, so the server has settled.
const DefaultSettleDelay = time.Second

// Outcome is the resolved result of a write.
type Outcome string

const (
	// OutcomeConfirmed means the server accepted the write.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeRejected means the server refused the write.
	OutcomeRejected Outcome = "rejected"
	// OutcomeUnconfirmed means the server could not be reached, or its
	// answer could not be read, so the effect is unknown.
	OutcomeUnconfirmed Outcome = "unconfirmed"
	// OutcomeInvalid means a local check failed and nothing was sent.
	OutcomeInvalid Outcome = "invalid"
)

// Result describes what happened to a write.
type Result struct {
	Outcome Outcome
	TaskID  int64
	Message string // what was shown to the technician
	Err     error  // nil when confirmed

	// Navigate is set when the caller should return to the dashboard.
	Navigate bool
}

// API is the subset of the REST client the dispatcher writes through.
type API interface {
	Claim(ctx context.Context, taskID, technicianID int64) (string, error)
	SetStatus(ctx context.Context, taskID int64, status task.Status) error
	SubmitRequest(ctx context.Context, req task.Request) (*client.Created, error)
}

// Scheduler queues a repository refresh. Both *syncer.Poller and
// *syncer.Pending satisfy it.
type Scheduler interface {
	Schedule(delay time.Duration)
}

// Dispatcher issues writes on behalf of a session.
type Dispatcher struct {
	api      API
	repo     *cache.Repository
	notifier notify.Notifier
	sched    Scheduler
	logger   *slog.Logger

	// SettleDelay is waited before the refresh that follows an accepted write.
	SettleDelay time.Duration
}

// New wires a Dispatcher. logger may be nil.
func New(api API, repo *cache.Repository, n notify.Notifier, sched Scheduler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		api:         api,
		repo:        repo,
		notifier:    n,
		sched:       sched,
		logger:      logger,
		SettleDelay: DefaultSettleDelay,
	}
}

// Messages shown for write outcomes that carry no server text.
const (
	msgNotAvailable    = "Task is no longer available"
	msgNoConfirmedList = "Cannot claim: no confirmed task list (server unreachable)"
	msgClaimed         = "Task claimed"
	msgClaimFailed     = "Failed to claim task"
	msgCompleted       = "Task completed"
	msgCompleteFailed  = "Failed to update task status"
	msgSubmitted       = "Request created"
	msgSubmitFailed    = "Failed to create request"
	msgSubmitInvalid   = "Fill in client name, device model and description"
	msgUnconfirmed     = "not confirmed by the server, refreshing"
)

// resolve turns a write error into a result, emitting exactly one
// notification. Unconfirmed outcomes also schedule a reconciling refresh.
func (d *Dispatcher) resolve(op string, taskID int64, err error, failMsg string) Result {
	res := Result{TaskID: taskID, Err: err}
	switch client.Classify(err) {
	case client.KindValidation:
		res.Outcome = OutcomeInvalid
		res.Message = failMsg
		d.notifier.Notify(res.Message, notify.SeverityError)
	case client.KindNetwork, client.KindMalformed:
		res.Outcome = OutcomeUnconfirmed
		res.Message = fmt.Sprintf("%s %s", op, msgUnconfirmed)
		d.notifier.Notify(res.Message, notify.SeverityWarning)
		d.sched.Schedule(0)
	default:
		res.Outcome = OutcomeRejected
		res.Message = client.Message(err, failMsg)
		d.notifier.Notify(res.Message, notify.SeverityError)
	}
	d.logger.Info("write not confirmed",
		slog.String("op", op),
		slog.Int64("task_id", taskID),
		slog.String("outcome", string(res.Outcome)),
		slog.String("kind", client.Classify(err).String()),
		slog.Any("err", err),
	)
	return res
}

func (d *Dispatcher) confirmed(taskID int64, msg string) Result {
	d.notifier.Notify(msg, notify.SeveritySuccess)
	d.sched.Schedule(d.SettleDelay)
	return Result{Outcome: OutcomeConfirmed, TaskID: taskID, Message: msg}
}
