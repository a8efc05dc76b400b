package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/fieldops/client"
	"github.com/GoCodeAlone/fieldops/session"
	"github.com/GoCodeAlone/fieldops/task"
)

// Transition asks the server to move taskID to target. Completion is the
// only transition a technician may start; any other target is refused
// locally.
//
// A task not known locally as in_progress is still sent, since the server
// owns the state machine and must reject an illegal move. The repository is
// untouched until the follow-up refresh.
func (d *Dispatcher) Transition(ctx context.Context, sess *session.Context, taskID int64, target task.Status) Result {
	if target != task.StatusCompleted {
		err := fmt.Errorf("%w: technicians can only complete tasks, not move them to %q", client.ErrValidationFailed, target)
		return d.resolve("Status change", taskID, err, msgCompleteFailed)
	}

	if t, loc, ok := d.repo.Lookup(taskID); !ok || loc != task.InActive || t.Status != task.StatusInProgress {
		d.logger.Warn("completing a task not known to be in progress",
			slog.Int64("task_id", taskID),
			slog.Bool("known", ok),
			slog.String("status", string(t.Status)),
		)
	}

	if err := d.api.SetStatus(ctx, taskID, target); err != nil {
		return d.resolve("Status change", taskID, err, msgCompleteFailed)
	}
	d.logger.Info("task status changed",
		slog.Int64("task_id", taskID),
		slog.Int64("technician_id", sess.TechnicianID()),
		slog.String("status", string(target)),
	)
	return d.confirmed(taskID, msgCompleted)
}

// Complete is Transition to completed.
func (d *Dispatcher) Complete(ctx context.Context, sess *session.Context, taskID int64) Result {
	return d.Transition(ctx, sess, taskID, task.StatusCompleted)
}
