package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/fieldops/client"
	"github.com/GoCodeAlone/fieldops/session"
)

// Claim asks the server to assign taskID to the session's technician.
//
// The task must be in the available list of the last server-confirmed
// snapshot; otherwise nothing is sent. Without any confirmed snapshot the
// task's availability is unknown and the claim is refused as such. The
// local check only filters stale clicks: racing claims are resolved by the
// server, which accepts exactly one. Acceptance schedules a refresh after
// SettleDelay and never edits the repository directly.
func (d *Dispatcher) Claim(ctx context.Context, sess *session.Context, taskID int64) Result {
	if !d.repo.HasConfirmed() {
		err := fmt.Errorf("%w: no confirmed task list to check task %d against", client.ErrValidationFailed, taskID)
		return d.resolve("Claim", taskID, err, msgNoConfirmedList)
	}
	if !d.repo.IsAvailable(taskID) {
		err := fmt.Errorf("%w: task %d is not in the available list", client.ErrValidationFailed, taskID)
		return d.resolve("Claim", taskID, err, msgNotAvailable)
	}

	msg, err := d.api.Claim(ctx, taskID, sess.TechnicianID())
	if err != nil {
		return d.resolve("Claim", taskID, err, msgClaimFailed)
	}
	if msg == "" {
		msg = msgClaimed
	}
	d.logger.Info("task claimed",
		slog.Int64("task_id", taskID),
		slog.Int64("technician_id", sess.TechnicianID()),
	)
	return d.confirmed(taskID, msg)
}
