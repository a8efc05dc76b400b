package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/fieldops/client"
	"github.com/GoCodeAlone/fieldops/session"
	"github.com/GoCodeAlone/fieldops/task"
)

// Submit creates a service request owned by the session's technician.
// Missing required fields fail locally without a request; the caller keeps
// the form. Confirmed and unconfirmed submissions both navigate back to the
// dashboard, which refreshes on entry.
func (d *Dispatcher) Submit(ctx context.Context, sess *session.Context, req task.Request) Result {
	req.TechnicianID = sess.TechnicianID()
	req.Normalize()
	if err := req.Validate(); err != nil {
		return d.resolve("Request", 0, fmt.Errorf("%w: %v", client.ErrValidationFailed, err), msgSubmitInvalid)
	}

	created, err := d.api.SubmitRequest(ctx, req)
	if err != nil {
		failMsg := msgSubmitFailed
		if client.Classify(err) == client.KindValidation {
			failMsg = msgSubmitInvalid
		}
		res := d.resolve("Request", 0, err, failMsg)
		res.Navigate = res.Outcome == OutcomeUnconfirmed
		return res
	}

	msg := created.Message
	if msg == "" {
		msg = msgSubmitted
	}
	d.logger.Info("request submitted",
		slog.Int64("task_id", created.ID),
		slog.Int64("technician_id", req.TechnicianID),
	)
	res := d.confirmed(created.ID, msg)
	res.Navigate = true
	return res
}
