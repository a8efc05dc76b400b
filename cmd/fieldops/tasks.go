package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/fieldops/client"
	"github.com/GoCodeAlone/fieldops/dispatch"
	"github.com/GoCodeAlone/fieldops/notify"
	"github.com/GoCodeAlone/fieldops/render"
	"github.com/GoCodeAlone/fieldops/session"
	"github.com/GoCodeAlone/fieldops/syncer"
	"github.com/GoCodeAlone/fieldops/task"
)

func (a *app) dashboardCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show active, available, and completed tasks",
		Long: `Show active, available, and completed tasks. With --watch the dashboard
stays open, refreshes on the poll interval, and reads commands from stdin:
claim <id>, complete <id>, refresh, dismiss, history, quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			if !watch {
				st, _ := a.engine.Refresh(cmd.Context(), sess)
				render.Dashboard(a.out, st)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, cmd.InOrStdin(), sess)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep refreshing until interrupted")
	return cmd
}

func (a *app) availableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "List tasks nobody has claimed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tasks, err := a.api.AvailableTasks(cmd.Context())
			if err != nil {
				a.notes.Notify(client.Message(err, syncer.LoadFailedMessage), notify.SeverityError)
				return nil
			}
			return render.Table(a.out, tasks)
		},
	}
}

// write runs a one-shot write: with preload it first loads a confirmed
// snapshot for local checks, then performs op, runs any refresh the write
// requested, and prints the dashboard.
func (a *app) write(ctx context.Context, preload bool, op func(*dispatch.Dispatcher, *session.Context) dispatch.Result) error {
	sess, err := a.session()
	if err != nil {
		return err
	}
	if preload {
		if _, err := a.engine.Refresh(ctx, sess); err != nil {
			a.logger.Debug("pre-write refresh failed", slog.Any("err", err))
		}
	}

	var pending syncer.Pending
	d := dispatch.New(a.api, a.repo, a.notes, &pending, a.logger)
	d.SettleDelay = a.cfg.Client.SettleDelay

	res := op(d, sess)
	a.logger.Debug("write resolved",
		slog.String("outcome", string(res.Outcome)),
		slog.Int64("task_id", res.TaskID),
	)

	if st, ran, _ := pending.Flush(ctx, a.engine, sess); ran {
		render.Dashboard(a.out, st)
	}
	return nil
}

func parseTaskID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func (a *app) claimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <task-id>",
		Short: "Take an available task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return a.write(cmd.Context(), true, func(d *dispatch.Dispatcher, sess *session.Context) dispatch.Result {
				return d.Claim(cmd.Context(), sess, id)
			})
		},
	}
}

func (a *app) completeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Mark an in-progress task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return a.write(cmd.Context(), true, func(d *dispatch.Dispatcher, sess *session.Context) dispatch.Result {
				return d.Complete(cmd.Context(), sess, id)
			})
		},
	}
}

func (a *app) submitCmd() *cobra.Command {
	var req task.Request
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Create a service request and take it on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Submit needs no snapshot; validation runs before any request.
			return a.write(cmd.Context(), false, func(d *dispatch.Dispatcher, sess *session.Context) dispatch.Result {
				res := d.Submit(cmd.Context(), sess, req)
				if res.Outcome == dispatch.OutcomeInvalid {
					fmt.Fprintln(a.errOut, "Required: --client, --model, --description")
				}
				return res
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.ClientName, "client", "", "client or company name (required)")
	f.StringVar(&req.ClientPhone, "phone", "", "client phone")
	f.StringVar(&req.DeviceModel, "model", "", "device model (required)")
	f.StringVar(&req.SerialNumber, "serial", "", "device serial number")
	f.StringVar(&req.DeviceType, "type", "", "device type (default \""+task.DefaultDeviceType+"\")")
	f.StringVar(&req.Description, "description", "", "problem description (required)")
	return cmd
}
