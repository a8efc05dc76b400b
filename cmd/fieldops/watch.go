package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/GoCodeAlone/fieldops/cache"
	"github.com/GoCodeAlone/fieldops/dispatch"
	"github.com/GoCodeAlone/fieldops/notify"
	"github.com/GoCodeAlone/fieldops/render"
	"github.com/GoCodeAlone/fieldops/session"
	"github.com/GoCodeAlone/fieldops/syncer"
)

const (
	clearScreen = "\033[H\033[2J"
	watchHelp   = "Commands: claim <id>, complete <id>, refresh, dismiss, history, quit"
)

// watcher keeps the dashboard on screen and runs typed commands against it.
type watcher struct {
	a      *app
	sess   *session.Context
	poller *syncer.Poller
	d      *dispatch.Dispatcher
	cancel context.CancelFunc

	mu sync.Mutex // serialises frames and command output
}

// watch refreshes on the poll interval, on server events when push is
// enabled, and after every write issued from in. It returns when ctx ends
// or "quit" is read.
func (a *app) watch(ctx context.Context, in io.Reader, sess *session.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := syncer.NewPoller(a.engine, sess, a.cfg.Client.PollInterval, a.cfg.Client.MaxBackoff)
	d := dispatch.New(a.api, a.repo, a.notes, p, a.logger)
	d.SettleDelay = a.cfg.Client.SettleDelay
	w := &watcher{a: a, sess: sess, poller: p, d: d, cancel: cancel}

	// Commands wait for the first snapshot so a claim has something to
	// check against.
	ready := make(chan struct{})
	var once sync.Once
	defer a.repo.Subscribe(func(st cache.State) {
		w.frame(st)
		once.Do(func() { close(ready) })
	})()
	defer a.notes.Subscribe(func(notify.Event) { w.frame(a.repo.Current()) })()

	p.OnRefresh = func(_ cache.State, err error) {
		if err == nil {
			return
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		fmt.Fprintf(a.out, "Refresh failed %d time(s) in a row; retrying with backoff\n", p.Failures())
	}

	if a.cfg.Client.Push {
		go p.Watch(ctx, a.api)
	}
	go func() {
		select {
		case <-ready:
		case <-ctx.Done():
			return
		}
		w.commands(ctx, in)
	}()
	return p.Run(ctx)
}

// frame redraws the whole screen: dashboard, visible notifications, help.
func (w *watcher) frame(st cache.State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.a.out
	fmt.Fprint(out, clearScreen)
	render.Dashboard(out, st)
	if active := w.a.notes.Active(); len(active) > 0 {
		fmt.Fprintln(out)
		render.Notifications(out, active)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, watchHelp)
}

func (w *watcher) printf(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.a.out, format, args...)
}

// commands reads one command per line until EOF, "quit", or ctx ends.
func (w *watcher) commands(ctx context.Context, in io.Reader) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if !w.run(ctx, fields[0], fields[1:]) {
			w.cancel()
			return
		}
	}
}

// run executes one command and reports whether watching should continue.
func (w *watcher) run(ctx context.Context, name string, args []string) bool {
	switch name {
	case "claim", "complete":
		if len(args) != 1 {
			w.printf("usage: %s <task-id>\n", name)
			return true
		}
		id, err := parseTaskID(args[0])
		if err != nil {
			w.printf("%v\n", err)
			return true
		}
		var res dispatch.Result
		if name == "claim" {
			res = w.d.Claim(ctx, w.sess, id)
		} else {
			res = w.d.Complete(ctx, w.sess, id)
		}
		w.a.logger.Debug("write resolved",
			slog.String("op", name),
			slog.String("outcome", string(res.Outcome)),
			slog.Int64("task_id", res.TaskID),
		)
	case "refresh", "r":
		w.poller.Trigger()
	case "dismiss", "d":
		for _, n := range w.a.notes.Active() {
			w.a.notes.Dismiss(n.ID)
		}
	case "history", "h":
		w.mu.Lock()
		render.Notifications(w.a.out, w.a.notes.History(20))
		w.mu.Unlock()
	case "quit", "q":
		return false
	default:
		w.printf("unknown command %q. %s\n", name, watchHelp)
	}
	return true
}
