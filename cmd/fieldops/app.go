package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/fieldops/cache"
	"github.com/GoCodeAlone/fieldops/client"
	"github.com/GoCodeAlone/fieldops/config"
	"github.com/GoCodeAlone/fieldops/internal/version"
	"github.com/GoCodeAlone/fieldops/notify"
	"github.com/GoCodeAlone/fieldops/render"
	"github.com/GoCodeAlone/fieldops/session"
	"github.com/GoCodeAlone/fieldops/syncer"
)

// app holds everything a command needs. It is built once per invocation
// in the root command's PersistentPreRunE.
type app struct {
	out, errOut io.Writer

	// Global flags.
	configPath string
	apiURL     string
	stateDir   string
	verbose    bool

	cfg      *config.Config
	logger   *slog.Logger
	sessions session.Store
	notes    *notify.Center
	api      *client.Client
	repo     *cache.Repository
	engine   *syncer.Engine
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: &lockedWriter{w: errOut}}

	root := &cobra.Command{
		Use:   "fieldops",
		Short: "fieldops - field technician task client",
		Long: `fieldops shows a technician's active, available, and completed service
tasks, and claims or completes them on the task server.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
		PersistentPostRun: func(*cobra.Command, []string) { a.teardown() },
	}
	root.SetOut(out)
	root.SetErr(errOut)

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", config.DefaultPath(), "config file")
	f.StringVar(&a.apiURL, "api-url", "", "task server API URL (overrides config)")
	f.StringVar(&a.stateDir, "state-dir", "", "directory holding the signed-in technician (overrides config)")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.dashboardCmd(),
		a.availableCmd(),
		a.claimCmd(),
		a.completeCmd(),
		a.submitCmd(),
		a.configCmd(),
		a.updateCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.Client.APIURL = a.apiURL
	}
	if a.stateDir != "" {
		cfg.Client.StateDir = a.stateDir
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))
	a.logger.Debug("config loaded", slog.String("path", a.configPath), slog.String("api_url", cfg.Client.APIURL))

	a.sessions = session.NewFileStore(cfg.Client.StateDir)
	a.notes = notify.NewCenter(cfg.Notify.TTL)
	a.notes.Subscribe(func(ev notify.Event) { render.Notification(a.errOut, ev) })
	a.api = client.New(cfg.Client.APIURL, cfg.Client.RequestTimeout, a.logger)
	a.repo = cache.New()
	a.engine = syncer.NewEngine(a.api, a.repo, a.notes, a.logger)
	return nil
}

func (a *app) teardown() {
	if a.notes != nil {
		a.notes.Close()
	}
}

// session loads the signed-in technician.
func (a *app) session() (*session.Context, error) {
	sess, err := a.sessions.Load()
	if errors.Is(err, session.ErrNoSession) {
		return nil, fmt.Errorf("%w: run `fieldops login` first", err)
	}
	return sess, err
}

// lockedWriter serialises writes from the poller, notification timers, and
// the command loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
