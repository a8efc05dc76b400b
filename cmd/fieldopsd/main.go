// Command fieldopsd is the task server daemon. It serves the technician REST
// API and task event stream from a SQLite database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/GoCodeAlone/fieldops/config"
	"github.com/GoCodeAlone/fieldops/internal/version"
	"github.com/GoCodeAlone/fieldops/server"
	"github.com/GoCodeAlone/fieldops/task"
)

var (
	configPath  = flag.String("config", "fieldopsd.yaml", "path to config file")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("fieldopsd"))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	logger.Info("starting fieldopsd",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
	)

	if err := os.MkdirAll(filepath.Dir(cfg.Server.DBPath), 0o755); err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}
	store, err := task.NewSQLiteStore(cfg.Server.DBPath)
	if err != nil {
		log.Fatalf("Failed to open task store: %v", err)
	}
	defer store.Close()

	if cfg.Server.SeedDemo {
		if err := task.Seed(store); err != nil {
			log.Fatalf("Failed to seed demo data: %v", err)
		}
	}

	srv := server.New(*cfg, version.Version, logger)
	srv.SetTaskStore(store)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("err", err))
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("server stop error", slog.Any("err", err))
	}
	logger.Info("shutdown complete")
}
