// Package server implements the task server: the technician REST API and
// SSE push of task changes.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/GoCodeAlone/fieldops/config"
	"github.com/GoCodeAlone/fieldops/server/api"
	"github.com/GoCodeAlone/fieldops/server/ws"
	"github.com/GoCodeAlone/fieldops/task"
)

// Server is the task HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	tasks    task.Store
	hub      *ws.Hub
	handlers *api.Handlers
	routes   sync.Once

	startTime time.Time
	version   string
}

// New creates a new Server with the given config and logger.
func New(cfg config.Config, ver string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		hub:       ws.NewHub(logger),
		startTime: time.Now(),
		version:   ver,
	}
}

// SetTaskStore attaches a task store to the server.
func (s *Server) SetTaskStore(store task.Store) {
	s.tasks = store
}

// Hub returns the server's SSE hub.
func (s *Server) Hub() *ws.Hub { return s.hub }

// Handler registers routes and returns the root handler. Start calls it;
// tests use it with httptest.
func (s *Server) Handler() http.Handler {
	s.routes.Do(s.registerRoutes)
	return s.requestMiddleware(s.mux)
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":5000"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.httpSrv.RegisterOnShutdown(s.hub.Close)
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.httpSrv.RegisterOnShutdown(s.hub.Close)
	s.logger.Info("server listening", slog.String("addr", ln.Addr().String()))
	return s.httpSrv.Serve(ln)
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	h := &api.Handlers{
		Tasks:   s.tasks,
		Events:  s.hub,
		Logger:  s.logger,
		Version: s.version,
		StartAt: s.startTime,
	}
	s.handlers = h

	h.RegisterRoutes(s.mux)
	s.mux.HandleFunc("GET /api/events", s.hub.ServeSSE)
	s.mux.HandleFunc("/", s.notFound)
}

func (s *Server) notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSONError(w, http.StatusNotFound, "not found")
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
