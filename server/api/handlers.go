package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/GoCodeAlone/fieldops/server/ws"
	"github.com/GoCodeAlone/fieldops/task"
)

// RequestIDHeader carries the client-generated request ID.
const RequestIDHeader = "X-Request-ID"

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Tasks   task.Store
	Events  Broadcaster // may be nil
	Logger  *slog.Logger
	Version string
	StartAt time.Time
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/technician/{id}/tasks", h.technicianTasks)
	mux.HandleFunc("GET /api/tasks/available", h.availableTasks)
	mux.HandleFunc("POST /api/task/{id}/take", h.takeTask)
	mux.HandleFunc("POST /api/task/{id}/status", h.updateStatus)
	mux.HandleFunc("POST /api/requests/technician", h.createRequest)

	mux.HandleFunc("GET /api/technicians", h.listTechnicians)
	mux.HandleFunc("GET /api/stats", h.stats)

	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// storeError maps a task.Store error onto an HTTP response.
func (h *Handlers) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, task.ErrAlreadyTaken):
		writeError(w, http.StatusConflict, "already taken")
	case errors.Is(err, task.ErrIllegalTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.Logger.Error("store failure",
			slog.String("path", r.URL.Path),
			slog.String("request_id", r.Header.Get(RequestIDHeader)),
			slog.Any("err", err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handlers) publish(typ string, p ws.TaskPayload) {
	if h.Events != nil {
		h.Events.Broadcast(ws.Event{Type: typ, Payload: p})
	}
}

// --- Task handlers ---

func (h *Handlers) technicianTasks(w http.ResponseWriter, r *http.Request) {
	techID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid technician id")
		return
	}
	snap, err := h.Tasks.Snapshot(techID)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) availableTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.Available()
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type takeRequest struct {
	TechnicianID int64 `json:"technician_id"`
}

func (h *Handlers) takeTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	var req takeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.TechnicianID <= 0 {
		writeError(w, http.StatusBadRequest, "technician_id is required")
		return
	}

	t, err := h.Tasks.Claim(id, req.TechnicianID)
	if err != nil {
		h.Logger.Info("claim refused",
			slog.Int64("task_id", id),
			slog.Int64("technician_id", req.TechnicianID),
			slog.String("request_id", r.Header.Get(RequestIDHeader)),
			slog.Any("err", err),
		)
		h.storeError(w, r, err)
		return
	}
	h.Logger.Info("task claimed",
		slog.Int64("task_id", id),
		slog.Int64("technician_id", req.TechnicianID),
		slog.String("request_id", r.Header.Get(RequestIDHeader)),
	)
	h.publish(ws.TypeTaskClaimed, ws.TaskPayload{TaskID: id, TechnicianID: req.TechnicianID, Status: string(t.Status)})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Task accepted",
		"task":    t,
	})
}

type statusRequest struct {
	Status task.Status `json:"status"`
}

func (h *Handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !req.Status.Valid() || req.Status == task.StatusNew {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	t, err := h.Tasks.SetStatus(id, req.Status)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.Logger.Info("task status changed",
		slog.Int64("task_id", id),
		slog.String("status", string(t.Status)),
		slog.String("request_id", r.Header.Get(RequestIDHeader)),
	)
	var owner int64
	if t.AssignedTo != nil {
		owner = *t.AssignedTo
	}
	h.publish(ws.TypeTaskStatus, ws.TaskPayload{TaskID: id, TechnicianID: owner, Status: string(t.Status)})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Status updated",
		"task":    t,
	})
}

func (h *Handlers) createRequest(w http.ResponseWriter, r *http.Request) {
	var req task.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TechnicianID <= 0 {
		writeError(w, http.StatusBadRequest, "technician_id is required")
		return
	}

	id, err := h.Tasks.Create(req.Task())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.Logger.Info("request created",
		slog.Int64("task_id", id),
		slog.Int64("technician_id", req.TechnicianID),
		slog.String("request_id", r.Header.Get(RequestIDHeader)),
	)
	h.publish(ws.TypeTaskCreated, ws.TaskPayload{TaskID: id, TechnicianID: req.TechnicianID, Status: string(task.StatusInProgress)})
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      id,
		"message": "Request created and accepted",
	})
}

// --- Technicians / stats ---

func (h *Handlers) listTechnicians(w http.ResponseWriter, r *http.Request) {
	techs, err := h.Tasks.Technicians()
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if techs == nil {
		techs = []task.Technician{}
	}
	writeJSON(w, http.StatusOK, techs)
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Tasks.Counts()
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	resp := StatsResponse{
		New:        counts[task.StatusNew],
		InProgress: counts[task.StatusInProgress],
		Completed:  counts[task.StatusCompleted],
		Cancelled:  counts[task.StatusCancelled],
	}
	resp.Total = resp.New + resp.InProgress + resp.Completed + resp.Cancelled
	writeJSON(w, http.StatusOK, resp)
}

// --- Status / version ---

func (h *Handlers) status(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": h.Version,
	}
	if !h.StartAt.IsZero() {
		resp["uptime_seconds"] = int64(time.Since(h.StartAt).Seconds())
	}
	if h.Events != nil {
		resp["event_clients"] = h.Events.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
	})
}
