// Package client talks to the task server's REST API on behalf of a
// technician and maps every failure onto the client failure taxonomy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/fieldops/task"
)

// RequestIDHeader carries a per-request UUID the server logs.
const RequestIDHeader = "X-Request-ID"

// Client holds HTTP client state for calls to the task server.
type Client struct {
	BaseURL    string // e.g. http://localhost:5000/api
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// New returns a Client for baseURL. A zero timeout leaves requests bounded
// only by their context.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

// TechnicianTasks loads the technician's snapshot. The result has passed
// task.Snapshot.Validate and has had its stats reconciled with its lists.
func (c *Client) TechnicianTasks(ctx context.Context, technicianID int64) (*task.Snapshot, error) {
	var snap task.Snapshot
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/technician/%d/tasks", technicianID), nil, &snap); err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	reported := snap.Stats
	if snap.Reconcile() {
		c.Logger.Warn("server stats disagree with task lists",
			slog.Int64("technician_id", technicianID),
			slog.Any("reported", reported),
			slog.Any("derived", snap.Stats),
		)
	}
	return &snap, nil
}

// AvailableTasks lists unassigned tasks.
func (c *Client) AvailableTasks(ctx context.Context) ([]task.Task, error) {
	var tasks []task.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/available", nil, &tasks); err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.Status != task.StatusNew || t.Assigned() {
			return nil, fmt.Errorf("%w: task %d listed as available with status %q", ErrMalformedResponse, t.ID, t.Status)
		}
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return tasks, nil
}

// Technicians lists the technicians registered on the server.
func (c *Client) Technicians(ctx context.Context) ([]task.Technician, error) {
	var techs []task.Technician
	if err := c.do(ctx, http.MethodGet, "/technicians", nil, &techs); err != nil {
		return nil, err
	}
	return techs, nil
}

// messageResponse is the success body of write operations.
type messageResponse struct {
	Message string `json:"message"`
}

// Claim asks the server to assign taskID to technicianID and returns the
// server's message.
func (c *Client) Claim(ctx context.Context, taskID, technicianID int64) (string, error) {
	body := map[string]int64{"technician_id": technicianID}
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/task/%d/take", taskID), body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// SetStatus asks the server to move taskID to status.
func (c *Client) SetStatus(ctx context.Context, taskID int64, status task.Status) error {
	body := map[string]task.Status{"status": status}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/task/%d/status", taskID), body, nil)
}

// Created is the server's answer to a submitted request.
type Created struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// SubmitRequest validates req locally and, if it passes, creates it on the
// server. A validation failure returns ErrValidationFailed without any
// network call.
func (c *Client) SubmitRequest(ctx context.Context, req task.Request) (*Created, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	var created Created
	if err := c.do(ctx, http.MethodPost, "/requests/technician", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// do performs a JSON request and decodes the response into v (may be nil).
func (c *Client) do(ctx context.Context, method, path string, body, v any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)

	log := c.Logger.With(slog.String("method", method), slog.String("path", path), slog.String("request_id", reqID))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Debug("request failed", slog.Any("err", err))
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrNetworkUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(data, resp.StatusCode)}
		log.Debug("request rejected", slog.Int("status", resp.StatusCode), slog.String("error", apiErr.Message))
		return apiErr
	}

	if v == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// errorMessage extracts the "error" field of a JSON error body, falling back
// to the trimmed body or the status text.
func errorMessage(data []byte, status int) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body.Error
	}
	if s := strings.TrimSpace(string(data)); s != "" && len(s) <= 200 && !strings.HasPrefix(s, "{") {
		return s
	}
	return statusMessage(status)
}
