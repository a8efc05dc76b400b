package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Event is a task change pushed by the server over SSE.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Server-sent event types.
const (
	EventConnected   = "connected"
	EventTaskClaimed = "task_claimed"
	EventTaskStatus  = "task_status"
	EventTaskCreated = "task_created"
)

// Events subscribes to the server's event stream and calls fn for each
// event until ctx is cancelled or the stream ends. Returns
// ErrNetworkUnavailable when the stream cannot be opened or breaks.
func (c *Client) Events(ctx context.Context, fn func(Event)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/events", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	// The stream is long-lived; the client's timeout would cut it off.
	hc := *c.HTTPClient
	hc.Timeout = 0

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Message: statusMessage(resp.StatusCode)}
	}

	sc := bufio.NewScanner(resp.Body)
	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if data.Len() > 0 {
				var ev Event
				if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
					c.Logger.Warn("discarding malformed event", "err", err)
				} else {
					fn(ev)
				}
				data.Reset()
			}
			continue
		}
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(rest, " "))
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	return fmt.Errorf("%w: event stream closed", ErrNetworkUnavailable)
}
