// Package task defines the field task model, its lifecycle rules, and the
// snapshot a technician's device holds between sync cycles.
package task

import (
	"errors"
	"fmt"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Priority determines how urgently a task should be handled.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Normalize maps the empty value and unknown priorities onto PriorityNormal.
func (p Priority) Normalize() Priority {
	if p == PriorityHigh {
		return PriorityHigh
	}
	return PriorityNormal
}

// ErrIllegalTransition is returned when a status change is not permitted
// from the task's current status.
var ErrIllegalTransition = errors.New("illegal status transition")

// transitions lists, per target status, the statuses it may be entered from.
var transitions = map[Status][]Status{
	StatusInProgress: {StatusNew},
	StatusCompleted:  {StatusInProgress},
	StatusCancelled:  {StatusNew, StatusInProgress},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// SourcesFor returns the statuses from which to may be entered.
func SourcesFor(to Status) []Status {
	return append([]Status(nil), transitions[to]...)
}

// CheckTransition returns ErrIllegalTransition with context when from -> to
// is not permitted.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

// Task is a unit of dispatched field work.
type Task struct {
	ID           int64      `json:"id"`
	Status       Status     `json:"status"`
	Priority     Priority   `json:"priority,omitempty"`
	CompanyName  string     `json:"company_name"`
	Model        string     `json:"model"`
	SerialNumber string     `json:"serial_number,omitempty"`
	DeviceType   string     `json:"device_type,omitempty"`
	Address      string     `json:"address,omitempty"`
	ContactPhone string     `json:"contact_phone,omitempty"`
	Description  string     `json:"description,omitempty"`
	AssignedTo   *int64     `json:"assigned_technician_id,omitempty"`
	PhotoPath    string     `json:"photo_path,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"` // set only when completed
}

// Assigned reports whether a technician owns the task.
func (t *Task) Assigned() bool { return t.AssignedTo != nil }

// Technician is the field worker using the client.
type Technician struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Validate checks that the required identity fields are present.
func (t Technician) Validate() error {
	if t.ID <= 0 {
		return errors.New("technician id must be positive")
	}
	if t.Name == "" {
		return errors.New("technician name is required")
	}
	return nil
}
