package task

import (
	"errors"
	"fmt"
)

// ErrInvalidSnapshot is returned when a snapshot breaks one of the
// partitioning rules between active, history, and available tasks.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Stats holds the aggregate counts shown alongside a snapshot.
type Stats struct {
	Active     int `json:"active"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Available  int `json:"available"`
}

// Snapshot is the full set of task data a technician's client holds at a
// point in time.
type Snapshot struct {
	Stats          Stats  `json:"stats"`
	ActiveTasks    []Task `json:"active_tasks"`
	HistoryTasks   []Task `json:"history_tasks"`
	AvailableTasks []Task `json:"available_tasks"`
}

// Validate checks the partitioning invariants:
//   - active tasks are new or in_progress
//   - history tasks are completed
//   - available tasks are new and unassigned
//   - no task is both active and available
//   - stats are non-negative
func (s *Snapshot) Validate() error {
	active := make(map[int64]struct{}, len(s.ActiveTasks))
	for _, t := range s.ActiveTasks {
		if t.Status != StatusNew && t.Status != StatusInProgress {
			return fmt.Errorf("%w: active task %d has status %q", ErrInvalidSnapshot, t.ID, t.Status)
		}
		active[t.ID] = struct{}{}
	}
	for _, t := range s.HistoryTasks {
		if t.Status != StatusCompleted {
			return fmt.Errorf("%w: history task %d has status %q", ErrInvalidSnapshot, t.ID, t.Status)
		}
	}
	for _, t := range s.AvailableTasks {
		if t.Status != StatusNew || t.Assigned() {
			return fmt.Errorf("%w: available task %d is not an unassigned new task", ErrInvalidSnapshot, t.ID)
		}
		if _, dup := active[t.ID]; dup {
			return fmt.Errorf("%w: task %d is both active and available", ErrInvalidSnapshot, t.ID)
		}
	}
	st := s.Stats
	if st.Active < 0 || st.InProgress < 0 || st.Completed < 0 || st.Available < 0 {
		return fmt.Errorf("%w: negative stats %+v", ErrInvalidSnapshot, st)
	}
	return nil
}

// DeriveStats counts the task lists.
func (s *Snapshot) DeriveStats() Stats {
	st := Stats{
		Active:    len(s.ActiveTasks),
		Completed: len(s.HistoryTasks),
		Available: len(s.AvailableTasks),
	}
	for _, t := range s.ActiveTasks {
		if t.Status == StatusInProgress {
			st.InProgress++
		}
	}
	return st
}

// Reconcile replaces Stats with counts derived from the lists, turns nil
// lists into empty ones, and normalizes priorities. It reports whether the
// incoming stats disagreed with the lists.
func (s *Snapshot) Reconcile() bool {
	if s.ActiveTasks == nil {
		s.ActiveTasks = []Task{}
	}
	if s.HistoryTasks == nil {
		s.HistoryTasks = []Task{}
	}
	if s.AvailableTasks == nil {
		s.AvailableTasks = []Task{}
	}
	for _, list := range [][]Task{s.ActiveTasks, s.HistoryTasks, s.AvailableTasks} {
		for i := range list {
			list[i].Priority = list[i].Priority.Normalize()
		}
	}
	derived := s.DeriveStats()
	mismatch := derived != s.Stats
	s.Stats = derived
	return mismatch
}

// Location names the list a task was found in.
type Location string

const (
	InActive    Location = "active"
	InHistory   Location = "history"
	InAvailable Location = "available"
)

// Find returns a copy of the task with the given id and the list holding it.
func (s *Snapshot) Find(id int64) (Task, Location, bool) {
	for _, l := range []struct {
		loc   Location
		tasks []Task
	}{
		{InActive, s.ActiveTasks},
		{InHistory, s.HistoryTasks},
		{InAvailable, s.AvailableTasks},
	} {
		for _, t := range l.tasks {
			if t.ID == id {
				return t, l.loc, true
			}
		}
	}
	return Task{}, "", false
}

// Clone returns a copy that shares no slices with s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{
		Stats:          s.Stats,
		ActiveTasks:    cloneTasks(s.ActiveTasks),
		HistoryTasks:   cloneTasks(s.HistoryTasks),
		AvailableTasks: cloneTasks(s.AvailableTasks),
	}
}

func cloneTasks(in []Task) []Task {
	if in == nil {
		return nil
	}
	out := make([]Task, len(in))
	for i, t := range in {
		if t.AssignedTo != nil {
			id := *t.AssignedTo
			t.AssignedTo = &id
		}
		out[i] = t
	}
	return out
}
