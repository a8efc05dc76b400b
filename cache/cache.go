// Package cache holds the client's last-known task snapshot. It is the only
// owner of that snapshot: readers get copies and writers replace it whole.
package cache

import (
	"sync"
	"time"

	"github.com/GoCodeAlone/fieldops/task"
)

// Source says where the current snapshot came from.
type Source string

const (
	SourceNone     Source = ""         // nothing loaded yet
	SourceServer   Source = "server"   // confirmed by a server round-trip
	SourceFallback Source = "fallback" // synthetic, degraded mode
)

// State is a point-in-time view of the repository.
type State struct {
	Snapshot  *task.Snapshot
	Source    Source
	Seq       uint64 // increments on every replace
	UpdatedAt time.Time

	// LastConfirmed is the most recent server snapshot, kept while a
	// fallback is displayed. Nil until the first successful refresh.
	LastConfirmed *task.Snapshot
}

// Degraded reports whether the displayed snapshot is synthetic.
func (s State) Degraded() bool { return s.Source == SourceFallback }

// Repository is a thread-safe single-snapshot store with last-write-wins
// replacement.
type Repository struct {
	mu        sync.RWMutex
	cur       *task.Snapshot
	source    Source
	confirmed *task.Snapshot
	seq       uint64
	updatedAt time.Time
	subs      map[int]func(State)
	nextSub   int
	now       func() time.Time
}

// New returns an empty Repository.
func New() *Repository {
	return &Repository{
		subs: make(map[int]func(State)),
		now:  time.Now,
	}
}

// Replace swaps in snap as the whole current snapshot. Fields are never
// merged with the previous snapshot.
func (r *Repository) Replace(snap *task.Snapshot, src Source) State {
	r.mu.Lock()
	r.cur = snap.Clone()
	r.source = src
	if src == SourceServer {
		r.confirmed = r.cur
	}
	r.seq++
	r.updatedAt = r.now()
	st := r.stateLocked()
	subs := make([]func(State), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
	return st
}

// Current returns a copy of the current state.
func (r *Repository) Current() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stateLocked()
}

func (r *Repository) stateLocked() State {
	return State{
		Snapshot:      r.cur.Clone(),
		Source:        r.source,
		Seq:           r.seq,
		UpdatedAt:     r.updatedAt,
		LastConfirmed: r.confirmed.Clone(),
	}
}

// IsAvailable reports whether id is in the available list of the last
// server-confirmed snapshot. Fallback data never counts.
func (r *Repository) IsAvailable(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.confirmed == nil {
		return false
	}
	_, loc, ok := r.confirmed.Find(id)
	return ok && loc == task.InAvailable
}

// HasConfirmed reports whether a server snapshot has been loaded.
func (r *Repository) HasConfirmed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.confirmed != nil
}

// Lookup finds id in the last server-confirmed snapshot.
func (r *Repository) Lookup(id int64) (task.Task, task.Location, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.confirmed == nil {
		return task.Task{}, "", false
	}
	return r.confirmed.Find(id)
}

// Subscribe calls fn with the new state after every replace. The returned
// function unsubscribes it.
func (r *Repository) Subscribe(fn func(State)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	id := r.nextSub
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}
