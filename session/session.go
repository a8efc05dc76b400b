// Package session holds the signed-in technician's identity and persists it
// between client runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/GoCodeAlone/fieldops/task"
)

// Key is the well-known name of the persisted technician record.
const Key = "technician"

// ErrNoSession is returned when no technician is signed in.
var ErrNoSession = errors.New("no technician signed in")

// Context is the explicit session value passed into every core operation.
// It is immutable once created.
type Context struct {
	tech task.Technician
}

// New validates tech and returns a session context for it.
func New(tech task.Technician) (*Context, error) {
	if err := tech.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &Context{tech: tech}, nil
}

// Technician returns the signed-in technician.
func (c *Context) Technician() task.Technician { return c.tech }

// TechnicianID returns the signed-in technician's ID.
func (c *Context) TechnicianID() int64 { return c.tech.ID }

// Store persists the technician record.
type Store interface {
	Load() (*Context, error)
	Save(tech task.Technician) (*Context, error)
	Clear() error
}

// FileStore keeps the record as JSON under dir/<Key>.json.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the record's file path.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, Key+".json")
}

// Load restores the session. Returns ErrNoSession when nothing is stored.
func (s *FileStore) Load() (*Context, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var tech task.Technician
	if err := json.Unmarshal(data, &tech); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	return New(tech)
}

// Save writes the record atomically and returns the new session.
func (s *FileStore) Save(tech task.Technician) (*Context, error) {
	ctx, err := New(tech)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.Marshal(tech)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	path := s.Path()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return nil, fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("rename session: %w", err)
	}
	return ctx, nil
}

// Clear removes the record. Clearing an absent record is not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
