package session

import (
	"errors"
	"os"
	"testing"

	"github.com/GoCodeAlone/fieldops/task"
)

func TestFileStore_SaveLoadClear(t *testing.T) {
	store := NewFileStore(t.TempDir())

	if _, err := store.Load(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Load empty: err = %v, want ErrNoSession", err)
	}

	tech := task.Technician{ID: 5, Name: "Petro", Email: "petro@eurocode.ua"}
	saved, err := store.Save(tech)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.TechnicianID() != 5 {
		t.Errorf("TechnicianID = %d, want 5", saved.TechnicianID())
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Technician() != tech {
		t.Errorf("loaded %+v, want %+v", loaded.Technician(), tech)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Load after Clear: err = %v, want ErrNoSession", err)
	}
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestFileStore_SaveRejectsInvalid(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if _, err := store.Save(task.Technician{Name: "nobody"}); err == nil {
		t.Fatal("expected error for missing id")
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Errorf("invalid record should not be written, stat err = %v", err)
	}
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Load(); err == nil || errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want parse error", err)
	}
}
