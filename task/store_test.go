package task

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fieldops-task.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createTask(t *testing.T, store *SQLiteStore, tk Task) int64 {
	t.Helper()
	id, err := store.Create(&tk)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)

	tk := &Task{
		CompanyName: "Kafe",
		Model:       "RICH 1800K",
		Description: "paper jam",
		Priority:    PriorityHigh,
	}
	id, err := store.Create(tk)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id <= 0 {
		t.Fatalf("Create returned id %d", id)
	}
	if tk.ID != id {
		t.Errorf("tk.ID = %d, want %d", tk.ID, id)
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusNew {
		t.Errorf("Status = %q, want new", got.Status)
	}
	if got.Priority != PriorityHigh {
		t.Errorf("Priority = %q, want high", got.Priority)
	}
	if got.CompanyName != "Kafe" || got.Model != "RICH 1800K" {
		t.Errorf("got %+v", got)
	}
	if got.Assigned() {
		t.Error("new task should be unassigned")
	}
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get(999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_ClaimMovesTaskToActive(t *testing.T) {
	store := newTestStore(t)
	id := createTask(t, store, Task{CompanyName: "A", Model: "M"})

	before, err := store.Snapshot(5)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if _, loc, ok := before.Find(id); !ok || loc != InAvailable {
		t.Fatalf("before claim: loc = %q, ok = %v", loc, ok)
	}

	claimed, err := store.Claim(id, 5)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed.Status != StatusInProgress || claimed.AssignedTo == nil || *claimed.AssignedTo != 5 {
		t.Fatalf("claimed = %+v", claimed)
	}

	after, err := store.Snapshot(5)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if _, loc, ok := after.Find(id); !ok || loc != InActive {
		t.Errorf("after claim: loc = %q, ok = %v", loc, ok)
	}
	if len(after.AvailableTasks) != 0 {
		t.Errorf("available = %d, want 0", len(after.AvailableTasks))
	}
}

func TestSQLiteStore_Claim_AlreadyTaken(t *testing.T) {
	store := newTestStore(t)
	id := createTask(t, store, Task{CompanyName: "A", Model: "M"})

	if _, err := store.Claim(id, 1); err != nil {
		t.Fatalf("first Claim: %v", err)
	}
	if _, err := store.Claim(id, 2); !errors.Is(err, ErrAlreadyTaken) {
		t.Fatalf("second Claim err = %v, want ErrAlreadyTaken", err)
	}
}

func TestSQLiteStore_Claim_NotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Claim(42, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_Claim_ConcurrentExactlyOneWins(t *testing.T) {
	store := newTestStore(t)
	id := createTask(t, store, Task{CompanyName: "A", Model: "M"})

	const racers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, losses := 0, 0
	for i := 1; i <= racers; i++ {
		wg.Add(1)
		go func(tech int64) {
			defer wg.Done()
			_, err := store.Claim(id, tech)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrAlreadyTaken):
				losses++
			default:
				t.Errorf("Claim(%d): %v", tech, err)
			}
		}(int64(i))
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("wins = %d, want 1", wins)
	}
	if losses != racers-1 {
		t.Errorf("losses = %d, want %d", losses, racers-1)
	}
}

func TestSQLiteStore_SetStatus(t *testing.T) {
	store := newTestStore(t)
	id := createTask(t, store, Task{CompanyName: "A", Model: "M"})

	if _, err := store.SetStatus(id, StatusCompleted); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("complete new task: err = %v, want ErrIllegalTransition", err)
	}

	if _, err := store.Claim(id, 3); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	done, err := store.SetStatus(id, StatusCompleted)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", done.Status)
	}
	if done.CompletedAt == nil {
		t.Error("CompletedAt should be set on completion")
	}

	if _, err := store.SetStatus(id, StatusCompleted); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("complete twice: err = %v, want ErrIllegalTransition", err)
	}

	snap, err := store.Snapshot(3)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.HistoryTasks) != 1 || snap.HistoryTasks[0].ID != id {
		t.Errorf("history = %+v", snap.HistoryTasks)
	}
	if snap.Stats.Completed != 1 || snap.Stats.Active != 0 {
		t.Errorf("stats = %+v", snap.Stats)
	}
}

func TestSQLiteStore_SetStatus_NotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.SetStatus(7, StatusCancelled); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// A completion whose conditional update saw the task as new, while a claim
// committed before the follow-up read, must still fail.
func TestSQLiteStore_RejectTransition_ClaimedInBetween(t *testing.T) {
	store := newTestStore(t)
	id := createTask(t, store, Task{CompanyName: "A", Model: "M"})
	if _, err := store.Claim(id, 3); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	err := store.rejectTransition(id, StatusCompleted)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("err = %v, want ErrIllegalTransition", err)
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusInProgress {
		t.Errorf("Status = %q, want in_progress", got.Status)
	}
}

func TestSQLiteStore_SnapshotOrdering(t *testing.T) {
	store := newTestStore(t)
	tech := int64(9)
	a := createTask(t, store, Task{CompanyName: "A", Model: "M", Status: StatusInProgress, AssignedTo: &tech})
	b := createTask(t, store, Task{CompanyName: "B", Model: "M", Status: StatusNew, AssignedTo: &tech})

	snap, err := store.Snapshot(tech)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.ActiveTasks) != 2 {
		t.Fatalf("active = %d, want 2", len(snap.ActiveTasks))
	}
	if snap.ActiveTasks[0].ID != b || snap.ActiveTasks[1].ID != a {
		t.Errorf("order = [%d %d], want [%d %d]", snap.ActiveTasks[0].ID, snap.ActiveTasks[1].ID, b, a)
	}
	if snap.Stats.InProgress != 1 {
		t.Errorf("in_progress = %d, want 1", snap.Stats.InProgress)
	}
	if err := snap.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestSeed(t *testing.T) {
	store := newTestStore(t)
	if err := Seed(store); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := Seed(store); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	counts, err := store.Counts()
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[StatusNew] != 2 || counts[StatusInProgress] != 2 {
		t.Errorf("counts = %v", counts)
	}
	techs, err := store.Technicians()
	if err != nil {
		t.Fatalf("Technicians: %v", err)
	}
	if len(techs) != len(DemoTechnicians) {
		t.Errorf("technicians = %d, want %d", len(techs), len(DemoTechnicians))
	}
}
