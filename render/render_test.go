package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/GoCodeAlone/fieldops/cache"
	"github.com/GoCodeAlone/fieldops/notify"
	"github.com/GoCodeAlone/fieldops/task"
)

func TestLabel(t *testing.T) {
	tests := map[string]string{
		"in_progress": "In Progress",
		"completed":   "Completed",
		"new":         "New",
	}
	for in, want := range tests {
		if got := Label(in); got != want {
			t.Errorf("Label(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDashboard_ScenarioSnapshot(t *testing.T) {
	snap := &task.Snapshot{
		Stats: task.Stats{Active: 2, InProgress: 1, Completed: 5, Available: 3},
		ActiveTasks: []task.Task{
			{ID: 1023, Status: task.StatusInProgress, CompanyName: "Kafe", Model: "RICH 1800K"},
		},
		HistoryTasks:   []task.Task{},
		AvailableTasks: []task.Task{},
	}
	snap.Reconcile()
	repo := cache.New()
	st := repo.Replace(snap, cache.SourceServer)

	var buf bytes.Buffer
	Dashboard(&buf, st)
	out := buf.String()

	if n := strings.Count(out, "#1023"); n != 1 {
		t.Errorf("card for 1023 rendered %d times:\n%s", n, out)
	}
	if !strings.Contains(out, EmptyHistory) {
		t.Errorf("missing history empty state:\n%s", out)
	}
	if !strings.Contains(out, "Active: 1 ") {
		t.Errorf("stats not derived from lists:\n%s", out)
	}
	if strings.Contains(out, DegradedBanner) {
		t.Error("server data rendered as degraded")
	}
}

func TestDashboard_DegradedBanner(t *testing.T) {
	repo := cache.New()
	st := repo.Replace(&task.Snapshot{
		ActiveTasks: []task.Task{{ID: 1, Status: task.StatusInProgress, CompanyName: "X", Model: "Y"}},
	}, cache.SourceFallback)

	var buf bytes.Buffer
	Dashboard(&buf, st)
	if !strings.HasPrefix(buf.String(), DegradedBanner) {
		t.Errorf("missing banner:\n%s", buf.String())
	}
}

func TestDashboard_NothingLoaded(t *testing.T) {
	var buf bytes.Buffer
	Dashboard(&buf, cache.New().Current())
	if !strings.Contains(buf.String(), "No data") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	if err := Table(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), EmptyAvailable) {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	err := Table(&buf, []task.Task{{ID: 7, Status: task.StatusNew, CompanyName: "Kafe", Model: "RICH"}})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "7") {
		t.Errorf("table = %q", buf.String())
	}
}

func TestNotification(t *testing.T) {
	var buf bytes.Buffer
	Notification(&buf, notify.Event{Kind: notify.EventShown, Notification: notify.Notification{
		Message: "already taken", Severity: notify.SeverityError,
	}})
	if got := buf.String(); got != "[ERROR] already taken\n" {
		t.Errorf("output = %q", got)
	}

	buf.Reset()
	Notification(&buf, notify.Event{Kind: notify.EventExpired})
	if buf.Len() != 0 {
		t.Errorf("expiry printed %q", buf.String())
	}
}

func TestNotifications(t *testing.T) {
	var buf bytes.Buffer
	Notifications(&buf, []notify.Notification{
		{Message: "Task claimed", Severity: notify.SeveritySuccess},
		{Message: "Failed to load tasks", Severity: notify.SeverityError},
	})
	want := "[SUCCESS] Task claimed\n[ERROR] Failed to load tasks\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
