package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/GoCodeAlone/fieldops/cache"
	"github.com/GoCodeAlone/fieldops/client"
	"github.com/GoCodeAlone/fieldops/config"
	"github.com/GoCodeAlone/fieldops/notify"
	"github.com/GoCodeAlone/fieldops/server"
	"github.com/GoCodeAlone/fieldops/session"
	"github.com/GoCodeAlone/fieldops/syncer"
	"github.com/GoCodeAlone/fieldops/task"
)

// --- Test doubles ---

type fakeAPI struct {
	claimMsg  string
	claimErr  error
	statusErr error
	created   *client.Created
	submitErr error

	claims      []int64
	statuses    []task.Status
	requests    []task.Request
	submitCalls int
}

func (f *fakeAPI) Claim(_ context.Context, taskID, _ int64) (string, error) {
	f.claims = append(f.claims, taskID)
	return f.claimMsg, f.claimErr
}

func (f *fakeAPI) SetStatus(_ context.Context, _ int64, status task.Status) error {
	f.statuses = append(f.statuses, status)
	return f.statusErr
}

func (f *fakeAPI) SubmitRequest(_ context.Context, req task.Request) (*client.Created, error) {
	f.submitCalls++
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", client.ErrValidationFailed, err)
	}
	f.requests = append(f.requests, req)
	return f.created, f.submitErr
}

type recorder struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (r *recorder) Notify(msg string, sev notify.Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, notify.Notification{Message: msg, Severity: sev})
}

type fakeScheduler struct {
	delays []time.Duration
}

func (s *fakeScheduler) Schedule(d time.Duration) { s.delays = append(s.delays, d) }

type fixture struct {
	api   *fakeAPI
	repo  *cache.Repository
	notes *recorder
	sched *fakeScheduler
	d     *Dispatcher
	sess  *session.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		api:   &fakeAPI{},
		repo:  cache.New(),
		notes: &recorder{},
		sched: &fakeScheduler{},
	}
	f.d = New(f.api, f.repo, f.notes, f.sched, nil)
	sess, err := session.New(task.Technician{ID: 5, Name: "Petro"})
	if err != nil {
		t.Fatal(err)
	}
	f.sess = sess

	owner := int64(5)
	f.repo.Replace(&task.Snapshot{
		ActiveTasks:    []task.Task{{ID: 10, Status: task.StatusInProgress, CompanyName: "A", Model: "M", AssignedTo: &owner}},
		HistoryTasks:   []task.Task{},
		AvailableTasks: []task.Task{{ID: 77, Status: task.StatusNew, CompanyName: "B", Model: "M"}},
	}, cache.SourceServer)
	return f
}

func (f *fixture) only(t *testing.T, sev notify.Severity) notify.Notification {
	t.Helper()
	if len(f.notes.notes) != 1 {
		t.Fatalf("notifications = %+v, want exactly one", f.notes.notes)
	}
	n := f.notes.notes[0]
	if n.Severity != sev {
		t.Fatalf("severity = %q, want %q", n.Severity, sev)
	}
	return n
}

// --- Claim ---

func TestClaim_Accepted(t *testing.T) {
	f := newFixture(t)
	f.api.claimMsg = "Task accepted"

	res := f.d.Claim(context.Background(), f.sess, 77)
	if res.Outcome != OutcomeConfirmed {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if n := f.only(t, notify.SeveritySuccess); n.Message != "Task accepted" {
		t.Errorf("message = %q", n.Message)
	}
	if len(f.sched.delays) != 1 || f.sched.delays[0] != DefaultSettleDelay {
		t.Errorf("scheduled = %v", f.sched.delays)
	}
	// No local mutation: the task is still listed as available until refresh.
	if !f.repo.IsAvailable(77) {
		t.Error("repository was mutated by claim")
	}
}

func TestClaim_AlreadyTakenScenario(t *testing.T) {
	f := newFixture(t)
	f.api.claimErr = &client.APIError{Status: http.StatusConflict, Message: "already taken"}

	res := f.d.Claim(context.Background(), f.sess, 77)
	if res.Outcome != OutcomeRejected {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if n := f.only(t, notify.SeverityError); n.Message != "already taken" {
		t.Errorf("message = %q", n.Message)
	}
	if len(f.sched.delays) != 0 {
		t.Errorf("refresh scheduled on rejection: %v", f.sched.delays)
	}
}

func TestClaim_NotAvailableLocally(t *testing.T) {
	f := newFixture(t)

	res := f.d.Claim(context.Background(), f.sess, 10)
	if res.Outcome != OutcomeInvalid || !errors.Is(res.Err, client.ErrValidationFailed) {
		t.Fatalf("result = %+v", res)
	}
	f.only(t, notify.SeverityError)
	if len(f.api.claims) != 0 {
		t.Error("claim sent for a task outside the available list")
	}
}

func TestClaim_FallbackDataNeverUsed(t *testing.T) {
	f := newFixture(t)
	f.repo = cache.New()
	f.repo.Replace(&task.Snapshot{
		AvailableTasks: []task.Task{{ID: 77, Status: task.StatusNew, CompanyName: "B", Model: "M"}},
	}, cache.SourceFallback)
	f.d = New(f.api, f.repo, f.notes, f.sched, nil)

	res := f.d.Claim(context.Background(), f.sess, 77)
	if res.Outcome != OutcomeInvalid {
		t.Errorf("outcome = %q", res.Outcome)
	}
	if len(f.api.claims) != 0 {
		t.Error("claim sent from fallback data")
	}
}

func TestClaim_NoConfirmedSnapshot(t *testing.T) {
	f := newFixture(t)
	f.repo = cache.New()
	f.d = New(f.api, f.repo, f.notes, f.sched, nil)

	res := f.d.Claim(context.Background(), f.sess, 77)
	if res.Outcome != OutcomeInvalid {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if n := f.only(t, notify.SeverityError); n.Message != msgNoConfirmedList {
		t.Errorf("message = %q, want %q", n.Message, msgNoConfirmedList)
	}
	if len(f.api.claims) != 0 || len(f.sched.delays) != 0 {
		t.Errorf("claims=%v scheduled=%v", f.api.claims, f.sched.delays)
	}
}

func TestClaim_NetworkFailureIsUnconfirmed(t *testing.T) {
	f := newFixture(t)
	f.api.claimErr = fmt.Errorf("%w: connection refused", client.ErrNetworkUnavailable)

	res := f.d.Claim(context.Background(), f.sess, 77)
	if res.Outcome != OutcomeUnconfirmed {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	f.only(t, notify.SeverityWarning)
	if len(f.sched.delays) != 1 {
		t.Errorf("expected a reconciling refresh, got %v", f.sched.delays)
	}
}

// --- Transition ---

func TestTransition_Complete(t *testing.T) {
	f := newFixture(t)

	res := f.d.Complete(context.Background(), f.sess, 10)
	if res.Outcome != OutcomeConfirmed {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	f.only(t, notify.SeveritySuccess)
	if len(f.api.statuses) != 1 || f.api.statuses[0] != task.StatusCompleted {
		t.Errorf("statuses = %v", f.api.statuses)
	}
	if len(f.sched.delays) != 1 {
		t.Errorf("scheduled = %v", f.sched.delays)
	}
}

func TestTransition_OnlyCompletionAllowed(t *testing.T) {
	f := newFixture(t)

	res := f.d.Transition(context.Background(), f.sess, 10, task.StatusCancelled)
	if res.Outcome != OutcomeInvalid {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if len(f.api.statuses) != 0 {
		t.Error("request sent for a disallowed target")
	}
}

func TestTransition_UnknownTaskStillSentAndRejected(t *testing.T) {
	f := newFixture(t)
	f.api.statusErr = &client.APIError{Status: http.StatusConflict, Message: "illegal status transition"}
	before := f.repo.Current()

	res := f.d.Complete(context.Background(), f.sess, 77)
	if res.Outcome != OutcomeRejected {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if len(f.api.statuses) != 1 {
		t.Error("server was not asked")
	}
	if n := f.only(t, notify.SeverityError); n.Message != "illegal status transition" {
		t.Errorf("message = %q", n.Message)
	}
	if f.repo.Current().Seq != before.Seq {
		t.Error("snapshot changed on rejection")
	}
}

func TestTransition_MalformedIsUnconfirmed(t *testing.T) {
	f := newFixture(t)
	f.api.statusErr = client.ErrMalformedResponse

	res := f.d.Complete(context.Background(), f.sess, 10)
	if res.Outcome != OutcomeUnconfirmed {
		t.Errorf("outcome = %q", res.Outcome)
	}
}

// --- Submit ---

func TestSubmit_Created(t *testing.T) {
	f := newFixture(t)
	f.api.created = &client.Created{ID: 99, Message: "Request created and accepted"}

	res := f.d.Submit(context.Background(), f.sess, task.Request{
		ClientName: "Kafe", DeviceModel: "RICH", Description: "jam",
	})
	if res.Outcome != OutcomeConfirmed || !res.Navigate || res.TaskID != 99 {
		t.Fatalf("result = %+v", res)
	}
	if len(f.api.requests) != 1 || f.api.requests[0].TechnicianID != 5 {
		t.Errorf("requests = %+v", f.api.requests)
	}
	f.only(t, notify.SeveritySuccess)
}

func TestSubmit_MissingFieldsStayOnForm(t *testing.T) {
	f := newFixture(t)

	res := f.d.Submit(context.Background(), f.sess, task.Request{ClientName: "Kafe", Description: "  "})
	if res.Outcome != OutcomeInvalid || res.Navigate {
		t.Fatalf("result = %+v", res)
	}
	if n := f.only(t, notify.SeverityError); n.Message != msgSubmitInvalid {
		t.Errorf("message = %q", n.Message)
	}
	if f.api.submitCalls != 0 {
		t.Errorf("API called %d times for an invalid form", f.api.submitCalls)
	}
}

func TestSubmit_NetworkFailureStillNavigates(t *testing.T) {
	f := newFixture(t)
	f.api.submitErr = client.ErrNetworkUnavailable

	res := f.d.Submit(context.Background(), f.sess, task.Request{
		ClientName: "Kafe", DeviceModel: "RICH", Description: "jam",
	})
	if res.Outcome != OutcomeUnconfirmed || !res.Navigate {
		t.Fatalf("result = %+v", res)
	}
	f.only(t, notify.SeverityWarning)
}

func TestSubmit_RejectedStaysOnForm(t *testing.T) {
	f := newFixture(t)
	f.api.submitErr = &client.APIError{Status: http.StatusBadRequest, Message: "missing required field"}

	res := f.d.Submit(context.Background(), f.sess, task.Request{
		ClientName: "Kafe", DeviceModel: "RICH", Description: "jam",
	})
	if res.Outcome != OutcomeRejected || res.Navigate {
		t.Fatalf("result = %+v", res)
	}
}

// --- Against the task server ---

func TestClaimThenRefresh_MovesTaskToActive(t *testing.T) {
	store, err := task.NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()
	srv := server.New(config.Config{}, "test", nil)
	srv.SetTaskStore(store)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ids := make([]int64, 3)
	for i := range ids {
		ids[i], err = store.Create(&task.Task{Status: task.StatusNew, CompanyName: fmt.Sprintf("C%d", i), Model: "M"})
		if err != nil {
			t.Fatal(err)
		}
	}

	c := client.New(ts.URL+"/api", 5*time.Second, nil)
	repo := cache.New()
	notes := &recorder{}
	engine := syncer.NewEngine(c, repo, notes, nil)
	var pending syncer.Pending
	d := New(c, repo, notes, &pending, nil)
	d.SettleDelay = 0
	sess, _ := session.New(task.Technician{ID: 5, Name: "Petro"})
	ctx := context.Background()

	for _, id := range ids {
		if _, err := engine.Refresh(ctx, sess); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if res := d.Claim(ctx, sess, id); res.Outcome != OutcomeConfirmed {
			t.Fatalf("claim %d: %+v", id, res)
		}
		st, ran, err := pending.Flush(ctx, engine, sess)
		if err != nil || !ran {
			t.Fatalf("Flush: ran=%v err=%v", ran, err)
		}
		_, loc, ok := st.Snapshot.Find(id)
		if !ok || loc != task.InActive {
			t.Errorf("task %d location = %q, found=%v", id, loc, ok)
		}
		for _, av := range st.Snapshot.AvailableTasks {
			if av.ID == id {
				t.Errorf("task %d still available", id)
			}
		}
	}
}
