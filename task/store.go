package task

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store errors.
var (
	ErrNotFound     = errors.New("task not found")
	ErrAlreadyTaken = errors.New("task already taken")
)

// HistoryLimit caps the completed tasks returned in a snapshot.
const HistoryLimit = 20

// Store is the authoritative task store behind the REST collaborator.
type Store interface {
	// Create persists a new task and returns its assigned ID.
	Create(t *Task) (int64, error)

	// Get retrieves a task by ID.
	Get(id int64) (*Task, error)

	// Snapshot builds the technician's active, history, and available lists.
	Snapshot(technicianID int64) (*Snapshot, error)

	// Available lists unassigned new tasks, newest first.
	Available() ([]Task, error)

	// Claim assigns an available task to a technician. Exactly one of any
	// number of concurrent claims on the same task succeeds; the rest get
	// ErrAlreadyTaken.
	Claim(id, technicianID int64) (*Task, error)

	// SetStatus moves a task to status, enforcing the lifecycle rules.
	SetStatus(id int64, status Status) (*Task, error)

	// Technicians lists registered technicians by name.
	Technicians() ([]Technician, error)

	// UpsertTechnician registers or renames a technician.
	UpsertTechnician(t Technician) error

	// Counts returns totals per status across every task.
	Counts() (map[Status]int, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS technicians (
	id    INTEGER PRIMARY KEY,
	name  TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS tasks (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	status        TEXT NOT NULL DEFAULT 'new'
	              CHECK(status IN ('new','in_progress','completed','cancelled')),
	priority      TEXT NOT NULL DEFAULT 'normal',
	company_name  TEXT NOT NULL,
	model         TEXT NOT NULL,
	serial_number TEXT NOT NULL DEFAULT '',
	device_type   TEXT NOT NULL DEFAULT '',
	address       TEXT NOT NULL DEFAULT '',
	contact_phone TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	assigned_to   INTEGER REFERENCES technicians(id),
	photo_path    TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL,
	completed_at  DATETIME
);
`

const taskColumns = `id, status, priority, company_name, model, serial_number, device_type,
	address, contact_phone, description, assigned_to, photo_path, created_at, completed_at`

// SQLiteStore persists tasks in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create persists a new task and sets its ID and CreatedAt.
func (s *SQLiteStore) Create(t *Task) (int64, error) {
	if !t.Status.Valid() {
		t.Status = StatusNew
	}
	t.Priority = t.Priority.Normalize()
	now := s.now()
	t.CreatedAt = &now

	res, err := s.db.Exec(`
		INSERT INTO tasks
			(status, priority, company_name, model, serial_number, device_type,
			 address, contact_phone, description, assigned_to, photo_path,
			 created_at, updated_at, completed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		string(t.Status), string(t.Priority), t.CompanyName, t.Model, t.SerialNumber, t.DeviceType,
		t.Address, t.ContactPhone, t.Description, nullInt(t.AssignedTo), t.PhotoPath,
		now, now, nullTime(t.CompletedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert task id: %w", err)
	}
	t.ID = id
	return id, nil
}

// Get retrieves a task by ID.
func (s *SQLiteStore) Get(id int64) (*Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return t, err
}

// Snapshot builds the lists for technicianID. Active tasks are ordered new
// first, then in_progress, newest first; history holds the most recent
// HistoryLimit completions.
func (s *SQLiteStore) Snapshot(technicianID int64) (*Snapshot, error) {
	active, err := s.query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE assigned_to = ? AND status IN ('new','in_progress')
		ORDER BY CASE status WHEN 'new' THEN 1 ELSE 2 END, created_at DESC, id DESC`,
		technicianID)
	if err != nil {
		return nil, fmt.Errorf("active tasks: %w", err)
	}
	history, err := s.query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE assigned_to = ? AND status = 'completed'
		ORDER BY completed_at DESC, id DESC
		LIMIT ?`, technicianID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("history tasks: %w", err)
	}
	available, err := s.Available()
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{ActiveTasks: active, HistoryTasks: history, AvailableTasks: available}
	snap.Reconcile()
	return snap, nil
}

// Available lists unassigned new tasks, newest first.
func (s *SQLiteStore) Available() ([]Task, error) {
	tasks, err := s.query(`
		SELECT ` + taskColumns + ` FROM tasks
		WHERE assigned_to IS NULL AND status = 'new'
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("available tasks: %w", err)
	}
	return tasks, nil
}

// Claim assigns the task with a single conditional UPDATE so that racing
// claims cannot both succeed.
func (s *SQLiteStore) Claim(id, technicianID int64) (*Task, error) {
	res, err := s.db.Exec(`
		UPDATE tasks SET assigned_to = ?, status = 'in_progress', updated_at = ?
		WHERE id = ? AND assigned_to IS NULL AND status = 'new'`,
		technicianID, s.now(), id)
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		if _, err := s.Get(id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %d", ErrAlreadyTaken, id)
	}
	return s.Get(id)
}

// SetStatus moves a task to status if its current status permits it.
func (s *SQLiteStore) SetStatus(id int64, status Status) (*Task, error) {
	sources := SourcesFor(status)
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: cannot enter %q", ErrIllegalTransition, status)
	}

	now := s.now()
	var completedAt any
	if status == StatusCompleted {
		completedAt = now
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sources)), ",")
	args := []any{string(status), now, completedAt, id}
	for _, src := range sources {
		args = append(args, string(src))
	}

	res, err := s.db.Exec(`
		UPDATE tasks SET status = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND status IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, s.rejectTransition(id, status)
	}
	return s.Get(id)
}

// rejectTransition explains why a conditional status update matched no
// rows. It always returns a non-nil error: if the task now permits the
// transition, it changed between the update and this read.
func (s *SQLiteStore) rejectTransition(id int64, status Status) error {
	cur, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := CheckTransition(cur.Status, status); err != nil {
		return err
	}
	return fmt.Errorf("%w: task %d changed concurrently (now %s)", ErrIllegalTransition, id, cur.Status)
}

// Technicians lists registered technicians ordered by name.
func (s *SQLiteStore) Technicians() ([]Technician, error) {
	rows, err := s.db.Query(`SELECT id, name, email FROM technicians ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list technicians: %w", err)
	}
	defer rows.Close()

	techs := []Technician{}
	for rows.Next() {
		var t Technician
		if err := rows.Scan(&t.ID, &t.Name, &t.Email); err != nil {
			return nil, err
		}
		techs = append(techs, t)
	}
	return techs, rows.Err()
}

// UpsertTechnician registers a technician or updates their name and email.
func (s *SQLiteStore) UpsertTechnician(t Technician) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO technicians (id, name, email) VALUES (?,?,?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email`,
		t.ID, t.Name, t.Email)
	if err != nil {
		return fmt.Errorf("upsert technician: %w", err)
	}
	return nil
}

// Counts returns the number of tasks per status.
func (s *SQLiteStore) Counts() (map[Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	counts := map[Status]int{}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[Status(st)] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) query(q string, args ...any) ([]Task, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var status, priority string
	var assigned sql.NullInt64
	var createdAt time.Time
	var completedAt sql.NullTime

	err := s.Scan(
		&t.ID, &status, &priority, &t.CompanyName, &t.Model, &t.SerialNumber, &t.DeviceType,
		&t.Address, &t.ContactPhone, &t.Description, &assigned, &t.PhotoPath,
		&createdAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = Status(status)
	t.Priority = Priority(priority).Normalize()
	t.CreatedAt = &createdAt
	if assigned.Valid {
		id := assigned.Int64
		t.AssignedTo = &id
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
