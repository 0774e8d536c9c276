package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width so that stored timestamps sort lexicographically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const memoryPath = ":memory:"

var migrations = []string{
	`CREATE TABLE calls (
		id TEXT PRIMARY KEY,
		remote TEXT NOT NULL,
		direction TEXT NOT NULL,
		status TEXT NOT NULL,
		disconnect_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		connected_at TEXT NOT NULL DEFAULT '',
		ended_at TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX idx_calls_created_at ON calls(created_at);
	CREATE INDEX idx_calls_remote ON calls(remote);`,

	`CREATE TABLE call_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		call_id TEXT NOT NULL REFERENCES calls(id) ON DELETE CASCADE,
		event_type TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX idx_call_events_call_id ON call_events(call_id);`,
}

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, zero CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
// The database file is created with 0600 permissions and its parent directory with 0700.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != memoryPath {
		if err := prepareFile(path); err != nil {
			return nil, err
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func prepareFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("creating database file: %w", err)
		}
		_ = f.Close()
		return nil
	}

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("restricting database permissions: %w", err)
	}
	return nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		slog.Info("applying migration", "version", i+1)
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Calls ---

func (s *SQLiteStore) UpsertCall(c *CallRecord) error {
	_, err := s.db.Exec(`INSERT INTO calls (id, remote, direction, status, disconnect_reason,
		created_at, connected_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			disconnect_reason = excluded.disconnect_reason,
			connected_at = excluded.connected_at,
			ended_at = excluded.ended_at`,
		c.ID, c.Remote, c.Direction, c.Status, c.DisconnectReason,
		formatTime(c.CreatedAt), formatTime(c.ConnectedAt), formatTime(c.EndedAt))
	if err != nil {
		return fmt.Errorf("upserting call: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCall(id string) (*CallRecord, error) {
	row := s.db.QueryRow(`SELECT id, remote, direction, status, disconnect_reason,
		created_at, connected_at, ended_at
		FROM calls WHERE id = ?`, id)
	c, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("call %q: %w", id, ErrNotFound)
	}
	return c, err
}

func (s *SQLiteStore) ListCalls(f CallFilter) ([]CallRecord, error) {
	query := "SELECT id, remote, direction, status, disconnect_reason, created_at, connected_at, ended_at FROM calls WHERE 1=1"
	var args []any

	if f.Status != "" && f.Status != "all" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.Remote != "" {
		query += " AND remote = ?"
		args = append(args, f.Remote)
	}
	if !f.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, formatTime(f.Since))
	}

	query += " ORDER BY created_at DESC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var calls []CallRecord
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, *c)
	}
	return calls, rows.Err()
}

// --- Call Events ---

func (s *SQLiteStore) AddEvent(e *CallEvent) error {
	res, err := s.db.Exec(`INSERT INTO call_events (call_id, event_type, message, created_at) VALUES (?, ?, ?, ?)`,
		e.CallID, e.EventType, e.Message, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("adding event: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// GetEvents returns the most recent events of a call, newest first.
func (s *SQLiteStore) GetEvents(callID string, limit int) ([]CallEvent, error) {
	query := "SELECT id, call_id, event_type, message, created_at FROM call_events WHERE call_id = ? ORDER BY id DESC"
	args := []any{callID}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("getting events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []CallEvent
	for rows.Next() {
		var e CallEvent
		var createdAt string
		if err := rows.Scan(&e.ID, &e.CallID, &e.EventType, &e.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Analytics ---

// GetAverageCallDuration returns the mean connected time of finished calls,
// optionally restricted to one remote, and how many calls it covers.
func (s *SQLiteStore) GetAverageCallDuration(remote string) (time.Duration, int, error) {
	query := "SELECT connected_at, ended_at FROM calls WHERE connected_at != '' AND ended_at != ''"
	var args []any
	if remote != "" {
		query += " AND remote = ?"
		args = append(args, remote)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("querying call durations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var total time.Duration
	count := 0
	for rows.Next() {
		var connectedAt, endedAt string
		if err := rows.Scan(&connectedAt, &endedAt); err != nil {
			return 0, 0, fmt.Errorf("scanning call duration: %w", err)
		}
		total += parseTime(endedAt).Sub(parseTime(connectedAt))
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}
	return total / time.Duration(count), count, nil
}

// --- Maintenance ---

// Cleanup deletes calls that ended before the cutoff along with their events.
// It returns the number of calls removed.
func (s *SQLiteStore) Cleanup(before time.Time) (int64, error) {
	cutoff := formatTime(before)

	if _, err := s.db.Exec(`DELETE FROM call_events WHERE call_id IN
		(SELECT id FROM calls WHERE ended_at != '' AND ended_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("cleaning events: %w", err)
	}
	res, err := s.db.Exec("DELETE FROM calls WHERE ended_at != '' AND ended_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning calls: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// --- Helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(row scanner) (*CallRecord, error) {
	var c CallRecord
	var createdAt, connectedAt, endedAt string

	err := row.Scan(&c.ID, &c.Remote, &c.Direction, &c.Status, &c.DisconnectReason,
		&createdAt, &connectedAt, &endedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning call: %w", err)
	}

	c.CreatedAt = parseTime(createdAt)
	c.ConnectedAt = parseTime(connectedAt)
	c.EndedAt = parseTime(endedAt)

	return &c, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeFormat, s)
	return t
}
