// Package history persists the conversation log and an activity log in a
// local SQLite database so a session can pick up where the last one ended.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/srjmnh/student-ai/internal/convo"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("history store closed")

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	origin     TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS activity (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	action     TEXT NOT NULL,
	details    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

// Activity is one recorded mutation or view.
type Activity struct {
	Action  string
	Details string
	At      time.Time
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. ":memory:" is accepted for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create history directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// RecordMessage satisfies convo.Recorder.
func (s *Store) RecordMessage(msg convo.Message) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	at := msg.At
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (origin, text, created_at) VALUES (?, ?, ?)`,
		string(msg.Origin), msg.Text, at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Recent returns the last limit messages, oldest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]convo.Message, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT origin, text, created_at FROM (
			SELECT id, origin, text, created_at FROM messages ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []convo.Message
	for rows.Next() {
		var origin, text, created string
		if err := rows.Scan(&origin, &text, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		at, _ := time.Parse(time.RFC3339Nano, created)
		out = append(out, convo.Message{Origin: convo.Origin(origin), Text: text, At: at})
	}
	return out, rows.Err()
}

func (s *Store) RecordActivity(ctx context.Context, action, details string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity (action, details, created_at) VALUES (?, ?, ?)`,
		action, details, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// Activities returns the most recent entries, newest first.
func (s *Store) Activities(ctx context.Context, limit int) ([]Activity, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT action, details, created_at FROM activity ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var created string
		if err := rows.Scan(&a.Action, &a.Details, &created); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.At, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
