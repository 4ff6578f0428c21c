// UniAgent - Unified OpenAI chat agent for the terminal
// License: MIT
//
// Copyright (c) 2026 UniAgent contributors

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Message is one turn of a conversation.
type Message struct {
	ID        string
	Seq       int64
	Role      string
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Store is the per-agent persistent conversation history, backed by SQLite at
// state/history.db under the agent directory.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates/opens the history database for an agent directory.
func Open(agentDir string) (*Store, error) {
	path := filepath.Join(agentDir, "state", "history.db")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history db dir: %w", err)
	}
	return openAt(path)
}

// openAt opens a database file directly. Used for inspecting snapshots.
func openAt(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single-process CLI. One shared connection avoids writer lock contention
	// with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, path: path}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location, used by the backup sweep.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA temp_store=MEMORY;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS messages_seq_idx ON messages(seq);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init history schema failed on %q: %w", trimSQL(stmt), err)
		}
	}
	return nil
}

func trimSQL(sql string) string {
	line := strings.TrimSpace(sql)
	if len(line) > 96 {
		return line[:96] + "..."
	}
	return line
}

func nowMS() int64 { return time.Now().UnixMilli() }

func encodeMeta(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeMeta(raw string) map[string]string {
	if raw == "" {
		return map[string]string{}
	}
	out := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]string{}
	}
	return out
}

// Append inserts one message and trims the history to the newest maxSize
// entries in the same transaction, so a crash can never leave the append
// without its retention sweep. maxSize <= 0 disables trimming.
func (s *Store) Append(ctx context.Context, msg Message, maxSize int) error {
	if strings.TrimSpace(msg.Role) == "" {
		return fmt.Errorf("append message: empty role")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append message begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM messages`).Scan(&maxSeq); err != nil {
		return fmt.Errorf("append message next seq: %w", err)
	}
	msg.Seq = maxSeq.Int64 + 1

	if _, err := tx.ExecContext(ctx, `
INSERT INTO messages(id, seq, role, content, metadata_json, created_at_ms)
VALUES(?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Seq, msg.Role, msg.Content, encodeMeta(msg.Metadata), msg.CreatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("append message insert: %w", err)
	}

	if maxSize > 0 {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM messages
WHERE seq NOT IN (
	SELECT seq FROM messages ORDER BY seq DESC LIMIT ?
)`, maxSize); err != nil {
			return fmt.Errorf("append message trim: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append message commit: %w", err)
	}
	return nil
}

// List returns all retained messages in conversation order.
func (s *Store) List(ctx context.Context) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, seq, role, content, metadata_json, created_at_ms
FROM messages
ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Tail returns the newest n messages in conversation order.
func (s *Store) Tail(ctx context.Context, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, seq, role, content, metadata_json, created_at_ms
FROM messages
ORDER BY seq DESC
LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("tail messages: %w", err)
	}
	defer rows.Close()

	out, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	out := []Message{}
	for rows.Next() {
		var msg Message
		var metaRaw string
		var createdMS int64
		if err := rows.Scan(&msg.ID, &msg.Seq, &msg.Role, &msg.Content, &metaRaw, &createdMS); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Metadata = decodeMeta(metaRaw)
		msg.CreatedAt = time.UnixMilli(createdMS)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// Clear removes every message and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages`)
	if err != nil {
		return 0, fmt.Errorf("clear messages: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Search returns messages whose content contains the query, case-insensitive,
// in conversation order.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
SELECT id, seq, role, content, metadata_json, created_at_ms
FROM messages
WHERE content LIKE ? ESCAPE '\'
ORDER BY seq ASC
LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Stats summarizes the stored conversation.
type Stats struct {
	Total     int
	ByRole    map[string]int
	Chars     int64
	FirstAt   time.Time
	LastAt    time.Time
	AvgLength float64
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	out := Stats{ByRole: map[string]int{}}

	rows, err := s.db.QueryContext(ctx, `SELECT role, COUNT(*), COALESCE(SUM(LENGTH(content)), 0) FROM messages GROUP BY role`)
	if err != nil {
		return Stats{}, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var role string
		var count int
		var chars int64
		if err := rows.Scan(&role, &count, &chars); err != nil {
			return Stats{}, fmt.Errorf("scan stats row: %w", err)
		}
		out.ByRole[role] = count
		out.Total += count
		out.Chars += chars
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate stats rows: %w", err)
	}

	if out.Total > 0 {
		out.AvgLength = float64(out.Chars) / float64(out.Total)
		var firstMS, lastMS int64
		if err := s.db.QueryRowContext(ctx, `SELECT MIN(created_at_ms), MAX(created_at_ms) FROM messages`).Scan(&firstMS, &lastMS); err != nil {
			return Stats{}, fmt.Errorf("history stats range: %w", err)
		}
		out.FirstAt = time.UnixMilli(firstMS)
		out.LastAt = time.UnixMilli(lastMS)
	}
	return out, nil
}
