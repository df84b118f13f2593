package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql

	"salesagent/internal/logger"
	"salesagent/pkg/agenttypes"
)

// TurnRecord is one finalized turn as stored in the audit log.
type TurnRecord struct {
	SessionID     string
	LeadID        string
	Number        int
	Query         string
	FinalResponse string
	Summary       string
	Actions       []agenttypes.Action
	CreatedAt     time.Time
}

// SQLiteMemoryStore persists long-term memory and an audit log of finalized
// turns in a SQLite database.
type SQLiteMemoryStore struct {
	path string
	db   *sql.DB
	mu   sync.RWMutex
	now  func() time.Time
}

// NewSQLiteMemoryStore creates a store for the database at path. The database
// is opened by Initialize.
func NewSQLiteMemoryStore(path string) *SQLiteMemoryStore {
	return &SQLiteMemoryStore{path: path, now: time.Now}
}

// Name returns the service name "memory" for registration.
func (s *SQLiteMemoryStore) Name() string {
	return "memory"
}

// Initialize opens the database and creates the schema.
func (s *SQLiteMemoryStore) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	if err := migrateMemorySchema(db); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	s.db = db
	logger.ServiceOperation("memory", "initialize", "completed", "path", s.path)
	return nil
}

// Close releases the database handle.
func (s *SQLiteMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func migrateMemorySchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			lead_id TEXT PRIMARY KEY,
			summary TEXT NOT NULL DEFAULT '',
			structured TEXT NOT NULL DEFAULT '{}',
			updated_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			lead_id TEXT NOT NULL,
			turn_number INTEGER NOT NULL,
			query TEXT NOT NULL DEFAULT '',
			final_response TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			actions TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_lead ON turns(lead_id, id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return nil
}

func (s *SQLiteMemoryStore) handle() (*sql.DB, error) {
	if s.db == nil {
		return nil, fmt.Errorf("memory store not initialized")
	}
	return s.db, nil
}

// Load returns the record for id; an unknown id yields an empty record.
func (s *SQLiteMemoryStore) Load(ctx context.Context, id string) (agenttypes.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.handle()
	if err != nil {
		return agenttypes.MemoryRecord{}, err
	}

	var (
		summary    string
		structured string
		updatedAt  int64
	)
	err = db.QueryRowContext(ctx,
		`SELECT summary, structured, updated_at FROM memories WHERE lead_id = ?`, id,
	).Scan(&summary, &structured, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return agenttypes.MemoryRecord{}, nil
	}
	if err != nil {
		return agenttypes.MemoryRecord{}, fmt.Errorf("load memory: %w", err)
	}

	record := agenttypes.MemoryRecord{Summary: summary}
	if err := json.Unmarshal([]byte(structured), &record.Structured); err != nil {
		return agenttypes.MemoryRecord{}, fmt.Errorf("decode structured memory: %w", err)
	}
	if len(record.Structured) == 0 {
		record.Structured = nil
	}
	if updatedAt > 0 {
		record.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	}
	return record, nil
}

// Save merges structured into the stored record for id and replaces its summary.
func (s *SQLiteMemoryStore) Save(ctx context.Context, id string, structured map[string]any, summary string) error {
	if id == "" {
		return fmt.Errorf("memory id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.handle()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT structured FROM memories WHERE lead_id = ?`, id).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("load memory: %w", err)
	}

	var base map[string]any
	if existing != "" {
		if err := json.Unmarshal([]byte(existing), &base); err != nil {
			return fmt.Errorf("decode structured memory: %w", err)
		}
	}

	merged, err := json.Marshal(mergeStructured(base, structured))
	if err != nil {
		return fmt.Errorf("encode structured memory: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO memories (lead_id, summary, structured, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(lead_id) DO UPDATE SET summary = excluded.summary,
			structured = excluded.structured, updated_at = excluded.updated_at`,
		id, summary, string(merged), s.now().Unix())
	if err != nil {
		return fmt.Errorf("save memory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit memory: %w", err)
	}

	logger.Debug("Long-term memory saved", "lead", id, "backend", "sqlite")
	return nil
}

// RecordTurn appends a finalized turn to the audit log.
func (s *SQLiteMemoryStore) RecordTurn(ctx context.Context, sessionID, leadID string, turn agenttypes.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.handle()
	if err != nil {
		return err
	}

	actions, err := json.Marshal(turn.Actions)
	if err != nil {
		return fmt.Errorf("encode turn actions: %w", err)
	}

	_, err = db.ExecContext(ctx, `INSERT INTO turns
		(session_id, lead_id, turn_number, query, final_response, summary, actions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, leadID, turn.Number, turn.Query, turn.FinalResponse, turn.Summary, string(actions), s.now().Unix())
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// Turns returns the audit log for a lead in insertion order.
func (s *SQLiteMemoryStore) Turns(ctx context.Context, leadID string) ([]TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT session_id, lead_id, turn_number, query, final_response, summary, actions, created_at
		FROM turns WHERE lead_id = ? ORDER BY id`, leadID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var records []TurnRecord
	for rows.Next() {
		var (
			r       TurnRecord
			actions string
			created int64
		)
		if err := rows.Scan(&r.SessionID, &r.LeadID, &r.Number, &r.Query, &r.FinalResponse, &r.Summary, &actions, &created); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if err := json.Unmarshal([]byte(actions), &r.Actions); err != nil {
			return nil, fmt.Errorf("decode turn actions: %w", err)
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}
