// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists sessions in SQLite. Turns live in their own table; a
// Put replaces the session row and all of its turns in one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps in-memory databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore creates a SQLite-backed store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureSessionSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type turnPayload struct {
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	Handoff    *Handoff    `json:"handoff,omitempty"`
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*State, error) {
	var (
		state            State
		phase            string
		created, updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, active_agent, phase, created_at, updated_at
		FROM swarm_sessions WHERE id = ?
	`, id).Scan(&state.ID, &state.ActiveAgent, &phase, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, storeError("read", id, err)
	}
	state.Phase = Phase(phase)
	state.CreatedAt = parseStoreTime(created)
	state.UpdatedAt = parseStoreTime(updated)

	rows, err := s.db.QueryContext(ctx, `
		SELECT turn_id, seq, kind, role, agent, content, payload_json, created_at
		FROM swarm_session_turns WHERE session_id = ? ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, storeError("read", id, err)
	}
	defer rows.Close()

	state.Turns = []Turn{}
	for rows.Next() {
		var (
			turn             Turn
			kind, role       string
			payload, created string
		)
		if err := rows.Scan(&turn.ID, &turn.Seq, &kind, &role, &turn.Agent, &turn.Content, &payload, &created); err != nil {
			return nil, storeError("read", id, err)
		}
		turn.Kind = Kind(kind)
		turn.Role = Role(role)
		turn.CreatedAt = parseStoreTime(created)
		if payload != "" {
			var p turnPayload
			if err := json.Unmarshal([]byte(payload), &p); err != nil {
				return nil, storeError("decode", id, err)
			}
			turn.ToolCall, turn.ToolResult, turn.Handoff = p.ToolCall, p.ToolResult, p.Handoff
		}
		state.Turns = append(state.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("read", id, err)
	}
	return &state, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, id string, state *State) error {
	if err := validatePut(id, state); err != nil {
		return err
	}
	state = prepare(id, state)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("write", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO swarm_sessions (id, active_agent, phase, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			active_agent = excluded.active_agent,
			phase = excluded.phase,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, id, state.ActiveAgent, string(state.Phase), formatStoreTime(state.CreatedAt), formatStoreTime(state.UpdatedAt))
	if err != nil {
		return storeError("write", id, err)
	}

	// The stored history is replaced wholesale: last write wins.
	if _, err := tx.ExecContext(ctx, `DELETE FROM swarm_session_turns WHERE session_id = ?`, id); err != nil {
		return storeError("write", id, err)
	}

	for _, turn := range state.Turns {
		payload, err := encodeTurnPayload(turn)
		if err != nil {
			return storeError("encode", id, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO swarm_session_turns (
				session_id, seq, turn_id, kind, role, agent, content, payload_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, turn.Seq, turn.ID, string(turn.Kind), string(turn.Role), turn.Agent, turn.Content,
			payload, formatStoreTime(turn.CreatedAt))
		if err != nil {
			return storeError("write", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storeError("write", id, err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM swarm_session_turns WHERE session_id = ?`, id); err != nil {
		return storeError("delete", id, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM swarm_sessions WHERE id = ?`, id); err != nil {
		return storeError("delete", id, err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM swarm_sessions ORDER BY id ASC`)
	if err != nil {
		return nil, storeError("list", "", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeError("list", "", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func ensureSessionSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS swarm_sessions (
			id TEXT PRIMARY KEY,
			active_agent TEXT NOT NULL,
			phase TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS swarm_session_turns (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			turn_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			role TEXT NOT NULL,
			agent TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			payload_json TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);
	`)
	return err
}

func encodeTurnPayload(turn Turn) (string, error) {
	if turn.ToolCall == nil && turn.ToolResult == nil && turn.Handoff == nil {
		return "", nil
	}
	data, err := json.Marshal(turnPayload{
		ToolCall:   turn.ToolCall,
		ToolResult: turn.ToolResult,
		Handoff:    turn.Handoff,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func formatStoreTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseStoreTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
