package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	getStateSQL = `SELECT value FROM app_state WHERE session_id = $1 AND state_key = $2`

	putStateSQL = `
INSERT INTO app_state (session_id, state_key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (session_id, state_key)
DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	deleteStateSQL = `DELETE FROM app_state WHERE session_id = $1 AND state_key = $2`
)

// querier is the subset of pgxpool.Pool used by StateStore.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// StateStore keeps session state as JSONB rows keyed by (session_id, state_key).
type StateStore struct {
	db querier
}

func NewStateStore(db querier) *StateStore {
	return &StateStore{db: db}
}

func (s *StateStore) Get(ctx context.Context, sessionID, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(ctx, getStateSQL, sessionID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return value, true, nil
}

func (s *StateStore) Put(ctx context.Context, sessionID, key string, value []byte) error {
	if _, err := s.db.Exec(ctx, putStateSQL, sessionID, key, value); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (s *StateStore) Delete(ctx context.Context, sessionID, key string) error {
	if _, err := s.db.Exec(ctx, deleteStateSQL, sessionID, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
