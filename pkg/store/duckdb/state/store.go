package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store persists the collection high-water mark per source, so a restarted
// collector resumes where the previous run stopped.
type Store interface {
	Get(ctx context.Context, source string) (*time.Time, error)
	Set(ctx context.Context, source string, collectedAt time.Time) error
}

type stateStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &stateStore{db: db}, nil
}

func (s *stateStore) Get(ctx context.Context, source string) (*time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT last_collected_at FROM collector_state WHERE source = ?`, source,
	).Scan(&last)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get collector state: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time
	return &t, nil
}

func (s *stateStore) Set(ctx context.Context, source string, collectedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO collector_state (source, last_collected_at) VALUES (?, ?)
	`, source, collectedAt)
	if err != nil {
		return fmt.Errorf("set collector state: %w", err)
	}
	return nil
}
