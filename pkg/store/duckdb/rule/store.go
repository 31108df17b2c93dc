package rule

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/de-tools/costpulse/pkg/models/store"
)

type Store interface {
	// ListActive returns active rules in ascending priority order, the
	// order the allocation engine evaluates them in.
	ListActive(ctx context.Context) ([]store.AllocationRule, error)
	Upsert(ctx context.Context, r store.AllocationRule) error
}

type ruleStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &ruleStore{db: db}, nil
}

func (s *ruleStore) ListActive(ctx context.Context) ([]store.AllocationRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, team_id, kind, conditions, priority, active
		FROM allocation_rules
		WHERE active
		ORDER BY priority
	`)
	if err != nil {
		return nil, fmt.Errorf("query allocation rules: %w", err)
	}
	defer rows.Close()

	rules := make([]store.AllocationRule, 0)
	for rows.Next() {
		var r store.AllocationRule
		var conditions []byte
		if err := rows.Scan(&r.ID, &r.Name, &r.TeamID, &r.Kind, &conditions, &r.Priority, &r.Active); err != nil {
			return nil, err
		}
		r.Conditions = conditions
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *ruleStore) Upsert(ctx context.Context, r store.AllocationRule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO allocation_rules (id, name, team_id, kind, conditions, priority, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Name, r.TeamID, r.Kind, r.Conditions, r.Priority, r.Active)
	if err != nil {
		return fmt.Errorf("upsert allocation rule: %w", err)
	}
	return nil
}
