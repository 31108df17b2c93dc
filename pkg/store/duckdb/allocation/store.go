package allocation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/de-tools/costpulse/pkg/models/store"
	"github.com/de-tools/costpulse/pkg/store/duckdb"
)

type Store interface {
	// ReplacePeriod removes every allocation for the period and writes the
	// new set in one transaction, which makes re-running a period
	// idempotent.
	ReplacePeriod(ctx context.Context, periodStart, periodEnd time.Time, allocations []store.CostAllocation) error
	ListForPeriod(ctx context.Context, periodStart, periodEnd time.Time) ([]store.CostAllocation, error)
	ListForTeam(ctx context.Context, teamID string, start, end time.Time) ([]store.CostAllocation, error)
}

type allocationStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &allocationStore{db: db}, nil
}

func (s *allocationStore) ReplacePeriod(
	ctx context.Context,
	periodStart, periodEnd time.Time,
	allocations []store.CostAllocation,
) error {
	tx, ownTx, err := duckdb.BeginIn(ctx, s.db)
	if err != nil {
		return err
	}
	if ownTx {
		defer tx.Rollback()
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cost_allocations WHERE period_start = ? AND period_end = ?`,
		periodStart, periodEnd,
	); err != nil {
		return fmt.Errorf("clear period allocations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cost_allocations (
			team_id, team_name, period_start, period_end,
			total_cost, dbu_cost, record_count, breakdown, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range allocations {
		if _, err := stmt.ExecContext(ctx,
			a.TeamID, a.TeamName, a.PeriodStart, a.PeriodEnd,
			a.TotalCost, a.DBUCost, a.RecordCount, a.Breakdown, a.GeneratedAt,
		); err != nil {
			return fmt.Errorf("insert allocation: %w", err)
		}
	}

	if ownTx {
		return tx.Commit()
	}
	return nil
}

func (s *allocationStore) ListForPeriod(ctx context.Context, periodStart, periodEnd time.Time) ([]store.CostAllocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT team_id, team_name, period_start, period_end,
		       total_cost, dbu_cost, record_count, breakdown, generated_at
		FROM cost_allocations
		WHERE period_start = ? AND period_end = ?
		ORDER BY total_cost DESC
	`, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("query allocations: %w", err)
	}
	defer rows.Close()
	return scanAllocationRows(rows)
}

func (s *allocationStore) ListForTeam(ctx context.Context, teamID string, start, end time.Time) ([]store.CostAllocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT team_id, team_name, period_start, period_end,
		       total_cost, dbu_cost, record_count, breakdown, generated_at
		FROM cost_allocations
		WHERE team_id = ? AND period_start >= ? AND period_end <= ?
		ORDER BY period_start
	`, teamID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query team allocations: %w", err)
	}
	defer rows.Close()
	return scanAllocationRows(rows)
}

func scanAllocationRows(rows *sql.Rows) ([]store.CostAllocation, error) {
	allocations := make([]store.CostAllocation, 0)
	for rows.Next() {
		var a store.CostAllocation
		var breakdown []byte
		if err := rows.Scan(&a.TeamID, &a.TeamName, &a.PeriodStart, &a.PeriodEnd,
			&a.TotalCost, &a.DBUCost, &a.RecordCount, &breakdown, &a.GeneratedAt); err != nil {
			return nil, err
		}
		a.Breakdown = breakdown
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}
