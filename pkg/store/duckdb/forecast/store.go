package forecast

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/de-tools/costpulse/pkg/models/store"
	"github.com/de-tools/costpulse/pkg/store/duckdb"
)

type Store interface {
	// ReplaceScope deletes the prior sequence for the scope and writes the
	// new one in a single transaction.
	ReplaceScope(ctx context.Context, scope string, points []store.ForecastPoint) error
	ListScope(ctx context.Context, scope string) ([]store.ForecastPoint, error)
}

type forecastStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &forecastStore{db: db}, nil
}

func (s *forecastStore) ReplaceScope(ctx context.Context, scope string, points []store.ForecastPoint) error {
	tx, ownTx, err := duckdb.BeginIn(ctx, s.db)
	if err != nil {
		return err
	}
	if ownTx {
		defer tx.Rollback()
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM forecasts WHERE scope = ?`, scope); err != nil {
		return fmt.Errorf("clear scope forecasts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO forecasts (scope, date, predicted_cost, lower_bound, upper_bound, model, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx,
			scope, p.Date, p.PredictedCost, p.LowerBound, p.UpperBound, p.Model, p.GeneratedAt,
		); err != nil {
			return fmt.Errorf("insert forecast point: %w", err)
		}
	}

	if ownTx {
		return tx.Commit()
	}
	return nil
}

func (s *forecastStore) ListScope(ctx context.Context, scope string) ([]store.ForecastPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scope, date, predicted_cost, lower_bound, upper_bound, model, generated_at
		FROM forecasts
		WHERE scope = ?
		ORDER BY date
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	defer rows.Close()

	points := make([]store.ForecastPoint, 0)
	for rows.Next() {
		var p store.ForecastPoint
		if err := rows.Scan(&p.Scope, &p.Date, &p.PredictedCost, &p.LowerBound,
			&p.UpperBound, &p.Model, &p.GeneratedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
