package recommendation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/costpulse/pkg/models/store"
)

var ErrNotFound = errors.New("recommendation not found")

type Store interface {
	Create(ctx context.Context, r store.Recommendation) error
	// HasOpen reports whether an open recommendation already exists for the
	// (resource, type) pair. The scanner uses it to dedup re-scans.
	HasOpen(ctx context.Context, resourceID, recType string) (bool, error)
	UpdateStatus(ctx context.Context, id, status string, updatedAt time.Time) error
	List(ctx context.Context, status, recType string, limit int) ([]store.Recommendation, error)
}

type recommendationStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &recommendationStore{db: db}, nil
}

func (s *recommendationStore) Create(ctx context.Context, r store.Recommendation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recommendations (
			id, type, severity, title, description, workspace_id, resource_id,
			current_cost, estimated_savings, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Type, r.Severity, r.Title, r.Description, r.WorkspaceID, r.ResourceID,
		r.CurrentCost, r.EstimatedSavings, r.Status, r.CreatedAt, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}
	return nil
}

func (s *recommendationStore) HasOpen(ctx context.Context, resourceID, recType string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM recommendations
		WHERE resource_id = ? AND type = ? AND status = 'open'
	`, resourceID, recType).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check open recommendation: %w", err)
	}
	return count > 0, nil
}

func (s *recommendationStore) UpdateStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE recommendations SET status = ?, updated_at = ? WHERE id = ?
	`, status, updatedAt, id)
	if err != nil {
		return fmt.Errorf("update recommendation status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *recommendationStore) List(ctx context.Context, status, recType string, limit int) ([]store.Recommendation, error) {
	query := `
		SELECT id, type, severity, title, description, workspace_id, resource_id,
		       current_cost, estimated_savings, status, created_at, updated_at
		FROM recommendations
	`
	args := make([]interface{}, 0, 3)
	where := ""
	if status != "" {
		where = " WHERE status = ?"
		args = append(args, status)
	}
	if recType != "" {
		if where == "" {
			where = " WHERE type = ?"
		} else {
			where += " AND type = ?"
		}
		args = append(args, recType)
	}
	query += where + " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	recs := make([]store.Recommendation, 0)
	for rows.Next() {
		var r store.Recommendation
		var title, description, workspace sql.NullString
		if err := rows.Scan(&r.ID, &r.Type, &r.Severity, &title, &description, &workspace,
			&r.ResourceID, &r.CurrentCost, &r.EstimatedSavings, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Title = title.String
		r.Description = description.String
		r.WorkspaceID = workspace.String
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
