package alert

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/de-tools/costpulse/pkg/models/store"
)

type Store interface {
	ListActive(ctx context.Context) ([]store.Alert, error)
	Upsert(ctx context.Context, a store.Alert) error
	// AppendFiring records one firing; history is append-only.
	AppendFiring(ctx context.Context, f store.AlertFiring) error
	// UpdateDelivery stores the per-channel dispatch outcome for a firing
	// that was already recorded.
	UpdateDelivery(ctx context.Context, firingID string, delivered []byte) error
	ListFirings(ctx context.Context, alertID string, limit int) ([]store.AlertFiring, error)
}

type alertStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &alertStore{db: db}, nil
}

func (s *alertStore) ListActive(ctx context.Context) ([]store.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, workspace_id, threshold, channels, cooldown_minutes, active
		FROM alerts
		WHERE active
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]store.Alert, 0)
	for rows.Next() {
		var a store.Alert
		var workspace sql.NullString
		var channels []byte
		if err := rows.Scan(&a.ID, &a.Name, &a.Kind, &workspace, &a.Threshold,
			&channels, &a.CooldownMinutes, &a.Active); err != nil {
			return nil, err
		}
		a.WorkspaceID = workspace.String
		a.Channels = channels
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *alertStore) Upsert(ctx context.Context, a store.Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO alerts (id, name, kind, workspace_id, threshold, channels, cooldown_minutes, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, a.Kind, a.WorkspaceID, a.Threshold, a.Channels, a.CooldownMinutes, a.Active)
	if err != nil {
		return fmt.Errorf("upsert alert: %w", err)
	}
	return nil
}

func (s *alertStore) AppendFiring(ctx context.Context, f store.AlertFiring) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_history (id, alert_id, triggered_at, current_value, threshold, message, delivered)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.AlertID, f.TriggeredAt, f.CurrentValue, f.Threshold, f.Message, f.Delivered)
	if err != nil {
		return fmt.Errorf("append alert firing: %w", err)
	}
	return nil
}

func (s *alertStore) UpdateDelivery(ctx context.Context, firingID string, delivered []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE alert_history SET delivered = ? WHERE id = ?
	`, delivered, firingID)
	if err != nil {
		return fmt.Errorf("update firing delivery: %w", err)
	}
	return nil
}

func (s *alertStore) ListFirings(ctx context.Context, alertID string, limit int) ([]store.AlertFiring, error) {
	query := `
		SELECT id, alert_id, triggered_at, current_value, threshold, message, delivered
		FROM alert_history
	`
	args := make([]interface{}, 0, 2)
	if alertID != "" {
		query += " WHERE alert_id = ?"
		args = append(args, alertID)
	}
	query += " ORDER BY triggered_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alert history: %w", err)
	}
	defer rows.Close()

	firings := make([]store.AlertFiring, 0)
	for rows.Next() {
		var f store.AlertFiring
		var message sql.NullString
		var delivered []byte
		if err := rows.Scan(&f.ID, &f.AlertID, &f.TriggeredAt, &f.CurrentValue,
			&f.Threshold, &message, &delivered); err != nil {
			return nil, err
		}
		f.Message = message.String
		f.Delivered = delivered
		firings = append(firings, f)
	}
	return firings, rows.Err()
}
