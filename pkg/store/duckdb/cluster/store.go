package cluster

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/de-tools/costpulse/pkg/models/store"
)

type Store interface {
	UpsertSnapshots(ctx context.Context, snapshots []store.ClusterSnapshot) error
	ListSnapshots(ctx context.Context) ([]store.ClusterSnapshot, error)
}

type clusterStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &clusterStore{db: db}, nil
}

func (s *clusterStore) UpsertSnapshots(ctx context.Context, snapshots []store.ClusterSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	stmt, err := s.db.PrepareContext(ctx, `
		INSERT OR REPLACE INTO clusters (
			cluster_id, cluster_name, workspace_id, creator_email, state,
			node_type, num_workers, photon_enabled, auto_termination_minutes,
			avg_cpu_utilization, avg_memory_utilization, total_cost_usd,
			idle_hours, last_active_at, tags, collected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range snapshots {
		if _, err := stmt.ExecContext(ctx,
			c.ClusterID, c.ClusterName, c.WorkspaceID, c.CreatorEmail, c.State,
			c.NodeType, c.NumWorkers, c.PhotonEnabled, c.AutoTerminationMinutes,
			c.AvgCPUUtilization, c.AvgMemoryUtilization, c.TotalCostUSD,
			c.IdleHours, c.LastActiveAt, c.Tags, c.CollectedAt,
		); err != nil {
			return fmt.Errorf("upsert cluster snapshot: %w", err)
		}
	}
	return nil
}

func (s *clusterStore) ListSnapshots(ctx context.Context) ([]store.ClusterSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cluster_id, cluster_name, workspace_id, creator_email, state,
		       node_type, num_workers, photon_enabled, auto_termination_minutes,
		       avg_cpu_utilization, avg_memory_utilization, total_cost_usd,
		       idle_hours, last_active_at, tags, collected_at
		FROM clusters
		ORDER BY cluster_name
	`)
	if err != nil {
		return nil, fmt.Errorf("query cluster snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]store.ClusterSnapshot, 0)
	for rows.Next() {
		var c store.ClusterSnapshot
		var creator, state, nodeType sql.NullString
		var lastActive sql.NullTime
		if err := rows.Scan(&c.ClusterID, &c.ClusterName, &c.WorkspaceID, &creator, &state,
			&nodeType, &c.NumWorkers, &c.PhotonEnabled, &c.AutoTerminationMinutes,
			&c.AvgCPUUtilization, &c.AvgMemoryUtilization, &c.TotalCostUSD,
			&c.IdleHours, &lastActive, &c.Tags, &c.CollectedAt); err != nil {
			return nil, err
		}
		c.CreatorEmail = creator.String
		c.State = state.String
		c.NodeType = nodeType.String
		if lastActive.Valid {
			t := lastActive.Time
			c.LastActiveAt = &t
		}
		snapshots = append(snapshots, c)
	}
	return snapshots, rows.Err()
}
