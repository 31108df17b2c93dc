package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/de-tools/costpulse/pkg/models/store"
	"github.com/de-tools/costpulse/pkg/store/duckdb"
)

// Store handles ingestion and aggregate reads over cost records. The daily
// series methods feed the anomaly detector, forecaster, and alert
// evaluator; GetRecords feeds the allocation engine; the tag reads feed the
// compliance checker.
type Store interface {
	Add(ctx context.Context, records []store.CostRecord) error
	GetRecords(ctx context.Context, start, end time.Time) ([]store.CostRecord, error)
	GetDailyTotals(ctx context.Context, start, end time.Time) ([]store.DailyCost, error)
	GetDailyByWorkspace(ctx context.Context, start, end time.Time) ([]store.DailyCost, error)
	GetDailyBySKU(ctx context.Context, start, end time.Time) ([]store.DailyCost, error)
	SumCosts(ctx context.Context, start, end time.Time, workspaceID string) (float64, error)
	DistinctClusterTags(ctx context.Context, workspaceID string) ([]store.ResourceTags, error)
	ListRecordTags(ctx context.Context, workspaceID string) ([][]byte, error)
}

type usageStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &usageStore{db: db}, nil
}

func (u *usageStore) Add(ctx context.Context, records []store.CostRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT OR REPLACE INTO cost_records (
			id, usage_date, workspace_id, sku_name, cloud, dbu_count,
			dbu_rate, cost_usd, cluster_id, cluster_name, job_id, user_email, tags
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		)`

	stmt, err := duckdb.PrepareIn(ctx, u.db, query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		_, err = stmt.ExecContext(ctx,
			record.ID,
			record.UsageDate,
			record.WorkspaceID,
			record.SKUName,
			record.Cloud,
			record.DBUCount,
			record.DBURate,
			record.CostUSD,
			record.ClusterID,
			record.ClusterName,
			record.JobID,
			record.UserEmail,
			record.Tags,
		)
		if err != nil {
			return fmt.Errorf("insert cost record: %w", err)
		}
	}

	return nil
}

func (u *usageStore) GetRecords(ctx context.Context, start, end time.Time) ([]store.CostRecord, error) {
	query := `
		SELECT id, usage_date, workspace_id, sku_name, cloud, dbu_count,
		       dbu_rate, cost_usd, cluster_id, cluster_name, job_id, user_email, tags
		FROM cost_records
		WHERE usage_date >= ? AND usage_date < ?
		ORDER BY usage_date
	`
	rows, err := u.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query cost records: %w", err)
	}
	defer rows.Close()

	records := make([]store.CostRecord, 0)
	for rows.Next() {
		var (
			r                                          store.CostRecord
			cloud, clusterID, clusterName, jobID, user sql.NullString
			tags                                       []byte
		)
		if err := rows.Scan(&r.ID, &r.UsageDate, &r.WorkspaceID, &r.SKUName, &cloud,
			&r.DBUCount, &r.DBURate, &r.CostUSD, &clusterID, &clusterName, &jobID, &user, &tags); err != nil {
			return nil, err
		}
		r.Cloud = cloud.String
		r.ClusterID = clusterID.String
		r.ClusterName = clusterName.String
		r.JobID = jobID.String
		r.UserEmail = user.String
		r.Tags = tags
		records = append(records, r)
	}
	return records, rows.Err()
}

func (u *usageStore) GetDailyTotals(ctx context.Context, start, end time.Time) ([]store.DailyCost, error) {
	query := `
		SELECT date_trunc('day', usage_date) AS day, SUM(cost_usd) AS cost
		FROM cost_records
		WHERE usage_date >= ? AND usage_date < ?
		GROUP BY day
		ORDER BY day
	`
	rows, err := u.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query daily totals: %w", err)
	}
	defer rows.Close()
	return scanDailyRows(rows, false)
}

func (u *usageStore) GetDailyByWorkspace(ctx context.Context, start, end time.Time) ([]store.DailyCost, error) {
	query := `
		SELECT workspace_id, date_trunc('day', usage_date) AS day, SUM(cost_usd) AS cost
		FROM cost_records
		WHERE usage_date >= ? AND usage_date < ?
		GROUP BY workspace_id, day
		ORDER BY workspace_id, day
	`
	rows, err := u.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query daily costs by workspace: %w", err)
	}
	defer rows.Close()
	return scanDailyRows(rows, true)
}

func (u *usageStore) GetDailyBySKU(ctx context.Context, start, end time.Time) ([]store.DailyCost, error) {
	query := `
		SELECT sku_name, date_trunc('day', usage_date) AS day, SUM(cost_usd) AS cost
		FROM cost_records
		WHERE usage_date >= ? AND usage_date < ?
		GROUP BY sku_name, day
		ORDER BY sku_name, day
	`
	rows, err := u.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query daily costs by sku: %w", err)
	}
	defer rows.Close()
	return scanDailyRows(rows, true)
}

func (u *usageStore) SumCosts(ctx context.Context, start, end time.Time, workspaceID string) (float64, error) {
	query := `SELECT COALESCE(SUM(cost_usd), 0) FROM cost_records WHERE usage_date >= ? AND usage_date < ?`
	args := []interface{}{start, end}
	if workspaceID != "" {
		query += " AND workspace_id = ?"
		args = append(args, workspaceID)
	}
	var total float64
	if err := u.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum costs: %w", err)
	}
	return total, nil
}

// DistinctClusterTags returns one row per billed cluster, carrying the tags
// of its most recent cost record.
func (u *usageStore) DistinctClusterTags(ctx context.Context, workspaceID string) ([]store.ResourceTags, error) {
	query := `
		SELECT DISTINCT ON (cluster_id) cluster_id, cluster_name, workspace_id, tags
		FROM cost_records
		WHERE cluster_id IS NOT NULL AND cluster_id <> ''
	`
	args := make([]interface{}, 0, 1)
	if workspaceID != "" {
		query += " AND workspace_id = ?"
		args = append(args, workspaceID)
	}
	query += " ORDER BY cluster_id, usage_date DESC"

	rows, err := u.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cluster tags: %w", err)
	}
	defer rows.Close()

	result := make([]store.ResourceTags, 0)
	for rows.Next() {
		var r store.ResourceTags
		var name sql.NullString
		if err := rows.Scan(&r.ClusterID, &name, &r.WorkspaceID, &r.Tags); err != nil {
			return nil, err
		}
		r.ClusterName = name.String
		result = append(result, r)
	}
	return result, rows.Err()
}

// ListRecordTags returns the tag payload of every tagged cost record.
func (u *usageStore) ListRecordTags(ctx context.Context, workspaceID string) ([][]byte, error) {
	query := `SELECT tags FROM cost_records WHERE tags IS NOT NULL`
	args := make([]interface{}, 0, 1)
	if workspaceID != "" {
		query += " AND workspace_id = ?"
		args = append(args, workspaceID)
	}

	rows, err := u.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query record tags: %w", err)
	}
	defer rows.Close()

	payloads := make([][]byte, 0)
	for rows.Next() {
		var tags []byte
		if err := rows.Scan(&tags); err != nil {
			return nil, err
		}
		if len(tags) > 0 {
			payloads = append(payloads, tags)
		}
	}
	return payloads, rows.Err()
}

func scanDailyRows(rows *sql.Rows, scoped bool) ([]store.DailyCost, error) {
	series := make([]store.DailyCost, 0)
	for rows.Next() {
		var d store.DailyCost
		var err error
		if scoped {
			err = rows.Scan(&d.Scope, &d.Date, &d.Cost)
		} else {
			err = rows.Scan(&d.Date, &d.Cost)
		}
		if err != nil {
			return nil, err
		}
		series = append(series, d)
	}
	return series, rows.Err()
}
