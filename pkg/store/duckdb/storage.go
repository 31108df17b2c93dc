package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

const CostRecordsSchema = `
	CREATE TABLE IF NOT EXISTS cost_records (
		id VARCHAR NOT NULL PRIMARY KEY,
		usage_date TIMESTAMP NOT NULL,
		workspace_id VARCHAR NOT NULL,
		sku_name VARCHAR NOT NULL,
		cloud VARCHAR,
		dbu_count DOUBLE,
		dbu_rate DOUBLE,
		cost_usd DOUBLE,
		cluster_id VARCHAR,
		cluster_name VARCHAR,
		job_id VARCHAR,
		user_email VARCHAR,
		tags JSON
	);
`

const TeamsSchema = `
	CREATE TABLE IF NOT EXISTS teams (
		id VARCHAR NOT NULL PRIMARY KEY,
		name VARCHAR NOT NULL,
		department VARCHAR,
		cost_center VARCHAR,
		manager_email VARCHAR,
		tag_patterns JSON
	);
	CREATE TABLE IF NOT EXISTS team_members (
		team_id VARCHAR NOT NULL,
		email VARCHAR NOT NULL,
		PRIMARY KEY (team_id, email)
	);
`

const AllocationSchema = `
	CREATE TABLE IF NOT EXISTS allocation_rules (
		id VARCHAR NOT NULL PRIMARY KEY,
		name VARCHAR NOT NULL,
		team_id VARCHAR NOT NULL,
		kind VARCHAR NOT NULL,
		conditions JSON,
		priority INTEGER NOT NULL DEFAULT 100,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);
	CREATE TABLE IF NOT EXISTS cost_allocations (
		team_id VARCHAR NOT NULL,
		team_name VARCHAR NOT NULL,
		period_start TIMESTAMP NOT NULL,
		period_end TIMESTAMP NOT NULL,
		total_cost DOUBLE NOT NULL,
		dbu_cost DOUBLE NOT NULL,
		record_count INTEGER NOT NULL,
		breakdown JSON,
		generated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (team_id, period_start, period_end)
	);
`

const ClustersSchema = `
	CREATE TABLE IF NOT EXISTS clusters (
		cluster_id VARCHAR NOT NULL PRIMARY KEY,
		cluster_name VARCHAR NOT NULL,
		workspace_id VARCHAR NOT NULL,
		creator_email VARCHAR,
		state VARCHAR,
		node_type VARCHAR,
		num_workers INTEGER,
		photon_enabled BOOLEAN,
		auto_termination_minutes INTEGER,
		avg_cpu_utilization DOUBLE,
		avg_memory_utilization DOUBLE,
		total_cost_usd DOUBLE,
		idle_hours DOUBLE,
		last_active_at TIMESTAMP NULL,
		tags JSON,
		collected_at TIMESTAMP NOT NULL
	);
`

const RecommendationsSchema = `
	CREATE TABLE IF NOT EXISTS recommendations (
		id VARCHAR NOT NULL PRIMARY KEY,
		type VARCHAR NOT NULL,
		severity VARCHAR NOT NULL,
		title VARCHAR,
		description VARCHAR,
		workspace_id VARCHAR,
		resource_id VARCHAR NOT NULL,
		current_cost DOUBLE,
		estimated_savings DOUBLE,
		status VARCHAR NOT NULL DEFAULT 'open',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
`

const ForecastsSchema = `
	CREATE TABLE IF NOT EXISTS forecasts (
		scope VARCHAR NOT NULL,
		date TIMESTAMP NOT NULL,
		predicted_cost DOUBLE NOT NULL,
		lower_bound DOUBLE NOT NULL,
		upper_bound DOUBLE NOT NULL,
		model VARCHAR NOT NULL,
		generated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (scope, date)
	);
`

const AlertsSchema = `
	CREATE TABLE IF NOT EXISTS alerts (
		id VARCHAR NOT NULL PRIMARY KEY,
		name VARCHAR NOT NULL,
		kind VARCHAR NOT NULL,
		workspace_id VARCHAR,
		threshold DOUBLE NOT NULL,
		channels JSON,
		cooldown_minutes INTEGER NOT NULL DEFAULT 60,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);
	CREATE TABLE IF NOT EXISTS alert_history (
		id VARCHAR NOT NULL PRIMARY KEY,
		alert_id VARCHAR NOT NULL,
		triggered_at TIMESTAMP NOT NULL,
		current_value DOUBLE,
		threshold DOUBLE,
		message VARCHAR,
		delivered JSON
	);
`

const CollectorStateSchema = `
	CREATE TABLE IF NOT EXISTS collector_state (
		source VARCHAR NOT NULL PRIMARY KEY,
		last_collected_at TIMESTAMP NULL
	);
`

var bootQueries = []string{
	CostRecordsSchema,
	TeamsSchema,
	AllocationSchema,
	ClustersSchema,
	RecommendationsSchema,
	ForecastsSchema,
	AlertsSchema,
	CollectorStateSchema,
}

type Settings struct {
	DbPath string
}

func NewDB(settings Settings) (*sql.DB, error) {
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=4", settings.DbPath), func(exec driver.ExecerContext) error {
		for _, query := range bootQueries {
			_, err := exec.ExecContext(context.Background(), query, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)
	return db, nil
}
