package domain

import "time"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// CostRecord is a single normalized billing fact from the Databricks
// system tables. Records are immutable once collected; the analytic
// passes only ever read them.
type CostRecord struct {
	ID          string
	UsageDate   time.Time
	WorkspaceID string
	SKUName     string
	Cloud       string
	DBUCount    float64
	DBURate     float64
	CostUSD     float64
	ClusterID   string
	ClusterName string
	JobID       string
	UserEmail   string
	Tags        map[string]string
}

// DailyCost is one point of an aggregated daily cost series.
type DailyCost struct {
	Date time.Time
	Cost float64
}

type Period struct {
	Start time.Time
	End   time.Time
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}
