package store

import "time"

// Store-level rows mirror the DuckDB schema. JSON columns (tags, rule
// conditions, allocation breakdowns, delivery maps) travel as raw bytes and
// are decoded by the adapters, not by the stores.

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
	Tags        []byte
}

type Team struct {
	ID           string
	Name         string
	Department   string
	CostCenter   string
	ManagerEmail string
	TagPatterns  []byte
}

type TeamMember struct {
	TeamID string
	Email  string
}

type AllocationRule struct {
	ID         string
	Name       string
	TeamID     string
	Kind       string
	Conditions []byte
	Priority   int
	Active     bool
}

type CostAllocation struct {
	TeamID      string
	TeamName    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	TotalCost   float64
	DBUCost     float64
	RecordCount int
	Breakdown   []byte
	GeneratedAt time.Time
}

type ClusterSnapshot struct {
	ClusterID              string
	ClusterName            string
	WorkspaceID            string
	CreatorEmail           string
	State                  string
	NodeType               string
	NumWorkers             int
	PhotonEnabled          bool
	AutoTerminationMinutes int
	AvgCPUUtilization      float64
	AvgMemoryUtilization   float64
	TotalCostUSD           float64
	IdleHours              float64
	LastActiveAt           *time.Time
	Tags                   []byte
	CollectedAt            time.Time
}

// ResourceTags is a distinct billed cluster together with the tags seen on
// its most recent cost record.
type ResourceTags struct {
	ClusterID   string
	ClusterName string
	WorkspaceID string
	Tags        []byte
}

type Recommendation struct {
	ID               string
	Type             string
	Severity         string
	Title            string
	Description      string
	WorkspaceID      string
	ResourceID       string
	CurrentCost      float64
	EstimatedSavings float64
	Status           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type ForecastPoint struct {
	Scope         string
	Date          time.Time
	PredictedCost float64
	LowerBound    float64
	UpperBound    float64
	Model         string
	GeneratedAt   time.Time
}

type Alert struct {
	ID              string
	Name            string
	Kind            string
	WorkspaceID     string
	Threshold       float64
	Channels        []byte
	CooldownMinutes int
	Active          bool
}

type AlertFiring struct {
	ID           string
	AlertID      string
	TriggeredAt  time.Time
	CurrentValue float64
	Threshold    float64
	Message      string
	Delivered    []byte
}

// CollectorState is the collection high-water mark per source.
type CollectorState struct {
	Source          string
	LastCollectedAt *time.Time
}

// DailyCost is a date-bucketed aggregate produced by the usage store.
type DailyCost struct {
	Date  time.Time
	Scope string
	Cost  float64
}
