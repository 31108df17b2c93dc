package api

import "time"

type Allocation struct {
	TeamID      string             `json:"team_id"`
	TeamName    string             `json:"team_name"`
	PeriodStart time.Time          `json:"period_start"`
	PeriodEnd   time.Time          `json:"period_end"`
	TotalCost   float64            `json:"total_cost"`
	DBUCost     float64            `json:"dbu_cost"`
	RecordCount int                `json:"record_count"`
	BySKU       map[string]float64 `json:"by_sku,omitempty"`
	ByWorkspace map[string]float64 `json:"by_workspace,omitempty"`
}

type SkippedRule struct {
	RuleID string `json:"rule_id"`
	Reason string `json:"reason"`
}

type AllocationRunResponse struct {
	Allocations  []Allocation  `json:"allocations"`
	SkippedRules []SkippedRule `json:"skipped_rules,omitempty"`
}

type Anomaly struct {
	Dimension string    `json:"dimension"`
	Scope     string    `json:"scope,omitempty"`
	Date      time.Time `json:"date"`
	Value     float64   `json:"value"`
	Expected  float64   `json:"expected"`
	ZScore    float64   `json:"z_score"`
	PctChange float64   `json:"pct_change"`
	Severity  string    `json:"severity"`
}

type ForecastPoint struct {
	Date          time.Time `json:"date"`
	PredictedCost float64   `json:"predicted_cost"`
	LowerBound    float64   `json:"lower_bound"`
	UpperBound    float64   `json:"upper_bound"`
	Model         string    `json:"model"`
}

type Recommendation struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	Severity         string    `json:"severity"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	WorkspaceID      string    `json:"workspace_id"`
	ResourceID       string    `json:"resource_id"`
	CurrentCost      float64   `json:"current_cost"`
	EstimatedSavings float64   `json:"estimated_savings"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

type RecommendationStatusUpdate struct {
	Status string `json:"status"`
}

type AlertFiring struct {
	ID           string          `json:"id"`
	AlertID      string          `json:"alert_id"`
	AlertName    string          `json:"alert_name"`
	Kind         string          `json:"kind"`
	TriggeredAt  time.Time       `json:"triggered_at"`
	CurrentValue float64         `json:"current_value"`
	Threshold    float64         `json:"threshold"`
	Message      string          `json:"message"`
	Delivered    map[string]bool `json:"delivered,omitempty"`
}

type TagViolation struct {
	ResourceType string   `json:"resource_type"`
	ResourceID   string   `json:"resource_id"`
	ResourceName string   `json:"resource_name"`
	WorkspaceID  string   `json:"workspace_id"`
	MissingTags  []string `json:"missing_tags"`
	ExistingTags []string `json:"existing_tags"`
}

type ResourceCompliance struct {
	Total         int            `json:"total"`
	Compliant     int            `json:"compliant"`
	NonCompliant  int            `json:"non_compliant"`
	CompliancePct float64        `json:"compliance_pct"`
	Violations    []TagViolation `json:"violations"`
}

type ComplianceReport struct {
	OverallCompliancePct  float64            `json:"overall_compliance_pct"`
	TotalResources        int                `json:"total_resources"`
	CompliantResources    int                `json:"compliant_resources"`
	NonCompliantResources int                `json:"non_compliant_resources"`
	RequiredTags          []string           `json:"required_tags"`
	Clusters              ResourceCompliance `json:"clusters"`
	CostRecords           ResourceCompliance `json:"cost_records"`
	TagCoverage           map[string]float64 `json:"tag_coverage"`
	Advice                []string           `json:"advice"`
	GeneratedAt           time.Time          `json:"generated_at"`
}

type Error struct {
	Message string `json:"message"`
}
