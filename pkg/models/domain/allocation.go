package domain

import (
	"encoding/json"
	"time"
)

type RuleKind string

const (
	RuleKindTag       RuleKind = "tag_match"
	RuleKindUser      RuleKind = "user_match"
	RuleKindWorkspace RuleKind = "workspace_match"
	RuleKindCluster   RuleKind = "cluster_match"
	RuleKindSKU       RuleKind = "sku_match"
)

// AllocationRule is an ordered matcher owned by configuration. Conditions
// holds the kind-specific payload; a payload that fails to decode makes the
// rule non-matching for the whole run, it never aborts allocation.
type AllocationRule struct {
	ID         string
	Name       string
	TeamID     string
	Kind       RuleKind
	Conditions json.RawMessage
	Priority   int
	Active     bool
}

// TagConditions is the payload for tag_match rules.
type TagConditions struct {
	TagKey   string `json:"tag_key"`
	TagValue string `json:"tag_value"`
}

// UserConditions is the payload for user_match rules.
type UserConditions struct {
	Emails []string `json:"emails"`
}

// WorkspaceConditions is the payload for workspace_match rules.
type WorkspaceConditions struct {
	WorkspaceIDs []string `json:"workspace_ids"`
}

// ClusterConditions is the payload for cluster_match rules. Patterns are
// regular expressions matched against the record's cluster name.
type ClusterConditions struct {
	ClusterNamePatterns []string `json:"cluster_name_patterns"`
}

// SKUConditions is the payload for sku_match rules.
type SKUConditions struct {
	SKUNames []string `json:"sku_names"`
}

// Team is an attribution target. TagPatterns maps a tag key to a regular
// expression used by the last allocation fallback; MemberEmails backs the
// user-email fallback.
type Team struct {
	ID           string
	Name         string
	Department   string
	CostCenter   string
	ManagerEmail string
	MemberEmails []string
	TagPatterns  map[string]string
}

// UnallocatedTeamID is the reserved attribution bucket for records no rule
// or fallback could place. It always appears in an allocation run's output
// so that team totals plus the unallocated total equal the period total.
const UnallocatedTeamID = "unallocated"

// CostAllocation is the allocation engine's output for one (team, period).
// Re-running a period replaces the prior allocation for the same key.
type CostAllocation struct {
	TeamID      string
	TeamName    string
	Period      Period
	TotalCost   float64
	DBUCost     float64
	RecordCount int
	BySKU       map[string]float64
	ByWorkspace map[string]float64
	GeneratedAt time.Time
}

// RuleError reports a rule skipped during a run because its condition
// payload was malformed. Collected, not fatal.
type RuleError struct {
	RuleID string
	Reason string
}

// AllocationResult is the full output of one allocation run.
type AllocationResult struct {
	Period       Period
	Allocations  []CostAllocation
	SkippedRules []RuleError
}
