package domain

import "time"

// TagViolation is one resource missing at least one required tag.
type TagViolation struct {
	ResourceType string
	ResourceID   string
	ResourceName string
	WorkspaceID  string
	MissingTags  []string
	ExistingTags []string
}

// ResourceCompliance summarizes one resource class (clusters or billed
// cost records).
type ResourceCompliance struct {
	Total         int
	Compliant     int
	NonCompliant  int
	CompliancePct float64
	Violations    []TagViolation
}

// ComplianceReport is the output of one tag compliance check. TagCoverage
// maps each required tag key to the percentage of tagged cost records that
// carry it.
type ComplianceReport struct {
	OverallCompliancePct  float64
	TotalResources        int
	CompliantResources    int
	NonCompliantResources int
	RequiredTags          []string
	Clusters              ResourceCompliance
	CostRecords           ResourceCompliance
	TagCoverage           map[string]float64
	Advice                []string
	GeneratedAt           time.Time
}
