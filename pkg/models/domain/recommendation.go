package domain

import "time"

type RecommendationType string

const (
	RecommendationIdle            RecommendationType = "idle_cluster"
	RecommendationRightSizing     RecommendationType = "right_sizing"
	RecommendationAutoTermination RecommendationType = "auto_termination"
)

type RecommendationStatus string

const (
	RecommendationOpen        RecommendationStatus = "open"
	RecommendationAccepted    RecommendationStatus = "accepted"
	RecommendationDismissed   RecommendationStatus = "dismissed"
	RecommendationImplemented RecommendationStatus = "implemented"
)

// Recommendation is a savings candidate emitted by the scanner. Only the
// status moves after creation; a re-scan never opens a second one for the
// same (resource, type) while one is still open.
type Recommendation struct {
	ID               string
	Type             RecommendationType
	Severity         Severity
	Title            string
	Description      string
	WorkspaceID      string
	ResourceID       string
	CurrentCost      float64
	EstimatedSavings float64
	Status           RecommendationStatus
	CreatedAt        time.Time
}
