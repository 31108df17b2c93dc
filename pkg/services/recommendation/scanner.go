package recommendation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/de-tools/costpulse/pkg/adapters"
	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/services/pricing"
	clusterstore "github.com/de-tools/costpulse/pkg/store/duckdb/cluster"
	recstore "github.com/de-tools/costpulse/pkg/store/duckdb/recommendation"
)

const (
	// idleThreshold is how long a running cluster may sit without activity
	// before it counts as idle.
	idleThreshold = 30 * time.Minute
	// utilizationFloor marks a running cluster as over-provisioned when CPU
	// or memory sits below it.
	utilizationFloor = 30.0
	// rightSizingSavingsRate is the heuristic share of accrued cost
	// recoverable by downsizing.
	rightSizingSavingsRate = 0.30
	// typicalIdleHours estimates daily waste for clusters without
	// auto-termination.
	typicalIdleHours = 8.0

	defaultCloud = "AWS"
)

// Scanner inspects cluster snapshots and emits savings recommendations.
// A resource can trigger several types in one scan, but re-scanning never
// duplicates an open recommendation for the same (resource, type) pair.
type Scanner interface {
	ScanRecommendations(ctx context.Context) ([]domain.Recommendation, error)
	ListRecommendations(ctx context.Context, status, recType string, limit int) ([]domain.Recommendation, error)
	UpdateStatus(ctx context.Context, id string, status domain.RecommendationStatus) error
}

type scanner struct {
	clusters        clusterstore.Store
	recommendations recstore.Store
	calculator      *pricing.Calculator
	now             func() time.Time
}

func NewScanner(clusters clusterstore.Store, recommendations recstore.Store, calculator *pricing.Calculator) Scanner {
	return &scanner{
		clusters:        clusters,
		recommendations: recommendations,
		calculator:      calculator,
		now:             time.Now,
	}
}

func (s *scanner) ScanRecommendations(ctx context.Context) ([]domain.Recommendation, error) {
	logger := zerolog.Ctx(ctx)

	rows, err := s.clusters.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cluster snapshots: %w", err)
	}

	created := make([]domain.Recommendation, 0)
	for _, row := range rows {
		snapshot := adapters.MapStoreClusterSnapshotToDomain(row)

		candidates := make([]domain.Recommendation, 0, 3)
		if rec, ok := s.checkIdle(snapshot); ok {
			candidates = append(candidates, rec)
		}
		if rec, ok := s.checkRightSizing(snapshot); ok {
			candidates = append(candidates, rec)
		}
		if rec, ok := s.checkAutoTermination(snapshot); ok {
			candidates = append(candidates, rec)
		}

		for _, rec := range candidates {
			exists, err := s.recommendations.HasOpen(ctx, rec.ResourceID, string(rec.Type))
			if err != nil {
				return nil, fmt.Errorf("check open recommendation for %s: %w", rec.ResourceID, err)
			}
			if exists {
				continue
			}
			if err := s.recommendations.Create(ctx, adapters.MapDomainRecommendationToStore(rec)); err != nil {
				return nil, fmt.Errorf("create recommendation for %s: %w", rec.ResourceID, err)
			}
			created = append(created, rec)
		}
	}

	logger.Info().
		Int("clusters_scanned", len(rows)).
		Int("recommendations_created", len(created)).
		Msg("recommendation scan complete")
	return created, nil
}

// checkIdle flags a running cluster with no recorded activity for longer
// than the idle threshold. Savings are what the idle time already cost.
func (s *scanner) checkIdle(c domain.ClusterSnapshot) (domain.Recommendation, bool) {
	if !c.Running() || c.LastActiveAt == nil {
		return domain.Recommendation{}, false
	}
	if s.now().Sub(*c.LastActiveAt) <= idleThreshold {
		return domain.Recommendation{}, false
	}

	hourlyCost := s.calculator.ClusterHourlyCost(c, defaultCloud)
	wasted := hourlyCost * c.IdleHours

	severity := domain.SeverityMedium
	if c.IdleHours > 2 {
		severity = domain.SeverityHigh
	}

	return domain.Recommendation{
		ID:       uuid.NewString(),
		Type:     domain.RecommendationIdle,
		Severity: severity,
		Title:    fmt.Sprintf("Idle cluster: %s", c.ClusterName),
		Description: fmt.Sprintf(
			"Cluster %q has been idle for %.1f hours, wasting an estimated $%.2f. Consider terminating it or lowering its timeout.",
			c.ClusterName, c.IdleHours, wasted),
		WorkspaceID:      c.WorkspaceID,
		ResourceID:       c.ClusterID,
		CurrentCost:      wasted,
		EstimatedSavings: wasted,
		Status:           domain.RecommendationOpen,
		CreatedAt:        s.now(),
	}, true
}

// checkRightSizing flags a running cluster whose CPU or memory utilization
// sits below the floor. Savings use a flat heuristic share of accrued cost.
func (s *scanner) checkRightSizing(c domain.ClusterSnapshot) (domain.Recommendation, bool) {
	if !c.Running() {
		return domain.Recommendation{}, false
	}
	// No utilization telemetry recorded yet.
	if c.AvgCPUUtilization == 0 && c.AvgMemoryUtilization == 0 {
		return domain.Recommendation{}, false
	}
	if c.AvgCPUUtilization >= utilizationFloor && c.AvgMemoryUtilization >= utilizationFloor {
		return domain.Recommendation{}, false
	}

	savings := c.TotalCostUSD * rightSizingSavingsRate

	return domain.Recommendation{
		ID:       uuid.NewString(),
		Type:     domain.RecommendationRightSizing,
		Severity: domain.SeverityMedium,
		Title:    fmt.Sprintf("Right-size cluster: %s", c.ClusterName),
		Description: fmt.Sprintf(
			"Cluster %q is under-utilized (CPU %.0f%%, memory %.0f%%). Reducing its size could save ~$%.2f.",
			c.ClusterName, c.AvgCPUUtilization, c.AvgMemoryUtilization, savings),
		WorkspaceID:      c.WorkspaceID,
		ResourceID:       c.ClusterID,
		CurrentCost:      c.TotalCostUSD,
		EstimatedSavings: savings,
		Status:           domain.RecommendationOpen,
		CreatedAt:        s.now(),
	}, true
}

// checkAutoTermination flags a running cluster with no auto-termination
// configured. Savings assume the cluster would otherwise idle for a typical
// working day.
func (s *scanner) checkAutoTermination(c domain.ClusterSnapshot) (domain.Recommendation, bool) {
	if !c.Running() || c.AutoTerminationMinutes > 0 {
		return domain.Recommendation{}, false
	}

	hourlyCost := s.calculator.ClusterHourlyCost(c, defaultCloud)
	savings := hourlyCost * typicalIdleHours

	return domain.Recommendation{
		ID:       uuid.NewString(),
		Type:     domain.RecommendationAutoTermination,
		Severity: domain.SeverityHigh,
		Title:    fmt.Sprintf("No auto-termination: %s", c.ClusterName),
		Description: fmt.Sprintf(
			"Cluster %q has no auto-termination configured, which can lead to runaway costs when left idle. Setting a 30-minute timeout could save ~$%.2f.",
			c.ClusterName, savings),
		WorkspaceID:      c.WorkspaceID,
		ResourceID:       c.ClusterID,
		CurrentCost:      c.TotalCostUSD,
		EstimatedSavings: savings,
		Status:           domain.RecommendationOpen,
		CreatedAt:        s.now(),
	}, true
}

func (s *scanner) ListRecommendations(ctx context.Context, status, recType string, limit int) ([]domain.Recommendation, error) {
	rows, err := s.recommendations.List(ctx, status, recType, limit)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	recs := make([]domain.Recommendation, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, adapters.MapStoreRecommendationToDomain(r))
	}
	return recs, nil
}

func (s *scanner) UpdateStatus(ctx context.Context, id string, status domain.RecommendationStatus) error {
	switch status {
	case domain.RecommendationOpen, domain.RecommendationAccepted,
		domain.RecommendationDismissed, domain.RecommendationImplemented:
	default:
		return fmt.Errorf("unknown recommendation status %q", status)
	}
	if err := s.recommendations.UpdateStatus(ctx, id, string(status), s.now()); err != nil {
		return fmt.Errorf("update recommendation %s: %w", id, err)
	}
	return nil
}
