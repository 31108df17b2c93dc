package adapters

import (
	"encoding/json"
	"time"

	"github.com/de-tools/costpulse/pkg/models/api"
	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/models/store"
)

func MapDomainAnomalyToApi(a domain.Anomaly) api.Anomaly {
	return api.Anomaly{
		Dimension: string(a.Dimension),
		Scope:     a.Scope,
		Date:      a.Date,
		Value:     a.Value,
		Expected:  a.Expected,
		ZScore:    a.ZScore,
		PctChange: a.PctChange,
		Severity:  string(a.Severity),
	}
}

func MapDomainForecastPointToStore(scope string, p domain.ForecastPoint, generatedAt time.Time) store.ForecastPoint {
	return store.ForecastPoint{
		Scope:         scope,
		Date:          p.Date,
		PredictedCost: p.PredictedCost,
		LowerBound:    p.LowerBound,
		UpperBound:    p.UpperBound,
		Model:         string(p.Model),
		GeneratedAt:   generatedAt,
	}
}

func MapStoreForecastPointToDomain(p store.ForecastPoint) domain.ForecastPoint {
	return domain.ForecastPoint{
		Date:          p.Date,
		PredictedCost: p.PredictedCost,
		LowerBound:    p.LowerBound,
		UpperBound:    p.UpperBound,
		Model:         domain.ForecastModel(p.Model),
	}
}

func MapDomainForecastPointToApi(p domain.ForecastPoint) api.ForecastPoint {
	return api.ForecastPoint{
		Date:          p.Date,
		PredictedCost: p.PredictedCost,
		LowerBound:    p.LowerBound,
		UpperBound:    p.UpperBound,
		Model:         string(p.Model),
	}
}

func MapStoreClusterSnapshotToDomain(c store.ClusterSnapshot) domain.ClusterSnapshot {
	var tags map[string]string
	if len(c.Tags) > 0 {
		_ = json.Unmarshal(c.Tags, &tags)
	}
	return domain.ClusterSnapshot{
		ClusterID:              c.ClusterID,
		ClusterName:            c.ClusterName,
		WorkspaceID:            c.WorkspaceID,
		CreatorEmail:           c.CreatorEmail,
		State:                  c.State,
		NodeType:               c.NodeType,
		NumWorkers:             c.NumWorkers,
		PhotonEnabled:          c.PhotonEnabled,
		AutoTerminationMinutes: c.AutoTerminationMinutes,
		AvgCPUUtilization:      c.AvgCPUUtilization,
		AvgMemoryUtilization:   c.AvgMemoryUtilization,
		TotalCostUSD:           c.TotalCostUSD,
		IdleHours:              c.IdleHours,
		LastActiveAt:           c.LastActiveAt,
		Tags:                   tags,
		CollectedAt:            c.CollectedAt,
	}
}

func MapDomainClusterSnapshotToStore(c domain.ClusterSnapshot) store.ClusterSnapshot {
	var tags []byte
	if len(c.Tags) > 0 {
		tags, _ = json.Marshal(c.Tags)
	}
	return store.ClusterSnapshot{
		ClusterID:              c.ClusterID,
		ClusterName:            c.ClusterName,
		WorkspaceID:            c.WorkspaceID,
		CreatorEmail:           c.CreatorEmail,
		State:                  c.State,
		NodeType:               c.NodeType,
		NumWorkers:             c.NumWorkers,
		PhotonEnabled:          c.PhotonEnabled,
		AutoTerminationMinutes: c.AutoTerminationMinutes,
		AvgCPUUtilization:      c.AvgCPUUtilization,
		AvgMemoryUtilization:   c.AvgMemoryUtilization,
		TotalCostUSD:           c.TotalCostUSD,
		IdleHours:              c.IdleHours,
		LastActiveAt:           c.LastActiveAt,
		Tags:                   tags,
		CollectedAt:            c.CollectedAt,
	}
}

func MapDomainRecommendationToStore(r domain.Recommendation) store.Recommendation {
	return store.Recommendation{
		ID:               r.ID,
		Type:             string(r.Type),
		Severity:         string(r.Severity),
		Title:            r.Title,
		Description:      r.Description,
		WorkspaceID:      r.WorkspaceID,
		ResourceID:       r.ResourceID,
		CurrentCost:      r.CurrentCost,
		EstimatedSavings: r.EstimatedSavings,
		Status:           string(r.Status),
		CreatedAt:        r.CreatedAt,
	}
}

func MapStoreRecommendationToDomain(r store.Recommendation) domain.Recommendation {
	return domain.Recommendation{
		ID:               r.ID,
		Type:             domain.RecommendationType(r.Type),
		Severity:         domain.Severity(r.Severity),
		Title:            r.Title,
		Description:      r.Description,
		WorkspaceID:      r.WorkspaceID,
		ResourceID:       r.ResourceID,
		CurrentCost:      r.CurrentCost,
		EstimatedSavings: r.EstimatedSavings,
		Status:           domain.RecommendationStatus(r.Status),
		CreatedAt:        r.CreatedAt,
	}
}

func MapDomainRecommendationToApi(r domain.Recommendation) api.Recommendation {
	return api.Recommendation{
		ID:               r.ID,
		Type:             string(r.Type),
		Severity:         string(r.Severity),
		Title:            r.Title,
		Description:      r.Description,
		WorkspaceID:      r.WorkspaceID,
		ResourceID:       r.ResourceID,
		CurrentCost:      r.CurrentCost,
		EstimatedSavings: r.EstimatedSavings,
		Status:           string(r.Status),
		CreatedAt:        r.CreatedAt,
	}
}

func MapDomainComplianceReportToApi(r domain.ComplianceReport) api.ComplianceReport {
	return api.ComplianceReport{
		OverallCompliancePct:  r.OverallCompliancePct,
		TotalResources:        r.TotalResources,
		CompliantResources:    r.CompliantResources,
		NonCompliantResources: r.NonCompliantResources,
		RequiredTags:          r.RequiredTags,
		Clusters:              mapResourceComplianceToApi(r.Clusters),
		CostRecords:           mapResourceComplianceToApi(r.CostRecords),
		TagCoverage:           r.TagCoverage,
		Advice:                r.Advice,
		GeneratedAt:           r.GeneratedAt,
	}
}

func mapResourceComplianceToApi(c domain.ResourceCompliance) api.ResourceCompliance {
	violations := make([]api.TagViolation, 0, len(c.Violations))
	for _, v := range c.Violations {
		violations = append(violations, api.TagViolation{
			ResourceType: v.ResourceType,
			ResourceID:   v.ResourceID,
			ResourceName: v.ResourceName,
			WorkspaceID:  v.WorkspaceID,
			MissingTags:  v.MissingTags,
			ExistingTags: v.ExistingTags,
		})
	}
	return api.ResourceCompliance{
		Total:         c.Total,
		Compliant:     c.Compliant,
		NonCompliant:  c.NonCompliant,
		CompliancePct: c.CompliancePct,
		Violations:    violations,
	}
}

func MapStoreAlertToDomain(a store.Alert) domain.Alert {
	var channels []string
	if len(a.Channels) > 0 {
		_ = json.Unmarshal(a.Channels, &channels)
	}
	domainChannels := make([]domain.NotificationChannel, 0, len(channels))
	for _, c := range channels {
		domainChannels = append(domainChannels, domain.NotificationChannel(c))
	}
	return domain.Alert{
		ID:          a.ID,
		Name:        a.Name,
		Kind:        domain.AlertKind(a.Kind),
		WorkspaceID: a.WorkspaceID,
		Threshold:   a.Threshold,
		Channels:    domainChannels,
		Cooldown:    time.Duration(a.CooldownMinutes) * time.Minute,
		Active:      a.Active,
	}
}

func MapDomainFiringToStore(f domain.AlertFiring) store.AlertFiring {
	delivered, _ := json.Marshal(f.Delivered)
	return store.AlertFiring{
		ID:           f.ID,
		AlertID:      f.AlertID,
		TriggeredAt:  f.TriggeredAt,
		CurrentValue: f.CurrentValue,
		Threshold:    f.Threshold,
		Message:      f.Message,
		Delivered:    delivered,
	}
}

func MapStoreFiringToDomain(f store.AlertFiring) domain.AlertFiring {
	var delivered map[domain.NotificationChannel]bool
	if len(f.Delivered) > 0 {
		_ = json.Unmarshal(f.Delivered, &delivered)
	}
	return domain.AlertFiring{
		ID:           f.ID,
		AlertID:      f.AlertID,
		TriggeredAt:  f.TriggeredAt,
		CurrentValue: f.CurrentValue,
		Threshold:    f.Threshold,
		Message:      f.Message,
		Delivered:    delivered,
	}
}

func MapDomainFiringToApi(f domain.AlertFiring) api.AlertFiring {
	delivered := make(map[string]bool, len(f.Delivered))
	for ch, ok := range f.Delivered {
		delivered[string(ch)] = ok
	}
	return api.AlertFiring{
		ID:           f.ID,
		AlertID:      f.AlertID,
		AlertName:    f.AlertName,
		Kind:         string(f.Kind),
		TriggeredAt:  f.TriggeredAt,
		CurrentValue: f.CurrentValue,
		Threshold:    f.Threshold,
		Message:      f.Message,
		Delivered:    delivered,
	}
}
