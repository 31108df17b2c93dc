package tagcompliance

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/models/store"
	clusterstore "github.com/de-tools/costpulse/pkg/store/duckdb/cluster"
	"github.com/de-tools/costpulse/pkg/store/duckdb/usage"
)

// DefaultRequiredTags are the governance tags expected on every resource.
var DefaultRequiredTags = []string{"team", "environment", "project", "cost_center"}

// maxViolations caps the violation list per resource class; the counts
// stay exact.
const maxViolations = 50

// Checker reports tag compliance across cluster snapshots and billed
// cost records.
type Checker interface {
	CheckCompliance(ctx context.Context, requiredTags []string, workspaceID string) (domain.ComplianceReport, error)
}

type checker struct {
	clusters clusterstore.Store
	usage    usage.Store
	now      func() time.Time
}

func NewChecker(clusters clusterstore.Store, usageStore usage.Store) Checker {
	return &checker{
		clusters: clusters,
		usage:    usageStore,
		now:      time.Now,
	}
}

func (c *checker) CheckCompliance(ctx context.Context, requiredTags []string, workspaceID string) (domain.ComplianceReport, error) {
	logger := zerolog.Ctx(ctx)

	required := requiredTags
	if len(required) == 0 {
		required = DefaultRequiredTags
	}

	snapshots, err := c.clusters.ListSnapshots(ctx)
	if err != nil {
		return domain.ComplianceReport{}, fmt.Errorf("load cluster snapshots: %w", err)
	}
	clusters := checkClusters(snapshots, required, workspaceID)

	billed, err := c.usage.DistinctClusterTags(ctx, workspaceID)
	if err != nil {
		return domain.ComplianceReport{}, fmt.Errorf("load billed cluster tags: %w", err)
	}
	records := checkBilledClusters(billed, required)

	payloads, err := c.usage.ListRecordTags(ctx, workspaceID)
	if err != nil {
		return domain.ComplianceReport{}, fmt.Errorf("load record tags: %w", err)
	}

	total := clusters.Total + records.Total
	compliant := clusters.Compliant + records.Compliant

	report := domain.ComplianceReport{
		OverallCompliancePct:  pct(compliant, total),
		TotalResources:        total,
		CompliantResources:    compliant,
		NonCompliantResources: total - compliant,
		RequiredTags:          required,
		Clusters:              clusters,
		CostRecords:           records,
		TagCoverage:           tagCoverage(payloads, required),
		GeneratedAt:           c.now(),
	}
	report.Advice = adviceFor(clusters, records, required)

	logger.Info().
		Float64("compliance_pct", report.OverallCompliancePct).
		Int("resources", total).
		Msg("tag compliance check complete")
	return report, nil
}

func checkClusters(snapshots []store.ClusterSnapshot, required []string, workspaceID string) domain.ResourceCompliance {
	result := domain.ResourceCompliance{Violations: make([]domain.TagViolation, 0)}

	for _, snapshot := range snapshots {
		if workspaceID != "" && snapshot.WorkspaceID != workspaceID {
			continue
		}
		result.Total++

		tags := decodeTags(snapshot.Tags)
		missing := missingTags(tags, required)
		if len(missing) == 0 {
			result.Compliant++
			continue
		}
		if len(result.Violations) < maxViolations {
			result.Violations = append(result.Violations, domain.TagViolation{
				ResourceType: "cluster",
				ResourceID:   snapshot.ClusterID,
				ResourceName: snapshot.ClusterName,
				WorkspaceID:  snapshot.WorkspaceID,
				MissingTags:  missing,
				ExistingTags: tagKeys(tags),
			})
		}
	}

	result.NonCompliant = result.Total - result.Compliant
	result.CompliancePct = pct(result.Compliant, result.Total)
	return result
}

func checkBilledClusters(billed []store.ResourceTags, required []string) domain.ResourceCompliance {
	result := domain.ResourceCompliance{Violations: make([]domain.TagViolation, 0)}

	for _, resource := range billed {
		result.Total++

		tags := decodeTags(resource.Tags)
		missing := missingTags(tags, required)
		if len(missing) == 0 {
			result.Compliant++
			continue
		}
		if len(result.Violations) < maxViolations {
			name := resource.ClusterName
			if name == "" {
				name = "unknown"
			}
			result.Violations = append(result.Violations, domain.TagViolation{
				ResourceType: "cost_record",
				ResourceID:   resource.ClusterID,
				ResourceName: name,
				WorkspaceID:  resource.WorkspaceID,
				MissingTags:  missing,
				ExistingTags: tagKeys(tags),
			})
		}
	}

	result.NonCompliant = result.Total - result.Compliant
	result.CompliancePct = pct(result.Compliant, result.Total)
	return result
}

func tagCoverage(payloads [][]byte, required []string) map[string]float64 {
	coverage := make(map[string]float64, len(required))
	if len(payloads) == 0 {
		for _, tag := range required {
			coverage[tag] = 0
		}
		return coverage
	}

	counts := make(map[string]int, len(required))
	for _, payload := range payloads {
		tags := decodeTags(payload)
		for _, tag := range required {
			if _, ok := tags[tag]; ok {
				counts[tag]++
			}
		}
	}
	for _, tag := range required {
		coverage[tag] = pct(counts[tag], len(payloads))
	}
	return coverage
}

func adviceFor(clusters, records domain.ResourceCompliance, required []string) []string {
	advice := make([]string, 0, 2)

	if clusters.Total > 0 {
		switch {
		case clusters.CompliancePct < 50:
			advice = append(advice, fmt.Sprintf(
				"Only %.1f%% of clusters carry the required tags; enforce cluster policies requiring %s",
				clusters.CompliancePct, strings.Join(required, ", ")))
		case clusters.CompliancePct < 80:
			advice = append(advice, fmt.Sprintf(
				"%.1f%% of clusters are tagged; consider enabling tag enforcement in workspace settings",
				clusters.CompliancePct))
		}
	}

	missingCounts := make(map[string]int)
	for _, v := range append(clusters.Violations, records.Violations...) {
		for _, tag := range v.MissingTags {
			missingCounts[tag]++
		}
	}
	if worst, count := worstTag(missingCounts); worst != "" {
		advice = append(advice, fmt.Sprintf(
			"Most commonly missing tag: %q (absent from %d resources)", worst, count))
	}

	if len(advice) == 0 {
		advice = append(advice, "All scanned resources carry the required tags")
	}
	return advice
}

func worstTag(counts map[string]int) (string, int) {
	worst, max := "", 0
	for tag, count := range counts {
		if count > max || (count == max && tag < worst) {
			worst, max = tag, count
		}
	}
	return worst, max
}

func decodeTags(payload []byte) map[string]string {
	if len(payload) == 0 {
		return nil
	}
	var tags map[string]string
	if err := json.Unmarshal(payload, &tags); err != nil {
		return nil
	}
	return tags
}

func missingTags(tags map[string]string, required []string) []string {
	missing := make([]string, 0)
	for _, tag := range required {
		if _, ok := tags[tag]; !ok {
			missing = append(missing, tag)
		}
	}
	return missing
}

func tagKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}
