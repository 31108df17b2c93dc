package allocation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/de-tools/costpulse/pkg/adapters"
	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/models/store"
	allocationstore "github.com/de-tools/costpulse/pkg/store/duckdb/allocation"
	"github.com/de-tools/costpulse/pkg/store/duckdb/rule"
	"github.com/de-tools/costpulse/pkg/store/duckdb/team"
	"github.com/de-tools/costpulse/pkg/store/duckdb/usage"
)

// Engine attributes cost records to teams. One run covers one period and
// fully replaces that period's allocations: team totals plus the
// Unallocated bucket always sum to the period's total cost.
type Engine interface {
	AllocateCosts(ctx context.Context, period domain.Period) (domain.AllocationResult, error)
	GetTeamCosts(ctx context.Context, teamID string, period domain.Period) ([]domain.CostAllocation, error)
}

type engine struct {
	usage       usage.Store
	rules       rule.Store
	teams       team.Store
	allocations allocationstore.Store
	now         func() time.Time
}

func NewEngine(
	usageStore usage.Store,
	ruleStore rule.Store,
	teamStore team.Store,
	allocationStore allocationstore.Store,
) Engine {
	return &engine{
		usage:       usageStore,
		rules:       ruleStore,
		teams:       teamStore,
		allocations: allocationStore,
		now:         time.Now,
	}
}

func (e *engine) AllocateCosts(ctx context.Context, period domain.Period) (domain.AllocationResult, error) {
	logger := zerolog.Ctx(ctx)

	storeRecords, err := e.usage.GetRecords(ctx, period.Start, period.End)
	if err != nil {
		return domain.AllocationResult{}, fmt.Errorf("load cost records: %w", err)
	}

	records := make([]domain.CostRecord, 0, len(storeRecords))
	for _, r := range storeRecords {
		records = append(records, adapters.MapStoreCostRecordToDomain(r))
	}

	storeRules, err := e.rules.ListActive(ctx)
	if err != nil {
		return domain.AllocationResult{}, fmt.Errorf("load allocation rules: %w", err)
	}
	rules := make([]domain.AllocationRule, 0, len(storeRules))
	for _, r := range storeRules {
		rules = append(rules, adapters.MapStoreRuleToDomain(r))
	}

	storeTeams, err := e.teams.ListTeams(ctx)
	if err != nil {
		return domain.AllocationResult{}, fmt.Errorf("load teams: %w", err)
	}
	members, err := e.teams.ListMembers(ctx)
	if err != nil {
		return domain.AllocationResult{}, fmt.Errorf("load team members: %w", err)
	}

	teams := make([]domain.Team, 0, len(storeTeams))
	teamNames := map[string]string{domain.UnallocatedTeamID: "Unallocated"}
	emailToTeam := make(map[string]string)
	for _, t := range storeTeams {
		dt := adapters.MapStoreTeamToDomain(t, members)
		teams = append(teams, dt)
		teamNames[dt.ID] = dt.Name
		for _, email := range dt.MemberEmails {
			emailToTeam[strings.ToLower(email)] = dt.ID
		}
	}

	compiled, skipped := compileRules(rules)
	for _, s := range skipped {
		logger.Warn().Str("rule_id", s.RuleID).Str("reason", s.Reason).
			Msg("allocation rule skipped: malformed conditions")
	}
	tagMatchers := compileTeamTagMatchers(teams)

	buckets := make(map[string]*domain.CostAllocation)
	for _, record := range records {
		teamID := matchRecord(record, compiled, emailToTeam, tagMatchers)
		bucket, ok := buckets[teamID]
		if !ok {
			bucket = &domain.CostAllocation{
				TeamID:      teamID,
				TeamName:    teamNames[teamID],
				Period:      period,
				BySKU:       make(map[string]float64),
				ByWorkspace: make(map[string]float64),
			}
			buckets[teamID] = bucket
		}
		bucket.TotalCost += record.CostUSD
		bucket.DBUCost += record.DBUCount * record.DBURate
		bucket.RecordCount++
		bucket.BySKU[record.SKUName] += record.CostUSD
		bucket.ByWorkspace[record.WorkspaceID] += record.CostUSD
	}

	// The Unallocated bucket exists even when every record matched, so the
	// closure invariant can be checked without special-casing empty runs.
	if _, ok := buckets[domain.UnallocatedTeamID]; !ok {
		buckets[domain.UnallocatedTeamID] = &domain.CostAllocation{
			TeamID:      domain.UnallocatedTeamID,
			TeamName:    teamNames[domain.UnallocatedTeamID],
			Period:      period,
			BySKU:       make(map[string]float64),
			ByWorkspace: make(map[string]float64),
		}
	}

	generatedAt := e.now()
	allocations := make([]domain.CostAllocation, 0, len(buckets))
	for _, b := range buckets {
		b.GeneratedAt = generatedAt
		allocations = append(allocations, *b)
	}
	sort.Slice(allocations, func(i, j int) bool {
		return allocations[i].TotalCost > allocations[j].TotalCost
	})

	if err := e.persist(ctx, period, allocations); err != nil {
		return domain.AllocationResult{}, err
	}

	logger.Info().
		Int("teams_allocated", len(allocations)-1).
		Int("records", len(records)).
		Int("skipped_rules", len(skipped)).
		Msg("cost allocation complete")

	return domain.AllocationResult{
		Period:       period,
		Allocations:  allocations,
		SkippedRules: skipped,
	}, nil
}

func (e *engine) persist(ctx context.Context, period domain.Period, allocations []domain.CostAllocation) error {
	rows := make([]store.CostAllocation, 0, len(allocations))
	for _, a := range allocations {
		rows = append(rows, adapters.MapDomainAllocationToStore(a))
	}
	if err := e.allocations.ReplacePeriod(ctx, period.Start, period.End, rows); err != nil {
		return fmt.Errorf("persist allocations: %w", err)
	}
	return nil
}

func (e *engine) GetTeamCosts(ctx context.Context, teamID string, period domain.Period) ([]domain.CostAllocation, error) {
	rows, err := e.allocations.ListForTeam(ctx, teamID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("load team allocations: %w", err)
	}
	allocations := make([]domain.CostAllocation, 0, len(rows))
	for _, r := range rows {
		allocations = append(allocations, adapters.MapStoreAllocationToDomain(r))
	}
	return allocations, nil
}

// matchRecord walks the rule cascade, then the fixed fallback chain:
// user-email to team membership first, team tag patterns second. Records
// that survive all three land in the Unallocated bucket.
func matchRecord(
	record domain.CostRecord,
	rules []compiledRule,
	emailToTeam map[string]string,
	tagMatchers []teamTagMatcher,
) string {
	for _, r := range rules {
		if r.matches(record) {
			return r.teamID
		}
	}

	if record.UserEmail != "" {
		if teamID, ok := emailToTeam[strings.ToLower(record.UserEmail)]; ok {
			return teamID
		}
	}

	if len(record.Tags) > 0 {
		for _, m := range tagMatchers {
			if m.matches(record.Tags) {
				return m.teamID
			}
		}
	}

	return domain.UnallocatedTeamID
}
