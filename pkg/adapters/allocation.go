package adapters

import (
	"encoding/json"

	"github.com/de-tools/costpulse/pkg/models/api"
	"github.com/de-tools/costpulse/pkg/models/domain"
	"github.com/de-tools/costpulse/pkg/models/store"
)

func MapStoreRuleToDomain(r store.AllocationRule) domain.AllocationRule {
	return domain.AllocationRule{
		ID:         r.ID,
		Name:       r.Name,
		TeamID:     r.TeamID,
		Kind:       domain.RuleKind(r.Kind),
		Conditions: json.RawMessage(r.Conditions),
		Priority:   r.Priority,
		Active:     r.Active,
	}
}

func MapStoreTeamToDomain(t store.Team, members []store.TeamMember) domain.Team {
	patterns := map[string]string{}
	if len(t.TagPatterns) > 0 {
		_ = json.Unmarshal(t.TagPatterns, &patterns)
	}
	emails := make([]string, 0, len(members))
	for _, m := range members {
		if m.TeamID == t.ID {
			emails = append(emails, m.Email)
		}
	}
	return domain.Team{
		ID:           t.ID,
		Name:         t.Name,
		Department:   t.Department,
		CostCenter:   t.CostCenter,
		ManagerEmail: t.ManagerEmail,
		MemberEmails: emails,
		TagPatterns:  patterns,
	}
}

type allocationBreakdown struct {
	BySKU       map[string]float64 `json:"by_sku"`
	ByWorkspace map[string]float64 `json:"by_workspace"`
}

func MapDomainAllocationToStore(a domain.CostAllocation) store.CostAllocation {
	breakdown, _ := json.Marshal(allocationBreakdown{
		BySKU:       a.BySKU,
		ByWorkspace: a.ByWorkspace,
	})
	return store.CostAllocation{
		TeamID:      a.TeamID,
		TeamName:    a.TeamName,
		PeriodStart: a.Period.Start,
		PeriodEnd:   a.Period.End,
		TotalCost:   a.TotalCost,
		DBUCost:     a.DBUCost,
		RecordCount: a.RecordCount,
		Breakdown:   breakdown,
		GeneratedAt: a.GeneratedAt,
	}
}

func MapStoreAllocationToDomain(a store.CostAllocation) domain.CostAllocation {
	var breakdown allocationBreakdown
	if len(a.Breakdown) > 0 {
		_ = json.Unmarshal(a.Breakdown, &breakdown)
	}
	return domain.CostAllocation{
		TeamID:      a.TeamID,
		TeamName:    a.TeamName,
		Period:      domain.Period{Start: a.PeriodStart, End: a.PeriodEnd},
		TotalCost:   a.TotalCost,
		DBUCost:     a.DBUCost,
		RecordCount: a.RecordCount,
		BySKU:       breakdown.BySKU,
		ByWorkspace: breakdown.ByWorkspace,
		GeneratedAt: a.GeneratedAt,
	}
}

func MapDomainAllocationToApi(a domain.CostAllocation) api.Allocation {
	return api.Allocation{
		TeamID:      a.TeamID,
		TeamName:    a.TeamName,
		PeriodStart: a.Period.Start,
		PeriodEnd:   a.Period.End,
		TotalCost:   a.TotalCost,
		DBUCost:     a.DBUCost,
		RecordCount: a.RecordCount,
		BySKU:       a.BySKU,
		ByWorkspace: a.ByWorkspace,
	}
}

func MapDomainAllocationResultToApi(r domain.AllocationResult) api.AllocationRunResponse {
	resp := api.AllocationRunResponse{
		Allocations:  make([]api.Allocation, 0, len(r.Allocations)),
		SkippedRules: make([]api.SkippedRule, 0, len(r.SkippedRules)),
	}
	for _, a := range r.Allocations {
		resp.Allocations = append(resp.Allocations, MapDomainAllocationToApi(a))
	}
	for _, s := range r.SkippedRules {
		resp.SkippedRules = append(resp.SkippedRules, api.SkippedRule{RuleID: s.RuleID, Reason: s.Reason})
	}
	return resp
}
