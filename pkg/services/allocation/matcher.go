package allocation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/de-tools/costpulse/pkg/models/domain"
)

// compiledRule is a rule whose condition payload decoded cleanly, reduced
// to a single predicate. Rules are compiled once per run, not per record.
type compiledRule struct {
	id      string
	teamID  string
	matches func(domain.CostRecord) bool
}

// compileRules turns the active rule set into predicates, preserving
// priority order. A rule whose payload fails to decode is reported and
// treated as non-matching for the whole run.
func compileRules(rules []domain.AllocationRule) ([]compiledRule, []domain.RuleError) {
	compiled := make([]compiledRule, 0, len(rules))
	skipped := make([]domain.RuleError, 0)

	for _, r := range rules {
		predicate, err := compilePredicate(r)
		if err != nil {
			skipped = append(skipped, domain.RuleError{RuleID: r.ID, Reason: err.Error()})
			continue
		}
		compiled = append(compiled, compiledRule{id: r.ID, teamID: r.TeamID, matches: predicate})
	}
	return compiled, skipped
}

func compilePredicate(r domain.AllocationRule) (func(domain.CostRecord) bool, error) {
	switch r.Kind {
	case domain.RuleKindTag:
		var c domain.TagConditions
		if err := json.Unmarshal(r.Conditions, &c); err != nil {
			return nil, fmt.Errorf("decode tag_match conditions: %w", err)
		}
		if c.TagKey == "" {
			return nil, fmt.Errorf("tag_match conditions missing tag_key")
		}
		return func(rec domain.CostRecord) bool {
			return rec.Tags[c.TagKey] == c.TagValue
		}, nil

	case domain.RuleKindUser:
		var c domain.UserConditions
		if err := json.Unmarshal(r.Conditions, &c); err != nil {
			return nil, fmt.Errorf("decode user_match conditions: %w", err)
		}
		emails := make(map[string]struct{}, len(c.Emails))
		for _, e := range c.Emails {
			emails[strings.ToLower(e)] = struct{}{}
		}
		return func(rec domain.CostRecord) bool {
			if rec.UserEmail == "" {
				return false
			}
			_, ok := emails[strings.ToLower(rec.UserEmail)]
			return ok
		}, nil

	case domain.RuleKindWorkspace:
		var c domain.WorkspaceConditions
		if err := json.Unmarshal(r.Conditions, &c); err != nil {
			return nil, fmt.Errorf("decode workspace_match conditions: %w", err)
		}
		ids := make(map[string]struct{}, len(c.WorkspaceIDs))
		for _, id := range c.WorkspaceIDs {
			ids[id] = struct{}{}
		}
		return func(rec domain.CostRecord) bool {
			_, ok := ids[rec.WorkspaceID]
			return ok
		}, nil

	case domain.RuleKindCluster:
		var c domain.ClusterConditions
		if err := json.Unmarshal(r.Conditions, &c); err != nil {
			return nil, fmt.Errorf("decode cluster_match conditions: %w", err)
		}
		patterns := make([]*regexp.Regexp, 0, len(c.ClusterNamePatterns))
		for _, p := range c.ClusterNamePatterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("compile cluster pattern %q: %w", p, err)
			}
			patterns = append(patterns, re)
		}
		return func(rec domain.CostRecord) bool {
			if rec.ClusterName == "" {
				return false
			}
			for _, re := range patterns {
				if re.MatchString(rec.ClusterName) {
					return true
				}
			}
			return false
		}, nil

	case domain.RuleKindSKU:
		var c domain.SKUConditions
		if err := json.Unmarshal(r.Conditions, &c); err != nil {
			return nil, fmt.Errorf("decode sku_match conditions: %w", err)
		}
		skus := make(map[string]struct{}, len(c.SKUNames))
		for _, s := range c.SKUNames {
			skus[s] = struct{}{}
		}
		return func(rec domain.CostRecord) bool {
			_, ok := skus[rec.SKUName]
			return ok
		}, nil

	default:
		return nil, fmt.Errorf("unknown rule kind %q", r.Kind)
	}
}

// teamTagMatcher compiles per-team tag patterns for the last fallback.
// A pattern that fails to compile is dropped from the matcher; it cannot
// fail a run.
type teamTagMatcher struct {
	teamID   string
	patterns map[string]*regexp.Regexp
}

func compileTeamTagMatchers(teams []domain.Team) []teamTagMatcher {
	matchers := make([]teamTagMatcher, 0, len(teams))
	for _, t := range teams {
		if len(t.TagPatterns) == 0 {
			continue
		}
		patterns := make(map[string]*regexp.Regexp, len(t.TagPatterns))
		for key, p := range t.TagPatterns {
			re, err := regexp.Compile(p)
			if err != nil {
				continue
			}
			patterns[key] = re
		}
		if len(patterns) > 0 {
			matchers = append(matchers, teamTagMatcher{teamID: t.ID, patterns: patterns})
		}
	}
	return matchers
}

func (m teamTagMatcher) matches(tags map[string]string) bool {
	for key, re := range m.patterns {
		if value, ok := tags[key]; ok && re.MatchString(value) {
			return true
		}
	}
	return false
}
