package expand

import (
	"strings"

	"github.com/ludeme/ludx/internal/desc"
	"github.com/ludeme/ludx/internal/text"
	"github.com/ludeme/ludx/internal/types"
)

// realiseRulesets extracts the first (rulesets { ... }) block into
// d.Rulesets and removes it along with any further rulesets blocks.
func (r *run) realiseRulesets(s string) (string, error) {
	clause, start, end, ok := text.Clause(s, "rulesets", 0)
	if !ok {
		if start >= 0 {
			return s, types.Diagnosef(RuleRulesets, "%w: unclosed (rulesets clause", desc.ErrMalformedRuleset)
		}
		return s, nil
	}

	rulesets, err := parseRulesets(clause)
	if err != nil {
		return s, err
	}
	for _, ruleset := range rulesets {
		r.report.AddLog("Ruleset %s found.", ruleset.Heading)
		if categories := ruleset.VariationCategories(); len(categories) > 0 {
			r.report.AddLog("Ruleset %s varies %s.", ruleset.Heading, strings.Join(categories, ", "))
		}
	}
	r.d.Rulesets = append(r.d.Rulesets, rulesets...)
	s = s[:start] + s[end+1:]

	// Only the first block is read; any others are dropped.
	for {
		_, start, end, ok := text.Clause(s, "rulesets", 0)
		if !ok {
			if start >= 0 {
				return s, types.Diagnosef(RuleRulesets, "%w: unclosed (rulesets clause", desc.ErrMalformedRuleset)
			}
			return s, nil
		}
		r.report.AddWarning(RuleRulesets, "Ignoring additional (rulesets ...) block.")
		s = s[:start] + s[end+1:]
	}
}

// parseRulesets splits a (rulesets { ... }) clause into its rulesets,
// keeping the trailing priority markers of each.
func parseRulesets(clause string) ([]*desc.Ruleset, error) {
	var rulesets []*desc.Ruleset
	inner := clause[:len(clause)-1]
	for from := len("(rulesets"); ; {
		_, rsStart, rsEnd, ok := text.Clause(inner, "ruleset", from)
		if !ok {
			if rsStart >= 0 {
				return nil, types.Diagnosef(RuleRulesets, "%w: unclosed (ruleset clause", desc.ErrMalformedRuleset)
			}
			return rulesets, nil
		}
		stop := rsEnd + 1
		for stop < len(inner) && inner[stop] == '*' {
			stop++
		}
		ruleset, err := desc.ParseRuleset(inner[rsStart:stop])
		if err != nil {
			return nil, types.NewDiagnostic(RuleRulesets, -1, err)
		}
		rulesets = append(rulesets, ruleset)
		from = stop
	}
}

// peekRulesets parses the first (rulesets ...) block of s without
// removing it. A malformed block yields nothing here; the rulesets stage
// reports it.
func peekRulesets(s string) []*desc.Ruleset {
	clause, _, _, ok := text.Clause(s, "rulesets", 0)
	if !ok {
		return nil
	}
	rulesets, err := parseRulesets(clause)
	if err != nil {
		return nil
	}
	return rulesets
}
