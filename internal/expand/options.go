package expand

import (
	"fmt"
	"strings"

	"github.com/ludeme/ludx/internal/desc"
	"github.com/ludeme/ludx/internal/text"
	"github.com/ludeme/ludx/internal/types"
)

// realiseOptions extracts every (option ...) category, picks one item per
// category from the user selections and substitutes its arguments for the
// <Tag:arg> and <Tag> markers.
func (r *run) realiseOptions(s string) (string, error) {
	selected := r.rulesetSelections(s)

	s, categories, err := extractOptions(s)
	if err != nil {
		return s, err
	}
	for _, c := range categories {
		r.d.Options.Add(c)
	}
	if len(categories) == 0 {
		r.d.ActiveOptions = nil
		return s, nil
	}

	indices, unknown := r.d.Options.Selections(selected)
	if len(unknown) > 0 {
		for _, u := range unknown {
			msg := fmt.Sprintf("Unknown option %q, reverting to default options.", u)
			if best := text.Closest(u, r.d.Options.AllOptionStrings()); best != "" {
				msg += fmt.Sprintf(" Did you mean %q?", best)
			}
			r.report.AddWarning(RuleOptions, "%s", msg)
		}
	}
	active := r.d.Options.ActiveStrings(indices)
	r.d.ActiveOptions = active
	r.sel.Options = active
	for _, a := range active {
		r.report.AddLog("Option %s selected.", a)
	}

	return r.substituteOptions(s, categories, indices)
}

// rulesetSelections returns the option paths to select. A chosen ruleset
// contributes its options, which win over user paths of the same
// category. An invalid ruleset index is dropped with a warning so that a
// ruleset is auto-selected later.
func (r *run) rulesetSelections(s string) []string {
	if r.sel.Ruleset == desc.NoRuleset {
		return r.sel.Options
	}
	rulesets := peekRulesets(s)
	if r.sel.Ruleset < 0 || r.sel.Ruleset >= len(rulesets) {
		r.report.AddWarning(RuleRulesets, "Ruleset %d does not exist, choosing a ruleset from the options.", r.sel.Ruleset)
		r.sel.Ruleset = desc.NoRuleset
		return r.sel.Options
	}

	rs := rulesets[r.sel.Ruleset]
	covered := make(map[string]bool, len(rs.Options))
	selected := append([]string(nil), rs.Options...)
	for _, p := range rs.Options {
		category, _, _ := strings.Cut(p, "/")
		covered[category] = true
	}
	for _, p := range r.sel.Options {
		category, _, _ := strings.Cut(p, "/")
		if !covered[category] {
			selected = append(selected, p)
		}
	}
	r.report.AddLog("Ruleset %s selected.", rs.Heading)
	return selected
}

// extractOptions removes every (option ...) clause from s.
func extractOptions(s string) (string, []*desc.OptionCategory, error) {
	var categories []*desc.OptionCategory
	for {
		clause, start, end, ok := text.Clause(s, "option", 0)
		if !ok {
			if start >= 0 {
				return s, nil, types.Diagnosef(RuleOptions, "%w: unclosed (option clause", desc.ErrMalformedOption)
			}
			return s, categories, nil
		}
		c, err := desc.ParseCategory(clause)
		if err != nil {
			return s, nil, types.NewDiagnostic(RuleOptions, -1, err)
		}
		categories = append(categories, c)
		s = s[:start] + s[end+1:]
	}
}

// substituteOptions replaces option markers until none remain. An option
// expression may contain markers of other categories, so the replacement
// repeats; a category that refers to itself trips the pass or length cap.
func (r *run) substituteOptions(s string, categories []*desc.OptionCategory, indices []int) (string, error) {
	for pass := 0; ; pass++ {
		if pass >= r.limits.MaxOptionExpansions {
			return s, types.Diagnosef(RuleOptions, "%w: markers remain after %d passes", ErrSelfReferentialOption, pass)
		}
		before := s
		for ci, c := range categories {
			opt := c.Options[indices[ci]]
			for _, arg := range opt.Args {
				if arg.Name != "" {
					s = strings.ReplaceAll(s, "<"+c.Tag+":"+arg.Name+">", arg.Expression)
				}
			}
			if len(opt.Args) > 0 {
				s = strings.ReplaceAll(s, "<"+c.Tag+">", opt.Args[0].Expression)
			}
		}
		if err := r.checkLength(RuleOptions, s, ErrSelfReferentialOption); err != nil {
			return s, err
		}
		if s == before || !hasMarker(s, categories) {
			return s, nil
		}
	}
}

// hasMarker reports whether s still holds a marker of any category.
func hasMarker(s string, categories []*desc.OptionCategory) bool {
	for _, c := range categories {
		if strings.Contains(s, "<"+c.Tag+">") || strings.Contains(s, "<"+c.Tag+":") {
			return true
		}
	}
	return false
}
