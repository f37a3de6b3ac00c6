package expand

import (
	"fmt"
	"strings"

	"github.com/ludeme/ludx/internal/desc"
	"github.com/ludeme/ludx/internal/text"
	"github.com/ludeme/ludx/internal/types"
)

// extractMetadata moves the (metadata ...) block out of the description
// into d.Metadata, resolving its useFor guards against the active options
// and ruleset.
func (r *run) extractMetadata(s string) (string, error) {
	clause, start, end, ok := text.Clause(s, "metadata", 0)
	if !ok {
		if start >= 0 {
			return s, types.Diagnosef(RuleMetadata, "%w: unclosed (metadata clause", ErrMalformedGuard)
		}
		r.d.Metadata = ""
		return s, nil
	}

	r.autoSelectRuleset()

	meta, err := r.resolveGuards(clause)
	if err != nil {
		return s, err
	}
	r.d.Metadata = normalise(meta)
	return s[:start] + s[end+1:], nil
}

// autoSelectRuleset picks the first ruleset matching the active options
// when the user chose none.
func (r *run) autoSelectRuleset() {
	if r.sel.Ruleset != desc.NoRuleset || len(r.d.Rulesets) == 0 {
		return
	}
	i := r.d.AutoSelectRuleset(r.d.ActiveOptions)
	if i == desc.NoRuleset {
		return
	}
	r.sel.Ruleset = i
	r.report.AddLog("Ruleset %s auto-selected.", r.d.Rulesets[i].Heading)
}

// resolveGuards replaces each (useFor requirement body...) with body when
// the requirement holds and with nothing otherwise. Guards nested in a kept
// body are resolved in later passes.
func (r *run) resolveGuards(meta string) (string, error) {
	for {
		clause, start, end, ok := text.Clause(meta, "useFor", 0)
		if !ok {
			if start >= 0 {
				return meta, types.Diagnosef(RuleMetadata, "%w: unclosed (useFor clause", ErrMalformedGuard)
			}
			return meta, nil
		}
		reqs, body, err := splitGuard(clause)
		if err != nil {
			return meta, types.NewDiagnostic(RuleMetadata, -1, err)
		}
		keep, err := r.satisfied(reqs)
		if err != nil {
			return meta, err
		}
		if !keep {
			body = ""
		}
		meta = meta[:start] + body + meta[end+1:]
	}
}

// splitGuard returns the requirements and the body of a useFor clause. The
// requirement is either one quoted string or a brace set of them.
func splitGuard(clause string) ([]string, string, error) {
	inner := clause[len("(useFor") : len(clause)-1]
	i := text.SkipSpace(inner, 0)
	if i == len(inner) {
		return nil, "", fmt.Errorf("%w: no requirement", ErrMalformedGuard)
	}

	var reqs []string
	var rest string
	switch inner[i] {
	case '"':
		q := text.MatchingQuoteAt(inner, i)
		if q < 0 {
			return nil, "", fmt.Errorf("%w: unterminated requirement", ErrMalformedGuard)
		}
		reqs = []string{inner[i+1 : q]}
		rest = inner[q+1:]
	case '{':
		b := text.MatchingBraceAt(inner, i)
		if b < 0 {
			return nil, "", fmt.Errorf("%w: unclosed requirement set", ErrMalformedGuard)
		}
		for _, q := range text.QuotedStrings(inner[i:b]) {
			reqs = append(reqs, text.Unquote(q))
		}
		if len(reqs) == 0 {
			return nil, "", fmt.Errorf("%w: empty requirement set", ErrMalformedGuard)
		}
		rest = inner[b+1:]
	default:
		return nil, "", fmt.Errorf("%w: requirement must be a string or a set of strings", ErrMalformedGuard)
	}
	return reqs, strings.TrimSpace(rest), nil
}

// satisfied reports whether the active selection meets every requirement.
// A requirement naming a ruleset heading is met by that ruleset; several
// ruleset requirements are alternatives. Option requirements must all be
// active.
func (r *run) satisfied(reqs []string) (bool, error) {
	active := make(map[string]bool, len(r.d.ActiveOptions))
	for _, a := range r.d.ActiveOptions {
		active[a] = true
	}

	optionsMet := true
	rulesets, rulesetMet := 0, false
	for _, req := range reqs {
		if i := r.d.RulesetByHeading(req); i != desc.NoRuleset {
			rulesets++
			if i == r.sel.Ruleset {
				rulesetMet = true
			}
			continue
		}
		if r.d.Options.Contains(req) {
			if !active[req] {
				optionsMet = false
			}
			continue
		}
		return false, r.unknownRequirement(req)
	}
	return optionsMet && (rulesets == 0 || rulesetMet), nil
}

func (r *run) unknownRequirement(req string) error {
	candidates := r.d.Options.AllOptionStrings()
	for _, rs := range r.d.Rulesets {
		candidates = append(candidates, rs.Heading)
	}
	if best := text.Closest(req, candidates); best != "" {
		return types.Diagnosef(RuleMetadata, "%w: %q, did you mean %q?", ErrUnknownRequirement, req, best)
	}
	return types.Diagnosef(RuleMetadata, "%w: %q", ErrUnknownRequirement, req)
}
