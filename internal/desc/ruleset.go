package desc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ludeme/ludx/internal/text"
)

// Ruleset is a named bundle of option selections.
type Ruleset struct {
	Heading string
	Options []string
	// Variations groups the optional "Category/Item" alternatives by
	// category heading.
	Variations map[string][]string
	Priority   int
}

// ParseRuleset parses a (ruleset "Heading" { "Cat/Item" ... } variations:{ ... })
// clause. Trailing '*' markers after the closing bracket set the priority.
func ParseRuleset(clause string) (*Ruleset, error) {
	clause = strings.TrimSpace(clause)
	if !strings.HasPrefix(clause, "(ruleset") {
		return nil, fmt.Errorf("%w: clause does not start with (ruleset", ErrMalformedRuleset)
	}
	end := text.MatchingBracketAt(clause, 0)
	if end < 0 {
		return nil, fmt.Errorf("%w: unbalanced brackets", ErrMalformedRuleset)
	}
	heading, pos, err := quotedAfter(clause, len("(ruleset"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRuleset, err)
	}

	rs := &Ruleset{
		Heading:    heading,
		Variations: make(map[string][]string),
		Priority:   countStars(clause, end+1),
	}

	body := clause[:end]
	for pos < len(body) {
		pos = text.SkipSpace(body, pos)
		if pos >= len(body) {
			break
		}
		variations := false
		if strings.HasPrefix(body[pos:], "variations:") {
			variations = true
			pos = text.SkipSpace(body, pos+len("variations:"))
		}
		if pos >= len(body) || body[pos] != '{' {
			return nil, fmt.Errorf("%w: %q: unexpected %q", ErrMalformedRuleset, heading, strings.TrimSpace(body[pos:]))
		}
		close := text.MatchingBraceAt(body, pos)
		if close < 0 {
			return nil, fmt.Errorf("%w: %q: unclosed option list", ErrMalformedRuleset, heading)
		}
		for _, q := range text.QuotedStrings(body[pos+1 : close]) {
			path := text.Unquote(q)
			if variations {
				category, _, _ := strings.Cut(path, "/")
				rs.Variations[category] = append(rs.Variations[category], path)
				continue
			}
			rs.Options = append(rs.Options, path)
		}
		pos = close + 1
	}
	return rs, nil
}

// VariationCategories returns the categories with variations, sorted.
func (rs *Ruleset) VariationCategories() []string {
	out := make([]string, 0, len(rs.Variations))
	for k := range rs.Variations {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
