package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ludeme/ludx/internal/desc"
	"github.com/ludeme/ludx/internal/text"
	"github.com/ludeme/ludx/internal/types"
)

var coordinateRe = regexp.MustCompile(`^[A-Z]{1,2}[0-9]{1,2}$`)

// defaultKnown are the names every game may use without declaring them.
var defaultKnown = []string{"Player", "Board", "Hand", "Track", "Dice", "Deck", "Domino"}

// Clauses whose quoted literals declare names. For the first group only
// the first literal is a declaration.
var (
	firstLiteralClauses = []string{
		"game", "match", "subgame", "phase", "vote", "propose",
		"note", "trigger", "var", "remember", "forget", "track", "regions",
	}
	allLiteralClauses = []string{"players", "equipment"}
)

// knownStrings harvests the declared names of the expanded text.
func knownStrings(s string) map[string]bool {
	known := make(map[string]bool)
	for _, k := range defaultKnown {
		known[k] = true
	}
	harvest := func(keyword string, all bool) {
		for from := 0; ; {
			clause, start, _, ok := text.Clause(s, keyword, from)
			if !ok {
				return
			}
			if all {
				for _, q := range text.QuotedStrings(clause) {
					known[text.Unquote(q)] = true
				}
			} else if name, ok := text.FirstQuoted(clause); ok {
				known[name] = true
			}
			from = start + 1
		}
	}
	for _, k := range firstLiteralClauses {
		harvest(k, false)
	}
	for _, k := range allLiteralClauses {
		harvest(k, true)
	}
	return known
}

// numPlayers returns the player count declared by (players N) or by the
// (player ...) entries of (players {...}), defaulting to two.
func numPlayers(s string) int {
	clause, _, _, ok := text.Clause(s, "players", 0)
	if !ok {
		return 2
	}
	inner := strings.TrimSpace(clause[len("(players") : len(clause)-1])
	if n, err := strconv.Atoi(inner); err == nil && n > 0 {
		return n
	}
	n := 0
	for from := 0; ; n++ {
		at := text.IndexClause(clause, "player", from)
		if at < 0 {
			break
		}
		from = at + 1
	}
	if n == 0 {
		return 2
	}
	return n
}

// checkStrings flags every quoted literal of the expanded text that is not
// a declared name, a coordinate or a numbered variant of a declared name.
func (p *Parser) checkStrings(d *desc.Description, report *types.Report) bool {
	if !p.enabled(RuleKnownStrings) {
		return true
	}
	known := knownStrings(d.Expanded)
	players := numPlayers(d.Expanded)

	candidates := make([]string, 0, len(known))
	for k := range known {
		candidates = append(candidates, k)
	}
	sort.Strings(candidates)

	ok := true
	seen := make(map[string]bool)
	for _, q := range text.QuotedStrings(d.Expanded) {
		s := text.Unquote(q)
		if seen[s] || known[s] || coordinateRe.MatchString(s) {
			continue
		}
		seen[s] = true

		switch numberedVariant(s, known, players) {
		case variantMatch:
			continue
		case variantOutOfRange:
			if !p.add(report, RuleKnownStrings, types.SeverityWarning,
				fmt.Sprintf("String %q looks like a numbered item for a player the game does not have.", s)) {
				ok = false
			}
			continue
		}

		msg := fmt.Sprintf("Could not match string %q. Misspelt define or item?", s)
		if best := text.Closest(s, candidates); best != "" {
			msg += fmt.Sprintf(" Did you mean %q?", best)
		}
		if !p.add(report, RuleKnownStrings, types.SeverityError, msg) {
			ok = false
		}
	}
	return ok
}

type variant int

const (
	variantNone variant = iota
	variantMatch
	variantOutOfRange
)

// numberedVariant decides whether s is a declared name with a player index
// added or dropped, such as "Disc1" for "Disc". The lengths may differ by
// at most two, one string must contain the other and s must end in a
// digit. The digit must be a valid player for a full match.
func numberedVariant(s string, known map[string]bool, players int) variant {
	if s == "" {
		return variantNone
	}
	last := s[len(s)-1]
	if last < '0' || last > '9' {
		return variantNone
	}
	result := variantNone
	for k := range known {
		if k == "" {
			continue
		}
		diff := len(s) - len(k)
		if diff < -2 || diff > 2 {
			continue
		}
		if !strings.Contains(s, k) && !strings.Contains(k, s) {
			continue
		}
		if idx := int(last - '0'); idx >= 1 && idx <= players {
			return variantMatch
		}
		result = variantOutOfRange
	}
	return result
}
