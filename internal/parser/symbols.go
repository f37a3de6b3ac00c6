package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/ludeme/ludx/internal/desc"
	"github.com/ludeme/ludx/internal/grammar"
	"github.com/ludeme/ludx/internal/text"
	"github.com/ludeme/ludx/internal/types"
)

// checkSymbols matches every token against the grammar and then parses
// the resulting tree. Parse failures are reported at the deepest level
// that failed, which is where the actual mistake usually is.
func (p *Parser) checkSymbols(d *desc.Description, report *types.Report) bool {
	if !p.enabled(RuleSymbols) || p.grammar == nil {
		return true
	}
	tree := grammar.BuildTree(d.Tokens)
	ok := true
	tree.Walk(func(it *grammar.Item) {
		if !p.matchSymbols(it, report) {
			ok = false
		}
	})
	if !ok {
		return !report.IsError()
	}
	if !tree.Parse() {
		depth := tree.DeepestFailureDepth()
		p.logger.Debug("parse failed", zap.Int("depth", depth))
		tree.ReportFailuresAt(report, depth)
		return false
	}
	return true
}

// matchSymbols resolves one item. An array always matches; an empty match
// on a terminal or class is an error.
func (p *Parser) matchSymbols(it *grammar.Item, report *types.Report) bool {
	it.Symbols = p.grammar.Resolve(it.Token.Name, it.Kind)
	if len(it.Symbols) > 0 || it.Kind == grammar.Array {
		return true
	}

	name := it.Token.Name
	var msg string
	switch {
	case it.Kind == grammar.Class:
		msg = fmt.Sprintf("Could not find a ludeme class for (%s ...).", name)
	case startsLower(name):
		msg = fmt.Sprintf("Could not match %q. Is an open bracket '(' missing before it?", name)
	default:
		msg = fmt.Sprintf("Could not match terminal %q.", name)
	}
	if st, ok := p.grammar.(*grammar.SymbolTable); ok {
		kind := it.Kind
		if kind == grammar.Terminal && startsLower(name) {
			kind = grammar.Class
		}
		if best := text.Closest(name, st.Names(kind)); best != "" && best != name {
			msg += fmt.Sprintf(" Did you mean %q?", best)
		}
	}
	return p.add(report, RuleSymbols, types.SeverityError, msg)
}

func startsLower(s string) bool {
	for _, r := range s {
		return unicode.IsLower(r)
	}
	return false
}

// checkVersion compares the description's (version "x.y.z") with the
// grammar version. Neither a mismatch nor a missing version is fatal.
func (p *Parser) checkVersion(raw string, report *types.Report) bool {
	if !p.enabled(RuleVersion) || p.grammar == nil {
		return true
	}
	want := p.grammar.Version()

	clause, _, _, ok := text.Clause(raw, "version", 0)
	if !ok {
		return p.add(report, RuleVersion, types.SeverityWarning, fmt.Sprintf("No version info. The grammar is version %s.", want))
	}
	got, ok := text.FirstQuoted(clause)
	if !ok {
		return p.add(report, RuleVersion, types.SeverityWarning, fmt.Sprintf("Malformed version clause %s.", clause))
	}

	cmp, err := compareVersions(got, want)
	switch {
	case err != nil:
		return p.add(report, RuleVersion, types.SeverityWarning, fmt.Sprintf("Malformed version %q: %v.", got, err))
	case cmp < 0:
		return p.add(report, RuleVersion, types.SeverityWarning, fmt.Sprintf("Description version %s is older than grammar version %s.", got, want))
	case cmp > 0:
		return p.add(report, RuleVersion, types.SeverityWarning, fmt.Sprintf("Description version %s is newer than grammar version %s.", got, want))
	}
	return true
}

// compareVersions compares two "major.minor.patch" versions.
func compareVersions(a, b string) (int, error) {
	pa, err := versionParts(a)
	if err != nil {
		return 0, err
	}
	pb, err := versionParts(b)
	if err != nil {
		return 0, err
	}
	for i := range pa {
		switch {
		case pa[i] < pb[i]:
			return -1, nil
		case pa[i] > pb[i]:
			return 1, nil
		}
	}
	return 0, nil
}

func versionParts(v string) ([3]int, error) {
	var out [3]int
	parts := strings.Split(strings.TrimSpace(v), ".")
	if len(parts) != 3 {
		return out, fmt.Errorf("expected three parts, found %d", len(parts))
	}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return out, fmt.Errorf("part %q is not a number", part)
		}
		out[i] = n
	}
	return out, nil
}
