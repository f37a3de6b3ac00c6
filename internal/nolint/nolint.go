// Package nolint reads //nolint comments in game descriptions.
//
// A comment before any description text applies to the whole file. A
// comment after text on the same line applies to that line. A comment on
// its own line applies to the clause starting on the next line. Without a
// ":rule,rule" list the comment applies to every rule.
package nolint

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/ludeme/ludx/internal/text"
)

const nolintPrefix = "//nolint"

// Manager manages nolint scopes of one description and checks if a position is nolinted.
type Manager struct {
	scopes []nolintScope
}

// nolintScope represents a range of lines where nolint applies.
type nolintScope struct {
	rules map[string]struct{}
	start int
	end   int
	file  bool
}

// ParseComments parses the nolint comments of raw.
func ParseComments(raw string) *Manager {
	manager := Manager{}
	masked := text.MaskComments(raw)
	lines := lineStarts(raw)

	seenCode := false
	inQuote := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			seenCode = true
		case inQuote:
		case c == '/' && i+1 < len(raw) && raw[i+1] == '/':
			end := strings.IndexByte(raw[i:], '\n')
			if end < 0 {
				end = len(raw)
			} else {
				end += i
			}
			ns, err := parseComment(raw[i:end], seenCode, raw, masked, lines, i)
			if err == nil {
				manager.scopes = append(manager.scopes, ns)
			}
			i = end
		case !text.IsSpace(c):
			seenCode = true
		}
	}
	return &manager
}

// parseComment parses a single nolint comment found at offset and
// determines its scope.
func parseComment(comment string, seenCode bool, raw, masked string, lines []int, offset int) (nolintScope, error) {
	var ns nolintScope
	comment = strings.TrimRight(comment, " \t\r")

	if !strings.HasPrefix(comment, nolintPrefix) {
		return ns, fmt.Errorf("invalid nolint comment")
	}
	rest := comment[len(nolintPrefix):]

	// A nolint comment can either have a list of rules after a colon (:)
	// or if no rules are specified, it applies to all rules
	if len(rest) > 0 && rest[0] != ':' {
		return ns, fmt.Errorf("invalid nolint comment format")
	}
	if len(rest) > 0 {
		rest = strings.TrimSpace(rest[1:])
		if rest == "" {
			return ns, fmt.Errorf("invalid nolint comment: no rules specified after colon")
		}
	}
	ns.rules = parseIgnoreRuleNames(rest)

	line := lineOf(lines, offset)

	// before any description text: the entire file
	if !seenCode {
		ns.file = true
		return ns, nil
	}

	// inline: the current line
	if isInlineComment(raw, lines, line, offset) {
		ns.start, ns.end = line, line
		return ns, nil
	}

	// standalone: the comment line and the clause on the next line
	ns.start, ns.end = line, line
	if line >= len(lines) {
		return ns, nil
	}
	next := text.SkipSpace(masked, lines[line])
	if next >= len(masked) || lineOf(lines, next) != line+1 {
		return ns, nil
	}
	ns.end = line + 1
	if c := masked[next]; c == '(' || c == '{' {
		if close := text.MatchingAt(masked, next); close >= 0 {
			ns.end = lineOf(lines, close)
		}
	}
	return ns, nil
}

// parseIgnoreRuleNames parses the rule list from the nolint comment.
func parseIgnoreRuleNames(list string) map[string]struct{} {
	rulesMap := make(map[string]struct{})
	if list == "" {
		return rulesMap
	}
	rules := strings.Split(list, ",")
	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		if rule != "" {
			rulesMap[rule] = struct{}{}
		}
	}
	return rulesMap
}

// lineStarts returns the offset of the first byte of each line.
func lineStarts(raw string) []int {
	starts := []int{0}
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineOf returns the 1-based line holding offset.
func lineOf(lines []int, offset int) int {
	line := 0
	for i, start := range lines {
		if start > offset {
			break
		}
		line = i
	}
	return line + 1
}

// isInlineComment determines if a comment follows description text on
// its line.
func isInlineComment(raw string, lines []int, line, offset int) bool {
	return strings.TrimSpace(raw[lines[line-1]:offset]) != ""
}

// IsNolint checks if a given position and rule are nolinted. Positions
// without a line are only covered by file scopes.
func (m *Manager) IsNolint(pos token.Position, ruleName string) bool {
	for _, ns := range m.scopes {
		if !ns.file && (pos.Line < ns.start || pos.Line > ns.end) {
			continue
		}
		// If the rules list is empty, nolint applies to all rules
		if len(ns.rules) == 0 {
			return true
		}
		if _, exists := ns.rules[ruleName]; exists {
			return true
		}
	}
	return false
}
