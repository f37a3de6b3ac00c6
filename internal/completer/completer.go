// Package completer resolves choice placeholders of the form [a|b|c] that
// mark a description as a template for several concrete descriptions.
package completer

import (
	"strings"

	"github.com/ludeme/ludx/internal/text"
)

// Completion is one concrete description and the choice taken at each
// placeholder, in text order.
type Completion struct {
	Text    string
	Choices []string
}

// NeedsCompleting reports whether raw holds a choice placeholder outside
// comments and strings.
func NeedsCompleting(raw string) bool {
	_, _, _, ok := nextChoice(raw)
	return ok
}

// Complete returns up to max completions of raw, taking the first choice of
// every placeholder first. A max of zero or less means no limit. A raw text
// without placeholders is its own single completion.
func Complete(raw string, max int) []Completion {
	var out []Completion
	var fill func(s string, choices []string)
	fill = func(s string, choices []string) {
		if max > 0 && len(out) >= max {
			return
		}
		start, end, parts, ok := nextChoice(s)
		if !ok {
			out = append(out, Completion{Text: s, Choices: choices})
			return
		}
		for _, part := range parts {
			next := append(append([]string(nil), choices...), part)
			fill(s[:start]+part+s[end+1:], next)
		}
	}
	fill(raw, nil)
	return out
}

// Count returns the number of completions raw has.
func Count(raw string) int {
	start, end, parts, ok := nextChoice(raw)
	if !ok {
		return 1
	}
	n := 0
	for _, part := range parts {
		n += Count(raw[:start] + part + raw[end+1:])
	}
	return n
}

// nextChoice finds the first [...] region with a top level '|' and returns
// its bounds and trimmed alternatives. Regions without a '|', like the
// [1..3] guard of a range, are not placeholders.
func nextChoice(s string) (start, end int, parts []string, ok bool) {
	masked := text.MaskComments(s)
	for i := 0; i < len(masked); i++ {
		switch masked[i] {
		case '"':
			q := text.MatchingQuoteAt(masked, i)
			if q < 0 {
				return 0, 0, nil, false
			}
			i = q
		case '[':
			close := text.MatchingAt(masked, i)
			if close < 0 {
				return 0, 0, nil, false
			}
			spans := split(masked, i+1, close)
			if len(spans) < 2 {
				continue
			}
			parts = make([]string, len(spans))
			for k, sp := range spans {
				parts[k] = strings.TrimSpace(s[sp.from:sp.to])
			}
			return i, close, parts, true
		}
	}
	return 0, 0, nil, false
}

type span struct{ from, to int }

// split cuts s[from:to] on every '|' not nested in brackets or strings.
func split(s string, from, to int) []span {
	var out []span
	depth, last := 0, from
	for i := from; i < to; i++ {
		switch s[i] {
		case '"':
			if q := text.MatchingQuoteAt(s, i); q >= 0 && q < to {
				i = q
			}
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case '|':
			if depth == 0 {
				out = append(out, span{last, i})
				last = i + 1
			}
		}
	}
	return append(out, span{last, to})
}
