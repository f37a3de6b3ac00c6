package expand

import (
	"regexp"
	"strings"

	"github.com/ludeme/ludx/internal/text"
	"github.com/ludeme/ludx/internal/types"
)

var (
	spaceRe       = regexp.MustCompile(`\s+`)
	afterOpenRe   = regexp.MustCompile(`([({])\s+`)
	beforeCloseRe = regexp.MustCompile(`\s+([)}])`)
)

// cleanUp normalises whitespace and undoes the doubled brackets left behind
// when a bracketed macro body is spliced into a bracketed call.
func (r *run) cleanUp(s string) (string, error) {
	s = normalise(s)
	for strings.Contains(s, "::") {
		s = strings.ReplaceAll(s, "::", ":")
	}
	return collapseDoubledBrackets(s)
}

// normalise collapses runs of whitespace to one space and drops the space
// just inside brackets and braces.
func normalise(s string) string {
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	s = afterOpenRe.ReplaceAllString(s, "$1")
	return beforeCloseRe.ReplaceAllString(s, "$1")
}

// collapseDoubledBrackets rewrites ((x)) as (x) wherever the two closing
// brackets are adjacent. A doubled open bracket that is not closed is an
// error; ((a) b) is left alone.
func collapseDoubledBrackets(s string) (string, error) {
	for i := 0; i+1 < len(s); i++ {
		switch {
		case s[i] == '"':
			q := text.MatchingQuoteAt(s, i)
			if q < 0 {
				return s, nil
			}
			i = q
		case s[i] == '(' && s[i+1] == '(':
			inner := text.MatchingBracketAt(s, i+1)
			if inner < 0 || text.MatchingBracketAt(s, i) < 0 {
				return s, types.NewDiagnostic(RuleCleanup, -1, ErrDoubledBracket)
			}
			if inner+1 < len(s) && s[inner+1] == ')' {
				s = s[:i] + s[i+1:inner+1] + s[inner+2:]
				i--
			}
		}
	}
	return s, nil
}
