package parser

import (
	"errors"
	"fmt"

	"github.com/ludeme/ludx/internal/desc"
	"github.com/ludeme/ludx/internal/text"
	"github.com/ludeme/ludx/internal/token"
	"github.com/ludeme/ludx/internal/types"
)

const expandedSuffix = " (in the expanded description)"

// fail records msg as an error of rule at offset, which is only kept for
// the raw text.
func fail(report *types.Report, rule string, raw bool, offset int, msg string) {
	if !raw {
		offset = -1
		msg += expandedSuffix
	}
	report.Fail(rule, types.NewDiagnostic(rule, offset, errors.New(msg)))
}

// checkQuotes fails on an odd number of quotes. The offset is that of the
// last quote, which is the one left open.
func checkQuotes(s string, raw bool, report *types.Report) bool {
	n, last := 0, -1
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			n++
			last = i
		}
	}
	if n%2 == 0 {
		return true
	}
	fail(report, RuleQuotes, raw, last, fmt.Sprintf("Mismatched quotes: %d quotes found, an unterminated string.", n))
	return false
}

// checkBalance reports the open/close deficit of one delimiter pair,
// ignoring quoted text. An excess close is located at its first
// occurrence, an excess open at the last one left unclosed.
func checkBalance(s string, raw bool, open, close byte, report *types.Report) bool {
	var opens []int
	excess, firstExcess := 0, -1
	inString := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			inString = !inString
		case inString:
		case s[i] == open:
			opens = append(opens, i)
		case s[i] == close:
			if len(opens) == 0 {
				if excess == 0 {
					firstExcess = i
				}
				excess++
				continue
			}
			opens = opens[:len(opens)-1]
		}
	}

	rule, noun := RuleBrackets, "bracket"
	if open == '{' {
		rule, noun = RuleBraces, "brace"
	}
	ok := true
	if excess > 0 {
		fail(report, rule, raw, firstExcess, missing(excess, "open", noun, open))
		ok = false
	}
	if n := len(opens); n > 0 {
		fail(report, rule, raw, opens[n-1], missing(n, "close", noun, close))
		ok = false
	}
	return ok
}

// missing renders "Missing an open bracket '('." or "Missing 2 close
// braces '}'.".
func missing(n int, side, noun string, delim byte) string {
	if n == 1 {
		article := "a"
		if side == "open" {
			article = "an"
		}
		return fmt.Sprintf("Missing %s %s %s '%c'.", article, side, noun, delim)
	}
	return fmt.Sprintf("Missing %d %s %ss '%c'.", n, side, noun, delim)
}

// checkOptionTags fails on a "<name" left in the expanded text, which means
// an option marker was never substituted.
func checkOptionTags(s string, report *types.Report) bool {
	for i := 0; i+1 < len(s); i++ {
		switch {
		case s[i] == '"':
			q := text.MatchingQuoteAt(s, i)
			if q < 0 {
				return true
			}
			i = q
		case s[i] == '<' && text.IsNameChar(s[i+1]):
			j := i + 1
			for j < len(s) && s[j] != '>' && !text.IsSeparator(s[j]) {
				j++
			}
			report.AddError(RuleOptionTags, "Option tag %s> was not expanded. Is the option declared?", s[i:j])
			return false
		}
	}
	return true
}

func checkTokens(d *desc.Description, report *types.Report) bool {
	if d.Tokens == nil || d.Tokens.Type == token.None {
		report.AddError(RuleTokens, "Could not tokenize the expanded description.")
		return false
	}
	return true
}
