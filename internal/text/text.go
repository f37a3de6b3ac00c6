// Package text holds the scanning helpers shared by the expander and the
// parser: matching of brackets, braces and quotes over raw description text.
//
// All functions work on byte offsets. Quoted strings are opaque: a bracket
// inside "..." never participates in matching.
package text

import (
	"strings"
	"unicode"
)

var closers = map[byte]byte{
	'(': ')',
	'{': '}',
	'[': ']',
	'<': '>',
}

// MatchingQuoteAt returns the index of the quote closing the one at from,
// or -1.
func MatchingQuoteAt(s string, from int) int {
	if from < 0 || from >= len(s) || s[from] != '"' {
		return -1
	}
	i := strings.IndexByte(s[from+1:], '"')
	if i < 0 {
		return -1
	}
	return from + 1 + i
}

// MatchingAt returns the index of the delimiter closing the one at from.
// s[from] must be one of ( { [ <. Quoted strings are skipped. Returns -1 if
// the delimiter is not closed.
func MatchingAt(s string, from int) int {
	if from < 0 || from >= len(s) {
		return -1
	}
	open := s[from]
	closer, ok := closers[open]
	if !ok {
		return -1
	}
	depth := 0
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '"':
			q := MatchingQuoteAt(s, i)
			if q < 0 {
				return -1
			}
			i = q
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// MatchingBracketAt is MatchingAt for '('.
func MatchingBracketAt(s string, from int) int {
	if from < 0 || from >= len(s) || s[from] != '(' {
		return -1
	}
	return MatchingAt(s, from)
}

// MatchingBraceAt is MatchingAt for '{'.
func MatchingBraceAt(s string, from int) int {
	if from < 0 || from >= len(s) || s[from] != '{' {
		return -1
	}
	return MatchingAt(s, from)
}

// IndexClause returns the offset of the next "(keyword" at or after from
// that is followed by a separator, skipping quoted strings. Returns -1 if
// there is none.
func IndexClause(s string, keyword string, from int) int {
	head := "(" + keyword
	for i := from; i < len(s); i++ {
		if s[i] == '"' {
			q := MatchingQuoteAt(s, i)
			if q < 0 {
				return -1
			}
			i = q
			continue
		}
		if s[i] != '(' || !strings.HasPrefix(s[i:], head) {
			continue
		}
		end := i + len(head)
		if end == len(s) || IsSeparator(s[end]) {
			return i
		}
	}
	return -1
}

// Clause returns the bracket balanced clause "(keyword ...)" starting at or
// after from, with its start and end (inclusive) offsets. ok is false when
// there is no such clause or it is not closed.
func Clause(s string, keyword string, from int) (clause string, start, end int, ok bool) {
	start = IndexClause(s, keyword, from)
	if start < 0 {
		return "", -1, -1, false
	}
	end = MatchingBracketAt(s, start)
	if end < 0 {
		return "", start, -1, false
	}
	return s[start : end+1], start, end, true
}

// IsSeparator reports whether b ends a symbol.
func IsSeparator(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '(', ')', '{', '}', '"':
		return true
	}
	return false
}

// IsSpace reports whether b is description whitespace.
func IsSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// SkipSpace returns the first non-space offset at or after from.
func SkipSpace(s string, from int) int {
	for from < len(s) && IsSpace(s[from]) {
		from++
	}
	return from
}

// QuotedStrings returns every quoted literal in s, quotes included, in order.
func QuotedStrings(s string) []string {
	var out []string
	for i := 0; i < len(s); i++ {
		if s[i] != '"' {
			continue
		}
		q := MatchingQuoteAt(s, i)
		if q < 0 {
			break
		}
		out = append(out, s[i:q+1])
		i = q
	}
	return out
}

// FirstQuoted returns the first quoted literal in s without its quotes.
func FirstQuoted(s string) (string, bool) {
	i := strings.IndexByte(s, '"')
	if i < 0 {
		return "", false
	}
	q := MatchingQuoteAt(s, i)
	if q < 0 {
		return "", false
	}
	return s[i+1 : q], true
}

// Unquote strips one pair of surrounding quotes.
func Unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// Count returns the number of open and close delimiters in s, outside
// quoted strings.
func Count(s string, open, close byte) (opens, closes int) {
	inString := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inString = !inString
		case open:
			if !inString {
				opens++
			}
		case close:
			if !inString {
				closes++
			}
		}
	}
	return opens, closes
}

// IsNameChar reports whether b may start an option tag name.
func IsNameChar(b byte) bool {
	r := rune(b)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || b == '_'
}

// StripComments removes every "//" comment outside quoted strings. The
// newline ending a comment is kept.
func StripComments(s string) string {
	return comments(s, false)
}

// MaskComments replaces every comment byte with a space, so that offsets
// into the result are offsets into s.
func MaskComments(s string) string {
	return comments(s, true)
}

func comments(s string, mask bool) string {
	if !strings.Contains(s, "//") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			q := MatchingQuoteAt(s, i)
			if q < 0 {
				sb.WriteString(s[i:])
				return sb.String()
			}
			sb.WriteString(s[i : q+1])
			i = q
		case s[i] == '/' && i+1 < len(s) && s[i+1] == '/':
			n := strings.IndexByte(s[i:], '\n')
			if n < 0 {
				n = len(s) - i
			}
			if mask {
				sb.WriteString(strings.Repeat(" ", n))
			}
			i += n - 1
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
