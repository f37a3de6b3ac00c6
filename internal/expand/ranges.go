package expand

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ludeme/ludx/internal/types"
)

var siteRangeRe = regexp.MustCompile(`"([A-Za-z])([0-9]+)"\.\."([A-Za-z])([0-9]+)"`)

// outsideSquare applies fn to every part of s that is not inside a [...]
// region and returns the joined result. Square regions are copied as is.
func outsideSquare(s string, fn func(string) (string, error)) (string, error) {
	if !strings.ContainsRune(s, '[') {
		return fn(s)
	}
	var sb strings.Builder
	depth, from := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			if depth == 0 {
				out, err := fn(s[from:i])
				if err != nil {
					return s, err
				}
				sb.WriteString(out)
				from = i
			}
			depth++
		case ']':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				sb.WriteString(s[from : i+1])
				from = i + 1
			}
		}
	}
	if depth > 0 {
		sb.WriteString(s[from:])
		return sb.String(), nil
	}
	out, err := fn(s[from:])
	if err != nil {
		return s, err
	}
	sb.WriteString(out)
	return sb.String(), nil
}

// expandRanges replaces each "a..b" between two integers with the integers
// strictly between them, so "3..7" becomes "3 4 5 6 7". The endpoints stay
// where they are in the text.
func (r *run) expandRanges(s string) (string, error) {
	if !strings.Contains(s, "..") {
		return s, nil
	}
	return outsideSquare(s, r.expandNumericRanges)
}

func (r *run) expandNumericRanges(s string) (string, error) {
	var sb strings.Builder
	last := 0
	for i := 1; i+2 < len(s); i++ {
		if s[i] != '.' || s[i+1] != '.' || !isDigit(s[i-1]) || !isDigit(s[i+2]) {
			continue
		}
		lo := i - 1
		for lo > 0 && isDigit(s[lo-1]) {
			lo--
		}
		hi := i + 2
		for hi < len(s) && isDigit(s[hi]) {
			hi++
		}
		from, err1 := strconv.Atoi(s[lo:i])
		to, err2 := strconv.Atoi(s[i+2 : hi])
		if err1 != nil || err2 != nil {
			continue
		}
		span := to - from
		if span < 0 {
			span = -span
		}
		if span > r.limits.MaxRange {
			return s, types.Diagnosef(RuleRanges, "%w: %d..%d spans more than %d values", ErrRangeTooLarge, from, to, r.limits.MaxRange)
		}

		sb.WriteString(s[last:i])
		sb.WriteString(interior(from, to))
		last = i + 2
		i = hi - 1
	}
	if last == 0 {
		return s, nil
	}
	sb.WriteString(s[last:])
	out := sb.String()
	return out, r.checkLength(RuleRanges, out, ErrRangeTooLarge)
}

// interior renders the integers strictly between from and to, stepping
// toward to, padded with one space on each side. Equal endpoints have no
// interior.
func interior(from, to int) string {
	var sb strings.Builder
	sb.WriteByte(' ')
	if from < to {
		for v := from + 1; v < to; v++ {
			sb.WriteString(strconv.Itoa(v))
			sb.WriteByte(' ')
		}
	} else {
		for v := from - 1; v > to; v-- {
			sb.WriteString(strconv.Itoa(v))
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// expandSiteRanges replaces each "A1".."C3" with every quoted coordinate of
// the rectangle between the two corners, column letters outermost.
func (r *run) expandSiteRanges(s string) (string, error) {
	if !strings.Contains(s, `".."`) {
		return s, nil
	}
	return outsideSquare(s, r.expandSites)
}

func (r *run) expandSites(s string) (string, error) {
	var err error
	out := siteRangeRe.ReplaceAllStringFunc(s, func(m string) string {
		if err != nil {
			return m
		}
		g := siteRangeRe.FindStringSubmatch(m)
		c0, c1 := ordered(int(g[1][0]), int(g[3][0]))
		n0, _ := strconv.Atoi(g[2])
		n1, _ := strconv.Atoi(g[4])
		n0, n1 = ordered(n0, n1)
		if count := (c1 - c0 + 1) * (n1 - n0 + 1); count > r.limits.MaxRange {
			err = types.Diagnosef(RuleSites, "%w: %s names %d sites, more than %d", ErrRangeTooLarge, m, count, r.limits.MaxRange)
			return m
		}

		sites := make([]string, 0, (c1-c0+1)*(n1-n0+1))
		for c := c0; c <= c1; c++ {
			for n := n0; n <= n1; n++ {
				sites = append(sites, `"`+string(rune(c))+strconv.Itoa(n)+`"`)
			}
		}
		return strings.Join(sites, " ")
	})
	if err != nil {
		return s, err
	}
	return out, r.checkLength(RuleSites, out, ErrRangeTooLarge)
}

func ordered(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
