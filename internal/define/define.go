package define

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/ludeme/ludx/internal/text"
)

var (
	ErrMalformedDefine = errors.New("malformed define")
	ErrDuplicateDefine = errors.New("duplicate define")
)

var paramRe = regexp.MustCompile(`#[1-9][0-9]*`)

// Define is a named, optionally parameterised text template.
//
// The tag is the quoted label, quotes included, e.g. `"Name"`. The tag never
// changes after construction; the expression may be rewritten.
type Define struct {
	tag           string
	expression    string
	parameterised bool
	known         bool
}

// New returns a define for tag, which must be quoted.
func New(tag, expression string, known bool) *Define {
	return &Define{
		tag:           tag,
		expression:    expression,
		parameterised: paramRe.MatchString(expression),
		known:         known,
	}
}

// Tag returns the quoted label.
func (d *Define) Tag() string { return d.tag }

// Name returns the label without quotes.
func (d *Define) Name() string { return text.Unquote(d.tag) }

func (d *Define) Expression() string { return d.expression }

// SetExpression rewrites the body and recomputes the parameterised flag.
func (d *Define) SetExpression(expression string) {
	d.expression = expression
	d.parameterised = paramRe.MatchString(expression)
}

// IsParameterised reports whether the body references #1..#N.
func (d *Define) IsParameterised() bool { return d.parameterised }

// IsKnown reports whether the define came from the library rather than
// from the description itself.
func (d *Define) IsKnown() bool { return d.known }

// NumParameters returns the highest #N referenced by the body.
func (d *Define) NumParameters() int {
	max := 0
	for _, m := range paramRe.FindAllString(d.expression, -1) {
		var n int
		if _, err := fmt.Sscanf(m, "#%d", &n); err == nil && n > max {
			max = n
		}
	}
	return max
}

// StartsLowercase reports whether the label begins with a lowercase letter.
func (d *Define) StartsLowercase() bool {
	name := d.Name()
	return name != "" && unicode.IsLower([]rune(name)[0])
}

func (d *Define) String() string {
	return "(define " + d.tag + " " + d.expression + ")"
}

// Interpret parses a `(define "Tag" body)` clause. The clause must be
// bracket balanced and start with "(define".
func Interpret(clause string, known bool) (*Define, error) {
	clause = strings.TrimSpace(clause)
	if !strings.HasPrefix(clause, "(define") {
		return nil, fmt.Errorf("%w: clause does not start with (define", ErrMalformedDefine)
	}
	end := text.MatchingBracketAt(clause, 0)
	if end < 0 {
		return nil, fmt.Errorf("%w: unbalanced brackets", ErrMalformedDefine)
	}

	open := strings.IndexByte(clause, '"')
	if open < 0 || open > end {
		return nil, fmt.Errorf("%w: missing quoted label", ErrMalformedDefine)
	}
	close := text.MatchingQuoteAt(clause, open)
	if close < 0 {
		return nil, fmt.Errorf("%w: unterminated label", ErrMalformedDefine)
	}
	if strings.TrimSpace(clause[len("(define"):open]) != "" {
		return nil, fmt.Errorf("%w: unexpected text before label", ErrMalformedDefine)
	}

	tag := clause[open : close+1]
	if close == open+1 {
		return nil, fmt.Errorf("%w: empty label", ErrMalformedDefine)
	}
	body := strings.TrimSpace(clause[close+1 : end])
	return New(tag, body, known), nil
}
