// Package token turns expanded description text into a token tree: one
// class token per bracketed clause, one array token per braced list and
// one terminal token per string, number or symbol.
package token

import (
	"strings"
)

// Type is the structural kind of a token.
type Type int

const (
	None Type = iota
	Class
	Array
	Terminal
)

func (t Type) String() string {
	switch t {
	case Class:
		return "class"
	case Array:
		return "array"
	case Terminal:
		return "terminal"
	default:
		return "none"
	}
}

// Token is a node of the token tree. Start and End are byte offsets of the
// token's first and last bytes in the tokenized text.
type Token struct {
	Type  Type
	Name  string // class name or terminal text; empty for arrays
	Label string // parameter label of a "name:value" argument, without the colon
	Args  []*Token

	Start int
	End   int
}

// Builder builds a token tree from expanded text. It returns nil when the
// text cannot be tokenized.
type Builder interface {
	Populate(text string) *Token
}

// IsString reports whether the token is a quoted string terminal.
func (t *Token) IsString() bool {
	return t.Type == Terminal && strings.HasPrefix(t.Name, `"`)
}

// Count returns the number of tokens in the tree rooted at t.
func (t *Token) Count() int {
	if t == nil {
		return 0
	}
	n := 1
	for _, arg := range t.Args {
		n += arg.Count()
	}
	return n
}

// Walk calls fn for t and every descendant in depth first order, with the
// depth of each token (0 for t).
func (t *Token) Walk(fn func(tok *Token, depth int)) {
	t.walk(0, fn)
}

func (t *Token) walk(depth int, fn func(*Token, int)) {
	fn(t, depth)
	for _, arg := range t.Args {
		arg.walk(depth+1, fn)
	}
}

// String renders the tree back into normalised description text.
func (t *Token) String() string {
	var sb strings.Builder
	t.format(&sb)
	return sb.String()
}

func (t *Token) format(sb *strings.Builder) {
	if t.Label != "" {
		sb.WriteString(t.Label)
		sb.WriteByte(':')
	}
	switch t.Type {
	case Class:
		sb.WriteByte('(')
		sb.WriteString(t.Name)
		for _, arg := range t.Args {
			sb.WriteByte(' ')
			arg.format(sb)
		}
		sb.WriteByte(')')
	case Array:
		sb.WriteByte('{')
		for i, arg := range t.Args {
			if i > 0 {
				sb.WriteByte(' ')
			}
			arg.format(sb)
		}
		sb.WriteByte('}')
	case Terminal:
		sb.WriteString(t.Name)
	}
}
