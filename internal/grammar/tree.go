package grammar

import (
	"fmt"

	"github.com/ludeme/ludx/internal/token"
	"github.com/ludeme/ludx/internal/types"
)

// RuleParse is the rule under which parse tree failures are reported.
const RuleParse = "parse"

// Item is one node of the parse tree: a token, the symbols it matched and
// its arguments.
type Item struct {
	Token   *token.Token
	Kind    Kind
	Depth   int
	Args    []*Item
	Symbols []Symbol

	failure string
}

// Failure returns why the item failed to parse, or "".
func (it *Item) Failure() string { return it.failure }

// Tree is a parse tree over a token tree.
type Tree struct {
	Root *Item
}

// BuildTree mirrors the token tree as unresolved parse items.
func BuildTree(root *token.Token) *Tree {
	if root == nil {
		return &Tree{}
	}
	return &Tree{Root: buildItem(root, 0)}
}

func buildItem(tok *token.Token, depth int) *Item {
	it := &Item{Token: tok, Kind: kindOf(tok.Type), Depth: depth}
	for _, arg := range tok.Args {
		it.Args = append(it.Args, buildItem(arg, depth+1))
	}
	return it
}

func kindOf(t token.Type) Kind {
	switch t {
	case token.Class:
		return Class
	case token.Array:
		return Array
	default:
		return Terminal
	}
}

// Walk calls fn for every item, parents first.
func (t *Tree) Walk(fn func(*Item)) {
	if t.Root != nil {
		walk(t.Root, fn)
	}
}

func walk(it *Item, fn func(*Item)) {
	fn(it)
	for _, arg := range it.Args {
		walk(arg, fn)
	}
}

// Parse checks every item against its matched symbols and reports whether
// the whole tree is valid. An item fails when it matched no symbol or when
// no matched class accepts its number of arguments.
func (t *Tree) Parse() bool {
	ok := t.Root != nil
	t.Walk(func(it *Item) {
		it.failure = ""
		switch {
		case len(it.Symbols) == 0:
			it.failure = fmt.Sprintf("No symbol matches %s %q.", it.Kind, name(it))
		case it.Kind == Class && !accepts(it.Symbols, len(it.Args)):
			s := it.Symbols[0]
			it.failure = fmt.Sprintf("(%s ...) takes %s, found %d.", s.Name, arity(s), len(it.Args))
		}
		if it.failure != "" {
			ok = false
		}
	})
	return ok
}

func accepts(symbols []Symbol, n int) bool {
	for _, s := range symbols {
		if s.Accepts(n) {
			return true
		}
	}
	return false
}

func arity(s Symbol) string {
	switch {
	case s.MaxArgs == Unbounded:
		return fmt.Sprintf("at least %d arguments", s.MinArgs)
	case s.MinArgs == s.MaxArgs:
		return fmt.Sprintf("%d arguments", s.MinArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", s.MinArgs, s.MaxArgs)
	}
}

func name(it *Item) string {
	if it.Kind == Array {
		return "{...}"
	}
	return it.Token.Name
}

// DeepestFailureDepth returns the depth of the deepest failed item, or -1.
func (t *Tree) DeepestFailureDepth() int {
	deepest := -1
	t.Walk(func(it *Item) {
		if it.failure != "" && it.Depth > deepest {
			deepest = it.Depth
		}
	})
	return deepest
}

// FailuresAt returns the failed items at depth, in text order.
func (t *Tree) FailuresAt(depth int) []*Item {
	var out []*Item
	t.Walk(func(it *Item) {
		if it.failure != "" && it.Depth == depth {
			out = append(out, it)
		}
	})
	return out
}

// ReportFailuresAt records every failure at depth as an error.
func (t *Tree) ReportFailuresAt(report *types.Report, depth int) {
	for _, it := range t.FailuresAt(depth) {
		report.AddError(RuleParse, "%s", it.failure)
	}
}
