package token

import (
	"regexp"
)

type lexemeKind int

const (
	lexString lexemeKind = iota + 1
	lexOpen
	lexClose
	lexOpenBrace
	lexCloseBrace
	lexLabel
	lexSymbol
	lexBroken
)

// Every capturing group maps to one lexeme kind, in order. A match with no
// captured group is whitespace.
var lexemeRe = regexp.MustCompile(`\s+` +
	`|("[^"]*")` +
	`|(\()` +
	`|(\))` +
	`|(\{)` +
	`|(\})` +
	`|([A-Za-z_][A-Za-z0-9_]*:)` +
	`|([^\s(){}"]+)` +
	`|("[^"]*$)`)

type lexeme struct {
	kind  lexemeKind
	text  string
	start int
	end   int // exclusive
}

// lex splits text into lexemes. ok is false on an unterminated string.
func lex(text string) ([]lexeme, bool) {
	var out []lexeme
	for _, m := range lexemeRe.FindAllStringSubmatchIndex(text, -1) {
		for g := 2; g < len(m); g += 2 {
			if m[g] < 0 {
				continue
			}
			kind := lexemeKind(g / 2)
			if kind == lexBroken {
				return nil, false
			}
			out = append(out, lexeme{kind: kind, text: text[m[g]:m[g+1]], start: m[g], end: m[g+1]})
			break
		}
	}
	return out, true
}

// Lexer is the default Builder.
type Lexer struct{}

// Populate tokenizes text, which must hold exactly one item. A blank text
// yields a token of type None.
func (Lexer) Populate(text string) *Token {
	return Populate(text)
}

// Populate is Lexer.Populate.
func Populate(text string) *Token {
	lexemes, ok := lex(text)
	if !ok {
		return nil
	}
	if len(lexemes) == 0 {
		return &Token{Type: None}
	}
	p := &treeParser{lexemes: lexemes}
	root := p.item()
	if root == nil || p.pos != len(lexemes) {
		return nil
	}
	return root
}

type treeParser struct {
	lexemes []lexeme
	pos     int
}

func (p *treeParser) peek() (lexeme, bool) {
	if p.pos >= len(p.lexemes) {
		return lexeme{}, false
	}
	return p.lexemes[p.pos], true
}

func (p *treeParser) next() (lexeme, bool) {
	l, ok := p.peek()
	if ok {
		p.pos++
	}
	return l, ok
}

func (p *treeParser) item() *Token {
	l, ok := p.next()
	if !ok {
		return nil
	}
	label := ""
	start := l.start
	if l.kind == lexLabel {
		label = l.text[:len(l.text)-1]
		if l, ok = p.next(); !ok {
			return nil
		}
	}

	var tok *Token
	switch l.kind {
	case lexOpen:
		tok = p.class(l)
	case lexOpenBrace:
		tok = p.array(l)
	case lexString, lexSymbol:
		tok = &Token{Type: Terminal, Name: l.text, Start: l.start, End: l.end - 1}
	default:
		return nil
	}
	if tok == nil {
		return nil
	}
	tok.Label = label
	tok.Start = start
	return tok
}

func (p *treeParser) class(open lexeme) *Token {
	name, ok := p.next()
	if !ok || name.kind != lexSymbol {
		return nil
	}
	tok := &Token{Type: Class, Name: name.text, Start: open.start}
	for {
		l, ok := p.peek()
		if !ok {
			return nil
		}
		if l.kind == lexClose {
			p.pos++
			tok.End = l.start
			return tok
		}
		arg := p.item()
		if arg == nil {
			return nil
		}
		tok.Args = append(tok.Args, arg)
	}
}

func (p *treeParser) array(open lexeme) *Token {
	tok := &Token{Type: Array, Start: open.start}
	for {
		l, ok := p.peek()
		if !ok {
			return nil
		}
		if l.kind == lexCloseBrace {
			p.pos++
			tok.End = l.start
			return tok
		}
		arg := p.item()
		if arg == nil {
			return nil
		}
		tok.Args = append(tok.Args, arg)
	}
}
