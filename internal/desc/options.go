package desc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ludeme/ludx/internal/text"
	"github.com/ludeme/ludx/internal/trie"
)

var (
	ErrMalformedOption  = errors.New("malformed option")
	ErrMalformedRuleset = errors.New("malformed ruleset")
)

// OptionArgument binds one named argument of a category to the text it
// expands to.
type OptionArgument struct {
	Name       string
	Expression string
}

// Option is one choice of a category.
type Option struct {
	Heading     string
	Args        []OptionArgument
	Description string
	Priority    int
}

// OptionCategory is a set of mutually exclusive options, substituted in the
// description wherever <Tag> or <Tag:arg> appears.
type OptionCategory struct {
	Heading  string
	Tag      string
	ArgNames []string
	Options  []*Option
}

// Path returns the "Heading/Item" selection path of option i.
func (c *OptionCategory) Path(i int) string {
	return c.Heading + "/" + c.Options[i].Heading
}

// Find returns the index of the option with the given heading, or -1.
func (c *OptionCategory) Find(heading string) int {
	for i, o := range c.Options {
		if o.Heading == heading {
			return i
		}
	}
	return -1
}

// DefaultIndex returns the option with the most priority markers, the
// first one on ties.
func (c *OptionCategory) DefaultIndex() int {
	best := 0
	for i, o := range c.Options {
		if o.Priority > c.Options[best].Priority {
			best = i
		}
	}
	return best
}

// ParseCategory parses an (option "Heading" <Tag> args:{ <a> <b> } { items })
// clause. Without an args clause the category has one unnamed argument.
func ParseCategory(clause string) (*OptionCategory, error) {
	if !strings.HasPrefix(clause, "(option") {
		return nil, fmt.Errorf("%w: clause does not start with (option", ErrMalformedOption)
	}
	end := text.MatchingBracketAt(clause, 0)
	if end < 0 {
		return nil, fmt.Errorf("%w: unbalanced brackets", ErrMalformedOption)
	}
	body := clause[:end]

	c := &OptionCategory{}
	pos := len("(option")
	heading, next, err := quotedAfter(body, pos)
	if err != nil {
		return nil, fmt.Errorf("%w: heading: %v", ErrMalformedOption, err)
	}
	c.Heading = heading

	pos = text.SkipSpace(body, next)
	if pos >= len(body) || body[pos] != '<' {
		return nil, fmt.Errorf("%w: %q has no <tag>", ErrMalformedOption, c.Heading)
	}
	close := text.MatchingAt(body, pos)
	if close < 0 {
		return nil, fmt.Errorf("%w: %q has an unclosed <tag>", ErrMalformedOption, c.Heading)
	}
	c.Tag = body[pos+1 : close]
	pos = text.SkipSpace(body, close+1)

	if strings.HasPrefix(body[pos:], "args:") {
		pos = text.SkipSpace(body, pos+len("args:"))
		braceEnd := text.MatchingBraceAt(body, pos)
		if braceEnd < 0 {
			return nil, fmt.Errorf("%w: %q has a malformed args list", ErrMalformedOption, c.Heading)
		}
		names, err := angleValues(body[pos+1 : braceEnd])
		if err != nil {
			return nil, fmt.Errorf("%w: %q args: %v", ErrMalformedOption, c.Heading, err)
		}
		c.ArgNames = names
		pos = text.SkipSpace(body, braceEnd+1)
	}

	if pos >= len(body) || body[pos] != '{' {
		return nil, fmt.Errorf("%w: %q has no item list", ErrMalformedOption, c.Heading)
	}
	itemsEnd := text.MatchingBraceAt(body, pos)
	if itemsEnd < 0 {
		return nil, fmt.Errorf("%w: %q has an unclosed item list", ErrMalformedOption, c.Heading)
	}
	items := body[:itemsEnd]
	for from := pos; ; {
		item, _, stop, ok := text.Clause(items, "item", from)
		if !ok {
			break
		}
		stars := countStars(items, stop+1)
		opt, err := c.parseItem(item)
		if err != nil {
			return nil, err
		}
		opt.Priority = stars
		c.Options = append(c.Options, opt)
		from = stop + 1
	}
	if len(c.Options) == 0 {
		return nil, fmt.Errorf("%w: %q has no items", ErrMalformedOption, c.Heading)
	}
	return c, nil
}

func (c *OptionCategory) parseItem(item string) (*Option, error) {
	heading, pos, err := quotedAfter(item, len("(item"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q item: %v", ErrMalformedOption, c.Heading, err)
	}
	opt := &Option{Heading: heading}
	body := item[:len(item)-1]

	var values []string
	for {
		pos = text.SkipSpace(body, pos)
		if pos >= len(body) || body[pos] != '<' {
			break
		}
		close := text.MatchingAt(body, pos)
		if close < 0 {
			return nil, fmt.Errorf("%w: %q item %q has an unclosed argument", ErrMalformedOption, c.Heading, heading)
		}
		values = append(values, body[pos+1:close])
		pos = close + 1
	}
	if rest := strings.TrimSpace(body[pos:]); rest != "" {
		opt.Description = text.Unquote(rest)
	}

	names := c.ArgNames
	if len(names) == 0 {
		names = []string{""}
	}
	if len(values) > len(names) {
		return nil, fmt.Errorf("%w: %q item %q has %d arguments, expected at most %d",
			ErrMalformedOption, c.Heading, heading, len(values), len(names))
	}
	for i, v := range values {
		opt.Args = append(opt.Args, OptionArgument{Name: names[i], Expression: v})
	}
	return opt, nil
}

// GameOptions is the option catalogue of one description.
type GameOptions struct {
	categories []*OptionCategory
	paths      *trie.Trie
}

func NewGameOptions() *GameOptions {
	return &GameOptions{paths: trie.New()}
}

// Add appends a category and indexes its option paths.
func (g *GameOptions) Add(c *OptionCategory) {
	g.categories = append(g.categories, c)
	for _, o := range c.Options {
		g.paths.Insert([]string{c.Heading, o.Heading})
	}
}

func (g *GameOptions) Categories() []*OptionCategory { return g.categories }

func (g *GameOptions) Len() int { return len(g.categories) }

// Contains reports whether path names a declared option.
func (g *GameOptions) Contains(path string) bool {
	return g.paths.ContainsPath(path)
}

// Defaults returns the default option index of every category.
func (g *GameOptions) Defaults() []int {
	out := make([]int, len(g.categories))
	for i, c := range g.categories {
		out[i] = c.DefaultIndex()
	}
	return out
}

// Selections maps the selected paths onto one option index per category,
// starting from the defaults. If any path is unknown, the defaults are
// returned along with the unknown paths.
func (g *GameOptions) Selections(selected []string) ([]int, []string) {
	indices := g.Defaults()
	var unknown []string
	for _, p := range selected {
		parts := trie.Split(p)
		if len(parts) != 2 || !g.paths.Contains(parts) {
			unknown = append(unknown, p)
			continue
		}
		for ci, c := range g.categories {
			if c.Heading != parts[0] {
				continue
			}
			if oi := c.Find(parts[1]); oi >= 0 {
				indices[ci] = oi
				break
			}
		}
	}
	if len(unknown) > 0 {
		return g.Defaults(), unknown
	}
	return indices, nil
}

// ActiveStrings returns the selected path of every category.
func (g *GameOptions) ActiveStrings(indices []int) []string {
	out := make([]string, 0, len(g.categories))
	for i, c := range g.categories {
		if i < len(indices) {
			out = append(out, c.Path(indices[i]))
		}
	}
	return out
}

// AllOptionStrings returns every declared path in declaration order.
func (g *GameOptions) AllOptionStrings() []string {
	var out []string
	for _, c := range g.categories {
		for i := range c.Options {
			out = append(out, c.Path(i))
		}
	}
	return out
}

// quotedAfter returns the first quoted literal at or after from, unquoted,
// and the offset just past it. Only whitespace may precede it.
func quotedAfter(s string, from int) (string, int, error) {
	pos := text.SkipSpace(s, from)
	if pos >= len(s) || s[pos] != '"' {
		return "", 0, errors.New("missing quoted name")
	}
	close := text.MatchingQuoteAt(s, pos)
	if close < 0 {
		return "", 0, errors.New("unterminated quoted name")
	}
	return s[pos+1 : close], close + 1, nil
}

// angleValues returns the contents of every <...> group in s. Anything else
// but whitespace is an error.
func angleValues(s string) ([]string, error) {
	var out []string
	for pos := text.SkipSpace(s, 0); pos < len(s); pos = text.SkipSpace(s, pos) {
		if s[pos] != '<' {
			return nil, fmt.Errorf("unexpected %q", s[pos:])
		}
		close := text.MatchingAt(s, pos)
		if close < 0 {
			return nil, errors.New("unclosed <")
		}
		out = append(out, s[pos+1:close])
		pos = close + 1
	}
	return out, nil
}

// countStars returns the number of '*' priority markers starting at from.
func countStars(s string, from int) int {
	n := 0
	for from+n < len(s) && s[from+n] == '*' {
		n++
	}
	return n
}
