package expand

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ludeme/ludx/internal/define"
	"github.com/ludeme/ludx/internal/desc"
	"github.com/ludeme/ludx/internal/text"
	"github.com/ludeme/ludx/internal/types"
)

const (
	// nullArg is the argument that deletes its placeholder.
	nullArg = "~"

	// deleted marks a deleted placeholder until the stage ends. NUL cannot
	// occur in a description, so the marker never collides with user text.
	deleted = "\x00~\x00"

	metadataMarker = "\x00metadata\x00"
)

var (
	placeholderRe = regexp.MustCompile(`#[1-9][0-9]*`)

	// protectedKeywords must not be followed by a macro call: the quoted
	// string after them is a name, not a tag.
	protectedKeywords = map[string]bool{
		"game":     true,
		"match":    true,
		"instance": true,
	}
)

// expandDefines extracts the in-file defines, then repeats in-file, library
// and AI companion expansion until a whole cycle leaves the text unchanged.
func (r *run) expandDefines(s string) (string, error) {
	s, local, err := r.extractDefines(s)
	if err != nil {
		return s, err
	}

	library := r.libraryDefines(local)
	for {
		before := s

		s, err = r.expandAll(s, local)
		if err != nil {
			return s, err
		}

		s, err = r.expandLibrary(s, library)
		if err != nil {
			return s, err
		}

		s, err = r.expandAI(s)
		if err != nil {
			return s, err
		}

		if s == before {
			break
		}
	}
	return strings.ReplaceAll(s, deleted, ""), nil
}

// extractDefines removes every (define ...) clause from s.
func (r *run) extractDefines(s string) (string, []*define.Define, error) {
	var defines []*define.Define
	seen := make(map[string]bool)
	for {
		clause, start, end, ok := text.Clause(s, "define", 0)
		if !ok {
			if start >= 0 {
				return s, nil, types.Diagnosef(RuleDefines, "%w: unclosed (define clause", define.ErrMalformedDefine)
			}
			break
		}
		d, err := define.Interpret(clause, false)
		if err != nil {
			return s, nil, types.NewDiagnostic(RuleDefines, -1, err)
		}
		if seen[d.Tag()] {
			return s, nil, types.Diagnosef(RuleDefines, "%w: %s is defined more than once", define.ErrDuplicateDefine, d.Tag())
		}
		seen[d.Tag()] = true
		if d.StartsLowercase() {
			r.report.AddWarning(RuleDefines, "Define %s should start with an uppercase letter.", d.Tag())
		}
		defines = append(defines, d)
		s = s[:start] + s[end+1:]
	}

	for _, d := range defines {
		if err := r.resolveSelfReference(d); err != nil {
			return s, nil, err
		}
	}
	return s, defines, nil
}

// resolveSelfReference handles an in-file define whose body calls its own
// tag. When the tag shadows a library define, the library body is spliced
// into the in-file body once; any other self reference can never finish.
func (r *run) resolveSelfReference(d *define.Define) error {
	if _, _, ok := findCall(d.Expression(), d.Tag(), 0); !ok {
		return nil
	}
	lib, ok := r.libraryGet(d.Tag())
	if !ok {
		return types.Diagnosef(RuleDefines, "%w: %s refers to itself", ErrSuspectedRecursion, d.Tag())
	}
	body, _, err := r.expandOne(d.Expression(), lib, false)
	if err != nil {
		return err
	}
	d.SetExpression(body)
	r.report.AddLog("Define %s wraps the library define of the same name.", d.Tag())
	return nil
}

func (r *run) libraryGet(tag string) (*define.Define, bool) {
	if r.registry == nil {
		return nil, false
	}
	return r.registry.Get(tag)
}

// libraryDefines returns the library defines not shadowed by local ones.
func (r *run) libraryDefines(local []*define.Define) []*define.Define {
	if r.registry == nil {
		return nil
	}
	shadowed := make(map[string]bool, len(local))
	for _, d := range local {
		shadowed[d.Tag()] = true
	}
	var out []*define.Define
	for _, d := range r.registry.Sorted() {
		if shadowed[d.Tag()] {
			r.logger.Debug("in-file define shadows library define", zap.String("tag", d.Tag()))
			r.report.AddLog("Define %s overrides the library define.", d.Tag())
			continue
		}
		out = append(out, d)
	}
	return out
}

// expandLibrary expands the library defines with the metadata block
// spliced out, so library macros never rewrite metadata.
func (r *run) expandLibrary(s string, library []*define.Define) (string, error) {
	if len(library) == 0 {
		return s, nil
	}
	metadata, start, end, ok := text.Clause(s, "metadata", 0)
	if ok {
		s = s[:start] + metadataMarker + s[end+1:]
	}
	s, err := r.expandAll(s, library)
	if err != nil {
		return s, err
	}
	if ok {
		s = strings.Replace(s, metadataMarker, metadata, 1)
	}
	return s, nil
}

// expandAI expands the companion "<Game>_ai" define once, if the game has
// one and refers to it.
func (r *run) expandAI(s string) (string, error) {
	if r.registry == nil {
		return s, nil
	}
	name := desc.GameName(s)
	if name == "" {
		return s, nil
	}
	ai, ok := r.registry.AI(name)
	if !ok {
		return s, nil
	}
	out, n, err := r.expandOne(s, ai, true)
	if err != nil {
		return s, err
	}
	if n > 0 {
		r.report.AddLog("AI define %s expanded.", ai.Tag())
	}
	return out, nil
}

// expandAll expands the given defines to a fixed point.
func (r *run) expandAll(s string, defines []*define.Define) (string, error) {
	for {
		changed := false
		for _, d := range defines {
			if !strings.Contains(s, d.Tag()) {
				continue
			}
			out, n, err := r.expandOne(s, d, true)
			if err != nil {
				return s, err
			}
			if n > 0 {
				changed = true
				s = out
			}
		}
		if !changed {
			return s, nil
		}
	}
}

// expandOne replaces every unprotected call of d in s and returns the new
// text and the number of replacements. Each replacement counts against the
// iteration cap and, if record is set, is added to the define's history.
func (r *run) expandOne(s string, d *define.Define, record bool) (string, int, error) {
	n := 0
	for from := 0; ; {
		start, tagAt, ok := findCall(s, d.Tag(), from)
		if !ok {
			return s, n, nil
		}

		r.iterations++
		if r.iterations > r.limits.MaxIterations {
			return s, n, types.Diagnosef(RuleDefines, "%w: %s after %d expansions", ErrSuspectedRecursion, d.Tag(), r.limits.MaxIterations)
		}

		var args []string
		end := tagAt + len(d.Tag()) - 1
		if start < tagAt {
			end = text.MatchingBracketAt(s, start)
			if end < 0 {
				return s, n, types.Diagnosef(RuleDefines, "%w: unclosed call of %s", ErrMalformedCall, d.Tag())
			}
			var err error
			args, err = parseArgs(s[tagAt+len(d.Tag()) : end])
			if err != nil {
				return s, n, types.Diagnosef(RuleDefines, "%w: %s: %v", ErrMalformedCall, d.Tag(), err)
			}
		}

		instance := substitute(d.Expression(), args)
		if record {
			r.d.Instances(d).Add(instance)
		}
		s = s[:start] + instance + s[end+1:]
		if err := r.checkLength(RuleDefines, s, ErrSuspectedRecursion); err != nil {
			return s, n, err
		}
		n++
		from = start + len(instance)
	}
}

// findCall finds the next call of tag at or after from. A call is either
// ("Tag" args...), where start is the opening bracket, or a bare "Tag",
// where start equals tagAt. Occurrences right after a protected keyword
// are skipped.
func findCall(s, tag string, from int) (start, tagAt int, ok bool) {
	for from < len(s) {
		i := strings.Index(s[from:], tag)
		if i < 0 {
			return 0, 0, false
		}
		tagAt = from + i
		from = tagAt + len(tag)
		if isProtected(s, tagAt) {
			continue
		}
		if tagAt > 0 && s[tagAt-1] == '(' {
			return tagAt - 1, tagAt, true
		}
		return tagAt, tagAt, true
	}
	return 0, 0, false
}

// isProtected reports whether the word before offset at is a protected
// keyword, as in (game "Tag" ...).
func isProtected(s string, at int) bool {
	j := at - 1
	for j >= 0 && text.IsSpace(s[j]) {
		j--
	}
	end := j + 1
	for j >= 0 && !text.IsSeparator(s[j]) {
		j--
	}
	return protectedKeywords[s[j+1:end]]
}

// parseArgs splits the text after a tag into arguments: bracketed, quoted
// or braced clauses, name:value pairs whose value may be any of those, and
// bare symbols.
func parseArgs(span string) ([]string, error) {
	var args []string
	for i := text.SkipSpace(span, 0); i < len(span); i = text.SkipSpace(span, i) {
		end, err := argEnd(span, i)
		if err != nil {
			return nil, err
		}
		args = append(args, span[i:end+1])
		i = end + 1
	}
	return args, nil
}

// argEnd returns the offset of the last byte of the argument at i.
func argEnd(span string, i int) (int, error) {
	switch span[i] {
	case '(', '{':
		end := text.MatchingAt(span, i)
		if end < 0 {
			return 0, fmt.Errorf("unclosed %q in arguments", span[i])
		}
		return end, nil
	case '"':
		end := text.MatchingQuoteAt(span, i)
		if end < 0 {
			return 0, fmt.Errorf("unterminated string in arguments")
		}
		return end, nil
	case ')', '}':
		return 0, fmt.Errorf("unexpected %q in arguments", span[i])
	}

	j := i
	for j < len(span) && !text.IsSeparator(span[j]) {
		j++
	}
	if j < len(span) && j > i && span[j-1] == ':' {
		switch span[j] {
		case '(', '{', '"':
			return argEnd(span, j)
		}
	}
	return j - 1, nil
}

// substitute fills #1..#N in body. Placeholders whose argument is missing
// or the null argument are marked deleted.
func substitute(body string, args []string) string {
	return placeholderRe.ReplaceAllStringFunc(body, func(m string) string {
		n, err := strconv.Atoi(m[1:])
		if err != nil || n > len(args) || args[n-1] == nullArg {
			return deleted
		}
		return args[n-1]
	})
}
