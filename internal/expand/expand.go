// Package expand turns a raw game description into its fully resolved form.
//
// Expansion runs a fixed sequence of stages over the text: comment removal,
// option realisation, ruleset extraction, macro expansion, a second comment
// pass, numeric and site range expansion, metadata extraction, cleanup and
// tokenization. Each stage returns the rewritten text or a
// *types.Diagnostic; the first failure stops the run.
//
// Every loop that can grow the text is bounded by Limits, so a description
// that would expand forever fails with an error instead of hanging.
package expand

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ludeme/ludx/internal/define"
	"github.com/ludeme/ludx/internal/desc"
	"github.com/ludeme/ludx/internal/text"
	"github.com/ludeme/ludx/internal/token"
	"github.com/ludeme/ludx/internal/types"
)

var (
	ErrSuspectedRecursion    = errors.New("suspected infinitely recursive macro")
	ErrRangeTooLarge         = errors.New("range too large")
	ErrUnknownRequirement    = errors.New("unknown useFor requirement")
	ErrSelfReferentialOption = errors.New("suspected self-referential option")
	ErrDoubledBracket        = errors.New("unmatched doubled bracket")
	ErrNoTokens              = errors.New("could not tokenize description")
	ErrMalformedCall         = errors.New("malformed macro call")
	ErrMalformedGuard        = errors.New("malformed useFor guard")
)

// Rule names under which stage failures are reported.
const (
	RuleComments = "comments"
	RuleOptions  = "options"
	RuleRulesets = "rulesets"
	RuleDefines  = "defines"
	RuleRanges   = "ranges"
	RuleSites    = "site-ranges"
	RuleMetadata = "metadata"
	RuleCleanup  = "cleanup"
	RuleTokens   = "tokens"
)

// Limits bound the expansion loops.
type Limits struct {
	// MaxIterations caps macro replacements in one run.
	MaxIterations int `yaml:"max_iterations"`
	// MaxCharacters caps the length of the text while it is rewritten.
	MaxCharacters int `yaml:"max_characters"`
	// MaxRange caps the span of a numeric or site range.
	MaxRange int `yaml:"max_range"`
	// MaxOptionExpansions caps option substitution passes.
	MaxOptionExpansions int `yaml:"max_option_expansions"`
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxIterations:       10000,
		MaxCharacters:       1_000_000,
		MaxRange:            1000,
		MaxOptionExpansions: 100,
	}
}

// orDefault fills zero fields from DefaultLimits.
func (l Limits) orDefault() Limits {
	def := DefaultLimits()
	if l.MaxIterations <= 0 {
		l.MaxIterations = def.MaxIterations
	}
	if l.MaxCharacters <= 0 {
		l.MaxCharacters = def.MaxCharacters
	}
	if l.MaxRange <= 0 {
		l.MaxRange = def.MaxRange
	}
	if l.MaxOptionExpansions <= 0 {
		l.MaxOptionExpansions = def.MaxOptionExpansions
	}
	return l
}

// Expander expands descriptions against a macro library. It holds no per
// run state and may be used by several goroutines at once.
type Expander struct {
	registry *define.Registry
	limits   Limits
	tokens   token.Builder
	logger   *zap.Logger
}

// Option configures an Expander.
type Option func(*Expander)

func WithLimits(l Limits) Option {
	return func(e *Expander) { e.limits = l.orDefault() }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Expander) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTokenBuilder replaces the default lexer used by the last stage.
func WithTokenBuilder(b token.Builder) Option {
	return func(e *Expander) {
		if b != nil {
			e.tokens = b
		}
	}
}

// New returns an expander over the given registry. A nil registry means no
// library macros.
func New(registry *define.Registry, opts ...Option) *Expander {
	e := &Expander{
		registry: registry,
		limits:   DefaultLimits(),
		tokens:   token.Lexer{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Expander) Limits() Limits { return e.limits }

// run is the state of one expansion.
type run struct {
	*Expander
	d      *desc.Description
	sel    *desc.UserSelections
	report *types.Report

	iterations int
}

type stage struct {
	rule string
	fn   func(*run, string) (string, error)
}

var stages = []stage{
	{RuleComments, (*run).removeComments},
	{RuleOptions, (*run).realiseOptions},
	{RuleRulesets, (*run).realiseRulesets},
	{RuleDefines, (*run).expandDefines},
	{RuleComments, (*run).removeComments},
	{RuleRanges, (*run).expandRanges},
	{RuleSites, (*run).expandSiteRanges},
	{RuleMetadata, (*run).extractMetadata},
	{RuleCleanup, (*run).cleanUp},
	{RuleTokens, (*run).tokenize},
}

// Expand runs every stage over d.Raw, updating d in place. The first
// failure is recorded in report and returned; d.Expanded then holds the
// text as it was after the last successful stage.
func (e *Expander) Expand(d *desc.Description, sel *desc.UserSelections, report *types.Report) error {
	if sel == nil {
		sel = desc.NewUserSelections()
	}
	r := &run{Expander: e, d: d, sel: sel, report: report}

	s := d.Raw
	for _, st := range stages {
		if report.IsError() {
			return fmt.Errorf("expansion stopped before %s: earlier error", st.rule)
		}
		out, err := st.fn(r, s)
		if err != nil {
			report.Fail(st.rule, err)
			e.logger.Debug("expansion failed", zap.String("stage", st.rule), zap.Error(err))
			return err
		}
		s = out
		if st.rule != RuleTokens {
			d.Expanded = s
		}
	}
	return nil
}

// checkLength fails once the text outgrows the character cap.
func (r *run) checkLength(rule string, s string, cause error) error {
	if len(s) > r.limits.MaxCharacters {
		return types.Diagnosef(rule, "%w: text grew past %d characters", cause, r.limits.MaxCharacters)
	}
	return nil
}

func (r *run) removeComments(s string) (string, error) {
	return text.StripComments(s), nil
}

func (r *run) tokenize(s string) (string, error) {
	root := r.tokens.Populate(s)
	if root == nil || root.Type == token.None {
		return s, types.Diagnosef(RuleTokens, "%w", ErrNoTokens)
	}
	r.d.Tokens = root
	return s, nil
}
