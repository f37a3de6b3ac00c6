// Package parser validates game descriptions: it expands them, checks that
// the raw and expanded text are balanced, matches every token against the
// grammar and flags quoted strings that nothing in the description defines.
package parser

import (
	"go.uber.org/zap"

	"github.com/ludeme/ludx/internal/desc"
	"github.com/ludeme/ludx/internal/expand"
	"github.com/ludeme/ludx/internal/grammar"
	"github.com/ludeme/ludx/internal/text"
	"github.com/ludeme/ludx/internal/types"
)

// Rule names of the validation checks.
const (
	RuleQuotes       = "quotes"
	RuleBrackets     = "brackets"
	RuleBraces       = "braces"
	RuleOptionTags   = "option-tags"
	RuleTokens       = "tokens"
	RuleSymbols      = "symbols"
	RuleVersion      = "version"
	RuleKnownStrings = "known-strings"
)

// Rules lists every rule the parser and expander report under, for
// configuration and documentation.
var Rules = []string{
	RuleQuotes, RuleBrackets, RuleBraces,
	expand.RuleComments, expand.RuleOptions, expand.RuleRulesets, expand.RuleDefines,
	expand.RuleRanges, expand.RuleSites, expand.RuleMetadata, expand.RuleCleanup, expand.RuleTokens,
	RuleOptionTags, RuleSymbols, grammar.RuleParse, RuleVersion, RuleKnownStrings,
}

// Parser validates descriptions against one grammar.
type Parser struct {
	expander   *expand.Expander
	grammar    grammar.Grammar
	logger     *zap.Logger
	severities map[string]types.Severity
}

type Option func(*Parser)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSeverities overrides the severity of the symbols, version and
// known-strings checks. SeverityOff disables a check.
func WithSeverities(severities map[string]types.Severity) Option {
	return func(p *Parser) {
		for rule, s := range severities {
			p.severities[rule] = s
		}
	}
}

// New returns a parser expanding with exp and matching against g.
func New(exp *expand.Expander, g grammar.Grammar, opts ...Option) *Parser {
	p := &Parser{
		expander:   exp,
		grammar:    g,
		logger:     zap.NewNop(),
		severities: make(map[string]types.Severity),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) Grammar() grammar.Grammar { return p.grammar }

func (p *Parser) Expander() *expand.Expander { return p.expander }

// severity returns the configured severity of rule, or def.
func (p *Parser) severity(rule string, def types.Severity) types.Severity {
	if s, ok := p.severities[rule]; ok {
		return s
	}
	return def
}

// Validate expands d and checks the result, recording every finding in
// report. It returns false once an error is recorded; later checks are
// then skipped.
func (p *Parser) Validate(d *desc.Description, sel *desc.UserSelections, report *types.Report) bool {
	raw := text.MaskComments(d.Raw)

	checks := []func() bool{
		func() bool { return checkQuotes(raw, true, report) },
		func() bool { return checkBalance(raw, true, '(', ')', report) },
		func() bool { return checkBalance(raw, true, '{', '}', report) },
		func() bool { return p.expander.Expand(d, sel, report) == nil },
		func() bool { return checkQuotes(d.Expanded, false, report) },
		func() bool { return checkBalance(d.Expanded, false, '(', ')', report) },
		func() bool { return checkBalance(d.Expanded, false, '{', '}', report) },
		func() bool { return checkOptionTags(d.Expanded, report) },
		func() bool { return checkTokens(d, report) },
		func() bool { return p.checkSymbols(d, report) },
		func() bool { return p.checkVersion(raw, report) },
		func() bool { return p.checkStrings(d, report) },
	}
	for i, check := range checks {
		if report.IsError() || !check() {
			p.logger.Debug("validation stopped", zap.Int("check", i), zap.String("file", report.Filename()))
			return false
		}
	}
	return !report.IsError()
}

// add records a finding of rule at its configured severity. It reports
// whether validation may go on.
func (p *Parser) add(report *types.Report, rule string, def types.Severity, msg string) bool {
	s := p.severity(rule, def)
	if s == types.SeverityOff {
		return true
	}
	report.AddIssue(types.Issue{
		Rule:     rule,
		Filename: report.Filename(),
		Message:  msg,
		Severity: s,
	})
	return s != types.SeverityError
}

func (p *Parser) enabled(rule string) bool {
	return p.severity(rule, types.SeverityError) != types.SeverityOff
}
