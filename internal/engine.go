package internal

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ludeme/ludx/internal/completer"
	"github.com/ludeme/ludx/internal/define"
	"github.com/ludeme/ludx/internal/desc"
	"github.com/ludeme/ludx/internal/expand"
	"github.com/ludeme/ludx/internal/grammar"
	"github.com/ludeme/ludx/internal/nolint"
	"github.com/ludeme/ludx/internal/parser"
	tt "github.com/ludeme/ludx/internal/types"
)

// EngineConfig holds what an Engine is built from.
type EngineConfig struct {
	Rules  map[string]tt.ConfigRule
	Limits expand.Limits
	// DefineDirs are extra macro library directories.
	DefineDirs []string
	// GrammarPath replaces the embedded grammar when set.
	GrammarPath string
	// CacheDir enables the result cache when set.
	CacheDir string
	// Options and Ruleset are the default selections of every run. A nil
	// Ruleset leaves the choice to the description.
	Options []string
	Ruleset *int

	Logger *zap.Logger
}

// Engine validates game description files.
type Engine struct {
	registry *define.Registry
	expander *expand.Expander
	parser   *parser.Parser
	cache    *Cache
	logger   *zap.Logger

	options []string
	ruleset int

	ignoredRules map[string]bool
	ignoredPaths []string

	watcher    *fsnotify.Watcher
	watchDirs  []string
	isWatching bool
	done       chan struct{}
	pending    map[string]*time.Timer
	pendingMu  sync.Mutex
}

// NewEngine creates a new engine.
func NewEngine(config EngineConfig) (*Engine, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var extra []fs.FS
	for _, dir := range config.DefineDirs {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("error accessing define directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("define path %s is not a directory", dir)
		}
		extra = append(extra, os.DirFS(dir))
	}
	registry := define.DefaultRegistry(logger.Named("registry"), extra...)

	var g grammar.Grammar
	if config.GrammarPath != "" {
		st, err := grammar.LoadFile(config.GrammarPath)
		if err != nil {
			return nil, err
		}
		g = st
	} else {
		st, err := grammar.Default()
		if err != nil {
			return nil, err
		}
		g = st
	}

	engine := &Engine{
		registry:     registry,
		logger:       logger,
		options:      config.Options,
		ruleset:      desc.NoRuleset,
		ignoredRules: make(map[string]bool),
	}

	if config.Ruleset != nil {
		engine.ruleset = *config.Ruleset
	}

	severities := engine.applyRules(config.Rules)
	engine.expander = expand.New(registry, expand.WithLimits(config.Limits), expand.WithLogger(logger.Named("expand")))
	engine.parser = parser.New(engine.expander, g,
		parser.WithLogger(logger.Named("parser")),
		parser.WithSeverities(severities),
	)

	if config.CacheDir != "" {
		cache, err := NewCache(config.CacheDir)
		if err != nil {
			return nil, err
		}
		deps := append([]string(nil), config.DefineDirs...)
		if config.GrammarPath != "" {
			deps = append(deps, config.GrammarPath)
		}
		// load the defines now so the digest matches what is used
		registry.Len()
		if err := cache.SetDependencies(deps...); err != nil {
			return nil, err
		}
		cache.SetFingerprint(engine.fingerprint(config.Limits, severities)...)
		engine.cache = cache
	}

	return engine, nil
}

// fingerprint renders the settings a cached result depends on.
func (e *Engine) fingerprint(limits expand.Limits, severities map[string]tt.Severity) []string {
	parts := []string{
		fmt.Sprintf("limits=%+v", limits),
		"options=" + strings.Join(e.options, "\x00"),
		fmt.Sprintf("ruleset=%d", e.ruleset),
	}
	for rule, severity := range severities {
		parts = append(parts, fmt.Sprintf("severity:%s=%s", rule, severity))
	}
	return parts
}

// configurable lists the rules whose severity the parser takes from config.
var configurable = map[string]bool{
	parser.RuleSymbols:      true,
	parser.RuleVersion:      true,
	parser.RuleKnownStrings: true,
}

// applyRules ignores every rule turned off and returns the severities the
// parser should use for the rest.
func (e *Engine) applyRules(rules map[string]tt.ConfigRule) map[string]tt.Severity {
	known := make(map[string]bool, len(parser.Rules))
	for _, r := range parser.Rules {
		known[r] = true
	}

	severities := make(map[string]tt.Severity)
	for key, rule := range rules {
		switch {
		case !known[key]:
			e.logger.Warn("unknown rule in configuration", zap.String("rule", key))
		case configurable[key]:
			severities[key] = rule.Severity
		case rule.Severity == tt.SeverityOff:
			e.IgnoreRule(key)
		default:
			e.logger.Warn("severity of rule is fixed", zap.String("rule", key))
		}
	}
	return severities
}

// HasCache reports whether results are cached between runs.
func (e *Engine) HasCache() bool { return e.cache != nil }

// ClearCache drops every cached result.
func (e *Engine) ClearCache() error {
	if e.cache == nil {
		return nil
	}
	return e.cache.InvalidateAll()
}

// Registry returns the macro library the engine expands with.
func (e *Engine) Registry() *define.Registry { return e.registry }

// Run validates the given file and returns its issues.
func (e *Engine) Run(filename string) ([]tt.Issue, error) {
	if e.isIgnoredPath(filename) {
		return nil, nil
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	if e.cache != nil {
		if issues, ok := e.cache.Get(filename, content); ok {
			e.logger.Debug("cache hit", zap.String("file", filename))
			return e.filterIgnored(issues), nil
		}
	}

	issues := e.check(filename, string(content))

	if e.cache != nil {
		if err := e.cache.Set(filename, content, issues); err != nil {
			e.logger.Warn("failed to cache result", zap.String("file", filename), zap.Error(err))
		}
	}

	return e.filterIgnored(issues), nil
}

// RunSource validates the given source and returns its issues.
func (e *Engine) RunSource(source []byte) ([]tt.Issue, error) {
	return e.filterIgnored(e.check("", string(source))), nil
}

// Expand expands raw without the validation checks and returns the
// description together with the report of the run.
func (e *Engine) Expand(filename string, raw string, sel *desc.UserSelections) (*desc.Description, *tt.Report) {
	if sel == nil {
		sel = e.selections()
	}
	raw = e.complete(filename, raw)
	d := desc.New(raw)
	report := tt.NewReport()
	report.SetSource(filename, raw)
	_ = e.expander.Expand(d, sel, report)
	return d, report
}

func (e *Engine) check(filename string, raw string) []tt.Issue {
	raw = e.complete(filename, raw)
	d := desc.New(raw)
	report := tt.NewReport()
	report.SetSource(filename, raw)
	if !e.parser.Validate(d, e.selections(), report) {
		e.logger.Debug("validation failed", zap.String("file", filename), zap.Int("errors", len(report.Errors())))
	}

	nolintManager := nolint.ParseComments(raw)
	issues := report.Issues()
	filtered := make([]tt.Issue, 0, len(issues))
	for _, issue := range issues {
		if !nolintManager.IsNolint(issue.Start, issue.Rule) {
			filtered = append(filtered, issue)
		}
	}
	return filtered
}

// complete replaces a description holding choice placeholders by its
// first completion.
func (e *Engine) complete(filename string, raw string) string {
	if !completer.NeedsCompleting(raw) {
		return raw
	}
	e.logger.Warn("description needs completing, using the first completion", zap.String("file", filename))
	return completer.Complete(raw, 1)[0].Text
}

// selections returns a fresh copy of the default selections, since the
// expander rewrites them.
func (e *Engine) selections() *desc.UserSelections {
	sel := desc.NewUserSelections(append([]string(nil), e.options...)...)
	if e.ruleset >= 0 {
		sel.Ruleset = e.ruleset
	}
	return sel
}

func (e *Engine) IgnoreRule(rule string) {
	if e.ignoredRules == nil {
		e.ignoredRules = make(map[string]bool)
	}
	e.ignoredRules[rule] = true
}

// IgnorePath skips files matching the given glob pattern or lying under the
// given directory.
func (e *Engine) IgnorePath(path string) {
	e.ignoredPaths = append(e.ignoredPaths, filepath.Clean(path))
}

func (e *Engine) isIgnoredPath(filename string) bool {
	clean := filepath.Clean(filename)
	for _, p := range e.ignoredPaths {
		if ok, _ := filepath.Match(p, clean); ok {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(clean)); ok {
			return true
		}
		if clean == p || strings.HasPrefix(clean, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (e *Engine) filterIgnored(issues []tt.Issue) []tt.Issue {
	if len(e.ignoredRules) == 0 {
		return issues
	}
	filtered := make([]tt.Issue, 0, len(issues))
	for _, issue := range issues {
		if !e.ignoredRules[issue.Rule] {
			filtered = append(filtered, issue)
		}
	}
	return filtered
}

// SourceCode stores the content of a source code file.
type SourceCode struct {
	Lines []string
}

// ReadSourceCode reads the content of a file and returns it as a `SourceCode` struct.
func ReadSourceCode(filename string) (*SourceCode, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(content), "\n")
	return &SourceCode{Lines: lines}, nil
}
