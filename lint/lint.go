// Package lint is the public entry point for checking game description
// files: it loads the configuration, builds the engine and runs it over
// files, directories and in-memory sources.
package lint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/ludeme/ludx/internal"
	"github.com/ludeme/ludx/internal/expand"
	tt "github.com/ludeme/ludx/internal/types"
	"github.com/ludeme/ludx/scanner"
)

// DefaultConfigFile is read when no configuration path is given.
const DefaultConfigFile = ".ludx.yaml"

type LintEngine interface {
	Run(filePath string) ([]tt.Issue, error)
	RunSource(source []byte) ([]tt.Issue, error)
	IgnoreRule(rule string)
	IgnorePath(path string)
}

// New builds an engine from the configuration file. An empty path reads
// DefaultConfigFile if it exists.
func New(configurationPath string, logger *zap.Logger) (*internal.Engine, error) {
	config, err := LoadConfig(configurationPath)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(config, filepath.Dir(configPathOrDefault(configurationPath)), logger)
}

// NewWithConfig builds an engine from config. Relative paths in config are
// taken relative to baseDir.
func NewWithConfig(config Config, baseDir string, logger *zap.Logger) (*internal.Engine, error) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	defines := make([]string, len(config.Defines))
	for i, d := range config.Defines {
		defines[i] = resolve(d)
	}

	return internal.NewEngine(internal.EngineConfig{
		Rules:       config.Rules,
		Limits:      config.Limits,
		DefineDirs:  defines,
		GrammarPath: resolve(config.Grammar),
		CacheDir:    resolve(config.Cache),
		Options:     config.Options,
		Ruleset:     config.Ruleset,
		Logger:      logger,
	})
}

func ProcessSources(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	sources [][]byte,
	processor func(LintEngine, []byte) ([]tt.Issue, error),
) ([]tt.Issue, error) {
	var allIssues []tt.Issue
	for i, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		issues, err := processor(engine, source)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing source", zap.Int("source", i), zap.Error(err))
			}
			return nil, err
		}
		allIssues = append(allIssues, issues...)
	}

	return allIssues, nil
}

func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	paths []string,
	processor func(LintEngine, string) ([]tt.Issue, error),
) ([]tt.Issue, error) {
	var allIssues []tt.Issue
	for _, path := range paths {
		issues, err := ProcessPath(ctx, logger, engine, path, processor)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			return nil, err
		}
		allIssues = append(allIssues, issues...)
	}

	return allIssues, nil
}

type fileResult struct {
	index  int
	issues []tt.Issue
	err    error
}

// ProcessPath runs processor over path, or over every description file
// under it when it is a directory. Directory files are processed by a
// bounded pool of workers; a file that fails is logged and skipped. Issues
// come back in file path order.
func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	path string,
	processor func(LintEngine, string) ([]tt.Issue, error),
) ([]tt.Issue, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}

	s := scanner.New(path)
	if !info.IsDir() {
		if !s.IsTarget(path) {
			return nil, nil
		}
		return processor(engine, path)
	}

	files, err := s.Scan()
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", path, err)
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription(path),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetVisibility(term.IsTerminal(int(os.Stderr.Fd()))),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

	results := make(chan fileResult, len(files))

	// limit the number of workers
	sem := make(chan struct{}, runtime.NumCPU())

	started := 0
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}
		bar.Describe(filepath.Join(path, file.Dir))
		started++
		go func(index int, fp string) {
			defer func() { <-sem }()
			fileIssues, err := processor(engine, fp)
			if err != nil && logger != nil {
				logger.Error("Error processing file", zap.String("file", fp), zap.Error(err))
			}
			_ = bar.Add(1)
			results <- fileResult{index: index, issues: fileIssues, err: err}
		}(i, file.Path)
	}

	perFile := make([][]tt.Issue, len(files))
	for i := 0; i < started; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-results:
			if r.err != nil {
				continue
			}
			perFile[r.index] = r.issues
		}
	}
	_ = bar.Finish()

	var issues []tt.Issue
	for _, fileIssues := range perFile {
		issues = append(issues, fileIssues...)
	}
	return issues, nil
}

func ProcessFile(engine LintEngine, filePath string) ([]tt.Issue, error) {
	return engine.Run(filePath)
}

func ProcessSource(engine LintEngine, source []byte) ([]tt.Issue, error) {
	return engine.RunSource(source)
}

// Config is the content of a configuration file.
type Config struct {
	Name    string                   `yaml:"name"`
	Rules   map[string]tt.ConfigRule `yaml:"rules"`
	Limits  expand.Limits            `yaml:"limits"`
	Defines []string                 `yaml:"defines,omitempty"`
	Grammar string                   `yaml:"grammar,omitempty"`
	Cache   string                   `yaml:"cache,omitempty"`
	Options []string                 `yaml:"options,omitempty"`
	// Ruleset is the index of the default ruleset. Unset means the
	// ruleset is chosen from the active options.
	Ruleset *int `yaml:"ruleset,omitempty"`
}

// DefaultConfig is the configuration written by "ludx init".
func DefaultConfig() Config {
	return Config{
		Name:   "ludx",
		Rules:  map[string]tt.ConfigRule{},
		Limits: expand.DefaultLimits(),
	}
}

func configPathOrDefault(configurationPath string) string {
	if configurationPath == "" {
		return DefaultConfigFile
	}
	return configurationPath
}

// LoadConfig reads the configuration file. A missing file is an error
// unless no path was given.
func LoadConfig(configurationPath string) (Config, error) {
	config, err := parseConfigurationFile(configPathOrDefault(configurationPath))
	if configurationPath == "" && errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return config, err
}

func parseConfigurationFile(configurationPath string) (Config, error) {
	var config Config

	// Read the configuration file
	f, err := os.Open(configurationPath)
	if err != nil {
		return config, err
	}
	defer f.Close()

	// Parse the configuration file
	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(&config)
	if errors.Is(err, io.EOF) {
		return config, nil
	}
	if err != nil {
		return config, fmt.Errorf("error parsing %s: %w", configurationPath, err)
	}

	return config, nil
}
