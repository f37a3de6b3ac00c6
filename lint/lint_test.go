package lint

import (
	"context"
	"errors"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ludeme/ludx/internal/desc"
	"github.com/ludeme/ludx/internal/expand"
	"github.com/ludeme/ludx/internal/types"
)

type mockLintEngine struct {
	mock.Mock
}

func (m *mockLintEngine) Run(filePath string) ([]types.Issue, error) {
	args := m.Called(filePath)
	return args.Get(0).([]types.Issue), args.Error(1)
}

func (m *mockLintEngine) RunSource(source []byte) ([]types.Issue, error) {
	args := m.Called(source)
	return args.Get(0).([]types.Issue), args.Error(1)
}

func (m *mockLintEngine) IgnoreRule(rule string) {
	m.Called(rule)
}

func (m *mockLintEngine) IgnorePath(path string) {
	m.Called(path)
}

func issueAt(rule, filename, message string) types.Issue {
	return types.Issue{
		Rule:     rule,
		Filename: filename,
		Start:    token.Position{Filename: filename, Offset: 0, Line: 1, Column: 1},
		End:      token.Position{Filename: filename, Offset: 10, Line: 1, Column: 11},
		Message:  message,
	}
}

func TestProcessFile(t *testing.T) {
	t.Parallel()
	expected := []types.Issue{issueAt("test-rule", "game.lud", "Test issue")}
	mockEngine := new(mockLintEngine)
	mockEngine.On("Run", "game.lud").Return(expected, nil)

	issues, err := ProcessFile(mockEngine, "game.lud")

	assert.NoError(t, err)
	assert.Equal(t, expected, issues)
	mockEngine.AssertExpectations(t)
}

func TestProcessSource(t *testing.T) {
	t.Parallel()
	source := []byte(`(game "Hex")`)
	expected := []types.Issue{issueAt("test-rule", "", "Test issue")}
	mockEngine := new(mockLintEngine)
	mockEngine.On("RunSource", source).Return(expected, nil)

	issues, err := ProcessSource(mockEngine, source)

	assert.NoError(t, err)
	assert.Equal(t, expected, issues)
	mockEngine.AssertExpectations(t)
}

func TestProcessPath(t *testing.T) {
	t.Parallel()
	logger := zap.NewNop()
	ctx := context.Background()

	tempDir := t.TempDir()
	paths := createTempFiles(t, tempDir, "a.lud", "b.lud", "skipped.txt")

	expected := []types.Issue{
		issueAt("rule1", paths[0], "Test issue 1"),
		issueAt("rule2", paths[1], "Test issue 2"),
	}

	mockEngine := new(mockLintEngine)
	mockEngine.On("Run", paths[0]).Return([]types.Issue{expected[0]}, nil)
	mockEngine.On("Run", paths[1]).Return([]types.Issue{expected[1]}, nil)

	issues, err := ProcessPath(ctx, logger, mockEngine, tempDir, ProcessFile)

	assert.NoError(t, err)
	assert.Equal(t, expected, issues, "issues come in file order")
	mockEngine.AssertExpectations(t)
	mockEngine.AssertNotCalled(t, "Run", paths[2])
}

func TestProcessPathSkipsFailedFiles(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()
	paths := createTempFiles(t, tempDir, "good.lud", "bad.lud")

	good := issueAt("rule", paths[0], "found")
	mockEngine := new(mockLintEngine)
	mockEngine.On("Run", paths[0]).Return([]types.Issue{good}, nil)
	mockEngine.On("Run", paths[1]).Return([]types.Issue(nil), errors.New("unreadable"))

	issues, err := ProcessPath(context.Background(), zap.NewNop(), mockEngine, tempDir, ProcessFile)
	require.NoError(t, err)
	assert.Equal(t, []types.Issue{good}, issues)
}

func TestProcessPathSingleFile(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()
	paths := createTempFiles(t, tempDir, "one.lud", "notes.txt")

	mockEngine := new(mockLintEngine)
	mockEngine.On("Run", paths[0]).Return([]types.Issue(nil), errors.New("unreadable"))

	_, err := ProcessPath(context.Background(), nil, mockEngine, paths[0], ProcessFile)
	assert.Error(t, err)

	issues, err := ProcessPath(context.Background(), nil, mockEngine, paths[1], ProcessFile)
	assert.NoError(t, err)
	assert.Empty(t, issues)

	_, err = ProcessPath(context.Background(), nil, mockEngine, filepath.Join(tempDir, "missing"), ProcessFile)
	assert.Error(t, err)
}

func TestProcessFiles(t *testing.T) {
	t.Parallel()
	logger := zap.NewNop()
	ctx := context.Background()

	tempDir := t.TempDir()
	paths := createTempFiles(t, tempDir, "a.lud", "b.lud")

	expected := []types.Issue{
		issueAt("rule1", paths[0], "Test issue 1"),
		issueAt("rule2", paths[1], "Test issue 2"),
	}

	mockEngine := new(mockLintEngine)
	mockEngine.On("Run", paths[0]).Return([]types.Issue{expected[0]}, nil)
	mockEngine.On("Run", paths[1]).Return([]types.Issue{expected[1]}, nil)

	issues, err := ProcessFiles(ctx, logger, mockEngine, paths, ProcessFile)

	assert.NoError(t, err)
	assert.Equal(t, expected, issues)
	mockEngine.AssertExpectations(t)
}

func TestProcessSources(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	expected := []types.Issue{
		issueAt("rule1", "", "Test issue 1"),
		issueAt("rule2", "", "Test issue 2"),
	}

	mockEngine := new(mockLintEngine)
	mockEngine.On("RunSource", []byte(`(game "One")`)).Return([]types.Issue{expected[0]}, nil)
	mockEngine.On("RunSource", []byte(`(game "Two")`)).Return([]types.Issue{expected[1]}, nil)

	issues, err := ProcessSources(ctx, zap.NewNop(), mockEngine,
		[][]byte{[]byte(`(game "One")`), []byte(`(game "Two")`)}, ProcessSource)

	assert.NoError(t, err)
	assert.Equal(t, expected, issues)
	mockEngine.AssertExpectations(t)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "ludx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: mine
rules:
  version:
    severity: off
  known-strings:
    severity: warning
limits:
  max_range: 50
defines: [defs]
options: ["Board Size/5x5"]
ruleset: 1
`), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mine", config.Name)
	assert.Equal(t, types.SeverityOff, config.Rules["version"].Severity)
	assert.Equal(t, types.SeverityWarning, config.Rules["known-strings"].Severity)
	assert.Equal(t, 50, config.Limits.MaxRange)
	assert.Equal(t, []string{"defs"}, config.Defines)
	assert.Equal(t, []string{"Board Size/5x5"}, config.Options)
	require.NotNil(t, config.Ruleset)
	assert.Equal(t, 1, *config.Ruleset)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rules:\n  version:\n    severity: loud\n"), 0o644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = LoadConfig(empty)
	assert.NoError(t, err)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	config := DefaultConfig()
	assert.Equal(t, "ludx", config.Name)
	assert.Equal(t, expand.DefaultLimits(), config.Limits)
	assert.Nil(t, config.Ruleset)
}

func TestNewWithConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "defs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs", "Tiny.def"),
		[]byte(`(define "Tiny" (board (square 2)))`), 0o644))

	config := DefaultConfig()
	config.Defines = []string{"defs"}
	config.Cache = ".cache"
	engine, err := NewWithConfig(config, dir, nil)
	require.NoError(t, err)

	_, ok := engine.Registry().Get(`"Tiny"`)
	assert.True(t, ok)
	_, err = os.Stat(filepath.Join(dir, ".cache"))
	assert.NoError(t, err)

	d, report := engine.Expand("", `(game "T" (players 2) (equipment {("Tiny")}))`, desc.NewUserSelections())
	require.False(t, report.IsError(), report.String())
	assert.Contains(t, d.Expanded, "(square 2)")
}

func createTempFiles(t *testing.T, dir string, fileNames ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(fileNames))
	for _, fileName := range fileNames {
		filePath := filepath.Join(dir, fileName)
		f, err := os.Create(filePath)
		require.NoError(t, err)
		f.Close()
		paths = append(paths, filePath)
	}
	return paths
}
