package internal

import (
	"go/token"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/ludeme/ludx/internal/types"
)

func sampleIssues(filename string) []tt.Issue {
	return []tt.Issue{{
		Rule:     "test-rule",
		Filename: filename,
		Message:  "test issue",
		Start:    token.Position{Filename: filename, Line: 1, Column: 1},
		End:      token.Position{Filename: filename, Line: 1, Column: 10},
		Severity: tt.SeverityWarning,
	}}
}

func TestCache(t *testing.T) {
	tmpDir := t.TempDir()
	cacheDir := filepath.Join(tmpDir, "cache")
	cache, err := NewCache(cacheDir)
	require.NoError(t, err)

	t.Run("SaveAndLoad", func(t *testing.T) {
		filename := filepath.Join(tmpDir, "saved.lud")
		content := []byte(`(game "Saved")`)
		issues := sampleIssues(filename)

		require.NoError(t, cache.Set(filename, content, issues))

		loaded, found := cache.Get(filename, content)
		assert.True(t, found)
		assert.Equal(t, issues, loaded)

		reopened, err := NewCache(cacheDir)
		require.NoError(t, err)
		loaded, found = reopened.Get(filename, content)
		assert.True(t, found)
		assert.Equal(t, issues, loaded)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, found := cache.Get(filepath.Join(tmpDir, "nonexistent.lud"), nil)
		assert.False(t, found)
	})

	t.Run("ContentChanged", func(t *testing.T) {
		filename := filepath.Join(tmpDir, "modified.lud")
		require.NoError(t, cache.Set(filename, []byte(`(game "Before")`), sampleIssues(filename)))

		_, found := cache.Get(filename, []byte(`(game "After")`))
		assert.False(t, found)
		// the stale entry is dropped
		_, found = cache.Get(filename, []byte(`(game "Before")`))
		assert.False(t, found)
	})

	t.Run("Expired", func(t *testing.T) {
		filename := filepath.Join(tmpDir, "old.lud")
		content := []byte(`(game "Old")`)
		require.NoError(t, cache.Set(filename, content, sampleIssues(filename)))

		cache.SetMaxAge(time.Nanosecond)
		defer cache.SetMaxAge(defaultMaxAge)
		time.Sleep(time.Millisecond)

		_, found := cache.Get(filename, content)
		assert.False(t, found)
	})

	t.Run("InvalidateAll", func(t *testing.T) {
		filename := filepath.Join(tmpDir, "all.lud")
		content := []byte(`(game "All")`)
		require.NoError(t, cache.Set(filename, content, sampleIssues(filename)))

		require.NoError(t, cache.InvalidateAll())
		assert.Zero(t, cache.Len())
		_, found := cache.Get(filename, content)
		assert.False(t, found)

		reopened, err := NewCache(cacheDir)
		require.NoError(t, err)
		assert.Zero(t, reopened.Len())
	})
}

func TestCacheFingerprint(t *testing.T) {
	t.Parallel()
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	filename := "game.lud"
	content := []byte(`(game "Print")`)
	cache.SetFingerprint("ruleset=-1", "options=")
	require.NoError(t, cache.Set(filename, content, sampleIssues(filename)))

	cache.SetFingerprint("options=", "ruleset=-1")
	_, found := cache.Get(filename, content)
	assert.True(t, found, "part order does not matter")

	cache.SetFingerprint("options=Board Size/5x5", "ruleset=-1")
	_, found = cache.Get(filename, content)
	assert.False(t, found)
}

func TestCacheDependencies(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	cache, err := NewCache(filepath.Join(tmpDir, "cache"))
	require.NoError(t, err)

	dep := writeFile(t, tmpDir, "grammar.yaml", "version: 1.0.0\n")
	defs := filepath.Join(tmpDir, "defs")
	writeFile(t, defs, "Tiny.def", `(define "Tiny" (board (square 2)))`)
	require.NoError(t, cache.SetDependencies(dep, defs))
	assert.Error(t, cache.SetDependencies(filepath.Join(tmpDir, "missing.yaml")))

	filename := "game.lud"
	content := []byte(`(game "Dep")`)
	require.NoError(t, cache.Set(filename, content, sampleIssues(filename)))
	_, found := cache.Get(filename, content)
	require.True(t, found)

	writeFile(t, tmpDir, "grammar.yaml", "version: 2.0.0\n")
	_, found = cache.Get(filename, content)
	require.True(t, found, "dependencies are digested when set")
	require.NoError(t, cache.SetDependencies(dep, defs))
	_, found = cache.Get(filename, content)
	assert.False(t, found)

	require.NoError(t, cache.Set(filename, content, sampleIssues(filename)))
	writeFile(t, defs, "Tiny.def", `(define "Tiny" (board (square 3)))`)
	require.NoError(t, cache.SetDependencies(dep, defs))
	_, found = cache.Get(filename, content)
	assert.False(t, found)
}

func TestCacheWithEngine(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	engine := newEngine(t, EngineConfig{CacheDir: filepath.Join(tmpDir, "cache")})

	t.Run("CacheHit", func(t *testing.T) {
		filename := writeFile(t, tmpDir, "hit.lud", hexGame)

		issues, err := engine.Run(filename)
		require.NoError(t, err)
		assert.NotEmpty(t, issues) // no version info

		_, found := engine.cache.Get(filename, []byte(hexGame))
		assert.True(t, found)

		cached, err := engine.Run(filename)
		require.NoError(t, err)
		assert.Equal(t, issues, cached)
	})

	t.Run("CacheMiss", func(t *testing.T) {
		filename := writeFile(t, tmpDir, "miss.lud", hexGame)

		issues, err := engine.Run(filename)
		require.NoError(t, err)
		assert.NotEmpty(t, issues)

		writeFile(t, tmpDir, "miss.lud", hexGame+versionInfo)

		fresh, err := engine.Run(filename)
		require.NoError(t, err)
		assert.Empty(t, fresh)
	})
}

func TestCacheConcurrency(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	cache, err := NewCache(filepath.Join(tmpDir, "cache"))
	require.NoError(t, err)

	filename := filepath.Join(tmpDir, "concurrent.lud")
	content := []byte(`(game "Busy")`)
	issues := sampleIssues(filename)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, cache.Set(filename, content, issues))
		}()
		go func() {
			defer wg.Done()
			_, _ = cache.Get(filename, content)
		}()
	}
	wg.Wait()

	loaded, found := cache.Get(filename, content)
	assert.True(t, found)
	assert.Equal(t, issues, loaded)
	_, err = os.Stat(filepath.Join(tmpDir, "cache", cacheFileName))
	assert.NoError(t, err)
}

func TestEngineClearCache(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()

	assert.False(t, newEngine(t, EngineConfig{}).HasCache())
	assert.NoError(t, newEngine(t, EngineConfig{}).ClearCache())

	engine := newEngine(t, EngineConfig{CacheDir: filepath.Join(tmpDir, "cache")})
	require.True(t, engine.HasCache())

	filename := writeFile(t, tmpDir, "hex.lud", hexGame)
	_, err := engine.Run(filename)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.cache.Len())

	require.NoError(t, engine.ClearCache())
	assert.Zero(t, engine.cache.Len())
}
