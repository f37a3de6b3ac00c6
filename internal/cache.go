package internal

import (
	"crypto/md5"
	"encoding/gob"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	tt "github.com/ludeme/ludx/internal/types"
)

const (
	cacheFileName = "ludx_cache.gob"
	cacheVersion  = 1
	defaultMaxAge = 24 * time.Hour
)

// CacheEntry is the result of checking one description.
type CacheEntry struct {
	// Hash is the digest of the description text.
	Hash string
	// Settings is the digest of everything besides the text that shaped
	// the result: rules, limits, selections, grammar and defines.
	Settings  string
	Issues    []tt.Issue
	CreatedAt time.Time
}

type cacheFile struct {
	Version int
	Entries map[string]CacheEntry
}

// Cache keeps the issues of each description file on disk between runs.
// An entry only serves a lookup made with the same text under the same
// settings, and only until it is older than the max age.
type Cache struct {
	CacheDir string

	mutex    sync.Mutex
	entries  map[string]CacheEntry
	maxAge   time.Duration
	settings string

	fingerprint  []string
	dependencies []string
}

// NewCache opens the cache stored in cacheDir, creating the directory if
// needed. Expired entries are dropped on load.
func NewCache(cacheDir string) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cache := &Cache{
		CacheDir: cacheDir,
		entries:  make(map[string]CacheEntry),
		maxAge:   defaultMaxAge,
	}
	if err := cache.load(); err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	cache.refreshSettings()
	return cache, nil
}

func (c *Cache) path() string {
	return filepath.Join(c.CacheDir, cacheFileName)
}

func (c *Cache) load() error {
	file, err := os.Open(c.path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	var stored cacheFile
	if err := gob.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("failed to decode cache file: %w", err)
	}
	if stored.Version != cacheVersion {
		return nil
	}
	for name, entry := range stored.Entries {
		if !c.expired(entry) {
			c.entries[name] = entry
		}
	}
	return nil
}

// save writes the entries to a temporary file renamed over the cache
// file, so a reader never sees a half written cache.
func (c *Cache) save() error {
	tmp, err := os.CreateTemp(c.CacheDir, cacheFileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	stored := cacheFile{Version: cacheVersion, Entries: c.entries}
	if err := gob.NewEncoder(tmp).Encode(stored); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return os.Rename(tmp.Name(), c.path())
}

// Set stores the issues found in content, the text of filename.
func (c *Cache) Set(filename string, content []byte, issues []tt.Issue) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[filename] = CacheEntry{
		Hash:      hashBytes(content),
		Settings:  c.settings,
		Issues:    issues,
		CreatedAt: time.Now(),
	}
	return c.save()
}

// Get returns the issues cached for filename if they were found in the
// same content under the current settings.
func (c *Cache) Get(filename string, content []byte) ([]tt.Issue, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[filename]
	if !exists {
		return nil, false
	}
	if c.expired(entry) || entry.Settings != c.settings || entry.Hash != hashBytes(content) {
		delete(c.entries, filename)
		return nil, false
	}
	return entry.Issues, true
}

func (c *Cache) expired(entry CacheEntry) bool {
	return time.Since(entry.CreatedAt) > c.maxAge
}

// SetFingerprint records the configuration the results depend on. Each
// part is one setting rendered as text; order does not matter.
func (c *Cache) SetFingerprint(parts ...string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.fingerprint = append([]string(nil), parts...)
	sort.Strings(c.fingerprint)
	c.refreshSettings()
}

// SetDependencies records the files the results depend on, such as a
// grammar file or a directory of .def files. Their content is digested
// once, here; later edits are only seen by a new call. An error is
// returned when one of them cannot be read.
func (c *Cache) SetDependencies(paths ...string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, p := range paths {
		if _, err := hashPath(p); err != nil {
			return fmt.Errorf("failed to get hash for %s: %w", p, err)
		}
	}
	c.dependencies = append([]string(nil), paths...)
	c.refreshSettings()
	return nil
}

// refreshSettings recomputes the settings digest from the fingerprint and
// the current content of the dependencies.
func (c *Cache) refreshSettings() {
	h := md5.New()
	for _, part := range c.fingerprint {
		fmt.Fprintf(h, "%s\x00", part)
	}
	for _, p := range c.dependencies {
		sum, err := hashPath(p)
		if err != nil {
			// unreadable dependency: match nothing cached before
			sum = "missing@" + time.Now().String()
		}
		fmt.Fprintf(h, "%s=%s\x00", p, sum)
	}
	c.settings = fmt.Sprintf("%x", h.Sum(nil))
}

func (c *Cache) SetMaxAge(duration time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.maxAge = duration
}

// Len returns the number of entries held.
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.entries)
}

// InvalidateAll drops every entry, also from disk.
func (c *Cache) InvalidateAll() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]CacheEntry)
	return c.save()
}

func hashBytes(content []byte) string {
	return fmt.Sprintf("%x", md5.Sum(content))
}

// hashPath digests a file, or every .def file under a directory in path
// order.
func hashPath(p string) (string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return getFileHash(p)
	}

	h := md5.New()
	err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".def") {
			return nil
		}
		sum, err := getFileHash(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(h, "%s=%s\x00", path, sum)
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func getFileHash(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}
