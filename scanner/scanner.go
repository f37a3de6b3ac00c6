// Package scanner finds game description files under a directory.
package scanner

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtension is used when New is given no extensions.
const DefaultExtension = ".lud"

type FileInfo struct {
	Path string
	Size int64
	// Dir is the directory of the file relative to the root, "." for the
	// root itself. Game collections group descriptions by category this way.
	Dir string
}

type Scanner struct {
	rootDir    string
	extensions []string
}

// New returns a scanner for the files under rootDir having one of the
// extensions, compared case insensitively.
func New(rootDir string, extensions ...string) *Scanner {
	if len(extensions) == 0 {
		extensions = []string{DefaultExtension}
	}
	return &Scanner{
		rootDir:    rootDir,
		extensions: extensions,
	}
}

// Scan walks the root directory and returns the target files sorted by
// path. Hidden directories are skipped.
func (s *Scanner) Scan() ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.rootDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.IsTarget(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.rootDir, filepath.Dir(path))
		if err != nil {
			rel = filepath.Dir(path)
		}
		files = append(files, FileInfo{
			Path: path,
			Size: info.Size(),
			Dir:  filepath.ToSlash(rel),
		})
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

// Paths returns the paths of Scan.
func (s *Scanner) Paths() ([]string, error) {
	files, err := s.Scan()
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths, err
}

// IsTarget reports whether path has one of the scanner's extensions.
func (s *Scanner) IsTarget(path string) bool {
	ext := filepath.Ext(path)
	for _, targetExt := range s.extensions {
		if strings.EqualFold(ext, targetExt) {
			return true
		}
	}
	return false
}
