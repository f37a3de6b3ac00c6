package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	tt "github.com/ludeme/ludx/internal/types"
)

// DescriptionExt is the extension of game description files.
const DescriptionExt = ".lud"

// debounce is how long a file must stay unchanged before it is checked,
// so that the several writes of one save are checked once.
const debounce = 100 * time.Millisecond

// ResultHandler receives the issues of a file checked in watch mode. It
// may be called from several goroutines.
type ResultHandler func(filename string, issues []tt.Issue)

// StartWatching checks every description under dirs again whenever it is
// written. Directories created later under dirs are watched too. A nil
// handler logs the results.
func (e *Engine) StartWatching(handler ResultHandler, dirs ...string) error {
	if e.isWatching {
		return errors.New("already watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}

	for _, dir := range dirs {
		if err := addTree(watcher, dir); err != nil {
			watcher.Close()
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}

	if handler == nil {
		handler = e.reportIssues
	}

	e.watcher = watcher
	e.watchDirs = dirs
	e.pending = make(map[string]*time.Timer)
	e.done = make(chan struct{})
	e.isWatching = true
	go e.watchLoop(handler)
	return nil
}

// addTree watches dir and every directory below it, hidden ones excepted.
func addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func (e *Engine) StopWatching() error {
	if !e.isWatching {
		e.logger.Warn("not watching")
		return nil
	}

	e.isWatching = false
	close(e.done)

	e.pendingMu.Lock()
	for name, timer := range e.pending {
		timer.Stop()
		delete(e.pending, name)
	}
	e.pendingMu.Unlock()

	return e.watcher.Close()
}

func (e *Engine) watchLoop(handler ResultHandler) {
	for {
		select {
		case <-e.done:
			return
		case event, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			e.handleFileEvent(event, handler)
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			e.logger.Error("watch error", zap.Error(err))
		}
	}
}

func (e *Engine) handleFileEvent(event fsnotify.Event, handler ResultHandler) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addTree(e.watcher, event.Name); err != nil {
				e.logger.Warn("failed to watch new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}

	if filepath.Ext(event.Name) != DescriptionExt {
		return
	}
	e.schedule(event.Name, handler)
}

// schedule checks filename once it has not changed for the debounce
// period. A new event for the same file restarts the wait.
func (e *Engine) schedule(filename string, handler ResultHandler) {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()

	if timer, ok := e.pending[filename]; ok {
		timer.Reset(debounce)
		return
	}
	e.pending[filename] = time.AfterFunc(debounce, func() {
		e.pendingMu.Lock()
		delete(e.pending, filename)
		e.pendingMu.Unlock()

		select {
		case <-e.done:
			return
		default:
		}
		e.recheck(filename, handler)
	})
}

func (e *Engine) recheck(filename string, handler ResultHandler) {
	// Defines and grammar stay as loaded at engine build, and so does the
	// cache digest describing them.
	issues, err := e.Run(filename)
	if err != nil {
		e.logger.Error("error checking file", zap.String("file", filename), zap.Error(err))
		return
	}
	handler(filename, issues)
}

func (e *Engine) reportIssues(filename string, issues []tt.Issue) {
	if len(issues) == 0 {
		e.logger.Info("no issues found", zap.String("file", filename))
		return
	}

	e.logger.Info("found issues", zap.String("file", filename), zap.Int("count", len(issues)))
	for _, issue := range issues {
		e.logger.Info("issue",
			zap.String("rule", issue.Rule),
			zap.String("severity", issue.Severity.String()),
			zap.Int("line", issue.Start.Line),
			zap.String("message", issue.Message))
	}
}
