package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pyhabit/internal/config"
)

// DefaultDebounce is how long the watcher waits for a burst of saves to
// settle before re-analyzing.
const DefaultDebounce = 500 * time.Millisecond

type FileWatcher struct {
	watcher     *fsnotify.Watcher
	excludeDirs []string
	debouncer   *debouncer

	mu          sync.Mutex
	watchedDirs map[string]bool
}

// FileChangeEvent is the last thing that happened to one path inside a
// debounce window.
type FileChangeEvent struct {
	Path string
	Op   fsnotify.Op
	At   time.Time
}

// FileChangeHandler receives the Python files that changed during one
// debounce window, sorted.
type FileChangeHandler func([]string) error

func NewFileWatcher(cfg *config.Config, delay time.Duration) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &FileWatcher{
		watcher:     watcher,
		excludeDirs: cfg.Files.ExcludeDirs,
		watchedDirs: make(map[string]bool),
		debouncer:   newDebouncer(delay),
	}, nil
}

// Watch registers every directory under paths and dispatches changes to
// handler until ctx is done or Close is called.
func (fw *FileWatcher) Watch(ctx context.Context, paths []string, handler FileChangeHandler) error {
	for _, path := range paths {
		if err := fw.addPath(path); err != nil {
			return fmt.Errorf("failed to watch path %s: %w", path, err)
		}
	}
	go fw.eventLoop(ctx, handler)
	return nil
}

func (fw *FileWatcher) addPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		path = filepath.Dir(path)
	}
	return filepath.WalkDir(path, func(walkPath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if walkPath != path && fw.shouldSkipDir(walkPath) {
			return filepath.SkipDir
		}
		fw.mu.Lock()
		defer fw.mu.Unlock()
		if !fw.watchedDirs[walkPath] {
			if err := fw.watcher.Add(walkPath); err != nil {
				return fmt.Errorf("failed to add directory %s to watcher: %w", walkPath, err)
			}
			fw.watchedDirs[walkPath] = true
		}
		return nil
	})
}

func (fw *FileWatcher) eventLoop(ctx context.Context, handler FileChangeHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event, handler)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event, handler FileChangeHandler) {
	// New directories are watched as they appear.
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !fw.shouldSkipDir(event.Name) {
				if err := fw.addPath(event.Name); err != nil {
					slog.Warn("failed to watch new directory", slog.String("path", event.Name), slog.String("error", err.Error()))
				}
			}
			return
		}
	}
	if !isPythonFile(event.Name) || shouldSkipFile(event.Name) {
		return
	}
	fw.debouncer.add(FileChangeEvent{Path: event.Name, Op: event.Op, At: time.Now()}, handler)
}

func isPythonFile(path string) bool {
	return strings.HasSuffix(path, ".py")
}

func (fw *FileWatcher) shouldSkipDir(path string) bool {
	return slices.Contains(fw.excludeDirs, filepath.Base(path))
}

// editorSuffixes mark swap, backup and temp files written by editors.
var editorSuffixes = []string{".tmp", "~", ".swp", ".swo"}

// shouldSkipFile reports hidden files and editor leftovers.
func shouldSkipFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return true
	}
	return slices.ContainsFunc(editorSuffixes, func(suffix string) bool {
		return strings.HasSuffix(name, suffix)
	})
}

func (fw *FileWatcher) Close() error {
	fw.debouncer.stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) GetWatchedPaths() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return slices.Sorted(maps.Keys(fw.watchedDirs))
}
