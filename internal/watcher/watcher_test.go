package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyhabit/internal/config"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
	calls   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{calls: make(chan struct{}, 16)}
}

func (r *recorder) handle(files []string) error {
	r.mu.Lock()
	r.batches = append(r.batches, files)
	r.mu.Unlock()
	r.calls <- struct{}{}
	return nil
}

func (r *recorder) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-r.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[len(r.batches)-1]
}

func TestDebouncerCoalescesAndSorts(t *testing.T) {
	rec := newRecorder()
	d := newDebouncer(20 * time.Millisecond)

	d.add(FileChangeEvent{Path: "b.py", Op: fsnotify.Write}, rec.handle)
	d.add(FileChangeEvent{Path: "a.py", Op: fsnotify.Write}, rec.handle)
	d.add(FileChangeEvent{Path: "b.py", Op: fsnotify.Write}, rec.handle)

	assert.Equal(t, []string{"a.py", "b.py"}, rec.wait(t))
	assert.Len(t, rec.batches, 1)
}

func TestDebouncerDropsRemovedFiles(t *testing.T) {
	rec := newRecorder()
	d := newDebouncer(20 * time.Millisecond)

	d.add(FileChangeEvent{Path: "gone.py", Op: fsnotify.Write}, rec.handle)
	d.add(FileChangeEvent{Path: "gone.py", Op: fsnotify.Remove}, rec.handle)
	d.add(FileChangeEvent{Path: "kept.py", Op: fsnotify.Create}, rec.handle)

	assert.Equal(t, []string{"kept.py"}, rec.wait(t))
}

func TestDebouncerStop(t *testing.T) {
	rec := newRecorder()
	d := newDebouncer(20 * time.Millisecond)
	d.add(FileChangeEvent{Path: "a.py", Op: fsnotify.Write}, rec.handle)
	d.stop()
	d.add(FileChangeEvent{Path: "b.py", Op: fsnotify.Write}, rec.handle)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.batches)
}

func TestFileFilters(t *testing.T) {
	assert.True(t, isPythonFile("pkg/app.py"))
	assert.False(t, isPythonFile("pkg/app.pyc"))
	assert.False(t, isPythonFile("main.go"))

	assert.True(t, shouldSkipFile(".app.py"))
	assert.True(t, shouldSkipFile("app.py~"))
	assert.True(t, shouldSkipFile("app.py.swp"))
	assert.False(t, shouldSkipFile("app.py"))
}

func TestWatchSkipsExcludedDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "venv", "lib"), 0755))

	fw, err := NewFileWatcher(config.DefaultConfig(), 20*time.Millisecond)
	require.NoError(t, err)
	defer fw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Watch(ctx, []string{root}, func([]string) error { return nil }))

	assert.Equal(t, []string{root, filepath.Join(root, "pkg")}, fw.GetWatchedPaths())
}

func TestWatchReportsChangedPythonFiles(t *testing.T) {
	root := t.TempDir()
	rec := newRecorder()

	fw, err := NewFileWatcher(nil, 50*time.Millisecond)
	require.NoError(t, err)
	defer fw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Watch(ctx, []string{root}, rec.handle))

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644))
	target := filepath.Join(root, "app.py")
	require.NoError(t, os.WriteFile(target, []byte("x = 1\n"), 0644))

	assert.Equal(t, []string{target}, rec.wait(t))
}

func TestWatchMissingPath(t *testing.T) {
	fw, err := NewFileWatcher(nil, DefaultDebounce)
	require.NoError(t, err)
	defer fw.Close()

	err = fw.Watch(context.Background(), []string{filepath.Join(t.TempDir(), "nope")}, func([]string) error { return nil })
	assert.Error(t, err)
}
