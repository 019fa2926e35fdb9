package watcher

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debouncer collects events per path and flushes them once no new event
// has arrived for delay.
type debouncer struct {
	delay   time.Duration
	events  map[string]FileChangeEvent
	timer   *time.Timer
	mutex   sync.Mutex
	stopped bool
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:  delay,
		events: make(map[string]FileChangeEvent),
	}
}

func (d *debouncer) add(event FileChangeEvent, handler FileChangeHandler) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.stopped {
		return
	}
	d.events[event.Path] = event
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.flush(handler)
	})
}

// flush hands the pending paths to handler. Files whose last event removed
// them are dropped. handler runs without the lock held so new events keep
// queueing while it works.
func (d *debouncer) flush(handler FileChangeHandler) {
	d.mutex.Lock()
	if d.stopped || len(d.events) == 0 {
		d.mutex.Unlock()
		return
	}
	changedFiles := make([]string, 0, len(d.events))
	for path, ev := range d.events {
		if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
			continue
		}
		changedFiles = append(changedFiles, path)
	}
	d.events = make(map[string]FileChangeEvent)
	d.mutex.Unlock()

	if len(changedFiles) == 0 {
		return
	}
	slices.Sort(changedFiles)
	if err := handler(changedFiles); err != nil {
		slog.Error("watch handler failed", slog.String("error", err.Error()))
	}
}

func (d *debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.stopped = true
}
