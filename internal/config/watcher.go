// ABOUTME: fsnotify-based directory watcher for workflow and hybrid preset hot-reload
// ABOUTME: Bursts of YAML changes are coalesced by a debouncer into one onChange call

package config

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	pilog "github.com/mauromedda/pi-modes/internal/log"
	"github.com/mauromedda/pi-modes/internal/scheduler"
)

var watchLog = pilog.Named("watcher")

// Watcher monitors preset directories and calls onChange after a quiet period.
type Watcher struct {
	dirs     []string
	onChange func()
	quiet    time.Duration

	mu       sync.Mutex
	fs       *fsnotify.Watcher
	debounce *scheduler.Debouncer
	watched  []string
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher that calls onChange when a YAML file in any
// of dirs is created, written, removed or renamed.
func NewWatcher(dirs []string, onChange func()) *Watcher {
	return &Watcher{
		dirs:     dirs,
		onChange: onChange,
		quiet:    250 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// SetQuiet overrides the default debounce window (250ms). Call before Start.
func (w *Watcher) SetQuiet(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quiet = d
}

// Start begins watching. Missing directories are skipped.
// Safe to call multiple times; subsequent calls are no-ops.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			watchLog.Debug("skipping %s: %v", dir, err)
			continue
		}
		w.watched = append(w.watched, dir)
	}

	w.fs = fsw
	w.debounce = scheduler.NewDebouncer(w.quiet, w.onChange)
	w.running = true
	go w.loop(fsw)
	return nil
}

// Watched returns the directories actually being watched.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.watched...)
}

// Stop halts the watcher and waits for its goroutine to exit.
// Safe to call multiple times and concurrently. Pending reloads are dropped.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		running := w.running
		w.running = false
		fsw, deb := w.fs, w.debounce
		w.mu.Unlock()

		close(w.stopCh)
		if !running {
			return
		}
		<-w.doneCh
		deb.Stop()
		if err := fsw.Close(); err != nil {
			watchLog.Warn("closing watcher: %v", err)
		}
	})
}

func (w *Watcher) loop(fsw *fsnotify.Watcher) {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if relevant(event) {
				watchLog.Debug("%s %s", event.Op, event.Name)
				w.debounce.Trigger()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			watchLog.Warn("watch error: %v", err)
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	return ext == ".yaml" || ext == ".yml"
}
