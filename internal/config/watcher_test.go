// ABOUTME: Tests for the fsnotify preset directory watcher
// ABOUTME: Validates debounced change detection, filtering, missing dirs, and stop behavior

package config

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_DetectsYAMLChange(t *testing.T) {
	dir := t.TempDir()

	var called atomic.Int32
	w := NewWatcher([]string{dir}, func() { called.Add(1) })
	w.SetQuiet(50 * time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "flow.yaml"), []byte("id: x\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return called.Load() > 0 })
}

func TestWatcher_CoalescesBurst(t *testing.T) {
	dir := t.TempDir()

	var called atomic.Int32
	w := NewWatcher([]string{dir}, func() { called.Add(1) })
	w.SetQuiet(300 * time.Millisecond)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := range 5 {
		name := filepath.Join(dir, "h"+string(rune('a'+i))+".yml")
		if err := os.WriteFile(name, []byte("id: h\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, func() bool { return called.Load() > 0 })
	time.Sleep(400 * time.Millisecond)
	if n := called.Load(); n != 1 {
		t.Errorf("expected one coalesced reload, got %d", n)
	}
}

func TestWatcher_SkipsMissingDirs(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "nope")

	w := NewWatcher([]string{missing, dir}, func() {})
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	got := w.Watched()
	if len(got) != 1 || got[0] != dir {
		t.Errorf("Watched = %v, want [%s]", got, dir)
	}
}

func TestRelevant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: "a.yaml", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "a.YML", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "a.yaml", Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: "a.yaml", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "a.json", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "a.yaml.swp", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		if got := relevant(tt.event); got != tt.want {
			t.Errorf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
		}
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := NewWatcher(nil, func() {})
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop() // should not panic
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w := NewWatcher(nil, func() {})
	w.Stop()
}

func TestWatcher_ConcurrentStop(t *testing.T) {
	w := NewWatcher(nil, func() {})
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	// Multiple goroutines calling Stop concurrently must not panic.
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()
}

func TestWatcher_StartIsIdempotent(t *testing.T) {
	w := NewWatcher(nil, func() {})
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	w.Stop()
}
