// ABOUTME: Metrics tracker: folds transitions and typed events into the aggregate
// ABOUTME: Disk writes are debounced and best-effort; failures are logged, never returned to callers

package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mauromedda/pi-modes/internal/config"
	pilog "github.com/mauromedda/pi-modes/internal/log"
	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/scheduler"
)

// DefaultDebounce is the quiet period before a burst of updates is written.
const DefaultDebounce = 5 * time.Second

var metricsLog = pilog.Named("metrics")

// Tracker aggregates mode metrics for a session. Safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	agg   Aggregate
	clock func() time.Time

	path     string
	debounce time.Duration
	saver    *scheduler.Debouncer
	closed   bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.clock = now }
}

// WithPath enables persistence to path. Empty disables it.
func WithPath(path string) Option {
	return func(t *Tracker) { t.path = path }
}

// WithDebounce overrides the persistence quiet period.
func WithDebounce(d time.Duration) Option {
	return func(t *Tracker) { t.debounce = d }
}

// NewTracker creates a tracker with an empty aggregate.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		clock:    time.Now,
		debounce: DefaultDebounce,
	}
	for _, o := range opts {
		o(t)
	}
	t.agg = NewAggregate()
	t.agg.Started = t.clock()
	if t.path != "" {
		t.saver = scheduler.NewDebouncer(t.debounce, t.persist)
	}
	return t
}

// Begin marks entry into the session's initial mode.
func (t *Tracker) Begin(mode modes.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enterLocked(mode, t.clock())
	t.dirtyLocked()
}

// RecordTransition closes the visit to tr.From and opens one to tr.To.
func (t *Tracker) RecordTransition(tr modes.Transition) {
	t.mu.Lock()
	defer t.mu.Unlock()

	at := tr.At
	if at.IsZero() {
		at = t.clock()
	}
	if t.agg.Current == tr.From {
		t.exitLocked(at)
	}
	t.enterLocked(tr.To, at)

	key := tr.Pair().String()
	p := t.agg.Transitions[key]
	if p.Triggers == nil {
		p.Triggers = make(map[modes.Trigger]int)
	}
	p.AvgConfidence = runningAvg(p.AvgConfidence, p.Count, tr.Confidence)
	p.Count++
	p.Triggers[tr.Trigger]++
	t.agg.Transitions[key] = p
	t.agg.TotalTransitions++
	t.dirtyLocked()
}

// Record folds a mode-specific event into the aggregate.
// Invalid events are rejected without changing state.
func (t *Tracker) Record(e Event) error {
	if err := e.validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.agg.apply(e)
	t.dirtyLocked()
	return nil
}

// Snapshot returns a deep copy of the aggregate.
func (t *Tracker) Snapshot() Aggregate {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.agg.Clone()
}

// Restore replaces the aggregate with a. The session keeps its own start time
// only when a carries none.
func (t *Tracker) Restore(a Aggregate) {
	c := a.Clone()
	t.mu.Lock()
	defer t.mu.Unlock()
	if c.Started.IsZero() {
		c.Started = t.agg.Started
	}
	t.agg = c
}

// Marshal serialises the aggregate.
func (t *Tracker) Marshal() ([]byte, error) {
	snap := t.Snapshot()
	return json.MarshalIndent(snap, "", "  ")
}

// Unmarshal decodes an aggregate produced by Marshal.
func Unmarshal(data []byte) (Aggregate, error) {
	var a Aggregate
	if err := json.Unmarshal(data, &a); err != nil {
		return Aggregate{}, fmt.Errorf("decoding metrics: %w", err)
	}
	if a.Version > aggregateVersion {
		return Aggregate{}, fmt.Errorf("metrics version %d is newer than supported %d", a.Version, aggregateVersion)
	}
	a.normalize()
	return a, nil
}

// Load reads a persisted aggregate. A missing file yields (nil, nil).
func Load(path string) (*Aggregate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading metrics: %w", err)
	}
	a, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Save writes the aggregate to path atomically.
func Save(path string, a Aggregate) error {
	if err := config.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metrics: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing temp metrics: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp metrics: %w", err)
	}
	return nil
}

// Pending reports whether a debounced write is scheduled.
func (t *Tracker) Pending() bool {
	return t.saver != nil && t.saver.Pending()
}

// Flush writes any pending update immediately.
func (t *Tracker) Flush() {
	if t.saver != nil {
		t.saver.Flush()
	}
}

// Close accounts time in the current mode up to now, flushes to disk and
// stops the debouncer. Later updates stay in memory only.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	now := t.clock()
	if t.agg.Current != "" {
		t.exitLocked(now)
		t.agg.CurrentSince = now
	}
	t.dirtyLocked()
	t.closed = true
	t.mu.Unlock()

	if t.saver != nil {
		t.saver.Flush()
		t.saver.Stop()
	}
}

func (t *Tracker) persist() {
	snap := t.Snapshot()
	if err := Save(t.path, snap); err != nil {
		metricsLog.Warn("persisting metrics to %s: %v", t.path, err)
		return
	}
	metricsLog.Debug("metrics saved to %s", t.path)
}

// dirtyLocked schedules a debounced write. Must hold mu.
func (t *Tracker) dirtyLocked() {
	if t.saver != nil && !t.closed {
		t.saver.Trigger()
	}
}

// enterLocked opens a visit. Must hold mu.
func (t *Tracker) enterLocked(mode modes.ID, at time.Time) {
	s := t.agg.Modes[mode]
	s.Entries++
	s.LastSeen = at
	t.agg.Modes[mode] = s
	t.agg.Current = mode
	t.agg.CurrentSince = at
}

// exitLocked closes the current visit at at. Must hold mu.
func (t *Tracker) exitLocked(at time.Time) {
	mode := t.agg.Current
	d := at.Sub(t.agg.CurrentSince)
	if d < 0 || t.agg.CurrentSince.IsZero() {
		d = 0
	}
	s := t.agg.Modes[mode]
	s.Average = time.Duration(runningAvg(float64(s.Average), s.Visits, float64(d)))
	s.Visits++
	s.Total += d
	s.LastSeen = at
	t.agg.Modes[mode] = s
}
