// ABOUTME: Transition snapshots: condensed continuity state captured at each mode switch
// ABOUTME: Held in a bounded cache keyed by from->to; optional async persistence, age-based pruning

package snapshot

import (
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	pilog "github.com/mauromedda/pi-modes/internal/log"
	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/session"
)

// DefaultCapacity bounds the in-memory cache.
const DefaultCapacity = 20

var snapLog = pilog.Named("snapshot")

// Findings are free-form mode-specific notes, keyed by topic.
type Findings map[string][]string

// Snapshot is the continuity state captured at one transition.
type Snapshot struct {
	ID         string        `json:"id"`
	At         time.Time     `json:"at"`
	From       modes.ID      `json:"from"`
	To         modes.ID      `json:"to"`
	Trigger    modes.Trigger `json:"trigger"`
	Confidence float64       `json:"confidence"`
	Excerpt    []ExcerptLine `json:"excerpt,omitempty"`
	Skills     []string      `json:"skills,omitempty"`
	Tools      []string      `json:"tools,omitempty"`
	Task       string        `json:"task,omitempty"`
	Findings   Findings      `json:"findings,omitempty"`
}

// Key returns the cache key "from->to".
func (s Snapshot) Key() string {
	return modes.Pair{From: s.From, To: s.To}.String()
}

func (s Snapshot) clone() Snapshot {
	s.Excerpt = slices.Clone(s.Excerpt)
	s.Skills = slices.Clone(s.Skills)
	s.Tools = slices.Clone(s.Tools)
	if s.Findings != nil {
		f := make(Findings, len(s.Findings))
		for k, v := range s.Findings {
			f[k] = slices.Clone(v)
		}
		s.Findings = f
	}
	return s
}

// Input is what a capture needs beyond the transition itself.
type Input struct {
	Transition modes.Transition
	Turns      []session.Turn
	Skills     []string
	Tools      []string
	Task       string
	Findings   Findings
}

// Option configures a Manager.
type Option func(*Manager)

// WithCapacity overrides the cache bound.
func WithCapacity(n int) Option {
	return func(m *Manager) { m.capacity = n }
}

// WithDir enables persistence, one file per snapshot under dir.
func WithDir(dir string) Option {
	return func(m *Manager) { m.dir = dir }
}

// WithClock injects the time source used by pruning.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.clock = now }
}

// WithLayouts replaces the built-in finding layouts.
func WithLayouts(layouts map[modes.ID]Layout) Option {
	return func(m *Manager) {
		m.layouts = make(map[modes.ID]Layout, len(layouts))
		for id, l := range layouts {
			l.Topics = slices.Clone(l.Topics)
			m.layouts[id] = l
		}
	}
}

// WithExcerpt overrides the excerpt size.
func WithExcerpt(turns, width int) Option {
	return func(m *Manager) { m.excerptTurns, m.excerptWidth = turns, width }
}

// Manager captures, caches and persists snapshots for a session.
type Manager struct {
	capacity     int
	dir          string
	clock        func() time.Time
	excerptTurns int
	excerptWidth int
	layouts      map[modes.ID]Layout

	mu     sync.Mutex
	byKey  map[string]Snapshot
	order  []string // keys, oldest first
	writes sync.WaitGroup
}

// NewManager creates an empty manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		capacity:     DefaultCapacity,
		clock:        time.Now,
		excerptTurns: DefaultExcerptTurns,
		excerptWidth: DefaultExcerptWidth,
		layouts:      DefaultLayouts(),
		byKey:        make(map[string]Snapshot),
	}
	for _, o := range opts {
		o(m)
	}
	if m.capacity <= 0 {
		m.capacity = DefaultCapacity
	}
	return m
}

// Dir returns the persistence directory, empty when disabled.
func (m *Manager) Dir() string { return m.dir }

// Capture builds a snapshot for in, caches it and schedules its write.
func (m *Manager) Capture(in Input) Snapshot {
	tr := in.Transition
	at := tr.At
	if at.IsZero() {
		at = m.clock()
	}
	s := Snapshot{
		ID:         uuid.NewString(),
		At:         at,
		From:       tr.From,
		To:         tr.To,
		Trigger:    tr.Trigger,
		Confidence: tr.Confidence,
		Excerpt:    Excerpt(in.Turns, m.excerptTurns, m.excerptWidth),
		Skills:     slices.Clone(in.Skills),
		Tools:      slices.Clone(in.Tools),
		Task:       Truncate(in.Task, m.excerptWidth),
	}
	if len(in.Findings) > 0 {
		s.Findings = Snapshot{Findings: in.Findings}.clone().Findings
	}

	m.mu.Lock()
	m.putLocked(s)
	m.mu.Unlock()

	if m.dir != "" {
		m.persist(s.clone())
	}
	return s.clone()
}

// putLocked inserts s as the newest entry, evicting the oldest at capacity.
func (m *Manager) putLocked(s Snapshot) {
	key := s.Key()
	if _, ok := m.byKey[key]; ok {
		m.order = slices.DeleteFunc(m.order, func(k string) bool { return k == key })
	}
	for len(m.order) >= m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.byKey, oldest)
	}
	m.byKey[key] = s
	m.order = append(m.order, key)
}

func (m *Manager) persist(s Snapshot) {
	path := filepath.Join(m.dir, FileName(s))
	m.writes.Add(1)
	go func() {
		defer m.writes.Done()
		if err := Save(path, s); err != nil {
			snapLog.Warn("persisting snapshot %s: %v", s.ID, err)
		}
	}()
}

// Wait blocks until scheduled writes finish.
func (m *Manager) Wait() {
	m.writes.Wait()
}

// Close waits for pending writes.
func (m *Manager) Close() {
	m.Wait()
}

// Get returns the snapshot for from->to.
func (m *Manager) Get(from, to modes.ID) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byKey[modes.Pair{From: from, To: to}.String()]
	return s.clone(), ok
}

// Latest returns the most recent snapshot whose target is to.
func (m *Manager) Latest(to modes.ID) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range slices.Backward(m.order) {
		if s := m.byKey[key]; s.To == to {
			return s.clone(), true
		}
	}
	return Snapshot{}, false
}

// List returns cached snapshots, oldest first.
func (m *Manager) List() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.byKey[key].clone())
	}
	return out
}

// Len returns the number of cached snapshots.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Restore loads snapshots into the cache in timestamp order, keeping the
// newest per key and respecting capacity. Nothing is written to disk.
func (m *Manager) Restore(snaps []Snapshot) {
	sorted := slices.Clone(snaps)
	slices.SortStableFunc(sorted, func(a, b Snapshot) int { return a.At.Compare(b.At) })
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sorted {
		m.putLocked(s.clone())
	}
}

// Prune drops snapshots older than maxAge from memory and, when persistence
// is enabled, from disk. It returns the number removed from memory.
func (m *Manager) Prune(maxAge time.Duration) int {
	cutoff := m.clock().Add(-maxAge)

	m.mu.Lock()
	removed := 0
	keep := m.order[:0]
	for _, key := range m.order {
		if m.byKey[key].At.Before(cutoff) {
			delete(m.byKey, key)
			removed++
			continue
		}
		keep = append(keep, key)
	}
	m.order = keep
	m.mu.Unlock()

	if m.dir != "" {
		m.Wait()
		n, err := PruneDir(m.dir, cutoff)
		if err != nil {
			snapLog.Warn("pruning %s: %v", m.dir, err)
		} else if n > 0 {
			snapLog.Debug("pruned %d snapshot files from %s", n, m.dir)
		}
	}
	return removed
}

// Keys returns the cached keys, oldest first.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.order)
}

// mergeFindings combines finding sets, later sets appending to earlier keys.
func mergeFindings(sets ...Findings) Findings {
	out := make(Findings)
	for _, set := range sets {
		for _, k := range slices.Sorted(maps.Keys(set)) {
			out[k] = append(out[k], set[k]...)
		}
	}
	return out
}
