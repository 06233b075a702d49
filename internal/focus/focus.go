// ABOUTME: Focus lock: pins the active mode for a bounded duration with auto-release
// ABOUTME: Publishes start, extend, end and a per-tick countdown; all timers stop on release

package focus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mauromedda/pi-modes/internal/controller"
	"github.com/mauromedda/pi-modes/internal/events"
	pilog "github.com/mauromedda/pi-modes/internal/log"
	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/scheduler"
)

// Duration bounds and tick interval defaults.
const (
	DefaultMin  = time.Minute
	DefaultMax  = 240 * time.Minute
	DefaultTick = time.Second
)

// End reasons carried by focus-ended events.
const (
	ReasonExpired  = "expired"
	ReasonReleased = "released"
	ReasonShutdown = "shutdown"
)

// Errors returned by Start and Extend. State is unchanged when they occur.
var (
	ErrInvalidDuration = errors.New("invalid focus duration")
	ErrUnknownMode     = errors.New("unknown mode")
	ErrNotActive       = errors.New("no active focus lock")
)

var focusLog = pilog.Named("focus")

// Switcher forces the locked mode active.
type Switcher interface {
	Switch(to modes.ID, trigger modes.Trigger) controller.Decision
	Registry() *modes.Registry
}

// Status describes the lock at a point in time.
type Status struct {
	Active    bool
	Mode      modes.ID
	Started   time.Time
	Ends      time.Time
	Remaining time.Duration
}

// Option configures a Lock.
type Option func(*Lock)

// WithBounds overrides the accepted duration range.
func WithBounds(lo, hi time.Duration) Option {
	return func(l *Lock) { l.min, l.max = lo, hi }
}

// WithTick overrides the countdown interval.
func WithTick(d time.Duration) Option {
	return func(l *Lock) { l.tick = d }
}

// WithClock injects the time source used for remaining-time reporting.
func WithClock(now func() time.Time) Option {
	return func(l *Lock) { l.clock = now }
}

// Lock is a session's focus lock. It implements controller.Blocker.
type Lock struct {
	sw    Switcher
	bus   *events.Bus
	clock func() time.Time
	min   time.Duration
	max   time.Duration
	tick  time.Duration

	mu      sync.Mutex
	active  bool
	gen     uint64
	mode    modes.ID
	started time.Time
	ends    time.Time
	expiry  *scheduler.Task
	ticker  *scheduler.Task
}

// New creates an inactive lock.
func New(sw Switcher, bus *events.Bus, opts ...Option) *Lock {
	l := &Lock{
		sw:    sw,
		bus:   bus,
		clock: time.Now,
		min:   DefaultMin,
		max:   DefaultMax,
		tick:  DefaultTick,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Start locks mode for d, replacing any active lock, and forces the switch.
func (l *Lock) Start(mode modes.ID, d time.Duration) error {
	if d < l.min || d > l.max {
		return fmt.Errorf("%w: %s outside %s-%s", ErrInvalidDuration, d, l.min, l.max)
	}
	if !l.sw.Registry().Has(mode) {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	l.mu.Lock()
	l.stopTimersLocked()
	now := l.clock()
	l.gen++
	gen := l.gen
	l.active = true
	l.mode = mode
	l.started = now
	l.ends = now.Add(d)
	l.expiry = scheduler.After(d, func() { l.expire(gen) })
	l.ticker = scheduler.Every(l.tick, func() { l.countdown(gen) })
	l.mu.Unlock()

	if dec := l.sw.Switch(mode, modes.TriggerExplicit); !dec.Allowed && dec.Code != controller.CodeSameMode {
		focusLog.Warn("focus on %s could not switch: %s", mode, dec.Reason)
	}
	focusLog.Info("focus locked on %s for %s", mode, d)
	l.bus.Publish(events.Event{Kind: events.FocusStarted, At: now, Mode: mode, Remaining: d})
	return nil
}

// Extend adds d to the active lock. The total lock may not exceed the maximum.
func (l *Lock) Extend(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: extension %s must be positive", ErrInvalidDuration, d)
	}

	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return ErrNotActive
	}
	newEnds := l.ends.Add(d)
	if total := newEnds.Sub(l.started); total > l.max {
		l.mu.Unlock()
		return fmt.Errorf("%w: extending by %s makes the lock %s, maximum is %s", ErrInvalidDuration, d, total, l.max)
	}
	now := l.clock()
	l.ends = newEnds
	remaining := max(newEnds.Sub(now), 0)
	gen := l.gen
	l.expiry.Stop()
	l.expiry = scheduler.After(remaining, func() { l.expire(gen) })
	mode := l.mode
	l.mu.Unlock()

	l.bus.Publish(events.Event{Kind: events.FocusExtended, At: now, Mode: mode, Remaining: remaining})
	return nil
}

// Release ends the lock early. No-op when inactive.
func (l *Lock) Release() {
	l.end(ReasonReleased, 0)
}

// Close force-releases the lock on shutdown.
func (l *Lock) Close() {
	l.end(ReasonShutdown, 0)
}

// Blocks reports whether a switch to to is vetoed by the lock.
func (l *Lock) Blocks(to modes.ID) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active || to == l.mode {
		return false, ""
	}
	name := l.sw.Registry().Lookup(l.mode).Name
	remaining := max(l.ends.Sub(l.clock()), 0).Round(time.Second)
	return true, fmt.Sprintf("focus lock on %s mode (%s remaining); release it to switch", name, remaining)
}

// Active reports whether a lock is held.
func (l *Lock) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Status returns the current lock state.
func (l *Lock) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return Status{}
	}
	return Status{
		Active:    true,
		Mode:      l.mode,
		Started:   l.started,
		Ends:      l.ends,
		Remaining: max(l.ends.Sub(l.clock()), 0),
	}
}

func (l *Lock) expire(gen uint64) {
	l.end(ReasonExpired, gen)
}

// end releases the lock. A non-zero gen only releases that generation so a
// stale expiry cannot end a replacement lock.
func (l *Lock) end(reason string, gen uint64) {
	l.mu.Lock()
	if !l.active || (gen != 0 && gen != l.gen) {
		l.mu.Unlock()
		return
	}
	l.stopTimersLocked()
	l.active = false
	now := l.clock()
	mode := l.mode
	elapsed := now.Sub(l.started)
	l.mu.Unlock()

	focusLog.Info("focus on %s ended: %s", mode, reason)
	l.bus.Publish(events.Event{Kind: events.FocusEnded, At: now, Mode: mode, Reason: reason, Elapsed: elapsed})
}

func (l *Lock) countdown(gen uint64) {
	l.mu.Lock()
	if !l.active || gen != l.gen {
		l.mu.Unlock()
		return
	}
	now := l.clock()
	mode := l.mode
	remaining := max(l.ends.Sub(now), 0)
	l.mu.Unlock()

	l.bus.Publish(events.Event{Kind: events.FocusCountdown, At: now, Mode: mode, Remaining: remaining})
}

// stopTimersLocked cancels the expiry and ticker. Must hold mu.
func (l *Lock) stopTimersLocked() {
	l.expiry.Stop()
	l.ticker.Stop()
	l.expiry, l.ticker = nil, nil
}
