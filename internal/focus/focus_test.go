// ABOUTME: Tests for the focus lock: validation, forced switch, blocking, expiry, extension, release
// ABOUTME: goleak asserts the expiry and countdown goroutines are cancelled

package focus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mauromedda/pi-modes/internal/controller"
	"github.com/mauromedda/pi-modes/internal/events"
	"github.com/mauromedda/pi-modes/internal/modes"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// eventLog collects events published from timer goroutines.
type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) add(e events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count(k events.Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func (l *eventLog) last(k events.Kind) (events.Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Kind == k {
			return l.events[i], true
		}
	}
	return events.Event{}, false
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func setup(t *testing.T, opts ...Option) (*Lock, *controller.Controller, *eventLog) {
	t.Helper()
	bus := events.NewBus()
	log := &eventLog{}
	bus.Subscribe(log.add)
	ctrl := controller.New(modes.Default(), controller.DefaultConfig(), controller.WithBus(bus))
	lock := New(ctrl, bus, opts...)
	ctrl.SetBlocker(lock)
	t.Cleanup(lock.Close)
	return lock, ctrl, log
}

func TestStart_ValidatesDuration(t *testing.T) {
	t.Parallel()

	lock, ctrl, log := setup(t)
	for _, d := range []time.Duration{0, 30 * time.Second, 241 * time.Minute} {
		if err := lock.Start(modes.Debugger, d); !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("Start(%s) = %v, want ErrInvalidDuration", d, err)
		}
	}
	if err := lock.Start("ghost", time.Hour); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Start(ghost) = %v, want ErrUnknownMode", err)
	}
	if lock.Active() || ctrl.Current() != modes.Assistant || log.count(events.FocusStarted) != 0 {
		t.Error("failed Start mutated state")
	}
}

func TestStart_ForcesSwitchAndBlocksOthers(t *testing.T) {
	t.Parallel()

	lock, ctrl, log := setup(t)
	if err := lock.Start(modes.Debugger, 30*time.Minute); err != nil {
		t.Fatal(err)
	}
	if ctrl.Current() != modes.Debugger {
		t.Fatalf("current = %s, want debugger", ctrl.Current())
	}
	if h := ctrl.History(); len(h) != 1 || h[0].Trigger != modes.TriggerExplicit {
		t.Errorf("history = %+v", h)
	}

	for _, id := range modes.Default().IDs() {
		blocked, reason := lock.Blocks(id)
		if id == modes.Debugger {
			if blocked {
				t.Error("the locked mode must never be blocked")
			}
			continue
		}
		if !blocked || reason == "" {
			t.Errorf("Blocks(%s) = %v, %q", id, blocked, reason)
		}
	}

	d := ctrl.Switch(modes.Planner, modes.TriggerExplicit)
	if d.Allowed || d.Code != controller.CodeFocusLocked {
		t.Errorf("switch during focus = %+v", d)
	}
	if e, ok := log.last(events.ModeSwitchBlocked); !ok || e.Reason == "" {
		t.Errorf("blocked event = %+v, %v", e, ok)
	}
	if e, ok := log.last(events.FocusStarted); !ok || e.Mode != modes.Debugger || e.Remaining != 30*time.Minute {
		t.Errorf("started event = %+v", e)
	}
}

func TestStart_ReplacesActiveLock(t *testing.T) {
	t.Parallel()

	lock, ctrl, _ := setup(t)
	if err := lock.Start(modes.Debugger, time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := lock.Start(modes.Reviewer, time.Hour); err != nil {
		t.Fatal(err)
	}
	if ctrl.Current() != modes.Reviewer || lock.Status().Mode != modes.Reviewer {
		t.Errorf("current = %s, locked = %s", ctrl.Current(), lock.Status().Mode)
	}
}

func TestLock_ExpiresAndCountsDown(t *testing.T) {
	t.Parallel()

	lock, ctrl, log := setup(t, WithBounds(10*time.Millisecond, time.Second), WithTick(5*time.Millisecond))
	if err := lock.Start(modes.Security, 80*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return log.count(events.FocusEnded) == 1 })
	if lock.Active() {
		t.Error("lock still active after expiry")
	}
	if log.count(events.FocusCountdown) == 0 {
		t.Error("no countdown events")
	}
	if e, _ := log.last(events.FocusEnded); e.Reason != ReasonExpired || e.Mode != modes.Security {
		t.Errorf("ended event = %+v", e)
	}
	if d := ctrl.Switch(modes.Planner, modes.TriggerExplicit); !d.Allowed {
		t.Errorf("switch after expiry = %+v", d)
	}
}

func TestLock_ReleaseStopsTimers(t *testing.T) {
	t.Parallel()

	lock, _, log := setup(t, WithBounds(10*time.Millisecond, time.Hour), WithTick(5*time.Millisecond))
	if err := lock.Start(modes.Implementer, 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	lock.Release()
	lock.Release()

	ticks := log.count(events.FocusCountdown)
	time.Sleep(100 * time.Millisecond)
	if n := log.count(events.FocusEnded); n != 1 {
		t.Errorf("FocusEnded count = %d, want 1", n)
	}
	if e, _ := log.last(events.FocusEnded); e.Reason != ReasonReleased {
		t.Errorf("reason = %q", e.Reason)
	}
	if log.count(events.FocusCountdown) > ticks+1 {
		t.Error("countdown kept ticking after release")
	}
}

func TestExtend(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	lock, _, log := setup(t, WithBounds(time.Minute, time.Hour), WithClock(clock))

	if err := lock.Extend(time.Minute); !errors.Is(err, ErrNotActive) {
		t.Errorf("Extend without lock = %v", err)
	}
	if err := lock.Start(modes.Planner, 30*time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := lock.Extend(-time.Minute); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("negative extension = %v", err)
	}
	if err := lock.Extend(31 * time.Minute); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("over-max extension = %v", err)
	}
	if got := lock.Status().Remaining; got != 30*time.Minute {
		t.Errorf("failed extension changed remaining to %s", got)
	}

	if err := lock.Extend(20 * time.Minute); err != nil {
		t.Fatal(err)
	}
	s := lock.Status()
	if s.Remaining != 50*time.Minute || !s.Ends.After(s.Started) {
		t.Errorf("Status = %+v", s)
	}
	if e, ok := log.last(events.FocusExtended); !ok || e.Remaining != 50*time.Minute {
		t.Errorf("extended event = %+v", e)
	}
}

func TestExtend_ReschedulesExpiry(t *testing.T) {
	t.Parallel()

	lock, _, log := setup(t, WithBounds(10*time.Millisecond, time.Second), WithTick(time.Hour))
	if err := lock.Start(modes.Debugger, 60*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := lock.Extend(200 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if !lock.Active() || log.count(events.FocusEnded) != 0 {
		t.Fatal("lock expired on the original schedule")
	}
	waitFor(t, func() bool { return !lock.Active() })
}

func TestClose_ReleasesWithShutdownReason(t *testing.T) {
	t.Parallel()

	lock, _, log := setup(t)
	if err := lock.Start(modes.Researcher, time.Hour); err != nil {
		t.Fatal(err)
	}
	lock.Close()
	if e, ok := log.last(events.FocusEnded); !ok || e.Reason != ReasonShutdown {
		t.Errorf("ended event = %+v", e)
	}
	if blocked, _ := lock.Blocks(modes.Planner); blocked {
		t.Error("closed lock still blocks")
	}
}
