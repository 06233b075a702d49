// ABOUTME: End-to-end tests of the session wiring: proposals, observers, focus, presets, resume
// ABOUTME: goleak verifies Close stops focus timers, the metrics debouncer and the preset watcher

package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/mauromedda/pi-modes/internal/animate"
	"github.com/mauromedda/pi-modes/internal/config"
	"github.com/mauromedda/pi-modes/internal/controller"
	"github.com/mauromedda/pi-modes/internal/events"
	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/session"
	"github.com/mauromedda/pi-modes/internal/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newSession(t *testing.T, settings *config.Settings, opts ...Option) (*Session, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now), WithPlainAnimation(), WithProjectRoot(t.TempDir())}, opts...)
	s, err := New(settings, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

func userTurn(text string) session.Turn {
	return session.NewTextTurn(session.RoleUser, text)
}

func TestAddTurn_ExplicitRequestSwitches(t *testing.T) {
	t.Parallel()

	s, _ := newSession(t, nil)
	var kinds []events.Kind
	s.Bus().Subscribe(func(e events.Event) { kinds = append(kinds, e.Kind) })

	s.SetTask("fix the flaky login test")
	s.AddFinding("notes", "fails only on CI")
	res := s.AddTurn(userTurn("switch to debugger mode"))
	if !res.Decision.Allowed || res.Decision.Transition.Trigger != modes.TriggerExplicit {
		t.Fatalf("decision = %+v", res.Decision)
	}
	if s.Controller().Current() != modes.Debugger {
		t.Errorf("current = %s", s.Controller().Current())
	}

	// Animation events are published from inside the mode-changed delivery,
	// so a late subscriber sees them first.
	want := []events.Kind{events.AnimationStarted, events.AnimationCompleted, events.ModeChanged}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	snap, ok := s.Snapshots().Get(modes.Assistant, modes.Debugger)
	if !ok || snap.Task != "fix the flaky login test" || snap.Findings["notes"][0] != "fails only on CI" {
		t.Errorf("snapshot = %+v, %v", snap, ok)
	}
	cont := s.Continuity()
	if !strings.Contains(cont, "Switched from Assistant to Debugger (explicit).") || !strings.Contains(cont, "Current task: fix the flaky login test") {
		t.Errorf("continuity:\n%s", cont)
	}

	recs := s.Animator().Records()
	if len(recs) != 1 || recs[0].Phase != animate.Complete || recs[0].Loading != "Switching to 🐛 Debugger as requested..." {
		t.Errorf("animation records = %+v", recs)
	}
	if got := s.Tracker().Snapshot().Transitions["assistant->debugger"].Count; got != 1 {
		t.Errorf("tracked transitions = %d", got)
	}
}

func TestAddTurn_SuggestionWhenNoSwitch(t *testing.T) {
	t.Parallel()

	s, _ := newSession(t, nil)
	res := s.AddTurn(userTurn("can you review this pull request"))
	if res.Decision.Allowed {
		t.Fatalf("unexpected switch: %+v", res.Decision)
	}
	if res.Suggestion == nil || res.Suggestion.Mode != modes.Reviewer || res.Suggestion.AutoApply {
		t.Fatalf("suggestion = %+v", res.Suggestion)
	}
	last, ok := s.LastSuggestion()
	if !ok || last.Rule != "review-request" {
		t.Errorf("LastSuggestion = %+v, %v", last, ok)
	}
	if !strings.Contains(s.FormatSuggestion(last), "switch with /mode reviewer") {
		t.Errorf("formatted suggestion = %q", s.FormatSuggestion(last))
	}
	if s.Controller().Current() != modes.Assistant {
		t.Error("non-auto suggestions must not switch")
	}
}

func TestObserveToolCall(t *testing.T) {
	t.Parallel()

	s, clock := newSession(t, nil)
	if _, ok := s.ObserveToolCall(session.ToolCall{Name: "read"}); ok {
		t.Error("read triggers no mode")
	}

	dec, ok := s.ObserveToolCall(session.ToolCall{Name: "dlv_attach"})
	if !ok || dec.Allowed || dec.Code != controller.CodeHysteresis {
		t.Errorf("inside hysteresis: %+v, %v", dec, ok)
	}

	clock.Advance(20 * time.Second)
	dec, ok = s.ObserveToolCall(session.ToolCall{Name: "dlv_attach"})
	if !ok || !dec.Allowed || dec.Transition.Trigger != modes.TriggerTool || dec.Transition.Confidence != DefaultToolConfidence {
		t.Errorf("tool-triggered switch: %+v", dec)
	}
}

func TestSwitchModeAndFocus(t *testing.T) {
	t.Parallel()

	s, clock := newSession(t, nil)
	if _, err := s.SwitchMode("wizard"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("SwitchMode(wizard) = %v", err)
	}
	if err := s.StartFocus("sec", 30*time.Minute); err != nil {
		t.Fatal(err)
	}
	if s.Controller().Current() != modes.Security {
		t.Errorf("focus should force security, got %s", s.Controller().Current())
	}

	clock.Advance(time.Minute)
	dec, err := s.SwitchMode("planner")
	if err != nil {
		t.Fatal(err)
	}
	if dec.Allowed || dec.Code != controller.CodeFocusLocked {
		t.Errorf("switch during focus = %+v", dec)
	}

	s.Focus().Release()
	dec, _ = s.SwitchMode("planner")
	if !dec.Allowed {
		t.Errorf("switch after release denied: %s", dec.Reason)
	}
}

func TestActivityMetrics(t *testing.T) {
	t.Parallel()

	s, _ := newSession(t, nil)
	s.AddTurn(userTurn("/mode debugger"))
	s.AddTurn(session.Turn{
		Role:      session.RoleAssistant,
		Parts:     []session.Part{{Kind: session.PartText, Text: "panic: nil pointer dereference"}},
		ToolCalls: []session.ToolCall{{Name: "edit", Args: map[string]any{"path": "auth/login.go"}}, {Name: "git_commit"}},
	})
	if err := s.RecordMetric(telemetry.Event{Kind: telemetry.FixApplied, Success: true, TimeToFix: time.Minute}); err != nil {
		t.Fatal(err)
	}

	agg := s.Tracker().Snapshot()
	if agg.Debugger.ErrorsAnalyzed != 1 || agg.Debugger.FixesApplied != 1 {
		t.Errorf("debugger stats = %+v", agg.Debugger)
	}
	if agg.Implementer.FilesModified != 1 || agg.Implementer.Commits != 1 {
		t.Errorf("implementer stats = %+v", agg.Implementer)
	}
	if !strings.Contains(s.MetricsSummary(), "Debugger") {
		t.Errorf("summary:\n%s", s.MetricsSummary())
	}
	if !strings.Contains(s.ContinuitySummary(), `<session-continuity mode="debugger" turns="2">`) {
		t.Errorf("continuity summary:\n%s", s.ContinuitySummary())
	}
}

func TestSettingsApplied(t *testing.T) {
	t.Parallel()

	off := false
	settings := &config.Settings{Modes: config.ModesSettings{
		DefaultMode:       "research",
		AutoSwitch:        &off,
		HysteresisSeconds: 1,
		Thresholds:        map[string]float64{"*->debugger": 0.5},
		Suggestions:       config.SuggestionSettings{DisabledModes: []string{"reviewer"}},
		Focus:             config.FocusSettings{MaxMinutes: 30},
	}}
	s, _ := newSession(t, settings)

	if s.Controller().Current() != modes.Researcher {
		t.Errorf("default mode = %s", s.Controller().Current())
	}
	if s.Controller().AutoSwitch() {
		t.Error("auto-switch should be off")
	}
	if got := s.Controller().Thresholds().For(modes.Researcher, modes.Debugger); got != 0.5 {
		t.Errorf("threshold override = %v", got)
	}
	if err := s.StartFocus("debugger", time.Hour); err == nil {
		t.Error("focus maximum should be 30 minutes")
	}
	if res := s.AddTurn(userTurn("can you review this pull request")); res.Suggestion != nil {
		t.Errorf("reviewer suggestions are disabled, got %+v", res.Suggestion)
	}
}

func TestResume(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	opts := []Option{
		WithHistoryPath(filepath.Join(dir, "modes.jsonl")),
		WithSnapshotDir(filepath.Join(dir, "snapshots")),
		WithMetricsPath(filepath.Join(dir, "metrics.json")),
	}

	first, clock := newSession(t, nil, opts...)
	first.AddTurn(userTurn("switch to planner mode"))
	clock.Advance(time.Minute)
	first.AddTurn(userTurn("use the implementer mode"))
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, _ := newSession(t, nil, opts...)
	if second.Controller().Current() != modes.Implementer {
		t.Errorf("resumed mode = %s", second.Controller().Current())
	}
	if got := len(second.Controller().History()); got != 2 {
		t.Errorf("resumed history = %d", got)
	}
	if got := second.Snapshots().Len(); got != 2 {
		t.Errorf("resumed snapshots = %d", got)
	}
	if got := second.Tracker().Snapshot().TotalTransitions; got != 2 {
		t.Errorf("resumed metrics transitions = %d", got)
	}
}

func TestHistory_FlushedInOrderOnClose(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "modes.jsonl")
	s, clock := newSession(t, nil, WithHistoryPath(path))
	want := []modes.ID{modes.Planner, modes.Implementer, modes.Reviewer}
	for _, name := range want {
		clock.Advance(10 * time.Minute)
		if dec, err := s.SwitchMode(string(name)); err != nil || !dec.Allowed {
			t.Fatalf("SwitchMode(%s) = %+v, %v", name, dec, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	records, err := session.ReadHistory(path)
	if err != nil {
		t.Fatal(err)
	}
	var got []modes.ID
	for _, tr := range records {
		got = append(got, tr.To)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("persisted history (-want +got):\n%s", diff)
	}
}

func TestPresetsAndWatch(t *testing.T) {
	t.Parallel()

	presets := t.TempDir()
	for _, sub := range []string{"workflows", "hybrids"} {
		if err := os.MkdirAll(filepath.Join(presets, sub), 0o700); err != nil {
			t.Fatal(err)
		}
	}
	wf := "id: docs\nsteps:\n  - id: research\n    mode: researcher\n  - id: write\n    mode: implementer\n"
	if err := os.WriteFile(filepath.Join(presets, "workflows", "docs.yaml"), []byte(wf), 0o600); err != nil {
		t.Fatal(err)
	}

	s, _ := newSession(t, &config.Settings{PresetDirs: []string{presets}}, WithWatch())
	p, err := s.Workflows().Start("docs")
	if err != nil {
		t.Fatal(err)
	}
	if p.Step.ID != "research" || s.Controller().Current() != modes.Researcher {
		t.Errorf("workflow start = %+v, current %s", p, s.Controller().Current())
	}

	hy := "id: triage\nmodes: [debugger, researcher]\n"
	if err := os.WriteFile(filepath.Join(presets, "hybrids", "triage.yaml"), []byte(hy), 0o600); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, ok := s.Hybrids().Get("triage"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("hybrid was not hot-reloaded")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	s, _ := newSession(t, nil, WithMetricsPath(filepath.Join(t.TempDir(), "m.json")))
	if err := s.StartFocus("planner", time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.Focus().Active() {
		t.Error("Close should release the focus lock")
	}
}
