// ABOUTME: Session wiring: one controller with classifier, focus lock, metrics, snapshots and presets
// ABOUTME: Turns and tool calls become proposals; observers react to mode-changed on the event bus

package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mauromedda/pi-modes/internal/animate"
	"github.com/mauromedda/pi-modes/internal/config"
	"github.com/mauromedda/pi-modes/internal/controller"
	"github.com/mauromedda/pi-modes/internal/events"
	"github.com/mauromedda/pi-modes/internal/focus"
	"github.com/mauromedda/pi-modes/internal/hybrid"
	"github.com/mauromedda/pi-modes/internal/intent"
	pilog "github.com/mauromedda/pi-modes/internal/log"
	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/permission"
	"github.com/mauromedda/pi-modes/internal/session"
	"github.com/mauromedda/pi-modes/internal/snapshot"
	"github.com/mauromedda/pi-modes/internal/suggest"
	"github.com/mauromedda/pi-modes/internal/telemetry"
	"github.com/mauromedda/pi-modes/internal/workflow"
)

// Defaults for the session's buffers and tool-triggered proposals.
const (
	DefaultMaxTurns       = 200
	DefaultToolConfidence = 0.9
	DefaultSnapshotMaxAge = 7 * 24 * time.Hour
)

// ErrUnknownMode is returned when a mode name does not resolve.
var ErrUnknownMode = errors.New("unknown mode")

var engineLog = pilog.Named("engine")

// Option configures a Session.
type Option func(*Session)

// WithClock injects the time source for every component.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.clock = now }
}

// WithProjectRoot sets the directory whose .pi-modes holds project presets.
func WithProjectRoot(root string) Option {
	return func(s *Session) { s.projectRoot = root }
}

// WithSessionID persists mode history and snapshots under the session's
// directory and resumes from them.
func WithSessionID(id string) Option {
	return func(s *Session) {
		s.historyPath = session.HistoryPath(id)
		s.snapshotDir = config.SnapshotsDir(id)
	}
}

// WithHistoryPath overrides the mode-history file. Empty disables it.
func WithHistoryPath(path string) Option {
	return func(s *Session) { s.historyPath = path }
}

// WithSnapshotDir overrides the snapshot directory. Empty disables persistence.
func WithSnapshotDir(dir string) Option {
	return func(s *Session) { s.snapshotDir = dir }
}

// WithMetricsPath persists the metrics aggregate to path.
func WithMetricsPath(path string) Option {
	return func(s *Session) { s.metricsPath = path }
}

// WithWatch hot-reloads workflow and hybrid definitions on file changes.
func WithWatch() Option {
	return func(s *Session) { s.watch = true }
}

// WithMaxTurns bounds the retained turn buffer.
func WithMaxTurns(n int) Option {
	return func(s *Session) { s.maxTurns = n }
}

// WithPlainAnimation disables styling of transition messages.
func WithPlainAnimation() Option {
	return func(s *Session) { s.plain = true }
}

// Session is one conversation's mode-control stack.
type Session struct {
	settings    *config.Settings
	clock       func() time.Time
	projectRoot string
	historyPath string
	snapshotDir string
	metricsPath string
	watch       bool
	maxTurns    int
	plain       bool

	reg        *modes.Registry
	bus        *events.Bus
	ctrl       *controller.Controller
	classifier *intent.Classifier
	focus      *focus.Lock
	tracker    *telemetry.Tracker
	animator   *animate.Animator
	snapshots  *snapshot.Manager
	suggester  *suggest.Suggester
	workflows  *workflow.Orchestrator
	hybrids    *hybrid.Composer
	watcher    *config.Watcher
	history    *session.HistoryWriter

	workflowDirs []string
	hybridDirs   []string
	unsubs       []func()

	mu         sync.Mutex
	turns      []session.Turn
	task       string
	findings   snapshot.Findings
	continuity string
	lastSug    *suggest.Suggestion

	closeOnce sync.Once
	closeErr  error
}

// New builds a session from merged settings. A nil settings value means
// all defaults.
func New(settings *config.Settings, opts ...Option) (*Session, error) {
	if settings == nil {
		settings = &config.Settings{}
	}
	s := &Session{
		settings: settings,
		clock:    time.Now,
		maxTurns: DefaultMaxTurns,
		findings: make(snapshot.Findings),
	}
	for _, o := range opts {
		o(s)
	}
	if s.maxTurns <= 0 {
		s.maxTurns = DefaultMaxTurns
	}
	ms := settings.Modes
	if !ms.Snapshots.PersistEnabled() {
		s.snapshotDir = ""
	}
	if ms.Metrics.Disabled {
		s.metricsPath = ""
	}

	s.reg = registryFor(ms)
	s.bus = events.NewBus()
	s.classifier = intent.NewClassifier(s.reg, classifierConfig(ms))
	s.tracker = telemetry.NewTracker(
		telemetry.WithClock(s.clock),
		telemetry.WithPath(s.metricsPath),
		telemetry.WithDebounce(metricsDebounce(ms)),
	)
	s.ctrl = controller.New(s.reg, controllerConfig(ms),
		controller.WithClock(s.clock),
		controller.WithBus(s.bus),
		controller.WithRecorder(s.tracker),
		controller.WithWriteGuard(permission.DefaultWriteGuard().WithRoot(s.projectRoot)),
	)
	s.focus = focus.New(s.ctrl, s.bus, append(focusOptions(ms), focus.WithClock(s.clock))...)
	s.ctrl.SetBlocker(s.focus)

	animOpts := []animate.Option{animate.WithClock(s.clock), animate.WithBus(s.bus)}
	if s.plain {
		animOpts = append(animOpts, animate.WithPlain())
	}
	s.animator = animate.New(s.reg, animOpts...)

	snapOpts := []snapshot.Option{snapshot.WithClock(s.clock)}
	if ms.Snapshots.Capacity > 0 {
		snapOpts = append(snapOpts, snapshot.WithCapacity(ms.Snapshots.Capacity))
	}
	if s.snapshotDir != "" {
		snapOpts = append(snapOpts, snapshot.WithDir(s.snapshotDir))
	}
	s.snapshots = snapshot.NewManager(snapOpts...)
	s.suggester = suggest.New(s.reg, suppression(ms))

	catalog := workflow.NewCatalog(s.reg)
	s.workflows = workflow.NewOrchestrator(catalog, s.ctrl, s.bus, workflow.WithClock(s.clock))
	s.hybrids = hybrid.NewComposer(s.reg)
	s.workflowDirs, s.hybridDirs = presetDirs(settings, s.projectRoot)
	s.reloadPresets()

	if err := s.resume(); err != nil {
		s.shutdown()
		return nil, err
	}

	// Snapshot capture runs before the animator.
	s.unsubs = append(s.unsubs,
		s.bus.Subscribe(s.onEvent),
		s.animator.Attach(s.bus),
	)

	if s.watch {
		dirs := append(slices.Clone(s.workflowDirs), s.hybridDirs...)
		s.watcher = config.NewWatcher(dirs, s.reloadPresets)
		if err := s.watcher.Start(); err != nil {
			engineLog.Warn("preset watcher disabled: %v", err)
			s.watcher = nil
		}
	}
	return s, nil
}

// resume restores mode history, metrics and snapshots from disk.
func (s *Session) resume() error {
	if s.historyPath != "" {
		records, err := session.ReadHistory(s.historyPath)
		if err != nil {
			engineLog.Warn("reading mode history: %v", err)
		} else if err := s.ctrl.Restore(records); err != nil {
			engineLog.Warn("restoring mode history: %v", err)
		} else if len(records) > 0 {
			engineLog.Info("resumed in %s mode after %d transitions", s.ctrl.Current(), len(records))
		}
		w, err := session.OpenHistory(s.historyPath)
		if err != nil {
			return fmt.Errorf("opening mode history: %w", err)
		}
		s.history = w
	}

	if s.metricsPath != "" {
		agg, err := telemetry.Load(s.metricsPath)
		if err != nil {
			engineLog.Warn("loading metrics: %v", err)
		} else if agg != nil {
			s.tracker.Restore(*agg)
		}
	}
	s.tracker.Begin(s.ctrl.Current())

	if dir := s.snapshots.Dir(); dir != "" {
		snaps, err := snapshot.LoadDir(context.Background(), dir)
		if err != nil {
			engineLog.Warn("loading snapshots: %v", err)
		}
		s.snapshots.Restore(snaps)
		s.snapshots.Prune(snapshotMaxAge(s.settings.Modes))
	}
	return nil
}

func (s *Session) reloadPresets() {
	w := s.workflows.Catalog().Reload(s.workflowDirs)
	h := s.hybrids.Reload(s.hybridDirs)
	engineLog.Debug("presets reloaded: %d workflows, %d hybrids", w, h)
}

// onEvent reacts to accepted switches: history line, snapshot, continuity text.
func (s *Session) onEvent(e events.Event) {
	if e.Kind != events.ModeChanged {
		return
	}
	tr := e.Transition
	if s.history != nil && !s.history.Enqueue(tr) {
		engineLog.Debug("history closed, dropping %s", tr.Pair())
	}

	s.mu.Lock()
	turns := slices.Clone(s.turns)
	task := s.task
	findings := s.findings
	s.findings = make(snapshot.Findings)
	s.mu.Unlock()

	snap := s.snapshots.Capture(snapshot.Input{
		Transition: tr,
		Turns:      turns,
		Skills:     s.ctrl.Skills(),
		Tools:      s.reg.Lookup(tr.To).AllowedTools,
		Task:       task,
		Findings:   findings,
	})
	text := s.snapshots.Continuity(s.reg, snap, s.snapshots.FindingsFor(tr.To))

	s.mu.Lock()
	s.continuity = text
	s.mu.Unlock()
}

// TurnResult is the outcome of feeding one turn.
type TurnResult struct {
	Analysis   intent.Analysis
	Decision   controller.Decision
	Suggestion *suggest.Suggestion // set when a rule matched after the proposal
}

// AddTurn records a turn, classifies the window and proposes the winning
// mode. An explicit request in the turn proposes with the explicit trigger.
// When no switch happened, suggestion rules run; auto-applicable ones are
// proposed as heuristic switches.
func (s *Session) AddTurn(turn session.Turn) TurnResult {
	if turn.At.IsZero() {
		turn.At = s.clock()
	}
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	if over := len(s.turns) - s.maxTurns; over > 0 {
		s.turns = slices.Delete(s.turns, 0, over)
	}
	turns := slices.Clone(s.turns)
	s.mu.Unlock()

	s.recordTurnActivity(turn)

	a := s.classifier.Analyze(turns)
	res := TurnResult{Analysis: a}
	trigger := modes.TriggerHeuristic
	if a.Explicit != "" {
		trigger = modes.TriggerExplicit
	}
	res.Decision = s.ctrl.Propose(a.Mode, trigger, a.Confidence)
	if res.Decision.Allowed {
		s.setSuggestion(nil)
		return res
	}

	if sg, ok := s.suggester.Suggest(turns, s.ctrl.Current()); ok {
		res.Suggestion = &sg
		s.setSuggestion(&sg)
		if sg.AutoApply {
			if dec := s.ctrl.Propose(sg.Mode, modes.TriggerHeuristic, sg.Confidence); dec.Allowed {
				res.Decision = dec
			}
		}
	} else {
		s.setSuggestion(nil)
	}
	return res
}

func (s *Session) setSuggestion(sg *suggest.Suggestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSug = sg
}

// ObserveToolCall proposes the first mode, in declaration order, whose
// trigger tools match call. It reports false when no mode claims the tool.
// Metrics for the call are recorded when its turn is added.
func (s *Session) ObserveToolCall(call session.ToolCall) (controller.Decision, bool) {
	current := s.ctrl.Current()
	for _, m := range s.reg.Modes() {
		if m.ID == current || !permission.MatchesTrigger(m, call.Name) {
			continue
		}
		return s.ctrl.Propose(m.ID, modes.TriggerTool, DefaultToolConfidence), true
	}
	return controller.Decision{}, false
}

// SwitchMode resolves name and switches manually.
func (s *Session) SwitchMode(name string) (controller.Decision, error) {
	id, ok := s.reg.Resolve(name)
	if !ok {
		return controller.Decision{}, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	return s.ctrl.Switch(id, modes.TriggerManual), nil
}

// StartFocus resolves name and locks it for d.
func (s *Session) StartFocus(name string, d time.Duration) error {
	id, ok := s.reg.Resolve(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	return s.focus.Start(id, d)
}

// Suggest evaluates the suggestion rules against the current turns without
// acting on the result.
func (s *Session) Suggest() (suggest.Suggestion, bool) {
	return s.suggester.Suggest(s.Turns(), s.ctrl.Current())
}

// LastSuggestion returns the suggestion produced by the latest turn.
func (s *Session) LastSuggestion() (suggest.Suggestion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSug == nil {
		return suggest.Suggestion{}, false
	}
	return *s.lastSug, true
}

// FormatSuggestion renders a suggestion for display.
func (s *Session) FormatSuggestion(sg suggest.Suggestion) string {
	return s.suggester.Format(sg)
}

// SetTask records the task label carried into the next snapshot.
func (s *Session) SetTask(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.task = strings.TrimSpace(task)
}

// AddFinding notes a mode-specific finding under topic. Findings collected
// in the current mode travel with the snapshot of the next switch.
func (s *Session) AddFinding(topic, line string) {
	topic, line = strings.TrimSpace(topic), strings.TrimSpace(line)
	if topic == "" || line == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings[topic] = append(s.findings[topic], line)
}

// Continuity returns the text prepared for the mode entered last.
func (s *Session) Continuity() string {
	s.mu.Lock()
	text := s.continuity
	s.mu.Unlock()

	p, ok := s.workflows.Progress()
	if !ok {
		return text
	}
	if text != "" {
		text += "\n"
	}
	return text + p.Guidance(s.reg)
}

// ContinuitySummary renders the full-session summary block.
func (s *Session) ContinuitySummary() string {
	return snapshot.Summarize(s.Turns(), s.ctrl.Current()).Render()
}

// Turns returns the retained turns.
func (s *Session) Turns() []session.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.turns)
}

// RecordMetric folds a mode-specific metric event into the tracker.
func (s *Session) RecordMetric(e telemetry.Event) error {
	return s.tracker.Record(e)
}

// MetricsSummary renders the metrics report.
func (s *Session) MetricsSummary() string {
	return s.tracker.FormatSummary(s.reg)
}

// Registry returns the session's mode registry.
func (s *Session) Registry() *modes.Registry { return s.reg }

// Bus returns the session's event bus.
func (s *Session) Bus() *events.Bus { return s.bus }

func (s *Session) Controller() *controller.Controller { return s.ctrl }

func (s *Session) Focus() *focus.Lock { return s.focus }

func (s *Session) Tracker() *telemetry.Tracker { return s.tracker }

func (s *Session) Animator() *animate.Animator { return s.animator }

func (s *Session) Snapshots() *snapshot.Manager { return s.snapshots }

func (s *Session) Workflows() *workflow.Orchestrator { return s.workflows }

func (s *Session) Hybrids() *hybrid.Composer { return s.hybrids }

func (s *Session) Classifier() *intent.Classifier { return s.classifier }

func (s *Session) Settings() *config.Settings { return s.settings }

// State returns the controller state.
func (s *Session) State() controller.State { return s.ctrl.State() }

// ValidateToolCall gates a tool call against the active mode.
func (s *Session) ValidateToolCall(tool string, args map[string]any) permission.Verdict {
	return s.ctrl.ValidateToolCall(tool, args)
}

// Close releases the focus lock, stops the watcher, flushes metrics and
// waits for snapshot writes. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.shutdown()
	})
	return s.closeErr
}

func (s *Session) shutdown() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.focus.Close()
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.tracker.Close()
	s.snapshots.Close()
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			return fmt.Errorf("closing mode history: %w", err)
		}
	}
	return nil
}
