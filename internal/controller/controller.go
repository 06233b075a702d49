// ABOUTME: Mode controller: accepts or rejects proposed switches using hysteresis, cooldown, thresholds
// ABOUTME: Accepted switches update state, then history, then metrics, then publish mode-changed

package controller

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mauromedda/pi-modes/internal/events"
	pilog "github.com/mauromedda/pi-modes/internal/log"
	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/permission"
)

var ctrlLog = pilog.Named("controller")

// Code is a stable machine-readable reason for a decision.
type Code string

const (
	CodeAccepted           Code = ""
	CodeSameMode           Code = "same-mode"
	CodeUnknownMode        Code = "unknown-mode"
	CodeFocusLocked        Code = "focus-locked"
	CodeAutoSwitchDisabled Code = "auto-switch-disabled"
	CodeCooldown           Code = "cooldown"
	CodeHysteresis         Code = "hysteresis"
	CodeLowConfidence      Code = "low-confidence"
)

// Decision is the outcome of a proposal. Denials are values, never errors.
type Decision struct {
	Allowed    bool
	Reason     string
	Code       Code
	Transition modes.Transition // the proposed (or accepted) transition
}

// Blocker vetoes switches, e.g. an active focus lock.
type Blocker interface {
	Blocks(to modes.ID) (bool, string)
}

// Recorder observes accepted transitions before they are published.
type Recorder interface {
	RecordTransition(tr modes.Transition)
}

// Config holds the policy tunables.
type Config struct {
	Cooldown         time.Duration
	Hysteresis       time.Duration
	DefaultThreshold float64
	Thresholds       map[string]float64 // "from->to" or "*->to", merged over DefaultThresholds
	HistoryCap       int
	AutoSwitch       bool
}

// DefaultConfig returns the stock policy.
func DefaultConfig() Config {
	return Config{
		Cooldown:         10 * time.Second,
		Hysteresis:       15 * time.Second,
		DefaultThreshold: DefaultThreshold,
		HistoryCap:       100,
		AutoSwitch:       true,
	}
}

// State is a point-in-time copy of the controller state.
type State struct {
	Current    modes.ID
	Previous   modes.ID
	AutoSwitch bool
	LastSwitch time.Time
	EnteredAt  time.Time
	Skills     []string
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.clock = now }
}

// WithBus publishes on bus instead of a private one.
func WithBus(bus *events.Bus) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithBlocker attaches a switch blocker.
func WithBlocker(b Blocker) Option {
	return func(c *Controller) { c.blocker = b }
}

// WithWriteGuard replaces the planning write guard.
func WithWriteGuard(g permission.WriteGuard) Option {
	return func(c *Controller) { c.guard = g }
}

// ErrUnknownMode is returned when restoring history naming unregistered modes.
var ErrUnknownMode = errors.New("unknown mode")

// Controller is the per-session transition policy.
type Controller struct {
	reg        *modes.Registry
	cfg        Config
	thresholds Thresholds
	clock      func() time.Time
	bus        *events.Bus
	guard      permission.WriteGuard

	mu         sync.Mutex
	recorder   Recorder
	blocker    Blocker
	current    modes.ID
	previous   modes.ID
	autoSwitch bool
	lastSwitch time.Time
	enteredAt  time.Time
	skills     []string
	history    []modes.Transition
}

// New creates a controller in reg's default mode.
func New(reg *modes.Registry, cfg Config, opts ...Option) *Controller {
	d := DefaultConfig()
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = d.HistoryCap
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	if cfg.Hysteresis < 0 {
		cfg.Hysteresis = 0
	}

	c := &Controller{
		reg:   reg,
		cfg:   cfg,
		clock: time.Now,
		guard: permission.DefaultWriteGuard(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.bus == nil {
		c.bus = events.NewBus()
	}
	c.thresholds = NewThresholds(cfg.DefaultThreshold, cfg.Thresholds)
	c.current = reg.Default()
	c.autoSwitch = cfg.AutoSwitch
	c.enteredAt = c.clock()
	return c
}

// Registry returns the mode registry.
func (c *Controller) Registry() *modes.Registry { return c.reg }

// Bus returns the event bus.
func (c *Controller) Bus() *events.Bus { return c.bus }

// Thresholds returns the resolved threshold table.
func (c *Controller) Thresholds() Thresholds { return c.thresholds }

// SetBlocker attaches or clears the switch blocker.
func (c *Controller) SetBlocker(b Blocker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocker = b
}

// SetRecorder attaches or clears the metrics recorder.
func (c *Controller) SetRecorder(r Recorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorder = r
}

// Current returns the active mode.
func (c *Controller) Current() modes.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Mode returns the active mode's metadata.
func (c *Controller) Mode() modes.Mode {
	return c.reg.Lookup(c.Current())
}

// State returns a copy of the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Current:    c.current,
		Previous:   c.previous,
		AutoSwitch: c.autoSwitch,
		LastSwitch: c.lastSwitch,
		EnteredAt:  c.enteredAt,
		Skills:     slices.Clone(c.skills),
	}
}

// TimeInMode returns how long the current mode has been active.
func (c *Controller) TimeInMode() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock().Sub(c.enteredAt)
}

// Check evaluates a proposal without applying it.
func (c *Controller) Check(to modes.ID, trigger modes.Trigger, confidence float64) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluateLocked(to, trigger, confidence, c.clock())
}

// Propose evaluates a proposal and applies it when accepted.
func (c *Controller) Propose(to modes.ID, trigger modes.Trigger, confidence float64) Decision {
	c.mu.Lock()
	now := c.clock()
	d := c.evaluateLocked(to, trigger, confidence, now)
	if !d.Allowed {
		c.mu.Unlock()
		if d.Code == CodeFocusLocked {
			c.bus.Publish(events.Event{Kind: events.ModeSwitchBlocked, At: now, Transition: d.Transition, Reason: d.Reason})
		}
		ctrlLog.Debug("switch %s rejected: %s", d.Transition.Pair(), d.Reason)
		return d
	}

	tr := d.Transition
	c.previous = c.current
	c.current = tr.To
	c.lastSwitch = now
	c.enteredAt = now
	if len(c.history) >= c.cfg.HistoryCap {
		n := copy(c.history, c.history[len(c.history)-c.cfg.HistoryCap+1:])
		c.history = c.history[:n]
	}
	c.history = append(c.history, tr)
	rec := c.recorder
	c.mu.Unlock()

	if rec != nil {
		rec.RecordTransition(tr)
	}
	ctrlLog.Info("mode %s (%s, confidence %.2f)", tr.Pair(), tr.Trigger, tr.Confidence)
	c.bus.Publish(events.Event{Kind: events.ModeChanged, At: now, Transition: tr})
	return d
}

// Switch requests a user-initiated switch at full confidence.
func (c *Controller) Switch(to modes.ID, trigger modes.Trigger) Decision {
	return c.Propose(to, trigger, 1)
}

func (c *Controller) evaluateLocked(to modes.ID, trigger modes.Trigger, confidence float64, now time.Time) Decision {
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	d := Decision{Transition: modes.Transition{
		From:       c.current,
		To:         to,
		At:         now,
		Trigger:    trigger,
		Confidence: confidence,
	}}
	deny := func(code Code, format string, args ...any) Decision {
		d.Code = code
		d.Reason = fmt.Sprintf(format, args...)
		return d
	}

	if to == c.current {
		return deny(CodeSameMode, "already in %s mode", c.reg.Lookup(to).Name)
	}
	if !c.reg.Has(to) {
		return deny(CodeUnknownMode, "unknown mode %q", to)
	}
	if c.blocker != nil {
		if blocked, reason := c.blocker.Blocks(to); blocked {
			return deny(CodeFocusLocked, "%s", reason)
		}
	}

	userDriven := trigger == modes.TriggerManual || trigger == modes.TriggerExplicit
	if !c.autoSwitch && !userDriven {
		return deny(CodeAutoSwitchDisabled, "auto-switch is disabled")
	}
	if trigger != modes.TriggerExplicit && !c.lastSwitch.IsZero() {
		if since := now.Sub(c.lastSwitch); since < c.cfg.Cooldown {
			return deny(CodeCooldown, "cooldown: last switch %s ago, need %s",
				since.Round(time.Millisecond), c.cfg.Cooldown)
		}
	}
	if trigger != modes.TriggerExplicit {
		if dwell := now.Sub(c.enteredAt); dwell < c.cfg.Hysteresis {
			return deny(CodeHysteresis, "hysteresis: %s in %s mode, need %s",
				dwell.Round(time.Millisecond), c.reg.Lookup(c.current).Name, c.cfg.Hysteresis)
		}
	}
	if !userDriven {
		if need := c.thresholds.For(c.current, to); confidence < need {
			return deny(CodeLowConfidence, "confidence %.2f below threshold %.2f for %s",
				confidence, need, d.Transition.Pair())
		}
	}

	d.Allowed = true
	return d
}

// AutoSwitch reports whether heuristic and tool-triggered switches are enabled.
func (c *Controller) AutoSwitch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoSwitch
}

// SetAutoSwitch toggles heuristic and tool-triggered switching.
func (c *Controller) SetAutoSwitch(on bool) {
	c.mu.Lock()
	changed := c.autoSwitch != on
	c.autoSwitch = on
	c.mu.Unlock()
	if changed {
		c.bus.Publish(events.Event{Kind: events.AutoSwitchChanged, At: c.clock(), AutoSwitch: on})
	}
}

// Skills returns the active skill ids.
func (c *Controller) Skills() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.skills)
}

// SetSkills replaces the active skill set.
func (c *Controller) SetSkills(skills []string) {
	c.mu.Lock()
	if slices.Equal(c.skills, skills) {
		c.mu.Unlock()
		return
	}
	c.skills = slices.Clone(skills)
	out := slices.Clone(skills)
	c.mu.Unlock()
	c.bus.Publish(events.Event{Kind: events.SkillsChanged, At: c.clock(), Skills: out})
}

// History returns accepted transitions, oldest first.
func (c *Controller) History() []modes.Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.history)
}

// Restore replaces the history with records (oldest first) and resumes in
// the last record's target mode. Only the most recent HistoryCap records
// are kept. Nothing is published and metrics are not updated.
func (c *Controller) Restore(records []modes.Transition) error {
	for i, tr := range records {
		if !c.reg.Has(tr.To) || (tr.From != "" && !c.reg.Has(tr.From)) {
			return fmt.Errorf("restoring record %d (%s): %w", i, tr.Pair(), ErrUnknownMode)
		}
	}
	if len(records) > c.cfg.HistoryCap {
		records = records[len(records)-c.cfg.HistoryCap:]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = slices.Clone(records)
	if len(records) == 0 {
		c.current = c.reg.Default()
		c.previous = ""
		c.lastSwitch = time.Time{}
		c.enteredAt = c.clock()
		return nil
	}
	last := records[len(records)-1]
	c.current = last.To
	c.previous = last.From
	c.lastSwitch = last.At
	c.enteredAt = last.At
	return nil
}

// IsToolAllowed reports whether the active mode permits tool.
func (c *Controller) IsToolAllowed(tool string) bool {
	return permission.IsToolAllowed(c.Mode(), tool)
}

// FilterTools returns the subset of tools the active mode permits.
func (c *Controller) FilterTools(tools []string) []string {
	return permission.FilterTools(c.Mode(), tools)
}

// Temperature returns the active mode's preferred generation temperature.
func (c *Controller) Temperature() float64 {
	return c.Mode().Temperature
}

// ValidateToolCall gates a tool call before execution. The active mode's
// tool envelope applies first; in the planner mode write tools are further
// restricted to documentation paths.
func (c *Controller) ValidateToolCall(tool string, args map[string]any) permission.Verdict {
	m := c.Mode()
	if !permission.IsToolAllowed(m, tool) {
		return permission.Verdict{Reason: fmt.Sprintf("%s mode does not permit tool %s", m.Name, tool)}
	}
	if m.ID != modes.Planner {
		return permission.Allow
	}
	return c.guard.Check(tool, args)
}
