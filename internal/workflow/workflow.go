// ABOUTME: Workflow orchestrator: drives a definition's steps through forced mode switches
// ABOUTME: Start, advance, skip, retreat, pause, resume and stop, each publishing a lifecycle event

package workflow

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mauromedda/pi-modes/internal/controller"
	"github.com/mauromedda/pi-modes/internal/events"
	"github.com/mauromedda/pi-modes/internal/modes"
)

// Errors returned by orchestrator operations. State is unchanged when they occur.
var (
	ErrNoActiveWorkflow = errors.New("no active workflow")
	ErrUnknownWorkflow  = errors.New("unknown workflow")
	ErrPaused           = errors.New("workflow is paused")
	ErrNotPaused        = errors.New("workflow is not paused")
	ErrNotOptional      = errors.New("step is not optional")
	ErrAtFirstStep      = errors.New("already at the first step")
)

// Stop reasons carried by workflow-stopped events.
const (
	ReasonStopped  = "stopped"
	ReasonReplaced = "replaced"
)

// StepStatus is the progress marker of one step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepActive
	StepCompleted
	StepSkipped
)

func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepActive:
		return "active"
	case StepCompleted:
		return "completed"
	case StepSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Switcher forces step modes active.
type Switcher interface {
	Switch(to modes.ID, trigger modes.Trigger) controller.Decision
}

// Progress is a point-in-time view of a run.
type Progress struct {
	Workflow  string
	Title     string
	Index     int
	Step      Step
	Total     int
	Statuses  []StepStatus
	Paused    bool
	Done      bool
	Started   time.Time
	Elapsed   time.Duration
	Completed int
	Skipped   int
	// Decision is the outcome of the switch forced by the operation, if any.
	Decision controller.Decision
}

// run is the state of the active workflow.
type run struct {
	def      Definition
	index    int
	statuses []StepStatus
	paused   bool
	started  time.Time
}

func (r *run) counts() (completed, skipped int) {
	for _, s := range r.statuses {
		switch s {
		case StepCompleted:
			completed++
		case StepSkipped:
			skipped++
		}
	}
	return completed, skipped
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = now }
}

// Orchestrator runs at most one workflow per session.
type Orchestrator struct {
	catalog *Catalog
	sw      Switcher
	bus     *events.Bus
	clock   func() time.Time

	mu  sync.Mutex
	run *run
}

// NewOrchestrator creates an idle orchestrator.
func NewOrchestrator(catalog *Catalog, sw Switcher, bus *events.Bus, opts ...Option) *Orchestrator {
	o := &Orchestrator{catalog: catalog, sw: sw, bus: bus, clock: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Catalog returns the definition catalog.
func (o *Orchestrator) Catalog() *Catalog { return o.catalog }

// Start aborts any running workflow, begins id and forces its first mode.
func (o *Orchestrator) Start(id string) (Progress, error) {
	def, ok := o.catalog.Get(id)
	if !ok {
		return Progress{}, fmt.Errorf("%w: %q", ErrUnknownWorkflow, id)
	}

	o.mu.Lock()
	prev := o.run
	now := o.clock()
	r := &run{def: def, statuses: make([]StepStatus, len(def.Steps)), started: now}
	r.statuses[0] = StepActive
	o.run = r
	p := o.progressLocked(now)
	o.mu.Unlock()

	if prev != nil {
		wfLog.Info("workflow %s replaced by %s", prev.def.ID, def.ID)
		o.publishStopped(prev, ReasonReplaced, now)
	}
	p.Decision = o.force(def.Steps[0].Mode)
	wfLog.Info("workflow %s started at step %s", def.ID, def.Steps[0].ID)
	o.bus.Publish(events.Event{
		Kind:         events.WorkflowStarted,
		At:           now,
		Workflow:     def.ID,
		Step:         p.Step.ID,
		StepIndex:    0,
		Instructions: p.Step.Instructions,
	})
	return p, nil
}

// Advance completes the current step and moves to the next, completing the
// workflow after the last step.
func (o *Orchestrator) Advance() (Progress, error) {
	return o.forward(StepCompleted)
}

// Skip passes over the current step. Only optional steps can be skipped.
func (o *Orchestrator) Skip() (Progress, error) {
	return o.forward(StepSkipped)
}

func (o *Orchestrator) forward(mark StepStatus) (Progress, error) {
	o.mu.Lock()
	r := o.run
	if r == nil {
		o.mu.Unlock()
		return Progress{}, ErrNoActiveWorkflow
	}
	if r.paused {
		o.mu.Unlock()
		return Progress{}, ErrPaused
	}
	step := r.def.Steps[r.index]
	if mark == StepSkipped && !step.Optional {
		o.mu.Unlock()
		return Progress{}, fmt.Errorf("%w: %q", ErrNotOptional, step.ID)
	}

	now := o.clock()
	r.statuses[r.index] = mark
	if r.index == len(r.def.Steps)-1 {
		p := o.progressLocked(now)
		p.Done = true
		o.run = nil
		o.mu.Unlock()

		wfLog.Info("workflow %s completed: %d completed, %d skipped in %s", r.def.ID, p.Completed, p.Skipped, p.Elapsed)
		o.bus.Publish(events.Event{
			Kind:      events.WorkflowCompleted,
			At:        now,
			Workflow:  r.def.ID,
			Step:      step.ID,
			StepIndex: r.index,
			Completed: p.Completed,
			Skipped:   p.Skipped,
			Elapsed:   p.Elapsed,
		})
		return p, nil
	}
	r.index++
	r.statuses[r.index] = StepActive
	p := o.progressLocked(now)
	o.mu.Unlock()

	p.Decision = o.force(p.Step.Mode)
	o.publishStep(p, now)
	return p, nil
}

// Retreat returns to the previous step, undoing its completion marker.
func (o *Orchestrator) Retreat() (Progress, error) {
	o.mu.Lock()
	r := o.run
	if r == nil {
		o.mu.Unlock()
		return Progress{}, ErrNoActiveWorkflow
	}
	if r.paused {
		o.mu.Unlock()
		return Progress{}, ErrPaused
	}
	if r.index == 0 {
		o.mu.Unlock()
		return Progress{}, ErrAtFirstStep
	}
	now := o.clock()
	r.statuses[r.index] = StepPending
	r.index--
	r.statuses[r.index] = StepActive
	p := o.progressLocked(now)
	o.mu.Unlock()

	p.Decision = o.force(p.Step.Mode)
	o.publishStep(p, now)
	return p, nil
}

// Pause blocks advancing until Resume. Manual mode changes stay possible.
func (o *Orchestrator) Pause() error {
	return o.setPaused(true)
}

// Resume lifts a pause.
func (o *Orchestrator) Resume() error {
	return o.setPaused(false)
}

func (o *Orchestrator) setPaused(paused bool) error {
	o.mu.Lock()
	r := o.run
	if r == nil {
		o.mu.Unlock()
		return ErrNoActiveWorkflow
	}
	if r.paused == paused {
		o.mu.Unlock()
		if paused {
			return ErrPaused
		}
		return ErrNotPaused
	}
	r.paused = paused
	now := o.clock()
	id, step, idx := r.def.ID, r.def.Steps[r.index].ID, r.index
	o.mu.Unlock()

	kind := events.WorkflowResumed
	if paused {
		kind = events.WorkflowPaused
	}
	o.bus.Publish(events.Event{Kind: kind, At: now, Workflow: id, Step: step, StepIndex: idx})
	return nil
}

// Stop abandons the active workflow without completing it.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	r := o.run
	if r == nil {
		o.mu.Unlock()
		return ErrNoActiveWorkflow
	}
	o.run = nil
	now := o.clock()
	o.mu.Unlock()

	wfLog.Info("workflow %s stopped at step %s", r.def.ID, r.def.Steps[r.index].ID)
	o.publishStopped(r, ReasonStopped, now)
	return nil
}

// Progress returns the active run's state.
func (o *Orchestrator) Progress() (Progress, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil {
		return Progress{}, false
	}
	return o.progressLocked(o.clock()), true
}

// Active reports whether a workflow is running.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run != nil
}

func (o *Orchestrator) progressLocked(now time.Time) Progress {
	r := o.run
	completed, skipped := r.counts()
	return Progress{
		Workflow:  r.def.ID,
		Title:     r.def.Title(),
		Index:     r.index,
		Step:      r.def.Steps[r.index],
		Total:     len(r.def.Steps),
		Statuses:  append([]StepStatus(nil), r.statuses...),
		Paused:    r.paused,
		Started:   r.started,
		Elapsed:   now.Sub(r.started),
		Completed: completed,
		Skipped:   skipped,
	}
}

// force switches to mode explicitly. Denials are logged, not returned: the
// workflow position stays authoritative.
func (o *Orchestrator) force(mode modes.ID) controller.Decision {
	dec := o.sw.Switch(mode, modes.TriggerExplicit)
	if !dec.Allowed && dec.Code != controller.CodeSameMode {
		wfLog.Warn("workflow could not switch to %s: %s", mode, dec.Reason)
	}
	return dec
}

func (o *Orchestrator) publishStep(p Progress, now time.Time) {
	o.bus.Publish(events.Event{
		Kind:         events.WorkflowStepChanged,
		At:           now,
		Workflow:     p.Workflow,
		Step:         p.Step.ID,
		StepIndex:    p.Index,
		Instructions: p.Step.Instructions,
	})
}

// Guidance describes the active step for reinjection into the prompt.
func (p Progress) Guidance(reg *modes.Registry) string {
	name := p.Step.Name
	if name == "" {
		name = p.Step.ID
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Workflow %s, step %d/%d: %s (%s).\n", p.Title, p.Index+1, p.Total, name, reg.Lookup(p.Step.Mode).Name)
	if p.Step.Description != "" {
		fmt.Fprintf(&b, "Goal: %s\n", p.Step.Description)
	}
	if p.Step.Instructions != "" {
		fmt.Fprintf(&b, "Step instructions: %s\n", p.Step.Instructions)
	}
	return b.String()
}

func (o *Orchestrator) publishStopped(r *run, reason string, now time.Time) {
	o.bus.Publish(events.Event{
		Kind:      events.WorkflowStopped,
		At:        now,
		Workflow:  r.def.ID,
		Step:      r.def.Steps[r.index].ID,
		StepIndex: r.index,
		Reason:    reason,
		Elapsed:   now.Sub(r.started),
	})
}
