// ABOUTME: Mode-controller events: switches, blocks, focus, animation, workflow lifecycle
// ABOUTME: Plain data records published on a typed eventbus in a fixed order

package events

import (
	"time"

	"github.com/mauromedda/pi-modes/internal/eventbus"
	"github.com/mauromedda/pi-modes/internal/modes"
)

// Kind identifies the kind of event.
type Kind int

const (
	ModeChanged       Kind = iota // An accepted switch
	ModeSwitchBlocked             // A switch refused by the focus lock
	AutoSwitchChanged             // Auto-switch flag toggled
	SkillsChanged                 // Active skill set replaced
	AnimationStarted              // Loading message for a switch
	AnimationCompleted            // Completion message for a switch
	WorkflowStarted
	WorkflowStepChanged
	WorkflowPaused
	WorkflowResumed
	WorkflowStopped
	WorkflowCompleted
	FocusStarted
	FocusEnded
	FocusExtended
	FocusCountdown // Periodic remaining-time update
)

var kindNames = [...]string{
	ModeChanged:         "mode-changed",
	ModeSwitchBlocked:   "mode-switch-blocked",
	AutoSwitchChanged:   "auto-switch-changed",
	SkillsChanged:       "skills-changed",
	AnimationStarted:    "animation-started",
	AnimationCompleted:  "animation-completed",
	WorkflowStarted:     "workflow-started",
	WorkflowStepChanged: "workflow-step-changed",
	WorkflowPaused:      "workflow-paused",
	WorkflowResumed:     "workflow-resumed",
	WorkflowStopped:     "workflow-stopped",
	WorkflowCompleted:   "workflow-completed",
	FocusStarted:        "focus-started",
	FocusEnded:          "focus-ended",
	FocusExtended:       "focus-extended",
	FocusCountdown:      "focus-countdown",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Event is one notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind       Kind
	At         time.Time
	Transition modes.Transition // ModeChanged, ModeSwitchBlocked (proposed), Animation*
	Mode       modes.ID         // Focus*: locked mode
	Reason     string           // ModeSwitchBlocked, FocusEnded
	Message    string           // Animation*: rendered text
	Remaining  time.Duration    // FocusStarted, FocusExtended, FocusCountdown
	AutoSwitch bool             // AutoSwitchChanged
	Skills     []string         // SkillsChanged
	Workflow   string           // Workflow*: definition id
	Step       string           // Workflow*: current step id
	StepIndex  int
	Completed  int // WorkflowCompleted: completed steps
	Skipped    int // WorkflowCompleted: skipped steps
	Elapsed    time.Duration

	// Instructions of the current step (WorkflowStarted, WorkflowStepChanged).
	Instructions string
}

// Bus is the event bus carrying Events.
type Bus = eventbus.Bus[Event]

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return eventbus.New[Event]()
}
