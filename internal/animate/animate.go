// ABOUTME: Transition animator: trigger-specific loading and completion messages for mode switches
// ABOUTME: Animation records move pending -> active -> complete and expire from a go-cache after a delay

package animate

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mauromedda/pi-modes/internal/events"
	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/patrickmn/go-cache"
)

// DefaultLinger is how long a completed record stays queryable.
const DefaultLinger = 3 * time.Second

// Phase is the lifecycle stage of an animation record.
type Phase int

const (
	Pending Phase = iota
	Active
	Complete
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Record is one switch animation.
type Record struct {
	ID         string
	Seq        uint64
	Transition modes.Transition
	Phase      Phase
	Loading    string
	Completion string
	Started    time.Time
	Completed  time.Time
}

// Option configures an Animator.
type Option func(*Animator)

// WithLinger overrides how long completed records are kept.
func WithLinger(d time.Duration) Option {
	return func(a *Animator) { a.linger = d }
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Animator) { a.clock = now }
}

// WithPlain disables lipgloss styling of mode labels.
// WithCanned replaces the built-in pair messages. Each format string takes
// the target label once.
func WithCanned(msgs map[modes.Pair]Canned) Option {
	return func(a *Animator) { a.canned = maps.Clone(msgs) }
}

func WithPlain() Option {
	return func(a *Animator) { a.plain = true }
}

// WithBus publishes animation-started and animation-completed on bus.
func WithBus(bus *events.Bus) Option {
	return func(a *Animator) { a.bus = bus }
}

// Animator formats switch messages and tracks short-lived records.
type Animator struct {
	reg     *modes.Registry
	records *cache.Cache
	linger  time.Duration
	clock   func() time.Time
	plain   bool
	canned  map[modes.Pair]Canned
	bus     *events.Bus
	seq     atomic.Uint64
}

// New creates an animator over reg.
func New(reg *modes.Registry, opts ...Option) *Animator {
	a := &Animator{
		reg:    reg,
		linger: DefaultLinger,
		clock:  time.Now,
		canned: DefaultCanned(),
	}
	for _, o := range opts {
		o(a)
	}
	// No janitor goroutine: expired records are dropped on access and by
	// DeleteExpired in Prepare.
	a.records = cache.New(a.linger, 0)
	return a
}

// label renders a mode's icon and name in its color.
func (a *Animator) label(id modes.ID) string {
	m := a.reg.Lookup(id)
	if a.plain || m.Color == "" {
		return m.Label()
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(m.Color)).Bold(true).Render(m.Label())
}

// LoadingMessage returns the in-progress text for tr.
func (a *Animator) LoadingMessage(tr modes.Transition) string {
	if c, ok := a.canned[tr.Pair()]; ok {
		return fmt.Sprintf(c.Loading, a.label(tr.To))
	}
	to := a.label(tr.To)
	switch tr.Trigger {
	case modes.TriggerHeuristic:
		return fmt.Sprintf("Context points to %s (%.0f%% confidence), switching...", to, tr.Confidence*100)
	case modes.TriggerTool:
		return fmt.Sprintf("Tool activity suggests %s, switching...", to)
	case modes.TriggerExplicit:
		return fmt.Sprintf("Switching to %s as requested...", to)
	default:
		return fmt.Sprintf("Switching to %s...", to)
	}
}

// CompletionMessage returns the text shown once the switch is in effect.
func (a *Animator) CompletionMessage(tr modes.Transition) string {
	if c, ok := a.canned[tr.Pair()]; ok {
		return fmt.Sprintf(c.Completion, a.label(tr.To))
	}
	m := a.reg.Lookup(tr.To)
	if m.Persona == "" {
		return fmt.Sprintf("%s mode active.", a.label(tr.To))
	}
	return fmt.Sprintf("%s mode active: %s.", a.label(tr.To), m.Persona)
}

// Prepare registers a pending record for tr.
func (a *Animator) Prepare(tr modes.Transition) Record {
	a.records.DeleteExpired()
	seq := a.seq.Add(1)
	r := Record{
		ID:         strconv.FormatUint(seq, 10),
		Seq:        seq,
		Transition: tr,
		Phase:      Pending,
		Loading:    a.LoadingMessage(tr),
		Completion: a.CompletionMessage(tr),
	}
	a.records.Set(r.ID, r, cache.NoExpiration)
	return r
}

// Start marks a pending record active and publishes its loading message.
func (a *Animator) Start(id string) (Record, bool) {
	r, ok := a.Get(id)
	if !ok || r.Phase != Pending {
		return r, false
	}
	r.Phase = Active
	r.Started = a.clock()
	a.records.Set(id, r, cache.NoExpiration)
	if a.bus != nil {
		a.bus.Publish(events.Event{Kind: events.AnimationStarted, At: r.Started, Transition: r.Transition, Message: r.Loading})
	}
	return r, true
}

// Complete marks an active record complete, publishes its completion
// message and schedules its removal.
func (a *Animator) Complete(id string) (Record, bool) {
	r, ok := a.Get(id)
	if !ok || r.Phase != Active {
		return r, false
	}
	r.Phase = Complete
	r.Completed = a.clock()
	a.records.Set(id, r, a.linger)
	if a.bus != nil {
		a.bus.Publish(events.Event{Kind: events.AnimationCompleted, At: r.Completed, Transition: r.Transition, Message: r.Completion})
	}
	return r, true
}

// Play runs a record through all phases.
func (a *Animator) Play(tr modes.Transition) Record {
	r := a.Prepare(tr)
	a.Start(r.ID)
	r, _ = a.Complete(r.ID)
	return r
}

// Get returns a record that has not expired.
func (a *Animator) Get(id string) (Record, bool) {
	v, ok := a.records.Get(id)
	if !ok {
		return Record{}, false
	}
	return v.(Record), true
}

// Records returns live records in creation order.
func (a *Animator) Records() []Record {
	items := a.records.Items()
	out := make([]Record, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(Record))
	}
	slices.SortFunc(out, func(x, y Record) int { return cmp.Compare(x.Seq, y.Seq) })
	return out
}

// Attach plays every mode-changed event on bus. It returns the unsubscribe func.
func (a *Animator) Attach(bus *events.Bus) func() {
	return bus.Subscribe(func(e events.Event) {
		if e.Kind == events.ModeChanged {
			a.Play(e.Transition)
		}
	})
}
