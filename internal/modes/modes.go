// ABOUTME: Mode identifiers, per-mode metadata, and the immutable mode registry
// ABOUTME: A Registry is built once per session and injected; there are no mutable globals

package modes

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ID identifies a behavioral mode.
type ID string

// Built-in modes in declaration order. Declaration order is also the
// tie-break priority when two modes score equally.
const (
	Assistant   ID = "assistant"
	Planner     ID = "planner"
	Implementer ID = "implementer"
	Debugger    ID = "debugger"
	Reviewer    ID = "reviewer"
	Security    ID = "security"
	Researcher  ID = "researcher"
)

// Any is the wildcard source used in threshold lookups ("*->debugger").
const Any ID = "*"

// AllTools is the universal-allow sentinel in tool pattern lists.
const AllTools = "*"

// TemperatureClass groups modes by generation temperature.
type TemperatureClass int

const (
	Precise        TemperatureClass = iota // debugging, review, security
	Technical                              // implementation
	Conversational                         // chat, planning, research
)

// String returns the class name.
func (c TemperatureClass) String() string {
	switch c {
	case Precise:
		return "precise"
	case Technical:
		return "technical"
	case Conversational:
		return "conversational"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// Mode is the static metadata of a behavioral mode.
type Mode struct {
	ID           ID
	Name         string
	Icon         string
	Color        string // lipgloss color spec
	Persona      string
	Instructions string
	Aliases      []string
	AllowedTools []string // exact names, trailing-* prefixes, or AllTools
	DeniedTools  []string // evaluated only when AllowedTools is not universal
	TriggerTools []string // tool patterns whose use implies this mode
	Temperature  float64
	Class        TemperatureClass
	Lexicon      []string // lowercase substrings scored by the classifier
}

// Label returns "icon name".
func (m Mode) Label() string {
	if m.Icon == "" {
		return m.Name
	}
	return m.Icon + " " + m.Name
}

func (m Mode) clone() Mode {
	m.Aliases = slices.Clone(m.Aliases)
	m.AllowedTools = slices.Clone(m.AllowedTools)
	m.DeniedTools = slices.Clone(m.DeniedTools)
	m.TriggerTools = slices.Clone(m.TriggerTools)
	m.Lexicon = slices.Clone(m.Lexicon)
	return m
}

// Registry errors.
var (
	ErrEmptyRegistry  = errors.New("registry needs at least one mode")
	ErrDuplicateMode  = errors.New("duplicate mode id")
	ErrUnknownDefault = errors.New("default mode not registered")
)

// Registry is an immutable, ordered set of modes.
type Registry struct {
	order []ID
	byID  map[ID]Mode
	def   ID
}

// NewRegistry builds a registry from modes in declaration order.
func NewRegistry(def ID, list ...Mode) (*Registry, error) {
	if len(list) == 0 {
		return nil, ErrEmptyRegistry
	}
	r := &Registry{
		order: make([]ID, 0, len(list)),
		byID:  make(map[ID]Mode, len(list)),
		def:   def,
	}
	for _, m := range list {
		if m.ID == "" {
			return nil, fmt.Errorf("mode with empty id")
		}
		if _, dup := r.byID[m.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMode, m.ID)
		}
		if m.Name == "" {
			m.Name = DisplayName(m.ID)
		}
		r.order = append(r.order, m.ID)
		r.byID[m.ID] = m.clone()
	}
	if _, ok := r.byID[def]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDefault, def)
	}
	return r, nil
}

// WithDefault returns a copy of the registry using a different default mode.
func (r *Registry) WithDefault(def ID) (*Registry, error) {
	if _, ok := r.byID[def]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDefault, def)
	}
	cp := *r
	cp.def = def
	return &cp, nil
}

// Default returns the default mode id.
func (r *Registry) Default() ID { return r.def }

// Has reports whether id is registered.
func (r *Registry) Has(id ID) bool {
	_, ok := r.byID[id]
	return ok
}

// Get returns a copy of the mode metadata.
func (r *Registry) Get(id ID) (Mode, bool) {
	m, ok := r.byID[id]
	if !ok {
		return Mode{}, false
	}
	return m.clone(), true
}

// Lookup returns the metadata for id or a placeholder named after it.
func (r *Registry) Lookup(id ID) Mode {
	if m, ok := r.Get(id); ok {
		return m
	}
	return Mode{ID: id, Name: DisplayName(id)}
}

// IDs returns mode ids in declaration order.
func (r *Registry) IDs() []ID {
	return slices.Clone(r.order)
}

// Modes returns all modes in declaration order.
func (r *Registry) Modes() []Mode {
	out := make([]Mode, len(r.order))
	for i, id := range r.order {
		out[i] = r.byID[id].clone()
	}
	return out
}

// Index returns the declaration position of id, or -1.
func (r *Registry) Index(id ID) int {
	return slices.Index(r.order, id)
}

// Len returns the number of modes.
func (r *Registry) Len() int { return len(r.order) }

// DisplayName turns an id like "code-reviewer" into "Code Reviewer".
// A Caser is stateful, so each call builds its own.
func DisplayName(id ID) string {
	s := strings.NewReplacer("-", " ", "_", " ").Replace(string(id))
	return cases.Title(language.English).String(s)
}
