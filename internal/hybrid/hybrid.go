// ABOUTME: Hybrid modes: combine base modes into one persona, tool envelope and instruction set
// ABOUTME: Presets match order-independently; synthesized hybrids are cached under a sorted id

package hybrid

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	pilog "github.com/mauromedda/pi-modes/internal/log"
	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/permission"
)

// IDSeparator joins sorted base ids into a synthesized hybrid id.
const IDSeparator = "+"

// Errors returned by the composer.
var (
	ErrTooFewModes     = errors.New("a hybrid needs at least two distinct modes")
	ErrUnknownMode     = errors.New("unknown mode")
	ErrUnknownHybrid   = errors.New("unknown hybrid")
	ErrPresetImmutable = errors.New("preset hybrids cannot be deleted")
)

var hybridLog = pilog.Named("hybrid")

// Origin says where a hybrid came from.
type Origin int

const (
	Synthesized Origin = iota
	Preset
	User
)

func (o Origin) String() string {
	switch o {
	case Synthesized:
		return "synthesized"
	case Preset:
		return "preset"
	case User:
		return "user"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// Hybrid is a composed mode.
type Hybrid struct {
	ID           string
	Name         string
	Description  string
	Icon         string
	Color        string
	Bases        []modes.ID
	Persona      string
	Instructions string
	AllowedTools []string
	DeniedTools  []string
	Temperature  float64
	Class        modes.TemperatureClass
	Origin       Origin
}

func (h Hybrid) clone() Hybrid {
	h.Bases = slices.Clone(h.Bases)
	h.AllowedTools = slices.Clone(h.AllowedTools)
	h.DeniedTools = slices.Clone(h.DeniedTools)
	return h
}

// Mode renders h as mode metadata so tool gating works unchanged.
func (h Hybrid) Mode() modes.Mode {
	return modes.Mode{
		ID:           modes.ID(h.ID),
		Name:         h.Name,
		Icon:         h.Icon,
		Color:        h.Color,
		Persona:      h.Persona,
		Instructions: h.Instructions,
		AllowedTools: slices.Clone(h.AllowedTools),
		DeniedTools:  slices.Clone(h.DeniedTools),
		Temperature:  h.Temperature,
		Class:        h.Class,
	}
}

// Label is the icon and name, like modes.Mode.Label.
func (h Hybrid) Label() string {
	return h.Mode().Label()
}

// IsToolAllowed reports whether the combined envelope permits tool.
func (h Hybrid) IsToolAllowed(tool string) bool {
	return permission.IsToolAllowed(h.Mode(), tool)
}

// PresetDef names a fixed base combination. Empty display fields fall back
// to the values derived from the bases.
type PresetDef struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Color       string
	Bases       []modes.ID
}

// DefaultPresets returns a fresh copy of the built-in presets.
func DefaultPresets() []PresetDef {
	return []PresetDef{
		{
			ID:          "architect-reviewer",
			Name:        "Architect Reviewer",
			Description: "Designs a change and critiques the design before any code is written.",
			Icon:        "🏛",
			Color:       "33",
			Bases:       []modes.ID{modes.Planner, modes.Reviewer},
		},
		{
			ID:          "secure-builder",
			Name:        "Secure Builder",
			Description: "Implements features while threat-modelling every input and dependency.",
			Icon:        "🔐",
			Color:       "166",
			Bases:       []modes.ID{modes.Implementer, modes.Security},
		},
		{
			ID:          "debug-reviewer",
			Name:        "Debug Reviewer",
			Description: "Finds the root cause of a failure and reviews the fix for regressions.",
			Icon:        "🩺",
			Color:       "160",
			Bases:       []modes.ID{modes.Debugger, modes.Reviewer},
		},
	}
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithPresets replaces the built-in presets.
func WithPresets(ps []PresetDef) ComposerOption {
	return func(c *Composer) {
		c.presets = make([]PresetDef, len(ps))
		for i, p := range ps {
			p.Bases = slices.Clone(p.Bases)
			c.presets[i] = p
		}
	}
}

// Composer builds and caches hybrids for a registry.
type Composer struct {
	reg     *modes.Registry
	presets []PresetDef

	mu    sync.RWMutex
	cache map[string]Hybrid // synthesized, by id
	user  map[string]Hybrid
}

// NewComposer creates a composer with no cached hybrids.
func NewComposer(reg *modes.Registry, opts ...ComposerOption) *Composer {
	c := &Composer{
		reg:     reg,
		presets: DefaultPresets(),
		cache:   make(map[string]Hybrid),
		user:    make(map[string]Hybrid),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose returns the preset matching bases, or a synthesized hybrid.
// Duplicate bases are ignored; order only affects display names.
func (c *Composer) Compose(bases ...modes.ID) (Hybrid, error) {
	set, err := c.normalize(bases)
	if err != nil {
		return Hybrid{}, err
	}
	if p, ok := c.matchPreset(set); ok {
		return c.fromPreset(p), nil
	}

	id := SynthesizedID(set)
	c.mu.RLock()
	h, ok := c.cache[id]
	c.mu.RUnlock()
	if ok {
		return h.clone(), nil
	}

	h = c.synthesize(set)
	c.mu.Lock()
	if existing, ok := c.cache[id]; ok {
		h = existing
	} else {
		c.cache[id] = h
		hybridLog.Debug("synthesized hybrid %s", id)
	}
	c.mu.Unlock()
	return h.clone(), nil
}

// normalize dedupes bases, keeping first-seen order, and validates them.
func (c *Composer) normalize(bases []modes.ID) ([]modes.ID, error) {
	var set []modes.ID
	for _, b := range bases {
		if !c.reg.Has(b) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMode, b)
		}
		if !slices.Contains(set, b) {
			set = append(set, b)
		}
	}
	if len(set) < 2 {
		return nil, ErrTooFewModes
	}
	return set, nil
}

// SynthesizedID is the sorted base ids joined by IDSeparator.
func SynthesizedID(bases []modes.ID) string {
	ids := make([]string, len(bases))
	for i, b := range bases {
		ids[i] = string(b)
	}
	slices.Sort(ids)
	return strings.Join(ids, IDSeparator)
}

func (c *Composer) matchPreset(set []modes.ID) (PresetDef, bool) {
	for _, p := range c.presets {
		if len(p.Bases) != len(set) {
			continue
		}
		all := true
		for _, b := range set {
			if !slices.Contains(p.Bases, b) {
				all = false
				break
			}
		}
		if all {
			return p, true
		}
	}
	return PresetDef{}, false
}

func (c *Composer) presetByID(id string) (PresetDef, bool) {
	for _, p := range c.presets {
		if p.ID == id {
			return p, true
		}
	}
	return PresetDef{}, false
}

func (c *Composer) fromPreset(p PresetDef) Hybrid {
	h := c.synthesize(p.Bases)
	h.ID, h.Name, h.Origin = p.ID, p.Name, Preset
	if p.Description != "" {
		h.Description = p.Description
	}
	if p.Icon != "" {
		h.Icon = p.Icon
	}
	if p.Color != "" {
		h.Color = p.Color
	}
	return h
}

// synthesize combines the base modes in the given order.
func (c *Composer) synthesize(bases []modes.ID) Hybrid {
	ms := make([]modes.Mode, len(bases))
	names := make([]string, len(bases))
	personas := make([]string, len(bases))
	var icon strings.Builder
	for i, b := range bases {
		ms[i] = c.reg.Lookup(b)
		names[i] = ms[i].Name
		personas[i] = ms[i].Persona
		icon.WriteString(ms[i].Icon)
	}

	h := Hybrid{
		ID:           SynthesizedID(bases),
		Name:         strings.Join(names, " + "),
		Description:  "Combines the " + conjunction(names) + " modes.",
		Icon:         icon.String(),
		Color:        ms[0].Color,
		Bases:        slices.Clone(bases),
		Persona:      conjunction(personas),
		Instructions: instructions(ms),
		Origin:       Synthesized,
	}
	h.AllowedTools, h.DeniedTools = toolEnvelope(ms)

	// The most careful base sets the temperature.
	coolest := ms[0]
	for _, m := range ms[1:] {
		if m.Temperature < coolest.Temperature {
			coolest = m
		}
	}
	h.Temperature, h.Class = coolest.Temperature, coolest.Class
	return h
}

// conjunction joins personas as "a, b and c".
func conjunction(parts []string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	switch len(nonEmpty) {
	case 0:
		return ""
	case 1:
		return nonEmpty[0]
	}
	return strings.Join(nonEmpty[:len(nonEmpty)-1], ", ") + " and " + nonEmpty[len(nonEmpty)-1]
}

// toolEnvelope unions the allow lists; a universal allow in any base wins.
// A deny survives only when every restricted base declares it.
func toolEnvelope(ms []modes.Mode) (allowed, denied []string) {
	for _, m := range ms {
		if permission.Universal(m.AllowedTools) {
			return []string{modes.AllTools}, nil
		}
	}
	for _, m := range ms {
		for _, t := range m.AllowedTools {
			if !slices.Contains(allowed, t) {
				allowed = append(allowed, t)
			}
		}
	}
	for _, d := range ms[0].DeniedTools {
		everywhere := true
		for _, m := range ms[1:] {
			if !slices.Contains(m.DeniedTools, d) {
				everywhere = false
				break
			}
		}
		if everywhere {
			denied = append(denied, d)
		}
	}
	return allowed, denied
}

func instructions(ms []modes.Mode) string {
	var b strings.Builder
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.Name
		fmt.Fprintf(&b, "## %s\n%s\n\n", m.Name, m.Instructions)
	}
	b.WriteString("## Integration guidance\n")
	fmt.Fprintf(&b, "Work as %s at once. ", strings.Join(names, " and "))
	b.WriteString("Apply every perspective to each step instead of alternating between them. ")
	b.WriteString("When their instructions conflict, prefer the stricter one and say which you followed.\n")
	return b.String()
}

// Get returns a preset, user or cached hybrid by id.
func (c *Composer) Get(id string) (Hybrid, bool) {
	if p, ok := c.presetByID(id); ok {
		return c.fromPreset(p), true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if h, ok := c.user[id]; ok {
		return h.clone(), true
	}
	if h, ok := c.cache[id]; ok {
		return h.clone(), true
	}
	return Hybrid{}, false
}

// Presets returns the preset hybrids.
func (c *Composer) Presets() []Hybrid {
	out := make([]Hybrid, 0, len(c.presets))
	for _, p := range c.presets {
		out = append(out, c.fromPreset(p))
	}
	return out
}

// List returns presets, then user hybrids, then cached ones, each group by id.
func (c *Composer) List() []Hybrid {
	out := c.Presets()
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, group := range []map[string]Hybrid{c.user, c.cache} {
		ids := make([]string, 0, len(group))
		for id := range group {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			out = append(out, group[id].clone())
		}
	}
	return out
}

// Delete removes a user or cached hybrid. Presets cannot be deleted.
func (c *Composer) Delete(id string) error {
	if _, ok := c.presetByID(id); ok {
		return fmt.Errorf("%w: %s", ErrPresetImmutable, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.user[id]; ok {
		delete(c.user, id)
		return nil
	}
	if _, ok := c.cache[id]; ok {
		delete(c.cache, id)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownHybrid, id)
}
