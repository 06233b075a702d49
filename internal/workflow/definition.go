// ABOUTME: Workflow definitions: ordered mode steps, built-ins and YAML-loaded user definitions
// ABOUTME: Validation rejects empty ids, empty step lists, unknown modes and duplicate step ids

package workflow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	pilog "github.com/mauromedda/pi-modes/internal/log"
	"github.com/mauromedda/pi-modes/internal/modes"
)

var wfLog = pilog.Named("workflow")

// Step is one mode phase of a workflow.
type Step struct {
	ID           string   `yaml:"id"`
	Mode         modes.ID `yaml:"mode"`
	Name         string   `yaml:"name,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Instructions string   `yaml:"instructions,omitempty"` // added to the mode's instructions while active
	Optional     bool     `yaml:"optional,omitempty"`
}

// Definition is a static ordered list of steps.
type Definition struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`

	Source string `yaml:"-"` // file path, empty for built-ins
}

// Title returns Name, falling back to the id.
func (d Definition) Title() string {
	if d.Name != "" {
		return d.Name
	}
	return modes.DisplayName(modes.ID(d.ID))
}

// Validate checks d against the mode registry.
func (d Definition) Validate(reg *modes.Registry) error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("workflow id is required")
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("workflow %q has no steps", d.ID)
	}
	seen := make(map[string]bool, len(d.Steps))
	for i, s := range d.Steps {
		if s.ID == "" {
			return fmt.Errorf("workflow %q step %d: id is required", d.ID, i+1)
		}
		if seen[s.ID] {
			return fmt.Errorf("workflow %q: duplicate step id %q", d.ID, s.ID)
		}
		seen[s.ID] = true
		if !reg.Has(s.Mode) {
			return fmt.Errorf("workflow %q step %q: unknown mode %q", d.ID, s.ID, s.Mode)
		}
	}
	return nil
}

func (d Definition) clone() Definition {
	d.Steps = slices.Clone(d.Steps)
	return d
}

// Builtins returns the shipped workflow definitions.
func Builtins() []Definition {
	return []Definition{
		{
			ID:          "feature",
			Name:        "Feature",
			Description: "Plan a feature, build it, then review the change.",
			Steps: []Step{
				{ID: "plan", Mode: modes.Planner, Name: "Plan", Description: "Break the feature into tasks",
					Instructions: "End with a numbered task list; each task names the files it touches."},
				{ID: "implement", Mode: modes.Implementer, Name: "Implement", Description: "Write the code and tests",
					Instructions: "Work through the task list in order and keep tests green after each task."},
				{ID: "review", Mode: modes.Reviewer, Name: "Review", Description: "Review the diff", Optional: true},
			},
		},
		{
			ID:          "bugfix",
			Name:        "Bug fix",
			Description: "Reproduce and diagnose a bug, fix it, then review the fix.",
			Steps: []Step{
				{ID: "diagnose", Mode: modes.Debugger, Name: "Diagnose", Description: "Reproduce and find the root cause",
					Instructions: "Do not change code yet. Record the reproduction steps and the root cause as findings."},
				{ID: "fix", Mode: modes.Implementer, Name: "Fix", Description: "Apply the fix with a regression test",
					Instructions: "Write the failing regression test first, then the smallest fix that passes it."},
				{ID: "review", Mode: modes.Reviewer, Name: "Review", Description: "Review the fix", Optional: true},
			},
		},
		{
			ID:          "security-audit",
			Name:        "Security audit",
			Description: "Audit for vulnerabilities, review findings, plan remediation.",
			Steps: []Step{
				{ID: "audit", Mode: modes.Security, Name: "Audit", Description: "Look for vulnerabilities",
					Instructions: "Rate each finding critical, high, medium or low and cite the file and line."},
				{ID: "review", Mode: modes.Reviewer, Name: "Review", Description: "Confirm and rank findings"},
				{ID: "remediate", Mode: modes.Planner, Name: "Plan remediation", Optional: true},
			},
		},
	}
}

// Parse decodes one YAML definition.
func Parse(data []byte) (Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Definition{}, fmt.Errorf("parse workflow: %w", err)
	}
	return d, nil
}

// LoadFile reads and validates one definition file.
func LoadFile(path string, reg *modes.Registry) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read workflow %s: %w", path, err)
	}
	d, err := Parse(data)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := d.Validate(reg); err != nil {
		return Definition{}, fmt.Errorf("validate workflow %s: %w", path, err)
	}
	d.Source = path
	return d, nil
}

// LoadDirs reads every YAML definition under dirs, in order, so later
// directories override earlier ones by id. Missing directories are skipped.
// Invalid files are skipped and reported in the joined error.
func LoadDirs(dirs []string, reg *modes.Registry) ([]Definition, error) {
	byID := make(map[string]Definition)
	var order []string
	var errs []error
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("read workflows directory %s: %w", dir, err))
			}
			continue
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
				continue
			}
			d, err := LoadFile(filepath.Join(dir, e.Name()), reg)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if _, ok := byID[d.ID]; !ok {
				order = append(order, d.ID)
			}
			byID[d.ID] = d
		}
	}
	out := make([]Definition, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, errors.Join(errs...)
}

// Catalog holds built-in and user definitions. User definitions shadow
// built-ins with the same id.
type Catalog struct {
	reg *modes.Registry

	mu   sync.RWMutex
	user map[string]Definition
}

// NewCatalog creates a catalog holding only the built-ins.
func NewCatalog(reg *modes.Registry) *Catalog {
	return &Catalog{reg: reg, user: make(map[string]Definition)}
}

// Reload replaces the user definitions with those found in dirs. Load
// errors are logged; valid files still take effect.
func (c *Catalog) Reload(dirs []string) int {
	defs, err := LoadDirs(dirs, c.reg)
	if err != nil {
		wfLog.Warn("loading workflows: %v", err)
	}
	user := make(map[string]Definition, len(defs))
	for _, d := range defs {
		user[d.ID] = d
	}
	c.mu.Lock()
	c.user = user
	c.mu.Unlock()
	wfLog.Debug("loaded %d user workflows", len(defs))
	return len(defs)
}

// Add registers a user definition after validating it.
func (c *Catalog) Add(d Definition) error {
	if err := d.Validate(c.reg); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user[d.ID] = d.clone()
	return nil
}

// Get returns the definition for id.
func (c *Catalog) Get(id string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if d, ok := c.user[id]; ok {
		return d.clone(), true
	}
	for _, d := range Builtins() {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// List returns all definitions sorted by id.
func (c *Catalog) List() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Definition
	for _, d := range Builtins() {
		if _, shadowed := c.user[d.ID]; !shadowed {
			out = append(out, d)
		}
	}
	for _, d := range c.user {
		out = append(out, d.clone())
	}
	slices.SortFunc(out, func(a, b Definition) int { return strings.Compare(a.ID, b.ID) })
	return out
}
