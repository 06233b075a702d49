// ABOUTME: User-defined hybrids loaded from YAML; unset fields fall back to the synthesized values
// ABOUTME: Mode names resolve through the registry so aliases like "debug" or "sec" work

package hybrid

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mauromedda/pi-modes/internal/modes"
)

// Definition is the YAML form of a user hybrid.
type Definition struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Icon         string   `yaml:"icon,omitempty"`
	Color        string   `yaml:"color,omitempty"`
	Modes        []string `yaml:"modes"`
	Persona      string   `yaml:"persona,omitempty"`
	Instructions string   `yaml:"instructions,omitempty"`
	Tools        []string `yaml:"tools,omitempty"`
}

// Parse decodes one YAML definition.
func Parse(data []byte) (Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Definition{}, fmt.Errorf("parse hybrid: %w", err)
	}
	return d, nil
}

// Build turns d into a hybrid without registering it.
func (c *Composer) Build(d Definition) (Hybrid, error) {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		return Hybrid{}, errors.New("hybrid id is required")
	}
	if _, ok := c.presetByID(id); ok {
		return Hybrid{}, fmt.Errorf("hybrid %q shadows a preset", id)
	}
	bases := make([]modes.ID, 0, len(d.Modes))
	for _, name := range d.Modes {
		mid, ok := c.reg.Resolve(name)
		if !ok {
			return Hybrid{}, fmt.Errorf("hybrid %q: %w: %q", id, ErrUnknownMode, name)
		}
		bases = append(bases, mid)
	}
	set, err := c.normalize(bases)
	if err != nil {
		return Hybrid{}, fmt.Errorf("hybrid %q: %w", id, err)
	}

	h := c.synthesize(set)
	h.ID, h.Origin = id, User
	if d.Name != "" {
		h.Name = d.Name
	}
	if d.Description != "" {
		h.Description = d.Description
	}
	if d.Icon != "" {
		h.Icon = d.Icon
	}
	if d.Color != "" {
		h.Color = d.Color
	}
	if d.Persona != "" {
		h.Persona = d.Persona
	}
	if d.Instructions != "" {
		h.Instructions = d.Instructions
	}
	if len(d.Tools) > 0 {
		h.AllowedTools, h.DeniedTools = slices.Clone(d.Tools), nil
	}
	return h, nil
}

// Define registers a user hybrid, replacing one with the same id.
func (c *Composer) Define(d Definition) (Hybrid, error) {
	h, err := c.Build(d)
	if err != nil {
		return Hybrid{}, err
	}
	c.mu.Lock()
	c.user[h.ID] = h
	c.mu.Unlock()
	return h.clone(), nil
}

// LoadDirs reads user hybrids from YAML files in dirs. Later directories
// override earlier ones by id; missing directories are skipped and invalid
// files are reported in the joined error.
func (c *Composer) LoadDirs(dirs []string) ([]Hybrid, error) {
	byID := make(map[string]Hybrid)
	var order []string
	var errs []error
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("read hybrids directory %s: %w", dir, err))
			}
			continue
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				errs = append(errs, fmt.Errorf("read hybrid %s: %w", path, err))
				continue
			}
			d, err := Parse(data)
			if err == nil {
				var h Hybrid
				if h, err = c.Build(d); err == nil {
					if _, seen := byID[h.ID]; !seen {
						order = append(order, h.ID)
					}
					byID[h.ID] = h
					continue
				}
			}
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	out := make([]Hybrid, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, errors.Join(errs...)
}

// Reload replaces all user hybrids with those found in dirs. Load errors
// are logged; valid files still take effect.
func (c *Composer) Reload(dirs []string) int {
	hs, err := c.LoadDirs(dirs)
	if err != nil {
		hybridLog.Warn("loading hybrids: %v", err)
	}
	user := make(map[string]Hybrid, len(hs))
	for _, h := range hs {
		user[h.ID] = h
	}
	c.mu.Lock()
	c.user = user
	c.mu.Unlock()
	hybridLog.Debug("loaded %d user hybrids", len(hs))
	return len(hs)
}
