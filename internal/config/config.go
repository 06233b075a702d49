// ABOUTME: Settings loading with global + project config deep merge
// ABOUTME: JSON-based configuration; the modes section tunes controller, classifier and observers

package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"time"
)

// Settings holds the merged configuration.
type Settings struct {
	LogLevel   string        `json:"log_level,omitempty"`
	PresetDirs []string      `json:"preset_dirs,omitempty"`
	Modes      ModesSettings `json:"modes"`
}

// ModesSettings tunes the mode controller. Zero values mean "use the default".
type ModesSettings struct {
	DefaultMode       string             `json:"default_mode,omitempty"`
	AutoSwitch        *bool              `json:"auto_switch,omitempty"`
	CooldownSeconds   float64            `json:"cooldown_seconds,omitempty"`
	HysteresisSeconds float64            `json:"hysteresis_seconds,omitempty"`
	DefaultThreshold  float64            `json:"default_threshold,omitempty"`
	Thresholds        map[string]float64 `json:"thresholds,omitempty"`
	Window            int                `json:"window,omitempty"`
	Normalizer        float64            `json:"normalizer,omitempty"`
	HistoryCap        int                `json:"history_cap,omitempty"`

	Suggestions SuggestionSettings `json:"suggestions"`
	Metrics     MetricsSettings    `json:"metrics"`
	Snapshots   SnapshotSettings   `json:"snapshots"`
	Focus       FocusSettings      `json:"focus"`
}

// SuggestionSettings holds the user's suppression rules.
type SuggestionSettings struct {
	DisabledModes []string `json:"disabled_modes,omitempty"`
	DisabledPairs []string `json:"disabled_pairs,omitempty"`
	MinConfidence float64  `json:"min_confidence,omitempty"`
}

// MetricsSettings controls the metrics tracker.
type MetricsSettings struct {
	Disabled        bool    `json:"disabled,omitempty"`
	DebounceSeconds float64 `json:"debounce_seconds,omitempty"`
}

// SnapshotSettings controls snapshot capture and persistence.
type SnapshotSettings struct {
	Persist     *bool   `json:"persist,omitempty"`
	Capacity    int     `json:"capacity,omitempty"`
	MaxAgeHours float64 `json:"max_age_hours,omitempty"`
}

// FocusSettings bounds the focus lock.
type FocusSettings struct {
	MaxMinutes int `json:"max_minutes,omitempty"`
}

// Seconds converts a fractional seconds setting to a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// AutoSwitchEnabled reports the auto-switch flag, defaulting to on.
func (m ModesSettings) AutoSwitchEnabled() bool {
	return m.AutoSwitch == nil || *m.AutoSwitch
}

// PersistEnabled reports whether snapshots are written to disk, defaulting to on.
func (s SnapshotSettings) PersistEnabled() bool {
	return s.Persist == nil || *s.Persist
}

// Load reads and merges global and project-local settings.
// Project settings override global settings.
func Load(projectRoot string) (*Settings, error) {
	global, err := loadFile(GlobalConfigFile())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading global config: %w", err)
	}

	project, err := loadFile(ProjectConfigFile(projectRoot))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	merged := merge(global, project)
	ResolveEnvVars(merged)
	return merged, nil
}

// loadFile reads a Settings from a JSON file. Returns zero Settings if file
// does not exist.
func loadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Settings{}, err
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &s, nil
}

// merge deep-merges project settings onto global settings.
// Non-zero project values override global values.
func merge(global, project *Settings) *Settings {
	if global == nil {
		global = &Settings{}
	}
	if project == nil {
		return global
	}

	result := *global
	if project.LogLevel != "" {
		result.LogLevel = project.LogLevel
	}
	if len(project.PresetDirs) > 0 {
		result.PresetDirs = append(append([]string(nil), global.PresetDirs...), project.PresetDirs...)
	}
	result.Modes = mergeModes(global.Modes, project.Modes)
	return &result
}

func mergeModes(g, p ModesSettings) ModesSettings {
	r := g
	if p.DefaultMode != "" {
		r.DefaultMode = p.DefaultMode
	}
	if p.AutoSwitch != nil {
		r.AutoSwitch = p.AutoSwitch
	}
	if p.CooldownSeconds != 0 {
		r.CooldownSeconds = p.CooldownSeconds
	}
	if p.HysteresisSeconds != 0 {
		r.HysteresisSeconds = p.HysteresisSeconds
	}
	if p.DefaultThreshold != 0 {
		r.DefaultThreshold = p.DefaultThreshold
	}
	if p.Window != 0 {
		r.Window = p.Window
	}
	if p.Normalizer != 0 {
		r.Normalizer = p.Normalizer
	}
	if p.HistoryCap != 0 {
		r.HistoryCap = p.HistoryCap
	}

	// Merge threshold maps
	if len(p.Thresholds) > 0 {
		r.Thresholds = make(map[string]float64, len(g.Thresholds)+len(p.Thresholds))
		maps.Copy(r.Thresholds, g.Thresholds)
		maps.Copy(r.Thresholds, p.Thresholds)
	}

	if len(p.Suggestions.DisabledModes) > 0 {
		r.Suggestions.DisabledModes = p.Suggestions.DisabledModes
	}
	if len(p.Suggestions.DisabledPairs) > 0 {
		r.Suggestions.DisabledPairs = p.Suggestions.DisabledPairs
	}
	if p.Suggestions.MinConfidence != 0 {
		r.Suggestions.MinConfidence = p.Suggestions.MinConfidence
	}
	if p.Metrics.Disabled {
		r.Metrics.Disabled = true
	}
	if p.Metrics.DebounceSeconds != 0 {
		r.Metrics.DebounceSeconds = p.Metrics.DebounceSeconds
	}
	if p.Snapshots.Persist != nil {
		r.Snapshots.Persist = p.Snapshots.Persist
	}
	if p.Snapshots.Capacity != 0 {
		r.Snapshots.Capacity = p.Snapshots.Capacity
	}
	if p.Snapshots.MaxAgeHours != 0 {
		r.Snapshots.MaxAgeHours = p.Snapshots.MaxAgeHours
	}
	if p.Focus.MaxMinutes != 0 {
		r.Focus.MaxMinutes = p.Focus.MaxMinutes
	}
	return r
}
