// ABOUTME: Translates merged settings into per-component configuration
// ABOUTME: Zero or out-of-range values fall back to each component's defaults

package engine

import (
	"path/filepath"
	"time"

	"github.com/mauromedda/pi-modes/internal/config"
	"github.com/mauromedda/pi-modes/internal/controller"
	"github.com/mauromedda/pi-modes/internal/focus"
	"github.com/mauromedda/pi-modes/internal/intent"
	"github.com/mauromedda/pi-modes/internal/modes"
	"github.com/mauromedda/pi-modes/internal/suggest"
	"github.com/mauromedda/pi-modes/internal/telemetry"
)

// registryFor applies the configured default mode to the built-in registry.
func registryFor(ms config.ModesSettings) *modes.Registry {
	reg := modes.Default()
	if ms.DefaultMode == "" {
		return reg
	}
	id, ok := reg.Resolve(ms.DefaultMode)
	if !ok {
		engineLog.Warn("unknown default_mode %q, keeping %s", ms.DefaultMode, reg.Default())
		return reg
	}
	withDef, err := reg.WithDefault(id)
	if err != nil {
		engineLog.Warn("default_mode %q: %v", ms.DefaultMode, err)
		return reg
	}
	return withDef
}

func controllerConfig(ms config.ModesSettings) controller.Config {
	cfg := controller.DefaultConfig()
	if ms.CooldownSeconds > 0 {
		cfg.Cooldown = config.Seconds(ms.CooldownSeconds)
	}
	if ms.HysteresisSeconds > 0 {
		cfg.Hysteresis = config.Seconds(ms.HysteresisSeconds)
	}
	if ms.DefaultThreshold > 0 {
		cfg.DefaultThreshold = ms.DefaultThreshold
	}
	if ms.HistoryCap > 0 {
		cfg.HistoryCap = ms.HistoryCap
	}
	cfg.Thresholds = ms.Thresholds
	cfg.AutoSwitch = ms.AutoSwitchEnabled()
	return cfg
}

func classifierConfig(ms config.ModesSettings) intent.Config {
	cfg := intent.DefaultConfig()
	if ms.Window > 0 {
		cfg.Window = ms.Window
	}
	if ms.Normalizer > 0 {
		cfg.Normalizer = ms.Normalizer
	}
	return cfg
}

func suppression(ms config.ModesSettings) suggest.Suppression {
	s := ms.Suggestions
	sup, err := suggest.ParseSuppression(s.DisabledModes, s.DisabledPairs, s.MinConfidence)
	if err != nil {
		engineLog.Warn("suggestion settings: %v", err)
	}
	return sup
}

func focusOptions(ms config.ModesSettings) []focus.Option {
	if ms.Focus.MaxMinutes <= 0 {
		return nil
	}
	return []focus.Option{focus.WithBounds(focus.DefaultMin, time.Duration(ms.Focus.MaxMinutes)*time.Minute)}
}

func metricsDebounce(ms config.ModesSettings) time.Duration {
	if ms.Metrics.DebounceSeconds > 0 {
		return config.Seconds(ms.Metrics.DebounceSeconds)
	}
	return telemetry.DefaultDebounce
}

func snapshotMaxAge(ms config.ModesSettings) time.Duration {
	if ms.Snapshots.MaxAgeHours > 0 {
		return time.Duration(ms.Snapshots.MaxAgeHours * float64(time.Hour))
	}
	return DefaultSnapshotMaxAge
}

// presetDirs lists workflow and hybrid directories: the standard global and
// project locations, then the matching subdirectory of every preset_dirs entry.
func presetDirs(s *config.Settings, projectRoot string) (workflows, hybrids []string) {
	workflows = config.WorkflowsDirs(projectRoot)
	hybrids = config.HybridsDirs(projectRoot)
	for _, dir := range s.PresetDirs {
		workflows = append(workflows, filepath.Join(dir, "workflows"))
		hybrids = append(hybrids, filepath.Join(dir, "hybrids"))
	}
	return workflows, hybrids
}
