// ABOUTME: Confidence thresholds per mode pair with wildcard and global fallbacks
// ABOUTME: Lookup order is exact from->to, then *->to, then the default threshold

package controller

import (
	"maps"

	"github.com/mauromedda/pi-modes/internal/modes"
)

// DefaultThreshold applies when no pair-specific threshold exists.
const DefaultThreshold = 0.70

// DefaultThresholds returns the built-in pair thresholds keyed "from->to".
// High-risk targets need stronger evidence than the default.
func DefaultThresholds() map[string]float64 {
	return map[string]float64{
		"*->debugger":           0.85,
		"*->security":           0.85,
		"planner->implementer":  0.60,
		"implementer->reviewer": 0.65,
		"debugger->implementer": 0.65,
	}
}

// Thresholds resolves the confidence a proposal needs.
type Thresholds struct {
	def   float64
	pairs map[modes.Pair]float64
}

// NewThresholds parses "from->to" override keys over the built-in table. Malformed keys and
// values outside [0,1] are skipped and logged.
func NewThresholds(def float64, overrides map[string]float64) Thresholds {
	if def <= 0 || def > 1 {
		def = DefaultThreshold
	}
	merged := DefaultThresholds()
	maps.Copy(merged, overrides)

	t := Thresholds{def: def, pairs: make(map[modes.Pair]float64, len(merged))}
	for key, v := range merged {
		pair, err := modes.ParsePair(key)
		if err != nil {
			ctrlLog.Warn("ignoring threshold %q: %v", key, err)
			continue
		}
		if v < 0 || v > 1 {
			ctrlLog.Warn("ignoring threshold %q: %.2f outside [0,1]", key, v)
			continue
		}
		t.pairs[pair] = v
	}
	return t
}

// For returns the threshold for from->to.
func (t Thresholds) For(from, to modes.ID) float64 {
	if v, ok := t.pairs[modes.Pair{From: from, To: to}]; ok {
		return v
	}
	if v, ok := t.pairs[modes.Pair{From: modes.Any, To: to}]; ok {
		return v
	}
	return t.def
}

// Default returns the global fallback.
func (t Thresholds) Default() float64 { return t.def }
