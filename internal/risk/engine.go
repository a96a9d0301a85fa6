// Package risk implements time-decayed weighted risk scoring for proctoring
// sessions.
//
// Each unresolved violation contributes weight × confidence × decay, the sum
// is amplified by a frequency multiplier, and the result is clamped to [0, 1].
// Scoring is a pure function of the violation snapshot and the evaluation
// instant: no I/O, deterministic, order-independent.
package risk

import (
	"time"

	"github.com/proctoria/proctoring-service/internal/model"
)

const (
	// defaultWeight is applied to violation types missing from the table.
	defaultWeight = 0.5

	// decayFloor is the minimum impact a violation retains after the decay
	// window has fully elapsed.
	decayFloor = 0.1

	frequencyStep = 0.1
	frequencyCap  = 2.0
)

// Defaults for engine and trend configuration.
const (
	DefaultDecayWindow    = 1 * time.Hour
	DefaultTrendWindow    = 24 * time.Hour
	DefaultSampleInterval = 15 * time.Minute
)

// DefaultWeights maps violation types to base severity weights.
// The table is configuration, not behavior: operators may override entries
// without altering the algorithm.
var DefaultWeights = map[string]float64{
	"face_not_detected":   0.8,
	"multiple_faces":      0.9,
	"identity_mismatch":   0.95,
	"cell_phone_detected": 0.7,
	"book_detected":       0.6,
	"laptop_detected":     0.9,
	"person_detected":     0.8,
	"poor_posture":        0.3,
	"gaze_deviation":      0.4,
	"tab_switch":          0.5,
	"copy_paste":          0.9,
	"developer_tools":     1.0,
	"multiple_speakers":   0.8,
	"suspicious_audio":    0.8,
}

// Config customizes an Engine. Zero values fall back to defaults; Weights
// entries merge over DefaultWeights.
type Config struct {
	DecayWindow time.Duration
	Weights     map[string]float64
}

// Engine scores violation snapshots. Safe for concurrent use: all state is
// immutable after construction.
type Engine struct {
	decayWindow time.Duration
	weights     map[string]float64
}

// NewEngine creates a risk engine with operator overrides applied.
func NewEngine(cfg Config) *Engine {
	window := cfg.DecayWindow
	if window <= 0 {
		window = DefaultDecayWindow
	}
	weights := make(map[string]float64, len(DefaultWeights)+len(cfg.Weights))
	for k, v := range DefaultWeights {
		weights[k] = v
	}
	for k, v := range cfg.Weights {
		weights[k] = v
	}
	return &Engine{decayWindow: window, weights: weights}
}

// Weight returns the base severity weight for a violation type.
func (e *Engine) Weight(violationType string) float64 {
	if w, ok := e.weights[violationType]; ok {
		return w
	}
	return defaultWeight
}

// Score computes the current risk for a snapshot of violations at the given
// instant. Resolved violations are skipped; the result is clamped to [0, 1].
func (e *Engine) Score(violations []*model.Violation, now time.Time) float64 {
	total := 0.0
	count := 0
	for _, v := range violations {
		if v.Resolved {
			continue
		}
		total += e.Weight(v.Type) * v.Confidence * e.Decay(now.Sub(v.CreatedAt))
		count++
	}
	if count == 0 {
		return 0.0
	}
	total *= frequencyMultiplier(count)
	return clamp(total)
}

// Decay returns the time-decay factor for a violation of the given age:
// 1.0 at age zero, linearly down to the floor at the decay window, and the
// floor thereafter.
func (e *Engine) Decay(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 1.0
	}
	if elapsed >= e.decayWindow {
		return decayFloor
	}
	frac := float64(elapsed) / float64(e.decayWindow)
	return 1.0 - (1.0-decayFloor)*frac
}

func frequencyMultiplier(count int) float64 {
	m := 1.0 + frequencyStep*float64(count)
	if m > frequencyCap {
		return frequencyCap
	}
	return m
}

func clamp(score float64) float64 {
	if score > 1.0 {
		return 1.0
	}
	if score < 0.0 {
		return 0.0
	}
	return score
}
