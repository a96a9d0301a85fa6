package risk

import (
	"testing"
	"time"

	"github.com/proctoria/proctoring-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fresh(t string, confidence float64, age time.Duration, now time.Time) *model.Violation {
	return &model.Violation{
		Type:       t,
		Confidence: confidence,
		CreatedAt:  now.Add(-age),
	}
}

func TestScoreEmptySnapshot(t *testing.T) {
	e := NewEngine(Config{})
	assert.Equal(t, 0.0, e.Score(nil, time.Now()))
	assert.Equal(t, 0.0, e.Score([]*model.Violation{}, time.Now()))
}

func TestScoreAllResolvedIsZero(t *testing.T) {
	e := NewEngine(Config{})
	now := time.Now()
	vs := []*model.Violation{
		fresh("tab_switch", 0.9, 0, now),
		fresh("multiple_faces", 1.0, time.Minute, now),
	}
	for _, v := range vs {
		v.Resolved = true
	}
	assert.Equal(t, 0.0, e.Score(vs, now))
}

func TestScoreSingleMaxSeverityClamps(t *testing.T) {
	// developer_tools at full confidence and age zero contributes
	// 1.0 * 1.0 * 1.0, amplified by 1.1, then clamped back to 1.0.
	e := NewEngine(Config{})
	now := time.Now()
	got := e.Score([]*model.Violation{fresh("developer_tools", 1.0, 0, now)}, now)
	assert.Equal(t, 1.0, got)
}

func TestScoreSingleLowSeverityAtWindowBoundary(t *testing.T) {
	// poor_posture (0.3) at confidence 0.5, exactly one window old:
	// 0.3 * 0.5 * 0.1 * 1.1 = 0.0165.
	e := NewEngine(Config{})
	now := time.Now()
	got := e.Score([]*model.Violation{fresh("poor_posture", 0.5, time.Hour, now)}, now)
	assert.InDelta(t, 0.0165, got, 1e-9)
}

func TestScoreUnknownTypeUsesDefaultWeight(t *testing.T) {
	e := NewEngine(Config{})
	now := time.Now()
	// 0.5 * 0.8 * 1.0 * 1.1 = 0.44
	got := e.Score([]*model.Violation{fresh("quantum_telepathy", 0.8, 0, now)}, now)
	assert.InDelta(t, 0.44, got, 1e-9)
}

func TestScoreSkipsResolved(t *testing.T) {
	e := NewEngine(Config{})
	now := time.Now()
	resolved := fresh("developer_tools", 1.0, 0, now)
	resolved.Resolved = true
	vs := []*model.Violation{
		resolved,
		fresh("poor_posture", 0.5, 0, now),
	}
	// Only the posture event counts: 0.3 * 0.5 * 1.0 * 1.1 = 0.165.
	assert.InDelta(t, 0.165, e.Score(vs, now), 1e-9)
}

func TestScoreIdempotentAndOrderIndependent(t *testing.T) {
	e := NewEngine(Config{})
	now := time.Now()
	a := fresh("tab_switch", 0.7, 5*time.Minute, now)
	b := fresh("gaze_deviation", 0.9, 20*time.Minute, now)
	c := fresh("cell_phone_detected", 0.6, 40*time.Minute, now)

	first := e.Score([]*model.Violation{a, b, c}, now)
	second := e.Score([]*model.Violation{a, b, c}, now)
	reordered := e.Score([]*model.Violation{c, a, b}, now)

	assert.Equal(t, first, second)
	assert.Equal(t, first, reordered)
}

func TestScoreClampedToUnitInterval(t *testing.T) {
	e := NewEngine(Config{})
	now := time.Now()
	var vs []*model.Violation
	for i := 0; i < 50; i++ {
		vs = append(vs, fresh("developer_tools", 1.0, 0, now))
	}
	assert.Equal(t, 1.0, e.Score(vs, now))
}

func TestDecayBounds(t *testing.T) {
	e := NewEngine(Config{})
	assert.Equal(t, 1.0, e.Decay(0))
	assert.Equal(t, 1.0, e.Decay(-time.Minute))
	assert.Equal(t, 0.1, e.Decay(time.Hour))
	assert.Equal(t, 0.1, e.Decay(48*time.Hour))
}

func TestDecayMonotonicWithinWindow(t *testing.T) {
	e := NewEngine(Config{})
	prev := e.Decay(0)
	for elapsed := time.Minute; elapsed < time.Hour; elapsed += time.Minute {
		d := e.Decay(elapsed)
		assert.Less(t, d, prev, "decay must strictly decrease at %v", elapsed)
		assert.GreaterOrEqual(t, d, 0.1)
		prev = d
	}
}

func TestDecayMidpoint(t *testing.T) {
	e := NewEngine(Config{})
	assert.InDelta(t, 0.55, e.Decay(30*time.Minute), 1e-9)
}

func TestFrequencyMultiplierCaps(t *testing.T) {
	assert.InDelta(t, 1.1, frequencyMultiplier(1), 1e-9)
	assert.InDelta(t, 1.5, frequencyMultiplier(5), 1e-9)
	assert.InDelta(t, 2.0, frequencyMultiplier(10), 1e-9)
	assert.InDelta(t, 2.0, frequencyMultiplier(11), 1e-9)
	assert.InDelta(t, 2.0, frequencyMultiplier(100), 1e-9)
}

func TestWeightTable(t *testing.T) {
	e := NewEngine(Config{})
	assert.Equal(t, 1.0, e.Weight("developer_tools"))
	assert.Equal(t, 0.95, e.Weight("identity_mismatch"))
	assert.Equal(t, 0.3, e.Weight("poor_posture"))
	assert.Equal(t, 0.5, e.Weight("never_seen_before"))
}

func TestEngineWeightOverrides(t *testing.T) {
	e := NewEngine(Config{Weights: map[string]float64{
		"tab_switch": 0.9,
		"yawning":    0.2,
	}})
	assert.Equal(t, 0.9, e.Weight("tab_switch"))
	assert.Equal(t, 0.2, e.Weight("yawning"))
	// Untouched entries keep their defaults.
	assert.Equal(t, 1.0, e.Weight("developer_tools"))
}

func TestEngineCustomDecayWindow(t *testing.T) {
	e := NewEngine(Config{DecayWindow: 10 * time.Minute})
	assert.Equal(t, 0.1, e.Decay(10*time.Minute))
	assert.InDelta(t, 0.55, e.Decay(5*time.Minute), 1e-9)
}

func TestTrendEmptyWindowIsStable(t *testing.T) {
	e := NewEngine(Config{})
	now := time.Now()
	report := e.Trend(nil, time.Hour, 15*time.Minute, now)

	require.Len(t, report.TimePoints, 5) // start, +15, +30, +45, +60
	require.Len(t, report.RiskScores, 5)
	for _, s := range report.RiskScores {
		assert.Equal(t, 0.0, s)
	}
	assert.Equal(t, 0.0, report.AverageRisk)
	assert.Equal(t, 0.0, report.PeakRisk)
	assert.Equal(t, TrendStable, report.Trend)
}

func TestTrendIncreasingWhenLateViolations(t *testing.T) {
	e := NewEngine(Config{})
	now := time.Now()
	vs := []*model.Violation{
		fresh("multiple_faces", 0.9, 2*time.Minute, now),
		fresh("developer_tools", 1.0, time.Minute, now),
	}
	report := e.Trend(vs, time.Hour, 15*time.Minute, now)

	n := len(report.RiskScores)
	require.Greater(t, n, 1)
	assert.Equal(t, 0.0, report.RiskScores[0], "no violations existed at window start")
	assert.Greater(t, report.RiskScores[n-1], 0.0)
	assert.Equal(t, TrendIncreasing, report.Trend)
	assert.Greater(t, report.PeakRisk, 0.0)
	assert.Greater(t, report.AverageRisk, 0.0)
}

func TestTrendExcludesViolationsOutsideWindow(t *testing.T) {
	e := NewEngine(Config{})
	now := time.Now()
	vs := []*model.Violation{
		fresh("developer_tools", 1.0, 3*time.Hour, now), // before window start
	}
	report := e.Trend(vs, time.Hour, 15*time.Minute, now)
	for _, s := range report.RiskScores {
		assert.Equal(t, 0.0, s)
	}
	assert.Equal(t, TrendStable, report.Trend)
}

func TestTrendSampleSpacing(t *testing.T) {
	e := NewEngine(Config{})
	now := time.Now()
	report := e.Trend(nil, 2*time.Hour, 30*time.Minute, now)

	require.Len(t, report.TimePoints, 5)
	assert.Equal(t, now.Add(-2*time.Hour), report.TimePoints[0])
	assert.Equal(t, now, report.TimePoints[4])
	for i := 1; i < len(report.TimePoints); i++ {
		assert.Equal(t, 30*time.Minute, report.TimePoints[i].Sub(report.TimePoints[i-1]))
	}
}

func TestTrendFinalSamplePinnedToNow(t *testing.T) {
	// 50m window with a 15m interval: samples at -50, -35, -20, -5, then the
	// series closes at now instead of stopping short.
	e := NewEngine(Config{})
	now := time.Now()
	report := e.Trend(nil, 50*time.Minute, 15*time.Minute, now)

	require.Len(t, report.TimePoints, 5)
	assert.Equal(t, now.Add(-50*time.Minute), report.TimePoints[0])
	assert.Equal(t, now.Add(-5*time.Minute), report.TimePoints[3])
	assert.Equal(t, now, report.TimePoints[4])
}

func TestTrendDefaultsWhenUnset(t *testing.T) {
	e := NewEngine(Config{})
	now := time.Now()
	report := e.Trend(nil, 0, 0, now)
	// 24h window sampled every 15m, endpoints inclusive.
	assert.Len(t, report.TimePoints, 97)
}
