package risk

import (
	"time"

	"github.com/proctoria/proctoring-service/internal/model"
)

// Trend classifications.
const (
	TrendIncreasing = "increasing"
	TrendStable     = "stable"
)

// TrendReport is an ordered series of (instant, score) samples over a window,
// with summary statistics and a two-point direction classification.
type TrendReport struct {
	TimePoints  []time.Time
	RiskScores  []float64
	AverageRisk float64
	PeakRisk    float64
	Trend       string
}

// Trend re-evaluates Score at fixed sample instants spanning [now-window, now].
// Each sample considers only violations created inside the window at or before
// that instant, so the series reconstructs how the score evolved. The final
// sample is pinned to now even when the window is not a multiple of the
// interval. An empty window yields all-zero samples and a "stable" direction.
func (e *Engine) Trend(violations []*model.Violation, window, sampleInterval time.Duration, now time.Time) TrendReport {
	if window <= 0 {
		window = DefaultTrendWindow
	}
	if sampleInterval <= 0 {
		sampleInterval = DefaultSampleInterval
	}
	start := now.Add(-window)

	var report TrendReport
	sum := 0.0
	for sample := start; ; sample = sample.Add(sampleInterval) {
		if sample.After(now) {
			sample = now
		}
		var relevant []*model.Violation
		for _, v := range violations {
			if v.CreatedAt.Before(start) || v.CreatedAt.After(sample) {
				continue
			}
			relevant = append(relevant, v)
		}
		score := e.Score(relevant, sample)
		report.TimePoints = append(report.TimePoints, sample)
		report.RiskScores = append(report.RiskScores, score)
		sum += score
		if score > report.PeakRisk {
			report.PeakRisk = score
		}
		if !sample.Before(now) {
			break
		}
	}

	n := len(report.RiskScores)
	if n > 0 {
		report.AverageRisk = sum / float64(n)
	}
	report.Trend = TrendStable
	if n > 1 && report.RiskScores[n-1] > report.RiskScores[0] {
		report.Trend = TrendIncreasing
	}
	return report
}
