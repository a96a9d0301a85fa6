package model

import "time"

// ViolationEvent is the typed inbound event produced by external detectors.
// The core assumes nothing about detector concurrency beyond "events may
// arrive interleaved across sessions, ordered within a session".
type ViolationEvent struct {
	Type          string  `json:"type"`
	Confidence    float64 `json:"confidence"`
	Details       string  `json:"details,omitempty"`
	ScreenshotURL string  `json:"screenshot_url,omitempty"`
}

// ViolationResponse is the API view of a stored violation.
type ViolationResponse struct {
	ID            uint      `json:"id"`
	Type          string    `json:"type"`
	Confidence    float64   `json:"confidence"`
	Details       string    `json:"details,omitempty"`
	ScreenshotURL string    `json:"screenshot_url,omitempty"`
	Resolved      bool      `json:"resolved"`
	CreatedAt     time.Time `json:"created_at"`
}

// ViolationStatusUpdate is the request body for PUT /api/v1/violations/:id/status.
// Pointer so that {"resolved": false} binds.
type ViolationStatusUpdate struct {
	Resolved *bool `json:"resolved" binding:"required"`
}

// ViolationSummary aggregates a session's violations by type.
type ViolationSummary struct {
	TotalViolations      int            `json:"total_violations"`
	ResolvedViolations   int            `json:"resolved_violations"`
	UnresolvedViolations int            `json:"unresolved_violations"`
	ViolationTypes       map[string]int `json:"violation_types"`
	MostCommonViolation  string         `json:"most_common_violation,omitempty"`
}

// RiskScoreResponse is the response for GET /api/v1/risk-score/:session_id.
type RiskScoreResponse struct {
	SessionID string  `json:"session_id"`
	RiskScore float64 `json:"risk_score"`
}

// RiskTrendResponse is the response for GET /api/v1/risk-score/:session_id/trend.
type RiskTrendResponse struct {
	SessionID   string      `json:"session_id"`
	TimePoints  []time.Time `json:"time_points"`
	RiskScores  []float64   `json:"risk_scores"`
	AverageRisk float64     `json:"average_risk"`
	PeakRisk    float64     `json:"peak_risk"`
	Trend       string      `json:"trend"` // "increasing" or "stable"
}
