package model

import "time"

// SessionStatus represents proctoring session lifecycle state.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusPaused SessionStatus = "paused"
	SessionStatusEnded  SessionStatus = "ended"
)

// Session is the API view of a proctoring session (not GORM entity).
type Session struct {
	SessionID      string        `json:"session_id"`
	UserID         int64         `json:"user_id"`
	QuizID         int64         `json:"quiz_id"`
	AttemptID      int64         `json:"attempt_id"`
	Status         SessionStatus `json:"status"`
	RiskScore      float64       `json:"risk_score"`
	ViolationCount int           `json:"violation_count"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        *time.Time    `json:"ended_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// StartSessionRequest is the request body for POST /api/v1/sessions/start.
type StartSessionRequest struct {
	UserID    int64 `json:"user_id" binding:"required"`
	QuizID    int64 `json:"quiz_id" binding:"required"`
	AttemptID int64 `json:"attempt_id" binding:"required"`
}

// StartSessionResponse is the response for POST /api/v1/sessions/start.
type StartSessionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	WSURL     string `json:"ws_url"`
	Message   string `json:"message"`
}

// SessionStatusResponse is the response for GET /api/v1/sessions/:session_id/status.
// RiskScore is computed on demand, not read from the stored column.
type SessionStatusResponse struct {
	SessionID      string    `json:"session_id"`
	Status         string    `json:"status"`
	RiskScore      float64   `json:"risk_score"`
	ViolationCount int       `json:"violation_count"`
	TimeStarted    time.Time `json:"time_started"`
	LastActivity   time.Time `json:"last_activity"`
}

// HighRiskSession is one row of GET /api/v1/sessions/high-risk.
type HighRiskSession struct {
	SessionID      string    `json:"session_id"`
	UserID         int64     `json:"user_id"`
	QuizID         int64     `json:"quiz_id"`
	RiskScore      float64   `json:"risk_score"`
	ViolationCount int       `json:"violation_count"`
	TimeStarted    time.Time `json:"time_started"`
	LastActivity   time.Time `json:"last_activity"`
}
