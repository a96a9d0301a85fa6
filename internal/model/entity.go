package model

import "time"

// ProctoringSession is one proctored exam attempt's monitored lifetime.
// Sessions are never deleted, only marked ended.
type ProctoringSession struct {
	ID             uint       `gorm:"primaryKey"`
	SessionID      string     `gorm:"size:255;not null;uniqueIndex"`
	UserID         int64      `gorm:"not null;index"`
	QuizID         int64      `gorm:"not null"`
	AttemptID      int64      `gorm:"not null"`
	Status         string     `gorm:"size:20;not null;default:active"` // active, paused, ended
	RiskScore      float64    `gorm:"not null;default:0"`
	ViolationCount int        `gorm:"not null;default:0"`
	StartedAt      time.Time  `gorm:"column:started_at;not null"`
	EndedAt        *time.Time `gorm:"column:ended_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime"`

	Violations []Violation `gorm:"foreignKey:SessionID;references:SessionID"`
}

func (ProctoringSession) TableName() string { return "proctoring_sessions" }

// Violation is a single detected anomalous event tied to a session.
// Rows are retained for audit and trend reconstruction.
type Violation struct {
	ID            uint      `gorm:"primaryKey"`
	SessionID     string    `gorm:"size:255;not null;index"`
	Type          string    `gorm:"size:50;not null"`
	Confidence    float64   `gorm:"not null"`
	Details       string    `gorm:"type:text"`
	ScreenshotURL string    `gorm:"size:255"`
	Resolved      bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (Violation) TableName() string { return "violations" }
