// Package store defines the persistence boundary of the proctoring core.
// The core depends on this interface only; the engine behind it is
// interchangeable (Postgres via GORM in production, in-memory for tests and
// ephemeral deployments).
package store

import (
	"time"

	"github.com/proctoria/proctoring-service/internal/model"
)

// Store persists proctoring sessions and their append-only violation log.
// Implementations return errs.ErrSessionNotFound / errs.ErrViolationNotFound
// for unknown ids; any other error is a storage failure.
type Store interface {
	CreateSession(sess *model.ProctoringSession) error
	GetSession(sessionID string) (*model.ProctoringSession, error)
	// UpdateSession applies column updates (e.g. "status", "risk_score",
	// "violation_count", "ended_at") to one session.
	UpdateSession(sessionID string, fields map[string]interface{}) error
	ListHighRiskSessions(threshold float64) ([]*model.ProctoringSession, error)

	CreateViolation(v *model.Violation) error
	GetViolation(id uint) (*model.Violation, error)
	UpdateViolationResolved(id uint, resolved bool) error
	ListViolations(sessionID string) ([]*model.Violation, error)
	ListUnresolvedViolations(sessionID string) ([]*model.Violation, error)
	ListViolationsSince(sessionID string, since time.Time) ([]*model.Violation, error)
}
