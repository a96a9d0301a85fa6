package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/proctoria/proctoring-service/internal/errs"
	"github.com/proctoria/proctoring-service/internal/model"
	"github.com/proctoria/proctoring-service/internal/risk"
	"github.com/proctoria/proctoring-service/internal/store"
	"github.com/proctoria/proctoring-service/internal/syncutil"
	"go.uber.org/zap"
)

// SessionService is the session registry: the single source of truth for
// "does this session exist and is it active". Mutations to one session are
// serialized through a per-session lock shard; different sessions proceed in
// parallel with no global lock.
type SessionService struct {
	store  store.Store
	engine *risk.Engine
	hub    *Hub
	locks  *syncutil.ShardedMutex
	log    *zap.Logger
}

// NewSessionService creates the session registry. The lock pool is shared
// with the violation service so that ingestion and lifecycle transitions for
// the same session serialize against each other.
func NewSessionService(st store.Store, engine *risk.Engine, hub *Hub, locks *syncutil.ShardedMutex, log *zap.Logger) *SessionService {
	return &SessionService{store: st, engine: engine, hub: hub, locks: locks, log: log}
}

// Start allocates a fresh session: unique token, active state, zero risk and
// violation count. Storage failure leaves no partial record.
func (s *SessionService) Start(userID, quizID, attemptID int64) (*model.Session, error) {
	now := time.Now()
	ent := &model.ProctoringSession{
		SessionID:      uuid.New().String(),
		UserID:         userID,
		QuizID:         quizID,
		AttemptID:      attemptID,
		Status:         string(model.SessionStatusActive),
		RiskScore:      0.0,
		ViolationCount: 0,
		StartedAt:      now,
	}
	if err := s.store.CreateSession(ent); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.log.Info("session started",
		zap.String("session_id", ent.SessionID),
		zap.Int64("user_id", userID),
		zap.Int64("quiz_id", quizID))
	return entityToSession(ent), nil
}

// Get returns a session by its token.
func (s *SessionService) Get(sessionID string) (*model.Session, error) {
	ent, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	return entityToSession(ent), nil
}

// Status returns the stored lifecycle state alongside a freshly computed risk
// score; the stored score is deliberately not used here (on-demand path).
func (s *SessionService) Status(sessionID string) (*model.SessionStatusResponse, error) {
	ent, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	score := 0.0
	if unresolved, lerr := s.store.ListUnresolvedViolations(sessionID); lerr != nil {
		// Read-only query degrades to the safe default rather than failing.
		s.log.Warn("unresolved violations lookup failed", zap.String("session_id", sessionID), zap.Error(lerr))
	} else {
		score = s.engine.Score(unresolved, time.Now())
	}
	return &model.SessionStatusResponse{
		SessionID:      ent.SessionID,
		Status:         ent.Status,
		RiskScore:      score,
		ViolationCount: ent.ViolationCount,
		TimeStarted:    ent.StartedAt,
		LastActivity:   ent.UpdatedAt,
	}, nil
}

// End transitions active|paused → ended and notifies observers. Idempotent:
// ending an already-ended session is a no-op, not an error.
func (s *SessionService) End(sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	ent, err := s.store.GetSession(sessionID)
	if err != nil {
		unlock()
		return err
	}
	if ent.Status == string(model.SessionStatusEnded) {
		unlock()
		return nil
	}
	now := time.Now()
	err = s.store.UpdateSession(sessionID, map[string]interface{}{
		"status":   string(model.SessionStatusEnded),
		"ended_at": now,
	})
	unlock()
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	s.log.Info("session ended", zap.String("session_id", sessionID))
	s.hub.DispatchSessionEnded(sessionID)
	return nil
}

// Pause transitions active → paused. Ended is terminal.
func (s *SessionService) Pause(sessionID string) error {
	if err := s.transition(sessionID, model.SessionStatusActive, model.SessionStatusPaused); err != nil {
		return err
	}
	s.hub.DispatchSessionPaused(sessionID, "Session paused by proctor")
	return nil
}

// Resume transitions paused → active. Ended is terminal.
func (s *SessionService) Resume(sessionID string) error {
	if err := s.transition(sessionID, model.SessionStatusPaused, model.SessionStatusActive); err != nil {
		return err
	}
	s.hub.DispatchStatusUpdate(sessionID, model.SessionStatusActive)
	return nil
}

func (s *SessionService) transition(sessionID string, from, to model.SessionStatus) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	ent, err := s.store.GetSession(sessionID)
	if err != nil {
		return err
	}
	switch ent.Status {
	case string(model.SessionStatusEnded):
		return errs.ErrSessionEnded
	case string(to):
		return nil // already there
	case string(from):
		// fall through to the update
	default:
		return fmt.Errorf("cannot transition session from %s to %s", ent.Status, to)
	}
	if err := s.store.UpdateSession(sessionID, map[string]interface{}{
		"status": string(to),
	}); err != nil {
		return fmt.Errorf("transition session: %w", err)
	}
	s.log.Info("session state changed",
		zap.String("session_id", sessionID),
		zap.String("status", string(to)))
	return nil
}

// RecordRiskUpdate stores a new risk score for the session, serialized per
// session.
func (s *SessionService) RecordRiskUpdate(sessionID string, score float64) error {
	if score < 0 || score > 1 {
		return fmt.Errorf("risk score %v outside [0,1]", score)
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	return s.store.UpdateSession(sessionID, map[string]interface{}{
		"risk_score": score,
	})
}

// IncrementViolationCount bumps the session's monotonic violation counter.
// The read-modify-write runs under the session lock so concurrent increments
// are never lost.
func (s *SessionService) IncrementViolationCount(sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	ent, err := s.store.GetSession(sessionID)
	if err != nil {
		return err
	}
	return s.store.UpdateSession(sessionID, map[string]interface{}{
		"violation_count": ent.ViolationCount + 1,
	})
}

// HighRisk lists active sessions whose stored risk meets the threshold,
// highest first.
func (s *SessionService) HighRisk(threshold float64) ([]model.HighRiskSession, error) {
	ents, err := s.store.ListHighRiskSessions(threshold)
	if err != nil {
		return nil, fmt.Errorf("list high risk sessions: %w", err)
	}
	out := make([]model.HighRiskSession, 0, len(ents))
	for _, ent := range ents {
		out = append(out, model.HighRiskSession{
			SessionID:      ent.SessionID,
			UserID:         ent.UserID,
			QuizID:         ent.QuizID,
			RiskScore:      ent.RiskScore,
			ViolationCount: ent.ViolationCount,
			TimeStarted:    ent.StartedAt,
			LastActivity:   ent.UpdatedAt,
		})
	}
	return out, nil
}

// Intervene relays a proctor's message to the student's channel.
func (s *SessionService) Intervene(sessionID, message string) error {
	if _, err := s.store.GetSession(sessionID); err != nil {
		return err
	}
	s.hub.DispatchAdminIntervention(sessionID, message)
	return nil
}

func entityToSession(ent *model.ProctoringSession) *model.Session {
	return &model.Session{
		SessionID:      ent.SessionID,
		UserID:         ent.UserID,
		QuizID:         ent.QuizID,
		AttemptID:      ent.AttemptID,
		Status:         model.SessionStatus(ent.Status),
		RiskScore:      ent.RiskScore,
		ViolationCount: ent.ViolationCount,
		StartedAt:      ent.StartedAt,
		EndedAt:        ent.EndedAt,
		CreatedAt:      ent.CreatedAt,
	}
}
