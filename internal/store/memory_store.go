package store

import (
	"sort"
	"sync"
	"time"

	"github.com/proctoria/proctoring-service/internal/errs"
	"github.com/proctoria/proctoring-service/internal/model"
)

// MemoryStore is a mutex-guarded in-memory Store, used by tests and by
// STORE_DRIVER=memory deployments where durability is not required.
type MemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]*model.ProctoringSession // session_id -> session
	violations map[uint]*model.Violation
	nextSessID uint
	nextVioID  uint
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]*model.ProctoringSession),
		violations: make(map[uint]*model.Violation),
	}
}

func (s *MemoryStore) CreateSession(sess *model.ProctoringSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSessID++
	sess.ID = s.nextSessID
	now := time.Now()
	sess.CreatedAt = now
	sess.UpdatedAt = now
	cp := *sess
	s.sessions[sess.SessionID] = &cp
	return nil
}

func (s *MemoryStore) GetSession(sessionID string) (*model.ProctoringSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ent, ok := s.sessions[sessionID]
	if !ok {
		return nil, errs.ErrSessionNotFound
	}
	cp := *ent
	return &cp, nil
}

func (s *MemoryStore) UpdateSession(sessionID string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.sessions[sessionID]
	if !ok {
		return errs.ErrSessionNotFound
	}
	for col, val := range fields {
		switch col {
		case "status":
			ent.Status = val.(string)
		case "risk_score":
			ent.RiskScore = val.(float64)
		case "violation_count":
			ent.ViolationCount = val.(int)
		case "ended_at":
			if val == nil {
				ent.EndedAt = nil
			} else {
				t := val.(time.Time)
				ent.EndedAt = &t
			}
		case "started_at":
			ent.StartedAt = val.(time.Time)
		}
	}
	ent.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ListHighRiskSessions(threshold float64) ([]*model.ProctoringSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.ProctoringSession
	for _, ent := range s.sessions {
		if ent.Status == string(model.SessionStatusActive) && ent.RiskScore >= threshold {
			cp := *ent
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RiskScore > out[j].RiskScore })
	return out, nil
}

func (s *MemoryStore) CreateViolation(v *model.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[v.SessionID]; !ok {
		return errs.ErrSessionNotFound
	}
	s.nextVioID++
	v.ID = s.nextVioID
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	cp := *v
	s.violations[v.ID] = &cp
	return nil
}

func (s *MemoryStore) GetViolation(id uint) (*model.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ent, ok := s.violations[id]
	if !ok {
		return nil, errs.ErrViolationNotFound
	}
	cp := *ent
	return &cp, nil
}

func (s *MemoryStore) UpdateViolationResolved(id uint, resolved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.violations[id]
	if !ok {
		return errs.ErrViolationNotFound
	}
	ent.Resolved = resolved
	return nil
}

func (s *MemoryStore) ListViolations(sessionID string) ([]*model.Violation, error) {
	out, err := s.list(sessionID, func(v *model.Violation) bool { return true })
	if err != nil {
		return nil, err
	}
	// Newest first, matching the SQL store.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListUnresolvedViolations(sessionID string) ([]*model.Violation, error) {
	return s.list(sessionID, func(v *model.Violation) bool { return !v.Resolved })
}

func (s *MemoryStore) ListViolationsSince(sessionID string, since time.Time) ([]*model.Violation, error) {
	out, err := s.list(sessionID, func(v *model.Violation) bool { return !v.CreatedAt.Before(since) })
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) list(sessionID string, keep func(*model.Violation) bool) ([]*model.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Violation
	for _, v := range s.violations {
		if v.SessionID == sessionID && keep(v) {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}
