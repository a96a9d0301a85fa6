package store

import (
	"errors"
	"time"

	"github.com/proctoria/proctoring-service/internal/errs"
	"github.com/proctoria/proctoring-service/internal/model"
	"gorm.io/gorm"
)

// GormStore is the SQL-backed Store (Postgres in production).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a Store over an open GORM connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateSession(sess *model.ProctoringSession) error {
	return s.db.Create(sess).Error
}

func (s *GormStore) GetSession(sessionID string) (*model.ProctoringSession, error) {
	var ent model.ProctoringSession
	if err := s.db.Where("session_id = ?", sessionID).First(&ent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, err
	}
	return &ent, nil
}

func (s *GormStore) UpdateSession(sessionID string, fields map[string]interface{}) error {
	res := s.db.Model(&model.ProctoringSession{}).
		Where("session_id = ?", sessionID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}

func (s *GormStore) ListHighRiskSessions(threshold float64) ([]*model.ProctoringSession, error) {
	var out []*model.ProctoringSession
	err := s.db.
		Where("risk_score >= ? AND status = ?", threshold, string(model.SessionStatusActive)).
		Order("risk_score DESC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) CreateViolation(v *model.Violation) error {
	return s.db.Create(v).Error
}

func (s *GormStore) GetViolation(id uint) (*model.Violation, error) {
	var ent model.Violation
	if err := s.db.First(&ent, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrViolationNotFound
		}
		return nil, err
	}
	return &ent, nil
}

func (s *GormStore) UpdateViolationResolved(id uint, resolved bool) error {
	res := s.db.Model(&model.Violation{}).
		Where("id = ?", id).
		Update("resolved", resolved)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrViolationNotFound
	}
	return nil
}

func (s *GormStore) ListViolations(sessionID string) ([]*model.Violation, error) {
	var out []*model.Violation
	err := s.db.
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) ListUnresolvedViolations(sessionID string) ([]*model.Violation, error) {
	var out []*model.Violation
	err := s.db.
		Where("session_id = ? AND resolved = ?", sessionID, false).
		Find(&out).Error
	return out, err
}

func (s *GormStore) ListViolationsSince(sessionID string, since time.Time) ([]*model.Violation, error) {
	var out []*model.Violation
	err := s.db.
		Where("session_id = ? AND created_at >= ?", sessionID, since).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
