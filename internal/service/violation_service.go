package service

import (
	"fmt"
	"time"

	"github.com/proctoria/proctoring-service/internal/errs"
	"github.com/proctoria/proctoring-service/internal/metrics"
	"github.com/proctoria/proctoring-service/internal/model"
	"github.com/proctoria/proctoring-service/internal/risk"
	"github.com/proctoria/proctoring-service/internal/store"
	"github.com/proctoria/proctoring-service/internal/syncutil"
	"go.uber.org/zap"
)

// ViolationService is the ingestion boundary: it validates detector events,
// persists them, keeps session counters and the stored risk score current,
// and fans alerts out through the hub.
type ViolationService struct {
	store  store.Store
	engine *risk.Engine
	hub    *Hub
	locks  *syncutil.ShardedMutex
	log    *zap.Logger

	trendWindow    time.Duration
	sampleInterval time.Duration
}

// NewViolationService creates the ingestion service. locks must be the same
// pool the session registry uses.
func NewViolationService(st store.Store, engine *risk.Engine, hub *Hub, locks *syncutil.ShardedMutex, log *zap.Logger) *ViolationService {
	return &ViolationService{
		store:          st,
		engine:         engine,
		hub:            hub,
		locks:          locks,
		log:            log,
		trendWindow:    risk.DefaultTrendWindow,
		sampleInterval: risk.DefaultSampleInterval,
	}
}

// WithTrendSampling overrides the trend window and sample interval.
func (s *ViolationService) WithTrendSampling(window, interval time.Duration) *ViolationService {
	if window > 0 {
		s.trendWindow = window
	}
	if interval > 0 {
		s.sampleInterval = interval
	}
	return s
}

// Ingest accepts one detector event for a session: persist, count, rescore,
// alert. The persist is durable before any downstream step can fail; alert
// dispatch is best-effort and never rolls the violation back. Events for the
// same session serialize through the session lock, so arrival order is
// processing order.
func (s *ViolationService) Ingest(sessionID string, ev model.ViolationEvent) (*model.ViolationResponse, error) {
	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	// The liveness check runs under the session lock: End serializes on the
	// same lock, so a session cannot end between the check and the persist.
	unlock := s.locks.Lock(sessionID)
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		unlock()
		return nil, err
	}
	if sess.Status == string(model.SessionStatusEnded) {
		unlock()
		return nil, errs.ErrSessionEnded
	}

	v := &model.Violation{
		SessionID:     sessionID,
		Type:          ev.Type,
		Confidence:    ev.Confidence,
		Details:       ev.Details,
		ScreenshotURL: ev.ScreenshotURL,
		Resolved:      false,
		CreatedAt:     time.Now(),
	}
	if err := s.store.CreateViolation(v); err != nil {
		unlock()
		return nil, fmt.Errorf("persist violation: %w", err)
	}

	// The violation is durable from here on; counter or score update failures
	// degrade to logs so the alerting pipeline stays available.
	if err := s.store.UpdateSession(sessionID, map[string]interface{}{
		"violation_count": sess.ViolationCount + 1,
	}); err != nil {
		s.log.Error("violation counter update failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	score, scoreOK := s.recomputeLocked(sessionID)
	unlock()

	s.log.Info("violation ingested",
		zap.String("session_id", sessionID),
		zap.String("type", ev.Type),
		zap.Float64("confidence", ev.Confidence))
	metrics.ViolationsIngestedTotal.WithLabelValues(ev.Type).Inc()

	resp := violationToResponse(v)
	s.hub.DispatchViolationAlert(sessionID, resp)
	if scoreOK {
		s.hub.DispatchRiskUpdate(sessionID, score)
	}
	return &resp, nil
}

// recomputeLocked refreshes the stored risk score from the unresolved
// snapshot. Caller holds the session lock.
func (s *ViolationService) recomputeLocked(sessionID string) (float64, bool) {
	unresolved, err := s.store.ListUnresolvedViolations(sessionID)
	if err != nil {
		s.log.Error("unresolved snapshot read failed",
			zap.String("session_id", sessionID), zap.Error(err))
		return 0, false
	}
	score := s.engine.Score(unresolved, time.Now())
	metrics.RiskRecomputationsTotal.Inc()
	if err := s.store.UpdateSession(sessionID, map[string]interface{}{
		"risk_score": score,
	}); err != nil {
		s.log.Error("risk score update failed",
			zap.String("session_id", sessionID), zap.Error(err))
		return score, true
	}
	return score, true
}

// Resolve toggles a violation's resolved flag. It does NOT recompute the
// stored risk score: the stored value stays stale until the next ingest, an
// explicit RecalculateRisk, or an on-demand CurrentRisk query.
func (s *ViolationService) Resolve(violationID uint, resolved bool) error {
	if err := s.store.UpdateViolationResolved(violationID, resolved); err != nil {
		return err
	}
	s.log.Info("violation status updated",
		zap.Uint("violation_id", violationID),
		zap.Bool("resolved", resolved))
	return nil
}

// List returns all violations for a session, newest first.
func (s *ViolationService) List(sessionID string) ([]model.ViolationResponse, error) {
	if _, err := s.store.GetSession(sessionID); err != nil {
		return nil, err
	}
	ents, err := s.store.ListViolations(sessionID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	out := make([]model.ViolationResponse, 0, len(ents))
	for _, v := range ents {
		out = append(out, violationToResponse(v))
	}
	return out, nil
}

// Summary aggregates a session's violations by type. A session with zero
// violations yields an empty summary, not an error.
func (s *ViolationService) Summary(sessionID string) (*model.ViolationSummary, error) {
	if _, err := s.store.GetSession(sessionID); err != nil {
		return nil, err
	}
	ents, err := s.store.ListViolations(sessionID)
	if err != nil {
		return nil, fmt.Errorf("violation summary: %w", err)
	}
	summary := &model.ViolationSummary{
		TotalViolations: len(ents),
		ViolationTypes:  make(map[string]int),
	}
	for _, v := range ents {
		if v.Resolved {
			summary.ResolvedViolations++
		}
		summary.ViolationTypes[v.Type]++
	}
	summary.UnresolvedViolations = summary.TotalViolations - summary.ResolvedViolations
	best := 0
	for typ, n := range summary.ViolationTypes {
		if n > best || (n == best && typ < summary.MostCommonViolation) {
			best = n
			summary.MostCommonViolation = typ
		}
	}
	return summary, nil
}

// CurrentRisk computes the session's risk over the unresolved snapshot right
// now, without touching the stored score. Internal read failures degrade to
// 0.0 rather than failing the caller.
func (s *ViolationService) CurrentRisk(sessionID string) (float64, error) {
	if _, err := s.store.GetSession(sessionID); err != nil {
		return 0, err
	}
	unresolved, err := s.store.ListUnresolvedViolations(sessionID)
	if err != nil {
		s.log.Warn("risk query degraded to 0.0",
			zap.String("session_id", sessionID), zap.Error(err))
		return 0.0, nil
	}
	return s.engine.Score(unresolved, time.Now()), nil
}

// RecalculateRisk forces a recompute-and-store cycle and returns the fresh
// score.
func (s *ViolationService) RecalculateRisk(sessionID string) (float64, error) {
	if _, err := s.store.GetSession(sessionID); err != nil {
		return 0, err
	}
	unlock := s.locks.Lock(sessionID)
	score, ok := s.recomputeLocked(sessionID)
	unlock()
	if !ok {
		return 0, fmt.Errorf("recalculate risk for session %s failed", sessionID)
	}
	s.hub.DispatchRiskUpdate(sessionID, score)
	return score, nil
}

// TrendReport samples the session's risk history over the window.
func (s *ViolationService) TrendReport(sessionID string, window time.Duration) (*model.RiskTrendResponse, error) {
	if _, err := s.store.GetSession(sessionID); err != nil {
		return nil, err
	}
	if window <= 0 {
		window = s.trendWindow
	}
	now := time.Now()
	violations, err := s.store.ListViolationsSince(sessionID, now.Add(-window))
	if err != nil {
		return nil, fmt.Errorf("trend query: %w", err)
	}
	report := s.engine.Trend(violations, window, s.sampleInterval, now)
	return &model.RiskTrendResponse{
		SessionID:   sessionID,
		TimePoints:  report.TimePoints,
		RiskScores:  report.RiskScores,
		AverageRisk: report.AverageRisk,
		PeakRisk:    report.PeakRisk,
		Trend:       report.Trend,
	}, nil
}

func validateEvent(ev model.ViolationEvent) error {
	if ev.Type == "" {
		return fmt.Errorf("%w: type is required", errs.ErrInvalidViolation)
	}
	if ev.Confidence < 0.0 || ev.Confidence > 1.0 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", errs.ErrInvalidViolation, ev.Confidence)
	}
	return nil
}

func violationToResponse(v *model.Violation) model.ViolationResponse {
	return model.ViolationResponse{
		ID:            v.ID,
		Type:          v.Type,
		Confidence:    v.Confidence,
		Details:       v.Details,
		ScreenshotURL: v.ScreenshotURL,
		Resolved:      v.Resolved,
		CreatedAt:     v.CreatedAt,
	}
}
