package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/proctoria/proctoring-service/internal/errs"
	"github.com/proctoria/proctoring-service/internal/model"
	"github.com/proctoria/proctoring-service/internal/service"
)

// ViolationHandler handles the REST API for violation ingestion and risk
// queries.
type ViolationHandler struct {
	svc *service.ViolationService
}

// NewViolationHandler creates a violation handler.
func NewViolationHandler(svc *service.ViolationService) *ViolationHandler {
	return &ViolationHandler{svc: svc}
}

// CreateViolation godoc
// POST /api/v1/violations/:id  (:id = session token)
func (h *ViolationHandler) CreateViolation(c *gin.Context) {
	sessionID := c.Param("id")
	var ev model.ViolationEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	v, err := h.svc.Ingest(sessionID, ev)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrInvalidViolation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, errs.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, errs.ErrSessionEnded):
			c.JSON(http.StatusConflict, gin.H{"error": "session already ended"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process violation"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"violation_id": v.ID, "created": true})
}

// GetViolations godoc
// GET /api/v1/violations/:id  (:id = session token)
func (h *ViolationHandler) GetViolations(c *gin.Context) {
	sessionID := c.Param("id")
	violations, err := h.svc.List(sessionID)
	if err != nil {
		respondSessionError(c, err, "failed to get violations")
		return
	}
	c.JSON(http.StatusOK, violations)
}

// GetViolationSummary godoc
// GET /api/v1/violations/:id/summary  (:id = session token)
func (h *ViolationHandler) GetViolationSummary(c *gin.Context) {
	sessionID := c.Param("id")
	summary, err := h.svc.Summary(sessionID)
	if err != nil {
		respondSessionError(c, err, "failed to get violation summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// UpdateViolationStatus godoc
// PUT /api/v1/violations/:id/status  (:id = violation id)
func (h *ViolationHandler) UpdateViolationStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "violation id must be numeric"})
		return
	}
	var req model.ViolationStatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	if err := h.svc.Resolve(uint(id), *req.Resolved); err != nil {
		if errors.Is(err, errs.ErrViolationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "violation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update violation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// GetRiskScore godoc
// GET /api/v1/risk-score/:session_id
func (h *ViolationHandler) GetRiskScore(c *gin.Context) {
	sessionID := c.Param("session_id")
	score, err := h.svc.CurrentRisk(sessionID)
	if err != nil {
		respondSessionError(c, err, "failed to get risk score")
		return
	}
	c.JSON(http.StatusOK, model.RiskScoreResponse{SessionID: sessionID, RiskScore: score})
}

// RecalculateRiskScore godoc
// POST /api/v1/risk-score/:session_id/recalculate
func (h *ViolationHandler) RecalculateRiskScore(c *gin.Context) {
	sessionID := c.Param("session_id")
	score, err := h.svc.RecalculateRisk(sessionID)
	if err != nil {
		respondSessionError(c, err, "failed to recalculate risk score")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":   sessionID,
		"risk_score":   score,
		"recalculated": true,
	})
}

// GetRiskTrend godoc
// GET /api/v1/risk-score/:session_id/trend?hours=24
func (h *ViolationHandler) GetRiskTrend(c *gin.Context) {
	sessionID := c.Param("session_id")
	var window time.Duration
	if raw := c.Query("hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}
		window = time.Duration(hours) * time.Hour
	}
	trend, err := h.svc.TrendReport(sessionID, window)
	if err != nil {
		respondSessionError(c, err, "failed to get risk trend")
		return
	}
	c.JSON(http.StatusOK, trend)
}
