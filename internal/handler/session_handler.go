package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/proctoria/proctoring-service/internal/errs"
	"github.com/proctoria/proctoring-service/internal/model"
	"github.com/proctoria/proctoring-service/internal/service"
)

// SessionHandler handles the REST API for session lifecycle.
type SessionHandler struct {
	svc       *service.SessionService
	wsBaseURL string
	highRisk  float64
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(svc *service.SessionService, wsBaseURL string, highRiskThreshold float64) *SessionHandler {
	return &SessionHandler{svc: svc, wsBaseURL: wsBaseURL, highRisk: highRiskThreshold}
}

// StartSession godoc
// POST /api/v1/sessions/start
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req model.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	sess, err := h.svc.Start(req.UserID, req.QuizID, req.AttemptID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}
	c.JSON(http.StatusCreated, model.StartSessionResponse{
		SessionID: sess.SessionID,
		Status:    string(sess.Status),
		WSURL:     h.wsURL(sess.SessionID),
		Message:   "Session started successfully",
	})
}

// EndSession godoc
// POST /api/v1/sessions/:session_id/end
func (h *SessionHandler) EndSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.svc.End(sessionID); err != nil {
		respondSessionError(c, err, "failed to end session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session ended successfully"})
}

// PauseSession godoc
// POST /api/v1/sessions/:session_id/pause
func (h *SessionHandler) PauseSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.svc.Pause(sessionID); err != nil {
		respondSessionError(c, err, "failed to pause session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session paused"})
}

// ResumeSession godoc
// POST /api/v1/sessions/:session_id/resume
func (h *SessionHandler) ResumeSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.svc.Resume(sessionID); err != nil {
		respondSessionError(c, err, "failed to resume session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session resumed"})
}

// GetSessionStatus godoc
// GET /api/v1/sessions/:session_id/status
func (h *SessionHandler) GetSessionStatus(c *gin.Context) {
	sessionID := c.Param("session_id")
	status, err := h.svc.Status(sessionID)
	if err != nil {
		respondSessionError(c, err, "failed to get session status")
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetHighRiskSessions godoc
// GET /api/v1/sessions/high-risk?threshold=0.7
func (h *SessionHandler) GetHighRiskSessions(c *gin.Context) {
	threshold := h.highRisk
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a float in [0,1]"})
			return
		}
		threshold = parsed
	}
	sessions, err := h.svc.HighRisk(threshold)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list high risk sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threshold": threshold, "sessions": sessions})
}

// Intervene godoc
// POST /api/v1/sessions/:session_id/intervene
func (h *SessionHandler) Intervene(c *gin.Context) {
	sessionID := c.Param("session_id")
	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	if err := h.svc.Intervene(sessionID, req.Message); err != nil {
		respondSessionError(c, err, "failed to deliver intervention")
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivered": true})
}

func (h *SessionHandler) wsURL(sessionID string) string {
	if h.wsBaseURL == "" {
		return fmt.Sprintf("/ws/%s", sessionID)
	}
	base := h.wsBaseURL
	if base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return fmt.Sprintf("%s/ws/%s", base, sessionID)
}

func respondSessionError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, errs.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, errs.ErrSessionEnded):
		c.JSON(http.StatusConflict, gin.H{"error": "session already ended"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
