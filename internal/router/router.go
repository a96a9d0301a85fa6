package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proctoria/proctoring-service/internal/handler"
	"github.com/proctoria/proctoring-service/internal/metrics"
	"github.com/proctoria/proctoring-service/pkg/constants"
)

// New builds the HTTP router.
func New(
	sessionHandler *handler.SessionHandler,
	violationHandler *handler.ViolationHandler,
	ws *handler.WSHandler,
	health *handler.HealthHandler,
) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(constants.PathHealth, health.Health)
	r.GET(constants.PathReady, health.Ready)
	r.GET(constants.PathMetrics, gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("/start", sessionHandler.StartSession)
			sessions.GET("/high-risk", sessionHandler.GetHighRiskSessions)
			sessions.POST("/:session_id/end", sessionHandler.EndSession)
			sessions.POST("/:session_id/pause", sessionHandler.PauseSession)
			sessions.POST("/:session_id/resume", sessionHandler.ResumeSession)
			sessions.POST("/:session_id/intervene", sessionHandler.Intervene)
			sessions.GET("/:session_id/status", sessionHandler.GetSessionStatus)
		}

		// :id is the session token for the collection routes and the numeric
		// violation id for the status route (gin requires one wildcard name
		// per position).
		violations := v1.Group("/violations")
		{
			violations.POST("/:id", violationHandler.CreateViolation)
			violations.GET("/:id", violationHandler.GetViolations)
			violations.GET("/:id/summary", violationHandler.GetViolationSummary)
			violations.PUT("/:id/status", violationHandler.UpdateViolationStatus)
		}

		riskScore := v1.Group("/risk-score")
		{
			riskScore.GET("/:session_id", violationHandler.GetRiskScore)
			riskScore.POST("/:session_id/recalculate", violationHandler.RecalculateRiskScore)
			riskScore.GET("/:session_id/trend", violationHandler.GetRiskTrend)
		}
	}

	// WebSocket: student channel and monitoring rooms
	r.GET("/ws/monitor/:room", ws.ServeMonitor)
	r.GET("/ws/:session_id", ws.ServeStudent)

	return r
}
