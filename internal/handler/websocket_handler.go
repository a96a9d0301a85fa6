package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/proctoria/proctoring-service/internal/model"
	"github.com/proctoria/proctoring-service/internal/service"
	"go.uber.org/zap"
)

// WSHandler upgrades and runs the real-time channels: the per-session student
// connection and the monitoring-room observer connections.
type WSHandler struct {
	hub        *service.Hub
	sessions   *service.SessionService
	upgrader   websocket.Upgrader
	sendBuffer int
	maxMsgSize int64
	logger     *zap.Logger
}

// NewWSHandler creates the WebSocket handler.
func NewWSHandler(hub *service.Hub, sessions *service.SessionService, readBuf, writeBuf, sendBuffer int, maxMsgSize int64, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:      hub,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			// Allow all origins for dev; in prod set CheckOrigin.
		},
		sendBuffer: sendBuffer,
		maxMsgSize: maxMsgSize,
		logger:     logger,
	}
}

// ServeStudent upgrades GET /ws/:session_id into the session's student
// channel. A new connection for the same session displaces the previous one.
func (h *WSHandler) ServeStudent(c *gin.Context) {
	sessionID := c.Param("session_id")

	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if sess.Status == model.SessionStatusEnded {
		c.JSON(http.StatusGone, gin.H{"error": "session already ended"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	if h.maxMsgSize > 0 {
		conn.SetReadLimit(h.maxMsgSize)
	}
	ch := newWSChannel(conn, h.sendBuffer)
	h.hub.Attach(sessionID, ch)
	defer func() {
		h.hub.DetachChannel(sessionID, ch)
		_ = ch.Close()
	}()

	h.readLoop(conn, func(data []byte) {
		h.hub.HandleInbound(sessionID, data)
	})
}

// ServeMonitor upgrades GET /ws/monitor/:room into an observer channel in the
// named monitoring room.
func (h *WSHandler) ServeMonitor(c *gin.Context) {
	room := c.Param("room")
	if room == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	if h.maxMsgSize > 0 {
		conn.SetReadLimit(h.maxMsgSize)
	}
	ch := newWSChannel(conn, h.sendBuffer)
	h.hub.JoinRoom(room, ch)
	defer func() {
		h.hub.LeaveRoom(room, ch)
		_ = ch.Close()
	}()

	// Observers only consume; answer pings so dashboards can probe liveness.
	h.readLoop(conn, func(data []byte) {
		h.hub.HandleRoomInbound(room, ch, data)
	})
}

func (h *WSHandler) readLoop(conn *websocket.Conn, onMessage func([]byte)) {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug("read error", zap.Error(err))
			}
			return
		}
		onMessage(data)
	}
}
