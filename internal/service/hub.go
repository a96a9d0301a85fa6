package service

import (
	"encoding/json"
	"sync"

	"github.com/proctoria/proctoring-service/internal/metrics"
	"go.uber.org/zap"
)

// Channel is one addressable bidirectional real-time connection to an
// observer. The hub never blocks on a Channel: implementations must fail fast
// (e.g. buffered send with drop-on-full) so one slow observer cannot stall
// the alerting pipeline.
type Channel interface {
	Send(data []byte) error
	Ping() error
	Close() error
}

// Hub owns the session→channel map (one student channel per session) and the
// named monitoring rooms (unbounded observer membership). All mutation goes
// through its operations; delivery is best-effort and dead channels are
// evicted rather than surfaced as errors.
type Hub struct {
	mu       sync.RWMutex
	students map[string]Channel
	rooms    map[string]map[Channel]struct{}
	log      *zap.Logger
}

// NewHub creates an empty broadcast hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		students: make(map[string]Channel),
		rooms:    make(map[string]map[Channel]struct{}),
		log:      log,
	}
}

// Attach registers the student channel for a session, displacing (and
// closing) any previous one, and immediately acknowledges with
// connection_established before any other message.
func (h *Hub) Attach(sessionID string, ch Channel) {
	h.mu.Lock()
	old := h.students[sessionID]
	h.students[sessionID] = ch
	n := len(h.students)
	h.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	metrics.ActiveStudentConnections.Set(float64(n))
	h.log.Info("channel attached", zap.String("session_id", sessionID))

	ack := NewEnvelope(MsgConnectionEstablished, Envelope{"session_id": sessionID})
	if err := ch.Send(ack.Encode()); err != nil {
		h.evictStudent(sessionID, ch)
	}
}

// Detach removes the student channel for a session. Idempotent.
func (h *Hub) Detach(sessionID string) {
	h.mu.Lock()
	_, ok := h.students[sessionID]
	delete(h.students, sessionID)
	n := len(h.students)
	h.mu.Unlock()
	if ok {
		metrics.ActiveStudentConnections.Set(float64(n))
		h.log.Info("channel detached", zap.String("session_id", sessionID))
	}
}

// DetachChannel removes the student channel only if it is still the one
// registered, so a displaced connection's cleanup cannot remove its
// replacement.
func (h *Hub) DetachChannel(sessionID string, ch Channel) {
	h.mu.Lock()
	if h.students[sessionID] != ch {
		h.mu.Unlock()
		return
	}
	delete(h.students, sessionID)
	n := len(h.students)
	h.mu.Unlock()
	metrics.ActiveStudentConnections.Set(float64(n))
	h.log.Info("channel detached", zap.String("session_id", sessionID))
}

// Unicast delivers a message to a session's student channel, best-effort.
// A failed send evicts the channel; no error is surfaced to the caller.
func (h *Hub) Unicast(sessionID string, env Envelope) {
	h.mu.RLock()
	ch := h.students[sessionID]
	h.mu.RUnlock()
	if ch == nil {
		return
	}
	if err := ch.Send(env.Encode()); err != nil {
		h.log.Warn("unicast failed, evicting channel",
			zap.String("session_id", sessionID),
			zap.Error(err))
		h.evictStudent(sessionID, ch)
	}
}

// JoinRoom adds an observer channel to a monitoring room.
func (h *Hub) JoinRoom(room string, ch Channel) {
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[Channel]struct{})
	}
	h.rooms[room][ch] = struct{}{}
	n := len(h.rooms[room])
	h.mu.Unlock()
	metrics.MonitorRoomMembers.WithLabelValues(room).Set(float64(n))
	h.log.Info("observer joined room", zap.String("room", room))
}

// LeaveRoom removes an observer channel from a room; empty rooms are pruned.
func (h *Hub) LeaveRoom(room string, ch Channel) {
	h.mu.Lock()
	if m, ok := h.rooms[room]; ok {
		delete(m, ch)
		if len(m) == 0 {
			delete(h.rooms, room)
		}
	}
	n := len(h.rooms[room])
	h.mu.Unlock()
	metrics.MonitorRoomMembers.WithLabelValues(room).Set(float64(n))
}

// Multicast fans a message out to every member of a room. Failures are
// isolated per member; dead members are pruned after the attempt.
func (h *Hub) Multicast(room string, env Envelope) {
	h.mu.RLock()
	members := make([]Channel, 0, len(h.rooms[room]))
	for ch := range h.rooms[room] {
		members = append(members, ch)
	}
	h.mu.RUnlock()

	raw := env.Encode()
	var dead []Channel
	for _, ch := range members {
		if err := ch.Send(raw); err != nil {
			h.log.Warn("room broadcast failed for member",
				zap.String("room", room),
				zap.Error(err))
			dead = append(dead, ch)
		}
	}
	for _, ch := range dead {
		metrics.DeliveryFailuresTotal.Inc()
		h.LeaveRoom(room, ch)
		_ = ch.Close()
	}
}

// HandleInbound routes one raw inbound message from a student channel through
// the dispatch table. Unrecognized types are ignored, not errors.
func (h *Hub) HandleInbound(sessionID string, raw []byte) {
	var msg map[string]interface{}
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.log.Debug("discarding malformed inbound message",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return
	}
	msgType, _ := msg["type"].(string)

	switch msgType {
	case InboundPing:
		h.Unicast(sessionID, NewEnvelope(MsgPong, nil))

	case InboundViolation:
		h.Multicast(AdminRoom, NewEnvelope(MsgViolationAlert, Envelope{
			"session_id": sessionID,
			"violation":  msg["violation"],
		}))

	case InboundStatusUpdate:
		h.Multicast(AdminRoom, NewEnvelope(MsgSessionStatusUpdate, Envelope{
			"session_id": sessionID,
			"status":     msg["status"],
		}))

	case InboundEmergencyStop:
		h.Unicast(sessionID, NewEnvelope(MsgSessionPaused, Envelope{
			"reason": "Emergency stop requested",
		}))
		h.Multicast(AdminRoom, NewEnvelope(MsgEmergencyStop, Envelope{
			"session_id": sessionID,
		}))
	}
}

// HandleRoomInbound routes one raw inbound message from an observer channel.
// Observers mostly consume; only ping is answered, everything else is ignored.
func (h *Hub) HandleRoomInbound(room string, ch Channel, raw []byte) {
	var msg map[string]interface{}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msgType, _ := msg["type"].(string); msgType == InboundPing {
		if err := ch.Send(NewEnvelope(MsgPong, nil).Encode()); err != nil {
			h.LeaveRoom(room, ch)
			_ = ch.Close()
		}
	}
}

// SweepOnce probes every channel (students and room members) and evicts those
// that fail the liveness check. Snapshot-then-check: attach/detach may race
// the sweep without blocking on it.
func (h *Hub) SweepOnce() int {
	type studentRef struct {
		sessionID string
		ch        Channel
	}
	type memberRef struct {
		room string
		ch   Channel
	}
	h.mu.RLock()
	students := make([]studentRef, 0, len(h.students))
	for id, ch := range h.students {
		students = append(students, studentRef{id, ch})
	}
	var members []memberRef
	for room, m := range h.rooms {
		for ch := range m {
			members = append(members, memberRef{room, ch})
		}
	}
	h.mu.RUnlock()

	evicted := 0
	for _, s := range students {
		if err := s.ch.Ping(); err != nil {
			h.log.Warn("heartbeat failed", zap.String("session_id", s.sessionID), zap.Error(err))
			h.evictStudent(s.sessionID, s.ch)
			evicted++
		}
	}
	for _, m := range members {
		if err := m.ch.Ping(); err != nil {
			h.log.Warn("heartbeat failed", zap.String("room", m.room), zap.Error(err))
			h.LeaveRoom(m.room, m.ch)
			_ = m.ch.Close()
			evicted++
		}
	}
	if evicted > 0 {
		h.log.Info("heartbeat sweep evicted dead channels", zap.Int("count", evicted))
	}
	return evicted
}

// ActiveSessions returns the number of live student channels.
func (h *Hub) ActiveSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.students)
}

// RoomCount returns the number of observers in a room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) evictStudent(sessionID string, ch Channel) {
	metrics.DeliveryFailuresTotal.Inc()
	h.DetachChannel(sessionID, ch)
	_ = ch.Close()
}
