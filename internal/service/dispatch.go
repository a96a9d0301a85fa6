package service

import "github.com/proctoria/proctoring-service/internal/model"

// Named dispatch compositions: the message protocol between the core and its
// observers. Each is best-effort, a failed delivery never aborts the
// triggering operation.

// DispatchViolationAlert pushes a detected violation to the student and the
// admin monitoring room.
func (h *Hub) DispatchViolationAlert(sessionID string, v model.ViolationResponse) {
	h.Unicast(sessionID, NewEnvelope(MsgViolationDetected, Envelope{
		"violation": v,
	}))
	h.Multicast(AdminRoom, NewEnvelope(MsgViolationAlert, Envelope{
		"session_id": sessionID,
		"violation":  v,
	}))
}

// DispatchRiskUpdate pushes a fresh risk score to the student and the admin
// room.
func (h *Hub) DispatchRiskUpdate(sessionID string, riskScore float64) {
	h.Unicast(sessionID, NewEnvelope(MsgRiskScoreUpdate, Envelope{
		"risk_score": riskScore,
	}))
	h.Multicast(AdminRoom, NewEnvelope(MsgSessionRiskUpdate, Envelope{
		"session_id": sessionID,
		"risk_score": riskScore,
	}))
}

// DispatchSessionEnded notifies both sides that the session is over, then
// releases the student channel.
func (h *Hub) DispatchSessionEnded(sessionID string) {
	h.Unicast(sessionID, NewEnvelope(MsgSessionEnded, nil))
	h.Multicast(AdminRoom, NewEnvelope(MsgSessionEnded, Envelope{
		"session_id": sessionID,
	}))
	h.Detach(sessionID)
}

// DispatchSessionPaused tells the student the session is paused and updates
// the admin room.
func (h *Hub) DispatchSessionPaused(sessionID, reason string) {
	h.Unicast(sessionID, NewEnvelope(MsgSessionPaused, Envelope{
		"reason": reason,
	}))
	h.Multicast(AdminRoom, NewEnvelope(MsgSessionStatusUpdate, Envelope{
		"session_id": sessionID,
		"status":     string(model.SessionStatusPaused),
	}))
}

// DispatchStatusUpdate broadcasts a lifecycle state change to the admin room.
func (h *Hub) DispatchStatusUpdate(sessionID string, status model.SessionStatus) {
	h.Multicast(AdminRoom, NewEnvelope(MsgSessionStatusUpdate, Envelope{
		"session_id": sessionID,
		"status":     string(status),
	}))
}

// DispatchAdminIntervention delivers a proctor's message to the student.
func (h *Hub) DispatchAdminIntervention(sessionID, message string) {
	h.Unicast(sessionID, NewEnvelope(MsgAdminIntervention, Envelope{
		"message": message,
	}))
}
