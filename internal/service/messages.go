package service

import (
	"encoding/json"
	"time"
)

// AdminRoom is the fixed monitoring room that receives every administrative
// broadcast.
const AdminRoom = "admin"

// Message types pushed to the student channel.
const (
	MsgConnectionEstablished = "connection_established"
	MsgPong                  = "pong"
	MsgViolationDetected     = "violation_detected"
	MsgRiskScoreUpdate       = "risk_score_update"
	MsgSessionPaused         = "session_paused"
	MsgSessionEnded          = "session_ended"
	MsgAdminIntervention     = "admin_intervention"
)

// Message types broadcast to monitoring rooms.
const (
	MsgViolationAlert      = "violation_alert"
	MsgSessionStatusUpdate = "session_status_update"
	MsgSessionRiskUpdate   = "session_risk_update"
	MsgEmergencyStop       = "emergency_stop"
)

// Inbound message types the hub recognizes. Anything else is silently
// ignored.
const (
	InboundPing          = "ping"
	InboundViolation     = "violation_alert"
	InboundStatusUpdate  = "status_update"
	InboundEmergencyStop = "emergency_stop"
)

// Envelope is the wire format of every real-time message:
// {"type": ..., ...payload, "timestamp": RFC3339}.
type Envelope map[string]interface{}

// NewEnvelope builds an envelope of the given type with the current UTC
// timestamp and optional payload fields.
func NewEnvelope(msgType string, fields Envelope) Envelope {
	env := Envelope{
		"type":      msgType,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range fields {
		env[k] = v
	}
	return env
}

// Encode marshals the envelope for transport.
func (e Envelope) Encode() []byte {
	raw, _ := json.Marshal(e)
	return raw
}
