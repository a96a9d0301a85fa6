package service

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeChannel records every frame it is handed and can be told to fail.
type fakeChannel struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	pingErr error
	closed  bool
}

func (f *fakeChannel) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeChannel) Ping() error { return f.pingErr }

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) messages() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(f.sent))
	for _, raw := range f.sent {
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeChannel) types() []string {
	var out []string
	for _, m := range f.messages() {
		t, _ := m["type"].(string)
		out = append(out, t)
	}
	return out
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newTestHub() *Hub {
	return NewHub(zap.NewNop())
}

func TestAttachSendsAckFirst(t *testing.T) {
	hub := newTestHub()
	ch := &fakeChannel{}
	hub.Attach("sess-1", ch)

	msgs := ch.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgConnectionEstablished, msgs[0]["type"])
	assert.Equal(t, "sess-1", msgs[0]["session_id"])
	assert.NotEmpty(t, msgs[0]["timestamp"])
	assert.Equal(t, 1, hub.ActiveSessions())
}

func TestAttachDisplacesPrevious(t *testing.T) {
	hub := newTestHub()
	first := &fakeChannel{}
	second := &fakeChannel{}
	hub.Attach("sess-1", first)
	hub.Attach("sess-1", second)

	assert.True(t, first.isClosed(), "displaced channel must be closed")
	assert.False(t, second.isClosed())
	assert.Equal(t, 1, hub.ActiveSessions())

	// Subsequent unicasts reach only the replacement.
	hub.Unicast("sess-1", NewEnvelope(MsgPong, nil))
	assert.Len(t, first.messages(), 1)  // just its own ack
	assert.Len(t, second.messages(), 2) // ack + pong
}

func TestAttachEvictsOnAckFailure(t *testing.T) {
	hub := newTestHub()
	ch := &fakeChannel{sendErr: errors.New("broken pipe")}
	hub.Attach("sess-1", ch)

	assert.True(t, ch.isClosed())
	assert.Equal(t, 0, hub.ActiveSessions())
}

func TestUnicastNoChannelIsNoop(t *testing.T) {
	hub := newTestHub()
	hub.Unicast("missing", NewEnvelope(MsgPong, nil))
	assert.Equal(t, 0, hub.ActiveSessions())
}

func TestUnicastEvictsDeadChannel(t *testing.T) {
	hub := newTestHub()
	ch := &fakeChannel{}
	hub.Attach("sess-1", ch)

	ch.mu.Lock()
	ch.sendErr = errors.New("write: connection reset")
	ch.mu.Unlock()

	hub.Unicast("sess-1", NewEnvelope(MsgPong, nil))
	assert.True(t, ch.isClosed())
	assert.Equal(t, 0, hub.ActiveSessions())
}

func TestDetachChannelIgnoresDisplacedCleanup(t *testing.T) {
	hub := newTestHub()
	old := &fakeChannel{}
	replacement := &fakeChannel{}
	hub.Attach("sess-1", old)
	hub.Attach("sess-1", replacement)

	// The displaced connection's deferred cleanup must not remove the
	// replacement.
	hub.DetachChannel("sess-1", old)
	assert.Equal(t, 1, hub.ActiveSessions())

	hub.DetachChannel("sess-1", replacement)
	assert.Equal(t, 0, hub.ActiveSessions())
}

func TestDetachIdempotent(t *testing.T) {
	hub := newTestHub()
	hub.Attach("sess-1", &fakeChannel{})
	hub.Detach("sess-1")
	hub.Detach("sess-1")
	assert.Equal(t, 0, hub.ActiveSessions())
}

func TestMulticastIsolatesFailures(t *testing.T) {
	hub := newTestHub()
	good1 := &fakeChannel{}
	dead := &fakeChannel{sendErr: errors.New("gone")}
	good2 := &fakeChannel{}
	hub.JoinRoom(AdminRoom, good1)
	hub.JoinRoom(AdminRoom, dead)
	hub.JoinRoom(AdminRoom, good2)

	hub.Multicast(AdminRoom, NewEnvelope(MsgEmergencyStop, Envelope{"session_id": "s"}))

	assert.Len(t, good1.messages(), 1)
	assert.Len(t, good2.messages(), 1)
	assert.True(t, dead.isClosed())
	assert.Equal(t, 2, hub.RoomCount(AdminRoom))
}

func TestLeaveRoomPrunesEmptyRoom(t *testing.T) {
	hub := newTestHub()
	ch := &fakeChannel{}
	hub.JoinRoom("quiz-42", ch)
	require.Equal(t, 1, hub.RoomCount("quiz-42"))

	hub.LeaveRoom("quiz-42", ch)
	assert.Equal(t, 0, hub.RoomCount("quiz-42"))

	hub.mu.RLock()
	_, exists := hub.rooms["quiz-42"]
	hub.mu.RUnlock()
	assert.False(t, exists, "empty room must be pruned")
}

func TestMulticastEmptyRoomIsNoop(t *testing.T) {
	hub := newTestHub()
	hub.Multicast("nobody-home", NewEnvelope(MsgViolationAlert, nil))
}

func TestHandleInboundPing(t *testing.T) {
	hub := newTestHub()
	ch := &fakeChannel{}
	hub.Attach("sess-1", ch)

	hub.HandleInbound("sess-1", []byte(`{"type":"ping"}`))

	types := ch.types()
	require.Len(t, types, 2)
	assert.Equal(t, MsgPong, types[1])
}

func TestHandleInboundViolationRelayedToAdmins(t *testing.T) {
	hub := newTestHub()
	admin := &fakeChannel{}
	hub.JoinRoom(AdminRoom, admin)

	hub.HandleInbound("sess-1", []byte(`{"type":"violation_alert","violation":{"type":"tab_switch"}}`))

	msgs := admin.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgViolationAlert, msgs[0]["type"])
	assert.Equal(t, "sess-1", msgs[0]["session_id"])
}

func TestHandleInboundStatusUpdate(t *testing.T) {
	hub := newTestHub()
	admin := &fakeChannel{}
	hub.JoinRoom(AdminRoom, admin)

	hub.HandleInbound("sess-1", []byte(`{"type":"status_update","status":"answering"}`))

	msgs := admin.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgSessionStatusUpdate, msgs[0]["type"])
	assert.Equal(t, "answering", msgs[0]["status"])
}

func TestHandleInboundEmergencyStop(t *testing.T) {
	hub := newTestHub()
	student := &fakeChannel{}
	admin := &fakeChannel{}
	hub.Attach("sess-1", student)
	hub.JoinRoom(AdminRoom, admin)

	hub.HandleInbound("sess-1", []byte(`{"type":"emergency_stop"}`))

	studentTypes := student.types()
	require.Len(t, studentTypes, 2)
	assert.Equal(t, MsgSessionPaused, studentTypes[1])

	adminMsgs := admin.messages()
	require.Len(t, adminMsgs, 1)
	assert.Equal(t, MsgEmergencyStop, adminMsgs[0]["type"])
	assert.Equal(t, "sess-1", adminMsgs[0]["session_id"])
}

func TestHandleInboundUnknownAndMalformedIgnored(t *testing.T) {
	hub := newTestHub()
	ch := &fakeChannel{}
	hub.Attach("sess-1", ch)
	before := len(ch.messages())

	hub.HandleInbound("sess-1", []byte(`{"type":"make_coffee"}`))
	hub.HandleInbound("sess-1", []byte(`{{{not json`))
	hub.HandleInbound("sess-1", []byte(`{"no_type_at_all":1}`))

	assert.Len(t, ch.messages(), before)
}

func TestHandleRoomInboundPing(t *testing.T) {
	hub := newTestHub()
	ch := &fakeChannel{}
	hub.JoinRoom(AdminRoom, ch)

	hub.HandleRoomInbound(AdminRoom, ch, []byte(`{"type":"ping"}`))
	types := ch.types()
	require.Len(t, types, 1)
	assert.Equal(t, MsgPong, types[0])

	hub.HandleRoomInbound(AdminRoom, ch, []byte(`{"type":"status_update"}`))
	assert.Len(t, ch.types(), 1, "observers cannot inject status updates")
}

func TestSweepOnceEvictsDeadChannels(t *testing.T) {
	hub := newTestHub()
	live := &fakeChannel{}
	deadStudent := &fakeChannel{pingErr: errors.New("timeout")}
	deadAdmin := &fakeChannel{pingErr: errors.New("timeout")}
	hub.Attach("live", live)
	hub.Attach("dead", deadStudent)
	hub.JoinRoom(AdminRoom, deadAdmin)

	evicted := hub.SweepOnce()

	assert.Equal(t, 2, evicted)
	assert.Equal(t, 1, hub.ActiveSessions())
	assert.Equal(t, 0, hub.RoomCount(AdminRoom))
	assert.True(t, deadStudent.isClosed())
	assert.True(t, deadAdmin.isClosed())
	assert.False(t, live.isClosed())
}

func TestSweepOnceAllHealthy(t *testing.T) {
	hub := newTestHub()
	hub.Attach("a", &fakeChannel{})
	hub.Attach("b", &fakeChannel{})
	assert.Equal(t, 0, hub.SweepOnce())
	assert.Equal(t, 2, hub.ActiveSessions())
}

func TestDispatchSessionEndedDetaches(t *testing.T) {
	hub := newTestHub()
	student := &fakeChannel{}
	admin := &fakeChannel{}
	hub.Attach("sess-1", student)
	hub.JoinRoom(AdminRoom, admin)

	hub.DispatchSessionEnded("sess-1")

	types := student.types()
	require.Len(t, types, 2)
	assert.Equal(t, MsgSessionEnded, types[1])
	assert.Equal(t, 0, hub.ActiveSessions())

	adminMsgs := admin.messages()
	require.Len(t, adminMsgs, 1)
	assert.Equal(t, MsgSessionEnded, adminMsgs[0]["type"])
	assert.Equal(t, "sess-1", adminMsgs[0]["session_id"])
}

func TestDispatchRiskUpdateReachesBothSides(t *testing.T) {
	hub := newTestHub()
	student := &fakeChannel{}
	admin := &fakeChannel{}
	hub.Attach("sess-1", student)
	hub.JoinRoom(AdminRoom, admin)

	hub.DispatchRiskUpdate("sess-1", 0.73)

	studentMsgs := student.messages()
	require.Len(t, studentMsgs, 2)
	assert.Equal(t, MsgRiskScoreUpdate, studentMsgs[1]["type"])
	assert.InDelta(t, 0.73, studentMsgs[1]["risk_score"].(float64), 1e-9)

	adminMsgs := admin.messages()
	require.Len(t, adminMsgs, 1)
	assert.Equal(t, MsgSessionRiskUpdate, adminMsgs[0]["type"])
}

func TestEnvelopeShape(t *testing.T) {
	env := NewEnvelope(MsgPong, Envelope{"extra": 1})
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Encode(), &m))
	assert.Equal(t, MsgPong, m["type"])
	assert.EqualValues(t, 1, m["extra"])
	ts, ok := m["timestamp"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, ts)
}
