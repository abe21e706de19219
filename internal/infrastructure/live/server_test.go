package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"classhub/internal/core/ports"
	"classhub/internal/core/services"
	"classhub/internal/infrastructure/monitoring"
	"classhub/internal/infrastructure/repositories/memory"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type wsFixture struct {
	server  *Server
	actions ports.ControlActionRepository
	ts      *httptest.Server
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	collector := monitoring.NewPrometheusCollector(prometheus.NewRegistry())

	actionRepo := memory.NewMemoryControlActionRepository()
	shareRepo := memory.NewMemoryScreenShareRepository()

	server := NewServer(
		NewRegistry(nil),
		NewMembership(),
		memory.NewMemoryDeviceRepository(),
		memory.NewMemoryParticipantRepository(),
		collector,
		Config{
			PingInterval:      30 * time.Second,
			ReadTimeout:       time.Minute,
			WriteTimeout:      10 * time.Second,
			SendQueueSize:     16,
			MessagesPerSecond: 100,
			MessageBurst:      100,
		},
		logger,
		nil,
	)
	server.SetControlService(services.NewControlService(actionRepo, server, logger, nil))
	server.SetScreenShareService(services.NewScreenShareService(shareRepo, server, logger, nil))

	ts := httptest.NewServer(http.HandlerFunc(server.HandleWebSocket))
	t.Cleanup(ts.Close)

	return &wsFixture{server: server, actions: actionRepo, ts: ts}
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event map[string]interface{}
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func register(t *testing.T, conn *websocket.Conn, deviceID, userID string) {
	t.Helper()
	send(t, conn, map[string]interface{}{
		"type":     "register",
		"deviceId": deviceID,
		"userId":   userID,
		"deviceInfo": map[string]interface{}{
			"type":     "tablet",
			"platform": "android",
		},
	})
	event := readEvent(t, conn)
	require.Equal(t, "registered", event["type"])
	require.Equal(t, deviceID, event["deviceId"])
}

func joinSession(t *testing.T, conn *websocket.Conn, sessionID string) {
	t.Helper()
	send(t, conn, map[string]interface{}{"type": "join_session", "sessionId": sessionID})
	event := readEvent(t, conn)
	require.Equal(t, "session_joined", event["type"])
	require.Equal(t, sessionID, event["sessionId"])
}

func TestServerTwoDeviceSessionFlow(t *testing.T) {
	f := newWSFixture(t)

	teacher := f.dial(t)
	student := f.dial(t)

	register(t, teacher, "teacher-dev", "teacher-1")
	register(t, student, "student-dev", "student-1")
	assert.Equal(t, 2, f.server.ConnectionCount())

	joinSession(t, teacher, "session-1")
	joinSession(t, student, "session-1")

	// The teacher hears the student join; the student does not hear itself.
	event := readEvent(t, teacher)
	assert.Equal(t, "participant_joined", event["type"])
	assert.Equal(t, "student-dev", event["deviceId"])
	assert.Equal(t, "student-1", event["userId"])

	// Targeted control command reaches the student only.
	send(t, teacher, map[string]interface{}{
		"type":           "device_control",
		"sessionId":      "session-1",
		"targetDeviceId": "student-dev",
		"actionType":     "lock_screen",
	})

	event = readEvent(t, student)
	assert.Equal(t, "device_control_command", event["type"])
	assert.Equal(t, "lock_screen", event["actionType"])
	assert.Equal(t, "teacher-1", event["controllerId"])
	assert.NotEmpty(t, event["actionId"])

	// The action is persisted pending until the device reports back.
	require.Eventually(t, func() bool {
		pending, err := f.actions.ListPending(context.Background(), "student-dev")
		return err == nil && len(pending) == 1
	}, time.Second, 10*time.Millisecond)

	// Screen share start is announced session-wide, presenter included.
	send(t, teacher, map[string]interface{}{
		"type":      "screen_share_start",
		"sessionId": "session-1",
		"shareType": "screen",
		"streamUrl": "https://media.example.com/stream/1",
	})

	event = readEvent(t, teacher)
	assert.Equal(t, "screen_share_started", event["type"])
	event = readEvent(t, student)
	assert.Equal(t, "screen_share_started", event["type"])
	assert.Equal(t, "https://media.example.com/stream/1", event["streamUrl"])

	// Disconnecting the student announces the departure to the teacher.
	student.Close()
	event = readEvent(t, teacher)
	assert.Equal(t, "participant_left", event["type"])
	assert.Equal(t, "student-dev", event["deviceId"])
}

func TestServerDuplicateRegisterReplacesConnection(t *testing.T) {
	f := newWSFixture(t)

	first := f.dial(t)
	register(t, first, "dev-1", "user-1")

	second := f.dial(t)
	register(t, second, "dev-1", "user-1")

	// The first connection is force-closed by the replacement.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)

	// Only one registry entry remains, and the first connection's cleanup
	// must not have evicted the second.
	require.Eventually(t, func() bool {
		return f.server.ConnectionCount() == 1
	}, time.Second, 10*time.Millisecond)

	conn, ok := f.server.registry.Get("dev-1")
	require.True(t, ok)
	assert.Equal(t, StateOpen, conn.Channel.State())
}

func TestServerReRegisterSameSocketKeepsConnection(t *testing.T) {
	f := newWSFixture(t)

	conn := f.dial(t)
	register(t, conn, "dev-1", "user-1")

	// A repeated register on the same socket is a refresh: the ack arrives
	// and the connection stays usable.
	register(t, conn, "dev-1", "user-1")
	assert.Equal(t, 1, f.server.ConnectionCount())

	entry, ok := f.server.registry.Get("dev-1")
	require.True(t, ok)
	assert.Equal(t, StateOpen, entry.Channel.State())

	joinSession(t, conn, "session-1")
}

func TestServerDropDeviceBeforeSessionBound(t *testing.T) {
	clock := newFixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	server := newTestServer(t, clock)

	ch := newFakeChannel()
	server.registry.Register(&Connection{DeviceID: "dev-1", UserID: "user-1", Channel: ch})
	server.membership.Join("session-1", "dev-1")

	// Eviction can land after the membership insert but before the session
	// is bound in the registry; the device must still leave both structures.
	server.dropDevice(context.Background(), "dev-1", ch, "heartbeat expired")

	_, ok := server.registry.Get("dev-1")
	assert.False(t, ok)
	assert.Equal(t, 0, server.membership.Count("session-1"))
	_, joined := server.membership.SessionOf("dev-1")
	assert.False(t, joined)
}

func TestServerRejectsUnregisteredJoin(t *testing.T) {
	f := newWSFixture(t)

	conn := f.dial(t)
	send(t, conn, map[string]interface{}{"type": "join_session", "sessionId": "session-1"})

	event := readEvent(t, conn)
	assert.Equal(t, "error", event["type"])
	assert.Contains(t, event["message"], "register")
}

func TestServerUnknownMessageType(t *testing.T) {
	f := newWSFixture(t)

	conn := f.dial(t)
	register(t, conn, "dev-1", "user-1")
	send(t, conn, map[string]interface{}{"type": "bogus"})

	event := readEvent(t, conn)
	assert.Equal(t, "error", event["type"])

	// The channel survives a bad message.
	send(t, conn, map[string]interface{}{"type": "heartbeat"})
	send(t, conn, map[string]interface{}{"type": "join_session", "sessionId": "session-1"})
	event = readEvent(t, conn)
	assert.Equal(t, "session_joined", event["type"])
}

func TestServerTearDownClearsMembership(t *testing.T) {
	f := newWSFixture(t)

	teacher := f.dial(t)
	student := f.dial(t)
	register(t, teacher, "teacher-dev", "teacher-1")
	register(t, student, "student-dev", "student-1")
	joinSession(t, teacher, "session-1")
	joinSession(t, student, "session-1")
	readEvent(t, teacher) // participant_joined for the student

	f.server.TearDown(context.Background(), "session-1")

	assert.Equal(t, 0, f.server.membership.Count("session-1"))
	// Channels stay open after teardown.
	assert.Equal(t, 2, f.server.ConnectionCount())

	conn, ok := f.server.registry.Get("teacher-dev")
	require.True(t, ok)
	assert.Empty(t, conn.SessionID)
}
