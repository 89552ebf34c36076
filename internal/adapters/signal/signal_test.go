package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/signalroom/internal/app"
	"github.com/dkeye/signalroom/internal/app/connstate"
	"github.com/dkeye/signalroom/internal/app/orch"
	"github.com/dkeye/signalroom/internal/app/quality"
	"github.com/dkeye/signalroom/internal/app/rooms"
	"github.com/dkeye/signalroom/internal/domain"
)

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	tracker := connstate.NewTracker()
	t.Cleanup(tracker.Close)
	o := orch.New(orch.Deps{
		Registry: app.NewRegistry(),
		Rooms:    rooms.NewCoordinator(domain.DefaultRoomSettings()),
		Conns:    tracker,
		Quality:  quality.NewClassifier(quality.DefaultHighProfile()),
	})
	ctl := NewSignalWSController(o, opts)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c, domain.User{ID: domain.UserID(c.Query("user"))})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, o
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user=" + user
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// readType skips frames until one of type typ arrives.
func readType(t *testing.T, ws *websocket.Conn, typ string) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var m map[string]any
		require.NoError(t, ws.ReadJSON(&m))
		if m["type"] == typ {
			return m
		}
	}
}

func TestSignalWS_JoinRelayAndLeave(t *testing.T) {
	srv, o := newTestServer(t, Options{})
	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")

	require.NoError(t, alice.WriteJSON(map[string]any{"type": "join-room", "roomId": "r1"}))
	readType(t, alice, "room-joined")

	require.NoError(t, bob.WriteJSON(map[string]any{"type": "join-room", "roomId": "r1", "role": "participant"}))
	bobJoined := readType(t, bob, "room-joined")
	bobSID, _ := bobJoined["sessionId"].(string)
	require.NotEmpty(t, bobSID)

	peer := readType(t, alice, "user-joined")
	assert.Equal(t, "bob", peer["userId"])

	require.NoError(t, alice.WriteJSON(map[string]any{
		"type":     "signal",
		"targetId": bobSID,
		"signal":   map[string]any{"type": "offer", "sdp": "v=0"},
	}))
	sig := readType(t, bob, "signal")
	assert.Equal(t, map[string]any{"type": "offer", "sdp": "v=0"}, sig["signal"])
	assert.NotEmpty(t, sig["from"])

	require.NoError(t, bob.Close())
	left := readType(t, alice, "user-left")
	assert.Equal(t, "bob", left["userId"])

	require.Eventually(t, func() bool { return o.Registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestSignalWS_PingAndBadPayload(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	ws := dial(t, srv, "alice")

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "ping"}))
	readType(t, ws, "pong")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":`)))
	e := readType(t, ws, "error")
	assert.Equal(t, orch.CodeBadPayload, e["code"])

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "join-room", "roomId": "r1", "role": "admin"}))
	e = readType(t, ws, "error")
	assert.Equal(t, orch.CodeBadPayload, e["code"])
	assert.Contains(t, e["message"], "oneof")
}

func TestSignalWS_JoinRateLimited(t *testing.T) {
	srv, _ := newTestServer(t, Options{JoinLimiter: NewRoomRateLimiter(1, time.Minute)})
	ws := dial(t, srv, "alice")

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "join-room", "roomId": "r1"}))
	readType(t, ws, "room-joined")
	require.NoError(t, ws.WriteJSON(map[string]any{"type": "join-room", "roomId": "r2"}))
	e := readType(t, ws, "error")
	assert.Equal(t, orch.CodeRateLimited, e["code"])
}

func TestSignalWS_NetworkQuality(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	ws := dial(t, srv, "alice")

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type":  "network-quality",
		"stats": []any{map[string]any{"type": "remote-inbound-rtp", "roundTripTime": 20}},
	}))
	q := readType(t, ws, "quality-profile")
	assert.Equal(t, "high", q["quality"])
	assert.NotNil(t, q["profile"])
}

func TestDecode(t *testing.T) {
	var p relayPayload
	err := decode([]byte(`{"targetId":"","signal":{}}`), &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TargetID")

	require.NoError(t, decode([]byte(`{"targetId":"s-1","signal":{"candidate":"x"}}`), &p))
	assert.JSONEq(t, `{"candidate":"x"}`, string(p.Signal))
}
