package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/ratelimit"
	"chatrelay/internal/app/room"
	"chatrelay/internal/app/session"
	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/clockx"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
)

type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type testServer struct {
	url      string
	hub      *Hub
	rooms    *room.Registry
	sessions *session.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logx.SetOutput(io.Discard, zerolog.Disabled)

	clock := clockx.Real()
	rooms := room.NewRegistry(clock)
	sessions := session.NewRegistry(clock)
	hub := NewHub(rooms)
	svc := chat.NewService(sessions, rooms, ratelimit.New(ratelimit.Config{}, clock), hub, clock, chat.Config{})

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, svc)
	}))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})

	return &testServer{
		url:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		hub:      hub,
		rooms:    rooms,
		sessions: sessions,
	}
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame InboundFrame) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

// nextEvent reads frames until one of the given kind arrives.
func nextEvent(t *testing.T, conn *websocket.Conn, kind chat.EventKind) wireEvent {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var ev wireEvent
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Event == string(kind) {
			return ev
		}
	}
}

func nextMessage(t *testing.T, conn *websocket.Conn) chat.Message {
	t.Helper()

	var m chat.Message
	require.NoError(t, json.Unmarshal(nextEvent(t, conn, chat.EventMessage).Data, &m))
	return m
}

func nextError(t *testing.T, conn *websocket.Conn) chat.ErrorPayload {
	t.Helper()

	var p chat.ErrorPayload
	require.NoError(t, json.Unmarshal(nextEvent(t, conn, chat.EventError).Data, &p))
	return p
}

func TestWebSocketChatFlow(t *testing.T) {
	s := newTestServer(t)

	alice := s.dial(t)
	sendFrame(t, alice, InboundFrame{Type: FrameJoin, RoomID: "general", Sender: "alice"})

	m := nextMessage(t, alice)
	assert.Equal(t, chat.TypeJoin, m.Type)
	assert.Equal(t, "alice", m.Sender)

	var p chat.Presence
	require.NoError(t, json.Unmarshal(nextEvent(t, alice, chat.EventPresence).Data, &p))
	assert.Equal(t, chat.StatusJoined, p.Status)

	bob := s.dial(t)
	sendFrame(t, bob, InboundFrame{Type: FrameJoin, RoomID: "general", Sender: "bob"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		m := nextMessage(t, conn)
		assert.Equal(t, chat.TypeJoin, m.Type)
		assert.Equal(t, "bob", m.Sender)
	}

	sendFrame(t, alice, InboundFrame{Type: FrameSend, RoomID: "general", Sender: "alice", Content: "hi <b>"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		m := nextMessage(t, conn)
		assert.Equal(t, chat.TypeChat, m.Type)
		assert.Equal(t, "hi &lt;b&gt;", m.Content)
	}

	// abrupt close, no leave frame
	require.NoError(t, bob.Close())

	m = nextMessage(t, alice)
	assert.Equal(t, chat.TypeLeave, m.Type)
	assert.Equal(t, "bob", m.Sender)

	assert.Eventually(t, func() bool {
		return len(s.rooms.ListUsers("general")) == 1 && s.sessions.Len() == 1 && s.hub.Len() == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWebSocketRejectsBadFrames(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, errs.ErrInvalidJSONFormat, nextError(t, conn).Code)

	sendFrame(t, conn, InboundFrame{Type: "shout", RoomID: "general", Sender: "alice"})
	p := nextError(t, conn)
	assert.Equal(t, errs.ErrUnsupportedEventType, p.Code)
	assert.Contains(t, p.Message, "shout")

	sendFrame(t, conn, InboundFrame{Type: FrameSend, RoomID: "general", Sender: "alice", Content: "   "})
	assert.Equal(t, errs.ErrMessageContentEmpty, nextError(t, conn).Code)
}

func TestHubShutdownDisconnectsSessions(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t)

	sendFrame(t, conn, InboundFrame{Type: FrameJoin, RoomID: "rust", Sender: "alice"})
	nextMessage(t, conn)

	s.hub.Shutdown()

	assert.Eventually(t, func() bool {
		return s.sessions.Len() == 0 && !s.rooms.Exists("rust")
	}, 3*time.Second, 20*time.Millisecond)
}

type noMembers struct{}

func (noMembers) ListUsers(string) []user.Session { return nil }

func TestEnqueueDropsWhenFull(t *testing.T) {
	logx.SetOutput(io.Discard, zerolog.Disabled)

	c := NewClient("s1", nil, NewHub(noMembers{}), nil)
	for range sendQueueSize {
		require.True(t, c.enqueue([]byte("x")))
	}
	assert.False(t, c.enqueue([]byte("x")), "full queue drops instead of blocking")

	c.Close()
	c.Close()
	<-c.send
	assert.False(t, c.enqueue([]byte("x")), "closed client accepts nothing")
}

func TestSendToUnknownSessionIsDropped(t *testing.T) {
	logx.SetOutput(io.Discard, zerolog.Disabled)

	h := NewHub(noMembers{})
	h.SendToSession("nobody", chat.ErrorEvent(chat.ErrorPayload{Code: 1}))
	h.BroadcastToRoom("general", chat.MessageEvent(chat.Message{}))
	assert.Zero(t, h.Len())
}
