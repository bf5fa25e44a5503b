package livefeed

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type snapshot struct {
	Role    string   `json:"role"`
	Title   string   `json:"title"`
	Records []string `json:"records"`
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return ws
}

func readSnapshot(t *testing.T, ws *websocket.Conn) snapshot {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var s snapshot
	require.NoError(t, ws.ReadJSON(&s))
	return s
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

func TestHub_ReplaysLatestOnConnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub()
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	require.NoError(t, hub.Broadcast(snapshot{Role: "lab", Title: "Lab Queue", Records: []string{}}))

	ws := dial(t, wsURL(srv.URL))
	defer ws.Close()

	got := readSnapshot(t, ws)
	assert.Equal(t, "lab", got.Role)
	assert.Equal(t, "Lab Queue", got.Title)
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub()
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	a := dial(t, wsURL(srv.URL))
	defer a.Close()
	b := dial(t, wsURL(srv.URL))
	defer b.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 5*time.Millisecond)

	// inbound frames are ignored
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"toggle":1}`)))

	require.NoError(t, hub.Broadcast(snapshot{Role: "pharmacy", Records: []string{"p1"}}))

	for _, ws := range []*websocket.Conn{a, b} {
		got := readSnapshot(t, ws)
		assert.Equal(t, "pharmacy", got.Role)
		assert.Equal(t, []string{"p1"}, got.Records)
	}
}

func TestHub_ClientDisconnectIsForgotten(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub()
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	ws := dial(t, wsURL(srv.URL))
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	ws.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
	assert.NoError(t, hub.Broadcast(snapshot{Role: "doctor"}))
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub()
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	ws := dial(t, wsURL(srv.URL))
	defer ws.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := ws.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Zero(t, hub.Clients())
}

func TestNewServer_Defaults(t *testing.T) {
	s := NewServer(Config{}, NewHub())
	if s.config.Addr != "127.0.0.1:8765" {
		t.Errorf("addr: got %q, want %q", s.config.Addr, "127.0.0.1:8765")
	}
	if s.IsRunning() {
		t.Error("expected not running initially")
	}
}

func TestServer_StartDisabled(t *testing.T) {
	s := NewServer(Config{Enabled: false}, NewHub())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start disabled: %v", err)
	}
	if s.IsRunning() {
		t.Error("expected not running when disabled")
	}
	if s.Addr() != "" {
		t.Errorf("addr: got %q, want empty", s.Addr())
	}
}

func TestServer_ServesFeed(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub()
	s := NewServer(Config{Enabled: true, Addr: "127.0.0.1:0"}, hub)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error on double start")
	}

	hub.Broadcast(snapshot{Role: "doctor", Title: "Dr. Rao"})
	ws := dial(t, "ws://"+s.Addr()+"/ws")
	got := readSnapshot(t, ws)
	if got.Title != "Dr. Rao" {
		t.Errorf("title: got %q", got.Title)
	}

	s.Stop(context.Background())
	ws.Close()
	if s.IsRunning() {
		t.Error("expected not running after stop")
	}
}
