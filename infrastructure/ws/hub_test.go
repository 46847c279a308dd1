package ws

import (
	apperrors "chat-relay/errors"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// newSocketPair upgrades one real websocket connection through an
// in-process server and returns both ends.
func newSocketPair(t *testing.T) (serverSide, clientSide *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	accepted := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientSide, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientSide.Close() })

	serverSide = <-accepted
	return serverSide, clientSide
}

func TestHub_Push_Delivers_To_Attached_Socket(t *testing.T) {
	req := require.New(t)
	hub := NewHub(slog.Default(), time.Second)

	serverSide, clientSide := newSocketPair(t)
	hub.Attach("conn-1", serverSide)
	req.Equal(1, hub.Count())

	payload := []byte(`{"type":"ping"}`)
	req.NoError(hub.Push(context.Background(), "conn-1", payload))

	_ = clientSide.SetReadDeadline(time.Now().Add(time.Second))
	_, received, err := clientSide.ReadMessage()
	req.NoError(err)
	req.Equal(payload, received)
}

func TestHub_Push_To_Unknown_Handle_Is_Gone(t *testing.T) {
	req := require.New(t)
	hub := NewHub(slog.Default(), time.Second)

	err := hub.Push(context.Background(), "never-attached", []byte("x"))
	req.ErrorIs(err, apperrors.ErrConnectionGone)
}

func TestHub_Detach_Forgets_The_Handle(t *testing.T) {
	req := require.New(t)
	hub := NewHub(slog.Default(), time.Second)

	serverSide, _ := newSocketPair(t)
	hub.Attach("conn-1", serverSide)
	hub.Detach("conn-1")
	req.Equal(0, hub.Count())

	err := hub.Push(context.Background(), "conn-1", []byte("x"))
	req.ErrorIs(err, apperrors.ErrConnectionGone)

	// Detaching again is a no-op.
	hub.Detach("conn-1")
}

func TestHub_Serializes_Concurrent_Pushes(t *testing.T) {
	req := require.New(t)
	hub := NewHub(slog.Default(), time.Second)

	serverSide, clientSide := newSocketPair(t)
	hub.Attach("conn-1", serverSide)

	// Gorilla sockets forbid concurrent writers; the hub must take the
	// interleaving on itself.
	const n = 20
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			done <- hub.Push(context.Background(), "conn-1", []byte(`{"type":"ping"}`))
		}()
	}
	for i := 0; i < n; i++ {
		req.NoError(<-done)
	}

	for i := 0; i < n; i++ {
		_ = clientSide.SetReadDeadline(time.Now().Add(time.Second))
		_, _, err := clientSide.ReadMessage()
		req.NoError(err)
	}
}
