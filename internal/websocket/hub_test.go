package websocket

import (
	"context"
	"log/slog"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, url string) net.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(url, "http"))
	require.NoError(t, err)
	return conn
}

func TestHubBroadcastAndCommands(t *testing.T) {
	received := make(chan string, 8)
	hub := NewHub(HubConfig{
		Logger: slog.New(slog.DiscardHandler),
		OnText: func(data []byte) error {
			received <- string(data)
			return nil
		},
	})

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv.URL)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.Clients() == 1
	}, time.Second, 10*time.Millisecond)

	// client -> hub
	require.NoError(t, wsutil.WriteClientMessage(conn, ws.OpText, []byte(`{"type":"undo"}`)))
	select {
	case got := <-received:
		require.JSONEq(t, `{"type":"undo"}`, got)
	case <-time.After(time.Second):
		t.Fatal("command never reached the handler")
	}

	// hub -> client
	hub.BroadcastText([]byte(`{"type":"session.state","state":"READY"}`))
	data, op, err := wsutil.ReadServerData(conn)
	require.NoError(t, err)
	require.Equal(t, ws.OpText, op)
	require.Contains(t, string(data), "READY")
}
