// Package testhelpers provides common utilities for testing the chat relay.
//
// It starts a relay behind httptest, dials WebSocket clients against it, and
// exchanges frames with them so that end-to-end tests stay short.
package testhelpers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/server"
)

// DefaultTimeout bounds every blocking read performed by the helpers.
const DefaultTimeout = 2 * time.Second

// Relay is a running hub behind an httptest server.
type Relay struct {
	Hub    *server.Hub
	Server *httptest.Server
	// Origin is an origin the relay accepts.
	Origin string
	// WSURL is the WebSocket endpoint of the relay.
	WSURL string
}

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// StartRelay starts a hub and an HTTP server serving its routes. The test
// server's own URL is an allowed origin; customize may adjust the rest of the
// configuration before the hub is built. Both are stopped on test cleanup.
func StartRelay(t *testing.T, customize func(cfg *server.Config)) *Relay {
	t.Helper()

	ts := httptest.NewUnstartedServer(nil)
	origin := "http://" + ts.Listener.Addr().String()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{origin}
	if customize != nil {
		customize(cfg)
	}

	hub := server.NewHub(cfg, NewTestLogger())
	ts.Config.Handler = server.SetupRoutes(hub)
	ts.Start()
	go hub.Run()

	t.Cleanup(func() {
		_ = hub.Shutdown(DefaultTimeout)
	})
	t.Cleanup(ts.Close)

	return &Relay{
		Hub:    hub,
		Server: ts,
		Origin: origin,
		WSURL:  "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

// ConnectWebSocket creates a WebSocket connection to url announcing origin.
// The handshake response is returned so callers can inspect rejections.
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// Connect dials the relay and waits until the hub has registered the new
// client, so that frames sent afterwards reach it.
func (r *Relay) Connect(t *testing.T) *websocket.Conn {
	t.Helper()

	before := r.Hub.ClientCount()
	conn, _, err := ConnectWebSocket(r.WSURL, r.Origin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return r.Hub.ClientCount() > before
	}, DefaultTimeout, 5*time.Millisecond, "client was never registered")
	return conn
}

// SendFrame sends an event with a JSON-encoded payload.
func SendFrame(conn *websocket.Conn, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(chat.Frame{Event: event, Data: raw})
}

// SendRawMessage sends a raw text message, bypassing frame encoding.
func SendRawMessage(conn *websocket.Conn, data []byte) error {
	return conn.WriteMessage(websocket.TextMessage, data)
}

// ReceiveFrame reads one frame, failing after timeout.
func ReceiveFrame(conn *websocket.Conn, timeout time.Duration) (chat.Frame, error) {
	var frame chat.Frame
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return frame, err
	}
	err := conn.ReadJSON(&frame)
	return frame, err
}

// ExpectFrame reads the next frame and checks its event name and payload.
// wantData is compared as JSON.
func ExpectFrame(t *testing.T, conn *websocket.Conn, wantEvent, wantData string) {
	t.Helper()

	frame, err := ReceiveFrame(conn, DefaultTimeout)
	require.NoError(t, err, "waiting for %q", wantEvent)
	require.Equal(t, wantEvent, frame.Event)
	require.JSONEq(t, wantData, string(frame.Data))
}

// ExpectNoFrame checks that nothing arrives within timeout. A timed-out
// gorilla connection cannot be read again, so this must be the last read.
func ExpectNoFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	frame, err := ReceiveFrame(conn, timeout)
	require.Error(t, err, "unexpected frame %q", frame.Event)

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of frames: %v", err)
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
