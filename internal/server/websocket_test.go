package server_test

import (
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/server"
	"github.com/Tyrowin/chatrelay/internal/testhelpers"
)

const quietPeriod = 200 * time.Millisecond

func TestWebSocket_TypingIsNotEchoedToSender(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)
	alice := relay.Connect(t)
	bob := relay.Connect(t)

	require.NoError(t, testhelpers.SendFrame(alice, chat.EventTyping, "alice"))

	testhelpers.ExpectFrame(t, bob, chat.EventUserTyping, `"alice"`)
	testhelpers.ExpectNoFrame(t, alice, quietPeriod)
}

func TestWebSocket_ChatMessageIsEchoedToEveryone(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)
	alice := relay.Connect(t)
	bob := relay.Connect(t)
	carol := relay.Connect(t)

	require.NoError(t, testhelpers.SendFrame(alice, chat.EventChatMessage, "hi"))

	for _, conn := range []*websocket.Conn{alice, bob, carol} {
		testhelpers.ExpectFrame(t, conn, chat.EventChatMessage, `"hi"`)
	}
}

func TestWebSocket_ChatMessageCancelsTyping(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)
	alice := relay.Connect(t)
	bob := relay.Connect(t)

	require.NoError(t, testhelpers.SendFrame(alice, chat.EventTyping, "alice"))
	require.NoError(t, testhelpers.SendFrame(alice, chat.EventChatMessage, "hi"))

	testhelpers.ExpectFrame(t, bob, chat.EventUserTyping, `"alice"`)
	testhelpers.ExpectFrame(t, bob, chat.EventUserStoppedTyping, `"alice"`)
	testhelpers.ExpectFrame(t, bob, chat.EventChatMessage, `"hi"`)

	testhelpers.ExpectFrame(t, alice, chat.EventChatMessage, `"hi"`)
	require.Zero(t, relay.Hub.TypingCount())
}

func TestWebSocket_DisconnectCancelsTyping(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)
	alice := relay.Connect(t)
	bob := relay.Connect(t)

	require.NoError(t, testhelpers.SendFrame(alice, chat.EventTyping, "alice"))
	testhelpers.ExpectFrame(t, bob, chat.EventUserTyping, `"alice"`)
	require.Equal(t, 1, relay.Hub.TypingCount())

	require.NoError(t, testhelpers.CloseWebSocket(alice))

	testhelpers.ExpectFrame(t, bob, chat.EventUserStoppedTyping, `"alice"`)
	require.Eventually(t, func() bool {
		return relay.Hub.ClientCount() == 1 && relay.Hub.TypingCount() == 0
	}, testhelpers.DefaultTimeout, 5*time.Millisecond)
}

func TestWebSocket_IdleDisconnectIsSilent(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)
	alice := relay.Connect(t)
	bob := relay.Connect(t)

	require.NoError(t, alice.Close())

	require.Eventually(t, func() bool {
		return relay.Hub.ClientCount() == 1
	}, testhelpers.DefaultTimeout, 5*time.Millisecond)
	testhelpers.ExpectNoFrame(t, bob, quietPeriod)
}

func TestWebSocket_StopTypingWithoutTypingIsSilent(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)
	alice := relay.Connect(t)
	bob := relay.Connect(t)

	require.NoError(t, testhelpers.SendFrame(alice, chat.EventStopTyping, "alice"))

	testhelpers.ExpectNoFrame(t, bob, quietPeriod)
}

func TestWebSocket_StopTypingIsBroadcastOnce(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)
	alice := relay.Connect(t)
	bob := relay.Connect(t)

	require.NoError(t, testhelpers.SendFrame(alice, chat.EventTyping, "alice"))
	require.NoError(t, testhelpers.SendFrame(alice, chat.EventStopTyping, "alice"))
	require.NoError(t, testhelpers.SendFrame(alice, chat.EventStopTyping, "alice"))
	require.NoError(t, testhelpers.SendFrame(alice, chat.EventChatMessage, "done"))

	testhelpers.ExpectFrame(t, bob, chat.EventUserTyping, `"alice"`)
	testhelpers.ExpectFrame(t, bob, chat.EventUserStoppedTyping, `"alice"`)
	testhelpers.ExpectFrame(t, bob, chat.EventChatMessage, `"done"`)
}

func TestWebSocket_RepeatedTypingIsRebroadcast(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)
	alice := relay.Connect(t)
	bob := relay.Connect(t)

	require.NoError(t, testhelpers.SendFrame(alice, chat.EventTyping, "alice"))
	require.NoError(t, testhelpers.SendFrame(alice, chat.EventTyping, "alice"))

	testhelpers.ExpectFrame(t, bob, chat.EventUserTyping, `"alice"`)
	testhelpers.ExpectFrame(t, bob, chat.EventUserTyping, `"alice"`)
	require.Equal(t, 1, relay.Hub.TypingCount())
}

func TestWebSocket_PayloadsAreRelayedVerbatim(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)
	alice := relay.Connect(t)
	bob := relay.Connect(t)

	payload := map[string]any{"text": "hi", "tags": []string{"a", "b"}}
	require.NoError(t, testhelpers.SendFrame(alice, chat.EventChatMessage, payload))
	require.NoError(t, testhelpers.SendFrame(alice, chat.EventTyping, 42))

	testhelpers.ExpectFrame(t, bob, chat.EventChatMessage, `{"text":"hi","tags":["a","b"]}`)
	testhelpers.ExpectFrame(t, bob, chat.EventUserTyping, `42`)
}

func TestWebSocket_MalformedFramesAreDropped(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)
	alice := relay.Connect(t)
	bob := relay.Connect(t)

	require.NoError(t, testhelpers.SendRawMessage(alice, []byte("not json")))
	require.NoError(t, testhelpers.SendRawMessage(alice, []byte(`{"data":"no event"}`)))
	require.NoError(t, testhelpers.SendFrame(alice, "user typing", "mallory"))
	require.NoError(t, testhelpers.SendFrame(alice, chat.EventChatMessage, "still here"))

	testhelpers.ExpectFrame(t, bob, chat.EventChatMessage, `"still here"`)
	testhelpers.ExpectFrame(t, alice, chat.EventChatMessage, `"still here"`)
	require.Equal(t, 2, relay.Hub.ClientCount())
}

func TestWebSocket_PerConnectionOrderIsPreserved(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)
	alice := relay.Connect(t)
	bob := relay.Connect(t)

	const messages = 20
	for i := range messages {
		require.NoError(t, testhelpers.SendFrame(alice, chat.EventChatMessage, i))
	}

	for i := range messages {
		frame, err := testhelpers.ReceiveFrame(bob, testhelpers.DefaultTimeout)
		require.NoError(t, err)
		require.Equal(t, chat.EventChatMessage, frame.Event)
		require.JSONEq(t, strconv.Itoa(i), string(frame.Data))
	}
}

func TestWebSocket_OversizedFrameClosesConnection(t *testing.T) {
	relay := testhelpers.StartRelay(t, func(cfg *server.Config) {
		cfg.MaxMessageSize = 64
	})
	alice := relay.Connect(t)
	bob := relay.Connect(t)

	require.NoError(t, testhelpers.SendFrame(alice, chat.EventTyping, "alice"))
	testhelpers.ExpectFrame(t, bob, chat.EventUserTyping, `"alice"`)

	require.NoError(t, testhelpers.SendFrame(alice, chat.EventChatMessage, strings.Repeat("x", 200)))

	testhelpers.ExpectFrame(t, bob, chat.EventUserStoppedTyping, `"alice"`)
	require.Eventually(t, func() bool {
		return relay.Hub.ClientCount() == 1 && relay.Hub.TypingCount() == 0
	}, testhelpers.DefaultTimeout, 5*time.Millisecond)
}

func TestWebSocket_OriginValidation(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		allowed bool
	}{
		{name: "configured origin", origins: []string{"http://chat.example.com"}, origin: "http://chat.example.com", allowed: true},
		{name: "case insensitive", origins: []string{"http://chat.example.com"}, origin: "HTTP://Chat.Example.com", allowed: true},
		{name: "other origin", origins: []string{"http://chat.example.com"}, origin: "http://evil.example.com", allowed: false},
		{name: "missing origin", origins: []string{"http://chat.example.com"}, origin: "", allowed: false},
		{name: "wildcard", origins: []string{"*"}, origin: "http://anything.example.com", allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := testhelpers.StartRelay(t, func(cfg *server.Config) {
				cfg.AllowedOrigins = tt.origins
			})

			conn, resp, err := testhelpers.ConnectWebSocket(relay.WSURL, tt.origin)
			if tt.allowed {
				require.NoError(t, err)
				_ = conn.Close()
				return
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			require.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestWebSocket_ShutdownDisconnectsClients(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)
	alice := relay.Connect(t)
	bob := relay.Connect(t)

	require.NoError(t, relay.Hub.Shutdown(testhelpers.DefaultTimeout))

	for _, conn := range []*websocket.Conn{alice, bob} {
		_, err := testhelpers.ReceiveFrame(conn, testhelpers.DefaultTimeout)
		require.Error(t, err)
	}
	require.Zero(t, relay.Hub.ClientCount())
}
