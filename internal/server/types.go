// Package server defines the inbound envelope passed from clients to the hub
// and utility helpers shared by client and hub logic.
package server

import (
	"strings"

	"github.com/Tyrowin/chatrelay/internal/chat"
)

// InboundFrame is a decoded frame together with the client that sent it.
type InboundFrame struct {
	Sender *Client
	Frame  chat.Frame
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
