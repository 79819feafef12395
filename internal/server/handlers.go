// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in chat page.
package server

import (
	_ "embed"
	"fmt"
	"net/http"
)

//go:embed static/index.html
var indexPage []byte

// WebSocketHandler returns a handler that upgrades requests to WebSocket and
// hands the resulting client to hub. It only accepts GET requests.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := hub.upgrade(w, r)
		if err != nil {
			hub.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)

		// The hub launches the pump goroutines once the client is registered.
		if err := hub.Register(client); err != nil {
			client.log.Warn("Rejecting connection", "error", err)
			client.closeConnection()
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat relay is running!")
}

// IndexHandler serves the chat page at the site root and 404s everything else.
func IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}
