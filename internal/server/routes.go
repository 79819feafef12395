// Package server wires HTTP handlers into a ServeMux for the chat relay via
// routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
// It sets up handlers for the chat page, health check, and WebSocket endpoint.
func SetupRoutes(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", IndexHandler)
	mux.HandleFunc("/healthz", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler(hub))
	return mux
}
