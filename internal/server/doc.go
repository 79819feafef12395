// Package server implements the WebSocket channel manager and HTTP surface of
// the chat relay.
//
// The implementation is organized into specialized files for configuration, hub
// management, clients, routing, and HTTP handlers. The hub owns the chat
// router; typing state only changes on the hub goroutine.
package server
