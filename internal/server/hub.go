// Package server coordinates client registration, frame routing, and
// connection cleanup for the chat relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/presence"
)

// ErrHubClosed is returned when a client is handed to a hub that has shut down.
var ErrHubClosed = errors.New("hub is shut down")

// Hub manages all WebSocket client connections and routes their frames.
//
// Every lifecycle event and inbound frame is handled by Run on a single
// goroutine, and each one is applied to the router as one step under stateMu.
// Hub is the router's Emitter: it hands encoded frames to client send
// buffers without blocking, and drops clients whose buffer is full once the
// current step is complete.
type Hub struct {
	clients    map[presence.ConnID]*Client
	inbound    chan InboundFrame
	register   chan *Client
	unregister chan *Client
	router     *chat.Router
	dropped    []*Client
	upgrader   websocket.Upgrader
	cfg        Config
	log        *slog.Logger
	mutex      sync.RWMutex
	stateMu    sync.Mutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub configured by cfg. A nil cfg uses the defaults.
// The returned Hub is ready to manage WebSocket connections once Run is started.
func NewHub(cfg *Config, log *slog.Logger) *Hub {
	if cfg == nil {
		cfg = NewConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[presence.ConnID]*Client),
		inbound:    make(chan InboundFrame),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		cfg:        *cfg,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.router = chat.NewRouter(presence.NewRegistry(), h, log)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     newOriginPolicy(cfg.AllowedOrigins, log).checkOrigin,
	}
	return h
}

// Register hands a new client to the hub. The hub starts the client's pumps.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// TypingCount returns the number of clients currently marked as typing.
func (h *Hub) TypingCount() int {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return h.router.TypingCount()
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, and inbound frames. It returns after Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("Received nil client registration; skipping")
				continue
			}
			h.attach(client)
			h.startPumps(client)

		case client := <-h.unregister:
			h.detach(client, "connection closed")

		case in := <-h.inbound:
			h.route(in)
		}
	}
}

func (h *Hub) submitInbound(in InboundFrame) bool {
	select {
	case h.inbound <- in:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) submitUnregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) startPumps(client *Client) {
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// step applies fn to the router as one atomic unit, then drops any client
// that could not keep up with the frames fn emitted.
func (h *Hub) step(fn func()) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	fn()
	h.removeDroppedClients()
}

func (h *Hub) attach(client *Client) {
	h.mutex.Lock()
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	client.log.Info("Client registered", "clients", clientCount)

	h.step(func() { h.router.Connect(client.id) })
}

func (h *Hub) detach(client *Client, reason string) {
	h.step(func() { h.disconnect(client, reason) })
}

func (h *Hub) route(in InboundFrame) {
	h.step(func() {
		if !h.isRegistered(in.Sender) {
			in.Sender.log.Debug("Dropping frame from unregistered client", "event", in.Frame.Event)
			return
		}
		if err := h.router.Dispatch(in.Sender.id, in.Frame); err != nil {
			in.Sender.log.Warn("Dropping frame", "error", err)
		}
	})
}

// disconnect removes client from the routing set and lets the router clean up
// after it. It runs at most once per client; later calls are no-ops.
// Callers must hold stateMu.
func (h *Hub) disconnect(client *Client, reason string) {
	h.mutex.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	clientCount := len(h.clients)
	h.mutex.Unlock()

	close(client.send)
	client.log.Info("Client unregistered", "reason", reason, "clients", clientCount)

	h.router.Disconnect(client.id)
}

// removeDroppedClients disconnects clients whose send buffer overflowed.
// Disconnecting may emit further frames and drop further clients, so the
// queue is drained until it stays empty. Callers must hold stateMu.
func (h *Hub) removeDroppedClients() {
	for len(h.dropped) > 0 {
		client := h.dropped[0]
		h.dropped = h.dropped[1:]
		h.disconnect(client, "send buffer full")
	}
}

func (h *Hub) isRegistered(client *Client) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	registered, ok := h.clients[client.id]
	return ok && registered == client
}

// EmitAll queues frame for every registered client.
func (h *Hub) EmitAll(frame chat.Frame) {
	h.deliver(frame, h.getClientSnapshot())
}

// EmitExcept queues frame for every registered client except one.
func (h *Hub) EmitExcept(except presence.ConnID, frame chat.Frame) {
	recipients := lo.Filter(h.getClientSnapshot(), func(client *Client, _ int) bool {
		return client.id != except
	})
	h.deliver(frame, recipients)
}

func (h *Hub) deliver(frame chat.Frame, recipients []*Client) {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.log.Error("Error encoding outbound frame", "event", frame.Event, "error", err)
		return
	}

	h.log.Debug("Broadcasting frame", "event", frame.Event, "recipients", len(recipients))

	for _, client := range recipients {
		if !h.safeSend(client, payload) {
			h.dropped = append(h.dropped, client)
		}
	}
}

// safeSend queues message for client without blocking. It reports false when
// the client is gone or its buffer is full.
func (h *Hub) safeSend(client *Client, message []byte) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client.id]; !exists {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// getClientSnapshot returns a thread-safe snapshot of all current clients
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return lo.Values(h.clients)
}

// shutdownClients disconnects every client and closes its socket.
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections...")

	h.stateMu.Lock()
	clients := h.getClientSnapshot()
	for _, client := range clients {
		h.disconnect(client, "server shutting down")
	}
	h.dropped = nil
	h.stateMu.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			client.closeConnection()
		}
	}

	h.log.Info("Closed client connections", "clients", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

// upgrade switches an HTTP request to the WebSocket protocol.
func (h *Hub) upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return h.upgrader.Upgrade(w, r, nil)
}
