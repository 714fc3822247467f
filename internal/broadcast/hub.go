// Package broadcast fans decision and trade events out to dashboard
// clients. Delivery is at-most-once and best-effort: slow or closed
// clients are dropped, and publishing never blocks the trading pipeline.
package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"agent-trader/internal/logger"
	"agent-trader/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub is a websocket fan-out for pipeline events.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	events  chan []byte
	done    chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: map[*websocket.Conn]bool{},
		events:  make(chan []byte, 64),
		done:    make(chan struct{}),
	}
}

// Run pumps queued events to every connected client until Close.
func (h *Hub) Run() {
	for {
		select {
		case msg := <-h.events:
			h.mu.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
			}
			h.clients = map[*websocket.Conn]bool{}
			h.mu.Unlock()
			return
		}
	}
}

// Publish queues an event for fan-out. A full queue drops the event
// rather than stalling the caller.
func (h *Hub) Publish(ctx context.Context, ev types.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		logger.Warn(ctx, "Failed to marshal broadcast event", "event_id", ev.ID, "error", err)
		return
	}
	select {
	case h.events <- msg:
	default:
		logger.Debug(ctx, "Broadcast queue full, event dropped", "event_id", ev.ID, "type", ev.Type)
	}
}

// Close stops the pump and disconnects all clients.
func (h *Hub) Close() {
	close(h.done)
}

// Handler upgrades incoming connections and registers them.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn(r.Context(), "Websocket upgrade failed", "error", err)
			return
		}
		h.mu.Lock()
		h.clients[conn] = true
		h.mu.Unlock()
		logger.Info(r.Context(), "Broadcast client connected", "remote", conn.RemoteAddr().String())
	}
}

// Serve starts an HTTP server exposing the hub at /ws. Returns the server
// so the caller can shut it down.
func (h *Hub) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(context.Background(), "Broadcast server stopped", "error", err)
		}
	}()
	return srv
}
