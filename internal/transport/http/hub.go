package http

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

type event struct {
	Type string `json:"type"`
}

// Hub fans out per-user change notifications over websockets. Each connection
// gets a buffered send channel drained by one writer goroutine, so concurrent
// broadcasts never interleave writes on the same socket.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]map[chan event]struct{}
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[string]map[chan event]struct{}),
	}
}

// CollectionChanged notifies every connection of userID that their quiz
// collection changed on the server. Slow consumers drop events rather than
// block the broadcaster; the next event carries the same meaning.
func (h *Hub) CollectionChanged(userID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.conns[userID] {
		select {
		case ch <- event{Type: "collectionChanged"}:
		default:
		}
	}
}

// Subscribers reports how many connections userID currently holds.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

func (h *Hub) add(userID string, ch chan event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[chan event]struct{})
	}
	h.conns[userID][ch] = struct{}{}
}

func (h *Hub) remove(userID string, ch chan event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[userID], ch)
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan event, 16)
	h.add(userID, send)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// Reads are discarded; the socket exists for server-to-client events and
	// the read loop only detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	// Unregister before closing so a concurrent broadcast never hits a
	// closed channel.
	h.remove(userID, send)
	close(send)
	<-writerDone
}
