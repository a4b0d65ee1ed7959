// Package feed broadcasts committed sale operations to WebSocket
// subscribers. The feed is observability only: it never changes sale state,
// and a slow or broken subscriber never blocks an operation.
package feed

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"token-sale-lab/internal/domain"
)

const (
	// DefaultWriteTimeout bounds a single subscriber write.
	DefaultWriteTimeout = 10 * time.Second

	// sendBuffer is the per-subscriber event backlog. A subscriber whose
	// backlog overflows is dropped.
	sendBuffer = 16
)

// Event is the JSON payload sent to subscribers.
type Event struct {
	Type      string `json:"type"` // "purchase" | "sweep"
	ID        string `json:"id"`
	Actor     string `json:"actor"`
	AmountIn  string `json:"amount_in,omitempty"`
	AmountOut string `json:"amount_out"`
	Timestamp int64  `json:"timestamp_ms"`
}

// Hub fans committed sale events out to connected WebSocket clients.
// Each connection has a single writer goroutine fed by a buffered channel;
// the websocket package allows at most one concurrent writer per connection.
type Hub struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	logger       *log.Logger

	// mu guards subs. Channel sends and closes both happen under it, so a
	// subscriber channel is never written after it is closed.
	mu   sync.Mutex
	subs map[*websocket.Conn]chan Event
}

// NewHub creates a new event hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The feed is read-only broadcast; origin checks are left to the
			// fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeTimeout: DefaultWriteTimeout,
		logger:       logger,
		subs:         make(map[*websocket.Conn]chan Event),
	}
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[feed] upgrade failed: %v", err)
		return
	}

	ch := make(chan Event, sendBuffer)
	h.mu.Lock()
	h.subs[conn] = ch
	h.mu.Unlock()

	go h.writeLoop(conn, ch)

	// Drain inbound frames so pings/pongs and close messages are processed;
	// subscribers do not send application data.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(conn)
				return
			}
		}
	}()
}

// writeLoop is the sole writer for one connection.
func (h *Hub) writeLoop(conn *websocket.Conn, ch chan Event) {
	defer conn.Close()
	for event := range ch {
		conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Printf("[feed] dropping subscriber: %v", err)
			h.remove(conn)
			for range ch {
				// Discard the backlog until the channel is closed.
			}
			return
		}
	}
}

// Broadcast queues an event for all connected subscribers. A subscriber with
// a full backlog is dropped rather than blocking the caller.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, ch := range h.subs {
		select {
		case ch <- event:
		default:
			h.logger.Printf("[feed] dropping slow subscriber")
			delete(h.subs, conn)
			close(ch)
		}
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, ch := range h.subs {
		delete(h.subs, conn)
		close(ch)
	}
}

// remove unregisters a connection. Closing its channel ends the write loop,
// which closes the connection.
func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[conn]; ok {
		delete(h.subs, conn)
		close(ch)
	}
}

// OnPurchase implements sale.Hook.
func (h *Hub) OnPurchase(r *domain.PurchaseReceipt) {
	h.Broadcast(Event{
		Type:      "purchase",
		ID:        r.ReceiptID,
		Actor:     r.Buyer.String(),
		AmountIn:  domain.FormatAmount(r.AmountIn),
		AmountOut: domain.FormatAmount(r.AmountOut),
		Timestamp: r.Timestamp,
	})
}

// OnSweep implements sale.Hook.
func (h *Hub) OnSweep(r *domain.SweepRecord) {
	h.Broadcast(Event{
		Type:      "sweep",
		ID:        r.SweepID,
		Actor:     r.Caller.String(),
		AmountOut: domain.FormatAmount(r.Amount),
		Timestamp: r.Timestamp,
	})
}
