package feed

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"

	"token-sale-lab/internal/domain"
)

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, got %d", want, hub.SubscriberCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastPurchase(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dialHub(t, server)
	defer conn.Close()
	waitForSubscribers(t, hub, 1)

	hub.OnPurchase(&domain.PurchaseReceipt{
		ReceiptID: "r1",
		Buyer:     "buyer1",
		AmountIn:  uint256.NewInt(10),
		AmountOut: uint256.NewInt(200),
		Timestamp: 1000,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}

	if event.Type != "purchase" {
		t.Errorf("expected type purchase, got %s", event.Type)
	}
	if event.ID != "r1" || event.Actor != "buyer1" {
		t.Errorf("identity mismatch: %s / %s", event.ID, event.Actor)
	}
	if event.AmountIn != "10" || event.AmountOut != "200" {
		t.Errorf("amounts mismatch: in=%s out=%s", event.AmountIn, event.AmountOut)
	}
}

func TestHub_BroadcastSweep(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dialHub(t, server)
	defer conn.Close()
	waitForSubscribers(t, hub, 1)

	hub.OnSweep(&domain.SweepRecord{
		SweepID:   "s1",
		Caller:    "caller1",
		Amount:    uint256.NewInt(800),
		Timestamp: 2000,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}

	if event.Type != "sweep" {
		t.Errorf("expected type sweep, got %s", event.Type)
	}
	if event.AmountOut != "800" {
		t.Errorf("expected amount 800, got %s", event.AmountOut)
	}
	if event.AmountIn != "" {
		t.Errorf("sweep events carry no input, got %s", event.AmountIn)
	}
}

func TestHub_MultipleSubscribers(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	server := httptest.NewServer(hub)
	defer server.Close()

	conn1 := dialHub(t, server)
	defer conn1.Close()
	conn2 := dialHub(t, server)
	defer conn2.Close()
	waitForSubscribers(t, hub, 2)

	hub.Broadcast(Event{Type: "purchase", ID: "r1"})

	for i, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("subscriber %d read failed: %v", i, err)
		}
		if event.ID != "r1" {
			t.Errorf("subscriber %d: expected r1, got %s", i, event.ID)
		}
	}
}

func TestHub_ConcurrentBroadcast(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dialHub(t, server)
	defer conn.Close()
	waitForSubscribers(t, hub, 1)

	// Concurrent commits all broadcast to the same subscriber connection;
	// the per-connection writer must serialize the frames. Total stays
	// within the send buffer so nothing is dropped even if reads lag.
	const (
		goroutines         = 8
		eventsPerGoroutine = 2
	)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < eventsPerGoroutine; i++ {
				hub.Broadcast(Event{
					Type: "purchase",
					ID:   fmt.Sprintf("r-%d-%d", g, i),
				})
			}
		}(g)
	}

	seen := make(map[string]bool)
	for i := 0; i < goroutines*eventsPerGoroutine; i++ {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("read event %d: %v", i, err)
		}
		if event.Type != "purchase" || event.ID == "" {
			t.Fatalf("corrupt event: %+v", event)
		}
		if seen[event.ID] {
			t.Fatalf("duplicate event %s", event.ID)
		}
		seen[event.ID] = true
	}

	wg.Wait()
	if hub.SubscriberCount() != 1 {
		t.Errorf("subscriber dropped during concurrent broadcast")
	}
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	server := httptest.NewServer(hub)
	defer server.Close()

	// This subscriber never reads.
	conn := dialHub(t, server)
	defer conn.Close()
	waitForSubscribers(t, hub, 1)

	// Far more events than the per-subscriber backlog can hold. Broadcast
	// must never block; once the backlog overflows the subscriber is gone.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100000; i++ {
			hub.Broadcast(Event{Type: "purchase", ID: fmt.Sprintf("r%d", i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Broadcast blocked on a slow subscriber")
	}
	waitForSubscribers(t, hub, 0)
}

func TestHub_DroppedSubscriberRemoved(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dialHub(t, server)
	waitForSubscribers(t, hub, 1)

	conn.Close()
	waitForSubscribers(t, hub, 0)

	// Broadcasting to an empty hub is a no-op.
	hub.Broadcast(Event{Type: "sweep", ID: "s1"})
}
