package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"heavenly-backend/internal/domain"
	"github.com/gorilla/websocket"
)

func serveHub(t *testing.T, hub *Hub, rec domain.Recipient) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, rec)
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return srv, conn
}

func waitReachable(t *testing.T, hub *Hub, rec domain.Recipient) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.IsReachable(rec) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s never became reachable", rec.Key())
}

func TestHub_PushReachesConnectedClient(t *testing.T) {
	hub := NewHub(nil)
	rec := domain.UserRecipient("user-1")

	srv, conn := serveHub(t, hub, rec)
	defer srv.Close()
	defer conn.Close()

	waitReachable(t, hub, rec)

	hub.Push(rec, "orderStatusUpdated", map[string]string{"orderId": "order-1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Event != "orderStatusUpdated" {
		t.Fatalf("event = %q", env.Event)
	}
	payload, ok := env.Data.(map[string]interface{})
	if !ok || payload["orderId"] != "order-1" {
		t.Fatalf("data = %+v", env.Data)
	}
}

func TestHub_DisconnectedClientUnreachable(t *testing.T) {
	hub := NewHub(nil)
	rec := domain.UserRecipient("user-1")

	if hub.IsReachable(rec) {
		t.Fatal("nobody connected yet")
	}

	srv, conn := serveHub(t, hub, rec)
	defer srv.Close()

	waitReachable(t, hub, rec)

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.IsReachable(rec) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.IsReachable(rec) {
		t.Fatal("closed connection still counted as reachable")
	}
}

func TestHub_AdminsShareOneRoom(t *testing.T) {
	hub := NewHub(nil)
	admin := domain.AdminRecipient()

	srv, conn := serveHub(t, hub, admin)
	defer srv.Close()
	defer conn.Close()

	waitReachable(t, hub, admin)

	// A second admin connection lands in the same room.
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn2, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial second admin: %v", err)
	}
	defer conn2.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.rooms[admin.Key()])
		hub.mu.RUnlock()
		if n == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Push(admin, "newOrder", map[string]string{"orderId": "order-1"})

	for _, c := range []*websocket.Conn{conn, conn2} {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := c.ReadMessage(); err != nil {
			t.Fatalf("admin connection missed the event: %v", err)
		}
	}
}

func TestHub_OnConnectCallback(t *testing.T) {
	hub := NewHub(nil)
	rec := domain.UserRecipient("user-1")

	var mu sync.Mutex
	var connected []string
	hub.OnConnect(func(_ context.Context, r domain.Recipient) {
		mu.Lock()
		connected = append(connected, r.Key())
		mu.Unlock()
	})

	srv, conn := serveHub(t, hub, rec)
	defer srv.Close()
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(connected)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(connected) != 1 || connected[0] != "user-1" {
		t.Fatalf("callback calls = %v", connected)
	}
}
