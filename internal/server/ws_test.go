package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// TestHub_broadcastReachesClient verifies a connected feed client
// receives a broadcast envelope.
func TestHub_broadcastReachesClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// The hub registers the client inside ServeHTTP; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Broadcast(EventLogConfirmed, map[string]interface{}{"street": "Elm Street"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Type != EventLogConfirmed || env.Data["street"] != "Elm Street" {
		t.Errorf("envelope = %+v", env)
	}
}

// TestHub_broadcastWithNoClients verifies broadcasting into an empty hub
// is a no-op, not a panic.
func TestHub_broadcastWithNoClients(t *testing.T) {
	NewHub().Broadcast(EventLogDeleted, map[string]interface{}{"timestamp": "t1"})
}

// TestHub_disconnectUnregisters verifies a closed client leaves the map
// and later broadcasts still work.
func TestHub_disconnectUnregisters(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never unregistered after close")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Broadcast(EventLogConfirmed, map[string]interface{}{"street": "Elm Street"})
}
