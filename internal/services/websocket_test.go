package services

import (
	"sync"
	"testing"
)

func TestBroadcastToUserDelivers(t *testing.T) {
	hub := NewHub()
	client := &Client{ID: 1, Role: "customer", Send: make(chan []byte, 1), Hub: hub}
	hub.clients[client] = true

	hub.BroadcastToUser(1, []byte("hello"))

	select {
	case msg := <-client.Send:
		if string(msg) != "hello" {
			t.Fatalf("unexpected message %q", msg)
		}
	default:
		t.Fatal("client should have received the broadcast")
	}

	// Messages for other users never reach this client.
	hub.BroadcastToUser(2, []byte("other"))
	select {
	case msg := <-client.Send:
		t.Fatalf("client received a message for another user: %q", msg)
	default:
	}
}

func TestBroadcastToUserEvictsStaleClients(t *testing.T) {
	hub := NewHub()
	// Unbuffered send channels with no reader: every broadcast finds the
	// buffer full and must drop the client.
	a := &Client{ID: 7, Role: "customer", Send: make(chan []byte), Hub: hub}
	b := &Client{ID: 7, Role: "customer", Send: make(chan []byte), Hub: hub}
	hub.clients[a] = true
	hub.clients[b] = true

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.BroadcastToUser(7, []byte("ping"))
		}()
	}
	wg.Wait()

	if n := hub.GetConnectedClients(); n != 0 {
		t.Fatalf("stale clients should be evicted, %d left", n)
	}

	// Eviction closed each send channel exactly once.
	for _, c := range []*Client{a, b} {
		select {
		case _, open := <-c.Send:
			if open {
				t.Fatal("evicted client's send channel should be closed")
			}
		default:
			t.Fatal("evicted client's send channel should be closed")
		}
	}
}

func TestEvictTwiceIsSafe(t *testing.T) {
	hub := NewHub()
	client := &Client{ID: 3, Role: "driver", Send: make(chan []byte), Hub: hub}
	hub.clients[client] = true

	hub.evict(client)
	hub.evict(client)

	if n := hub.GetConnectedClients(); n != 0 {
		t.Fatalf("expected empty hub, %d left", n)
	}
}
