package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return mockUserClient(hub, 1)
}

func mockUserClient(hub *Hub, userID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   nil,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)

	msg := NewMessage("task", "created", 42, map[string]any{"project_id": float64(1)})
	hub.Broadcast(msg)

	// Check both clients received the message
	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "task_created" {
				t.Errorf("expected type task_created, got %s", got.Type)
			}
			if got.Entity != "task" {
				t.Errorf("expected entity task, got %s", got.Entity)
			}
			if got.ID != 42 {
				t.Errorf("expected id 42, got %d", got.ID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	msg := NewMessage("goal", "updated", 1, nil)
	hub.Broadcast(msg)
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub)
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewMessage("test", "fill", int64(i), nil))
	}

	// This should drop the message, not panic or block
	hub.Broadcast(NewMessage("test", "dropped", 999, nil))

	// Drain to verify buffer was full
	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("expense", "updated", 5, nil)
	if msg.Type != "expense_updated" {
		t.Errorf("expected type expense_updated, got %s", msg.Type)
	}
	if msg.Entity != "expense" {
		t.Errorf("expected entity expense, got %s", msg.Entity)
	}
	if msg.Action != "updated" {
		t.Errorf("expected action updated, got %s", msg.Action)
	}
	if msg.ID != 5 {
		t.Errorf("expected id 5, got %d", msg.ID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	// Spawn goroutines that register, broadcast, and unregister concurrently
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub)
			hub.Register(c)
			hub.Broadcast(NewMessage("test", "concurrent", 0, nil))
			// Drain any messages
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestSendToUser(t *testing.T) {
	hub := NewHub(slog.Default())

	alice1 := mockUserClient(hub, 1)
	alice2 := mockUserClient(hub, 1)
	bob := mockUserClient(hub, 2)
	for _, c := range []*Client{alice1, alice2, bob} {
		hub.Register(c)
	}

	hub.SendToUser(1, NewMessage("notification", "created", 7, nil).WithData(map[string]any{"title": "Hi"}))

	for _, c := range []*Client{alice1, alice2} {
		select {
		case data := <-c.send:
			var got map[string]any
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got["type"] != "notification_created" {
				t.Errorf("type = %v, want notification_created", got["type"])
			}
			payload, _ := got["data"].(map[string]any)
			if payload["title"] != "Hi" {
				t.Errorf("data = %v", got["data"])
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	select {
	case <-bob.send:
		t.Error("other user must not receive the message")
	default:
	}
}

func TestBroadcastHonoursSubscriptions(t *testing.T) {
	hub := NewHub(slog.Default())

	all := mockUserClient(hub, 1)
	tasksOnly := mockUserClient(hub, 2)
	tasksOnly.subscribe([]string{"task"})
	hub.Register(all)
	hub.Register(tasksOnly)

	hub.Broadcast(NewMessage("project", "updated", 3, nil))
	hub.Broadcast(NewMessage("task", "created", 4, nil))

	if got := len(all.send); got != 2 {
		t.Errorf("unfiltered client got %d messages, want 2", got)
	}
	if got := len(tasksOnly.send); got != 1 {
		t.Fatalf("filtered client got %d messages, want 1", got)
	}
	var msg Message
	if err := json.Unmarshal(<-tasksOnly.send, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != "task_created" {
		t.Errorf("type = %s, want task_created", msg.Type)
	}

	// Direct messages ignore the filter.
	hub.SendToUser(2, NewMessage("notification", "created", 9, nil))
	if got := len(tasksOnly.send); got != 1 {
		t.Errorf("direct message filtered out")
	}

	tasksOnly.subscribe(nil)
	if !tasksOnly.wants("goal") {
		t.Error("empty subscription should restore the full stream")
	}
}

func TestUnregisterDropsEmptyUser(t *testing.T) {
	hub := NewHub(slog.Default())
	a := mockUserClient(hub, 5)
	b := mockUserClient(hub, 5)
	hub.Register(a)
	hub.Register(b)

	hub.Unregister(a)
	hub.SendToUser(5, NewMessage("notification", "read", 1, nil))
	if len(b.send) != 1 {
		t.Error("remaining connection should still receive messages")
	}

	hub.Unregister(b)
	hub.mu.RLock()
	_, ok := hub.users[5]
	hub.mu.RUnlock()
	if ok {
		t.Error("user entry should be removed with its last connection")
	}
}
