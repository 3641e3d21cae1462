package broadcast

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestBroker(t *testing.T) *RedisBroker {
	t.Helper()
	s := miniredis.RunT(t)
	broker, err := NewRedisBroker("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis broker: %v", err)
	}
	t.Cleanup(broker.Close)
	return broker
}

func TestRedisBrokerRoundTrip(t *testing.T) {
	broker := setupTestBroker(t)

	sub := broker.Subscribe("draft-1")
	defer sub.Cancel()

	// Give the subscriber goroutine a moment to register with the server.
	time.Sleep(50 * time.Millisecond)

	broker.Publish(Event{
		Type:    EventDraftCommented,
		DraftID: "draft-1",
		Payload: map[string]any{"body": "Looks good"},
	})

	select {
	case event := <-sub.C:
		if event.Type != EventDraftCommented {
			t.Fatalf("expected %q, got %q", EventDraftCommented, event.Type)
		}
		if event.DraftID != "draft-1" {
			t.Fatalf("expected draft-1, got %q", event.DraftID)
		}
		payload, ok := event.Payload.(map[string]any)
		if !ok {
			t.Fatalf("expected decoded payload map, got %T", event.Payload)
		}
		if payload["body"] != "Looks good" {
			t.Fatalf("unexpected payload: %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestRedisBrokerChannelIsolation(t *testing.T) {
	broker := setupTestBroker(t)

	sub := broker.Subscribe("draft-2")
	defer sub.Cancel()
	time.Sleep(50 * time.Millisecond)

	broker.Publish(Event{Type: EventDraftUpdated, DraftID: "draft-1"})

	select {
	case event := <-sub.C:
		t.Fatalf("subscriber for draft-2 received %v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNewRedisBrokerRejectsBadURL(t *testing.T) {
	if _, err := NewRedisBroker("not-a-url"); err == nil {
		t.Fatal("expected error for invalid redis url")
	}
}
