package broadcast

import (
	"testing"
	"time"
)

func TestChannelBrokerSubscribeUnsubscribe(t *testing.T) {
	b := NewChannelBroker()
	defer b.Close()

	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers")
	}
	sub := b.Subscribe("draft-1")
	if b.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber")
	}
	sub.Cancel()
	// Cancel is asynchronous with respect to the loop only through the
	// channel handshake, so the count is already settled here.
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after cancel")
	}
}

func TestChannelBrokerDeliversToDraftSubscribers(t *testing.T) {
	b := NewChannelBroker()
	defer b.Close()

	sub := b.Subscribe("draft-1")
	defer sub.Cancel()

	b.Publish(Event{Type: EventDraftUpdated, DraftID: "draft-1", Payload: map[string]string{"title": "Chapter One"}})

	select {
	case event := <-sub.C:
		if event.Type != EventDraftUpdated {
			t.Fatalf("expected %q, got %q", EventDraftUpdated, event.Type)
		}
		if event.DraftID != "draft-1" {
			t.Fatalf("expected draft-1, got %q", event.DraftID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestChannelBrokerIsolatesDrafts(t *testing.T) {
	b := NewChannelBroker()
	defer b.Close()

	other := b.Subscribe("draft-2")
	defer other.Cancel()

	b.Publish(Event{Type: EventDraftCommented, DraftID: "draft-1"})

	select {
	case event := <-other.C:
		t.Fatalf("subscriber for draft-2 received %v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChannelBrokerCloseClosesSubscribers(t *testing.T) {
	b := NewChannelBroker()
	sub := b.Subscribe("draft-1")
	b.Close()

	select {
	case _, ok := <-sub.C:
		if ok {
			t.Fatal("expected closed channel after broker close")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	// Publishing after close must not panic or block.
	b.Publish(Event{Type: EventDraftUpdated, DraftID: "draft-1"})
}
