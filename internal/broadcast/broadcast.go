// Package broadcast announces draft changes to interested subscribers.
// Subscriptions are keyed by draft id; the engine publishes without
// filtering by access rights, so transports must only subscribe viewers
// that currently pass the access policy.
package broadcast

import "encoding/json"

type EventType string

const (
	EventDraftUpdated   EventType = "draft-updated"
	EventDraftCommented EventType = "draft-commented"
)

// Event is one announcement about a draft. Payload is the full workspace
// snapshot for draft-updated and the new comment for draft-commented.
type Event struct {
	Type    EventType `json:"type"`
	DraftID string    `json:"draftId"`
	Payload any       `json:"payload,omitempty"`
}

// Encode renders the event as the JSON frame sent over transports.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Subscription is one open listener on a draft's event stream. Events are
// dropped, not queued unboundedly, when the listener falls behind.
type Subscription struct {
	C      <-chan Event
	cancel func()
}

// Cancel detaches the subscription and closes its channel.
func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Publisher is the side of the broker the draft service needs.
type Publisher interface {
	Publish(event Event)
}

// Broker is a full publish/subscribe channel for draft events.
type Broker interface {
	Publisher
	Subscribe(draftID string) *Subscription
	Close()
}
