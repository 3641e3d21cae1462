package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBroker fans events out over Redis pub/sub so that subscribers on
// other instances see them too. One Redis channel per draft.
type RedisBroker struct {
	client *redis.Client
	prefix string
}

// NewRedisBroker connects to Redis and verifies the connection.
func NewRedisBroker(redisURL string) (*RedisBroker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisBrokerWithClient(client), nil
}

// NewRedisBrokerWithClient creates a broker from an existing Redis client.
func NewRedisBrokerWithClient(client *redis.Client) *RedisBroker {
	return &RedisBroker{
		client: client,
		prefix: "draft-events:",
	}
}

func (b *RedisBroker) channel(draftID string) string {
	return b.prefix + draftID
}

// Publish sends the event to the draft's Redis channel. Delivery problems
// are logged, not surfaced; the mutation that triggered the event has
// already committed.
func (b *RedisBroker) Publish(event Event) {
	payload, err := event.Encode()
	if err != nil {
		log.Printf("broadcast: encode event for draft %s: %v", event.DraftID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel(event.DraftID), payload).Err(); err != nil {
		log.Printf("broadcast: publish to %s: %v", b.channel(event.DraftID), err)
	}
}

// Subscribe opens a Redis subscription on the draft's channel and decodes
// incoming frames into events.
func (b *RedisBroker) Subscribe(draftID string) *Subscription {
	pubsub := b.client.Subscribe(context.Background(), b.channel(draftID))
	ch := make(chan Event, 64)

	go func() {
		defer close(ch)
		for msg := range pubsub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("broadcast: decode event on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case ch <- event:
			default:
				// Listener buffer full; drop to keep the reader loop alive.
			}
		}
	}()

	return &Subscription{
		C:      ch,
		cancel: func() { _ = pubsub.Close() },
	}
}

func (b *RedisBroker) Close() {
	_ = b.client.Close()
}
