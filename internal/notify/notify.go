// Package notify delivers owner notifications for events the engine does
// not own, such as a collaborator commenting on a draft. Delivery and
// persistence are the sink's responsibility.
package notify

import (
	"context"
	"log"
	"time"
)

// Notification is the structured record handed to a sink.
type Notification struct {
	Type      string    `json:"type"`
	ActorID   string    `json:"actorId"`
	SubjectID string    `json:"subjectId"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sink receives notifications addressed to a user.
type Sink interface {
	Notify(ctx context.Context, recipientID string, n Notification) error
}

// LogSink writes notifications to the process log. It is the default when
// no delivery channel is configured.
type LogSink struct{}

func (LogSink) Notify(_ context.Context, recipientID string, n Notification) error {
	log.Printf("notify: %s -> %s: %s (subject %s)", n.ActorID, recipientID, n.Summary, n.SubjectID)
	return nil
}
