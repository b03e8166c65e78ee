package events

import (
	"context"
	"time"
)

// Type names a domain event published after a successful write.
type Type string

const (
	TypeContactSubmitted Type = "contact.submitted"
	TypeVisitorTracked   Type = "visitor.tracked"
)

// Event is the envelope placed on the feed.
type Event struct {
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error {
	return nil
}
