// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import "context"

// Well-known topics.
const (
	TopicStatus = "status"
	TopicTrack  = "track"
	TopicError  = "error"
)

// Message is an opaque event payload.
type Message interface{}

type Subscriber interface {
	// C returns a read-only message channel, closed on Close.
	C() <-chan Message
	Close() error
}

// Bus carries engine events to UI-side consumers.
type Bus interface {
	// Publish blocks until every subscriber accepted msg or ctx is done.
	Publish(ctx context.Context, topic string, msg Message) error
	// Offer never blocks; subscribers that are full miss msg.
	Offer(topic string, msg Message)
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}
