package bus

import "context"

// Message is one fragment on the wire. ID is the publisher's id, stable across
// redeliveries; Key groups messages that should land on the same partition.
type Message struct {
	ID   string
	Key  string
	Data []byte
}

// Handler returns nil to acknowledge; an error asks for redelivery.
type Handler func(ctx context.Context, m *Message) error

type Publisher interface {
	Publish(ctx context.Context, m *Message) error
}

// Subscriber delivers at least once and blocks until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, h Handler) error
}

type Bus interface {
	Publisher
	Subscriber
	Close() error
}
