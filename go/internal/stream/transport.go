package stream

import (
	"context"
	"errors"
)

var (
	// ErrNotConnected is returned when writing to a connection that is gone
	ErrNotConnected = errors.New("stream not connected")

	// ErrChannelClosed is returned by Subscribe after Channel.Close
	ErrChannelClosed = errors.New("channel closed")

	// ErrDuplicateSubscription is returned when a group already holds the topic
	ErrDuplicateSubscription = errors.New("topic already subscribed")

	// ErrGroupClosed is returned by Subscribe on a closed group
	ErrGroupClosed = errors.New("subscription group closed")
)

// ConnEvent reports a change in the state of a physical connection
type ConnEvent int

const (
	// EventDisconnected means the transport lost the link but is recovering on its own
	EventDisconnected ConnEvent = iota
	// EventReconnected means the transport recovered the link on its own
	EventReconnected
	// EventLost means the connection is dead and must be dialed again
	EventLost
)

func (e ConnEvent) String() string {
	switch e {
	case EventDisconnected:
		return "disconnected"
	case EventReconnected:
		return "reconnected"
	case EventLost:
		return "lost"
	default:
		return "unknown"
	}
}

// Message is one payload delivered on a topic
type Message struct {
	Topic string
	Body  []byte
}

// Handler consumes messages for one subscription. Handlers for the same
// subscription never run concurrently.
type Handler func(Message)

// Conn is an established connection to the push service
type Conn interface {
	// Subscribe registers deliver for topic and returns the function that
	// cancels the registration
	Subscribe(topic string, deliver func(body []byte)) (unsubscribe func() error, err error)
	// Events reports connection state changes
	Events() <-chan ConnEvent
	Close() error
}

// Dialer opens connections to the push service
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface
type DialerFunc func(ctx context.Context) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}
