package stream

import (
	"fmt"
	"sort"
	"sync"
)

// Subscriber is the part of Channel a Group needs
type Subscriber interface {
	Subscribe(topic string, handler Handler) (*Subscription, error)
}

// Group holds the subscriptions owned by one view. At most one
// subscription per topic is allowed, and all of them close together.
type Group struct {
	channel Subscriber

	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool
}

// NewGroup creates an empty group on channel
func NewGroup(channel Subscriber) *Group {
	return &Group{
		channel: channel,
		subs:    make(map[string]*Subscription),
	}
}

// Subscribe adds a subscription for topic
func (g *Group) Subscribe(topic string, handler Handler) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrGroupClosed
	}
	if _, exists := g.subs[topic]; exists {
		return fmt.Errorf("%s: %w", topic, ErrDuplicateSubscription)
	}

	sub, err := g.channel.Subscribe(topic, handler)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	g.subs[topic] = sub
	return nil
}

// Topics returns the active topics in sorted order
func (g *Group) Topics() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	topics := make([]string, 0, len(g.subs))
	for topic := range g.subs {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Close cancels every subscription. Safe to call more than once.
func (g *Group) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	subs := g.subs
	g.subs = make(map[string]*Subscription)
	g.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
