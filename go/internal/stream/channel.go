package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/metrics"
)

// ChannelConfig holds reconnect and delivery settings
type ChannelConfig struct {
	ReconnectDelay time.Duration
	// MaxReconnects bounds consecutive failed dials; negative means unbounded
	MaxReconnects  int
	ConnectTimeout time.Duration
	MailboxSize    int
}

// DefaultChannelConfig returns sensible defaults
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		ReconnectDelay: 5 * time.Second,
		MaxReconnects:  -1,
		ConnectTimeout: 10 * time.Second,
		MailboxSize:    256,
	}
}

// Channel is the single shared connection to the push service. Views
// Acquire it while active and Release it on teardown; the connection is
// open exactly while at least one reference is held.
type Channel struct {
	dialer  Dialer
	config  ChannelConfig
	clock   clockwork.Clock
	metrics metrics.Collector

	mu       sync.Mutex
	refs     int
	closed   bool
	conn     Conn
	cancel   context.CancelFunc
	loopDone chan struct{}
	subs     map[*Subscription]struct{}

	listenerMu sync.Mutex
	listeners  map[int]func(bool)
	nextID     int

	connected atomic.Bool
}

// NewChannel creates an idle channel. Nothing is dialed until Acquire.
func NewChannel(dialer Dialer, config ChannelConfig, clock clockwork.Clock, collector metrics.Collector) *Channel {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	if config.MailboxSize <= 0 {
		config.MailboxSize = DefaultChannelConfig().MailboxSize
	}
	return &Channel{
		dialer:    dialer,
		config:    config,
		clock:     clock,
		metrics:   collector,
		subs:      make(map[*Subscription]struct{}),
		listeners: make(map[int]func(bool)),
	}
}

// Acquire takes a reference, starting the connection when it is the first
func (c *Channel) Acquire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.refs++
	if c.refs == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.loopDone = make(chan struct{})
		go c.run(ctx, c.loopDone)
	}
}

// Release drops a reference, deactivating the connection when it was the last.
// Releasing an idle channel is a no-op.
func (c *Channel) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs == 0 {
		return
	}
	c.refs--
	if c.refs == 0 && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Refs returns the number of held references
func (c *Channel) Refs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs
}

// Connected reports whether the physical connection is up
func (c *Channel) Connected() bool {
	return c.connected.Load()
}

// OnConnectionChange registers fn to be called with the new state on every
// connection change. The returned function removes the listener.
func (c *Channel) OnConnectionChange(fn func(connected bool)) (remove func()) {
	c.listenerMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.listenerMu.Unlock()

	return func() {
		c.listenerMu.Lock()
		delete(c.listeners, id)
		c.listenerMu.Unlock()
	}
}

// Subscribe registers handler for topic. The subscription survives
// reconnects and is bound to the connection whenever one is up.
func (c *Channel) Subscribe(topic string, handler Handler) (*Subscription, error) {
	sub := &Subscription{
		topic:   topic,
		kind:    TopicKind(topic),
		handler: handler,
		channel: c,
		mailbox: make(chan Message, c.config.MailboxSize),
		quit:    make(chan struct{}),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrChannelClosed
	}
	c.subs[sub] = struct{}{}
	go sub.deliverLoop()

	if c.conn != nil {
		c.bind(c.conn, sub)
	}
	return sub, nil
}

// Close tears down the connection and every subscription regardless of
// references. The channel cannot be reused afterwards.
func (c *Channel) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := make([]*Subscription, 0, len(c.subs))
	for sub := range c.subs {
		subs = append(subs, sub)
	}
	cancel, done := c.cancel, c.loopDone
	c.cancel = nil
	c.refs = 0
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for stream shutdown: %w", ctx.Err())
	}
}

// run dials, serves and redials until ctx is cancelled or the retry budget is spent
func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	failures := 0
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			log.Warn().Err(err).Int("attempt", failures).Msg("Failed to connect to live stream")
		} else {
			failures = 0
			if !c.attach(ctx, conn) {
				_ = conn.Close()
				return
			}
			lost := c.watch(ctx, conn)
			c.detach(conn)
			if !lost {
				return
			}
			log.Warn().Msg("Live stream connection lost")
		}

		if c.config.MaxReconnects >= 0 && failures > c.config.MaxReconnects {
			log.Error().Int("attempts", failures).Msg("Giving up on live stream after repeated failures")
			return
		}

		c.metrics.RecordReconnect()
		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(c.config.ReconnectDelay):
		}
	}
}

func (c *Channel) dial(ctx context.Context) (Conn, error) {
	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}
	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial live stream: %w", err)
	}
	return conn, nil
}

// attach makes conn current and binds every known subscription to it
func (c *Channel) attach(ctx context.Context, conn Conn) bool {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	for sub := range c.subs {
		c.bind(conn, sub)
	}
	count := len(c.subs)
	c.mu.Unlock()

	log.Info().Int("subscriptions", count).Msg("Live stream connected")
	c.setConnected(true)
	return true
}

// watch blocks until the connection is lost (true) or ctx ends (false)
func (c *Channel) watch(ctx context.Context, conn Conn) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-conn.Events():
			if !ok {
				return true
			}
			switch ev {
			case EventDisconnected:
				log.Warn().Msg("Live stream disconnected, transport is recovering")
				c.setConnected(false)
			case EventReconnected:
				log.Info().Msg("Live stream transport recovered")
				c.metrics.RecordReconnect()
				c.setConnected(true)
			case EventLost:
				return true
			}
		}
	}
}

// detach drops conn. A newer connection attached in the meantime is left alone.
func (c *Channel) detach(conn Conn) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	for sub := range c.subs {
		if sub.boundTo == conn {
			sub.boundTo, sub.unsubscribe = nil, nil
		}
	}
	c.mu.Unlock()

	if current {
		c.setConnected(false)
	}
	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Msg("Error closing live stream connection")
	}
}

// bind must be called with c.mu held
func (c *Channel) bind(conn Conn, sub *Subscription) {
	unsubscribe, err := conn.Subscribe(sub.topic, sub.enqueue)
	if err != nil {
		log.Error().Err(err).Str("topic", sub.topic).Msg("Failed to subscribe")
		return
	}
	sub.boundTo, sub.unsubscribe = conn, unsubscribe
}

func (c *Channel) remove(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.subs, sub)
	if sub.unsubscribe != nil {
		if err := sub.unsubscribe(); err != nil {
			log.Debug().Err(err).Str("topic", sub.topic).Msg("Failed to unsubscribe")
		}
		sub.boundTo, sub.unsubscribe = nil, nil
	}
}

func (c *Channel) setConnected(connected bool) {
	if c.connected.Swap(connected) == connected {
		return
	}
	c.metrics.SetConnected(connected)

	c.listenerMu.Lock()
	listeners := make([]func(bool), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.listenerMu.Unlock()

	for _, fn := range listeners {
		fn(connected)
	}
}

// Subscription is one topic registration on a Channel. Messages are handed
// to the handler one at a time in arrival order.
type Subscription struct {
	topic   string
	kind    string
	handler Handler
	channel *Channel

	mailbox chan Message
	quit    chan struct{}
	closed  atomic.Bool
	once    sync.Once

	// guarded by channel.mu
	boundTo     Conn
	unsubscribe func() error
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() string {
	return s.topic
}

// Close cancels the subscription. No handler call starts after Close returns.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.quit)
		s.channel.remove(s)
	})
}

func (s *Subscription) enqueue(body []byte) {
	if s.closed.Load() {
		s.channel.metrics.RecordDroppedMessage(s.kind)
		return
	}
	select {
	case s.mailbox <- Message{Topic: s.topic, Body: body}:
	case <-s.quit:
		s.channel.metrics.RecordDroppedMessage(s.kind)
	}
}

func (s *Subscription) deliverLoop() {
	for {
		select {
		case <-s.quit:
			return
		case msg := <-s.mailbox:
			if s.closed.Load() {
				return
			}
			s.channel.metrics.RecordMessage(s.kind)
			s.invoke(msg)
		}
	}
}

func (s *Subscription) invoke(msg Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("topic", s.topic).Msg("Message handler panicked")
		}
	}()
	s.handler(msg)
}
