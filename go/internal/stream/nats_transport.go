package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the NATS transport
type NATSConfig struct {
	URL           string
	Name          string
	Token         string
	UserID        string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default NATS configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "matchday-live",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSDialer connects to a NATS server carrying the live match subjects.
// Reconnects are handled by the client library.
type NATSDialer struct {
	config NATSConfig
}

// NewNATSDialer creates a dialer for config
func NewNATSDialer(config NATSConfig) *NATSDialer {
	return &NATSDialer{config: config}
}

// Subject maps a topic onto a NATS subject
func (d *NATSDialer) Subject(topic string) string {
	return DottedName(topic, d.config.UserID)
}

// Dial connects to NATS
func (d *NATSDialer) Dial(ctx context.Context) (Conn, error) {
	events := make(chan ConnEvent, 8)
	emit := func(ev ConnEvent) {
		select {
		case events <- ev:
		default:
		}
	}

	opts := []nats.Option{
		nats.Name(d.config.Name),
		nats.MaxReconnects(d.config.MaxReconnects),
		nats.ReconnectWait(d.config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
			emit(EventDisconnected)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
			emit(EventReconnected)
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			emit(EventLost)
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	if d.config.Token != "" {
		opts = append(opts, nats.Token(d.config.Token))
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(d.config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &natsConn{nc: nc, dialer: d, events: events}, nil
}

type natsConn struct {
	nc     *nats.Conn
	dialer *NATSDialer
	events chan ConnEvent
}

func (c *natsConn) Events() <-chan ConnEvent {
	return c.events
}

func (c *natsConn) Subscribe(topic string, deliver func([]byte)) (func() error, error) {
	subject := c.dialer.Subject(topic)
	sub, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		deliver(msg.Data)
	})
	if err != nil {
		if c.nc.IsClosed() {
			return nil, fmt.Errorf("subscribe %s: %w", subject, ErrNotConnected)
		}
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub.Unsubscribe, nil
}

func (c *natsConn) Close() error {
	c.nc.Close()
	return nil
}
