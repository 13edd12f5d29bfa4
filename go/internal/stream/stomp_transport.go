package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// StompConfig holds configuration for the STOMP over WebSocket transport
type StompConfig struct {
	URL             string
	AccessToken     string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	SendBufferSize  int
	TopicPrefix     string
	UserQueuePrefix string
}

// DefaultStompConfig returns default STOMP configuration for url
func DefaultStompConfig(url string) StompConfig {
	return StompConfig{
		URL:             url,
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  512 * 1024,
		SendBufferSize:  64,
		TopicPrefix:     "/topic/",
		UserQueuePrefix: "/user/queue/",
	}
}

// StompDialer connects to a STOMP 1.2 broker over WebSocket
type StompDialer struct {
	config StompConfig
	ws     *websocket.Dialer
}

// NewStompDialer creates a dialer for config
func NewStompDialer(config StompConfig) *StompDialer {
	defaults := DefaultStompConfig(config.URL)
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = defaults.SendBufferSize
	}
	if config.TopicPrefix == "" {
		config.TopicPrefix = defaults.TopicPrefix
	}
	if config.UserQueuePrefix == "" {
		config.UserQueuePrefix = defaults.UserQueuePrefix
	}
	return &StompDialer{
		config: config,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
			Subprotocols:     []string{"v12.stomp"},
		},
	}
}

// Destination maps a topic onto a broker destination
func (d *StompDialer) Destination(topic string) string {
	if rest, ok := IsUserQueue(topic); ok {
		return d.config.UserQueuePrefix + rest
	}
	return d.config.TopicPrefix + topic
}

// Dial opens the WebSocket and completes the CONNECT handshake
func (d *StompDialer) Dial(ctx context.Context) (Conn, error) {
	header := http.Header{}
	if d.config.AccessToken != "" {
		header.Set("Authorization", "Bearer "+d.config.AccessToken)
	}

	ws, _, err := d.ws.DialContext(ctx, d.config.URL, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", d.config.URL, err)
	}

	if err := d.handshake(ctx, ws); err != nil {
		ws.Close()
		return nil, err
	}

	conn := &stompConn{
		ws:     ws,
		dialer: d,
		send:   make(chan []byte, d.config.SendBufferSize),
		events: make(chan ConnEvent, 4),
		subs:   make(map[string]func([]byte)),
		done:   make(chan struct{}),
	}
	go conn.writePump()
	go conn.readPump()

	log.Info().Str("url", d.config.URL).Msg("STOMP session established")
	return conn, nil
}

func (d *StompDialer) handshake(ctx context.Context, ws *websocket.Conn) error {
	host := d.config.URL
	if u, err := url.Parse(d.config.URL); err == nil {
		host = u.Hostname()
	}
	connect := NewFrame(CmdConnect,
		"accept-version", "1.2",
		"host", host,
		"heart-beat", "0,0",
	)
	if d.config.AccessToken != "" {
		connect.Headers["Authorization"] = "Bearer " + d.config.AccessToken
	}

	deadline := time.Now().Add(d.config.WriteTimeout)
	if dl, ok := ctx.Deadline(); ok {
		deadline = dl
	}
	ws.SetWriteDeadline(deadline)
	if err := ws.WriteMessage(websocket.TextMessage, connect.Encode()); err != nil {
		return fmt.Errorf("send CONNECT: %w", err)
	}

	ws.SetReadDeadline(deadline)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("await CONNECTED: %w", err)
		}
		frame, err := DecodeFrame(data)
		if err != nil {
			return fmt.Errorf("await CONNECTED: %w", err)
		}
		if frame == nil {
			continue
		}
		switch frame.Command {
		case CmdConnected:
			ws.SetReadDeadline(time.Time{})
			return nil
		case CmdError:
			return fmt.Errorf("broker rejected CONNECT: %s", frame.Header("message"))
		default:
			return fmt.Errorf("%w: unexpected %s during handshake", ErrMalformedFrame, frame.Command)
		}
	}
}

type stompConn struct {
	ws     *websocket.Conn
	dialer *StompDialer
	send   chan []byte
	events chan ConnEvent

	mu   sync.Mutex
	subs map[string]func([]byte)

	done      chan struct{}
	closeOnce sync.Once
	lostOnce  sync.Once
}

func (c *stompConn) Events() <-chan ConnEvent {
	return c.events
}

func (c *stompConn) Subscribe(topic string, deliver func([]byte)) (func() error, error) {
	id := uuid.NewString()

	c.mu.Lock()
	c.subs[id] = deliver
	c.mu.Unlock()

	frame := NewFrame(CmdSubscribe,
		"id", id,
		"destination", c.dialer.Destination(topic),
		"ack", "auto",
	)
	if err := c.write(frame); err != nil {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
		return nil, err
	}

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			err = c.write(NewFrame(CmdUnsubscribe, "id", id))
		})
		return err
	}, nil
}

func (c *stompConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *stompConn) write(frame *Frame) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	select {
	case c.send <- frame.Encode():
		return nil
	case <-c.done:
		return ErrNotConnected
	}
}

// lost reports the connection as dead exactly once
func (c *stompConn) lost(err error) {
	c.lostOnce.Do(func() {
		select {
		case <-c.done:
			return
		default:
		}
		c.Close()
		log.Warn().Err(err).Msg("STOMP connection lost")
		select {
		case c.events <- EventLost:
		default:
		}
	})
}

// writePump is the only writer on the socket
func (c *stompConn) writePump() {
	ticker := time.NewTicker(c.dialer.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.dialer.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.lost(fmt.Errorf("write frame: %w", err))
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.dialer.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.lost(fmt.Errorf("send ping: %w", err))
				return
			}

		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(c.dialer.config.WriteTimeout))
			_ = c.ws.WriteMessage(websocket.TextMessage, NewFrame(CmdDisconnect).Encode())
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *stompConn) readPump() {
	c.ws.SetReadLimit(c.dialer.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.dialer.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.dialer.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.lost(fmt.Errorf("read frame: %w", err))
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.dialer.config.ReadTimeout))

		frame, err := DecodeFrame(data)
		if err != nil {
			log.Warn().Err(err).Msg("Dropping undecodable STOMP frame")
			continue
		}
		if frame == nil {
			continue
		}

		switch frame.Command {
		case CmdMessage:
			c.route(frame)
		case CmdError:
			c.lost(fmt.Errorf("broker error: %s", strings.TrimSpace(frame.Header("message"))))
			return
		case CmdReceipt:
			log.Debug().Str("receipt", frame.Header("receipt-id")).Msg("STOMP receipt")
		default:
			log.Debug().Str("command", frame.Command).Msg("Ignoring STOMP frame")
		}
	}
}

func (c *stompConn) route(frame *Frame) {
	id := frame.Header("subscription")

	c.mu.Lock()
	deliver, ok := c.subs[id]
	c.mu.Unlock()

	if !ok {
		log.Debug().
			Str("subscription", id).
			Str("destination", frame.Header("destination")).
			Msg("Message for unknown subscription")
		return
	}
	deliver(frame.Body)
}
