package livematch

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/mcdev12/matchday/go/internal/dispatch"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/stream"
)

// MockAPI is a mock for API
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) GetLiveMatch(ctx context.Context, matchID models.ID) (*models.LiveMatchSnapshot, error) {
	args := m.Called(ctx, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LiveMatchSnapshot), args.Error(1)
}

func (m *MockAPI) JoinLiveMatch(ctx context.Context, matchID models.ID) error {
	args := m.Called(ctx, matchID)
	return args.Error(0)
}

func (m *MockAPI) LeaveLiveMatch(ctx context.Context, matchID models.ID) error {
	args := m.Called(ctx, matchID)
	return args.Error(0)
}

// inlineTasks runs every task immediately on the caller's goroutine
type inlineTasks struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (s *inlineTasks) Submit(name string, run dispatch.TaskFunc) error {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return s.err
	}
	s.names = append(s.names, name)
	s.mu.Unlock()

	_ = run(context.Background())
	return nil
}

func (s *inlineTasks) submitted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

// heldTasks queues tasks until the test runs them
type heldTasks struct {
	mu    sync.Mutex
	tasks []dispatch.Task
}

func (s *heldTasks) Submit(name string, run dispatch.TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, dispatch.Task{Name: name, Run: run})
	return nil
}

func (s *heldTasks) run(name string) {
	s.mu.Lock()
	var task *dispatch.Task
	for i := range s.tasks {
		if s.tasks[i].Name == name {
			task = &s.tasks[i]
			break
		}
	}
	s.mu.Unlock()
	if task != nil {
		_ = task.Run(context.Background())
	}
}

type testConn struct {
	mu       sync.Mutex
	handlers map[string]func([]byte)
	events   chan stream.ConnEvent
	closed   bool
}

func (c *testConn) Subscribe(topic string, deliver func([]byte)) (func() error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = deliver
	return func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, topic)
		return nil
	}, nil
}

func (c *testConn) Events() <-chan stream.ConnEvent { return c.events }

func (c *testConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *testConn) publish(topic, body string) bool {
	c.mu.Lock()
	h := c.handlers[topic]
	c.mu.Unlock()
	if h == nil {
		return false
	}
	h([]byte(body))
	return true
}

func (c *testConn) subscribed(topics ...string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		if c.handlers[topic] == nil {
			return false
		}
	}
	return true
}

func (c *testConn) topicCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

func (c *testConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type testDialer struct {
	mu    sync.Mutex
	conns []*testConn
}

func (d *testDialer) Dial(ctx context.Context) (stream.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	conn := &testConn{handlers: make(map[string]func([]byte)), events: make(chan stream.ConnEvent, 4)}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *testDialer) last() *testConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *testDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}
