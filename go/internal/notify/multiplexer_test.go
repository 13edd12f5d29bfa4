package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/matchday/go/internal/dispatch"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/stream"
)

// MockAPI is a mock for API
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) GetUnreadNotifications(ctx context.Context) ([]models.UserNotification, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserNotification), args.Error(1)
}

func (m *MockAPI) GetManagerProfile(ctx context.Context) (*models.ManagerProfile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ManagerProfile), args.Error(1)
}

func (m *MockAPI) MarkNotificationRead(ctx context.Context, id models.ID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAPI) MarkAllNotificationsRead(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type inlineTasks struct {
	mu    sync.Mutex
	names []string
}

func (s *inlineTasks) Submit(name string, run dispatch.TaskFunc) error {
	s.mu.Lock()
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

// runReversed runs the queued tasks newest first
func (s *heldTasks) runReversed() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()
	for i := len(tasks) - 1; i >= 0; i-- {
		_ = tasks[i].Run(context.Background())
	}
}

func newTestMultiplexer(api API) (*Multiplexer, *inlineTasks, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	tasks := &inlineTasks{}
	return NewMultiplexer(api, tasks, NewToaster(clock, 0), clock), tasks, clock
}

func TestMatchStartedShowsBanner(t *testing.T) {
	api := new(MockAPI)
	m, tasks, _ := newTestMultiplexer(api)

	m.Handle([]byte(`{"type":"MATCH_STARTED","matchId":42,"message":"Rovers v United has kicked off"}`))

	state := m.State()
	require.NotNil(t, state.Banner)
	assert.Equal(t, models.ID("42"), state.Banner.MatchID)
	assert.Equal(t, "Rovers v United has kicked off", state.Banner.Message)
	assert.Empty(t, state.Toasts)
	assert.Empty(t, tasks.submitted())
}

func TestMatchEndedClearsOnlyItsBanner(t *testing.T) {
	m, _, _ := newTestMultiplexer(new(MockAPI))

	m.Handle([]byte(`{"type":"MATCH_STARTED","matchId":42,"message":"kick off"}`))
	m.Handle([]byte(`{"type":"MATCH_ENDED","matchId":7,"message":"full time elsewhere"}`))
	require.NotNil(t, m.State().Banner)

	m.Handle([]byte(`{"type":"MATCH_ENDED","matchId":"42","message":"full time"}`))
	assert.Nil(t, m.State().Banner)

	// no banner to clear
	m.Handle([]byte(`{"type":"MATCH_ENDED","matchId":42}`))
	assert.Nil(t, m.State().Banner)
}

func TestOtherNotificationsRefreshAndToast(t *testing.T) {
	api := new(MockAPI)
	unread := []models.UserNotification{{ID: "3", Title: "Transfer", Message: "Bid accepted"}}
	api.On("GetUnreadNotifications", mock.Anything).Return(unread, nil).Once()
	api.On("GetManagerProfile", mock.Anything).Return(&models.ManagerProfile{Level: 4, CurrentXP: 30, XPForNextLevel: 120}, nil).Once()

	m, tasks, clock := newTestMultiplexer(api)
	m.Handle([]byte(`{"type":"TRANSFER_COMPLETED","message":"Bid accepted"}`))

	assert.Equal(t, []string{TaskRefreshNotifications, TaskRefreshProfile}, tasks.submitted())

	state := m.State()
	assert.Equal(t, 1, state.UnreadCount)
	require.NotNil(t, state.Profile)
	assert.Equal(t, 25, state.Profile.LevelProgress())
	require.Len(t, state.Toasts, 1)
	assert.Equal(t, "Bid accepted", state.Toasts[0].Message)

	clock.Advance(DefaultToastDuration)
	require.Eventually(t, func() bool { return len(m.State().Toasts) == 0 }, time.Second, 5*time.Millisecond)
	api.AssertExpectations(t)
}

func TestRefreshFailuresAreIndependent(t *testing.T) {
	api := new(MockAPI)
	api.On("GetUnreadNotifications", mock.Anything).Return(nil, errors.New("status 500")).Once()
	api.On("GetManagerProfile", mock.Anything).Return(&models.ManagerProfile{Level: 2}, nil).Once()

	m, _, _ := newTestMultiplexer(api)
	m.Handle([]byte(`{"type":"LEAGUE_UPDATE","message":"New table"}`))

	state := m.State()
	assert.Equal(t, 0, state.UnreadCount)
	require.NotNil(t, state.Profile)
	assert.Equal(t, 2, state.Profile.Level)
	assert.Len(t, state.Toasts, 1)
}

func TestStaleRefreshIsDropped(t *testing.T) {
	newer := []models.UserNotification{{ID: "2", Title: "Newer"}, {ID: "3", Title: "Newest"}}
	older := []models.UserNotification{{ID: "1", Title: "Older"}}

	api := new(MockAPI)
	// the later refresh answers first
	api.On("GetManagerProfile", mock.Anything).Return(&models.ManagerProfile{Level: 5}, nil).Once()
	api.On("GetUnreadNotifications", mock.Anything).Return(newer, nil).Once()
	api.On("GetManagerProfile", mock.Anything).Return(&models.ManagerProfile{Level: 4}, nil).Once()
	api.On("GetUnreadNotifications", mock.Anything).Return(older, nil).Once()

	tasks := &heldTasks{}
	clock := clockwork.NewFakeClock()
	m := NewMultiplexer(api, tasks, NewToaster(clock, 0), clock)

	m.Refresh()
	m.Refresh()
	tasks.runReversed()

	state := m.State()
	assert.Equal(t, newer, state.Unread)
	assert.Equal(t, 2, state.UnreadCount)
	require.NotNil(t, state.Profile)
	assert.Equal(t, 5, state.Profile.Level)
	api.AssertExpectations(t)
}

func TestHandleNeverPanics(t *testing.T) {
	api := new(MockAPI)
	api.On("GetUnreadNotifications", mock.Anything).Run(func(mock.Arguments) { panic("boom") })
	m := NewMultiplexer(api, &inlineTasks{}, nil, clockwork.NewFakeClock())

	assert.NotPanics(t, func() {
		m.Handle([]byte(`not json`))
		m.Handle([]byte(`{"type":"SOMETHING","message":"x"}`))
	})
	assert.Nil(t, m.State().Banner)
}

func TestClearBannerAndMarkRead(t *testing.T) {
	api := new(MockAPI)
	api.On("GetUnreadNotifications", mock.Anything).Return([]models.UserNotification{{ID: "1"}, {ID: "2"}}, nil)
	api.On("GetManagerProfile", mock.Anything).Return(&models.ManagerProfile{}, nil)
	api.On("MarkNotificationRead", mock.Anything, models.ID("1")).Return(nil).Once()
	api.On("MarkNotificationRead", mock.Anything, models.ID("9")).Return(errors.New("status 404")).Once()
	api.On("MarkAllNotificationsRead", mock.Anything).Return(nil).Once()

	m, _, _ := newTestMultiplexer(api)
	m.Handle([]byte(`{"type":"MATCH_STARTED","matchId":1,"message":"go"}`))
	m.ClearBanner()
	assert.Nil(t, m.State().Banner)

	m.Refresh()
	require.Equal(t, 2, m.State().UnreadCount)

	require.NoError(t, m.MarkRead(context.Background(), "1"))
	assert.Equal(t, []models.ID{"2"}, []models.ID{m.State().Unread[0].ID})
	assert.Error(t, m.MarkRead(context.Background(), "9"))
	assert.Equal(t, 1, m.State().UnreadCount)

	require.NoError(t, m.MarkAllRead(context.Background()))
	assert.Equal(t, 0, m.State().UnreadCount)
	api.AssertExpectations(t)
}

type queueConn struct {
	mu       sync.Mutex
	handlers map[string]func([]byte)
	closed   bool
}

func (c *queueConn) Subscribe(topic string, deliver func([]byte)) (func() error, error) {
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

func (c *queueConn) Events() <-chan stream.ConnEvent { return nil }

func (c *queueConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *queueConn) handler(topic string) func([]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers[topic]
}

func TestMultiplexerStartStop(t *testing.T) {
	conn := &queueConn{handlers: make(map[string]func([]byte))}
	channel := stream.NewChannel(stream.DialerFunc(func(context.Context) (stream.Conn, error) {
		return conn, nil
	}), stream.DefaultChannelConfig(), nil, nil)

	m, _, _ := newTestMultiplexer(new(MockAPI))
	require.NoError(t, m.Start(channel))
	require.NoError(t, m.Start(channel))
	assert.Equal(t, 1, channel.Refs())

	require.Eventually(t, func() bool { return conn.handler(stream.UserNotificationsTopic) != nil }, time.Second, 5*time.Millisecond)
	conn.handler(stream.UserNotificationsTopic)([]byte(`{"type":"MATCH_STARTED","matchId":5,"message":"kick off"}`))
	require.Eventually(t, func() bool { return m.State().Banner != nil }, time.Second, 5*time.Millisecond)

	m.Stop()
	m.Stop()
	assert.Equal(t, 0, channel.Refs())
	assert.Nil(t, conn.handler(stream.UserNotificationsTopic))
}
