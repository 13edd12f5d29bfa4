package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/dispatch"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/stream"
)

// Task names used for logs and failure metrics
const (
	TaskRefreshNotifications = "refresh_notifications"
	TaskRefreshProfile       = "refresh_profile"
)

// API is the REST surface behind the notification badge
type API interface {
	GetUnreadNotifications(ctx context.Context) ([]models.UserNotification, error)
	GetManagerProfile(ctx context.Context) (*models.ManagerProfile, error)
	MarkNotificationRead(ctx context.Context, id models.ID) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// Submitter queues fire-and-forget work
type Submitter interface {
	Submit(name string, run dispatch.TaskFunc) error
}

// Channel is the shared stream connection as seen by the Multiplexer
type Channel interface {
	stream.Subscriber
	Acquire()
	Release()
}

// Banner announces a match that just kicked off. It stays until cleared
// by the user or by the end of that match.
type Banner struct {
	MatchID models.ID `json:"matchId"`
	Message string    `json:"message"`
	ShownAt time.Time `json:"shownAt"`
}

// State is a copy of everything the notification area renders
type State struct {
	Banner      *Banner                   `json:"banner,omitempty"`
	Toasts      []Toast                   `json:"toasts"`
	Unread      []models.UserNotification `json:"unread"`
	UnreadCount int                       `json:"unreadCount"`
	Profile     *models.ManagerProfile    `json:"profile,omitempty"`
}

// Multiplexer dispatches the per-user notification queue to the banner,
// the toasts and the unread badge
type Multiplexer struct {
	api     API
	tasks   Submitter
	toaster *Toaster
	clock   clockwork.Clock

	mu      sync.RWMutex
	banner  *Banner
	unread  []models.UserNotification
	profile *models.ManagerProfile

	// refreshes may finish out of order; only newer results are applied
	unreadSeq, unreadApplied   uint64
	profileSeq, profileApplied uint64

	channel Channel
	group   *stream.Group
}

// NewMultiplexer creates a multiplexer. Refreshes run on tasks.
func NewMultiplexer(api API, tasks Submitter, toaster *Toaster, clock clockwork.Clock) *Multiplexer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if toaster == nil {
		toaster = NewToaster(clock, DefaultToastDuration)
	}
	return &Multiplexer{
		api:     api,
		tasks:   tasks,
		toaster: toaster,
		clock:   clock,
	}
}

// Start subscribes to the user queue on channel
func (m *Multiplexer) Start(channel Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.group != nil {
		return nil
	}
	channel.Acquire()
	group := stream.NewGroup(channel)
	if err := group.Subscribe(stream.UserNotificationsTopic, func(msg stream.Message) {
		m.Handle(msg.Body)
	}); err != nil {
		channel.Release()
		return fmt.Errorf("subscribe to notifications: %w", err)
	}
	m.channel, m.group = channel, group

	log.Info().Msg("Notification multiplexer started")
	return nil
}

// Stop unsubscribes and drops the toasts. Safe to call more than once.
func (m *Multiplexer) Stop() {
	m.mu.Lock()
	group, channel := m.group, m.channel
	m.group, m.channel = nil, nil
	m.mu.Unlock()

	if group != nil {
		group.Close()
		channel.Release()
	}
	m.toaster.Stop()
}

// Handle processes one message from the user queue. It never panics and
// never returns an error; failures are logged.
func (m *Multiplexer) Handle(body []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Notification handler panicked")
		}
	}()

	var n models.PushNotification
	if err := json.Unmarshal(body, &n); err != nil {
		log.Warn().Err(err).Msg("Ignoring undecodable notification")
		return
	}

	switch n.Type {
	case models.NotificationMatchStarted:
		m.mu.Lock()
		m.banner = &Banner{MatchID: n.MatchID, Message: n.Message, ShownAt: m.clock.Now()}
		m.mu.Unlock()
		log.Info().Str("match_id", n.MatchID.String()).Msg("Match started banner shown")

	case models.NotificationMatchEnded:
		m.mu.Lock()
		cleared := m.banner != nil && m.banner.MatchID == n.MatchID
		if cleared {
			m.banner = nil
		}
		m.mu.Unlock()
		log.Info().Str("match_id", n.MatchID.String()).Bool("cleared", cleared).Msg("Match ended")

	default:
		m.Refresh()
		m.toaster.Show(n.Message, ToastInfo)
		log.Debug().Str("type", string(n.Type)).Msg("Notification received")
	}
}

// Refresh schedules independent reloads of the unread list and the profile
func (m *Multiplexer) Refresh() {
	m.mu.Lock()
	m.unreadSeq++
	m.profileSeq++
	unreadSeq, profileSeq := m.unreadSeq, m.profileSeq
	m.mu.Unlock()

	err := m.tasks.Submit(TaskRefreshNotifications, func(ctx context.Context) error {
		return m.refreshNotifications(ctx, unreadSeq)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Could not schedule notification refresh")
	}
	err = m.tasks.Submit(TaskRefreshProfile, func(ctx context.Context) error {
		return m.refreshProfile(ctx, profileSeq)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Could not schedule profile refresh")
	}
}

func (m *Multiplexer) refreshNotifications(ctx context.Context, seq uint64) error {
	unread, err := m.api.GetUnreadNotifications(ctx)
	if err != nil {
		return fmt.Errorf("refresh notifications: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq < m.unreadApplied {
		log.Debug().Uint64("seq", seq).Msg("Dropping stale notification refresh")
		return nil
	}
	m.unreadApplied = seq
	m.unread = unread
	return nil
}

func (m *Multiplexer) refreshProfile(ctx context.Context, seq uint64) error {
	profile, err := m.api.GetManagerProfile(ctx)
	if err != nil {
		return fmt.Errorf("refresh profile: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq < m.profileApplied {
		log.Debug().Uint64("seq", seq).Msg("Dropping stale profile refresh")
		return nil
	}
	m.profileApplied = seq
	m.profile = profile
	return nil
}

// ClearBanner hides the banner
func (m *Multiplexer) ClearBanner() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banner = nil
}

// DismissToast hides a toast before it expires
func (m *Multiplexer) DismissToast(id string) bool {
	return m.toaster.Dismiss(id)
}

// MarkRead marks one notification read and drops it from the unread list
func (m *Multiplexer) MarkRead(ctx context.Context, id models.ID) error {
	if err := m.api.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.unread[:0:0]
	for _, n := range m.unread {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	m.unread = kept
	return nil
}

// MarkAllRead marks every notification read
func (m *Multiplexer) MarkAllRead(ctx context.Context) error {
	if err := m.api.MarkAllNotificationsRead(ctx); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.unread = nil
	return nil
}

// State returns a copy of the notification area
func (m *Multiplexer) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state := State{
		Toasts:      m.toaster.Active(),
		Unread:      append([]models.UserNotification(nil), m.unread...),
		UnreadCount: len(m.unread),
	}
	if m.banner != nil {
		banner := *m.banner
		state.Banner = &banner
	}
	if m.profile != nil {
		profile := *m.profile
		state.Profile = &profile
	}
	return state
}
