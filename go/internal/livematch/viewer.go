package livematch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/metrics"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/stream"
)

var (
	// ErrMatchUnavailable is returned by Open when the snapshot cannot be loaded
	ErrMatchUnavailable = errors.New("match not found")

	// ErrViewerClosed is returned by Open on a viewer that was closed
	ErrViewerClosed = errors.New("viewer closed")

	// ErrAlreadyOpened is returned by a second call to Open
	ErrAlreadyOpened = errors.New("viewer already opened")
)

// SnapshotAPI fetches the authoritative state of a live match
type SnapshotAPI interface {
	GetLiveMatch(ctx context.Context, matchID models.ID) (*models.LiveMatchSnapshot, error)
}

// API is the REST surface a Viewer needs
type API interface {
	SnapshotAPI
	SpectatorAPI
}

// Channel is the shared stream connection as seen by a Viewer
type Channel interface {
	stream.Subscriber
	Acquire()
	Release()
	Connected() bool
	OnConnectionChange(fn func(connected bool)) (remove func())
}

// Status is the lifecycle state of a Viewer
type Status int

const (
	StatusLoading Status = iota
	StatusLive
	StatusUnavailable
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLive:
		return "live"
	case StatusUnavailable:
		return "unavailable"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ChangeKind says which part of the view changed
type ChangeKind int

const (
	ChangeStatus ChangeKind = iota
	ChangeSession
	ChangeEvent
	ChangeConnection
)

// Change is passed to OnChange listeners after the view was updated
type Change struct {
	Kind   ChangeKind
	Fields []string
	Event  *models.MatchEvent
}

// ViewerConfig holds per-view settings
type ViewerConfig struct {
	MaxRetainedEvents int
}

// ViewState is a consistent copy of everything a view renders
type ViewState struct {
	MatchID       models.ID            `json:"matchId"`
	Status        Status               `json:"status"`
	Connected     bool                 `json:"connected"`
	Session       *models.MatchSession `json:"session,omitempty"`
	Events        []models.MatchEvent  `json:"events"`
	TotalEvents   int                  `json:"totalEvents"`
	Goals         int                  `json:"goals"`
	Cards         int                  `json:"cards"`
	Substitutions int                  `json:"substitutions"`
	Error         string               `json:"error,omitempty"`
}

// Viewer keeps the local view of one live match in step with the server.
//
// Open subscribes to the match topics while the snapshot is in flight and
// holds back anything that arrives before it. Once the snapshot is applied
// the held messages are replayed in arrival order, so no update published
// between the fetch and the subscription is lost.
type Viewer struct {
	matchID   models.ID
	api       API
	channel   Channel
	metrics   metrics.Collector
	spectator *Spectator

	mu       sync.RWMutex
	opened   bool
	status   Status
	session  models.MatchSession
	events   *EventLog
	pending  []stream.Message
	appended []models.MatchEvent
	loadErr  error

	group              *stream.Group
	removeConnListener func()
	teardownOnce       sync.Once
	closeOnce          sync.Once

	listenerMu sync.Mutex
	listeners  map[int]func(Change)
	nextID     int
}

// NewViewer creates a viewer for matchID. Nothing happens until Open.
func NewViewer(matchID models.ID, api API, channel Channel, tasks Submitter, collector metrics.Collector, config ViewerConfig) *Viewer {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	v := &Viewer{
		matchID:   matchID,
		api:       api,
		channel:   channel,
		metrics:   collector,
		spectator: NewSpectator(matchID, api, tasks),
		events:    NewEventLog(config.MaxRetainedEvents),
		listeners: make(map[int]func(Change)),
	}
	v.events.OnAppend(func(ev models.MatchEvent) {
		v.appended = append(v.appended, ev)
	})
	return v
}

// MatchID returns the viewed match
func (v *Viewer) MatchID() models.ID {
	return v.matchID
}

// OnChange registers fn for every change to the view. The returned function
// removes the listener. Listeners run outside the viewer lock and may read
// the view.
func (v *Viewer) OnChange(fn func(Change)) (remove func()) {
	v.listenerMu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	v.listenerMu.Unlock()

	return func() {
		v.listenerMu.Lock()
		delete(v.listeners, id)
		v.listenerMu.Unlock()
	}
}

// Open loads the snapshot, starts streaming and schedules the spectator join.
// When the snapshot cannot be loaded the view becomes unavailable, all
// subscriptions are closed and the error wraps ErrMatchUnavailable.
func (v *Viewer) Open(ctx context.Context) error {
	v.mu.Lock()
	if v.status == StatusClosed {
		v.mu.Unlock()
		return ErrViewerClosed
	}
	if v.opened {
		v.mu.Unlock()
		return ErrAlreadyOpened
	}
	v.opened = true
	v.group = stream.NewGroup(v.channel)
	v.removeConnListener = v.channel.OnConnectionChange(func(bool) {
		v.notify(Change{Kind: ChangeConnection})
	})
	v.channel.Acquire()
	v.mu.Unlock()

	logger := log.With().Str("match_id", v.matchID.String()).Logger()

	for _, topic := range []string{stream.MatchStateTopic(v.matchID), stream.MatchEventsTopic(v.matchID)} {
		if err := v.group.Subscribe(topic, v.receive); err != nil {
			logger.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe")
		}
	}

	snapshot, err := v.api.GetLiveMatch(ctx, v.matchID)
	if err != nil {
		v.teardownStream()

		v.mu.Lock()
		v.pending = nil
		if v.status == StatusLoading {
			v.status = StatusUnavailable
			v.loadErr = err
		}
		v.mu.Unlock()

		logger.Error().Err(err).Msg("Failed to load live match")
		v.notify(Change{Kind: ChangeStatus})
		return fmt.Errorf("load live match %s: %w: %w", v.matchID, ErrMatchUnavailable, err)
	}

	v.mu.Lock()
	if v.status == StatusClosed {
		v.mu.Unlock()
		return ErrViewerClosed
	}
	v.session = snapshot.Session
	if v.session.MatchID.IsZero() {
		v.session.MatchID = v.matchID
	}
	seeded := v.events.Seed(snapshot.Events)
	v.status = StatusLive

	pending := v.pending
	v.pending = nil
	var changes []Change
	for _, msg := range pending {
		changes = append(changes, v.applyLocked(msg)...)
	}
	v.mu.Unlock()

	logger.Info().
		Int("events", seeded).
		Int("replayed", len(pending)).
		Str("phase", string(snapshot.Session.CurrentPhase)).
		Msg("Live match loaded")

	v.notify(Change{Kind: ChangeStatus})
	for _, c := range changes {
		v.notify(c)
	}

	v.spectator.Join()
	return nil
}

// Close tears the view down: subscriptions first, then the channel
// reference, then the spectator leave. It never blocks on the network and
// is safe to call more than once or after a failed Open.
func (v *Viewer) Close() {
	v.closeOnce.Do(func() {
		v.mu.Lock()
		opened := v.opened
		v.status = StatusClosed
		v.pending = nil
		v.mu.Unlock()

		if !opened {
			return
		}
		v.teardownStream()
		v.spectator.Leave()
		log.Info().Str("match_id", v.matchID.String()).Msg("Live match view closed")
		v.notify(Change{Kind: ChangeStatus})
	})
}

func (v *Viewer) teardownStream() {
	v.teardownOnce.Do(func() {
		v.group.Close()
		if v.removeConnListener != nil {
			v.removeConnListener()
		}
		v.channel.Release()
	})
}

// Status returns the lifecycle state
func (v *Viewer) Status() Status {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.status
}

// Membership returns the spectator membership state
func (v *Viewer) Membership() MembershipState {
	return v.spectator.State()
}

// Session returns a copy of the current session
func (v *Viewer) Session() models.MatchSession {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.session
}

// Events returns a copy of the retained events in arrival order
func (v *Viewer) Events() []models.MatchEvent {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.events.Events()
}

// State returns a consistent copy of the whole view
func (v *Viewer) State() ViewState {
	v.mu.RLock()
	defer v.mu.RUnlock()

	state := ViewState{
		MatchID:       v.matchID,
		Status:        v.status,
		Connected:     v.channel.Connected(),
		Events:        v.events.Events(),
		TotalEvents:   v.events.Total(),
		Goals:         v.events.Goals(),
		Cards:         v.events.Cards(),
		Substitutions: v.events.Substitutions(),
	}
	if v.status == StatusLive || (v.status == StatusClosed && !v.session.MatchID.IsZero()) {
		session := v.session
		state.Session = &session
	}
	if v.loadErr != nil {
		state.Error = ErrMatchUnavailable.Error()
	}
	return state
}

// receive is the handler for both match topics
func (v *Viewer) receive(msg stream.Message) {
	v.mu.Lock()
	var changes []Change
	switch v.status {
	case StatusLoading:
		v.pending = append(v.pending, msg)
	case StatusLive:
		changes = v.applyLocked(msg)
	}
	v.mu.Unlock()

	for _, c := range changes {
		v.notify(c)
	}
}

func (v *Viewer) applyLocked(msg stream.Message) []Change {
	switch stream.TopicKind(msg.Topic) {
	case stream.KindMatchState:
		return v.applyStateLocked(msg.Body)
	case stream.KindMatchEvents:
		return v.applyEventLocked(msg.Body)
	default:
		log.Warn().Str("topic", msg.Topic).Msg("Message on unexpected topic")
		return nil
	}
}

func (v *Viewer) applyStateLocked(body []byte) []Change {
	next, fields, err := Reconcile(v.session, body)
	if err != nil {
		log.Warn().Err(err).Str("match_id", v.matchID.String()).Msg("Ignoring state update")
		return nil
	}
	if len(fields) == 0 {
		return nil
	}
	if broken := Regressions(v.session, next); len(broken) > 0 {
		log.Warn().
			Str("match_id", v.matchID.String()).
			Strs("fields", broken).
			Msg("State update went backwards, applying anyway")
	}
	v.session = next

	log.Debug().Str("match_id", v.matchID.String()).Strs("fields", fields).Msg("State update applied")
	return []Change{{Kind: ChangeSession, Fields: fields}}
}

func (v *Viewer) applyEventLocked(body []byte) []Change {
	var ev models.MatchEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Warn().Err(err).Str("match_id", v.matchID.String()).Msg("Ignoring undecodable match event")
		return nil
	}
	if !ev.MatchID.IsZero() && ev.MatchID != v.matchID {
		log.Warn().
			Str("match_id", v.matchID.String()).
			Str("event_match_id", ev.MatchID.String()).
			Msg("Ignoring event for a different match")
		return nil
	}

	res := v.events.Append(ev)
	switch {
	case res.Malformed:
		log.Warn().Str("match_id", v.matchID.String()).Msg("Ignoring match event without id")
	case res.Duplicate:
		v.metrics.RecordDuplicateEvent()
		log.Debug().Str("event_id", ev.ID.String()).Msg("Duplicate match event ignored")
	case res.MinuteRegressed:
		log.Warn().
			Str("match_id", v.matchID.String()).
			Str("event_id", ev.ID.String()).
			Int("minute", ev.Minute).
			Msg("Match event earlier than the previous one")
	}

	appended := v.appended
	v.appended = nil
	changes := make([]Change, 0, len(appended))
	for i := range appended {
		changes = append(changes, Change{Kind: ChangeEvent, Event: &appended[i]})
	}
	return changes
}

func (v *Viewer) notify(c Change) {
	v.listenerMu.Lock()
	listeners := make([]func(Change), 0, len(v.listeners))
	for _, fn := range v.listeners {
		listeners = append(listeners, fn)
	}
	v.listenerMu.Unlock()

	for _, fn := range listeners {
		fn(c)
	}
}
