package livematch

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/dispatch"
	"github.com/mcdev12/matchday/go/internal/models"
)

// Task names used for logs and failure metrics
const (
	TaskJoin  = "spectator_join"
	TaskLeave = "spectator_leave"
)

// SpectatorAPI registers and unregisters the viewer as a spectator
type SpectatorAPI interface {
	JoinLiveMatch(ctx context.Context, matchID models.ID) error
	LeaveLiveMatch(ctx context.Context, matchID models.ID) error
}

// Submitter queues fire-and-forget work
type Submitter interface {
	Submit(name string, run dispatch.TaskFunc) error
}

// MembershipState is the spectator state of one view
type MembershipState int

const (
	NotJoined MembershipState = iota
	Joined
	Left
)

func (s MembershipState) String() string {
	switch s {
	case NotJoined:
		return "not-joined"
	case Joined:
		return "joined"
	case Left:
		return "left"
	default:
		return "unknown"
	}
}

// Spectator tracks one view's spectator membership. Join and Leave are each
// attempted at most once; neither is retried and neither reports errors to
// the caller. The leave request is never sent before a scheduled join
// request has finished.
type Spectator struct {
	matchID models.ID
	api     SpectatorAPI
	tasks   Submitter

	mu       sync.Mutex
	state    MembershipState
	joinDone chan struct{}

	joinOnce  sync.Once
	leaveOnce sync.Once
}

// NewSpectator creates a not-joined membership for matchID
func NewSpectator(matchID models.ID, api SpectatorAPI, tasks Submitter) *Spectator {
	return &Spectator{
		matchID: matchID,
		api:     api,
		tasks:   tasks,
	}
}

// State returns the current membership state
func (s *Spectator) State() MembershipState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Join schedules the join request
func (s *Spectator) Join() {
	s.joinOnce.Do(func() {
		done := make(chan struct{})
		s.mu.Lock()
		s.joinDone = done
		s.mu.Unlock()

		err := s.tasks.Submit(TaskJoin, func(ctx context.Context) error {
			defer close(done)
			return s.join(ctx)
		})
		if err != nil {
			close(done)
			log.Warn().Err(err).Str("match_id", s.matchID.String()).Msg("Could not schedule spectator join")
		}
	})
}

func (s *Spectator) join(ctx context.Context) error {
	if s.State() == Left {
		log.Debug().Str("match_id", s.matchID.String()).Msg("Skipping spectator join after leave")
		return nil
	}

	if err := s.api.JoinLiveMatch(ctx, s.matchID); err != nil {
		return fmt.Errorf("join live match %s: %w", s.matchID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != NotJoined {
		log.Debug().Str("match_id", s.matchID.String()).Msg("Spectator join finished after leave")
		return nil
	}
	s.state = Joined
	log.Info().Str("match_id", s.matchID.String()).Msg("Joined as spectator")
	return nil
}

// Leave schedules the leave request. It is sent even if Join never ran or
// failed, since the server may have registered the viewer regardless.
func (s *Spectator) Leave() {
	s.leaveOnce.Do(func() {
		s.mu.Lock()
		s.state = Left
		joinDone := s.joinDone
		s.mu.Unlock()

		err := s.tasks.Submit(TaskLeave, func(ctx context.Context) error {
			if joinDone != nil {
				select {
				case <-joinDone:
				case <-ctx.Done():
					return fmt.Errorf("leave live match %s: waiting for join: %w", s.matchID, ctx.Err())
				}
			}

			if err := s.api.LeaveLiveMatch(ctx, s.matchID); err != nil {
				return fmt.Errorf("leave live match %s: %w", s.matchID, err)
			}
			log.Info().Str("match_id", s.matchID.String()).Msg("Left as spectator")
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("match_id", s.matchID.String()).Msg("Could not schedule spectator leave")
		}
	})
}
