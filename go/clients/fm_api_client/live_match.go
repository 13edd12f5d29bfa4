package fm_api_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/mcdev12/matchday/go/internal/models"
)

// liveMatchResponse covers both shapes the backend has used for a session:
// teams nested under "match" or flattened next to the scores
type liveMatchResponse struct {
	models.MatchSession
	Match *struct {
		ID   models.ID      `json:"id"`
		Home models.TeamRef `json:"home"`
		Away models.TeamRef `json:"away"`
	} `json:"match"`
	Events []models.MatchEvent `json:"events"`
}

// GetLiveMatch fetches the current session state and the events so far
func (c *FMApiClient) GetLiveMatch(ctx context.Context, matchID models.ID) (*models.LiveMatchSnapshot, error) {
	body, err := c.Get(ctx, fmt.Sprintf(LiveMatchEndpoint, url.PathEscape(matchID.String())))
	if err != nil {
		return nil, fmt.Errorf("failed to get live match: %w", err)
	}

	var response liveMatchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal live match: %w", err)
	}

	session := response.MatchSession
	if response.Match != nil {
		if session.MatchID.IsZero() {
			session.MatchID = response.Match.ID
		}
		if session.Home.Name == "" {
			session.Home = response.Match.Home
		}
		if session.Away.Name == "" {
			session.Away = response.Match.Away
		}
	}
	if session.MatchID.IsZero() {
		session.MatchID = matchID
	}

	events := response.Events
	if events == nil {
		events = []models.MatchEvent{}
	}

	return &models.LiveMatchSnapshot{Session: session, Events: events}, nil
}

// JoinLiveMatch registers the caller as a spectator
func (c *FMApiClient) JoinLiveMatch(ctx context.Context, matchID models.ID) error {
	if _, err := c.Post(ctx, fmt.Sprintf(LiveMatchJoinEndpoint, url.PathEscape(matchID.String())), nil); err != nil {
		return fmt.Errorf("failed to join live match: %w", err)
	}
	return nil
}

// LeaveLiveMatch deregisters the caller as a spectator
func (c *FMApiClient) LeaveLiveMatch(ctx context.Context, matchID models.ID) error {
	if _, err := c.Post(ctx, fmt.Sprintf(LiveMatchLeaveEndpoint, url.PathEscape(matchID.String())), nil); err != nil {
		return fmt.Errorf("failed to leave live match: %w", err)
	}
	return nil
}

// GetLiveMatches lists every match that currently has a live session
func (c *FMApiClient) GetLiveMatches(ctx context.Context) ([]models.LiveMatchSummary, error) {
	body, err := c.Get(ctx, LiveMatchesEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get live matches: %w", err)
	}

	var summaries []models.LiveMatchSummary
	if err := json.Unmarshal(body, &summaries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal live matches: %w, raw response: %s", err, string(body))
	}

	return summaries, nil
}
