package livematch

import (
	"fmt"
	"strings"

	"github.com/mcdev12/matchday/go/internal/models"
)

var phaseDisplay = map[models.MatchPhase]string{
	models.PhasePreMatch:        "Pre-Match",
	models.PhaseFirstHalf:       "1st Half",
	models.PhaseHalfTime:        "Half Time",
	models.PhaseSecondHalf:      "2nd Half",
	models.PhaseExtraTimeFirst:  "Extra Time 1st",
	models.PhaseExtraTimeSecond: "Extra Time 2nd",
	models.PhasePenalties:       "Penalties",
	models.PhaseFinished:        "Full Time",
}

// PhaseDisplay returns the human label for phase
func PhaseDisplay(phase models.MatchPhase) string {
	if label, ok := phaseDisplay[phase]; ok {
		return label
	}
	return string(phase)
}

// FormatMatchTime renders the match clock, e.g. 45+2'
func FormatMatchTime(minute, additional int) string {
	if additional > 0 {
		return fmt.Sprintf("%d+%d'", minute, additional)
	}
	return fmt.Sprintf("%d'", minute)
}

// Scoreline renders "Home 1 - 0 Away"
func Scoreline(s models.MatchSession) string {
	return fmt.Sprintf("%s %d - %d %s", teamName(s.Home, "Home"), s.HomeScore, s.AwayScore, teamName(s.Away, "Away"))
}

// Headline renders a one-line summary of the view
func Headline(state ViewState) string {
	switch state.Status {
	case StatusLoading:
		return "Loading live match..."
	case StatusUnavailable:
		return "Match not found"
	}
	if state.Session == nil {
		return state.Status.String()
	}

	s := state.Session
	parts := []string{
		Scoreline(*s),
		FormatMatchTime(s.CurrentMinute, s.AdditionalTime) + " " + PhaseDisplay(s.CurrentPhase),
		fmt.Sprintf("%d watching", s.SpectatorCount),
	}
	if s.IsPaused {
		parts = append(parts, "paused: "+s.PauseReason)
	}
	if !state.Connected {
		parts = append(parts, "reconnecting")
	}
	return strings.Join(parts, " | ")
}

// EventLine renders one commentary line
func EventLine(ev models.MatchEvent) string {
	line := FormatMatchTime(ev.Minute, ev.AdditionalTime) + " " + ev.EventType.DisplayName()
	if ev.Description != "" {
		line += ": " + ev.Description
	}
	if ev.HasScore() {
		line += fmt.Sprintf(" (%d-%d)", *ev.HomeScore, *ev.AwayScore)
	}
	return line
}

func teamName(t models.TeamRef, fallback string) string {
	if t.Name == "" {
		return fallback
	}
	return t.Name
}
