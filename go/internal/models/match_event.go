package models

// EventType is the kind of a discrete match event
type EventType string

const (
	EventGoal             EventType = "GOAL"
	EventAssist           EventType = "ASSIST"
	EventYellowCard       EventType = "YELLOW_CARD"
	EventRedCard          EventType = "RED_CARD"
	EventSubstitution     EventType = "SUBSTITUTION"
	EventInjury           EventType = "INJURY"
	EventOffside          EventType = "OFFSIDE"
	EventFoul             EventType = "FOUL"
	EventCorner           EventType = "CORNER"
	EventFreeKick         EventType = "FREE_KICK"
	EventPenalty          EventType = "PENALTY"
	EventSave             EventType = "SAVE"
	EventShotOnTarget     EventType = "SHOT_ON_TARGET"
	EventShotOffTarget    EventType = "SHOT_OFF_TARGET"
	EventPossessionChange EventType = "POSSESSION_CHANGE"
	EventTacticalChange   EventType = "TACTICAL_CHANGE"
	EventHalfTime         EventType = "HALF_TIME"
	EventFullTime         EventType = "FULL_TIME"
	EventKickOff          EventType = "KICK_OFF"
)

var eventDisplayNames = map[EventType]string{
	EventGoal:             "Goal",
	EventAssist:           "Assist",
	EventYellowCard:       "Yellow Card",
	EventRedCard:          "Red Card",
	EventSubstitution:     "Substitution",
	EventInjury:           "Injury",
	EventOffside:          "Offside",
	EventFoul:             "Foul",
	EventCorner:           "Corner",
	EventFreeKick:         "Free Kick",
	EventPenalty:          "Penalty",
	EventSave:             "Save",
	EventShotOnTarget:     "Shot on Target",
	EventShotOffTarget:    "Shot off Target",
	EventPossessionChange: "Possession Change",
	EventTacticalChange:   "Tactical Change",
	EventHalfTime:         "Half Time",
	EventFullTime:         "Full Time",
	EventKickOff:          "Kick Off",
}

// DisplayName returns a human readable label, falling back to the raw type
func (t EventType) DisplayName() string {
	if name, ok := eventDisplayNames[t]; ok {
		return name
	}
	return string(t)
}

// EventSeverity is a styling hint; it never affects ordering
type EventSeverity string

const (
	SeverityMinor    EventSeverity = "MINOR"
	SeverityNormal   EventSeverity = "NORMAL"
	SeverityMajor    EventSeverity = "MAJOR"
	SeverityCritical EventSeverity = "CRITICAL"
)

// MatchEvent is an immutable record of something that happened in a match
type MatchEvent struct {
	ID                  ID            `json:"id"`
	MatchID             ID            `json:"matchId,omitempty"`
	EventType           EventType     `json:"eventType"`
	Minute              int           `json:"minute"`
	AdditionalTime      int           `json:"additionalTime,omitempty"`
	Description         string        `json:"description"`
	DetailedDescription string        `json:"detailedDescription,omitempty"`
	PlayerName          string        `json:"playerName,omitempty"`
	TeamName            string        `json:"teamName,omitempty"`
	HomeScore           *int          `json:"homeScore,omitempty"`
	AwayScore           *int          `json:"awayScore,omitempty"`
	Severity            EventSeverity `json:"severity,omitempty"`
	IsKeyEvent          bool          `json:"isKeyEvent,omitempty"`
}

// HasScore reports whether the event carries a resulting score snapshot
func (e MatchEvent) HasScore() bool {
	return e.HomeScore != nil && e.AwayScore != nil
}

// Before reports whether e happened strictly before other on the match clock
func (e MatchEvent) Before(other MatchEvent) bool {
	if e.Minute != other.Minute {
		return e.Minute < other.Minute
	}
	return e.AdditionalTime < other.AdditionalTime
}
