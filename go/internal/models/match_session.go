package models

// MatchPhase is the period of play a live match is in
type MatchPhase string

const (
	PhasePreMatch        MatchPhase = "PRE_MATCH"
	PhaseFirstHalf       MatchPhase = "FIRST_HALF"
	PhaseHalfTime        MatchPhase = "HALF_TIME"
	PhaseSecondHalf      MatchPhase = "SECOND_HALF"
	PhaseExtraTimeFirst  MatchPhase = "EXTRA_TIME_FIRST"
	PhaseExtraTimeSecond MatchPhase = "EXTRA_TIME_SECOND"
	PhasePenalties       MatchPhase = "PENALTIES"
	PhaseFinished        MatchPhase = "FINISHED"
)

// MatchIntensity describes how heated the match currently is
type MatchIntensity string

const (
	IntensityLow      MatchIntensity = "LOW"
	IntensityModerate MatchIntensity = "MODERATE"
	IntensityHigh     MatchIntensity = "HIGH"
	IntensityExtreme  MatchIntensity = "EXTREME"
)

// TeamRef is the minimal team information carried by a live session
type TeamRef struct {
	ID   ID     `json:"id,omitempty"`
	Name string `json:"name"`
}

// MatchSession is the authoritative local state of one viewed match.
// The event log is kept apart from it (see livematch.EventLog).
type MatchSession struct {
	MatchID           ID             `json:"matchId"`
	Home              TeamRef        `json:"home"`
	Away              TeamRef        `json:"away"`
	HomeScore         int            `json:"homeScore"`
	AwayScore         int            `json:"awayScore"`
	CurrentPhase      MatchPhase     `json:"currentPhase"`
	CurrentMinute     int            `json:"currentMinute"`
	AdditionalTime    int            `json:"additionalTime"`
	SpectatorCount    int            `json:"spectatorCount"`
	WeatherConditions string         `json:"weatherConditions,omitempty"`
	Temperature       float64        `json:"temperature,omitempty"`
	Intensity         MatchIntensity `json:"intensity,omitempty"`
	IsPaused          bool           `json:"isPaused,omitempty"`
	PauseReason       string         `json:"pauseReason,omitempty"`
}

// LiveMatchSnapshot is the result of a snapshot fetch: the session plus the
// events that already happened
type LiveMatchSnapshot struct {
	Session MatchSession
	Events  []MatchEvent
}

// LiveMatchSummary is one entry of the live match listing
type LiveMatchSummary struct {
	MatchID        ID         `json:"matchId"`
	HomeTeam       string     `json:"homeTeam"`
	AwayTeam       string     `json:"awayTeam"`
	HomeScore      int        `json:"homeScore"`
	AwayScore      int        `json:"awayScore"`
	CurrentMinute  int        `json:"currentMinute"`
	CurrentPhase   MatchPhase `json:"currentPhase"`
	SpectatorCount int        `json:"spectatorCount"`
}
