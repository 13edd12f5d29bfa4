package stream

import (
	"strings"

	"github.com/mcdev12/matchday/go/internal/models"
)

// UserNotificationsTopic is the per-user notification queue
const UserNotificationsTopic = "user-queue/notifications"

const userQueuePrefix = "user-queue/"

// Topic kinds used as metric labels
const (
	KindMatchState  = "match_state"
	KindMatchEvents = "match_events"
	KindUserQueue   = "user_queue"
	KindOther       = "other"
)

// MatchStateTopic carries partial session updates for one match
func MatchStateTopic(matchID models.ID) string {
	return "match/" + matchID.String()
}

// MatchEventsTopic carries discrete events for one match
func MatchEventsTopic(matchID models.ID) string {
	return "match/" + matchID.String() + "/events"
}

// TopicKind classifies a topic without its ids
func TopicKind(topic string) string {
	switch {
	case strings.HasPrefix(topic, userQueuePrefix):
		return KindUserQueue
	case strings.HasPrefix(topic, "match/") && strings.HasSuffix(topic, "/events"):
		return KindMatchEvents
	case strings.HasPrefix(topic, "match/") && !strings.Contains(strings.TrimPrefix(topic, "match/"), "/"):
		return KindMatchState
	default:
		return KindOther
	}
}

// IsUserQueue reports whether topic is addressed to the connected user
func IsUserQueue(topic string) (rest string, ok bool) {
	if strings.HasPrefix(topic, userQueuePrefix) {
		return strings.TrimPrefix(topic, userQueuePrefix), true
	}
	return "", false
}

// DottedName maps a topic onto a dot separated subject or routing key.
// User queue topics are scoped under users.{userID}.
func DottedName(topic, userID string) string {
	if rest, ok := IsUserQueue(topic); ok {
		return "users." + userID + "." + strings.ReplaceAll(rest, "/", ".")
	}
	return strings.ReplaceAll(topic, "/", ".")
}
