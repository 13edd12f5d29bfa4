package models

import "time"

// NotificationKind is the type tag on a per-user push message
type NotificationKind string

const (
	NotificationMatchStarted NotificationKind = "MATCH_STARTED"
	NotificationMatchEnded   NotificationKind = "MATCH_ENDED"
)

// PushNotification is a message delivered on the per-user notification topic
type PushNotification struct {
	Type    NotificationKind `json:"type"`
	MatchID ID               `json:"matchId,omitempty"`
	Message string           `json:"message"`
}

// UserNotification is an entry of the persistent notification list
type UserNotification struct {
	ID               ID         `json:"id"`
	NotificationType string     `json:"notificationType"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	ActionURL        string     `json:"actionUrl,omitempty"`
	Priority         string     `json:"priority,omitempty"`
	IsRead           bool       `json:"isRead"`
	CreatedAt        time.Time  `json:"createdAt"`
	ReadAt           *time.Time `json:"readAt,omitempty"`
}

// ManagerProfile is the viewer's progression summary shown next to the
// notification badge
type ManagerProfile struct {
	Username       string `json:"username,omitempty"`
	Level          int    `json:"level"`
	CurrentXP      int    `json:"currentXp"`
	XPForNextLevel int    `json:"xpForNextLevel"`
}

// LevelProgress returns the progress towards the next level in percent
func (p ManagerProfile) LevelProgress() int {
	if p.XPForNextLevel <= 0 {
		return 0
	}
	progress := p.CurrentXP * 100 / p.XPForNextLevel
	if progress > 100 {
		return 100
	}
	return progress
}
