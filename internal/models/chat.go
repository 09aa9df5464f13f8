package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	ID           uuid.UUID    `json:"id"`
	Content      string       `json:"content"`
	IsRead       bool         `json:"isRead"`
	UserID       uuid.UUID    `json:"userId"`
	ConnectionID uuid.UUID    `json:"connectionId"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	User         *UserSummary `json:"user,omitempty"`
}

type NotificationType string

const (
	NotificationSystem     NotificationType = "SYSTEM"
	NotificationSpecialDay NotificationType = "SPECIAL_DAY"
	NotificationNewMemory  NotificationType = "NEW_MEMORY"
	NotificationNewNote    NotificationType = "NEW_NOTE"
	NotificationPromo      NotificationType = "PROMO"
	NotificationAppUpdate  NotificationType = "APP_UPDATE"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationSystem, NotificationSpecialDay, NotificationNewMemory,
		NotificationNewNote, NotificationPromo, NotificationAppUpdate:
		return true
	}
	return false
}

type Notification struct {
	ID        uuid.UUID        `json:"id"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Type      NotificationType `json:"type"`
	IsRead    bool             `json:"isRead"`
	Data      json.RawMessage  `json:"data,omitempty"`
	UserID    uuid.UUID        `json:"userId"`
	CreatedAt time.Time        `json:"createdAt"`
	SentAt    *time.Time       `json:"sentAt"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalUsers        int `json:"totalUsers"`
	TotalConnections  int `json:"totalConnections"`
	ActiveUsers30Days int `json:"activeUsers30Days"`
}

// Presence is a member's live status in the chat.
type Presence struct {
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen"`
}
