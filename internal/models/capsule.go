package models

import (
	"time"

	"github.com/google/uuid"
)

type TimeCapsule struct {
	ID           uuid.UUID    `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Content      *string      `json:"content"`
	ImageURL     *string      `json:"imageUrl"`
	OpenDate     time.Time    `json:"openDate"`
	IsOpened     bool         `json:"isOpened"`
	OpenedAt     *time.Time   `json:"openedAt"`
	UserID       uuid.UUID    `json:"userId"`
	ConnectionID uuid.UUID    `json:"connectionId"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	User         *UserSummary `json:"user,omitempty"`

	HiddenUntil  *time.Time           `json:"hiddenUntil,omitempty"`
	CommentCount int                  `json:"commentCount"`
	Comments     []TimeCapsuleComment `json:"comments,omitempty"`
}

// Locked reports whether the capsule is unopened and its open date is after now.
func (c *TimeCapsule) Locked(now time.Time) bool {
	return !c.IsOpened && c.OpenDate.After(now)
}

// Conceal withholds the content of a locked capsule.
func (c *TimeCapsule) Conceal(now time.Time) {
	if !c.Locked(now) {
		c.HiddenUntil = nil
		return
	}
	c.Content = nil
	until := c.OpenDate
	c.HiddenUntil = &until
}

type TimeCapsuleComment struct {
	ID            uuid.UUID    `json:"id"`
	Content       string       `json:"content"`
	TimeCapsuleID uuid.UUID    `json:"timeCapsuleId"`
	UserID        uuid.UUID    `json:"userId"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	User          *UserSummary `json:"user,omitempty"`
}
