package models

import (
	"time"

	"github.com/google/uuid"
)

type DreamCategory string

const (
	DreamTravel       DreamCategory = "TRAVEL"
	DreamHome         DreamCategory = "HOME"
	DreamFamily       DreamCategory = "FAMILY"
	DreamCareer       DreamCategory = "CAREER"
	DreamAdventure    DreamCategory = "ADVENTURE"
	DreamRelationship DreamCategory = "RELATIONSHIP"
	DreamFinance      DreamCategory = "FINANCE"
	DreamHealth       DreamCategory = "HEALTH"
	DreamOther        DreamCategory = "OTHER"
)

// Valid reports whether c is one of the known categories.
func (c DreamCategory) Valid() bool {
	switch c {
	case DreamTravel, DreamHome, DreamFamily, DreamCareer, DreamAdventure,
		DreamRelationship, DreamFinance, DreamHealth, DreamOther:
		return true
	}
	return false
}

type Dream struct {
	ID           uuid.UUID      `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	ImageURL     *string        `json:"imageUrl"`
	LinkURL      *string        `json:"linkUrl"`
	Category     DreamCategory  `json:"category"`
	Position     int            `json:"position"`
	UserID       uuid.UUID      `json:"userId"`
	ConnectionID uuid.UUID      `json:"connectionId"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	User         *UserSummary   `json:"user,omitempty"`
	Comments     []DreamComment `json:"comments"`
}

type DreamComment struct {
	ID        uuid.UUID    `json:"id"`
	Content   string       `json:"content"`
	DreamID   uuid.UUID    `json:"dreamId"`
	UserID    uuid.UUID    `json:"userId"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	User      *UserSummary `json:"user,omitempty"`
}
