package models

import (
	"time"

	"github.com/google/uuid"
)

type Memory struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ImageURL     *string   `json:"imageUrl"`
	Date         time.Time `json:"date"`
	UserID       uuid.UUID `json:"userId"`
	ConnectionID uuid.UUID `json:"connectionId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Note struct {
	ID           uuid.UUID    `json:"id"`
	Title        string       `json:"title"`
	Content      string       `json:"content"`
	IsTemporary  bool         `json:"isTemporary"`
	ExpiresAt    *time.Time   `json:"expiresAt"`
	Rating       *int         `json:"rating"`
	AuthorID     uuid.UUID    `json:"authorId"`
	ConnectionID uuid.UUID    `json:"connectionId"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	Author       *UserSummary `json:"author,omitempty"`
}

type SpecialDay struct {
	ID            uuid.UUID    `json:"id"`
	Title         string       `json:"title"`
	Description   *string      `json:"description"`
	Date          time.Time    `json:"date"`
	IsRecurring   bool         `json:"isRecurring"`
	IsConfirmed   bool         `json:"isConfirmed"`
	ConfirmedAt   *time.Time   `json:"confirmedAt"`
	ConfirmedByID *uuid.UUID   `json:"confirmedById"`
	UserID        uuid.UUID    `json:"userId"`
	ConnectionID  uuid.UUID    `json:"connectionId"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	User          *UserSummary `json:"user,omitempty"`

	DaysLeft int  `json:"daysLeft"`
	IsPast   bool `json:"isPast"`
	IsToday  bool `json:"isToday"`
}

// DaysLeft counts whole calendar days from now to date, both taken in now's
// location. Negative values are in the past.
func DaysLeft(now, date time.Time) int {
	loc := now.Location()
	y1, m1, d1 := now.Date()
	y2, m2, d2 := date.In(loc).Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// Annotate fills the derived countdown fields relative to now.
func (d *SpecialDay) Annotate(now time.Time) {
	d.DaysLeft = DaysLeft(now, d.Date)
	d.IsPast = d.DaysLeft < 0
	d.IsToday = d.DaysLeft == 0
}

// OccursOn reports whether the day falls on the calendar date of t. Recurring
// days match on month and day only.
func (d *SpecialDay) OccursOn(t time.Time) bool {
	_, m1, d1 := t.Date()
	y2, m2, d2 := d.Date.In(t.Location()).Date()
	if d.IsRecurring {
		return m1 == m2 && d1 == d2
	}
	return t.Year() == y2 && m1 == m2 && d1 == d2
}
