package models

import (
	"time"

	"github.com/google/uuid"
)

// Connection pairs two users under a shared code. PairedWithID is nil until
// the second user joins.
type Connection struct {
	ID             uuid.UUID  `json:"id"`
	ConnectionCode string     `json:"connectionCode"`
	UserID         uuid.UUID  `json:"userId"`
	PairedWithID   *uuid.UUID `json:"pairedWithId"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	User       *UserSummary `json:"user,omitempty"`
	PairedWith *UserSummary `json:"pairedWith,omitempty"`
	Tree       *Tree        `json:"tree,omitempty"`
}

// HasMember reports whether userID is either side of the connection.
func (c *Connection) HasMember(userID uuid.UUID) bool {
	if c.UserID == userID {
		return true
	}
	return c.PairedWithID != nil && *c.PairedWithID == userID
}

// Members lists the owner and, once paired, the partner.
func (c *Connection) Members() []uuid.UUID {
	if c.PairedWithID == nil {
		return []uuid.UUID{c.UserID}
	}
	return []uuid.UUID{c.UserID, *c.PairedWithID}
}

// Partner returns the other member, or nil when unpaired.
func (c *Connection) Partner(userID uuid.UUID) *uuid.UUID {
	if c.UserID == userID {
		return c.PairedWithID
	}
	id := c.UserID
	return &id
}

func (c *Connection) Paired() bool {
	return c.PairedWithID != nil
}

type Tree struct {
	ID           uuid.UUID `json:"id"`
	ConnectionID uuid.UUID `json:"connectionId"`
	GrowthLevel  int       `json:"growthLevel"`
	GrowthXP     int       `json:"growthXP"`
	LastWatered  time.Time `json:"lastWatered"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
