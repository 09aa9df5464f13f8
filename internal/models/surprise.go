package models

import (
	"time"

	"github.com/google/uuid"
)

type Surprise struct {
	ID              uuid.UUID    `json:"id"`
	ImageURL        string       `json:"imageUrl"`
	Message         *string      `json:"message"`
	IsSeenByAuthor  bool         `json:"isSeenByAuthor"`
	IsSeenByPartner bool         `json:"isSeenByPartner"`
	UserID          uuid.UUID    `json:"userId"`
	ConnectionID    uuid.UUID    `json:"connectionId"`
	CreatedAt       time.Time    `json:"createdAt"`
	User            *UserSummary `json:"user,omitempty"`
}

// Pending reports whether either side has yet to see the surprise.
func (s *Surprise) Pending() bool {
	return !s.IsSeenByAuthor || !s.IsSeenByPartner
}

// MarkSeen flips the flag for viewer's side and reports whether both sides
// have now seen it.
func (s *Surprise) MarkSeen(viewer uuid.UUID) bool {
	if viewer == s.UserID {
		s.IsSeenByAuthor = true
	} else {
		s.IsSeenByPartner = true
	}
	return !s.Pending()
}

// SeenBy reports whether viewer's side has seen the surprise.
func (s *Surprise) SeenBy(viewer uuid.UUID) bool {
	if viewer == s.UserID {
		return s.IsSeenByAuthor
	}
	return s.IsSeenByPartner
}
