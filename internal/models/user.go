package models

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Image    *string   `json:"image"`
	Password string    `json:"-"`
	Role     UserRole  `json:"role"`
	FCMToken *string   `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserSummary is the public projection embedded in other resources.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Image *string   `json:"image"`
}

// AdminUser is a user row annotated for the admin listing.
type AdminUser struct {
	User
	ConnectionCount int `json:"connectionCount"`
}
