package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account owned by the user directory. The relationship
// subsystem only ever reads it.
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Password string    `json:"password,omitempty"`
	Username string    `json:"username"`

	AvatarURL string `json:"avatar_url"`
	Phone     string `json:"phone"`

	CreatedAt time.Time `json:"created_at"`
}

// PublicUser is the subset of a User that other users may see.
type PublicUser struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Phone     string    `json:"phone,omitempty"`
}

// Public strips credentials and private fields.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		Phone:     u.Phone,
	}
}
