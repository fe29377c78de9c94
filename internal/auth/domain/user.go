package domain

import "time"

type User struct {
	ID            int64
	Email         string
	PasswordHash  string // argon2id PHC string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserUpdate is a partial update; nil fields are left untouched.
type UserUpdate struct {
	Email         *string
	PasswordHash  *string
	EmailVerified *bool
}

// PublicUser is the view of a user that may leave the service.
type PublicUser struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// Public strips credential material from the user.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
	}
}
