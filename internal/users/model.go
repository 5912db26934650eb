package users

import "time"

// User is an account in the identity store.
type User struct {
	ID              string
	Email           string
	Name            string
	PasswordHash    string
	EmailVerified   bool
	EmailVerifiedAt *time.Time
	Phone           string
	AvatarURL       string
	GoogleSub       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Verification is a single-use email confirmation token.
type Verification struct {
	Token      string
	UserID     string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}
