package identity

import (
	"strings"
	"time"
)

// EventType names a session change reported by the provider.
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventUserUpdated    EventType = "USER_UPDATED"
)

// Account is the provider's view of a user.
type Account struct {
	ID               string
	Email            string
	Name             string
	EmailConfirmedAt *time.Time
	Phone            string
	AvatarURL        string
}

// Session is an authenticated sign-in. ID is shared by both tokens.
type Session struct {
	ID           string    `json:"-"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Account      Account   `json:"-"`
}

// User is the representation handed to the browser.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"emailVerified"`
	Phone         string `json:"phone,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
}

// AuthEvent is delivered to subscribers whenever a session changes.
type AuthEvent struct {
	Type EventType
	// Session is nil for EventSignedOut and for account changes made
	// outside a session, such as email confirmation.
	Session *Session
	Account *Account
	// UserID identifies the account even when Session is nil.
	UserID string
	// SessionID is the session that changed. For EventTokenRefreshed,
	// PreviousSessionID is the rotated-out one.
	SessionID         string
	PreviousSessionID string
}

// UserAttributes is a partial account update. Nil fields are left alone.
type UserAttributes struct {
	Name            *string
	AvatarURL       *string
	Phone           *string
	Password        *string
	CurrentPassword *string
}

// OAuthIdentity is a verified profile from an external sign-in.
type OAuthIdentity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// DeriveUser builds the browser-facing user from an account. Name falls back
// to the local part of the email.
func DeriveUser(a Account) User {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		name = a.Email
		if at := strings.Index(name, "@"); at >= 0 {
			name = name[:at]
		}
	}
	return User{
		ID:            a.ID,
		Email:         a.Email,
		Name:          name,
		EmailVerified: a.EmailConfirmedAt != nil,
		Phone:         a.Phone,
		Avatar:        a.AvatarURL,
	}
}
