package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrTokenInvalid = errors.New("verification token invalid")
	ErrTokenExpired = errors.New("verification token expired")
)

// Repo persists accounts and their verification tokens. Emails are matched
// case-insensitively.
type Repo interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByGoogleSub(ctx context.Context, sub string) (User, error)
	Update(ctx context.Context, user User) error

	CreateVerification(ctx context.Context, v Verification) error
	// ConsumeVerification marks the token used and returns it. A token can be
	// consumed once.
	ConsumeVerification(ctx context.Context, token string, now time.Time) (Verification, error)
}
