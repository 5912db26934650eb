package identity

import (
	"errors"
	"net/http"
)

// Error is a provider failure with a stable code. Message is what the user
// sees.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

var (
	ErrInvalidCredentials = newError(http.StatusBadRequest, "invalid_credentials", "Invalid login credentials")
	ErrEmailNotConfirmed  = newError(http.StatusBadRequest, "email_not_confirmed", "Email not confirmed")
	ErrUserExists         = newError(http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
	ErrWeakPassword       = newError(http.StatusUnprocessableEntity, "weak_password", "Password should be at least 6 characters")
	ErrInvalidEmail       = newError(http.StatusBadRequest, "validation_failed", "Unable to validate email address: invalid format")
	ErrSessionMissing     = newError(http.StatusUnauthorized, "session_missing", "Auth session missing!")
	ErrInvalidToken       = newError(http.StatusUnauthorized, "bad_jwt", "Invalid or expired token")
	ErrOTPExpired         = newError(http.StatusForbidden, "otp_expired", "Email link is invalid or has expired")
	ErrWrongPassword      = newError(http.StatusBadRequest, "invalid_credentials", "Current password is incorrect")
	ErrOAuthNotConfigured = newError(http.StatusInternalServerError, "auth_not_configured", "Google auth not configured")

	ErrNoUser              = newError(http.StatusUnauthorized, "no_user", "No user logged in")
	ErrPasswordMismatch    = newError(http.StatusBadRequest, "validation_failed", "Passwords do not match")
	ErrNewPasswordMismatch = newError(http.StatusBadRequest, "validation_failed", "New passwords do not match")
	ErrPasswordTooShort    = newError(http.StatusBadRequest, "validation_failed", "Password must be at least 6 characters")
)

// MinPasswordLength is enforced by forms and the provider alike.
const MinPasswordLength = 6

// AsError unwraps err to a provider Error when it carries one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
