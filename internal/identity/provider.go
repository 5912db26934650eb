package identity

import "context"

// Provider is the identity service the session adapter talks to.
type Provider interface {
	SignUp(ctx context.Context, email, password, name string) (Account, error)
	SignInWithPassword(ctx context.Context, email, password string) (Session, error)
	// SignOut ends the session owning accessToken. Unknown or expired tokens
	// are not an error.
	SignOut(ctx context.Context, accessToken string) error
	// Resend sends a fresh verification link to an unconfirmed account.
	Resend(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, token string) (Account, error)
	GetSession(ctx context.Context, accessToken string) (Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (Session, error)
	UpdateUser(ctx context.Context, accessToken string, attrs UserAttributes) (Account, error)
	// Subscribe returns a channel of session changes and a func that ends
	// the subscription and closes the channel.
	Subscribe(buffer int) (<-chan AuthEvent, func())
}
