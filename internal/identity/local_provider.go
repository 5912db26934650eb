package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"docvault-api/internal/shared/auth"
	"docvault-api/internal/shared/server/middleware"
	"docvault-api/internal/shared/telemetry"
	"docvault-api/internal/users"
)

const defaultVerificationTTL = 24 * time.Hour

// LocalProvider is a self-hosted identity provider: accounts in users.Repo,
// bcrypt password hashes, JWT sessions and emailed verification links.
type LocalProvider struct {
	Users       users.Repo
	Tokens      *auth.Issuer
	Revocations RevocationStore
	Mailer      Mailer
	// VerifyURL is the page that receives ?token= from verification mail.
	VerifyURL       string
	VerificationTTL time.Duration
	BcryptCost      int
	Now             func() time.Time

	events *broadcaster
}

// NewLocalProvider wires a provider with in-memory revocations and a log
// mailer; callers override fields for production.
func NewLocalProvider(repo users.Repo, tokens *auth.Issuer) *LocalProvider {
	return &LocalProvider{
		Users:           repo,
		Tokens:          tokens,
		Revocations:     NewMemoryRevocations(),
		Mailer:          LogMailer{L: telemetry.L()},
		VerificationTTL: defaultVerificationTTL,
		BcryptCost:      bcrypt.DefaultCost,
		Now:             time.Now,
		events:          newBroadcaster(),
	}
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password, name string) (Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Account{}, err
	}
	if len(password) < MinPasswordLength {
		return Account{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost())
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := p.now()
	user := users.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.Users.Create(ctx, user); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			return Account{}, ErrUserExists
		}
		return Account{}, fmt.Errorf("create user: %w", err)
	}

	// The account exists either way; a failed send can be retried via Resend.
	if err := p.sendVerification(ctx, user); err != nil {
		telemetry.FromContext(ctx).Error("identity.signup.verification_failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
	return toAccount(user), nil
}

func (p *LocalProvider) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	user, err := p.Users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return Session{}, ErrEmailNotConfirmed
	}
	return p.startSession(user)
}

// SignInWithOAuth signs in the account linked to an external identity,
// linking by email or creating a confirmed account when none exists.
func (p *LocalProvider) SignInWithOAuth(ctx context.Context, id OAuthIdentity) (Session, error) {
	if id.Subject == "" {
		return Session{}, ErrInvalidCredentials
	}
	user, err := p.Users.GetByGoogleSub(ctx, id.Subject)
	switch {
	case err == nil:
	case errors.Is(err, users.ErrNotFound):
		user, err = p.linkOrCreate(ctx, id)
		if err != nil {
			return Session{}, err
		}
	default:
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	return p.startSession(user)
}

func (p *LocalProvider) linkOrCreate(ctx context.Context, id OAuthIdentity) (users.User, error) {
	email, err := normalizeEmail(id.Email)
	if err != nil {
		return users.User{}, err
	}
	now := p.now()
	user, err := p.Users.GetByEmail(ctx, email)
	if err == nil {
		user.GoogleSub = id.Subject
		if !user.EmailVerified {
			user.EmailVerified = true
			user.EmailVerifiedAt = &now
		}
		if user.AvatarURL == "" {
			user.AvatarURL = id.Picture
		}
		user.UpdatedAt = now
		if err := p.Users.Update(ctx, user); err != nil {
			return users.User{}, fmt.Errorf("link account: %w", err)
		}
		return user, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return users.User{}, fmt.Errorf("load user: %w", err)
	}
	user = users.User{
		ID:              uuid.NewString(),
		Email:           email,
		Name:            strings.TrimSpace(id.Name),
		EmailVerified:   true,
		EmailVerifiedAt: &now,
		AvatarURL:       id.Picture,
		GoogleSub:       id.Subject,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := p.Users.Create(ctx, user); err != nil {
		return users.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (p *LocalProvider) SignOut(ctx context.Context, accessToken string) error {
	claims, err := p.verify(ctx, accessToken, auth.KindAccess)
	if errors.Is(err, ErrInvalidToken) {
		return nil
	}
	if err != nil {
		return err
	}
	until := p.now().Add(p.Tokens.RefreshTTL())
	if err := p.Revocations.Revoke(ctx, claims.SessionID, until); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	p.events.publish(AuthEvent{
		Type:      EventSignedOut,
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
	})
	return nil
}

func (p *LocalProvider) Resend(ctx context.Context, email string) error {
	user, err := p.Users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		// Unknown addresses are not disclosed.
		if errors.Is(err, users.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}
	if user.EmailVerified {
		return nil
	}
	return p.sendVerification(ctx, user)
}

func (p *LocalProvider) VerifyEmail(ctx context.Context, token string) (Account, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Account{}, ErrOTPExpired
	}
	now := p.now()
	v, err := p.Users.ConsumeVerification(ctx, token, now)
	if err != nil {
		if errors.Is(err, users.ErrTokenInvalid) || errors.Is(err, users.ErrTokenExpired) {
			return Account{}, ErrOTPExpired
		}
		return Account{}, fmt.Errorf("consume verification: %w", err)
	}
	user, err := p.Users.GetByID(ctx, v.UserID)
	if err != nil {
		return Account{}, fmt.Errorf("load user: %w", err)
	}
	if !user.EmailVerified {
		user.EmailVerified = true
		user.EmailVerifiedAt = &now
		user.UpdatedAt = now
		if err := p.Users.Update(ctx, user); err != nil {
			return Account{}, fmt.Errorf("confirm email: %w", err)
		}
	}
	account := toAccount(user)
	p.events.publish(AuthEvent{Type: EventUserUpdated, UserID: user.ID, Account: &account})
	return account, nil
}

func (p *LocalProvider) GetSession(ctx context.Context, accessToken string) (Session, error) {
	if strings.TrimSpace(accessToken) == "" {
		return Session{}, ErrSessionMissing
	}
	claims, err := p.verify(ctx, accessToken, auth.KindAccess)
	if err != nil {
		return Session{}, err
	}
	user, err := p.Users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	session := Session{
		ID:          claims.SessionID,
		AccessToken: accessToken,
		Account:     toAccount(user),
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// RefreshSession rotates a session: the old session ID is revoked and a new
// token pair issued.
func (p *LocalProvider) RefreshSession(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := p.verify(ctx, refreshToken, auth.KindRefresh)
	if err != nil {
		return Session{}, err
	}
	user, err := p.Users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	session, err := p.issue(user)
	if err != nil {
		return Session{}, err
	}
	until := p.now().Add(p.Tokens.RefreshTTL())
	if err := p.Revocations.Revoke(ctx, claims.SessionID, until); err != nil {
		return Session{}, fmt.Errorf("revoke session: %w", err)
	}
	p.events.publish(AuthEvent{
		Type:              EventTokenRefreshed,
		Session:           &session,
		UserID:            user.ID,
		SessionID:         session.ID,
		PreviousSessionID: claims.SessionID,
	})
	return session, nil
}

func (p *LocalProvider) UpdateUser(ctx context.Context, accessToken string, attrs UserAttributes) (Account, error) {
	session, err := p.GetSession(ctx, accessToken)
	if err != nil {
		return Account{}, err
	}
	user, err := p.Users.GetByID(ctx, session.Account.ID)
	if err != nil {
		return Account{}, fmt.Errorf("load user: %w", err)
	}

	if attrs.Password != nil {
		if len(*attrs.Password) < MinPasswordLength {
			return Account{}, ErrWeakPassword
		}
		if attrs.CurrentPassword != nil &&
			bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(*attrs.CurrentPassword)) != nil {
			return Account{}, ErrWrongPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*attrs.Password), p.cost())
		if err != nil {
			return Account{}, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	if attrs.Name != nil {
		user.Name = strings.TrimSpace(*attrs.Name)
	}
	if attrs.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*attrs.AvatarURL)
	}
	if attrs.Phone != nil {
		user.Phone = strings.TrimSpace(*attrs.Phone)
	}
	user.UpdatedAt = p.now()

	if err := p.Users.Update(ctx, user); err != nil {
		return Account{}, fmt.Errorf("update user: %w", err)
	}

	account := toAccount(user)
	session.Account = account
	p.events.publish(AuthEvent{
		Type:      EventUserUpdated,
		Session:   &session,
		Account:   &account,
		UserID:    user.ID,
		SessionID: session.ID,
	})
	return account, nil
}

func (p *LocalProvider) Subscribe(buffer int) (<-chan AuthEvent, func()) {
	return p.events.subscribe(buffer)
}

// Authenticate resolves an access token for the HTTP auth middleware.
func (p *LocalProvider) Authenticate(ctx context.Context, accessToken string) (middleware.Principal, error) {
	claims, err := p.verify(ctx, accessToken, auth.KindAccess)
	if err != nil {
		return middleware.Principal{}, err
	}
	return middleware.Principal{
		UserID:    claims.Subject,
		Email:     claims.Email,
		SessionID: claims.SessionID,
	}, nil
}

func (p *LocalProvider) verify(ctx context.Context, token, kind string) (auth.Claims, error) {
	claims, err := p.Tokens.Verify(token, kind)
	if err != nil {
		return auth.Claims{}, ErrInvalidToken
	}
	revoked, err := p.Revocations.IsRevoked(ctx, claims.SessionID)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return auth.Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func (p *LocalProvider) startSession(user users.User) (Session, error) {
	session, err := p.issue(user)
	if err != nil {
		return Session{}, err
	}
	p.events.publish(AuthEvent{
		Type:      EventSignedIn,
		Session:   &session,
		UserID:    user.ID,
		SessionID: session.ID,
	})
	return session, nil
}

func (p *LocalProvider) issue(user users.User) (Session, error) {
	pair, err := p.Tokens.Issue(auth.Identity{
		UserID:  user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Picture: user.AvatarURL,
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue session: %w", err)
	}
	return Session{
		ID:           pair.SessionID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		Account:      toAccount(user),
	}, nil
}

func (p *LocalProvider) sendVerification(ctx context.Context, user users.User) error {
	now := p.now()
	ttl := p.VerificationTTL
	if ttl <= 0 {
		ttl = defaultVerificationTTL
	}
	v := users.Verification{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := p.Users.CreateVerification(ctx, v); err != nil {
		return fmt.Errorf("store verification: %w", err)
	}
	link, err := verificationLink(p.VerifyURL, v.Token)
	if err != nil {
		return err
	}
	return p.Mailer.SendVerification(ctx, user.Email, user.Name, link)
}

func (p *LocalProvider) cost() int {
	if p.BcryptCost == 0 {
		return bcrypt.DefaultCost
	}
	return p.BcryptCost
}

func (p *LocalProvider) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func verificationLink(base, token string) (string, error) {
	if base == "" {
		base = "/api/v1/auth/verify"
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse verify url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(raw), nil
}

func toAccount(u users.User) Account {
	confirmedAt := u.EmailVerifiedAt
	if u.EmailVerified && confirmedAt == nil {
		at := u.UpdatedAt
		confirmedAt = &at
	}
	if !u.EmailVerified {
		confirmedAt = nil
	}
	return Account{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		EmailConfirmedAt: confirmedAt,
		Phone:            u.Phone,
		AvatarURL:        u.AvatarURL,
	}
}
