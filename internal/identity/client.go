package identity

import (
	"context"
	"errors"
	"strings"
	"sync"

	"docvault-api/internal/shared/notify"
)

// State is the session adapter's view of the signed-in user.
type State struct {
	User            *User    `json:"user"`
	Session         *Session `json:"session,omitempty"`
	IsAuthenticated bool     `json:"isAuthenticated"`
	IsLoading       bool     `json:"isLoading"`
}

// RegisterForm is the sign-up form as submitted.
type RegisterForm struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// PasswordForm is the change-password form as submitted.
type PasswordForm struct {
	Current string `json:"current"`
	New     string `json:"new"`
	Confirm string `json:"confirm"`
}

// ProfileUpdate is a partial profile edit.
type ProfileUpdate struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
	Phone  *string `json:"phone"`
}

// Client is the session adapter for one browser session. Each operation makes
// one provider call, reports the outcome to the notifier and returns the
// provider error to the caller.
type Client struct {
	provider Provider
	notifier notify.Notifier

	mu      sync.RWMutex
	session *Session
	user    *User
	loading bool
}

// NewClient builds a client in the loading state. Call Start to resolve it.
func NewClient(provider Provider, notifier notify.Notifier) *Client {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Client{provider: provider, notifier: notifier, loading: true}
}

// Start performs the initial session fetch. A missing or rejected token
// leaves the client signed out without error.
func (c *Client) Start(ctx context.Context, accessToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		c.apply(nil)
		return nil
	}
	session, err := c.provider.GetSession(ctx, accessToken)
	if err != nil {
		c.apply(nil)
		if _, ok := AsError(err); ok {
			return nil
		}
		return err
	}
	c.apply(&session)
	return nil
}

// HandleEvent applies a provider event when it concerns this client's
// session and reports whether the state changed.
func (c *Client) HandleEvent(ev AuthEvent) bool {
	c.mu.RLock()
	current := c.session
	c.mu.RUnlock()
	if current == nil {
		return false
	}

	switch ev.Type {
	case EventSignedOut:
		if ev.SessionID != current.ID {
			return false
		}
		c.apply(nil)
	case EventTokenRefreshed:
		if ev.PreviousSessionID != current.ID || ev.Session == nil {
			return false
		}
		c.apply(ev.Session)
	case EventSignedIn:
		if ev.SessionID != current.ID || ev.Session == nil {
			return false
		}
		c.apply(ev.Session)
	case EventUserUpdated:
		if ev.Account == nil || ev.UserID != current.Account.ID {
			return false
		}
		next := *current
		next.Account = *ev.Account
		c.apply(&next)
	default:
		return false
	}
	return true
}

// Watch applies provider events until ctx ends or the returned stop func is
// called. onChange, if set, receives the state after every applied event.
func (c *Client) Watch(ctx context.Context, onChange func(State)) func() {
	events, unsubscribe := c.provider.Subscribe(0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if c.HandleEvent(ev) && onChange != nil {
					onChange(c.State())
				}
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			<-done
		})
	}
}

// Login signs in with a password. An unconfirmed email is reported to the
// user and is not returned as an error.
func (c *Client) Login(ctx context.Context, email, password string) error {
	c.setLoading(true)
	defer c.setLoading(false)

	session, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		if strings.Contains(err.Error(), ErrEmailNotConfirmed.Message) {
			c.notifier.Notify(notify.Failure("Email Not Verified", "Check your inbox for the verification link."))
			return nil
		}
		c.notifier.Notify(notify.Failure("Login Failed", err.Error()))
		return err
	}
	c.apply(&session)
	c.notifier.Notify(notify.Info("Login Successful", "Welcome back!"))
	return nil
}

// Register creates an account. The user stays signed out until the email is
// confirmed.
func (c *Client) Register(ctx context.Context, email, password, name string) error {
	c.setLoading(true)
	defer c.setLoading(false)

	if _, err := c.provider.SignUp(ctx, email, password, name); err != nil {
		c.notifier.Notify(notify.Failure("Registration Failed", err.Error()))
		return err
	}
	c.notifier.Notify(notify.Info("Registration Successful", "A verification link has been sent to your email."))
	return nil
}

// RegisterForm validates the sign-up form before calling Register.
func (c *Client) RegisterForm(ctx context.Context, form RegisterForm) error {
	if form.Password != form.ConfirmPassword {
		return c.formError(ErrPasswordMismatch)
	}
	if len(form.Password) < MinPasswordLength {
		return c.formError(ErrPasswordTooShort)
	}
	return c.Register(ctx, form.Email, form.Password, form.Name)
}

func (c *Client) ResendVerification(ctx context.Context, email string) error {
	if err := c.provider.Resend(ctx, email); err != nil {
		c.notifier.Notify(notify.Failure("Resend Failed", err.Error()))
		return err
	}
	c.notifier.Notify(notify.Info("Verification Link Resent", "Check your email inbox."))
	return nil
}

// Logout ends the session. It never fails: provider errors are reported to
// the user only, and logging out while signed out succeeds.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.RLock()
	current := c.session
	c.mu.RUnlock()

	if current != nil {
		if err := c.provider.SignOut(ctx, current.AccessToken); err != nil {
			c.notifier.Notify(notify.Failure("Logout Failed", err.Error()))
			return nil
		}
	}
	c.apply(nil)
	c.notifier.Notify(notify.Info("Logged Out", "You have been logged out."))
	return nil
}

// UpdateProfile changes name, avatar or phone.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	return c.updateUser(ctx, UserAttributes{
		Name:      update.Name,
		AvatarURL: update.Avatar,
		Phone:     update.Phone,
	}, notify.Info("Profile Updated", "Your profile was successfully updated."))
}

// ChangePassword validates the form and sets a new password. The current
// password is checked by the provider.
func (c *Client) ChangePassword(ctx context.Context, form PasswordForm) error {
	if form.New != form.Confirm {
		return c.formError(ErrNewPasswordMismatch)
	}
	if len(form.New) < MinPasswordLength {
		return c.formError(ErrPasswordTooShort)
	}
	current := form.Current
	next := form.New
	return c.updateUser(ctx, UserAttributes{Password: &next, CurrentPassword: &current},
		notify.Info("Password Updated", "Your password has been successfully updated"))
}

func (c *Client) updateUser(ctx context.Context, attrs UserAttributes, success notify.Notification) error {
	c.mu.RLock()
	current := c.session
	c.mu.RUnlock()

	if current == nil {
		c.notifier.Notify(notify.Failure("Update Failed", ErrNoUser.Message))
		return ErrNoUser
	}
	account, err := c.provider.UpdateUser(ctx, current.AccessToken, attrs)
	if err != nil {
		c.notifier.Notify(notify.Failure("Update Failed", err.Error()))
		return err
	}
	next := *current
	next.Account = account
	c.apply(&next)
	c.notifier.Notify(success)
	return nil
}

// Refresh rotates the session using its refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) error {
	session, err := c.provider.RefreshSession(ctx, refreshToken)
	if err != nil {
		c.apply(nil)
		return err
	}
	c.apply(&session)
	return nil
}

// State returns a snapshot of the client state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := State{IsLoading: c.loading}
	if c.session != nil {
		session := *c.session
		user := *c.user
		st.Session = &session
		st.User = &user
		st.IsAuthenticated = true
	}
	return st
}

// apply is the single path by which sessions become state, for the initial
// fetch, direct calls and subscription events alike.
func (c *Client) apply(session *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if session == nil {
		c.session = nil
		c.user = nil
		return
	}
	s := *session
	user := DeriveUser(s.Account)
	c.session = &s
	c.user = &user
}

func (c *Client) setLoading(loading bool) {
	c.mu.Lock()
	c.loading = loading
	c.mu.Unlock()
}

func (c *Client) formError(err *Error) error {
	c.notifier.Notify(notify.Failure("Error", err.Message))
	return err
}

// IsValidation reports whether err is a form validation failure raised
// before any provider call.
func IsValidation(err error) bool {
	return errors.Is(err, ErrPasswordMismatch) ||
		errors.Is(err, ErrNewPasswordMismatch) ||
		errors.Is(err, ErrPasswordTooShort)
}
