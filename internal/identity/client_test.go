package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"docvault-api/internal/shared/notify"
)

func TestLoginEmailNotConfirmedIsReportedNotReturned(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	if _, err := p.SignUp(ctx, "ana@example.com", "secret1", "Ana"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	rec := &notify.Recorder{}
	client := NewClient(p, rec)
	if err := client.Login(ctx, "ana@example.com", "secret1"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	st := client.State()
	if st.IsAuthenticated || st.User != nil || st.IsLoading {
		t.Fatalf("unexpected state: %+v", st)
	}
	want := notify.Failure("Email Not Verified", "Check your inbox for the verification link.")
	if got, _ := rec.Last(); got != want {
		t.Fatalf("notification = %+v, want %+v", got, want)
	}
}

func TestLoginFailureNotifiesAndReturnsError(t *testing.T) {
	p, mailer := newTestProvider(t)
	signUpVerified(t, p, mailer, "ana@example.com", "secret1", "Ana")

	rec := &notify.Recorder{}
	client := NewClient(p, rec)
	err := client.Login(context.Background(), "ana@example.com", "wrong-password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	got, _ := rec.Last()
	if got.Title != "Login Failed" || got.Description != "Invalid login credentials" || got.Variant != notify.VariantDestructive {
		t.Fatalf("unexpected notification: %+v", got)
	}
	if client.State().IsAuthenticated {
		t.Fatal("client should stay signed out")
	}
}

func TestLoginSuccessDerivesUser(t *testing.T) {
	p, mailer := newTestProvider(t)
	signUpVerified(t, p, mailer, "ana.lima@example.com", "secret1", "")

	rec := &notify.Recorder{}
	client := NewClient(p, rec)
	if err := client.Login(context.Background(), "ana.lima@example.com", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	st := client.State()
	if !st.IsAuthenticated || st.User == nil {
		t.Fatalf("expected authenticated state, got %+v", st)
	}
	if st.User.Name != "ana.lima" || !st.User.EmailVerified {
		t.Fatalf("unexpected user: %+v", st.User)
	}
	if got, _ := rec.Last(); got != notify.Info("Login Successful", "Welcome back!") {
		t.Fatalf("unexpected notification: %+v", got)
	}
}

func TestLogoutWhileSignedOutIsIdempotent(t *testing.T) {
	p, _ := newTestProvider(t)
	rec := &notify.Recorder{}
	client := NewClient(p, rec)
	if err := client.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := client.Logout(context.Background()); err != nil {
			t.Fatalf("Logout #%d: %v", i+1, err)
		}
		if client.State().User != nil {
			t.Fatalf("user should stay nil after logout #%d", i+1)
		}
	}
	if got, _ := rec.Last(); got.Title != "Logged Out" {
		t.Fatalf("unexpected notification: %+v", got)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	p, mailer := newTestProvider(t)
	signUpVerified(t, p, mailer, "ana@example.com", "secret1", "Ana")
	ctx := context.Background()

	client := NewClient(p, nil)
	if err := client.Login(ctx, "ana@example.com", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	token := client.State().Session.AccessToken
	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := p.GetSession(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
}

func TestStartAndEventsConvergeOnSameUser(t *testing.T) {
	p, mailer := newTestProvider(t)
	signUpVerified(t, p, mailer, "ana@example.com", "secret1", "Ana")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := NewClient(p, nil)
	if err := first.Login(ctx, "ana@example.com", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	token := first.State().Session.AccessToken

	second := NewClient(p, nil)
	if err := second.Start(ctx, token); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if *second.State().User != *first.State().User {
		t.Fatalf("initial fetch %+v differs from login %+v", second.State().User, first.State().User)
	}

	changes := make(chan State, 4)
	stop := second.Watch(ctx, func(st State) { changes <- st })
	defer stop()

	name := "Ana Maria"
	if err := first.UpdateProfile(ctx, ProfileUpdate{Name: &name}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	select {
	case st := <-changes:
		if *st.User != *first.State().User || st.User.Name != "Ana Maria" {
			t.Fatalf("event state %+v differs from %+v", st.User, first.State().User)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for USER_UPDATED")
	}

	if err := first.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	select {
	case st := <-changes:
		if st.IsAuthenticated || st.User != nil {
			t.Fatalf("expected signed-out state, got %+v", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SIGNED_OUT")
	}
}

func TestHandleEventIgnoresOtherSessions(t *testing.T) {
	p, mailer := newTestProvider(t)
	signUpVerified(t, p, mailer, "ana@example.com", "secret1", "Ana")
	client := NewClient(p, nil)
	if err := client.Login(context.Background(), "ana@example.com", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	tests := []AuthEvent{
		{Type: EventSignedOut, SessionID: "someone-else"},
		{Type: EventTokenRefreshed, PreviousSessionID: "someone-else", Session: &Session{ID: "x"}},
		{Type: EventUserUpdated, UserID: "someone-else", Account: &Account{ID: "someone-else"}},
		{Type: "UNKNOWN"},
	}
	for _, ev := range tests {
		if client.HandleEvent(ev) {
			t.Fatalf("event %+v should be ignored", ev)
		}
	}
	if !client.State().IsAuthenticated {
		t.Fatal("client should still be signed in")
	}

	signedOut := NewClient(p, nil)
	if signedOut.HandleEvent(AuthEvent{Type: EventSignedIn, Session: client.State().Session}) {
		t.Fatal("signed-out client must not adopt another session")
	}
}

func TestUpdateProfileWithoutUser(t *testing.T) {
	p, _ := newTestProvider(t)
	rec := &notify.Recorder{}
	client := NewClient(p, rec)
	name := "x"
	if err := client.UpdateProfile(context.Background(), ProfileUpdate{Name: &name}); !errors.Is(err, ErrNoUser) {
		t.Fatalf("expected ErrNoUser, got %v", err)
	}
	if got, _ := rec.Last(); got != notify.Failure("Update Failed", "No user logged in") {
		t.Fatalf("unexpected notification: %+v", got)
	}
}

func TestRegisterFormValidationSkipsProvider(t *testing.T) {
	tests := []struct {
		name string
		form RegisterForm
		want *Error
	}{
		{
			name: "mismatch",
			form: RegisterForm{Email: "a@example.com", Password: "secret1", ConfirmPassword: "secret2"},
			want: ErrPasswordMismatch,
		},
		{
			name: "too short",
			form: RegisterForm{Email: "a@example.com", Password: "abc", ConfirmPassword: "abc"},
			want: ErrPasswordTooShort,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestProvider(t)
			rec := &notify.Recorder{}
			err := NewClient(p, rec).RegisterForm(context.Background(), tt.form)
			if !errors.Is(err, tt.want) || !IsValidation(err) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if got, _ := rec.Last(); got != notify.Failure("Error", tt.want.Message) {
				t.Fatalf("unexpected notification: %+v", got)
			}
			if _, err := p.Users.GetByEmail(context.Background(), "a@example.com"); err == nil {
				t.Fatal("no account should be created")
			}
		})
	}
}

func TestRegisterSuccessNotifies(t *testing.T) {
	p, _ := newTestProvider(t)
	rec := &notify.Recorder{}
	form := RegisterForm{Name: "Ana", Email: "ana@example.com", Password: "secret1", ConfirmPassword: "secret1"}
	if err := NewClient(p, rec).RegisterForm(context.Background(), form); err != nil {
		t.Fatalf("RegisterForm: %v", err)
	}
	want := notify.Info("Registration Successful", "A verification link has been sent to your email.")
	if got, _ := rec.Last(); got != want {
		t.Fatalf("notification = %+v, want %+v", got, want)
	}

	rec = &notify.Recorder{}
	err := NewClient(p, rec).Register(context.Background(), "ana@example.com", "secret1", "Ana")
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if got, _ := rec.Last(); got.Title != "Registration Failed" {
		t.Fatalf("unexpected notification: %+v", got)
	}
}

func TestChangePassword(t *testing.T) {
	p, mailer := newTestProvider(t)
	signUpVerified(t, p, mailer, "ana@example.com", "secret1", "Ana")
	ctx := context.Background()

	rec := &notify.Recorder{}
	client := NewClient(p, rec)
	if err := client.Login(ctx, "ana@example.com", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	err := client.ChangePassword(ctx, PasswordForm{Current: "secret1", New: "newpass1", Confirm: "newpass2"})
	if !errors.Is(err, ErrNewPasswordMismatch) {
		t.Fatalf("expected ErrNewPasswordMismatch, got %v", err)
	}
	err = client.ChangePassword(ctx, PasswordForm{Current: "nope", New: "newpass1", Confirm: "newpass1"})
	if !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if err := client.ChangePassword(ctx, PasswordForm{Current: "secret1", New: "newpass1", Confirm: "newpass1"}); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if got, _ := rec.Last(); got.Title != "Password Updated" {
		t.Fatalf("unexpected notification: %+v", got)
	}
	if _, err := p.SignInWithPassword(ctx, "ana@example.com", "newpass1"); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	p, mailer := newTestProvider(t)
	signUpVerified(t, p, mailer, "ana@example.com", "secret1", "Ana")
	ctx := context.Background()

	client := NewClient(p, nil)
	if err := client.Login(ctx, "ana@example.com", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	old := *client.State().Session
	if err := client.Refresh(ctx, old.RefreshToken); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	next := client.State().Session
	if next.ID == old.ID || next.AccessToken == old.AccessToken {
		t.Fatal("expected a new session")
	}
	if _, err := p.GetSession(ctx, old.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("old access token should be revoked, got %v", err)
	}
	if err := client.Refresh(ctx, old.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("old refresh token should be revoked, got %v", err)
	}
}
