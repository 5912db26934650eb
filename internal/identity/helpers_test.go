package identity

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"docvault-api/internal/shared/auth"
	"docvault-api/internal/users"
)

type captureMailer struct {
	mu    sync.Mutex
	links map[string]string
}

func (m *captureMailer) SendVerification(_ context.Context, to, _ string, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links == nil {
		m.links = make(map[string]string)
	}
	m.links[to] = link
	return nil
}

func (m *captureMailer) token(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	link, ok := m.links[email]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no verification mail sent to %s", email)
	}
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link %q: %v", link, err)
	}
	return u.Query().Get("token")
}

func newTestProvider(t *testing.T) (*LocalProvider, *captureMailer) {
	t.Helper()
	issuer, err := auth.NewIssuer("test-secret", "test", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	p := NewLocalProvider(users.NewMemoryRepo(), issuer)
	p.BcryptCost = bcrypt.MinCost
	mailer := &captureMailer{}
	p.Mailer = mailer
	return p, mailer
}

// signUpVerified creates a confirmed account.
func signUpVerified(t *testing.T, p *LocalProvider, mailer *captureMailer, email, password, name string) Account {
	t.Helper()
	ctx := context.Background()
	if _, err := p.SignUp(ctx, email, password, name); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	account, err := p.VerifyEmail(ctx, mailer.token(t, email))
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	return account
}
