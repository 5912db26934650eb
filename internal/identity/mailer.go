package identity

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Mailer delivers verification links.
type Mailer interface {
	SendVerification(ctx context.Context, to, name, link string) error
}

// SMTPMailer sends plain-text mail through an SMTP relay.
type SMTPMailer struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer builds a mailer using PLAIN auth when a username is set.
func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	if from == "" {
		from = username
	}
	return &SMTPMailer{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		send:     smtp.SendMail,
	}
}

func (m *SMTPMailer) SendVerification(_ context.Context, to, name, link string) error {
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	msg := verificationMessage(m.From, to, name, link)
	addr := fmt.Sprintf("%s:%s", m.Host, m.Port)
	if err := m.send(addr, auth, m.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}
	return nil
}

func verificationMessage(from, to, name, link string) []byte {
	greeting := "Hello"
	if name = strings.TrimSpace(name); name != "" {
		greeting += " " + name
	}
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: Confirm your email\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(greeting + ",\r\n\r\n")
	b.WriteString("Follow this link to confirm your email address:\r\n")
	b.WriteString(link + "\r\n")
	return []byte(b.String())
}

// LogMailer writes the link to the log instead of sending mail. Used when no
// SMTP relay is configured.
type LogMailer struct {
	L *zap.Logger
}

func (m LogMailer) SendVerification(_ context.Context, to, _ string, link string) error {
	if m.L != nil {
		m.L.Info("identity.verification.link", zap.String("to", to), zap.String("link", link))
	}
	return nil
}
