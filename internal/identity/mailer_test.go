package identity

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSMTPMailerSendsVerification(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", "587", "bot@example.com", "pw", "")
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	if err := m.SendVerification(context.Background(), "ana@example.com", "Ana", "https://x/verify?token=t1"); err != nil {
		t.Fatalf("SendVerification: %v", err)
	}
	if gotAddr != "smtp.example.com:587" || gotFrom != "bot@example.com" || len(gotTo) != 1 || gotTo[0] != "ana@example.com" {
		t.Fatalf("unexpected envelope: %s %s %v", gotAddr, gotFrom, gotTo)
	}
	body := string(gotMsg)
	for _, want := range []string{"Subject: Confirm your email", "Hello Ana,", "https://x/verify?token=t1"} {
		if !strings.Contains(body, want) {
			t.Fatalf("message missing %q:\n%s", want, body)
		}
	}
}

func TestSMTPMailerWrapsSendError(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", "587", "", "", "bot@example.com")
	boom := errors.New("boom")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }
	if err := m.SendVerification(context.Background(), "a@example.com", "", "link"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestLogMailerLogsLink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := LogMailer{L: zap.New(core)}
	if err := m.SendVerification(context.Background(), "a@example.com", "", "https://x/verify?token=t1"); err != nil {
		t.Fatalf("SendVerification: %v", err)
	}
	entries := logs.FilterMessage("identity.verification.link").All()
	if len(entries) != 1 || entries[0].ContextMap()["link"] != "https://x/verify?token=t1" {
		t.Fatalf("unexpected log entries: %+v", entries)
	}
}
