package identity

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRevocationsExpire(t *testing.T) {
	store := NewMemoryRevocations()
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Revoke(ctx, "sid-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if revoked, _ := store.IsRevoked(ctx, "sid-1"); !revoked {
		t.Fatal("expected sid-1 revoked")
	}
	if revoked, _ := store.IsRevoked(ctx, "sid-2"); revoked {
		t.Fatal("sid-2 was never revoked")
	}

	now = now.Add(2 * time.Hour)
	if revoked, _ := store.IsRevoked(ctx, "sid-1"); revoked {
		t.Fatal("revocation should lapse once the session would have expired")
	}
}

func TestRedisRevocationKey(t *testing.T) {
	store := NewRedisRevocations(nil)
	if got := store.revocationKey("abc"); got != "docvault:revoked:abc" {
		t.Fatalf("key = %q", got)
	}
	store.Prefix = "test:"
	if got := store.revocationKey("abc"); got != "test:abc" {
		t.Fatalf("key = %q", got)
	}
}

func TestRedisRevokePastExpiryIsNoop(t *testing.T) {
	store := NewRedisRevocations(nil)
	// A nil client would panic if Revoke reached Redis.
	if err := store.Revoke(context.Background(), "sid", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
}
