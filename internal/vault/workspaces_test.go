package vault

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"docvault-api/internal/documents"
	"docvault-api/internal/identity"
	"docvault-api/internal/shared/auth"
	"docvault-api/internal/users"
)

func TestWorkspacesGetLoadsOnce(t *testing.T) {
	repo := newFakeRepo("u1", documents.Document{ID: "d1"})
	ws := NewWorkspaces(repo, 4, time.Minute)
	ctx := context.Background()

	first, err := ws.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := ws.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != second || repo.callCount() != 1 {
		t.Fatalf("expected one load and a shared workspace, calls=%d", repo.callCount())
	}
}

func TestWorkspacesReloadKeepsFilter(t *testing.T) {
	repo := newFakeRepo("u1", documents.Document{ID: "d1", Name: "Lease"})
	ws := NewWorkspaces(repo, 4, time.Minute)
	ctx := context.Background()

	w, _ := ws.Get(ctx, "u1")
	_ = w.Do(func(vm *ViewModel) error {
		vm.SetSearch("lease")
		return nil
	})
	repo.docs["u1"] = append(repo.docs["u1"], documents.Document{ID: "d2", Name: "Deed"})

	again, err := ws.Reload(ctx, "u1")
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	_ = again.Do(func(vm *ViewModel) error {
		if vm.Filter().Search != "lease" || len(vm.All()) != 2 {
			t.Fatalf("filter %+v, docs %d", vm.Filter(), len(vm.All()))
		}
		return nil
	})
}

func TestWorkspacesWatchFollowsSignInAndOut(t *testing.T) {
	issuer, err := auth.NewIssuer("test-secret", "test", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	provider := identity.NewLocalProvider(users.NewMemoryRepo(), issuer)
	provider.BcryptCost = bcrypt.MinCost

	repo := newFakeRepo("")
	ws := NewWorkspaces(repo, 4, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := ws.Watch(ctx, provider)
	defer stop()

	session, err := provider.SignInWithOAuth(ctx, identity.OAuthIdentity{Subject: "g-1", Email: "ana@example.com"})
	if err != nil {
		t.Fatalf("SignInWithOAuth: %v", err)
	}
	waitFor(t, func() bool { return ws.Len() == 1 })

	if err := provider.SignOut(ctx, session.AccessToken); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	waitFor(t, func() bool { return ws.Len() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
