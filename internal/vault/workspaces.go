package vault

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"docvault-api/internal/documents"
	"docvault-api/internal/identity"
	"docvault-api/internal/shared/metrics"
	"docvault-api/internal/shared/telemetry"
)

const (
	defaultWorkspaceCacheSize = 1024
	defaultWorkspaceTTL       = 30 * time.Minute
)

// Lister loads an owner's documents, newest first.
type Lister interface {
	List(ctx context.Context, userID string) ([]documents.Document, error)
}

// Workspace is one owner's view-model behind a mutex.
type Workspace struct {
	owner string
	mu    sync.Mutex
	vm    *ViewModel
}

// Do runs fn with exclusive access to the view-model.
func (w *Workspace) Do(fn func(vm *ViewModel) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn(w.vm)
}

// Workspaces caches per-owner view-models. Entries expire after a period of
// inactivity and are rebuilt from the table on next access.
type Workspaces struct {
	lister Lister
	mu     sync.Mutex
	cache  *expirable.LRU[string, *Workspace]
}

// NewWorkspaces builds a cache holding at most size workspaces.
func NewWorkspaces(lister Lister, size int, ttl time.Duration) *Workspaces {
	if size <= 0 {
		size = defaultWorkspaceCacheSize
	}
	if ttl <= 0 {
		ttl = defaultWorkspaceTTL
	}
	return &Workspaces{
		lister: lister,
		cache:  expirable.NewLRU[string, *Workspace](size, nil, ttl),
	}
}

// Get returns the owner's workspace, loading it on first access.
func (ws *Workspaces) Get(ctx context.Context, owner string) (*Workspace, error) {
	ws.mu.Lock()
	w, ok := ws.cache.Get(owner)
	ws.mu.Unlock()
	metrics.IncWorkspaceCache(ok)
	if ok {
		return w, nil
	}
	return ws.Reload(ctx, owner)
}

// Reload rebuilds the owner's collection from the table. Filter state of an
// existing workspace is kept; shared flags are not.
func (ws *Workspaces) Reload(ctx context.Context, owner string) (*Workspace, error) {
	docs, err := ws.lister.List(ctx, owner)
	if err != nil {
		return nil, err
	}

	ws.mu.Lock()
	w, ok := ws.cache.Get(owner)
	if !ok {
		w = &Workspace{owner: owner, vm: NewViewModel()}
	}
	ws.cache.Add(owner, w)
	ws.mu.Unlock()

	_ = w.Do(func(vm *ViewModel) error {
		vm.Replace(docs)
		return nil
	})
	return w, nil
}

// Drop forgets the owner's workspace.
func (ws *Workspaces) Drop(owner string) {
	ws.mu.Lock()
	ws.cache.Remove(owner)
	ws.mu.Unlock()
}

// Len reports how many workspaces are cached.
func (ws *Workspaces) Len() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.cache.Len()
}

// Watch keeps workspaces in step with sign-ins and sign-outs until ctx ends
// or the returned func is called.
func (ws *Workspaces) Watch(ctx context.Context, provider identity.Provider) func() {
	events, unsubscribe := provider.Subscribe(64)
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
				ws.handle(ctx, ev)
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

func (ws *Workspaces) handle(ctx context.Context, ev identity.AuthEvent) {
	if ev.UserID == "" {
		return
	}
	switch ev.Type {
	case identity.EventSignedIn:
		if _, err := ws.Reload(ctx, ev.UserID); err != nil {
			telemetry.L().Warn("vault.workspace.reload_failed",
				zap.String("user_id", ev.UserID),
				zap.Error(err),
			)
		}
	case identity.EventSignedOut:
		ws.Drop(ev.UserID)
	}
}
