package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers ended sessions until their tokens would have
// expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// MemoryRevocations keeps revoked session IDs in process.
type MemoryRevocations struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

// NewMemoryRevocations builds an empty in-process store.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{items: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRevocations) Revoke(_ context.Context, sessionID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	m.items[sessionID] = until
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.items[sessionID]
	if !ok {
		return false, nil
	}
	if m.now().After(until) {
		delete(m.items, sessionID)
		return false, nil
	}
	return true, nil
}

// sweep drops entries past their expiry. Callers hold mu.
func (m *MemoryRevocations) sweep() {
	now := m.now()
	for id, until := range m.items {
		if now.After(until) {
			delete(m.items, id)
		}
	}
}

// RedisRevocations stores revoked session IDs as expiring Redis keys so every
// API instance sees a sign-out.
type RedisRevocations struct {
	Client redis.Cmdable
	Prefix string
	now    func() time.Time
}

// NewRedisRevocations builds a store on an existing client.
func NewRedisRevocations(client redis.Cmdable) *RedisRevocations {
	return &RedisRevocations{Client: client, Prefix: "docvault:revoked:", now: time.Now}
}

func (r *RedisRevocations) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.Client.Set(ctx, r.revocationKey(sessionID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis revoke: %w", err)
	}
	return nil
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.Client.Exists(ctx, r.revocationKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis lookup: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRevocations) revocationKey(sessionID string) string {
	return r.Prefix + sessionID
}
