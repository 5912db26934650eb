package users

import (
	"context"
	"strings"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu            sync.RWMutex
	users         map[string]User
	verifications map[string]Verification
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:         make(map[string]User),
		verifications: make(map[string]Verification),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrEmailTaken
		}
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.find(ctx, func(u User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *MemoryRepo) GetByGoogleSub(ctx context.Context, sub string) (User, error) {
	if sub == "" {
		return User{}, ErrNotFound
	}
	return r.find(ctx, func(u User) bool { return u.GoogleSub == sub })
}

func (r *MemoryRepo) find(ctx context.Context, match func(User) bool) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepo) Update(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepo) CreateVerification(ctx context.Context, v Verification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[v.UserID]; !ok {
		return ErrNotFound
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	r.verifications[v.Token] = v
	return nil
}

func (r *MemoryRepo) ConsumeVerification(ctx context.Context, token string, now time.Time) (Verification, error) {
	if err := ctx.Err(); err != nil {
		return Verification{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.verifications[token]
	if !ok || v.ConsumedAt != nil {
		return Verification{}, ErrTokenInvalid
	}
	if now.After(v.ExpiresAt) {
		return Verification{}, ErrTokenExpired
	}
	consumed := now
	v.ConsumedAt = &consumed
	r.verifications[token] = v
	return v, nil
}

var _ Repo = (*MemoryRepo)(nil)
