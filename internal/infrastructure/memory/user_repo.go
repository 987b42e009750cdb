// Package memory is an in-process user store for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/authflow/internal/domain"
	"github.com/google/uuid"
)

type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string // lower(email) -> id
	now     func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// Ping satisfies health.Pinger.
func (r *UserRepository) Ping(_ context.Context) error { return nil }

func (r *UserRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, taken := r.byEmail[key]; taken {
		return nil, domain.ErrEmailTaken
	}

	u := clone(user)
	u.ID = uuid.NewString()
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	now := r.now()
	u.CreatedAt, u.UpdatedAt = now, now

	r.byID[u.ID] = u
	r.byEmail[key] = u.ID
	return clone(u), nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return clone(u), nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *UserRepository) SetVerifyToken(_ context.Context, userID, tokenHash string, expiresAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok || u.Verified {
		return domain.ErrUserNotFound
	}
	u.VerifyTokenHash = &tokenHash
	u.VerifyTokenExpiresAt = copyTime(expiresAt)
	u.UpdatedAt = r.now()
	return nil
}

func (r *UserRepository) ClaimVerifyToken(_ context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.VerifyTokenHash == nil || *u.VerifyTokenHash != tokenHash {
			continue
		}
		if u.VerifyTokenExpiresAt != nil && !u.VerifyTokenExpiresAt.After(now) {
			return nil, domain.ErrTokenInvalid
		}
		u.Verified = true
		u.VerifyTokenHash = nil
		u.VerifyTokenExpiresAt = nil
		u.UpdatedAt = r.now()
		return clone(u), nil
	}
	return nil, domain.ErrTokenInvalid
}

func (r *UserRepository) PromoteAdmin(_ context.Context, userID, adminSecret string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Role = domain.RoleAdmin
	if u.AdminSecret == nil {
		u.AdminSecret = &adminSecret
	}
	u.UpdatedAt = r.now()
	return clone(u), nil
}

func (r *UserRepository) DeleteUnverifiedBefore(_ context.Context, cutoff time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []*domain.User
	for _, u := range r.byID {
		if !u.Verified && u.CreatedAt.Before(cutoff) {
			stale = append(stale, u)
		}
	}
	// oldest first, matching the postgres ORDER BY
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	if len(stale) > limit {
		stale = stale[:limit]
	}
	for _, u := range stale {
		delete(r.byID, u.ID)
		delete(r.byEmail, strings.ToLower(u.Email))
	}
	return len(stale), nil
}

func clone(u *domain.User) *domain.User {
	c := *u
	if u.VerifyTokenHash != nil {
		h := *u.VerifyTokenHash
		c.VerifyTokenHash = &h
	}
	c.VerifyTokenExpiresAt = copyTime(u.VerifyTokenExpiresAt)
	if u.AdminSecret != nil {
		s := *u.AdminSecret
		c.AdminSecret = &s
	}
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
