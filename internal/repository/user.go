package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/authflow/internal/domain"
)

// UserRepository is the user store. Email uniqueness is enforced here, not in
// the usecase: Create returns domain.ErrEmailTaken on conflict.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// SetVerifyToken overwrites the outstanding token of an unverified user.
	// Returns domain.ErrUserNotFound if the user is missing or already verified.
	SetVerifyToken(ctx context.Context, userID, tokenHash string, expiresAt *time.Time) error

	// ClaimVerifyToken atomically marks the holder of tokenHash verified and
	// clears the token. A token can be claimed once; afterwards, and for
	// expired tokens, it returns domain.ErrTokenInvalid.
	ClaimVerifyToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)

	// PromoteAdmin sets role=admin and stamps adminSecret unless a marker is
	// already present.
	PromoteAdmin(ctx context.Context, userID, adminSecret string) (*domain.User, error)

	// DeleteUnverifiedBefore removes at most limit unverified users created
	// before cutoff and reports how many were removed.
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time, limit int) (int, error)
}
