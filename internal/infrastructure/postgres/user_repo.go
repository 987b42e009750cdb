package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/authflow/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

const userColumns = `id, email, password_hash, name, verified, verify_token_hash,
	verify_token_expires_at, role, admin_secret, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	role := u.Role
	if role == "" {
		role = domain.RoleUser
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name, verified, verify_token_hash, verify_token_expires_at, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		u.Email, u.PasswordHash, u.Profile.Name, u.Verified, u.VerifyTokenHash, u.VerifyTokenExpiresAt, role,
	)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	// a malformed id can never match and would otherwise surface as 22P02
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrUserNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *UserRepository) SetVerifyToken(ctx context.Context, userID, tokenHash string, expiresAt *time.Time) error {
	if _, err := uuid.Parse(userID); err != nil {
		return domain.ErrUserNotFound
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET    verify_token_hash       = $2,
		       verify_token_expires_at = $3,
		       updated_at              = NOW()
		WHERE  id = $1 AND NOT verified`,
		userID, tokenHash, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("set verify token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) ClaimVerifyToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	// Single statement: concurrent claims of the same token serialize on the
	// row lock and only the first sees a matching verify_token_hash.
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET    verified                = TRUE,
		       verify_token_hash       = NULL,
		       verify_token_expires_at = NULL,
		       updated_at              = NOW()
		WHERE  verify_token_hash = $1
		  AND  (verify_token_expires_at IS NULL OR verify_token_expires_at > $2)
		RETURNING `+userColumns,
		tokenHash, now,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("claim verify token: %w", err)
	}
	return u, nil
}

func (r *UserRepository) PromoteAdmin(ctx context.Context, userID, adminSecret string) (*domain.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, domain.ErrUserNotFound
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET    role         = 'admin',
		       admin_secret = COALESCE(admin_secret, $2),
		       updated_at   = NOW()
		WHERE  id = $1
		RETURNING `+userColumns,
		userID, adminSecret,
	)
	return scanUser(row)
}

func (r *UserRepository) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM users
		WHERE id IN (
			SELECT id FROM users
			WHERE  NOT verified
			  AND  created_at < $1
			ORDER BY created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("delete unverified users: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Ping satisfies health.Pinger.
func (r *UserRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Profile.Name, &u.Verified, &u.VerifyTokenHash,
		&u.VerifyTokenExpiresAt, &u.Role, &u.AdminSecret, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
