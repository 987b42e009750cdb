package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ErlanBelekov/authflow/internal/domain"
	"github.com/ErlanBelekov/authflow/internal/metrics"
	"github.com/ErlanBelekov/authflow/internal/password"
	"github.com/ErlanBelekov/authflow/internal/repository"
	"github.com/ErlanBelekov/authflow/internal/token"
	"github.com/go-playground/validator/v10"
)

// bcrypt ignores everything past 72 bytes.
const maxPasswordBytes = 72

// Mailer sends the account emails. Failures are logged by the usecase and
// never undo the operation that triggered them.
type Mailer interface {
	SendWelcome(ctx context.Context, u *domain.User) error
	SendVerification(ctx context.Context, u *domain.User, rawToken string) error
}

// SessionIssuer signs session tokens for authenticated users.
type SessionIssuer interface {
	Issue(u *domain.User) (string, time.Time, error)
}

type AuthConfig struct {
	RequireVerification bool
	MinPasswordLength   int
	VerifyTokenBytes    int
	// VerifyTokenTTL of zero means verification tokens never expire.
	VerifyTokenTTL  time.Duration
	AdminSecret     string
	AdminTokenBytes int
	BcryptCost      int
}

type AuthUsecase struct {
	users    repository.UserRepository
	mailer   Mailer
	sessions SessionIssuer
	cfg      AuthConfig
	logger   *slog.Logger
	validate *validator.Validate
	decoy    *password.Decoy
	now      func() time.Time
}

func NewAuthUsecase(users repository.UserRepository, mailer Mailer, sessions SessionIssuer, cfg AuthConfig, logger *slog.Logger) *AuthUsecase {
	return &AuthUsecase{
		users:    users,
		mailer:   mailer,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
		validate: validator.New(),
		decoy:    password.NewDecoy(cfg.BcryptCost),
		now:      time.Now,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// RegisterResult carries either VerifyToken (verification required) or
// SessionToken/ExpiresAt (account usable immediately), never both.
type RegisterResult struct {
	User         *domain.User
	VerifyToken  string
	SessionToken string
	ExpiresAt    time.Time
}

func (r *RegisterResult) NeedsVerification() bool {
	return r.VerifyToken != ""
}

type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

type PromoteResult struct {
	User   *domain.User
	Secret string
}

// Register validates name, email and password in that order, creates the
// account and sends either the welcome or the verify-account email.
func (u *AuthUsecase) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", domain.MsgNameRequired)
	}
	email, err := u.normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if err = u.checkPassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := password.Hash(input.Password, u.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Profile:      domain.Profile{Name: name},
		Role:         domain.RoleUser,
		Verified:     !u.cfg.RequireVerification,
	}

	var rawToken string
	if u.cfg.RequireVerification {
		rawToken, err = token.Generate(u.cfg.VerifyTokenBytes)
		if err != nil {
			return nil, err
		}
		hashed := token.Hash(rawToken)
		user.VerifyTokenHash = &hashed
		user.VerifyTokenExpiresAt = u.verifyExpiry()
	}

	created, err := u.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.NewValidationError("email", domain.MsgEmailTaken)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if u.cfg.RequireVerification {
		metrics.RegistrationsTotal.WithLabelValues("verify").Inc()
		u.notify(ctx, "verify", created, u.mailer.SendVerification(ctx, created, rawToken))
		return &RegisterResult{User: created, VerifyToken: rawToken}, nil
	}

	signed, exp, err := u.sessions.Issue(created)
	if err != nil {
		return nil, err
	}
	metrics.RegistrationsTotal.WithLabelValues("session").Inc()
	u.notify(ctx, "welcome", created, u.mailer.SendWelcome(ctx, created))
	return &RegisterResult{User: created, SessionToken: signed, ExpiresAt: exp}, nil
}

// ResendVerification replaces the outstanding token of an unverified account
// and emails the new one. The previous token stops working.
func (u *AuthUsecase) ResendVerification(ctx context.Context, emailAddr string) (string, error) {
	email, err := u.normalizeEmail(emailAddr)
	if err != nil {
		return "", err
	}

	user, err := u.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.NewNotFoundError(domain.MsgNoPendingUser)
		}
		return "", fmt.Errorf("find user: %w", err)
	}
	if user.Verified {
		return "", domain.NewNotFoundError(domain.MsgNoPendingUser)
	}

	rawToken, err := token.Generate(u.cfg.VerifyTokenBytes)
	if err != nil {
		return "", err
	}
	if err = u.users.SetVerifyToken(ctx, user.ID, token.Hash(rawToken), u.verifyExpiry()); err != nil {
		// verified (or purged) between the lookup and the write
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.NewNotFoundError(domain.MsgNoPendingUser)
		}
		return "", fmt.Errorf("set verify token: %w", err)
	}

	metrics.VerificationResendsTotal.Inc()
	u.notify(ctx, "verify", user, u.mailer.SendVerification(ctx, user, rawToken))
	return rawToken, nil
}

// Verify consumes a verification token. Each token verifies exactly once.
func (u *AuthUsecase) Verify(ctx context.Context, rawToken string) (*domain.User, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		metrics.VerificationsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.NewValidationError("token", domain.MsgTokenRequired)
	}
	if !token.WellFormed(rawToken) {
		metrics.VerificationsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.NewValidationError("token", domain.MsgTokenMalformed)
	}

	user, err := u.users.ClaimVerifyToken(ctx, token.Hash(rawToken), u.now())
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			metrics.VerificationsTotal.WithLabelValues("not_found").Inc()
			return nil, domain.NewNotFoundError(domain.MsgTokenNotFound)
		}
		return nil, fmt.Errorf("claim verify token: %w", err)
	}

	metrics.VerificationsTotal.WithLabelValues("verified").Inc()
	u.logger.InfoContext(ctx, "user verified", "user_id", user.ID)
	return user, nil
}

// Login checks credentials first; the verification rule only applies once
// the caller has proven they own the account.
func (u *AuthUsecase) Login(ctx context.Context, emailAddr, plain string) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(emailAddr))
	if email == "" {
		return nil, domain.NewValidationError("email", domain.MsgEmailInvalid)
	}
	if plain == "" {
		return nil, domain.NewValidationError("password", domain.MsgPasswordRequired)
	}

	user, err := u.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// same bcrypt work as a wrong password
			u.decoy.Compare(plain)
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, domain.NewAuthError(domain.MsgInvalidCredentials)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err = password.Compare(user.PasswordHash, plain); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, domain.NewAuthError(domain.MsgInvalidCredentials)
		}
		return nil, err
	}

	if u.cfg.RequireVerification && !user.Verified {
		metrics.LoginsTotal.WithLabelValues("unverified").Inc()
		return nil, domain.NewAuthError(domain.MsgMustVerify)
	}

	signed, exp, err := u.sessions.Issue(user)
	if err != nil {
		return nil, err
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return &LoginResult{User: user, Token: signed, ExpiresAt: exp}, nil
}

// PromoteAdmin grants the admin role to userID when secret matches the
// configured admin secret. Promoting an admin again returns the marker
// stamped the first time.
func (u *AuthUsecase) PromoteAdmin(ctx context.Context, userID, secret string) (*PromoteResult, error) {
	if secret == "" {
		return nil, domain.NewValidationError("secret", domain.MsgSecretRequired)
	}
	if u.cfg.AdminSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(u.cfg.AdminSecret)) != 1 {
		metrics.AdminPromotionsTotal.WithLabelValues("denied").Inc()
		u.logger.WarnContext(ctx, "admin promotion denied", "target_user_id", userID)
		return nil, domain.NewAuthError(domain.MsgSecretInvalid)
	}

	marker, err := token.Generate(u.cfg.AdminTokenBytes)
	if err != nil {
		return nil, err
	}

	user, err := u.users.PromoteAdmin(ctx, userID, marker)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.AdminPromotionsTotal.WithLabelValues("not_found").Inc()
			return nil, domain.NewNotFoundError(domain.MsgUserNotFound)
		}
		return nil, fmt.Errorf("promote admin: %w", err)
	}

	metrics.AdminPromotionsTotal.WithLabelValues("promoted").Inc()
	u.logger.InfoContext(ctx, "user promoted to admin", "target_user_id", user.ID)

	var stamped string
	if user.AdminSecret != nil {
		stamped = *user.AdminSecret
	}
	return &PromoteResult{User: user, Secret: stamped}, nil
}

// CurrentUser resolves an authenticated session subject.
func (u *AuthUsecase) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.NewAuthError(domain.MsgUnauthorized)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (u *AuthUsecase) normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if err := u.validate.Var(email, "required,email"); err != nil {
		return "", domain.NewValidationError("email", domain.MsgEmailInvalid)
	}
	return email, nil
}

func (u *AuthUsecase) checkPassword(plain string) error {
	if plain == "" {
		return domain.NewValidationError("password", domain.MsgPasswordRequired)
	}
	if utf8.RuneCountInString(plain) < u.cfg.MinPasswordLength {
		return domain.NewValidationError("password",
			fmt.Sprintf("Password must be at least %d characters", u.cfg.MinPasswordLength))
	}
	if len(plain) > maxPasswordBytes {
		return domain.NewValidationError("password",
			fmt.Sprintf("Password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

func (u *AuthUsecase) verifyExpiry() *time.Time {
	if u.cfg.VerifyTokenTTL <= 0 {
		return nil
	}
	exp := u.now().Add(u.cfg.VerifyTokenTTL)
	return &exp
}

func (u *AuthUsecase) notify(ctx context.Context, template string, user *domain.User, err error) {
	if err == nil {
		return
	}
	u.logger.ErrorContext(ctx, "send account email",
		"template", template,
		"user_id", user.ID,
		"error", err,
	)
}
