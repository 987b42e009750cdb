package domain

import (
	"errors"
	"time"
)

// Store-level errors. The usecase layer translates them into *Error values.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrTokenInvalid = errors.New("token is invalid or expired")
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Profile struct {
	Name string
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Profile      Profile
	Verified     bool

	// VerifyTokenHash is the SHA-256 digest of the outstanding verification
	// token. nil once the user is verified.
	VerifyTokenHash      *string
	VerifyTokenExpiresAt *time.Time

	Role        Role
	AdminSecret *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PendingVerification reports whether the user still holds an unconsumed token.
func (u *User) PendingVerification() bool {
	return !u.Verified && u.VerifyTokenHash != nil
}
