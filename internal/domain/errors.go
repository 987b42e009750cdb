package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindAuth       ErrorKind = "auth"
)

// Messages surfaced to clients verbatim.
const (
	MsgNameRequired        = "Name is required"
	MsgEmailInvalid        = "Please provide a valid email address"
	MsgEmailTaken          = "An account with this email already exists"
	MsgPasswordRequired    = "Password is required"
	MsgTokenRequired       = "Verification token is required"
	MsgTokenMalformed      = "Verification token is malformed"
	MsgTokenNotFound       = "Verification token is invalid or has already been used"
	MsgNoPendingUser       = "No account awaiting verification was found for this email"
	MsgInvalidCredentials  = "Invalid email or password"
	MsgMustVerify          = "Please verify your email before logging in"
	MsgSecretRequired      = "Admin secret is required"
	MsgSecretInvalid       = "Admin secret is incorrect"
	MsgUserNotFound        = "User not found"
	MsgUnauthorized        = "Unauthorized"
	MsgCreateSuccess       = "Account created"
	MsgCreateSuccessVerify = "Account created. Check your inbox for a link to verify your email address."
	MsgResendSuccess       = "A new verification email is on its way"
	MsgVerifySuccess       = "Your email address has been verified. You can now log in."
)

// Error is the workflow error returned to callers. Field names the offending
// input when the failure is tied to one.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func NewAuthError(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// AsError unwraps err into *Error. ok is false for infrastructure failures.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsKind reports whether err is a workflow error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	de, ok := AsError(err)
	return ok && de.Kind == kind
}
