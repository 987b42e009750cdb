package authclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// DefaultMinPasswordLength matches the server default.
const DefaultMinPasswordLength = 6

const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldPasswordConfirm = "passwordConfirm"
	FieldToken           = "token"
)

type SignUpFields struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
}

type SignUpForm struct {
	// Delay postpones the request after Submit. Zero sends immediately.
	Delay time.Duration

	client      *Client
	minPassword int

	mu     sync.Mutex
	fields SignUpFields
	sent   SignUpFields
	m      machine[SignUpResponse]
}

func NewSignUpForm(c *Client, minPasswordLength int) *SignUpForm {
	if minPasswordLength <= 0 {
		minPasswordLength = DefaultMinPasswordLength
	}
	return &SignUpForm{client: c, minPassword: minPasswordLength, m: machine[SignUpResponse]{phase: PhaseIdle}}
}

// SetField stores a trimmed value. Editing after a failed submission clears
// the error and returns the form to idle.
func (f *SignUpForm) SetField(name, value string) (Transition[SignUpResponse], error) {
	value = strings.TrimSpace(value)

	f.mu.Lock()
	switch name {
	case FieldName:
		f.fields.Name = value
	case FieldEmail:
		f.fields.Email = value
	case FieldPassword:
		f.fields.Password = value
	case FieldPasswordConfirm:
		f.fields.PasswordConfirm = value
	default:
		f.mu.Unlock()
		return Transition[SignUpResponse]{}, fmt.Errorf("authclient: unknown sign-up field %q", name)
	}
	f.mu.Unlock()

	return f.m.fieldChanged(), nil
}

func (f *SignUpForm) Fields() SignUpFields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

func (f *SignUpForm) Phase() Phase {
	p, _, _ := f.m.current()
	return p
}

func (f *SignUpForm) Submitted() bool {
	_, s, _ := f.m.current()
	return s
}

func (f *SignUpForm) Err() *FormError {
	_, _, err := f.m.current()
	return err
}

// Invalid lists the fields that currently fail local validation.
func (f *SignUpForm) Invalid() []string {
	return f.invalid(f.Fields())
}

func (f *SignUpForm) invalid(fields SignUpFields) []string {
	var invalid []string
	if fields.Name == "" {
		invalid = append(invalid, FieldName)
	}
	if !validEmail(fields.Email) {
		invalid = append(invalid, FieldEmail)
	}
	if utf8.RuneCountInString(fields.Password) < f.minPassword {
		invalid = append(invalid, FieldPassword)
	}
	if fields.Password != fields.PasswordConfirm {
		invalid = append(invalid, FieldPasswordConfirm)
	}
	return invalid
}

func (f *SignUpForm) Valid() bool {
	return len(f.Invalid()) == 0
}

// PasswordTooShort is true once something has been typed that is shorter than
// the minimum.
func (f *SignUpForm) PasswordTooShort() bool {
	p := f.Fields().Password
	return p != "" && utf8.RuneCountInString(p) < f.minPassword
}

func (f *SignUpForm) PasswordsDontMatch() bool {
	fields := f.Fields()
	return fields.PasswordConfirm != "" && fields.Password != fields.PasswordConfirm
}

// Submit marks the form submitted and moves it to pending if it is valid.
// The validated values are the ones Complete sends, whatever SetField does
// in between.
func (f *SignUpForm) Submit() (Transition[SignUpResponse], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, err := f.m.submit(f.invalid(f.fields))
	if err == nil && t.To == PhasePending {
		f.sent = f.fields
	}
	return t, err
}

// Complete sends the pending sign-up.
func (f *SignUpForm) Complete(ctx context.Context) (Transition[SignUpResponse], error) {
	f.mu.Lock()
	fields := f.sent
	f.mu.Unlock()

	return f.m.complete(ctx, f.Delay, func(ctx context.Context) (*SignUpResponse, string, error) {
		res, err := f.client.SignUp(ctx, SignUpRequest{
			Name:     fields.Name,
			Email:    fields.Email,
			Password: fields.Password,
		})
		if err != nil {
			return nil, "", err
		}
		return res, res.Message, nil
	})
}

// Run is Submit followed by Complete when the form was valid.
func (f *SignUpForm) Run(ctx context.Context) ([]Transition[SignUpResponse], error) {
	return run(ctx, f.Submit, f.Complete)
}

func run[T any](ctx context.Context, submit func() (Transition[T], error), complete func(context.Context) (Transition[T], error)) ([]Transition[T], error) {
	first, err := submit()
	if err != nil {
		return nil, err
	}
	steps := []Transition[T]{first}
	if first.To != PhasePending {
		return steps, nil
	}
	second, err := complete(ctx)
	return append(steps, second), err
}
