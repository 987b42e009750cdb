package authclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

type LoginFields struct {
	Email    string
	Password string
}

type LoginForm struct {
	// Delay postpones the request after Submit. Zero sends immediately.
	Delay time.Duration

	client      *Client
	minPassword int

	mu     sync.Mutex
	fields LoginFields
	sent   LoginFields
	m      machine[LoginResponse]
}

func NewLoginForm(c *Client, minPasswordLength int) *LoginForm {
	if minPasswordLength <= 0 {
		minPasswordLength = DefaultMinPasswordLength
	}
	return &LoginForm{client: c, minPassword: minPasswordLength, m: machine[LoginResponse]{phase: PhaseIdle}}
}

func (f *LoginForm) SetField(name, value string) (Transition[LoginResponse], error) {
	value = strings.TrimSpace(value)

	f.mu.Lock()
	switch name {
	case FieldEmail:
		f.fields.Email = value
	case FieldPassword:
		f.fields.Password = value
	default:
		f.mu.Unlock()
		return Transition[LoginResponse]{}, fmt.Errorf("authclient: unknown login field %q", name)
	}
	f.mu.Unlock()

	return f.m.fieldChanged(), nil
}

func (f *LoginForm) Fields() LoginFields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

func (f *LoginForm) Phase() Phase {
	p, _, _ := f.m.current()
	return p
}

func (f *LoginForm) Err() *FormError {
	_, _, err := f.m.current()
	return err
}

func (f *LoginForm) ValidEmail() bool {
	return validEmail(f.Fields().Email)
}

func (f *LoginForm) ValidPassword() bool {
	return f.validPassword(f.Fields().Password)
}

func (f *LoginForm) validPassword(p string) bool {
	return utf8.RuneCountInString(p) >= f.minPassword
}

// Submit validates the current fields and, if they pass, keeps them for
// Complete.
func (f *LoginForm) Submit() (Transition[LoginResponse], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var invalid []string
	if !validEmail(f.fields.Email) {
		invalid = append(invalid, FieldEmail)
	}
	if !f.validPassword(f.fields.Password) {
		invalid = append(invalid, FieldPassword)
	}
	t, err := f.m.submit(invalid)
	if err == nil && t.To == PhasePending {
		f.sent = f.fields
	}
	return t, err
}

func (f *LoginForm) Complete(ctx context.Context) (Transition[LoginResponse], error) {
	f.mu.Lock()
	fields := f.sent
	f.mu.Unlock()

	return f.m.complete(ctx, f.Delay, func(ctx context.Context) (*LoginResponse, string, error) {
		res, err := f.client.Login(ctx, fields.Email, fields.Password)
		if err != nil {
			return nil, "", err
		}
		return res, "", nil
	})
}

func (f *LoginForm) Run(ctx context.Context) ([]Transition[LoginResponse], error) {
	return run(ctx, f.Submit, f.Complete)
}
