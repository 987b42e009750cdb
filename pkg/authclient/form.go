package authclient

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

type Phase string

const (
	PhaseIdle Phase = "idle"
	// PhaseSubmitted means the user submitted but local validation failed.
	PhaseSubmitted Phase = "submitted"
	PhasePending   Phase = "pending"
	PhaseSuccess   Phase = "success"
	PhaseError     Phase = "error"
)

const msgRequestFailed = "Something went wrong. Please try again."

var (
	ErrSubmissionInFlight = errors.New("authclient: a submission is already in flight")
	ErrNotPending         = errors.New("authclient: nothing to complete, call Submit first")
)

// FormError is a failure ready to show to the user. Message is plain text
// with control characters removed; escape it when rendering into HTML.
type FormError struct {
	Field   string
	Message string
}

// Transition describes one state change. Callers apply it to whatever state
// container their UI uses; the forms never publish it anywhere.
type Transition[T any] struct {
	From Phase
	To   Phase
	// Invalid lists the fields that failed local validation (To == PhaseSubmitted).
	Invalid []string
	// Err is set when To == PhaseError.
	Err *FormError
	// Result is set when To == PhaseSuccess.
	Result *T
	// Message is the server message that came with Result, sanitized like
	// FormError.Message.
	Message string
}

// Changed reports whether the transition moved to a different phase.
func (t Transition[T]) Changed() bool {
	return t.From != t.To
}

var validate = validator.New()

func validEmail(s string) bool {
	return s != "" && validate.Var(s, "email") == nil
}

// sanitize strips control characters and surrounding space from server text.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// machine is the submission lifecycle shared by every form.
type machine[T any] struct {
	mu        sync.Mutex
	phase     Phase
	submitted bool
	inFlight  bool
	err       *FormError
}

func (m *machine[T]) current() (Phase, bool, *FormError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase, m.submitted, m.err
}

// submit marks the form submitted and moves to pending when invalid is empty.
func (m *machine[T]) submit(invalid []string) (Transition[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhasePending {
		return Transition[T]{From: m.phase, To: m.phase}, ErrSubmissionInFlight
	}

	from := m.phase
	m.submitted = true
	m.err = nil
	if len(invalid) > 0 {
		m.phase = PhaseSubmitted
		return Transition[T]{From: from, To: m.phase, Invalid: invalid}, nil
	}
	m.phase = PhasePending
	return Transition[T]{From: from, To: m.phase}, nil
}

// complete runs request after delay and records its outcome. Server
// rejections end in PhaseError with a nil error; transport failures and
// cancellation also end in PhaseError but are returned.
func (m *machine[T]) complete(ctx context.Context, delay time.Duration, request func(context.Context) (*T, string, error)) (Transition[T], error) {
	m.mu.Lock()
	p, busy := m.phase, m.inFlight
	if busy {
		m.mu.Unlock()
		return Transition[T]{From: p, To: p}, ErrSubmissionInFlight
	}
	if p != PhasePending {
		m.mu.Unlock()
		return Transition[T]{From: p, To: p}, ErrNotPending
	}
	m.inFlight = true
	m.mu.Unlock()

	result, message, err := wait(ctx, delay, request)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false

	if err != nil {
		m.phase = PhaseError
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			m.err = &FormError{Field: apiErr.Field, Message: sanitize(apiErr.Message)}
			return Transition[T]{From: PhasePending, To: PhaseError, Err: m.err}, nil
		}
		m.err = &FormError{Message: msgRequestFailed}
		return Transition[T]{From: PhasePending, To: PhaseError, Err: m.err}, err
	}

	m.phase = PhaseSuccess
	return Transition[T]{From: PhasePending, To: PhaseSuccess, Result: result, Message: sanitize(message)}, nil
}

func wait[T any](ctx context.Context, delay time.Duration, request func(context.Context) (*T, string, error)) (*T, string, error) {
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-t.C:
		}
	}
	return request(ctx)
}

// fieldChanged clears a server error once the user edits the form after a
// failed submission.
func (m *machine[T]) fieldChanged() Transition[T] {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.phase
	if m.submitted && m.err != nil && m.phase == PhaseError {
		m.err = nil
		m.phase = PhaseIdle
	}
	return Transition[T]{From: from, To: m.phase}
}
