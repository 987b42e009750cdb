package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ErlanBelekov/authflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	sent []Message
	err  error
}

func (s *captureSender) Send(_ context.Context, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

var bob = &domain.User{ID: "u1", Email: "a@b.com", Profile: domain.Profile{Name: "Bob"}}

func TestSendVerification_LinkCarriesToken(t *testing.T) {
	s := &captureSender{}
	m, err := NewMailer(s, "Authflow", "https://app.example.com/")
	require.NoError(t, err)

	require.NoError(t, m.SendVerification(context.Background(), bob, "abc123"))
	require.Len(t, s.sent, 1)

	msg := s.sent[0]
	assert.Equal(t, "a@b.com", msg.To.Email)
	assert.Equal(t, "Welcome! Confirm your Authflow account", msg.Subject)
	assert.Contains(t, msg.HTML, "https://app.example.com/verify/abc123")
	assert.Contains(t, msg.HTML, "Hi Bob")
}

func TestSendWelcome_LinksToLogin(t *testing.T) {
	s := &captureSender{}
	m, err := NewMailer(s, "Authflow", "https://app.example.com")
	require.NoError(t, err)

	require.NoError(t, m.SendWelcome(context.Background(), bob))
	require.Len(t, s.sent, 1)
	assert.Equal(t, "Welcome to Authflow", s.sent[0].Subject)
	assert.Contains(t, s.sent[0].HTML, "https://app.example.com/login")
}

func TestSend_EscapesName(t *testing.T) {
	s := &captureSender{}
	m, err := NewMailer(s, "Authflow", "https://app.example.com")
	require.NoError(t, err)

	evil := &domain.User{Email: "x@b.com", Profile: domain.Profile{Name: "<script>alert(1)</script>"}}
	require.NoError(t, m.SendWelcome(context.Background(), evil))
	assert.False(t, strings.Contains(s.sent[0].HTML, "<script>"))
}

func TestSend_SenderErrorIsWrapped(t *testing.T) {
	sendErr := errors.New("smtp unavailable")
	m, err := NewMailer(&captureSender{err: sendErr}, "Authflow", "https://app.example.com")
	require.NoError(t, err)

	err = m.SendVerification(context.Background(), bob, "abc")
	assert.ErrorIs(t, err, sendErr)
}

func TestRecipientString(t *testing.T) {
	assert.Equal(t, "a@b.com", Recipient{Email: "a@b.com"}.String())
	assert.Equal(t, `"Bob" <a@b.com>`, Recipient{Name: "Bob", Email: "a@b.com"}.String())
}
