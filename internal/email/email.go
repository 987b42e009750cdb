package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/resend/resend-go/v2"
)

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Recipient struct {
	Name  string
	Email string
}

// String renders the recipient as an RFC 5322 address.
func (r Recipient) String() string {
	if r.Name == "" {
		return r.Email
	}
	return (&mail.Address{Name: r.Name, Address: r.Email}).String()
}

type Message struct {
	To      Recipient
	Subject string
	HTML    string
}

// LogSender logs emails instead of sending them. Used in ENV=local.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email (local dev)", "to", msg.To.Email, "subject", msg.Subject, "body", msg.HTML)
	return nil
}

// ResendSender sends emails via the Resend API. Used in staging/production.
type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To.String()},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// NewSender returns a LogSender for ENV=local, ResendSender otherwise.
func NewSender(env, apiKey, fromEmail, fromName string, logger *slog.Logger) Sender {
	if env == "local" {
		return &LogSender{logger: logger.With("component", "email")}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   Recipient{Name: fromName, Email: fromEmail}.String(),
	}
}
