package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/ErlanBelekov/authflow/internal/domain"
	"github.com/ErlanBelekov/authflow/internal/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	templateWelcome    = "welcome"
	templateVerifyUser = "verifyUser"
)

// Mailer renders the account emails and hands them to a Sender.
type Mailer struct {
	sender    Sender
	templates *template.Template
	appName   string
	baseURL   string
}

func NewMailer(sender Sender, appName, baseURL string) (*Mailer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Mailer{
		sender:    sender,
		templates: tmpl,
		appName:   appName,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}, nil
}

type templateData struct {
	AppName string
	Name    string
	Link    string
}

func (m *Mailer) SendWelcome(ctx context.Context, u *domain.User) error {
	return m.send(ctx, u, templateWelcome,
		"Welcome to "+m.appName,
		m.baseURL+"/login",
	)
}

func (m *Mailer) SendVerification(ctx context.Context, u *domain.User, rawToken string) error {
	return m.send(ctx, u, templateVerifyUser,
		fmt.Sprintf("Welcome! Confirm your %s account", m.appName),
		m.baseURL+"/verify/"+rawToken,
	)
}

func (m *Mailer) send(ctx context.Context, u *domain.User, name, subject, link string) error {
	var body bytes.Buffer
	err := m.templates.ExecuteTemplate(&body, name+".html", templateData{
		AppName: m.appName,
		Name:    u.Profile.Name,
		Link:    link,
	})
	if err != nil {
		metrics.EmailsSentTotal.WithLabelValues(name, "error").Inc()
		return fmt.Errorf("render %s email: %w", name, err)
	}

	err = m.sender.Send(ctx, Message{
		To:      Recipient{Name: u.Profile.Name, Email: u.Email},
		Subject: subject,
		HTML:    body.String(),
	})
	if err != nil {
		metrics.EmailsSentTotal.WithLabelValues(name, "error").Inc()
		return fmt.Errorf("send %s email: %w", name, err)
	}
	metrics.EmailsSentTotal.WithLabelValues(name, "sent").Inc()
	return nil
}
