// Package authclient is the Go client for the authflow HTTP API. Besides the
// typed Client it provides SignUpForm, LoginForm and VerifyFlow, small state
// machines that drive a UI through idle, pending, success and error.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response. Field is set when the server tied the
// failure to one input.
type APIError struct {
	StatusCode int
	Message    string
	Field      string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("authflow: %d: %s: %s", e.StatusCode, e.Field, e.Message)
	}
	return fmt.Sprintf("authflow: %d: %s", e.StatusCode, e.Message)
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Verified  bool      `json:"verified"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpResponse holds VerifyToken/UserID when the account awaits email
// verification, or User/Token when it was usable immediately.
type SignUpResponse struct {
	VerifyToken string    `json:"verifyToken,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	User        *User     `json:"user,omitempty"`
	Token       string    `json:"token,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Message     string    `json:"message"`
}

func (r *SignUpResponse) NeedsVerification() bool {
	return r.VerifyToken != ""
}

type ResendResponse struct {
	VerifyToken string `json:"verifyToken"`
	Message     string `json:"message"`
}

type VerifyResponse struct {
	Message string `json:"message"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type PromoteResponse struct {
	Secret string `json:"secret"`
	User   User   `json:"user"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the API rooted at baseURL, e.g. "https://auth.example.com".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResponse, error) {
	var out SignUpResponse
	if err := c.do(ctx, http.MethodPost, "/api/users", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ResendVerification(ctx context.Context, email string) (*ResendResponse, error) {
	var out ResendResponse
	if err := c.do(ctx, http.MethodPost, "/auth/resend-verify", "", map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Verify(ctx context.Context, token string) (*VerifyResponse, error) {
	var out VerifyResponse
	if err := c.do(ctx, http.MethodPost, "/auth/verify", "", map[string]string{"token": token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/email", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the user the session token belongs to.
func (c *Client) Me(ctx context.Context, sessionToken string) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/auth", sessionToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PromoteAdmin(ctx context.Context, userID, secret string) (*PromoteResponse, error) {
	var out PromoteResponse
	path := "/api/users/admin/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodPut, path, "", map[string]string{"secret": secret}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Providers lists the social login providers the server has configured.
func (c *Client) Providers(ctx context.Context) ([]string, error) {
	var out struct {
		Providers []string `json:"providers"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/providers", "", nil, &out); err != nil {
		return nil, err
	}
	return out.Providers, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Message string `json:"message"`
			Field   string `json:"field"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e) == nil {
			apiErr.Message, apiErr.Field = e.Message, e.Field
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
