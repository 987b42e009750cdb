package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/authflow/internal/domain"
	"github.com/ErlanBelekov/authflow/internal/infrastructure/memory"
	"github.com/ErlanBelekov/authflow/internal/repository"
	"github.com/ErlanBelekov/authflow/internal/session"
	"github.com/ErlanBelekov/authflow/internal/token"
	"github.com/ErlanBelekov/authflow/internal/usecase"
	"golang.org/x/crypto/bcrypt"
)

// ---- fakes ----

type sentMail struct {
	template string
	userID   string
	token    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendWelcome(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{template: "welcome", userID: u.ID})
	return m.err
}

func (m *fakeMailer) SendVerification(_ context.Context, u *domain.User, rawToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{template: "verify", userID: u.ID, token: rawToken})
	return m.err
}

func (m *fakeMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

// failingRepo embeds a working store and overrides single methods.
type failingRepo struct {
	repository.UserRepository
	create      func(ctx context.Context, u *domain.User) (*domain.User, error)
	findByEmail func(ctx context.Context, email string) (*domain.User, error)
}

func (r *failingRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	if r.create != nil {
		return r.create(ctx, u)
	}
	return r.UserRepository.Create(ctx, u)
}

func (r *failingRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if r.findByEmail != nil {
		return r.findByEmail(ctx, email)
	}
	return r.UserRepository.FindByEmail(ctx, email)
}

// ---- helpers ----

const (
	testJWTKey      = "test-jwt-secret-at-least-32-chars!!"
	testAdminSecret = "let-me-in"
	testTokenBytes  = 20
)

func testConfig() usecase.AuthConfig {
	return usecase.AuthConfig{
		RequireVerification: true,
		MinPasswordLength:   6,
		VerifyTokenBytes:    testTokenBytes,
		VerifyTokenTTL:      48 * time.Hour,
		AdminSecret:         testAdminSecret,
		AdminTokenBytes:     16,
		BcryptCost:          bcrypt.MinCost,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	uc     *usecase.AuthUsecase
	repo   *memory.UserRepository
	mailer *fakeMailer
	issuer *session.Issuer
}

func newFixture(t *testing.T, mutate func(*usecase.AuthConfig)) *fixture {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	repo := memory.NewUserRepository()
	mailer := &fakeMailer{}
	issuer := session.NewIssuer([]byte(testJWTKey), time.Hour)
	return &fixture{
		uc:     usecase.NewAuthUsecase(repo, mailer, issuer, cfg, discardLogger()),
		repo:   repo,
		mailer: mailer,
		issuer: issuer,
	}
}

func bob() usecase.RegisterInput {
	return usecase.RegisterInput{Name: "Bob", Email: "a@b.com", Password: "123456"}
}

func wantKind(t *testing.T, err error, kind domain.ErrorKind, field string) *domain.Error {
	t.Helper()
	de, ok := domain.AsError(err)
	if !ok {
		t.Fatalf("want *domain.Error of kind %s, got %v", kind, err)
	}
	if de.Kind != kind {
		t.Fatalf("kind = %s, want %s (%v)", de.Kind, kind, err)
	}
	if de.Field != field {
		t.Errorf("field = %q, want %q", de.Field, field)
	}
	return de
}

func mustRegister(t *testing.T, f *fixture, in usecase.RegisterInput) *usecase.RegisterResult {
	t.Helper()
	res, err := f.uc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return res
}

// ---- Register ----

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name    string
		input   usecase.RegisterInput
		field   string
		message string
	}{
		{"missing name", usecase.RegisterInput{Email: "a@b.com", Password: "123456"}, "name", domain.MsgNameRequired},
		{"blank name", usecase.RegisterInput{Name: "  ", Email: "a@b.com", Password: "123456"}, "name", domain.MsgNameRequired},
		{"name checked before email", usecase.RegisterInput{Email: "nope", Password: "1"}, "name", domain.MsgNameRequired},
		{"missing email", usecase.RegisterInput{Name: "Bob", Password: "123456"}, "email", domain.MsgEmailInvalid},
		{"malformed email", usecase.RegisterInput{Name: "Bob", Email: "not-an-email", Password: "123456"}, "email", domain.MsgEmailInvalid},
		{"email checked before password", usecase.RegisterInput{Name: "Bob", Email: "x", Password: ""}, "email", domain.MsgEmailInvalid},
		{"missing password", usecase.RegisterInput{Name: "Bob", Email: "a@b.com"}, "password", domain.MsgPasswordRequired},
		{"short password", usecase.RegisterInput{Name: "Bob", Email: "a@b.com", Password: "12345"}, "password", "Password must be at least 6 characters"},
		{"multi-byte password below minimum", usecase.RegisterInput{Name: "Bob", Email: "a@b.com", Password: "ééééé"}, "password", "Password must be at least 6 characters"},
		{"long password", usecase.RegisterInput{Name: "Bob", Email: "a@b.com", Password: strings.Repeat("x", 73)}, "password", "Password must be at most 72 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			_, err := f.uc.Register(context.Background(), tt.input)
			de := wantKind(t, err, domain.KindValidation, tt.field)
			if de.Message != tt.message {
				t.Errorf("message = %q, want %q", de.Message, tt.message)
			}
			if len(f.mailer.sent) != 0 {
				t.Error("no email should be sent on validation failure")
			}
		})
	}
}

func TestRegister_PasswordAtMinimumLength_Accepted(t *testing.T) {
	f := newFixture(t, nil)
	mustRegister(t, f, usecase.RegisterInput{Name: "Bob", Email: "a@b.com", Password: "123456"})
	mustRegister(t, f, usecase.RegisterInput{Name: "Eve", Email: "e@b.com", Password: "éééééé"})
}

func TestRegister_VerificationRequired_ReturnsToken(t *testing.T) {
	f := newFixture(t, nil)

	res := mustRegister(t, f, bob())

	if !res.NeedsVerification() {
		t.Fatal("expected verify mode")
	}
	if res.SessionToken != "" {
		t.Error("no session should be issued before verification")
	}
	if len(res.VerifyToken) != 2*testTokenBytes {
		t.Errorf("token length = %d, want %d", len(res.VerifyToken), 2*testTokenBytes)
	}
	if !token.WellFormed(res.VerifyToken) {
		t.Errorf("token %q is not hex", res.VerifyToken)
	}

	stored, err := f.repo.FindByID(context.Background(), res.User.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.Verified {
		t.Error("user should start unverified")
	}
	if stored.VerifyTokenHash == nil || *stored.VerifyTokenHash != token.Hash(res.VerifyToken) {
		t.Error("stored hash does not match returned token")
	}
	if stored.VerifyTokenExpiresAt == nil {
		t.Error("expected token expiry")
	}

	mail := f.mailer.last()
	if mail.template != "verify" || mail.token != res.VerifyToken {
		t.Errorf("mail = %+v, want verify mail with returned token", mail)
	}
}

func TestRegister_ZeroTTL_TokenNeverExpires(t *testing.T) {
	f := newFixture(t, func(c *usecase.AuthConfig) { c.VerifyTokenTTL = 0 })

	res := mustRegister(t, f, bob())

	stored, _ := f.repo.FindByID(context.Background(), res.User.ID)
	if stored.VerifyTokenExpiresAt != nil {
		t.Errorf("expiry = %v, want nil", stored.VerifyTokenExpiresAt)
	}
}

func TestRegister_VerificationDisabled_IssuesSession(t *testing.T) {
	f := newFixture(t, func(c *usecase.AuthConfig) { c.RequireVerification = false })

	res := mustRegister(t, f, bob())

	if res.NeedsVerification() {
		t.Fatal("expected session mode")
	}
	if !res.User.Verified {
		t.Error("user should be verified immediately")
	}
	claims, err := f.issuer.Parse(res.SessionToken)
	if err != nil {
		t.Fatalf("session token invalid: %v", err)
	}
	if claims.Subject != res.User.ID {
		t.Errorf("sub = %q, want %q", claims.Subject, res.User.ID)
	}
	if f.mailer.last().template != "welcome" {
		t.Errorf("mail = %+v, want welcome", f.mailer.last())
	}
}

func TestRegister_NormalizesEmail(t *testing.T) {
	f := newFixture(t, nil)

	res := mustRegister(t, f, usecase.RegisterInput{Name: "Bob", Email: "  A@B.Com ", Password: "123456"})

	if res.User.Email != "a@b.com" {
		t.Errorf("email = %q, want a@b.com", res.User.Email)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t, nil)
	mustRegister(t, f, bob())

	in := bob()
	in.Email = "A@B.COM"
	_, err := f.uc.Register(context.Background(), in)

	de := wantKind(t, err, domain.KindValidation, "email")
	if de.Message != domain.MsgEmailTaken {
		t.Errorf("message = %q", de.Message)
	}
}

func TestRegister_MailFailure_DoesNotFail(t *testing.T) {
	f := newFixture(t, nil)
	f.mailer.err = errors.New("smtp unavailable")

	res := mustRegister(t, f, bob())

	if _, err := f.repo.FindByID(context.Background(), res.User.ID); err != nil {
		t.Errorf("user should persist despite mail failure: %v", err)
	}
}

func TestRegister_StoreError_Propagates(t *testing.T) {
	storeErr := errors.New("db down")
	repo := &failingRepo{
		UserRepository: memory.NewUserRepository(),
		create: func(context.Context, *domain.User) (*domain.User, error) {
			return nil, storeErr
		},
	}
	uc := usecase.NewAuthUsecase(repo, &fakeMailer{}, session.NewIssuer([]byte(testJWTKey), time.Hour), testConfig(), discardLogger())

	_, err := uc.Register(context.Background(), bob())

	if !errors.Is(err, storeErr) {
		t.Errorf("want wrapped storeErr, got %v", err)
	}
	if _, ok := domain.AsError(err); ok {
		t.Error("infrastructure errors must not become workflow errors")
	}
}

// ---- Verify ----

func TestVerify_ConsumesTokenOnce(t *testing.T) {
	f := newFixture(t, nil)
	res := mustRegister(t, f, bob())

	user, err := f.uc.Verify(context.Background(), res.VerifyToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !user.Verified || user.VerifyTokenHash != nil {
		t.Errorf("user = %+v, want verified with token cleared", user)
	}

	_, err = f.uc.Verify(context.Background(), res.VerifyToken)
	wantKind(t, err, domain.KindNotFound, "")
}

func TestVerify_Validation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.uc.Verify(context.Background(), "")
	de := wantKind(t, err, domain.KindValidation, "token")
	if de.Message != domain.MsgTokenRequired {
		t.Errorf("message = %q", de.Message)
	}

	for _, bad := range []string{"zz", "abc", "not hex at all"} {
		_, err = f.uc.Verify(context.Background(), bad)
		de = wantKind(t, err, domain.KindValidation, "token")
		if de.Message != domain.MsgTokenMalformed {
			t.Errorf("%q: message = %q", bad, de.Message)
		}
	}
}

func TestVerify_UnknownToken(t *testing.T) {
	f := newFixture(t, nil)
	mustRegister(t, f, bob())

	unknown, _ := token.Generate(testTokenBytes)
	_, err := f.uc.Verify(context.Background(), unknown)

	de := wantKind(t, err, domain.KindNotFound, "")
	if de.Message != domain.MsgTokenNotFound {
		t.Errorf("message = %q", de.Message)
	}
}

func TestVerify_ConcurrentClaims_OneWins(t *testing.T) {
	f := newFixture(t, nil)
	res := mustRegister(t, f, bob())

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.uc.Verify(context.Background(), res.VerifyToken); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("wins = %d, want 1", wins)
	}
}

// ---- ResendVerification ----

func TestResendVerification_ReplacesToken(t *testing.T) {
	f := newFixture(t, nil)
	res := mustRegister(t, f, bob())

	fresh, err := f.uc.ResendVerification(context.Background(), "A@b.com")
	if err != nil {
		t.Fatalf("ResendVerification: %v", err)
	}
	if fresh == res.VerifyToken {
		t.Fatal("resend must issue a distinct token")
	}
	if len(fresh) != 2*testTokenBytes {
		t.Errorf("token length = %d", len(fresh))
	}
	if f.mailer.last().token != fresh {
		t.Error("resend should email the new token")
	}

	_, err = f.uc.Verify(context.Background(), res.VerifyToken)
	wantKind(t, err, domain.KindNotFound, "")

	if _, err = f.uc.Verify(context.Background(), fresh); err != nil {
		t.Errorf("fresh token should verify: %v", err)
	}
}

func TestResendVerification_Errors(t *testing.T) {
	f := newFixture(t, nil)
	res := mustRegister(t, f, bob())
	if _, err := f.uc.Verify(context.Background(), res.VerifyToken); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	_, err := f.uc.ResendVerification(context.Background(), "")
	wantKind(t, err, domain.KindValidation, "email")

	_, err = f.uc.ResendVerification(context.Background(), "nobody@b.com")
	wantKind(t, err, domain.KindNotFound, "")

	// already verified
	_, err = f.uc.ResendVerification(context.Background(), "a@b.com")
	de := wantKind(t, err, domain.KindNotFound, "")
	if de.Message != domain.MsgNoPendingUser {
		t.Errorf("message = %q", de.Message)
	}
}

// ---- Login ----

func TestLogin_BeforeAndAfterVerification(t *testing.T) {
	f := newFixture(t, nil)
	res := mustRegister(t, f, bob())

	_, err := f.uc.Login(context.Background(), "a@b.com", "123456")
	de := wantKind(t, err, domain.KindAuth, "")
	if de.Message != domain.MsgMustVerify {
		t.Errorf("message = %q, want %q", de.Message, domain.MsgMustVerify)
	}

	if _, err = f.uc.Verify(context.Background(), res.VerifyToken); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	out, err := f.uc.Login(context.Background(), "A@B.com", "123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := f.issuer.Parse(out.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != res.User.ID || claims.Email != "a@b.com" {
		t.Errorf("claims = %+v", claims)
	}
	if !out.ExpiresAt.After(time.Now()) {
		t.Errorf("expiresAt %v is not in the future", out.ExpiresAt)
	}
}

func TestLogin_UnverifiedWrongPassword_IsInvalidCredentials(t *testing.T) {
	f := newFixture(t, nil)
	mustRegister(t, f, bob())

	_, err := f.uc.Login(context.Background(), "a@b.com", "wrong-password")

	de := wantKind(t, err, domain.KindAuth, "")
	if de.Message != domain.MsgInvalidCredentials {
		t.Errorf("message = %q", de.Message)
	}
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t, func(c *usecase.AuthConfig) { c.RequireVerification = false })
	mustRegister(t, f, bob())

	tests := []struct {
		name     string
		email    string
		password string
		kind     domain.ErrorKind
		field    string
	}{
		{"missing email", "", "123456", domain.KindValidation, "email"},
		{"missing password", "a@b.com", "", domain.KindValidation, "password"},
		{"unknown email", "x@b.com", "123456", domain.KindAuth, ""},
		{"wrong password", "a@b.com", "1234567", domain.KindAuth, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.Login(context.Background(), tt.email, tt.password)
			wantKind(t, err, tt.kind, tt.field)
		})
	}
}

func TestLogin_StoreError_Propagates(t *testing.T) {
	storeErr := errors.New("db down")
	repo := &failingRepo{
		UserRepository: memory.NewUserRepository(),
		findByEmail: func(context.Context, string) (*domain.User, error) {
			return nil, storeErr
		},
	}
	uc := usecase.NewAuthUsecase(repo, &fakeMailer{}, session.NewIssuer([]byte(testJWTKey), time.Hour), testConfig(), discardLogger())

	_, err := uc.Login(context.Background(), "a@b.com", "123456")
	if !errors.Is(err, storeErr) {
		t.Errorf("want wrapped storeErr, got %v", err)
	}
}

// ---- PromoteAdmin ----

func TestPromoteAdmin_WrongSecret_LeavesRole(t *testing.T) {
	f := newFixture(t, nil)
	res := mustRegister(t, f, bob())

	_, err := f.uc.PromoteAdmin(context.Background(), res.User.ID, "guess")
	wantKind(t, err, domain.KindAuth, "")

	stored, _ := f.repo.FindByID(context.Background(), res.User.ID)
	if stored.Role != domain.RoleUser || stored.AdminSecret != nil {
		t.Errorf("user changed after denied promotion: %+v", stored)
	}
}

func TestPromoteAdmin_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	res := mustRegister(t, f, bob())

	first, err := f.uc.PromoteAdmin(context.Background(), res.User.ID, testAdminSecret)
	if err != nil {
		t.Fatalf("PromoteAdmin: %v", err)
	}
	if !first.User.IsAdmin() {
		t.Error("expected admin role")
	}
	if len(first.Secret) != 32 {
		t.Errorf("marker length = %d, want 32", len(first.Secret))
	}

	second, err := f.uc.PromoteAdmin(context.Background(), res.User.ID, testAdminSecret)
	if err != nil {
		t.Fatalf("PromoteAdmin again: %v", err)
	}
	if !second.User.IsAdmin() || second.Secret != first.Secret {
		t.Errorf("second promotion = %+v, want same marker %q", second, first.Secret)
	}
}

func TestPromoteAdmin_Errors(t *testing.T) {
	f := newFixture(t, nil)
	res := mustRegister(t, f, bob())

	_, err := f.uc.PromoteAdmin(context.Background(), res.User.ID, "")
	wantKind(t, err, domain.KindValidation, "secret")

	_, err = f.uc.PromoteAdmin(context.Background(), "00000000-0000-0000-0000-000000000000", testAdminSecret)
	wantKind(t, err, domain.KindNotFound, "")
}

func TestPromoteAdmin_NoConfiguredSecret_AlwaysDenied(t *testing.T) {
	f := newFixture(t, func(c *usecase.AuthConfig) { c.AdminSecret = "" })
	res := mustRegister(t, f, bob())

	_, err := f.uc.PromoteAdmin(context.Background(), res.User.ID, "anything")
	wantKind(t, err, domain.KindAuth, "")
}

// ---- CurrentUser ----

func TestCurrentUser(t *testing.T) {
	f := newFixture(t, nil)
	res := mustRegister(t, f, bob())

	u, err := f.uc.CurrentUser(context.Background(), res.User.ID)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if u.Profile.Name != "Bob" {
		t.Errorf("name = %q", u.Profile.Name)
	}

	_, err = f.uc.CurrentUser(context.Background(), "missing")
	wantKind(t, err, domain.KindAuth, "")
}
