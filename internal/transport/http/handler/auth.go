package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/authflow/internal/domain"
	"github.com/ErlanBelekov/authflow/internal/transport/http/middleware"
	"github.com/ErlanBelekov/authflow/internal/usecase"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Register(ctx context.Context, input usecase.RegisterInput) (*usecase.RegisterResult, error)
	ResendVerification(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, rawToken string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*usecase.LoginResult, error)
	PromoteAdmin(ctx context.Context, userID, secret string) (*usecase.PromoteResult, error)
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
}

type AuthHandler struct {
	authUsecase authUsecaser
	providers   []string
	logger      *slog.Logger
}

// NewAuthHandler builds the handler. providers is the list advertised by
// GET /auth/providers.
func NewAuthHandler(authUsecase authUsecaser, providers []string, logger *slog.Logger) *AuthHandler {
	if providers == nil {
		providers = []string{}
	}
	return &AuthHandler{
		authUsecase: authUsecase,
		providers:   providers,
		logger:      logger.With("component", "auth_handler"),
	}
}

type userResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Verified  bool        `json:"verified"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Profile.Name,
		Verified:  u.Verified,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Field validation is left to the usecase so that every failure carries the
// same message and field name regardless of transport.
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerVerifyResponse struct {
	VerifyToken string `json:"verifyToken"`
	UserID      string `json:"userId"`
	Message     string `json:"message"`
}

type registerSessionResponse struct {
	User      userResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Message   string       `json:"message"`
}

// POST /api/users
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.authUsecase.Register(c.Request.Context(), usecase.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, h.logger, "register", err, tokenStatuses)
		return
	}

	if res.NeedsVerification() {
		c.JSON(http.StatusOK, registerVerifyResponse{
			VerifyToken: res.VerifyToken,
			UserID:      res.User.ID,
			Message:     domain.MsgCreateSuccessVerify,
		})
		return
	}
	c.JSON(http.StatusOK, registerSessionResponse{
		User:      toUserResponse(res.User),
		Token:     res.SessionToken,
		ExpiresAt: res.ExpiresAt,
		Message:   domain.MsgCreateSuccess,
	})
}

type resendRequest struct {
	Email string `json:"email"`
}

// POST /auth/resend-verify
func (h *AuthHandler) ResendVerify(c *gin.Context) {
	var req resendRequest
	if !h.bind(c, &req) {
		return
	}

	rawToken, err := h.authUsecase.ResendVerification(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, h.logger, "resend verification", err, tokenStatuses)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifyToken": rawToken, "message": domain.MsgResendSuccess})
}

type verifyRequest struct {
	Token string `json:"token"`
}

// POST /auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if !h.bind(c, &req) {
		return
	}

	if _, err := h.authUsecase.Verify(c.Request.Context(), req.Token); err != nil {
		writeError(c, h.logger, "verify", err, tokenStatuses)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": domain.MsgVerifySuccess})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// POST /auth/email
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.authUsecase.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, "login", err, credentialStatuses)
		return
	}
	c.JSON(http.StatusOK, loginResponse{Token: res.Token, ExpiresAt: res.ExpiresAt})
}

// GET /auth
// Requires middleware.Auth.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authUsecase.CurrentUser(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		writeError(c, h.logger, "current user", err, sessionStatuses)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

type promoteRequest struct {
	Secret string `json:"secret"`
}

type promoteResponse struct {
	Secret string       `json:"secret"`
	User   userResponse `json:"user"`
}

// PUT /api/users/admin/:id
func (h *AuthHandler) PromoteAdmin(c *gin.Context) {
	var req promoteRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.authUsecase.PromoteAdmin(c.Request.Context(), c.Param("id"), req.Secret)
	if err != nil {
		writeError(c, h.logger, "promote admin", err, credentialStatuses)
		return
	}
	c.JSON(http.StatusOK, promoteResponse{Secret: res.Secret, User: toUserResponse(res.User)})
}

// GET /auth/providers
func (h *AuthHandler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.providers})
}

// bind decodes the JSON body. An empty body decodes as the zero request so
// that missing fields surface as field-level validation errors.
func (h *AuthHandler) bind(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Message: errInvalidBody})
		return false
	}
	return true
}
