package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/authflow/internal/transport/http/handler"
	"github.com/ErlanBelekov/authflow/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

// NewRouter wires the public auth API. The endpoints that accept credentials
// or trigger email share limiter.
func NewRouter(logger *slog.Logger, authHandler *handler.AuthHandler, parser middleware.TokenParser, limiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.NewWithConfig(logger, sloggin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		// request_id comes from the context via the log handler
		WithRequestID: false,
		Filters:       []sloggin.Filter{sloggin.IgnorePath("/auth/providers")},
	}))
	r.Use(middleware.Metrics())

	throttle := limiter.Middleware()

	users := r.Group("/api/users")
	users.POST("", throttle, authHandler.Register)
	users.PUT("/admin/:id", throttle, authHandler.PromoteAdmin)

	auth := r.Group("/auth")
	auth.GET("", middleware.Auth(parser), authHandler.Me)
	auth.GET("/providers", authHandler.Providers)
	auth.POST("/email", throttle, authHandler.Login)
	auth.POST("/verify", authHandler.Verify)
	auth.POST("/resend-verify", throttle, authHandler.ResendVerify)

	return r
}
