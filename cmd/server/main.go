package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/authflow/config"
	"github.com/ErlanBelekov/authflow/internal/email"
	"github.com/ErlanBelekov/authflow/internal/health"
	"github.com/ErlanBelekov/authflow/internal/infrastructure/store"
	ctxlog "github.com/ErlanBelekov/authflow/internal/log"
	"github.com/ErlanBelekov/authflow/internal/metrics"
	"github.com/ErlanBelekov/authflow/internal/session"
	httptransport "github.com/ErlanBelekov/authflow/internal/transport/http"
	"github.com/ErlanBelekov/authflow/internal/transport/http/handler"
	"github.com/ErlanBelekov/authflow/internal/transport/http/middleware"
	"github.com/ErlanBelekov/authflow/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := ctxlog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.AdminSecret == "" {
		logger.Warn("ADMIN_SECRET is not set, admin promotion is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	users, closeStore, err := store.Open(ctx, cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	metrics.Register()
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer)
	checker.Add("user_store", users)

	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.EmailFrom, cfg.EmailFromName, logger)
	mailer, err := email.NewMailer(sender, cfg.AppName, cfg.PublicBaseURL)
	if err != nil {
		stop()
		log.Fatalf("mailer: %v", err)
	}

	issuer := session.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTExpiry)
	authUsecase := usecase.NewAuthUsecase(users, mailer, issuer, usecase.AuthConfig{
		RequireVerification: cfg.Auth.RequireUserVerify,
		MinPasswordLength:   cfg.Auth.MinPasswordLength,
		VerifyTokenBytes:    cfg.Auth.VerifyTokenLength,
		VerifyTokenTTL:      cfg.Auth.VerifyTokenTTL,
		AdminSecret:         cfg.AdminSecret,
		AdminTokenBytes:     cfg.Auth.AdminTokenLength,
		BcryptCost:          cfg.BcryptCost,
	}, logger)
	authHandler := handler.NewAuthHandler(authUsecase, cfg.SocialProviders(), logger)

	srv := http.Server{
		Addr: ":" + cfg.Port,
		Handler: httptransport.NewRouter(
			logger,
			authHandler,
			issuer,
			middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}
