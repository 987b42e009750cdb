// housekeeper purges accounts that never verified their email. Run it as a
// single long-lived process next to the API servers.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/authflow/config"
	"github.com/ErlanBelekov/authflow/internal/health"
	"github.com/ErlanBelekov/authflow/internal/housekeeping"
	"github.com/ErlanBelekov/authflow/internal/infrastructure/store"
	ctxlog "github.com/ErlanBelekov/authflow/internal/log"
	"github.com/ErlanBelekov/authflow/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	once := flag.Bool("once", false, "run a single purge and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := ctxlog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	if cfg.StoreDriver == store.DriverMemory {
		log.Fatal("housekeeper needs a shared store, STORE_DRIVER=memory is not supported")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	users, closeStore, err := store.Open(ctx, cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	metrics.Register()

	purger, err := housekeeping.NewPurger(users, cfg.PurgeCron, cfg.UnverifiedRetention, logger)
	if err != nil {
		stop()
		log.Fatalf("purger: %v", err)
	}

	if *once {
		n, err := purger.RunOnce(ctx)
		stop()
		if err != nil {
			log.Fatalf("purge: %v", err)
		}
		logger.Info("purge finished", "deleted", n)
		return
	}

	checker := health.NewChecker(logger, prometheus.DefaultRegisterer)
	checker.Add("user_store", users)

	go purger.Start(ctx)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("housekeeper shut down")
}
