package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/ErlanBelekov/authflow/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Workflow metrics

	RegistrationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authflow",
		Name:      "registrations_total",
		Help:      "Accounts created, by mode (verify or session).",
	}, []string{"mode"})

	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authflow",
		Name:      "logins_total",
		Help:      "Login attempts, by outcome.",
	}, []string{"outcome"})

	VerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authflow",
		Name:      "verifications_total",
		Help:      "Verification token consumptions, by outcome.",
	}, []string{"outcome"})

	VerificationResendsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "authflow",
		Name:      "verification_resends_total",
		Help:      "Verification tokens re-issued on request.",
	})

	AdminPromotionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authflow",
		Name:      "admin_promotions_total",
		Help:      "Admin promotion attempts, by outcome.",
	}, []string{"outcome"})

	EmailsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authflow",
		Name:      "emails_total",
		Help:      "Account emails, by template and outcome.",
	}, []string{"template", "outcome"})

	// Housekeeping

	PurgedAccountsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "authflow",
		Name:      "purged_unverified_accounts_total",
		Help:      "Unverified accounts removed after the retention period.",
	})

	PurgeCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "authflow",
		Name:      "purge_cycle_duration_seconds",
		Help:      "Time taken for one purge cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "authflow",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authflow",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})

	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authflow",
		Name:      "http_rate_limited_total",
		Help:      "Requests rejected by the auth rate limiter.",
	}, []string{"path"})
)

func Register() {
	prometheus.MustRegister(
		RegistrationsTotal,
		LoginsTotal,
		VerificationsTotal,
		VerificationResendsTotal,
		AdminPromotionsTotal,
		EmailsSentTotal,
		PurgedAccountsTotal,
		PurgeCycleDuration,
		HTTPRequestDuration,
		HTTPRequestsTotal,
		RateLimitedTotal,
	)
}

// NewServer serves /metrics plus liveness and readiness probes.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	status := http.StatusOK
	if result.Status != "up" {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}
