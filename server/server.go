// Package server implements the HTTP surface over the Authorization
// Engine: routing, rate limiting, CORS, metrics, and health, grounded on
// the teacher's server/server.go mux construction and handlerWithHeaders
// wrapping.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gosundheit "github.com/AppsFlyer/go-sundheit"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"
	limiterhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/myquay/talos/engine"
)

// Config holds the HTTP surface's own settings, distinct from
// engine.Config: everything here is about how requests reach the engine,
// not about protocol semantics.
type Config struct {
	Issuer string

	// AllowedOrigins lists origins permitted to make CORS requests against
	// every routed endpoint except /healthz and /metrics. Empty disables
	// CORS.
	AllowedOrigins []string

	PrometheusRegistry *prometheus.Registry
	HealthChecker      gosundheit.Health

	Logger *slog.Logger
}

// Server wires an Engine to an http.Handler.
type Server struct {
	engine    *engine.Engine
	logger    *slog.Logger
	issuer    string
	mux       *mux.Router
	templates *templates
}

// New builds the router for Talos's seven endpoints (spec.md §6): the
// authorization and token endpoints, the provider selection/callback
// pair, the consent endpoint, revocation, and introspection, plus
// discovery metadata and a health probe.
func New(cfg Config, eng *engine.Engine) (http.Handler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{engine: eng, logger: logger, issuer: cfg.Issuer, templates: loadTemplates()}

	r := mux.NewRouter().SkipClean(true).UseEncodedPath()
	r.NotFoundHandler = http.NotFoundHandler()

	withHeaders := func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			h.ServeHTTP(w, r)
		})
	}
	withCORS := func(h http.Handler) http.Handler {
		if len(cfg.AllowedOrigins) == 0 {
			return h
		}
		return handlers.CORS(
			handlers.AllowedOrigins(cfg.AllowedOrigins),
			handlers.AllowedMethods([]string{"GET", "POST"}),
		)(h)
	}

	handle := func(p string, limit *limiter.Limiter, h http.HandlerFunc) {
		var handler http.Handler = withMetrics(p, cfg.PrometheusRegistry, h)
		if limit != nil {
			handler = limiterhttp.NewMiddleware(limit).Handler(handler)
		}
		r.Handle(p, withHeaders(withCORS(handler)))
	}

	authLimit := newLimiter(30, time.Minute)
	tokenLimit := newLimiter(20, time.Minute)
	r.Use(limiterhttp.NewMiddleware(newLimiter(100, time.Minute)).Handler)

	handle("/auth", authLimit, s.handleAuthorization)
	handle("/auth/select", authLimit, s.handleSelectProvider)
	handle("/consent", authLimit, s.handleConsent)
	handle("/callback/{provider}", authLimit, s.handleProviderCallback)
	handle("/token", tokenLimit, s.handleToken)
	handle("/token/revoke", tokenLimit, s.handleRevoke)
	handle("/token/introspect", tokenLimit, s.handleIntrospect)
	handle("/.well-known/oauth-authorization-server", nil, s.handleMetadata)

	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.HealthChecker != nil && !cfg.HealthChecker.IsHealthy() {
			http.Error(w, "health check failed", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	if cfg.PrometheusRegistry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.PrometheusRegistry, promhttp.HandlerOpts{}))
	}

	s.mux = r
	return s.mux, nil
}

func newLimiter(rate int64, period time.Duration) *limiter.Limiter {
	return limiter.New(memorystore.NewStore(), limiter.Rate{Period: period, Limit: rate})
}

// RunCleanup runs the engine's cleanup pass on an interval until ctx is
// cancelled, mirroring the teacher's startGarbageCollection background
// loop in server/server.go.
func RunCleanup(ctx context.Context, eng *engine.Engine, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := eng.Cleanup(ctx, time.Now())
			if err != nil {
				logger.ErrorContext(ctx, "cleanup pass failed", "err", err)
				continue
			}
			logger.InfoContext(ctx, "cleanup pass complete",
				"sessions", result.Sessions, "auth_codes", result.AuthCodes, "refresh_tokens", result.RefreshTokens)
		}
	}
}
