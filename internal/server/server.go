// Package server implements the HTTP API for the habit tracker and its
// retrieval-augmented coach. The server is started by the `habitloop serve`
// CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/habitloop/habitloop/internal/auth"
	"github.com/habitloop/habitloop/internal/logging"
	"github.com/habitloop/habitloop/internal/store"
)

// New constructs a Server from the provided store, coach, token issuer,
// and config.
func New(st *store.Store, coachSvc coach, tokens *auth.TokenIssuer, cfg *Config) (*Server, error) {
	if st == nil {
		return nil, fmt.Errorf("server: store must not be nil")
	}
	if coachSvc == nil {
		return nil, fmt.Errorf("server: coach must not be nil")
	}
	if tokens == nil {
		return nil, fmt.Errorf("server: token issuer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover the chatbot's full generation time.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		store:   st,
		coach:   coachSvc,
		tokens:  tokens,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	rps := cfg.RateLimit
	if rps == 0 {
		rps = defaultRateLimit
	}
	burst := cfg.RateBurst
	if burst == 0 {
		burst = defaultRateBurst
	}
	rl, stopRL := newRateLimiter(rps, burst, s.log)
	s.stopRL = stopRL

	mux := http.NewServeMux()

	mux.Handle("POST /users/register", s.route("users_register", s.handleRegister))
	mux.Handle("POST /token", s.route("token", s.handleToken))
	mux.Handle("GET /users/me", s.requireUser(s.route("users_me", s.handleMe)))

	mux.Handle("POST /habits", s.requireUser(s.route("habits_create", s.handleHabitCreate)))
	mux.Handle("POST /habits/{$}", s.requireUser(s.route("habits_create", s.handleHabitCreate)))
	mux.Handle("GET /habits", s.requireUser(s.route("habits_list", s.handleHabitList)))
	mux.Handle("GET /habits/{$}", s.requireUser(s.route("habits_list", s.handleHabitList)))
	mux.Handle("PUT /habits/{id}", s.requireUser(s.route("habits_update", s.handleHabitUpdate)))
	mux.Handle("PUT /habits/{id}/toggle", s.requireUser(s.route("habits_toggle", s.handleHabitToggle)))
	mux.Handle("DELETE /habits/{id}", s.requireUser(s.route("habits_delete", s.handleHabitDelete)))

	mux.Handle("POST /chatbot/ask",
		s.requireUser(rl.middleware(s.route("chatbot_ask", s.handleAsk))))
	mux.Handle("POST /chatbot/analyze",
		s.requireUser(rl.middleware(s.route("chatbot_analyze", s.handleAnalyze))))

	mux.Handle("GET /api/health", s.route("health", s.handleHealth))
	mux.Handle("GET /api/ready", s.route("ready", s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	handler := requestLogger(s.log, corsMiddleware(cfg.CORSOrigin, mux))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// route wraps a handler with per-endpoint Prometheus instrumentation.
// name partitions the metrics by logical endpoint rather than raw URL path.
func (s *Server) route(name string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		h(rw, r)
		elapsed := time.Since(start)

		s.metrics.httpRequestsTotal.
			WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.
			WithLabelValues(r.Method, name).Observe(elapsed.Seconds())
	})
}

// writeJSON serializes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; all we can do is log.
		slog.Default().Error("response encode error", slog.Any("error", err))
	}
}

// writeError sends a JSON error body with the given status code. detail must
// be safe to show callers; internal error detail belongs in the logs.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
