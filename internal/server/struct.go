package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/habitloop/habitloop/internal/auth"
	"github.com/habitloop/habitloop/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must be long enough to cover a full chatbot generation.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on the chatbot
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// CORSOrigin is the value sent in Access-Control-Allow-Origin.
	// Defaults to "*" so the local web UI can call the API during development.
	CORSOrigin string
	// MetricsRegistry is where server metrics are registered.
	// If nil, prometheus.DefaultRegisterer is used.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint.
	// If nil, prometheus.DefaultGatherer is used.
	MetricsGatherer prometheus.Gatherer
}

// coach is the interface the chatbot handlers call. *chatbot.Service
// satisfies it; tests inject a fake.
type coach interface {
	// Ask answers a free-form question for the given user.
	Ask(ctx context.Context, userID int64, query string) (string, error)
	// Analyze reviews the user's tracked habits without a question.
	Analyze(ctx context.Context, userID int64) (string, error)
}

// Server is the HTTP server that exposes the habit tracker and its coach.
type Server struct {
	// store persists users, habits, and conversation memory.
	store *store.Store
	// coach handles the /chatbot endpoints; set to *chatbot.Service in
	// production, overridden by a fake in tests.
	coach coach
	// tokens issues and validates bearer tokens for the auth middleware.
	tokens *auth.TokenIssuer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
}

// registerRequest is the JSON body for POST /users/register.
type registerRequest struct {
	// Username is the unique login name.
	Username string `json:"username"`
	// Password is the plaintext password; only its bcrypt hash is stored.
	Password string `json:"password"`
}

// userResponse is the JSON shape of a user returned by the API.
type userResponse struct {
	// ID is the user's numeric identifier.
	ID int64 `json:"id"`
	// Username is the unique login name.
	Username string `json:"username"`
	// Habits is the user's habit list. Empty for a freshly registered user.
	Habits []habitResponse `json:"habits"`
}

// tokenResponse is the JSON body returned by POST /token.
type tokenResponse struct {
	// AccessToken is the signed bearer token.
	AccessToken string `json:"access_token"`
	// TokenType is always "bearer".
	TokenType string `json:"token_type"`
}

// habitRequest is the JSON body for habit create and update.
type habitRequest struct {
	// Name is the habit's display name.
	Name string `json:"name"`
	// Description is an optional free-form description.
	Description string `json:"description"`
}

// habitResponse is the JSON shape of a habit returned by the API.
type habitResponse struct {
	// ID is the habit's numeric identifier.
	ID int64 `json:"id"`
	// Name is the habit's display name.
	Name string `json:"name"`
	// Description is the free-form description, possibly empty.
	Description string `json:"description"`
	// LastCompletedAt is the date (YYYY-MM-DD) the habit was last marked
	// complete, or null if never completed.
	LastCompletedAt *string `json:"last_completed_at"`
}

// askRequest is the JSON body for POST /chatbot/ask.
type askRequest struct {
	// Message is the user's question for the coach.
	Message string `json:"message"`
}

// chatReply is the JSON body returned by the chatbot endpoints.
type chatReply struct {
	// Reply is the coach's generated answer.
	Reply string `json:"reply"`
}

// errorResponse is the JSON body returned on any error status.
type errorResponse struct {
	// Detail is a short human-readable reason. Internal error details are
	// logged server-side and never placed here.
	Detail string `json:"detail"`
}
