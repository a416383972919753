package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/habitloop/habitloop/internal/auth"
	"github.com/habitloop/habitloop/internal/store"
)

// testSecret signs tokens in tests.
const testSecret = "test-secret"

// fakeCoach is a test double for the coach interface.
type fakeCoach struct {
	// reply is returned by both Ask and Analyze on success.
	reply string
	// askErr is returned by Ask when non-nil.
	askErr error
	// analyzeErr is returned by Analyze when non-nil.
	analyzeErr error

	// askCalls counts Ask invocations.
	askCalls int
	// analyzeCalls counts Analyze invocations.
	analyzeCalls int
	// lastUserID records the user ID of the most recent call.
	lastUserID int64
	// lastQuery records the message passed to the most recent Ask call.
	lastQuery string
}

func (f *fakeCoach) Ask(_ context.Context, userID int64, query string) (string, error) {
	f.askCalls++
	f.lastUserID = userID
	f.lastQuery = query
	if f.askErr != nil {
		return "", f.askErr
	}
	return f.reply, nil
}

func (f *fakeCoach) Analyze(_ context.Context, userID int64) (string, error) {
	f.analyzeCalls++
	f.lastUserID = userID
	if f.analyzeErr != nil {
		return "", f.analyzeErr
	}
	return f.reply, nil
}

// newTestServer builds a fully wired *Server over an in-memory store, a
// fake coach, and an isolated metrics registry. The returned server's full
// middleware stack is reachable via s.httpServer.Handler.
func newTestServer(t *testing.T) (*Server, *fakeCoach) {
	t.Helper()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	tokens, err := auth.NewTokenIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}

	reg := prometheus.NewRegistry()
	coachSvc := &fakeCoach{reply: "keep it up"}

	s, err := New(st, coachSvc, tokens, &Config{
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		MetricsRegistry: reg,
		MetricsGatherer: reg,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(s.stopRL)

	return s, coachSvc
}

// registerUser creates an account directly in the store and returns the user
// together with a valid bearer token for it.
func registerUser(t *testing.T, s *Server, username string) (*store.User, string) {
	t.Helper()

	hashed, err := auth.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := s.store.CreateUser(t.Context(), username, hashed)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return user, token
}

// doJSON sends a request with a JSON body through the server's full handler
// stack. token may be empty for unauthenticated requests.
func doJSON(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)
	return w
}

// decodeBody unmarshals a recorded JSON response body into v.
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v — body: %s", err, w.Body.String())
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tokens, err := auth.NewTokenIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if _, err := New(nil, &fakeCoach{}, tokens, nil); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := New(st, nil, tokens, nil); err == nil {
		t.Error("expected error for nil coach")
	}
	if _, err := New(st, &fakeCoach{}, nil, nil); err == nil {
		t.Error("expected error for nil token issuer")
	}
}

// TestCORS_Preflight verifies OPTIONS requests are answered directly with
// the CORS headers set.
func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/habits", nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected Access-Control-Allow-Origin header")
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
		t.Error("expected Authorization in Access-Control-Allow-Headers")
	}
}
