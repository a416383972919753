package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/habitloop/habitloop/internal/chatbot"
	"github.com/habitloop/habitloop/internal/logging"
)

// Chat metric outcome labels. Client mistakes get their own label so the
// error series only tracks pipeline failures.
const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomeInvalid = "invalid"
)

// chatOutcome classifies a coach result for the request metrics.
func chatOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, chatbot.ErrEmptyQuery):
		return outcomeInvalid
	default:
		return outcomeError
	}
}

// handleAsk handles POST /chatbot/ask. The coach's internal failures are
// deliberately opaque: callers see only 503 with a generic message while the
// detail lands in the server log.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.metrics.chatInFlight.Inc()
	start := time.Now()

	reply, err := s.coach.Ask(r.Context(), user.ID, req.Message)

	s.metrics.chatInFlight.Dec()
	outcome := chatOutcome(err)
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		s.writeCoachError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatReply{Reply: reply})
}

// handleAnalyze handles POST /chatbot/analyze. No request body; the coach
// reviews the user's tracked habits.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	s.metrics.chatInFlight.Inc()
	start := time.Now()

	reply, err := s.coach.Analyze(r.Context(), user.ID)

	s.metrics.chatInFlight.Dec()
	outcome := chatOutcome(err)
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		s.writeCoachError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatReply{Reply: reply})
}

// writeCoachError maps coach errors to HTTP statuses. Empty input is the
// caller's fault; provider outages report unavailable, storage faults and
// anything unexpected report an internal error. Detail never reaches the
// client.
func (s *Server) writeCoachError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chatbot.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "message is required")
	case errors.Is(err, chatbot.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "assistant temporarily unavailable")
	case errors.Is(err, chatbot.ErrStorage):
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		log := logging.FromContext(r.Context())
		log.Error("coach: unexpected error", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
