package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/habitloop/habitloop/internal/logging"
	"github.com/habitloop/habitloop/internal/store"
)

// List pagination bounds for GET /habits.
const (
	listLimitDefault = 100
	listLimitMax     = 1000
)

// toHabitResponse converts a stored habit into its JSON shape. The completion
// date is rendered as YYYY-MM-DD to match how it is stored.
func toHabitResponse(h *store.Habit) habitResponse {
	resp := habitResponse{
		ID:          h.ID,
		Name:        h.Name,
		Description: h.Description,
	}
	if h.LastCompletedAt != nil {
		day := h.LastCompletedAt.Format("2006-01-02")
		resp.LastCompletedAt = &day
	}
	return resp
}

// habitID parses the {id} path segment. Returns false after writing a 404
// when the segment is not a positive integer.
func habitID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "habit not found")
		return 0, false
	}
	return id, true
}

// handleHabitCreate handles POST /habits for the authenticated user.
func (s *Server) handleHabitCreate(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	user := userFrom(r.Context())

	var req habitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	habit, err := s.store.CreateHabit(r.Context(), user.ID, req.Name, req.Description)
	if err != nil {
		log.Error("habit create failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, toHabitResponse(habit))
}

// handleHabitList handles GET /habits with skip/limit pagination.
func (s *Server) handleHabitList(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	user := userFrom(r.Context())

	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", listLimitDefault)
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > listLimitMax {
		limit = listLimitDefault
	}

	habits, err := s.store.HabitsForUser(r.Context(), user.ID, skip, limit)
	if err != nil {
		log.Error("habit list failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]habitResponse, 0, len(habits))
	for i := range habits {
		resp = append(resp, toHabitResponse(&habits[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleHabitUpdate handles PUT /habits/{id}. Acting on another user's habit
// is indistinguishable from a missing one: both return 404.
func (s *Server) handleHabitUpdate(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	user := userFrom(r.Context())

	id, ok := habitID(w, r)
	if !ok {
		return
	}

	var req habitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	habit, err := s.store.UpdateHabit(r.Context(), user.ID, id, req.Name, req.Description)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "habit not found")
			return
		}
		log.Error("habit update failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toHabitResponse(habit))
}

// handleHabitToggle handles PUT /habits/{id}/toggle, flipping today's
// completion state.
func (s *Server) handleHabitToggle(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	user := userFrom(r.Context())

	id, ok := habitID(w, r)
	if !ok {
		return
	}

	habit, err := s.store.ToggleHabit(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "habit not found")
			return
		}
		log.Error("habit toggle failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toHabitResponse(habit))
}

// handleHabitDelete handles DELETE /habits/{id}.
func (s *Server) handleHabitDelete(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	user := userFrom(r.Context())

	id, ok := habitID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteHabit(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "habit not found")
			return
		}
		log.Error("habit delete failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// queryInt parses an integer query parameter, returning def when the
// parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
