package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/habitloop/habitloop/internal/auth"
	"github.com/habitloop/habitloop/internal/logging"
	"github.com/habitloop/habitloop/internal/store"
)

// minPasswordLength is the minimum accepted password length at registration.
const minPasswordLength = 8

// handleRegister handles POST /users/register. It hashes the password and
// creates the account, rejecting duplicate usernames with 400.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error("register: hash failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Username, hashed)
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			writeError(w, http.StatusBadRequest, "username already registered")
			return
		}
		log.Error("register: create failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{
		ID:       user.ID,
		Username: user.Username,
		Habits:   []habitResponse{},
	})
}

// handleToken handles POST /token. Credentials arrive form-encoded as
// username and password; a valid pair yields a signed bearer token.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := s.store.UserByUsername(r.Context(), username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error("token: user lookup failed", slog.Any("error", err))
		}
		badCredentials(w)
		return
	}
	if !auth.VerifyPassword(user.HashedPassword, password) {
		badCredentials(w)
		return
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		log.Error("token: issue failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// badCredentials writes the uniform 401 for a failed login. Unknown username
// and wrong password are indistinguishable to callers.
func badCredentials(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="habitloop"`)
	writeError(w, http.StatusUnauthorized, "incorrect username or password")
}

// handleMe handles GET /users/me for the authenticated user, including
// their habit list.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	user := userFrom(r.Context())

	habits, err := s.store.HabitsForUser(r.Context(), user.ID, 0, listLimitMax)
	if err != nil {
		log.Error("me: habit list failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := userResponse{
		ID:       user.ID,
		Username: user.Username,
		Habits:   make([]habitResponse, 0, len(habits)),
	}
	for i := range habits {
		resp.Habits = append(resp.Habits, toHabitResponse(&habits[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}
