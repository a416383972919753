package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/habitloop/habitloop/internal/logging"
	"github.com/habitloop/habitloop/internal/store"
)

// ctxKey is an unexported context key type so values set by this package
// cannot collide with keys from other packages.
type ctxKey int

// userKey carries the authenticated *store.User through the request context.
const userKey ctxKey = iota

// credentialsError is the one detail string every authentication failure
// returns. Missing header, bad signature, expired token, and deleted user are
// indistinguishable to callers.
const credentialsError = "could not validate credentials"

// requireUser returns an HTTP middleware that enforces bearer-token
// authentication. It validates the JWT, resolves the subject to a stored
// user, and injects the user into the request context for handlers to read
// via [userFrom].
//
// Protected routes must supply:
//
//	Authorization: Bearer <token>
//
// Any failure receives 401 Unauthorized with a WWW-Authenticate: Bearer
// challenge. The token value itself is never logged.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context())

		token := bearerToken(r)
		if token == "" {
			log.Warn("auth: missing bearer token",
				slog.String("path", r.URL.Path),
			)
			unauthorized(w)
			return
		}

		username, err := s.tokens.Validate(token)
		if err != nil {
			log.Warn("auth: token rejected",
				slog.String("path", r.URL.Path),
				slog.Any("error", err),
			)
			unauthorized(w)
			return
		}

		user, err := s.store.UserByUsername(r.Context(), username)
		if err != nil {
			log.Warn("auth: token subject has no account",
				slog.String("path", r.URL.Path),
			)
			unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// unauthorized writes the uniform 401 response with a Bearer challenge.
func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="habitloop"`)
	writeError(w, http.StatusUnauthorized, credentialsError)
}

// userFrom returns the authenticated user injected by requireUser, or nil
// when the request did not pass through the middleware.
func userFrom(ctx context.Context) *store.User {
	u, _ := ctx.Value(userKey).(*store.User)
	return u
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns an empty string if the header is absent or malformed.
func bearerToken(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return ""
	}
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
