package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestRequireUser_MissingHeader verifies that a request with no Authorization
// header receives 401 with a Bearer challenge.
func TestRequireUser_MissingHeader(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/users/me", "", "")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header on 401")
	}
}

// TestRequireUser_GarbageToken verifies that a syntactically invalid token
// receives 401.
func TestRequireUser_GarbageToken(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/users/me", "not-a-jwt", "")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

// TestRequireUser_UnknownSubject verifies that a validly signed token whose
// subject has no account is rejected with 401. The detail string must not
// reveal which check failed.
func TestRequireUser_UnknownSubject(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	token, err := s.tokens.Issue("ghost")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	w := doJSON(t, s, http.MethodGet, "/users/me", token, "")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	var resp errorResponse
	decodeBody(t, w, &resp)
	if resp.Detail != credentialsError {
		t.Errorf("expected uniform detail %q, got %q", credentialsError, resp.Detail)
	}
}

// TestRequireUser_ValidToken verifies that a valid token resolves the user
// and reaches the downstream handler.
func TestRequireUser_ValidToken(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	user, token := registerUser(t, s, "alice")

	w := doJSON(t, s, http.MethodGet, "/users/me", token, "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp userResponse
	decodeBody(t, w, &resp)
	if resp.ID != user.ID || resp.Username != "alice" {
		t.Errorf("unexpected user in response: %+v", resp)
	}
}

// TestBearerToken verifies the bearerToken extraction helper.
func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
	}{
		{"Bearer mytoken", "mytoken"},
		{"bearer mytoken", "mytoken"},
		{"BEARER mytoken", "mytoken"},
		{"Bearer  spaced ", "spaced"},
		{"Basic dXNlcjpwYXNz", ""},
		{"", ""},
		{"Bearer", ""},
		{"token only", ""},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		got := bearerToken(req)
		if got != tc.want {
			t.Errorf("header=%q: expected %q, got %q", tc.header, tc.want, got)
		}
	}
}
