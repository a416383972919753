package auth

import (
	"errors"
	"testing"
	"time"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !VerifyPassword(hash, "s3cret-pass") {
		t.Error("correct password rejected")
	}
	if VerifyPassword(hash, "wrong-pass") {
		t.Error("wrong password accepted")
	}
}

func TestTokenIssueAndValidate(t *testing.T) {
	t.Parallel()

	issuer, err := NewTokenIssuer("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}

	token, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	username, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if username != "alice" {
		t.Errorf("subject = %q, want alice", username)
	}
}

func TestTokenRejectedWithWrongSecret(t *testing.T) {
	t.Parallel()

	issuer, _ := NewTokenIssuer("secret-a", time.Minute)
	other, _ := NewTokenIssuer("secret-b", time.Minute)

	token, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("want ErrInvalidToken, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	t.Parallel()

	issuer, _ := NewTokenIssuer("test-secret", time.Nanosecond)
	token, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := issuer.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("want ErrInvalidToken for expired token, got %v", err)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	t.Parallel()

	issuer, _ := NewTokenIssuer("test-secret", time.Minute)
	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := issuer.Validate(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate(%q): want ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenIssuer("", time.Minute); err == nil {
		t.Fatal("expected an error for empty secret")
	}
}
