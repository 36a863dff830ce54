package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestTokenService(secret string) *TokenService {
	s := NewTokenService(secret)
	s.WithLifetimes(time.Hour, 15*time.Minute)
	return s
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestTokenService("test-secret")

	for _, purpose := range []TokenPurpose{PurposeSession, PurposePasswordReset} {
		token, err := s.Issue("account-123", purpose)
		if err != nil {
			t.Fatalf("Issue(%s) error: %v", purpose, err)
		}

		subjectID, err := s.Verify(token, purpose)
		if err != nil {
			t.Fatalf("Verify(%s) error: %v", purpose, err)
		}
		if subjectID != "account-123" {
			t.Fatalf("subject mismatch: got %q want %q", subjectID, "account-123")
		}
	}
}

func TestVerify_PurposeMismatch(t *testing.T) {
	t.Parallel()

	s := newTestTokenService("test-secret")

	resetToken, err := s.Issue("account-123", PurposePasswordReset)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := s.Verify(resetToken, PurposeSession); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("reset token must not verify as session token, got %v", err)
	}

	sessionToken, err := s.Issue("account-123", PurposeSession)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := s.Verify(sessionToken, PurposePasswordReset); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("session token must not verify as reset token, got %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestTokenService("test-secret")
	s.now = func() time.Time { return base }

	token, err := s.Issue("account-123", PurposePasswordReset)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	// Still valid just before the 15 minute lifetime elapses.
	s.now = func() time.Time { return base.Add(14 * time.Minute) }
	if _, err := s.Verify(token, PurposePasswordReset); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}

	s.now = func() time.Time { return base.Add(16 * time.Minute) }
	if _, err := s.Verify(token, PurposePasswordReset); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expired token should fail with ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	token, err := newTestTokenService("right-secret").Issue("account-123", PurposeSession)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := newTestTokenService("wrong-secret").Verify(token, PurposeSession); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("token signed with another secret should fail, got %v", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	t.Parallel()

	s := newTestTokenService("test-secret")

	for _, garbage := range []string{
		"",
		"not-a-jwt",
		"aaaa.bbbb.cccc",
		"eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiJ4In0.",
	} {
		if _, err := s.Verify(garbage, PurposeSession); !errors.Is(err, ErrInvalidOrExpiredToken) {
			t.Fatalf("Verify(%q) should fail with ErrInvalidOrExpiredToken, got %v", garbage, err)
		}
	}
}
