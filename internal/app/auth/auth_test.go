package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestNewManagerRequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewManager("", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewManager("   ", time.Hour); err == nil {
		t.Fatal("expected error for blank secret")
	}

	m, err := NewManager("s", 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.TTL() != DefaultTTL {
		t.Fatalf("TTL = %v, want %v", m.TTL(), DefaultTTL)
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	token, expires, err := m.Issue("7", "Ada Lovelace", "employer")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("Issue returned empty token")
	}
	if until := time.Until(expires); until < 55*time.Minute || until > time.Hour {
		t.Fatalf("expiry %v not about an hour out", expires)
	}

	id, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != "7" || id.Name != "Ada Lovelace" || id.Role != "employer" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	base := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	token, expires, err := m.Issue("1", "a", "job_seeker")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if want := base.Add(time.Hour); !expires.Equal(want) {
		t.Fatalf("expiry = %v, want %v", expires, want)
	}

	m.now = func() time.Time { return base.Add(30 * time.Minute) }
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("Verify before expiry: %v", err)
	}

	m.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify after expiry = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	other, err := NewManager("other-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	token, _, err := m.Issue("1", "a", "job_seeker")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyMalformedToken(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	for _, token := range []string{"", "   ", "not-a-token", "a.b.c"} {
		if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify(%q) = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "employer",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsMissingRole(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	now := time.Now().UTC()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify = %v, want ErrInvalidToken", err)
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter2!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2!" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "hunter2!") {
		t.Fatal("CheckPassword rejected correct password")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("CheckPassword accepted wrong password")
	}
}
