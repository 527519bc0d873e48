// Package auth issues and verifies the bearer tokens that protect the
// API, and owns password hashing for stored credentials.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Issuer names this service in issued tokens.
const Issuer = "jobboard"

// DefaultTTL bounds token lifetime when no explicit TTL is configured.
const DefaultTTL = 24 * time.Hour

// ErrInvalidToken reports a missing, malformed, expired or wrongly
// signed token.
var ErrInvalidToken = errors.New("invalid token")

// ErrInvalidCredentials reports a failed email/password login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UserID string
	Name   string
	Role   string
}

// claims is the wire shape of issued tokens.
type claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
}

// Manager signs and verifies HS256 tokens with a shared secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a Manager. The secret must be non-empty; ttl
// falls back to DefaultTTL when zero or negative.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token identifying the given user and returns it along
// with its expiry.
func (m *Manager) Issue(userID, name, role string) (string, time.Time, error) {
	now := m.now().UTC()
	expires := now.Add(m.ttl)
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Name: name,
		Role: role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

// Verify parses and validates a token, returning the identity it
// carries.
func (m *Manager) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed.Subject == "" || parsed.Role == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: parsed.Subject, Name: parsed.Name, Role: parsed.Role}, nil
}

// TTL reports the configured token lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// HashPassword hashes a plaintext password for storage at the default
// cost.
func HashPassword(plain string) (string, error) {
	return HashPasswordCost(plain, 0)
}

// HashPasswordCost hashes a plaintext password at the given bcrypt
// cost. Costs outside the bcrypt range fall back to the default.
func HashPasswordCost(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches the stored hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
