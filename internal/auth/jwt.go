// Package auth - jwt.go signs and verifies the browser session cookie and reads
// the expiry of upstream access tokens.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionSecretEnv names the environment variable holding the cookie signing secret.
const SessionSecretEnv = "VENTAS_SESSION_SECRET"

const (
	cookieIssuer       = "ventas-dashboard"
	minSecretLength    = 32
	generatedSecretLen = 32
)

var (
	// ErrSecretRequired is returned in production when VENTAS_SESSION_SECRET is unset.
	ErrSecretRequired = errors.New("SECURITY ERROR: " + SessionSecretEnv + " environment variable is required in production. " +
		"Generate a secure secret with: openssl rand -hex 32")
	// ErrInvalidSessionToken is returned for cookies that fail signature, issuer or expiry checks.
	ErrInvalidSessionToken = errors.New("invalid session token")
)

// LoadSessionSecret reads the cookie signing secret from the environment.
// In production a missing secret is fatal; in development a random one is
// generated and sessions will not survive a restart.
func LoadSessionSecret(production bool) (string, error) {
	secret := os.Getenv(SessionSecretEnv)
	if secret == "" {
		if production {
			return "", ErrSecretRequired
		}
		buf := make([]byte, generatedSecretLen)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate development secret: %w", err)
		}
		slog.Warn(SessionSecretEnv + " not set; using auto-generated secret for development")
		slog.Warn("sessions will not persist across restarts; set " + SessionSecretEnv + " for persistent sessions")
		return hex.EncodeToString(buf), nil
	}
	if len(secret) < minSecretLength {
		if production {
			return "", fmt.Errorf("%s must be at least %d characters", SessionSecretEnv, minSecretLength)
		}
		slog.Warn(SessionSecretEnv+" is shorter than recommended", "min_length", minSecretLength)
	}
	return secret, nil
}

// CookieClaims is the payload of the session cookie. It only references the
// server-side session; identity and token never leave the server.
type CookieClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// CookieSigner issues and verifies HS256 session cookies.
type CookieSigner struct {
	secret []byte
	now    func() time.Time
}

// NewCookieSigner returns a signer for secret.
func NewCookieSigner(secret string) *CookieSigner {
	return &CookieSigner{secret: []byte(secret), now: time.Now}
}

// Sign issues a cookie value for the session sessionID owned by subject, valid until expiresAt.
func (s *CookieSigner) Sign(sessionID, subject string, expiresAt time.Time) (string, error) {
	now := s.now()
	claims := &CookieClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cookieIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses and validates a cookie value.
func (s *CookieSigner) Verify(value string) (*CookieClaims, error) {
	token, err := jwt.ParseWithClaims(value, &CookieClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(cookieIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	claims, ok := token.Claims.(*CookieClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidSessionToken
	}
	return claims, nil
}

// TokenExpiry returns the exp claim of an upstream access token without
// verifying it; the upstream API remains the authority on validity. Opaque or
// exp-less tokens yield fallback.
func TokenExpiry(token string, fallback time.Time) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return fallback
	}
	if claims.ExpiresAt == nil {
		return fallback
	}
	return claims.ExpiresAt.Time
}
