package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-session-secret-that-is-32-chars!"

func TestLoadSessionSecret(t *testing.T) {
	t.Run("from env", func(t *testing.T) {
		t.Setenv(SessionSecretEnv, testSecret)
		got, err := LoadSessionSecret(true)
		if err != nil || got != testSecret {
			t.Errorf("LoadSessionSecret() = %q, %v", got, err)
		}
	})
	t.Run("production requires secret", func(t *testing.T) {
		t.Setenv(SessionSecretEnv, "")
		if _, err := LoadSessionSecret(true); !errors.Is(err, ErrSecretRequired) {
			t.Errorf("error = %v, want ErrSecretRequired", err)
		}
	})
	t.Run("production rejects short secret", func(t *testing.T) {
		t.Setenv(SessionSecretEnv, "short")
		if _, err := LoadSessionSecret(true); err == nil {
			t.Error("expected error for short secret in production")
		}
	})
	t.Run("development generates secret", func(t *testing.T) {
		t.Setenv(SessionSecretEnv, "")
		got, err := LoadSessionSecret(false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) < minSecretLength {
			t.Errorf("generated secret too short: %d", len(got))
		}
	})
	t.Run("development tolerates short secret", func(t *testing.T) {
		t.Setenv(SessionSecretEnv, "short")
		if got, err := LoadSessionSecret(false); err != nil || got != "short" {
			t.Errorf("LoadSessionSecret() = %q, %v", got, err)
		}
	})
}

func TestCookieSigner_RoundTrip(t *testing.T) {
	s := NewCookieSigner(testSecret)
	value, err := s.Sign("sid-1", "42", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	claims, err := s.Verify(value)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.SessionID != "sid-1" || claims.Subject != "42" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestCookieSigner_Rejects(t *testing.T) {
	s := NewCookieSigner(testSecret)

	expired, _ := s.Sign("sid", "1", time.Now().Add(-time.Minute))
	otherKey, _ := NewCookieSigner("another-secret-that-is-32-characters").Sign("sid", "1", time.Now().Add(time.Hour))
	noSID, _ := s.Sign("", "1", time.Now().Add(time.Hour))
	wrongIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &CookieClaims{
		SessionID:        "sid",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(testSecret))
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &CookieClaims{SessionID: "sid"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"expired":      expired,
		"other key":    otherKey,
		"missing sid":  noSID,
		"wrong issuer": wrongIssuer,
		"alg none":     noneAlg,
		"garbage":      "not-a-jwt",
		"empty":        "",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Verify(value); !errors.Is(err, ErrInvalidSessionToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidSessionToken", err)
			}
		})
	}
}

func TestTokenExpiry(t *testing.T) {
	fallback := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)

	withExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("upstream-key-unknown-to-us"))
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1"}).SignedString([]byte("k"))

	if got := TokenExpiry(withExp, fallback); !got.Equal(exp) {
		t.Errorf("TokenExpiry(jwt) = %v, want %v", got, exp)
	}
	if got := TokenExpiry(noExp, fallback); !got.Equal(fallback) {
		t.Errorf("TokenExpiry(no exp) = %v, want fallback", got)
	}
	if got := TokenExpiry("opaque-token", fallback); !got.Equal(fallback) {
		t.Errorf("TokenExpiry(opaque) = %v, want fallback", got)
	}
}
