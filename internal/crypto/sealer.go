// Package crypto seals upstream access tokens before they are written to a
// session store. A sealed token is bound to the session ID it was issued for,
// so copying a ciphertext into another session record makes it unreadable.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrKeyLengthInvalid is returned when a key is not exactly 32 bytes.
	ErrKeyLengthInvalid = errors.New("crypto: key must be exactly 32 bytes for AES-256")
	// ErrCiphertextCorrupted is returned when the input is not valid base64 or is shorter than a nonce.
	ErrCiphertextCorrupted = errors.New("crypto: ciphertext is corrupted or tampered")
	// ErrDecryptionFailed is returned when GCM authentication fails: wrong key, wrong session or tampering.
	ErrDecryptionFailed = errors.New("crypto: decryption operation failed")
	// ErrSecretTooShort is returned when the passphrase used for key derivation is shorter than 32 bytes.
	ErrSecretTooShort = errors.New("crypto: secret must be at least 32 bytes")
)

const (
	minSecretLen     = 32
	deriveIterations = 100000
)

// TokenSealer encrypts upstream bearer tokens with AES-256-GCM.
type TokenSealer struct {
	aead cipher.AEAD
}

// NewTokenSealer builds a sealer from a raw 32-byte key.
func NewTokenSealer(key []byte) (*TokenSealer, error) {
	if len(key) != 32 {
		return nil, ErrKeyLengthInvalid
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &TokenSealer{aead: aead}, nil
}

// DeriveTokenSealer stretches the session signing secret with PBKDF2-SHA256.
// The salt is configuration, not a secret; rotating it invalidates every stored token.
func DeriveTokenSealer(secret, salt string) (*TokenSealer, error) {
	if len(secret) < minSecretLen {
		return nil, ErrSecretTooShort
	}
	key := pbkdf2.Key([]byte(secret), []byte("ventas-token:"+salt), deriveIterations, 32, sha256.New)
	return NewTokenSealer(key)
}

// Seal encrypts token for the session sessionID. An empty token seals to "".
func (s *TokenSealer) Seal(sessionID, token string) (string, error) {
	if token == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(token), []byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. The same sessionID must be supplied.
func (s *TokenSealer) Open(sessionID, sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrCiphertextCorrupted
	}
	n := s.aead.NonceSize()
	if len(raw) < n {
		return "", ErrCiphertextCorrupted
	}
	plain, err := s.aead.Open(nil, raw[:n], raw[n:], []byte(sessionID))
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// GenerateSecret returns a random base64 secret suitable for VENTAS_SESSION_SECRET.
func GenerateSecret() (string, error) {
	buf := make([]byte, 48)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
