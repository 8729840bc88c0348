// Package keys derives, verifies and administers tenant API keys.
//
// Keys are never stored in plaintext. Each row carries a SHA-256 fingerprint
// used as an index and a salted PBKDF2-SHA256 hash that is verified in
// constant time once a candidate row has been found.
package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	AlgoPBKDF2SHA256  = "pbkdf2_sha256"
	DefaultIterations = 120_000
	saltBytes         = 16
	derivedKeyLen     = 32
	secretBytes       = 24
)

// Hash is the storable form of an API key.
type Hash struct {
	Algo       string
	Iterations int
	SaltB64    string
	HashB64    string
}

// Fingerprint returns the hex SHA-256 of key. It identifies a key for lookup
// and logging without revealing it.
func Fingerprint(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// Derive hashes key with a fresh random salt. iterations <= 0 selects
// DefaultIterations.
func Derive(key string, iterations int) (Hash, error) {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return Hash{}, fmt.Errorf("keys.Derive: %w", err)
	}
	dk := pbkdf2.Key([]byte(key), salt, iterations, derivedKeyLen, sha256.New)
	return Hash{
		Algo:       AlgoPBKDF2SHA256,
		Iterations: iterations,
		SaltB64:    base64.StdEncoding.EncodeToString(salt),
		HashB64:    base64.StdEncoding.EncodeToString(dk),
	}, nil
}

// Verify reports whether key matches h. Malformed hashes never match.
func Verify(key string, h Hash) bool {
	if h.Algo != AlgoPBKDF2SHA256 || h.Iterations <= 0 {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(h.SaltB64)
	if err != nil {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(h.HashB64)
	if err != nil || len(expected) == 0 {
		return false
	}
	candidate := pbkdf2.Key([]byte(key), salt, h.Iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(candidate, expected) == 1
}

// Generate returns a new random URL-safe key.
func Generate() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("keys.Generate: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
