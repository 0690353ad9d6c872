// Package security holds secret hashing and signing key helpers.
package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidKey is returned when the PEM content is missing or not an EC key.
var ErrInvalidKey = errors.New("invalid key")

// LoadPEM returns s when it is inline PEM, otherwise reads the file at path s.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if strings.HasPrefix(s, "-----BEGIN") {
		return []byte(s), nil
	}
	return os.ReadFile(s)
}

// SigningKey parses an ES256 private key from inline PEM or a file path.
// An empty value yields a fresh P-256 key, so tokens do not survive restarts.
func SigningKey(s string) (*ecdsa.PrivateKey, error) {
	if strings.TrimSpace(s) == "" {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}
	pemBytes, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, errors.Join(ErrInvalidKey, err)
	}
	return key, nil
}
