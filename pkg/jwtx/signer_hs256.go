package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinHMACSecretSize is the shortest HS256 secret accepted (256 bits).
const MinHMACSecretSize = 32

// HS256Signer signs with a symmetric secret. Anything that can verify these
// tokens can also mint them, so the secret never leaves this service.
type HS256Signer struct {
	kid    string
	secret []byte
}

func newHS256Signer(kid string, secret []byte) (*HS256Signer, error) {
	if len(secret) < MinHMACSecretSize {
		return nil, fmt.Errorf("jwtx: HS256 secret must be at least %d bytes, got %d", MinHMACSecretSize, len(secret))
	}
	return &HS256Signer{kid: kid, secret: append([]byte(nil), secret...)}, nil
}

func (s *HS256Signer) Alg() string { return jwt.SigningMethodHS256.Alg() }
func (s *HS256Signer) KID() string { return s.kid }

func (s *HS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.secret)
}

func (s *HS256Signer) Validate() error {
	if len(s.secret) < MinHMACSecretSize {
		return errors.New("jwtx: HS256 secret too short")
	}
	return nil
}

func (s *HS256Signer) verificationKey() any { return s.secret }
