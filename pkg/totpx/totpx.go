// Package totpx implements RFC 6238 time-based one-time passwords as used by
// authenticator apps: 6 digits, 30 second steps, HMAC-SHA1.
package totpx

import (
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// SecretSize is the number of random bytes in a generated secret.
	SecretSize = 20

	Period = 30
	Digits = otp.DigitsSix

	// Skew is how many steps either side of the current one are accepted.
	Skew = 1
)

var validateOpts = totp.ValidateOpts{
	Period:    Period,
	Skew:      Skew,
	Digits:    Digits,
	Algorithm: otp.AlgorithmSHA1,
}

func generateOpts(issuer, account string) totp.GenerateOpts {
	return totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      Period,
		SecretSize:  SecretSize,
		Digits:      Digits,
		Algorithm:   otp.AlgorithmSHA1,
	}
}

// NewKey generates a fresh key for account. key.Secret() is the base32
// secret to store and key.URL() the otpauth:// URI to show.
func NewKey(issuer, account string) (*otp.Key, error) {
	key, err := totp.Generate(generateOpts(issuer, account))
	if err != nil {
		return nil, fmt.Errorf("totpx: generate key: %w", err)
	}
	return key, nil
}

// KeyFor rebuilds the key of an already stored secret, so a pending
// enrollment shows the same URI every time.
func KeyFor(issuer, account, secret string) (*otp.Key, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		return nil, fmt.Errorf("totpx: decode secret: %w", err)
	}

	opts := generateOpts(issuer, account)
	opts.Secret = raw
	key, err := totp.Generate(opts)
	if err != nil {
		return nil, fmt.Errorf("totpx: build key: %w", err)
	}
	return key, nil
}

// Verify reports whether code is valid for secret at t, accepting the
// adjacent steps either side. Comparison is constant time.
func Verify(secret, code string, t time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != Digits.Length() {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, t.UTC(), validateOpts)
	return err == nil && ok
}

// Code returns the code for secret at t.
func Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), validateOpts)
}
