package jwtx

import (
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Authentication Methods Reference values.
const (
	AMRPassword = "pwd"
	AMRMFA      = "mfa"
	AMRExternal = "ext"
	AMRRefresh  = "refresh"
)

// Claims are the access-token claims. New fields must stay additive so older
// tokens keep parsing.
type Claims struct {
	jwt.RegisteredClaims

	Email      string `json:"email,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Name       string `json:"name,omitempty"`

	// MFA reports whether the subject had MFA enabled when the token was
	// minted, not whether this session passed a second factor (see AMR).
	MFA bool `json:"mfa"`

	// AMR lists how this session authenticated, e.g. ["pwd","mfa"].
	AMR []string `json:"amr,omitempty"`
}

// Subject describes who an access token is minted for.
type Subject struct {
	ID         string
	Email      string
	GivenName  string
	FamilyName string
	MFAEnabled bool
	AMR        []string
}

// NewAccessClaims builds minimally-correct claims with a fresh jti.
func NewAccessClaims(sub Subject, ttl time.Duration, issuer string, audience []string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sub.ID,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Email:      sub.Email,
		GivenName:  sub.GivenName,
		FamilyName: sub.FamilyName,
		Name:       strings.TrimSpace(sub.GivenName + " " + sub.FamilyName),
		MFA:        sub.MFAEnabled,
		AMR:        sub.AMR,
	}
}

// NewJTI returns a random identifier for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiryWithLeeway checks exp and nbf allowing for clock skew.
func (c *Claims) ValidateExpiryWithLeeway(leeway time.Duration) error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}

// ValidateExpiry is ValidateExpiryWithLeeway without leeway.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryWithLeeway(0)
}
