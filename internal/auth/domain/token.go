package domain

import "time"

// Revocation tags recorded in RefreshToken.RevokedBy.
const (
	RevokedByRotation     = "rotation"
	RevokedByLogout       = "logout"
	RevokedByRevokeAll    = "revoke_all"
	RevokedByUserInactive = "user_inactive"
)

// RefreshToken models the stored refresh token record in the DB. The opaque
// value is never stored, only its fingerprint.
type RefreshToken struct {
	ID             string
	UserID         string
	TokenHash      string // deterministic fingerprint (base64url SHA-256)
	ExpiresAt      time.Time
	Revoked        bool
	RevokedAt      *time.Time
	RevokedBy      string
	ReplacedByHash string // fingerprint of the successor in the rotation chain
	CreatedAt      time.Time
}

// IsActive reports whether the token may still be exchanged.
func (t RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// IssuedRefreshToken pairs the opaque value handed to the client with the
// record that was persisted for it.
type IssuedRefreshToken struct {
	Token  string
	Record RefreshToken
}

// AccessToken is a signed access credential and its expiry.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}
