package authsdk

import "time"

// UserSummary is the public view of an account.
type UserSummary struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	MFAEnabled bool   `json:"mfa_enabled"`
}

// AuthResponse is returned by every endpoint that may log a user in. On
// failure Success is false and Error holds the machine code.
type AuthResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	RequiresMFA bool   `json:"requires_mfa"`

	AccessToken          string       `json:"access_token,omitempty"`
	RefreshToken         string       `json:"refresh_token,omitempty"`
	AccessTokenExpiresAt *time.Time   `json:"access_token_expires_at,omitempty"`
	User                 *UserSummary `json:"user,omitempty"`
}

// StatusResponse is the body of endpoints that only report success.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type RegisterRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfa_code,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest revokes the chain of RefreshToken, or every session of the
// caller when it is empty.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ExternalLoginRequest carries exactly one of AccessToken or Code. Token is
// the older single field; the server guesses whether it holds a code.
type ExternalLoginRequest struct {
	AccessToken string `json:"access_token,omitempty"`
	Code        string `json:"code,omitempty"`
	Token       string `json:"token,omitempty"`
}

type VerifyMFALoginRequest struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

// MFACodeRequest is the body of the MFA enable and verify endpoints.
type MFACodeRequest struct {
	Code string `json:"code"`
}

// MFASetupResponse carries what an authenticator app needs. QRCode is a
// base64 PNG of ProvisioningURI.
type MFASetupResponse struct {
	Success         bool   `json:"success"`
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	QRCode          string `json:"qr_code,omitempty"`
}

type MFAStatusResponse struct {
	Success   bool       `json:"success"`
	Enabled   bool       `json:"enabled"`
	EnabledAt *time.Time `json:"enabled_at,omitempty"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
}
