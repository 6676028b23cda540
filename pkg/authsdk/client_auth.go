package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Register creates a password account and logs it in.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	return c.authCall(ctx, "/v1/auth/register", req)
}

// Login authenticates with email and password. mfaCode may be empty; users
// with MFA enabled then get a response with RequiresMFA set and no tokens.
func (c *SDKClient) Login(ctx context.Context, email, password, mfaCode string) (*AuthResponse, error) {
	return c.authCall(ctx, "/v1/auth/login", LoginRequest{
		Email:    email,
		Password: password,
		MFACode:  mfaCode,
	})
}

// ExternalLogin signs in with a Google, GitHub or Discord credential.
func (c *SDKClient) ExternalLogin(ctx context.Context, provider string, req ExternalLoginRequest) (*AuthResponse, error) {
	return c.authCall(ctx, "/v1/auth/external/"+url.PathEscape(provider), req)
}

// VerifyMFALogin completes a login that returned RequiresMFA.
func (c *SDKClient) VerifyMFALogin(ctx context.Context, userID, code string) (*AuthResponse, error) {
	return c.authCall(ctx, "/v1/auth/mfa/verify-login", VerifyMFALoginRequest{UserID: userID, Code: code})
}

// Refresh exchanges a refresh token for a new token pair. The old refresh
// token is no longer valid afterwards.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	return c.authCall(ctx, "/v1/auth/refresh", RefreshRequest{RefreshToken: refreshToken})
}

func (c *SDKClient) authCall(ctx context.Context, path string, body any) (*AuthResponse, error) {
	var res AuthResponse
	if err := c.call(ctx, http.MethodPost, path, "", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
