package authsdk

import (
	"context"
	"net/http"
)

// SetupMFA starts TOTP enrollment. Calling it again before EnableMFA
// returns the same secret.
func (s *Session) SetupMFA(ctx context.Context) (*MFASetupResponse, error) {
	var res MFASetupResponse
	if err := s.authCall(ctx, http.MethodPost, "/v1/mfa/setup", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// EnableMFA finishes enrollment with a code from the authenticator app.
func (s *Session) EnableMFA(ctx context.Context, code string) error {
	return s.authCall(ctx, http.MethodPost, "/v1/mfa/enable", MFACodeRequest{Code: code}, nil)
}

// VerifyMFA checks a code without logging in again.
func (s *Session) VerifyMFA(ctx context.Context, code string) error {
	return s.authCall(ctx, http.MethodPost, "/v1/mfa/verify", MFACodeRequest{Code: code}, nil)
}

func (s *Session) DisableMFA(ctx context.Context) error {
	return s.authCall(ctx, http.MethodDelete, "/v1/mfa", nil, nil)
}

func (s *Session) MFAStatus(ctx context.Context) (*MFAStatusResponse, error) {
	var res MFAStatusResponse
	if err := s.authCall(ctx, http.MethodGet, "/v1/mfa/status", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
