package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// refreshBuffer is how long before expiry a Session refreshes its token.
const refreshBuffer = 30 * time.Second

// Session is an authenticated session with automatic token refresh.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	user         UserSummary
}

func (s *Session) update(res *AuthResponse) {
	s.accessToken = res.AccessToken
	s.refreshToken = res.RefreshToken
	if res.AccessTokenExpiresAt != nil {
		s.expiresAt = res.AccessTokenExpiresAt.Add(-refreshBuffer)
	} else {
		s.expiresAt = time.Time{}
	}
	if res.User != nil {
		s.user = *res.User
	}
}

// getValidToken returns a valid access token, refreshing it if it is about
// to expire.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if s.refreshToken == "" {
		return "", fmt.Errorf("access token expired and no refresh token available")
	}

	res, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	s.update(res)
	return s.accessToken, nil
}

// Refresh rotates the tokens now regardless of expiry.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return err
	}
	s.update(res)
	return nil
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// User is the account summary from the last login or refresh.
func (s *Session) User() UserSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) authCall(ctx context.Context, method, path string, body, target any) error {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return err
	}
	return s.client.call(ctx, method, path, token, body, target)
}

// Logout revokes this session's refresh token chain.
func (s *Session) Logout(ctx context.Context) error {
	return s.authCall(ctx, http.MethodPost, "/v1/auth/logout", LogoutRequest{RefreshToken: s.RefreshToken()}, nil)
}

// RevokeAll signs the user out of every session, this one included.
func (s *Session) RevokeAll(ctx context.Context) error {
	return s.authCall(ctx, http.MethodPost, "/v1/auth/revoke-all", nil, nil)
}
