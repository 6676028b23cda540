//go:build e2e

package auth_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/identity/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestRateLimitLoginEndpoint checks the strict profile (5 req/min per IP)
// guards password login.
func TestRateLimitLoginEndpoint(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainerWithDefaultRateLimits(t))

	for i := range 5 {
		_, err := client.Login(t.Context(), "nobody@example.com", "wrong-password", "")
		assertAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)
		t.Logf("request %d rejected as invalid credentials", i+1)
	}

	_, err := client.Login(t.Context(), "nobody@example.com", "wrong-password", "")
	assertAPIError(t, err, http.StatusTooManyRequests, authsdk.ErrorCodeRateLimited)
}

// TestRateLimitIsPerEndpoint checks exhausting login leaves refresh usable.
func TestRateLimitIsPerEndpoint(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainerWithDefaultRateLimits(t))

	for range 6 {
		_, _ = client.Login(t.Context(), "nobody@example.com", "wrong-password", "")
	}

	_, err := client.Refresh(t.Context(), "unknown-token")
	assertAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)
	require.Error(t, err)
}
