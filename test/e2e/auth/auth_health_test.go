//go:build e2e

package auth_test

import (
	"io"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/identity/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestLivezEndpoint(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainer(t))

	health, err := client.GetLiveness(t.Context())
	assertHealthy(t, health, err)
}

func TestReadyzEndpoint(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainer(t))

	health, err := client.GetReadiness(t.Context())
	assertHealthy(t, health, err)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
}

// TestMetricsEndpoint checks the Prometheus exposition includes the
// identity counters once a login has happened.
func TestMetricsEndpoint(t *testing.T) {
	baseURL := setupAuthContainer(t)
	client := authsdk.NewSDKClient(baseURL)
	registerUser(t, client, uniqueEmail())

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, baseURL+"/metrics", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `identity_logins_total{method="register",outcome="issued"} 1`)
}
