package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/identity/pkg/authsdk"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.SigningKey = validSecret
	cfg.DatabaseFile = filepath.Join(dir, "auth.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.LogLevel = "error"
	return cfg
}

func newTestApp(t *testing.T, cfg Config) *Application {
	t.Helper()
	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown() })
	return app
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, h http.Handler, email string) *httptest.ResponseRecorder {
	t.Helper()
	return postJSON(t, h, "/v1/auth/register", authsdk.RegisterRequest{
		FirstName:       "App",
		LastName:        "Test",
		Email:           email,
		Password:        "correct-horse-battery",
		ConfirmPassword: "correct-horse-battery",
	})
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.SigningKey = ""

	_, err := New(cfg)
	require.ErrorContains(t, err, "invalid configuration")
}

func TestApplicationServesRequests(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	h := app.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = register(t, h, "app@example.com")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res authsdk.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)
}

func TestApplicationUsesRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()
	app := newTestApp(t, cfg)

	rec := register(t, app.Handler(), "redis@example.com")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var ip, account bool
	for _, k := range mr.Keys() {
		ip = ip || strings.HasPrefix(k, "identity:ratelimit:register:")
		account = account || strings.HasPrefix(k, "identity:ratelimit:register_email:")
		require.False(t, strings.HasPrefix(k, "identity:ratelimit:login"), "register must not spend login budget: %s", k)
	}
	require.True(t, ip, "per-IP limiter keys in redis: %v", mr.Keys())
	require.True(t, account, "per-IP-and-email limiter keys in redis: %v", mr.Keys())
}

func TestNewFailsWhenRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.RedisURL = "redis://" + addr

	_, err := New(cfg)
	require.ErrorContains(t, err, "failed to reach redis")
}

func TestGoogleLoginRequiresClientID(t *testing.T) {
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "attacker-1",
		"email": "victim@example.com",
		"name":  "Not Victim",
	}).SignedString([]byte("anything"))
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":   "attacker-1",
		"email": "victim@example.com",
		"name":  "Not Victim",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	t.Run("DisabledByDefault", func(t *testing.T) {
		app := newTestApp(t, testConfig(t))
		rec := register(t, app.Handler(), "victim@example.com")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = postJSON(t, app.Handler(), "/v1/auth/external/google", authsdk.ExternalLoginRequest{AccessToken: forged})
		require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
		require.Contains(t, rec.Body.String(), authsdk.ErrorCodeUnknownProvider)
	})

	t.Run("UnverifiedOptInRejectsUnsigned", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.GoogleAllowUnverify = true
		app := newTestApp(t, cfg)

		rec := postJSON(t, app.Handler(), "/v1/auth/external/google", authsdk.ExternalLoginRequest{AccessToken: unsigned})
		require.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())
	})
}
