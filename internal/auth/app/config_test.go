package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const validSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AUTH_CONFIG_FILE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "identity", cfg.Issuer)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	require.Equal(t, "Demo Auth App", cfg.AppName)
	require.Equal(t, "@every 1m", cfg.StatsSchedule)
	require.Equal(t, 8080, cfg.Port)
	require.False(t, cfg.GoogleEnabled(), "google login needs a client id or an explicit opt-in")
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("AUTH_CONFIG_FILE", "")
	t.Setenv("AUTH_ISSUER", "https://id.example.com")
	t.Setenv("AUTH_AUDIENCE", "web, mobile,,")
	t.Setenv("AUTH_ACCESS_TTL", "5m")
	t.Setenv("AUTH_REFRESH_TTL", "30") // bare minutes
	t.Setenv("PORT", "9090")
	t.Setenv("PROVIDER_TIMEOUT", "garbage")
	t.Setenv("GOOGLE_ALLOW_UNVERIFIED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "https://id.example.com", cfg.Issuer)
	require.Equal(t, []string{"web", "mobile"}, cfg.Audience)
	require.Equal(t, 5*time.Minute, cfg.AccessTTL)
	require.Equal(t, 30*time.Minute, cfg.RefreshTTL)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	require.True(t, cfg.GoogleAllowUnverify)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
issuer: from-file
audience: [app]
app_name: File App
access_ttl: 2m
port: 7000
`), 0o600))

	t.Setenv("AUTH_CONFIG_FILE", path)
	t.Setenv("PORT", "7001")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.Issuer)
	require.Equal(t, []string{"app"}, cfg.Audience)
	require.Equal(t, "File App", cfg.AppName)
	require.Equal(t, 2*time.Minute, cfg.AccessTTL)
	require.Equal(t, 7001, cfg.Port, "environment wins over the file")
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTTL, "unset keys keep defaults")

	t.Run("UnknownKey", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("isuer: typo\n"), 0o600))

		cfg := DefaultConfig()
		require.Error(t, LoadConfigFile(bad, &cfg))
	})

	t.Run("Missing", func(t *testing.T) {
		cfg := DefaultConfig()
		require.Error(t, LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"), &cfg))
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.SigningKey = validSecret
		return cfg
	}

	require.NoError(t, valid().Validate())

	t.Run("UnverifiedGoogleInDev", func(t *testing.T) {
		cfg := valid()
		cfg.GoogleAllowUnverify = true
		require.NoError(t, cfg.Validate())
		require.True(t, cfg.GoogleEnabled())
	})

	t.Run("VerifiedGoogleInProd", func(t *testing.T) {
		cfg := valid()
		cfg.Env = "prod"
		cfg.GoogleClientID = "client.apps.googleusercontent.com"
		cfg.GoogleAllowUnverify = true
		require.NoError(t, cfg.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"NoSigningKey", func(c *Config) { c.SigningKey = "" }},
		{"BothKeys", func(c *Config) { c.SigningKeyFile = "/keys/ed25519.pem" }},
		{"ShortSecret", func(c *Config) { c.SigningKey = "short" }},
		{"GitHubWithoutSecret", func(c *Config) { c.GitHubClientID = "gh" }},
		{"DiscordWithoutSecret", func(c *Config) { c.DiscordClientID = "dc" }},
		{"UnverifiedGoogleInProd", func(c *Config) { c.GoogleAllowUnverify = true; c.Env = "prod" }},
		{"ZeroTTL", func(c *Config) { c.AccessTTL = 0 }},
		{"BadPort", func(c *Config) { c.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
