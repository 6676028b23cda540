package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/service"
	"github.com/aussiebroadwan/identity/pkg/jwtx"
	"gopkg.in/yaml.v3"
)

// Config is built once at startup and handed to every component.
type Config struct {
	Issuer   string   `yaml:"issuer"`   // issuer claim for access tokens (default: identity)
	Audience []string `yaml:"audience"` // audience claim; AUTH_AUDIENCE is comma separated

	SigningKey     string `yaml:"signing_key"`      // HS256 secret, at least 32 bytes
	SigningKeyFile string `yaml:"signing_key_file"` // Ed25519 PKCS8 PEM; selects EdDSA
	KeyID          string `yaml:"key_id"`           // kid header (default: default)

	AccessTTL  time.Duration `yaml:"access_ttl"`  // default: 15m
	RefreshTTL time.Duration `yaml:"refresh_ttl"` // default: 168h

	DatabaseFile string `yaml:"database_file"` // SQLite database path (default: ./auth.db)
	PepperFile   string `yaml:"pepper_file"`   // password pepper path (default: ./pepper)
	AppName      string `yaml:"app_name"`      // TOTP issuer shown in authenticator apps

	GoogleClientID      string        `yaml:"google_client_id"`
	GoogleAllowUnverify bool          `yaml:"google_allow_unverified"` // dev/test only
	GitHubClientID      string        `yaml:"github_client_id"`
	GitHubClientSecret  string        `yaml:"github_client_secret"`
	DiscordClientID     string        `yaml:"discord_client_id"`
	DiscordClientSecret string        `yaml:"discord_client_secret"`
	DiscordRedirectURI  string        `yaml:"discord_redirect_uri"`
	ProviderTimeout     time.Duration `yaml:"provider_timeout"` // default: 10s

	RedisURL      string `yaml:"redis_url"`      // optional; enables the shared login limiter
	StatsSchedule string `yaml:"stats_schedule"` // cron spec (default: @every 1m)

	Env                 string        `yaml:"env"`        // dev, staging, prod (default: dev)
	LogLevel            string        `yaml:"log_level"`  // debug, info, warn, error (default: info)
	LogFormat           string        `yaml:"log_format"` // json, text (default: json)
	Port                int           `yaml:"port"`       // default: 8080
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Issuer:              "identity",
		KeyID:               "default",
		AccessTTL:           jwtx.DefaultAccessTokenTTL,
		RefreshTTL:          jwtx.DefaultRefreshTokenTTL,
		DatabaseFile:        "auth.db",
		PepperFile:          "pepper",
		AppName:             service.DefaultMFAIssuer,
		ProviderTimeout:     10 * time.Second,
		StatsSchedule:       service.DefaultStatsSchedule,
		Env:                 "dev",
		LogLevel:            "info",
		LogFormat:           "json",
		Port:                8080,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// LoadConfig reads the YAML file named by AUTH_CONFIG_FILE, if any, over
// the defaults and then applies environment variables on top.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("AUTH_CONFIG_FILE"); path != "" {
		if err := LoadConfigFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Issuer = getEnvOrDefault("AUTH_ISSUER", cfg.Issuer)
	if aud := os.Getenv("AUTH_AUDIENCE"); aud != "" {
		cfg.Audience = splitList(aud)
	}
	cfg.SigningKey = getEnvOrDefault("AUTH_SIGNING_KEY", cfg.SigningKey)
	cfg.SigningKeyFile = getEnvOrDefault("AUTH_SIGNING_KEY_FILE", cfg.SigningKeyFile)
	cfg.KeyID = getEnvOrDefault("AUTH_KEY_ID", cfg.KeyID)
	cfg.AccessTTL = getEnvDurationOrDefault("AUTH_ACCESS_TTL", cfg.AccessTTL)
	cfg.RefreshTTL = getEnvDurationOrDefault("AUTH_REFRESH_TTL", cfg.RefreshTTL)
	cfg.DatabaseFile = getEnvOrDefault("AUTH_DATABASE_FILE", cfg.DatabaseFile)
	cfg.PepperFile = getEnvOrDefault("AUTH_PEPPER_FILE", cfg.PepperFile)
	cfg.AppName = getEnvOrDefault("APP_NAME", cfg.AppName)

	cfg.GoogleClientID = getEnvOrDefault("GOOGLE_CLIENT_ID", cfg.GoogleClientID)
	cfg.GoogleAllowUnverify = getEnvBoolOrDefault("GOOGLE_ALLOW_UNVERIFIED", cfg.GoogleAllowUnverify)
	cfg.GitHubClientID = getEnvOrDefault("GITHUB_CLIENT_ID", cfg.GitHubClientID)
	cfg.GitHubClientSecret = getEnvOrDefault("GITHUB_CLIENT_SECRET", cfg.GitHubClientSecret)
	cfg.DiscordClientID = getEnvOrDefault("DISCORD_CLIENT_ID", cfg.DiscordClientID)
	cfg.DiscordClientSecret = getEnvOrDefault("DISCORD_CLIENT_SECRET", cfg.DiscordClientSecret)
	cfg.DiscordRedirectURI = getEnvOrDefault("DISCORD_REDIRECT_URI", cfg.DiscordRedirectURI)
	cfg.ProviderTimeout = getEnvDurationOrDefault("PROVIDER_TIMEOUT", cfg.ProviderTimeout)

	cfg.RedisURL = getEnvOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.StatsSchedule = getEnvOrDefault("STATS_SCHEDULE", cfg.StatsSchedule)

	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.Port = getEnvIntOrDefault("PORT", cfg.Port)
	cfg.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)

	return cfg, nil
}

// LoadConfigFile overlays the YAML file at path onto cfg. Keys missing
// from the file keep their current value.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports configuration that must stop the process from starting.
func (c Config) Validate() error {
	var errs []error

	switch {
	case c.SigningKey == "" && c.SigningKeyFile == "":
		errs = append(errs, errors.New("no signing key: set AUTH_SIGNING_KEY or AUTH_SIGNING_KEY_FILE"))
	case c.SigningKey != "" && c.SigningKeyFile != "":
		errs = append(errs, errors.New("AUTH_SIGNING_KEY and AUTH_SIGNING_KEY_FILE are mutually exclusive"))
	case c.SigningKey != "" && len(c.SigningKey) < jwtx.MinHMACSecretSize:
		errs = append(errs, fmt.Errorf("AUTH_SIGNING_KEY must be at least %d bytes", jwtx.MinHMACSecretSize))
	}

	if c.GoogleAllowUnverify && c.GoogleClientID == "" && !c.IsDevelopment() {
		errs = append(errs, fmt.Errorf("GOOGLE_ALLOW_UNVERIFIED is only allowed with ENV=dev or ENV=test, got %q", c.Env))
	}
	if c.GitHubClientID != "" && c.GitHubClientSecret == "" {
		errs = append(errs, errors.New("GITHUB_CLIENT_ID is set without GITHUB_CLIENT_SECRET"))
	}
	if c.DiscordClientID != "" && c.DiscordClientSecret == "" {
		errs = append(errs, errors.New("DISCORD_CLIENT_ID is set without DISCORD_CLIENT_SECRET"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether the process runs in a dev or test
// environment.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "test":
		return true
	}
	return false
}

// GoogleEnabled reports whether Google login is registered: it needs a
// client id, or the explicit unverified opt-in.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" || c.GoogleAllowUnverify
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
