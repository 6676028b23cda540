package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	httpapi "github.com/aussiebroadwan/identity/internal/auth/http"
	"github.com/aussiebroadwan/identity/internal/auth/metrics"
	"github.com/aussiebroadwan/identity/internal/auth/provider"
	"github.com/aussiebroadwan/identity/internal/auth/service"
	"github.com/aussiebroadwan/identity/internal/auth/store"
	"github.com/aussiebroadwan/identity/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/identity/pkg/cryptox"
	"github.com/aussiebroadwan/identity/pkg/httpx"
	"github.com/aussiebroadwan/identity/pkg/jwtx"
	"github.com/aussiebroadwan/identity/pkg/slogx"
	"github.com/aussiebroadwan/identity/pkg/totpx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// BuildVersion is overridden at build time with -ldflags "-X".
var BuildVersion = "v0.1.0"

// Application owns every long-lived dependency of the identity service.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	redis   *redis.Client
	signer  jwtx.Signer
	metrics *metrics.Metrics

	users    *service.UserService
	tokens   *service.TokenService
	mfa      *service.MFAService
	external *service.ExternalService
	auth     *service.AuthService
	stats    *service.StatsService

	server *http.Server
	router *httpapi.Router
}

// New validates cfg and builds the application. Nothing is listening
// until Run is called.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "identity",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initSigner(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initRedis(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		app.closeBackends()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Handler exposes the routed HTTP handler, mainly for in-process tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run serves HTTP and runs the stats job until ctx is cancelled or the
// server fails, then shuts everything down.
func (app *Application) Run(ctx context.Context) error {
	if err := app.stats.Start(); err != nil {
		return err
	}

	app.logger.Info("identity service starting", "port", app.cfg.Port, "version", BuildVersion)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutdown requested", "reason", context.Cause(gctx))
		return app.Shutdown()
	})

	return g.Wait()
}

// Shutdown drains in-flight requests within the grace period, stops the
// stats job and closes storage.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.stats.Stop(ctx)

	err := app.closeBackends()
	app.logger.Info("identity service stopped")
	return err
}

func (app *Application) closeBackends() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return nil
}

func (app *Application) initSigner() error {
	var (
		signer jwtx.Signer
		err    error
	)
	if app.cfg.SigningKeyFile != "" {
		var pemKey []byte
		pemKey, err = os.ReadFile(app.cfg.SigningKeyFile)
		if err != nil {
			return fmt.Errorf("failed to read signing key: %w", err)
		}
		signer, err = jwtx.NewSignerEdDSA(app.cfg.KeyID, pemKey)
	} else {
		signer, err = jwtx.NewSignerHS256(app.cfg.KeyID, []byte(app.cfg.SigningKey))
	}
	if err != nil {
		return fmt.Errorf("failed to initialize signer: %w", err)
	}

	app.signer = signer
	app.logger.Info("token signer ready", "alg", signer.Alg(), "kid", app.cfg.KeyID)
	return nil
}

// initRedis connects the optional shared rate limit backend.
func (app *Application) initRedis() error {
	if app.cfg.RedisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to reach redis: %w", err)
	}

	app.redis = client
	app.logger.Info("redis rate limiting enabled", "addr", opts.Addr)
	return nil
}

func (app *Application) providers() *provider.Registry {
	cfg := app.cfg
	adapters := []provider.Adapter{
		provider.NewGitHub(provider.GitHubConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			Timeout:      cfg.ProviderTimeout,
		}),
		provider.NewDiscord(provider.DiscordConfig{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURI,
			Timeout:      cfg.ProviderTimeout,
		}),
	}

	switch {
	case cfg.GoogleClientID != "":
	case cfg.GoogleAllowUnverify:
		app.logger.Warn("google ID tokens are accepted without signature checks; never use this outside development",
			"env", cfg.Env)
	default:
		app.logger.Info("google login disabled: GOOGLE_CLIENT_ID is not set")
	}
	if cfg.GoogleEnabled() {
		adapters = append(adapters, provider.NewGoogle(provider.GoogleConfig{
			ClientID:        cfg.GoogleClientID,
			AllowUnverified: cfg.GoogleAllowUnverify,
			Timeout:         cfg.ProviderTimeout,
		}))
	}

	return provider.NewRegistry(adapters...)
}

func (app *Application) initServices() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}

	app.users = &service.UserService{
		Store:  app.db,
		Hasher: cryptox.NewHasher(pepper),
	}
	app.tokens = &service.TokenService{
		Signer:     app.signer,
		Store:      app.db,
		Issuer:     app.cfg.Issuer,
		Audience:   app.cfg.Audience,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
		Metrics:    app.metrics,
	}
	app.mfa = &service.MFAService{
		Store:   app.db,
		Issuer:  app.cfg.AppName,
		QR:      totpx.PNGRenderer{},
		Metrics: app.metrics,
	}
	app.external = &service.ExternalService{
		Providers: app.providers(),
		Users:     app.users,
		Store:     app.db,
		Metrics:   app.metrics,
	}
	app.auth = &service.AuthService{
		Users:    app.users,
		Tokens:   app.tokens,
		MFA:      app.mfa,
		External: app.external,
		Metrics:  app.metrics,
	}

	app.stats = service.NewStatsService(app.db, app.metrics, app.logger, app.cfg.StatsSchedule)
	return nil
}

func (app *Application) initHTTP() {
	verifier := jwtx.NewVerifier(app.signer, jwtx.VerifyOptions{
		Issuer:   app.cfg.Issuer,
		Audience: app.cfg.Audience,
	})

	var limiters httpx.LimiterFactory
	if app.redis != nil {
		limiters = httpx.RedisLimiterFactory(app.redis, "identity:ratelimit")
	}

	router := httpapi.NewRouter(verifier, BuildVersion, app.db, limiters, app.logger)
	router.AuthService = app.auth
	router.MFAService = app.mfa
	router.Metrics = app.metrics
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
