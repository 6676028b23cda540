package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/metrics"
	"github.com/aussiebroadwan/identity/internal/auth/service"
	"github.com/aussiebroadwan/identity/internal/auth/store"
	"github.com/aussiebroadwan/identity/pkg/httpx"
	"github.com/aussiebroadwan/identity/pkg/jwtx"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	limiters     httpx.LimiterFactory

	AuthService *service.AuthService
	MFAService  *service.MFAService
	Metrics     *metrics.Metrics
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	limiters httpx.LimiterFactory,
	logger *slog.Logger,
) *Router {
	if limiters == nil {
		limiters = httpx.LocalLimiterFactory(httpx.DefaultLocalLimiterSize)
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		limiters:     limiters,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSessions()
	r.registerMFA()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title						Identity Service API
//	@version					0.1.0
//	@description				Registration, password and external login, TOTP MFA and rotating refresh tokens.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// credentialLimits throttles an endpoint that accepts a password or code,
// per IP and, when field is set, per IP and body field. Every endpoint gets
// its own buckets.
func (r *Router) credentialLimits(name, field string) []httpx.Middleware {
	mws := []httpx.Middleware{
		httpx.RateLimitByIP(r.limiters(name, httpx.StrictLimit), httpx.StrictLimit),
	}
	if field != "" {
		mws = append(mws,
			httpx.RateLimitByIPAndJSONField(r.limiters(name+"_"+field, httpx.StrictLimit), httpx.StrictLimit, field),
		)
	}
	return mws
}

// accountLimit throttles by body field alone. X-Forwarded-For is client
// controlled, so this is the only bound an attacker cannot rotate away.
func (r *Router) accountLimit(name, field string) httpx.Middleware {
	return httpx.RateLimitByJSONField(r.limiters(name+"_account", httpx.StrictLimit), httpx.StrictLimit, field)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService}

	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister), r.credentialLimits("register", "email")...),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin), r.credentialLimits("login", "email")...),
	)
	r.Mux.Handle("POST /v1/auth/external/{provider}",
		httpx.Chain(http.HandlerFunc(h.HandleExternalLogin), r.credentialLimits("external", "")...),
	)

	// A 6 digit code is guessable, so the target account is bounded
	// regardless of where requests come from.
	r.Mux.Handle("POST /v1/auth/mfa/verify-login",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyMFALogin),
			append(r.credentialLimits("mfa_login", "user_id"), r.accountLimit("mfa_login", "user_id"))...,
		),
	)
}

func (r *Router) registerSessions() {
	h := &AuthHandler{AuthService: r.AuthService}

	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.limiters("refresh", httpx.LenientLimit), httpx.LenientLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.limiters("logout", httpx.LenientLimit), httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/revoke-all",
		httpx.Chain(http.HandlerFunc(h.HandleRevokeAll),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.limiters("revoke_all", httpx.ModerateLimit), httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService}

	moderate := r.limiters("mfa", httpx.ModerateLimit)
	secured := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(moderate, httpx.ModerateLimit),
		)
	}

	// Code-checking endpoints get the strict profile.
	strict := r.limiters("mfa_code", httpx.StrictLimit)
	securedCode := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(strict, httpx.StrictLimit),
		)
	}

	r.Mux.Handle("POST /v1/mfa/setup", secured(h.HandleSetup))
	r.Mux.Handle("POST /v1/mfa/enable", securedCode(h.HandleEnable))
	r.Mux.Handle("POST /v1/mfa/verify", securedCode(h.HandleVerify))
	r.Mux.Handle("DELETE /v1/mfa", secured(h.HandleDisable))
	r.Mux.Handle("GET /v1/mfa/status", secured(h.HandleStatus))
}

func (r *Router) registerSystem() {
	public := r.limiters("system", httpx.PublicLimit)

	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(public, httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(public, httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /metrics", r.Metrics.Handler())

	r.Mux.Handle("GET "+swaggerDocPath,
		httpx.Chain(SwaggerDocHandler(), httpx.RateLimitByIP(public, httpx.PublicLimit)),
	)
	r.Mux.Handle("GET /swagger/",
		httpx.Chain(SwaggerUIHandler(), httpx.RateLimitByIP(public, httpx.PublicLimit)),
	)
}
