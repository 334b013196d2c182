package fakeapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/backoffice/pkg/httpx"
	"github.com/aussiebroadwan/backoffice/pkg/slogx"
)

// Limits are the rate limit profiles applied per route group.
type Limits struct {
	Login      httpx.RateLimitConfig
	Verify     httpx.RateLimitConfig
	Regenerate httpx.RateLimitConfig
	Authed     httpx.RateLimitConfig
}

// DefaultLimits mirrors production: strict on credentials and codes, one
// secret regeneration per five minutes.
func DefaultLimits() Limits {
	return Limits{
		Login:  httpx.StrictLimit,
		Verify: httpx.StrictLimit,
		Regenerate: httpx.RateLimitConfig{
			RequestsPerWindow: 1,
			Window:            5 * time.Minute,
			Burst:             1,
		},
		Authed: httpx.ModerateLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	prefix       string
	limits       Limits
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	svc *Service
}

// NewRouter mounts the API under prefix (for example "/api").
func NewRouter(svc *Service, prefix, buildVersion string, limits Limits, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		Mux:          http.NewServeMux(),
		prefix:       "/" + strings.Trim(prefix, "/"),
		limits:       limits,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		svc:          svc,
	}
	if r.prefix == "/" {
		r.prefix = ""
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}
	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerTwoFactor()
	r.registerCache()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) handle(method, path string, h http.Handler) {
	r.Mux.Handle(method+" "+r.prefix+path, h)
}

func (r *Router) authed(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.svc.VerifyAccessToken),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Service: r.svc}

	r.handle("POST", "/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin), httpx.RateLimitByIP(r.limits.Login)))
	r.handle("POST", "/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister), httpx.RateLimitByIP(r.limits.Login)))
	r.handle("POST", "/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh), httpx.RateLimitByIP(r.limits.Authed)))

	r.handle("GET", "/auth/me", r.authed(h.HandleMe, r.limits.Authed))
	r.handle("POST", "/auth/change-password", r.authed(h.HandleChangePassword, r.limits.Login))
	r.handle("PATCH", "/auth/profile", r.authed(h.HandleUpdateProfile, r.limits.Authed))
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{Service: r.svc}

	// Setup and verify also serve the post-login challenge, which has no
	// token yet.
	challengeable := func(fn http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(fn,
			optionalAuthn(r.svc.VerifyAccessToken),
			httpx.RateLimitByUser(limit),
		)
	}

	r.handle("POST", "/auth/2fa/setup", challengeable(h.HandleSetup, r.limits.Authed))
	r.handle("POST", "/auth/2fa/verify", challengeable(h.HandleVerify, r.limits.Verify))
	r.handle("POST", "/auth/2fa/regenerate", r.authed(h.HandleRegenerate, r.limits.Regenerate))
	r.handle("DELETE", "/auth/2fa", r.authed(h.HandleDisable, r.limits.Authed))
	r.handle("GET", "/auth/2fa/recovery-codes", r.authed(h.HandleRecoveryCodes, r.limits.Authed))
}

func (r *Router) registerCache() {
	h := &CacheHandler{Service: r.svc}

	r.handle("GET", "/cache", r.authed(h.HandleList, r.limits.Authed))
	r.handle("DELETE", "/cache/{key}", r.authed(h.HandleDelete, r.limits.Authed))
	r.handle("DELETE", "/cache", r.authed(h.HandleFlush, r.limits.Authed))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
}

// optionalAuthn injects the subject of a valid bearer token and passes
// requests without one through. A bad token is still a 401.
func optionalAuthn(verify httpx.TokenVerifier) httpx.Middleware {
	strict := httpx.AuthnMiddleware(verify)
	return func(next http.Handler) http.Handler {
		withAuth := strict(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := httpx.BearerToken(r); !ok {
				next.ServeHTTP(w, r)
				return
			}
			withAuth.ServeHTTP(w, r)
		})
	}
}

// LivezHandler reports status, uptime and version.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"uptime":  time.Since(startTime).String(),
			"version": version,
		})
	}
}
