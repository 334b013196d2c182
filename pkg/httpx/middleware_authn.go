package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/backoffice/pkg/slogx"
)

// TokenVerifier validates a raw bearer token and returns its subject.
type TokenVerifier func(raw string) (subject string, err error)

// AuthnMiddleware rejects requests without a valid bearer token and injects
// the token subject into the request context.
func AuthnMiddleware(verify TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			subject, err := verify(raw)
			if err != nil {
				log.Warn("bearer verify failed", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			ctx = context.WithValue(ctx, CtxKeyUserID, subject)
			ctx = slogx.WithAttrs(ctx, "user_id", subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
	return raw, raw != ""
}

// RFC 6750 challenge header plus the backoffice error body.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "Unauthorized: "+desc)
}
