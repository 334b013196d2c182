package tui

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/backoffice/internal/console/cachepage"
	"github.com/aussiebroadwan/backoffice/internal/console/session"
	"github.com/aussiebroadwan/backoffice/internal/console/twofa"
	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

// ensureFresh returns a hook that refreshes the access token when it is
// close to expiry. The console can stay open for longer than one token
// lives. Signed-out and challenge states have no token and are skipped.
func ensureFresh(s Session, logger *slog.Logger) func(context.Context) {
	return func(ctx context.Context) {
		if err := s.EnsureFreshToken(ctx); err != nil && !errors.Is(err, session.ErrNotAuthenticated) {
			logger.Warn("token refresh failed", "err", err)
		}
	}
}

type freshCache struct {
	cachepage.Service
	ensure func(context.Context)
}

func (f freshCache) List(ctx context.Context, pattern string) (*adminsdk.CacheList, error) {
	f.ensure(ctx)
	return f.Service.List(ctx, pattern)
}

func (f freshCache) DeleteOne(ctx context.Context, key string) error {
	f.ensure(ctx)
	return f.Service.DeleteOne(ctx, key)
}

func (f freshCache) DeleteAll(ctx context.Context) error {
	f.ensure(ctx)
	return f.Service.DeleteAll(ctx)
}

type freshTwoFactor struct {
	twofa.API
	ensure func(context.Context)
}

func (f freshTwoFactor) Setup2FA(ctx context.Context, req adminsdk.SetupRequest) (*adminsdk.SetupResult, error) {
	f.ensure(ctx)
	return f.API.Setup2FA(ctx, req)
}

func (f freshTwoFactor) RegenerateTOTPSecret(ctx context.Context, userID string) (*adminsdk.SetupResult, error) {
	f.ensure(ctx)
	return f.API.RegenerateTOTPSecret(ctx, userID)
}

func (f freshTwoFactor) Verify2FA(ctx context.Context, req adminsdk.VerifyRequest) (*adminsdk.VerifyResult, error) {
	f.ensure(ctx)
	return f.API.Verify2FA(ctx, req)
}

func (f freshTwoFactor) RecoveryCodes(ctx context.Context) ([]string, error) {
	f.ensure(ctx)
	return f.API.RecoveryCodes(ctx)
}
