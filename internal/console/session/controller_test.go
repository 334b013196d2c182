package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/backoffice/internal/console/store"
	"github.com/aussiebroadwan/backoffice/internal/console/store/drivers/memory"
	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
	"github.com/aussiebroadwan/backoffice/pkg/slogx"
)

// fakeAPI is a scriptable API. Nil funcs fail the call.
type fakeAPI struct {
	login    func(adminsdk.LoginRequest) (*adminsdk.LoginResult, error)
	register func(adminsdk.RegisterRequest) (*adminsdk.LoginResult, error)
	me       func() (*adminsdk.User, error)
	refresh  func(string) (*adminsdk.TokenPair, error)
	profile  func(adminsdk.UpdateProfileRequest) (*adminsdk.User, error)

	loginCalls atomic.Int32
	meCalls    atomic.Int32
}

var errUnscripted = errors.New("unscripted call")

func (f *fakeAPI) Login(_ context.Context, req adminsdk.LoginRequest) (*adminsdk.LoginResult, error) {
	f.loginCalls.Add(1)
	if f.login == nil {
		return nil, errUnscripted
	}
	return f.login(req)
}

func (f *fakeAPI) Register(_ context.Context, req adminsdk.RegisterRequest) (*adminsdk.LoginResult, error) {
	if f.register == nil {
		return nil, errUnscripted
	}
	return f.register(req)
}

func (f *fakeAPI) Me(context.Context) (*adminsdk.User, error) {
	f.meCalls.Add(1)
	if f.me == nil {
		return nil, errUnscripted
	}
	return f.me()
}

func (f *fakeAPI) RefreshToken(_ context.Context, rt string) (*adminsdk.TokenPair, error) {
	if f.refresh == nil {
		return nil, errUnscripted
	}
	return f.refresh(rt)
}

func (f *fakeAPI) ChangePassword(context.Context, adminsdk.ChangePasswordRequest) error {
	return nil
}

func (f *fakeAPI) UpdateProfile(_ context.Context, req adminsdk.UpdateProfileRequest) (*adminsdk.User, error) {
	if f.profile == nil {
		return nil, errUnscripted
	}
	return f.profile(req)
}

func newTestController(api API) (*Controller, *memory.Store) {
	kv := memory.NewStore()
	return NewController(api, NewStore(kv), slogx.Discard()), kv
}

func persisted(t *testing.T, kv store.KV, key string) string {
	t.Helper()
	v, err := kv.Get(context.Background(), key)
	if errors.Is(err, store.ErrNotFound) {
		return ""
	}
	require.NoError(t, err)
	return v
}

func TestLoginWithoutSecondFactor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api := &fakeAPI{
		login: func(req adminsdk.LoginRequest) (*adminsdk.LoginResult, error) {
			return &adminsdk.LoginResult{
				TokenPair: adminsdk.TokenPair{AccessToken: "tok", RefreshToken: "ref"},
				User:      &adminsdk.User{ID: "u1", Email: req.Identifier},
			}, nil
		},
		me: func() (*adminsdk.User, error) {
			return &adminsdk.User{ID: "u1", Email: "a@b.c", DisplayName: "Ada", Role: "admin"}, nil
		},
	}
	c, kv := newTestController(api)

	out, err := c.Login(ctx, "a@b.c", "pw")
	require.NoError(t, err)
	require.True(t, out.SignedIn)
	require.False(t, out.Requires2FA)
	require.True(t, c.IsAuthenticated())

	require.Equal(t, "tok", persisted(t, kv, KeyAccessToken))
	require.Equal(t, "tok", persisted(t, kv, KeyToken))
	require.Equal(t, "ref", persisted(t, kv, KeyRefreshToken))
	require.Equal(t, "true", persisted(t, kv, KeyIsAuthenticated))

	c.Wait()
	require.Equal(t, "Ada", c.Session().DisplayName)
	require.Equal(t, int32(1), api.meCalls.Load())
}

func TestLoginAnyCredentialsAlwaysSucceedingBackend(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		login: func(adminsdk.LoginRequest) (*adminsdk.LoginResult, error) {
			return &adminsdk.LoginResult{TokenPair: adminsdk.TokenPair{AccessToken: "tok"}}, nil
		},
		me: func() (*adminsdk.User, error) { return nil, errors.New("offline") },
	}
	c, kv := newTestController(api)

	_, err := c.Login(context.Background(), "whoever", "x")
	require.NoError(t, err)
	c.Wait()

	require.Equal(t, "tok", persisted(t, kv, KeyAccessToken))
	require.True(t, c.IsAuthenticated(), "a failed background refresh does not undo login")
	require.Equal(t, "whoever", c.Session().Username)
}

func TestLoginMustSetup2FA(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		login: func(adminsdk.LoginRequest) (*adminsdk.LoginResult, error) {
			return &adminsdk.LoginResult{
				TokenPair:    adminsdk.TokenPair{AccessToken: "partial"},
				User:         &adminsdk.User{ID: "u1", Email: "a@b.c"},
				MustSetup2FA: true,
			}, nil
		},
	}
	c, kv := newTestController(api)

	out, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	require.True(t, out.Requires2FA)
	require.False(t, out.Challenge)
	require.False(t, c.IsAuthenticated(), "a user record exists but 2FA is pending")
	require.True(t, c.PendingSecondFactor())

	require.Equal(t, "partial", persisted(t, kv, KeyAccessToken))
	require.Equal(t, "false", persisted(t, kv, KeyIsAuthenticated))
	require.Equal(t, "a@b.c", persisted(t, kv, KeyPendingLoginEmail))
	require.Contains(t, persisted(t, kv, KeyUser), `"mustSetup2fa":true`)

	c.Wait()
	require.Zero(t, api.meCalls.Load(), "no refresh while pending")
}

func TestLoginWithoutTokenIsAChallenge(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		login: func(adminsdk.LoginRequest) (*adminsdk.LoginResult, error) {
			return &adminsdk.LoginResult{User: &adminsdk.User{ID: "u1"}}, nil
		},
	}
	c, kv := newTestController(api)

	out, err := c.Login(context.Background(), "ops@example.com", "pw")
	require.NoError(t, err)
	require.True(t, out.Requires2FA)
	require.True(t, out.Challenge)
	require.False(t, c.IsAuthenticated())
	require.Empty(t, persisted(t, kv, KeyAccessToken))
	require.Equal(t, "ops@example.com", persisted(t, kv, KeyPendingLoginEmail))
}

func TestLoginValidatesBeforeCalling(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	c, _ := newTestController(api)

	_, err := c.Login(context.Background(), "  ", "pw")
	require.ErrorIs(t, err, ErrEmptyCredentials)
	_, err = c.Login(context.Background(), "a", "")
	require.ErrorIs(t, err, ErrEmptyCredentials)
	require.Zero(t, api.loginCalls.Load())
}

func TestLoginReturnsAPIErrors(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		login: func(adminsdk.LoginRequest) (*adminsdk.LoginResult, error) {
			return nil, &adminsdk.APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}
		},
	}
	c, _ := newTestController(api)

	_, err := c.Login(context.Background(), "a", "b")
	var apiErr *adminsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Invalid credentials", apiErr.Message)
	require.False(t, c.IsAuthenticated())
}

func TestLoginLogsReadableEvents(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		login: func(adminsdk.LoginRequest) (*adminsdk.LoginResult, error) {
			return nil, &adminsdk.APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}
		},
	}
	var buf bytes.Buffer
	c := NewController(api, NewStore(memory.NewStore()), slog.New(slog.NewJSONHandler(&buf, nil)))

	_, err := c.Login(context.Background(), "ada", "wrong")
	require.Error(t, err)

	var msgs []string
	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var line map[string]any
		require.NoError(t, json.Unmarshal(raw, &line))
		msgs = append(msgs, line["msg"].(string))
	}
	require.Contains(t, msgs, "login failed")
}

func TestFetchUserInfoIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api := &fakeAPI{
		login: func(adminsdk.LoginRequest) (*adminsdk.LoginResult, error) {
			return &adminsdk.LoginResult{TokenPair: adminsdk.TokenPair{AccessToken: "tok"}, User: &adminsdk.User{ID: "u1"}}, nil
		},
		me: func() (*adminsdk.User, error) {
			return &adminsdk.User{ID: "u1", Email: "a@b.c", Username: "ada", Role: "admin"}, nil
		},
	}
	c, kv := newTestController(api)
	_, err := c.Login(ctx, "a@b.c", "pw")
	require.NoError(t, err)
	c.Wait()

	c.FetchUserInfo(ctx)
	first := persisted(t, kv, KeyUser)
	c.FetchUserInfo(ctx)
	require.Equal(t, first, persisted(t, kv, KeyUser))

	loaded, err := NewStore(kv).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, c.Session(), loaded)
}

func TestFetchUserInfoWithoutTokenIsNoop(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	c, _ := newTestController(api)
	c.FetchUserInfo(context.Background())
	require.Zero(t, api.meCalls.Load())
}

func TestFetchUserInfoDropsStaleResult(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	release := make(chan struct{})
	api := &fakeAPI{
		login: func(adminsdk.LoginRequest) (*adminsdk.LoginResult, error) {
			return &adminsdk.LoginResult{TokenPair: adminsdk.TokenPair{AccessToken: "tok"}, User: &adminsdk.User{ID: "u1"}}, nil
		},
		me: func() (*adminsdk.User, error) {
			<-release
			return &adminsdk.User{ID: "u1", Email: "a@b.c"}, nil
		},
	}
	c, kv := newTestController(api)
	_, err := c.Login(ctx, "a", "b")
	require.NoError(t, err)

	c.Logout(ctx)
	close(release)
	c.Wait()

	require.False(t, c.IsAuthenticated())
	require.Empty(t, persisted(t, kv, KeyUser))
}

func TestLogoutClearsSessionKeepsPreferences(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, kv := newTestController(&fakeAPI{})
	require.NoError(t, c.Preferences().SetSidebarCollapsed(ctx, true))
	require.NoError(t, NewStore(kv).Save(ctx, sessionFixture()))
	require.NoError(t, c.Restore(ctx))
	require.True(t, c.IsAuthenticated())

	c.Logout(ctx)
	require.False(t, c.IsAuthenticated())
	require.Empty(t, c.AccessToken())
	for _, key := range []string{KeyUser, KeyAccessToken, KeyToken, KeyRefreshToken, KeyIsAuthenticated} {
		require.Empty(t, persisted(t, kv, key), key)
	}
	require.True(t, c.Preferences().SidebarCollapsed(ctx))
}

func TestHandleUnauthorizedLogsOut(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, kv := newTestController(&fakeAPI{})
	require.NoError(t, NewStore(kv).Save(ctx, sessionFixture()))
	require.NoError(t, c.Restore(ctx))

	c.HandleUnauthorized()
	require.False(t, c.IsAuthenticated())
	require.Empty(t, persisted(t, kv, KeyAccessToken))
}

func TestCompleteTwoFactor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api := &fakeAPI{
		login: func(adminsdk.LoginRequest) (*adminsdk.LoginResult, error) {
			return &adminsdk.LoginResult{User: &adminsdk.User{ID: "u1", Email: "a@b.c"}}, nil
		},
		me: func() (*adminsdk.User, error) {
			return &adminsdk.User{ID: "u1", Email: "a@b.c", DisplayName: "Ada"}, nil
		},
	}
	c, kv := newTestController(api)

	_, err := c.Login(ctx, "a@b.c", "pw")
	require.NoError(t, err)
	require.ErrorIs(t, c.CompleteTwoFactor(ctx, adminsdk.TokenPair{}), ErrNotAuthenticated)

	require.NoError(t, c.CompleteTwoFactor(ctx, adminsdk.TokenPair{AccessToken: "full", RefreshToken: "r"}))
	require.True(t, c.IsAuthenticated())
	require.Equal(t, "full", persisted(t, kv, KeyAccessToken))
	require.Empty(t, persisted(t, kv, KeyPendingLoginEmail))
	require.Equal(t, "Ada", c.Session().DisplayName)
}

func TestAbandonTwoFactor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api := &fakeAPI{
		login: func(adminsdk.LoginRequest) (*adminsdk.LoginResult, error) {
			return &adminsdk.LoginResult{TokenPair: adminsdk.TokenPair{AccessToken: "partial"}, MustSetup2FA: true}, nil
		},
	}
	c, kv := newTestController(api)
	_, err := c.Login(ctx, "a@b.c", "pw")
	require.NoError(t, err)

	c.AbandonTwoFactor(ctx)
	require.Empty(t, c.AccessToken())
	require.Empty(t, persisted(t, kv, KeyAccessToken))
	require.Empty(t, persisted(t, kv, KeyPendingLoginEmail))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestEnsureFreshToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		token       string
		wantRefresh bool
	}{
		{"far from expiry", signedToken(t, now.Add(time.Hour)), false},
		{"inside buffer", signedToken(t, now.Add(10*time.Second)), true},
		{"already expired", signedToken(t, now.Add(-time.Minute)), true},
		{"opaque token", "not-a-jwt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			var refreshed atomic.Bool
			api := &fakeAPI{
				refresh: func(rt string) (*adminsdk.TokenPair, error) {
					require.Equal(t, "r1", rt)
					refreshed.Store(true)
					return &adminsdk.TokenPair{AccessToken: "new", RefreshToken: "r2"}, nil
				},
			}
			c, kv := newTestController(api)
			c.now = func() time.Time { return now }

			sess := sessionFixture()
			sess.AccessToken = tt.token
			sess.RefreshToken = "r1"
			require.NoError(t, NewStore(kv).Save(ctx, sess))
			require.NoError(t, c.Restore(ctx))

			require.NoError(t, c.EnsureFreshToken(ctx))
			require.Equal(t, tt.wantRefresh, refreshed.Load())
			if tt.wantRefresh {
				require.Equal(t, "new", c.AccessToken())
				require.Equal(t, "r2", persisted(t, kv, KeyRefreshToken))
			}
		})
	}
}

func TestRefreshTokensWithoutRefreshToken(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(&fakeAPI{})
	require.ErrorIs(t, c.RefreshTokens(context.Background()), ErrNoRefreshToken)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api := &fakeAPI{
		profile: func(req adminsdk.UpdateProfileRequest) (*adminsdk.User, error) {
			return &adminsdk.User{ID: "u1", Email: "a@b.c", DisplayName: req.DisplayName}, nil
		},
	}
	c, kv := newTestController(api)
	require.ErrorIs(t, c.UpdateProfile(ctx, adminsdk.UpdateProfileRequest{}), ErrNotAuthenticated)

	require.NoError(t, NewStore(kv).Save(ctx, sessionFixture()))
	require.NoError(t, c.Restore(ctx))

	require.NoError(t, c.UpdateProfile(ctx, adminsdk.UpdateProfileRequest{DisplayName: "Countess"}))
	require.Equal(t, "Countess", c.Session().DisplayName)
	require.Contains(t, persisted(t, kv, KeyUser), "Countess")
}

func TestRegisterWithoutAutoLogin(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		register: func(adminsdk.RegisterRequest) (*adminsdk.LoginResult, error) {
			return &adminsdk.LoginResult{Message: "Account created"}, nil
		},
	}
	c, _ := newTestController(api)

	out, err := c.Register(context.Background(), adminsdk.RegisterRequest{Email: "n@e.w", Password: "pw"})
	require.NoError(t, err)
	require.False(t, out.SignedIn)
	require.Equal(t, "Account created", out.Message)
	require.False(t, c.IsAuthenticated())
}
