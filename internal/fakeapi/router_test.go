package fakeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
	"github.com/aussiebroadwan/backoffice/pkg/httpx"
	"github.com/aussiebroadwan/backoffice/pkg/slogx"
)

func generousLimits() Limits {
	open := httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
	return Limits{Login: open, Verify: open, Regenerate: open, Authed: open}
}

func newTestServer(t *testing.T, limits Limits) (*Service, *adminsdk.SDKClient) {
	t.Helper()

	svc := NewService(Options{Logger: slogx.Discard()})
	router := NewRouter(svc, "/api", "test", limits, slogx.Discard())
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	client := adminsdk.NewSDKClient(srv.URL + "/api")
	client.HTTPClient = srv.Client()
	return svc, client
}

func signIn(t *testing.T, client *adminsdk.SDKClient, identifier string) *adminsdk.LoginResult {
	t.Helper()
	res, err := client.Login(context.Background(), adminsdk.LoginRequest{Identifier: identifier, Password: "correct-horse"})
	require.NoError(t, err)
	return res
}

func TestRouter_Livez(t *testing.T) {
	t.Parallel()

	svc := NewService(Options{Logger: slogx.Discard()})
	router := NewRouter(svc, "api/", "v9", generousLimits(), slogx.Discard())
	router.ApplyRoutes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "v9", body["version"])
}

func TestRouter_RegisterAndProfile(t *testing.T) {
	t.Parallel()

	_, client := newTestServer(t, generousLimits())
	ctx := context.Background()

	res, err := client.Register(ctx, adminsdk.RegisterRequest{
		Email:    "new@example.com",
		Username: "newbie",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)
	require.Equal(t, "newbie", res.User.Username)

	_, err = client.Register(ctx, adminsdk.RegisterRequest{Email: "new@example.com", Password: "correct-horse"})
	var apiErr *adminsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.StatusCode)

	client.WithTokens(adminsdk.StaticToken(res.AccessToken))

	me, err := client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "new@example.com", me.Email)

	updated, err := client.UpdateProfile(ctx, adminsdk.UpdateProfileRequest{DisplayName: "New Operator"})
	require.NoError(t, err)
	require.Equal(t, "New Operator", updated.DisplayName)

	err = client.ChangePassword(ctx, adminsdk.ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "another-one"})
	require.Error(t, err)
	require.Equal(t, "Current password is incorrect", adminsdk.Message(err))
	require.NoError(t, client.ChangePassword(ctx, adminsdk.ChangePasswordRequest{
		CurrentPassword: "correct-horse",
		NewPassword:     "another-one",
	}))
}

func TestRouter_RefreshRotatesTokens(t *testing.T) {
	t.Parallel()

	svc, client := newTestServer(t, generousLimits())
	ctx := context.Background()
	_, err := svc.AddUser(NewUser{Email: "ops@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	res := signIn(t, client, "ops@example.com")

	pair, err := client.RefreshToken(ctx, res.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEqual(t, res.RefreshToken, pair.RefreshToken)

	_, err = client.RefreshToken(ctx, res.RefreshToken)
	require.True(t, adminsdk.IsUnauthorized(err))
}

func TestRouter_EnrollmentOverSDK(t *testing.T) {
	t.Parallel()

	svc, client := newTestServer(t, generousLimits())
	ctx := context.Background()
	id, err := svc.AddUser(NewUser{Email: "ops@example.com", Password: "correct-horse", MustSetup2FA: true})
	require.NoError(t, err)

	res := signIn(t, client, "ops@example.com")
	require.True(t, res.MustSetup2FA)
	require.NotEmpty(t, res.AccessToken)
	client.WithTokens(adminsdk.StaticToken(res.AccessToken))

	setup, err := client.Setup2FA(ctx, adminsdk.SetupRequest{UserID: id, Type: adminsdk.TwoFactorTOTP})
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.Contains(t, setup.QRCodeURI, "otpauth://")

	regen, err := client.RegenerateTOTPSecret(ctx, id)
	require.NoError(t, err)
	require.NotEqual(t, setup.Secret, regen.Secret)
	require.Contains(t, regen.QRCodeURI, regen.Secret)

	bad, err := client.Verify2FA(ctx, adminsdk.VerifyRequest{UserID: id, Code: "000000", Type: adminsdk.TwoFactorTOTP})
	require.Error(t, err)
	require.Nil(t, bad)

	code, err := totp.GenerateCode(regen.Secret, time.Now())
	require.NoError(t, err)
	verified, err := client.Verify2FA(ctx, adminsdk.VerifyRequest{UserID: id, Code: code, Type: adminsdk.TwoFactorTOTP})
	require.NoError(t, err)
	require.True(t, verified.Success)
	require.Empty(t, verified.AccessToken, "enrollment does not mint a new session")
	require.NotNil(t, verified.User)
	require.False(t, verified.User.MustSetup2FA)

	codes, err := client.RecoveryCodes(ctx)
	require.NoError(t, err)
	require.Len(t, codes, recoveryCodeCount)

	require.NoError(t, client.Disable2FA(ctx, id, adminsdk.TwoFactorTOTP))
	me, err := client.Me(ctx)
	require.NoError(t, err)
	_, active := me.ActiveTwoFactor()
	require.False(t, active)
}

func TestRouter_LoginChallengeOverSDK(t *testing.T) {
	t.Parallel()

	svc, client := newTestServer(t, generousLimits())
	ctx := context.Background()
	id, err := svc.AddUser(NewUser{Email: "ops@example.com", Username: "ops", Password: "correct-horse"})
	require.NoError(t, err)
	secret := enrollTOTP(t, svc, id)

	res := signIn(t, client, "ops")
	require.True(t, res.Requires2FA())
	require.Empty(t, res.AccessToken)
	require.NotNil(t, res.User)
	require.Equal(t, id, res.User.ID)

	// No token yet: setup and verify ride on the challenge.
	_, err = client.Setup2FA(ctx, adminsdk.SetupRequest{UserID: "someone-else", Type: adminsdk.TwoFactorEmail})
	require.True(t, adminsdk.IsUnauthorized(err))

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	verified, err := client.Verify2FA(ctx, adminsdk.VerifyRequest{UserID: id, Code: code, Type: adminsdk.TwoFactorTOTP})
	require.NoError(t, err)
	require.NotEmpty(t, verified.AccessToken)
	require.NotEmpty(t, verified.RefreshToken)

	client.WithTokens(adminsdk.StaticToken(verified.AccessToken))
	me, err := client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "ops@example.com", me.Email)
}

func TestRouter_EmailCodeOnChallenge(t *testing.T) {
	t.Parallel()

	svc, client := newTestServer(t, generousLimits())
	ctx := context.Background()
	id, err := svc.AddUser(NewUser{Email: "ops@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.Setup(id, adminsdk.TwoFactorEmail)
	require.NoError(t, err)
	enrollCode, _ := svc.LastEmailCode(id)
	_, err = svc.Verify(id, adminsdk.TwoFactorEmail, enrollCode, false)
	require.NoError(t, err)

	res := signIn(t, client, "ops@example.com")
	require.True(t, res.Requires2FA())

	_, err = client.Setup2FA(ctx, adminsdk.SetupRequest{UserID: id, Type: adminsdk.TwoFactorEmail})
	require.NoError(t, err)

	_, err = client.Setup2FA(ctx, adminsdk.SetupRequest{UserID: id, Type: adminsdk.TwoFactorEmail})
	require.True(t, adminsdk.IsRateLimited(err))
	require.Contains(t, adminsdk.Message(err), "Please wait")

	code, ok := svc.LastEmailCode(id)
	require.True(t, ok)
	verified, err := client.Verify2FA(ctx, adminsdk.VerifyRequest{UserID: id, Code: code, Type: adminsdk.TwoFactorEmail})
	require.NoError(t, err)
	require.NotEmpty(t, verified.AccessToken)
}

func TestRouter_RegenerateIsRateLimited(t *testing.T) {
	t.Parallel()

	limits := generousLimits()
	limits.Regenerate = DefaultLimits().Regenerate
	svc, client := newTestServer(t, limits)
	ctx := context.Background()
	id, err := svc.AddUser(NewUser{Email: "ops@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	res := signIn(t, client, "ops@example.com")
	client.WithTokens(adminsdk.StaticToken(res.AccessToken))

	_, err = client.RegenerateTOTPSecret(ctx, id)
	require.NoError(t, err)

	_, err = client.RegenerateTOTPSecret(ctx, id)
	require.True(t, adminsdk.IsRateLimited(err))
	var apiErr *adminsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestRouter_CacheOverSDK(t *testing.T) {
	t.Parallel()

	svc, client := newTestServer(t, generousLimits())
	ctx := context.Background()
	_, err := svc.AddUser(NewUser{Email: "ops@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	svc.SetCache("auth:session:1", map[string]any{"user": "alice"}, time.Hour)
	svc.SetCache("auth:session:2", "bob", 0)
	svc.SetCache("game:lobby/main", "open", 0)

	_, err = client.ListCache(ctx, "")
	require.True(t, adminsdk.IsUnauthorized(err))

	res := signIn(t, client, "ops@example.com")
	client.WithTokens(adminsdk.StaticToken(res.AccessToken))

	list, err := client.ListCache(ctx, "auth:*")
	require.NoError(t, err)
	require.Equal(t, 2, list.TotalKeys)
	require.Equal(t, map[string]any{"user": "alice"}, list.Entries[0].Value)
	require.Equal(t, "bob", list.Entries[1].Value)
	require.Equal(t, adminsdk.TTLNoExpiry, list.Entries[1].TTL)

	require.NoError(t, client.DeleteCacheKey(ctx, "auth:session:1"))
	list, err = client.ListCache(ctx, "auth:*")
	require.NoError(t, err)
	require.Equal(t, 1, list.TotalKeys)

	err = client.DeleteCacheKey(ctx, "auth:session:1")
	var apiErr *adminsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	require.NoError(t, client.DeleteCacheKey(ctx, "game:lobby/main"))

	require.NoError(t, client.FlushCache(ctx))
	list, err = client.ListCache(ctx, "")
	require.NoError(t, err)
	require.Zero(t, list.TotalKeys)
}

func TestRouter_BadTokenFiresUnauthorizedHook(t *testing.T) {
	t.Parallel()

	_, client := newTestServer(t, generousLimits())

	var fired atomic.Int32
	client.WithTokens(adminsdk.StaticToken("not-a-jwt"))
	client.OnUnauthorized = func() { fired.Add(1) }

	_, err := client.Me(context.Background())
	require.True(t, adminsdk.IsUnauthorized(err))
	require.Equal(t, int32(1), fired.Load())
}
