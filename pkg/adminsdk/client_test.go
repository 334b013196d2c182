package adminsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *SDKClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewSDKClient(srv.URL + "/api/")
}

func TestLoginSendsCredentials(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/login", r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		require.Len(t, r.Header.Get("X-Request-ID"), 26)

		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "admin@example.com", req.Identifier)
		require.Equal(t, "secret", req.Password)

		_, _ = w.Write([]byte(`{"success":true,"data":{"accessToken":"tok","user":{"id":"u1","email":"admin@example.com"}}}`))
	})

	res, err := client.Login(context.Background(), LoginRequest{Identifier: "admin@example.com", Password: "secret"})
	require.NoError(t, err)
	require.False(t, res.Requires2FA())
	require.Equal(t, "tok", res.AccessToken)
	require.Equal(t, "u1", res.User.ID)
}

func TestLoginFailureIsAPIError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"message":"Invalid credentials"}`))
	})

	var fired atomic.Bool
	client.OnUnauthorized = func() { fired.Store(true) }

	_, err := client.Login(context.Background(), LoginRequest{Identifier: "x", Password: "y"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Invalid credentials", apiErr.Message)
	require.False(t, fired.Load(), "login failures are not session expiry")
}

func TestSuccessFalseOn200IsAnError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"Code expired"}`))
	})

	_, err := client.Verify2FA(context.Background(), VerifyRequest{UserID: "u", Code: "123456", Type: TwoFactorTOTP})
	require.Error(t, err)
	require.Equal(t, "Code expired", Message(err))
}

func TestTransportFailureIsAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewSDKClient(srv.URL)
	_, err := client.Me(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Zero(t, apiErr.StatusCode)
	require.NotNil(t, apiErr.Unwrap())
}

func TestAuthenticatedRequestsCarryToken(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"u1","email":"a@b.c","role":"admin"}`))
	})
	client.Tokens = StaticToken("tok")

	u, err := client.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "admin", u.Role)
}

func TestUnauthorizedHookFires(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Token expired"}`))
	})

	var calls atomic.Int32
	client.OnUnauthorized = func() { calls.Add(1) }

	t.Run("no token, no hook", func(t *testing.T) {
		_, err := client.Me(context.Background())
		require.True(t, IsUnauthorized(err))
		require.Zero(t, calls.Load())
	})

	t.Run("token, hook", func(t *testing.T) {
		client.Tokens = StaticToken("stale")
		_, err := client.Me(context.Background())
		require.True(t, IsUnauthorized(err))
		require.Equal(t, int32(1), calls.Load())
	})
}

func TestRefreshTokenKeepsOldRefreshToken(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "r1", body["refreshToken"])
		_, _ = w.Write([]byte(`{"data":{"token":"a2"}}`))
	})

	pair, err := client.RefreshToken(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, "a2", pair.AccessToken)
	require.Equal(t, "r1", pair.RefreshToken)
}

func TestDisable2FAQuery(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/auth/2fa", r.URL.Path)
		require.Equal(t, "u1", r.URL.Query().Get("userId"))
		require.Equal(t, "EMAIL", r.URL.Query().Get("type"))
		w.WriteHeader(http.StatusNoContent)
	})
	client.Tokens = StaticToken("tok")

	require.NoError(t, client.Disable2FA(context.Background(), "u1", TwoFactorEmail))
}

func TestListCachePassesPatternThrough(t *testing.T) {
	t.Parallel()

	var seen atomic.Value
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.URL.Query().Get("pattern"))
		_, _ = w.Write([]byte(`{"data":{"totalKeys":1,"entries":[{"key":"auth:1","value":1,"ttl":5}]}}`))
	})

	list, err := client.ListCache(context.Background(), "auth:*[a-z]?")
	require.NoError(t, err)
	require.Equal(t, "auth:*[a-z]?", seen.Load())
	require.Equal(t, 1, list.TotalKeys)
}

func TestDeleteCacheKeyEscapesKey(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/cache/session:a/b c", r.URL.Path)
		require.Equal(t, "/api/cache/session:a%2Fb%20c", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	require.NoError(t, client.DeleteCacheKey(context.Background(), "session:a/b c"))
}
