package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/backoffice/internal/fakeapi"
)

const seedYAML = `
users:
  - email: ops@example.com
    username: ops
    displayName: Ops
    password: ops-password
    role: admin
cache:
  - key: session:x
    value:
      userId: u1
    ttl: 1h
  - key: flag
    value: true
`

func TestParseSeed(t *testing.T) {
	t.Parallel()

	seed, err := ParseSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, seed.Users, 1)
	require.Equal(t, "ops", seed.Users[0].Username)
	require.Len(t, seed.Cache, 2)
	require.Equal(t, time.Hour, seed.Cache[0].TTL)

	svc := fakeapi.NewService(fakeapi.Options{})
	require.NoError(t, seed.Apply(svc))

	list, err := svc.ListCache("session:*")
	require.NoError(t, err)
	require.Equal(t, 1, list.TotalKeys)

	_, err = svc.Login("ops", "ops-password")
	require.NoError(t, err)
}

func TestParseSeed_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown field", yaml: "users:\n  - mail: a@b.c\n"},
		{name: "bad duration", yaml: "cache:\n  - key: k\n    ttl: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseSeed(strings.NewReader(tt.yaml))
			require.Error(t, err)
		})
	}

	empty, err := ParseSeed(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, empty.Users)
}

func TestSeedApply_RejectsDuplicates(t *testing.T) {
	t.Parallel()

	seed := Seed{Users: []SeedUser{
		{Email: "a@example.com", Password: "password-1"},
		{Email: "A@example.com", Password: "password-2"},
	}}
	err := seed.Apply(fakeapi.NewService(fakeapi.Options{}))
	require.ErrorIs(t, err, fakeapi.ErrEmailTaken)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PORT", "4100")
	t.Setenv("FAKEAPI_RESEND_INTERVAL", "5")
	t.Setenv("SHUTDOWN_GRACE_PERIOD", "not-a-duration")

	cfg := LoadConfig()
	require.Equal(t, 4100, cfg.Port)
	require.Equal(t, "/api", cfg.APIPrefix)
	require.Equal(t, 5*time.Second, cfg.ResendInterval)
	require.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
}

func TestNew_ServesSeededBackend(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(seedYAML), 0o600))

	t.Setenv("FAKEAPI_SEED_FILE", seedPath)
	t.Setenv("LOG_LEVEL", "error")

	application, err := New(LoadConfig())
	require.NoError(t, err)

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/livez")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, BuildVersion, body["version"])

	list, err := application.Service().ListCache("")
	require.NoError(t, err)
	require.Equal(t, 2, list.TotalKeys)

	require.NoError(t, application.Shutdown())
}

func TestNew_MissingSeedFile(t *testing.T) {
	t.Setenv("FAKEAPI_SEED_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	t.Setenv("LOG_LEVEL", "error")

	_, err := New(LoadConfig())
	require.ErrorContains(t, err, "open seed file")
}
