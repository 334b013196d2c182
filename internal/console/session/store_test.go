package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/backoffice/internal/console/domain"
	"github.com/aussiebroadwan/backoffice/internal/console/store/drivers/memory"
)

func sessionFixture() domain.Session {
	return domain.Session{
		UserID:       "u1",
		Email:        "a@b.c",
		DisplayName:  "Ada",
		Role:         "admin",
		AccessToken:  "tok",
		RefreshToken: "ref",
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(memory.NewStore())

	empty, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.Session{}, empty)

	require.NoError(t, s.Save(ctx, sessionFixture()))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, sessionFixture(), got)
}

func TestStoreFallsBackToLegacyTokenKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.NewStore()
	require.NoError(t, kv.Set(ctx, KeyToken, "legacy"))

	got, err := NewStore(kv).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "legacy", got.AccessToken)
}

func TestStoreDropsCorruptUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.NewStore()
	require.NoError(t, kv.Set(ctx, KeyUser, "{nope"))
	require.NoError(t, kv.Set(ctx, KeyAccessToken, "tok"))

	got, err := NewStore(kv).Load(ctx)
	require.NoError(t, err)
	require.False(t, got.HasUser())
	require.Equal(t, "tok", got.AccessToken)
}

func TestStorePreferences(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(memory.NewStore())

	require.False(t, s.SidebarCollapsed(ctx))
	require.NoError(t, s.SetSidebarCollapsed(ctx, true))
	require.True(t, s.SidebarCollapsed(ctx))

	require.NoError(t, s.SetPendingLoginEmail(ctx, "a@b.c"))
	require.Equal(t, "a@b.c", s.PendingLoginEmail(ctx))
	require.NoError(t, s.Clear(ctx))
	require.Empty(t, s.PendingLoginEmail(ctx))
	require.True(t, s.SidebarCollapsed(ctx))
}
