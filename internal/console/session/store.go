package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aussiebroadwan/backoffice/internal/console/domain"
	"github.com/aussiebroadwan/backoffice/internal/console/store"
	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
	"github.com/aussiebroadwan/backoffice/pkg/slogx"
)

// Persisted keys. Only Store writes them.
const (
	KeyUser              = "user"
	KeyAccessToken       = "accessToken"
	KeyToken             = "token" // duplicate of accessToken, kept for older readers
	KeyRefreshToken      = "refreshToken"
	KeyIsAuthenticated   = "isAuthenticated"
	KeyPendingLoginEmail = "pendingLoginEmail"
	KeySidebarCollapsed  = "sidebarCollapsed"
)

// Store is the single owner of the persisted session keys.
type Store struct {
	kv store.Store
}

func NewStore(kv store.Store) *Store {
	return &Store{kv: kv}
}

// Load reads the persisted session. Missing keys leave fields empty; a
// corrupt user record is dropped with a warning.
func (s *Store) Load(ctx context.Context) (domain.Session, error) {
	var sess domain.Session

	raw, err := s.get(ctx, KeyUser)
	if err != nil {
		return sess, err
	}
	if raw != "" {
		var u adminsdk.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			slogx.FromContext(ctx).Warn("stored user is corrupt", "err", err)
		} else {
			sess.ApplyUser(&u)
		}
	}

	if sess.AccessToken, err = s.get(ctx, KeyAccessToken); err != nil {
		return sess, err
	}
	if sess.AccessToken == "" {
		if sess.AccessToken, err = s.get(ctx, KeyToken); err != nil {
			return sess, err
		}
	}
	if sess.RefreshToken, err = s.get(ctx, KeyRefreshToken); err != nil {
		return sess, err
	}

	return sess, nil
}

// Save replaces the persisted session in one transaction.
func (s *Store) Save(ctx context.Context, sess domain.Session) error {
	var userJSON []byte
	if u := sess.User(); u != nil {
		var err error
		if userJSON, err = json.Marshal(u); err != nil {
			return fmt.Errorf("encode user: %w", err)
		}
	}

	return s.kv.WithTx(ctx, func(tx store.KV) error {
		if err := setOrDelete(ctx, tx, KeyUser, string(userJSON)); err != nil {
			return err
		}
		if err := setOrDelete(ctx, tx, KeyAccessToken, sess.AccessToken); err != nil {
			return err
		}
		if err := setOrDelete(ctx, tx, KeyToken, sess.AccessToken); err != nil {
			return err
		}
		if err := setOrDelete(ctx, tx, KeyRefreshToken, sess.RefreshToken); err != nil {
			return err
		}
		// Informational only; the real gate is derived from the session.
		return tx.Set(ctx, KeyIsAuthenticated, strconv.FormatBool(sess.IsAuthenticated()))
	})
}

// Clear erases every session key. UI preferences survive.
func (s *Store) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx,
		KeyUser,
		KeyAccessToken,
		KeyToken,
		KeyRefreshToken,
		KeyIsAuthenticated,
		KeyPendingLoginEmail,
	)
}

func (s *Store) PendingLoginEmail(ctx context.Context) string {
	v, _ := s.get(ctx, KeyPendingLoginEmail)
	return v
}

func (s *Store) SetPendingLoginEmail(ctx context.Context, email string) error {
	return setOrDelete(ctx, s.kv, KeyPendingLoginEmail, email)
}

func (s *Store) SidebarCollapsed(ctx context.Context) bool {
	v, _ := s.get(ctx, KeySidebarCollapsed)
	b, _ := strconv.ParseBool(v)
	return b
}

func (s *Store) SetSidebarCollapsed(ctx context.Context, collapsed bool) error {
	return s.kv.Set(ctx, KeySidebarCollapsed, strconv.FormatBool(collapsed))
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

func setOrDelete(ctx context.Context, kv store.KV, key, value string) error {
	if value == "" {
		return kv.Delete(ctx, key)
	}
	return kv.Set(ctx, key, value)
}
