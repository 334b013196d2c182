package domain

import "github.com/aussiebroadwan/backoffice/pkg/adminsdk"

// Session is the client-held record of the signed-in user and their tokens.
type Session struct {
	UserID       string
	Email        string
	DisplayName  string
	Username     string
	Role         string
	AccessToken  string
	RefreshToken string

	// MustSetup2FA marks a pending second factor: either the server demanded
	// enrollment, or the login issued no token and a challenge is due.
	MustSetup2FA bool

	TwoFactorConfigs []adminsdk.TwoFactorConfig
}

// HasUser reports whether any user record is present.
func (s Session) HasUser() bool {
	return s.UserID != "" || s.Email != ""
}

// IsAuthenticated is derived on every call and never stored.
func (s Session) IsAuthenticated() bool {
	return s.HasUser() && !s.MustSetup2FA
}

// Label is the name to greet the user by.
func (s Session) Label() string {
	switch {
	case s.DisplayName != "":
		return s.DisplayName
	case s.Username != "":
		return s.Username
	default:
		return s.Email
	}
}

// User returns the user part of the session in its wire shape, or nil.
func (s Session) User() *adminsdk.User {
	if !s.HasUser() {
		return nil
	}
	return &adminsdk.User{
		ID:               s.UserID,
		Email:            s.Email,
		DisplayName:      s.DisplayName,
		Username:         s.Username,
		Role:             s.Role,
		MustSetup2FA:     s.MustSetup2FA,
		TwoFactorConfigs: s.TwoFactorConfigs,
	}
}

// ApplyUser overwrites the user fields from a fetched record. Tokens are
// left alone.
func (s *Session) ApplyUser(u *adminsdk.User) {
	if u == nil {
		return
	}
	s.UserID = u.ID
	s.Email = u.Email
	s.DisplayName = u.DisplayName
	s.Username = u.Username
	s.Role = u.Role
	s.MustSetup2FA = u.MustSetup2FA
	s.TwoFactorConfigs = u.TwoFactorConfigs
}
