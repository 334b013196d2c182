package adminsdk

import "time"

// ============================================================================
// Two-factor types
// ============================================================================

// TwoFactorType names a second-factor method.
type TwoFactorType string

const (
	TwoFactorTOTP  TwoFactorType = "TOTP"
	TwoFactorEmail TwoFactorType = "EMAIL"

	// TwoFactorRecovery is accepted by verify only, for single-use recovery codes.
	TwoFactorRecovery TwoFactorType = "RECOVERY"
)

// TwoFactorConfig is one second-factor method configured for a user.
type TwoFactorConfig struct {
	ID        string        `json:"id"`
	Type      TwoFactorType `json:"type"`
	IsActive  bool          `json:"isActive"`
	Email     *string       `json:"email,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ============================================================================
// User & token types
// ============================================================================

// User is the canonical shape of the current user, whatever the endpoint
// returned.
type User struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	DisplayName      string            `json:"displayName,omitempty"`
	Username         string            `json:"username,omitempty"`
	Role             string            `json:"role,omitempty"`
	MustSetup2FA     bool              `json:"mustSetup2fa"`
	TwoFactorConfigs []TwoFactorConfig `json:"twoFactorConfigs,omitempty"`
}

// ActiveTwoFactor returns the first config with IsActive set.
func (u *User) ActiveTwoFactor() (TwoFactorConfig, bool) {
	if u == nil {
		return TwoFactorConfig{}, false
	}
	for _, c := range u.TwoFactorConfigs {
		if c.IsActive {
			return c, true
		}
	}
	return TwoFactorConfig{}, false
}

// TokenPair holds an access token and the refresh token issued with it.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// LoginRequest is the body of POST /auth/login. Identifier is an email or username.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// LoginResult is a normalized login or register response.
type LoginResult struct {
	TokenPair

	// User may be partial (or nil) when a second factor is pending.
	User *User

	// MustSetup2FA is set when the server asks for a second factor.
	MustSetup2FA bool

	Message string
}

// Requires2FA reports whether the login stopped short of a usable session:
// either the server said so, or it issued no token.
func (r *LoginResult) Requires2FA() bool {
	return r.MustSetup2FA || r.AccessToken == ""
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Password    string `json:"password"`
}

// ChangePasswordRequest is the body of POST /auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UpdateProfileRequest is the body of PATCH /auth/profile. Empty fields are
// left unchanged.
type UpdateProfileRequest struct {
	DisplayName string `json:"displayName,omitempty"`
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
}

// ============================================================================
// 2FA request/response types
// ============================================================================

// SetupRequest is the body of POST /auth/2fa/setup.
type SetupRequest struct {
	UserID string        `json:"userId"`
	Type   TwoFactorType `json:"type"`
}

// SetupResult is a normalized setup or regenerate response. For TOTP it
// carries the secret and otpauth URI; for EMAIL only a message.
type SetupResult struct {
	Secret    string
	QRCodeURI string
	Message   string
}

// VerifyRequest is the body of POST /auth/2fa/verify.
type VerifyRequest struct {
	UserID string        `json:"userId"`
	Code   string        `json:"code"`
	Type   TwoFactorType `json:"type"`
}

// VerifyResult is a normalized verify response. The token fields are only
// set on the post-login challenge path.
type VerifyResult struct {
	TokenPair
	Success bool
	User    *User
	Message string
}

// ============================================================================
// Cache types
// ============================================================================

// TTL sentinels reported by the cache listing.
const (
	TTLNoExpiry int64 = -1
	TTLExpired  int64 = -2
)

// CacheEntry is one key in a cache listing snapshot.
type CacheEntry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
	TTL   int64  `json:"ttl"`
}

// CacheList is the result of GET /cache.
type CacheList struct {
	TotalKeys int          `json:"totalKeys"`
	Entries   []CacheEntry `json:"entries"`
}
