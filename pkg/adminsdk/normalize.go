package adminsdk

import (
	"encoding/json"
	"strings"
	"time"
)

// Field aliases seen across the backend's endpoints.
var (
	accessTokenFields  = []string{"accessToken", "access_token", "token"}
	refreshTokenFields = []string{"refreshToken", "refresh_token"}
	pendingFields      = []string{"mustSetup2fa", "mustSetup2FA", "requires2FA", "requires2fa", "twoFactorRequired"}
	secretFields       = []string{"secret", "totpSecret", "base32"}
	qrFields           = []string{"qrCodeUri", "qrCodeUrl", "qrCode", "otpauthUrl", "otpauth_url", "uri"}
	userIDFields       = []string{"id", "userId", "user_id", "_id"}
)

// ============================================================================
// Users
// ============================================================================

func normalizeUser(o object) *User {
	if o == nil {
		return nil
	}
	pending, _ := o.flag(pendingFields...)
	u := &User{
		ID:           o.str(userIDFields...),
		Email:        o.str("email"),
		DisplayName:  o.str("displayName", "display_name", "name", "fullName"),
		Username:     o.str("username", "userName"),
		Role:         o.str("role"),
		MustSetup2FA: pending,
	}
	if raw, ok := o.lookup("twoFactorConfigs", "twoFactorAuth", "two_factor_configs", "twoFactor"); ok {
		u.TwoFactorConfigs = normalizeTwoFactorConfigs(raw)
	}
	if u.ID == "" && u.Email == "" && u.Username == "" {
		return nil
	}
	return u
}

// userFrom finds the user record in a response: a "user" object at either
// level, or user fields sitting directly on the data object or the top level.
func userFrom(env envelope) *User {
	if u := normalizeUser(env.object("user", "profile")); u != nil {
		return u
	}
	for _, layer := range env {
		if u := normalizeUser(layer); u != nil {
			return u
		}
	}
	return nil
}

func normalizeTwoFactorConfigs(raw json.RawMessage) []TwoFactorConfig {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		// A single object instead of a list.
		if o := decodeObject(raw); o != nil {
			items = []json.RawMessage{raw}
		} else {
			return nil
		}
	}

	configs := make([]TwoFactorConfig, 0, len(items))
	for _, item := range items {
		o := decodeObject(item)
		if o == nil {
			continue
		}
		active, _ := o.flag("isActive", "is_active", "active", "enabled")
		cfg := TwoFactorConfig{
			ID:        o.str("id"),
			Type:      TwoFactorType(strings.ToUpper(o.str("type", "method"))),
			IsActive:  active,
			CreatedAt: parseTime(o.str("createdAt", "created_at")),
			UpdatedAt: parseTime(o.str("updatedAt", "updated_at")),
		}
		if email := o.str("email"); email != "" {
			cfg.Email = &email
		}
		configs = append(configs, cfg)
	}
	return configs
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ============================================================================
// Tokens & login
// ============================================================================

func tokensFrom(env envelope) TokenPair {
	pair := TokenPair{
		AccessToken:  env.str(accessTokenFields...),
		RefreshToken: env.str(refreshTokenFields...),
	}
	if tokens := env.object("tokens"); tokens != nil {
		if pair.AccessToken == "" {
			pair.AccessToken = tokens.str(accessTokenFields...)
		}
		if pair.RefreshToken == "" {
			pair.RefreshToken = tokens.str(refreshTokenFields...)
		}
	}
	return pair
}

func normalizeLogin(body []byte) *LoginResult {
	env := parseEnvelope(body)
	res := &LoginResult{
		TokenPair: tokensFrom(env),
		User:      userFrom(env),
		Message:   env.str("message"),
	}
	res.MustSetup2FA, _ = env.flag(pendingFields...)
	if res.User != nil && res.User.MustSetup2FA {
		res.MustSetup2FA = true
	}
	return res
}

func normalizeTokens(body []byte) TokenPair {
	return tokensFrom(parseEnvelope(body))
}

// ============================================================================
// 2FA
// ============================================================================

func normalizeSetup(body []byte) *SetupResult {
	env := parseEnvelope(body)
	res := &SetupResult{
		Secret:    env.str(secretFields...),
		QRCodeURI: env.str(qrFields...),
		Message:   env.str("message"),
	}
	if totp := env.object("totp"); totp != nil {
		if res.Secret == "" {
			res.Secret = totp.str(secretFields...)
		}
		if res.QRCodeURI == "" {
			res.QRCodeURI = totp.str(qrFields...)
		}
	}
	return res
}

func normalizeVerify(body []byte) *VerifyResult {
	env := parseEnvelope(body)
	res := &VerifyResult{
		TokenPair: tokensFrom(env),
		Success:   true,
		Message:   env.str("message"),
	}
	if ok, present := env.flag("success", "verified", "valid"); present {
		res.Success = ok
	}
	if u := normalizeUser(env.object("user")); u != nil {
		res.User = u
	}
	return res
}

func normalizeRecoveryCodes(body []byte) []string {
	env := parseEnvelope(body)
	if codes := env.list("recoveryCodes", "recovery_codes", "codes", "backupCodes"); len(codes) > 0 {
		return codes
	}
	if raw, ok := env.top().lookup("data"); ok {
		return rawStrings(raw)
	}
	return rawStrings(body)
}

// ============================================================================
// Cache
// ============================================================================

func normalizeCacheList(body []byte) *CacheList {
	env := parseEnvelope(body)

	raw, ok := env.lookup("entries", "keys", "items")
	if !ok {
		// data itself may be the array, or the whole body.
		if raw, ok = env.top().lookup("data"); !ok {
			raw = body
		}
	}

	var items []json.RawMessage
	_ = json.Unmarshal(raw, &items)

	list := &CacheList{Entries: make([]CacheEntry, 0, len(items))}
	for _, item := range items {
		if key, ok := rawString(item); ok {
			list.Entries = append(list.Entries, CacheEntry{Key: key, TTL: TTLNoExpiry})
			continue
		}
		o := decodeObject(item)
		if o == nil {
			continue
		}
		entry := CacheEntry{Key: o.str("key", "name"), TTL: TTLNoExpiry}
		if ttl, ok := o.integer("ttl", "expiresIn", "ttlSeconds"); ok {
			entry.TTL = ttl
		}
		if v, ok := o.lookup("value", "data"); ok {
			var decoded any
			if err := json.Unmarshal(v, &decoded); err == nil {
				entry.Value = decoded
			}
		}
		list.Entries = append(list.Entries, entry)
	}

	if total, ok := env.integer("totalKeys", "total", "count"); ok {
		list.TotalKeys = int(total)
	} else {
		list.TotalKeys = len(list.Entries)
	}
	return list
}
