package adminsdk

import (
	"context"
	"net/http"
)

// Login exchanges credentials for a session. A result with Requires2FA set
// is not an error: the caller continues with a second factor.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/login", req)
	if err != nil {
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	return normalizeLogin(body), nil
}

// Register creates an account. Backends that log the new user straight in
// return tokens, which come back in the result.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/register", req)
	if err != nil {
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	return normalizeLogin(body), nil
}

// Me fetches the current user.
func (c *SDKClient) Me(ctx context.Context) (*User, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	user := userFrom(parseEnvelope(body))
	if user == nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "response did not contain a user"}
	}
	return user, nil
}

// RefreshToken trades a refresh token for a new token pair. When the
// backend does not rotate refresh tokens the old one is carried over.
func (c *SDKClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	payload := map[string]string{"refreshToken": refreshToken}
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/refresh", payload)
	if err != nil {
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	pair := normalizeTokens(body)
	if pair.AccessToken == "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "refresh response did not contain an access token"}
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return &pair, nil
}

// ChangePassword changes the current user's password.
func (c *SDKClient) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	resp, err := c.doAuthRequest(ctx, http.MethodPost, "/auth/change-password", req)
	if err != nil {
		return err
	}

	_, err = readBody(resp)
	return err
}

// UpdateProfile updates the current user's profile. Some backends echo the
// updated user; when they don't, the result is nil and callers refetch.
func (c *SDKClient) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*User, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodPatch, "/auth/profile", req)
	if err != nil {
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	return userFrom(parseEnvelope(body)), nil
}
