package adminsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Setup2FA starts enrollment of a method. For TOTP the result carries the
// secret and otpauth URI; for EMAIL the backend sends a code and the result
// only has a message.
func (c *SDKClient) Setup2FA(ctx context.Context, req SetupRequest) (*SetupResult, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodPost, "/auth/2fa/setup", req)
	if err != nil {
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	return normalizeSetup(body), nil
}

// RegenerateTOTPSecret replaces the pending TOTP secret. Callers must wait
// for it before provisioning again, since setup reads the new secret.
func (c *SDKClient) RegenerateTOTPSecret(ctx context.Context, userID string) (*SetupResult, error) {
	req := SetupRequest{UserID: userID, Type: TwoFactorTOTP}
	resp, err := c.doAuthRequest(ctx, http.MethodPost, "/auth/2fa/regenerate", req)
	if err != nil {
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	return normalizeSetup(body), nil
}

// Verify2FA checks a code. On the post-login challenge path a successful
// result also carries the session tokens.
func (c *SDKClient) Verify2FA(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodPost, "/auth/2fa/verify", req)
	if err != nil {
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	return normalizeVerify(body), nil
}

// Disable2FA removes a configured method.
func (c *SDKClient) Disable2FA(ctx context.Context, userID string, typ TwoFactorType) error {
	q := url.Values{
		"userId": {userID},
		"type":   {string(typ)},
	}
	resp, err := c.doAuthRequest(ctx, http.MethodDelete, "/auth/2fa?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	_, err = readBody(resp)
	return err
}

// RecoveryCodes fetches the current user's single-use recovery codes.
func (c *SDKClient) RecoveryCodes(ctx context.Context) ([]string, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodGet, "/auth/2fa/recovery-codes", nil)
	if err != nil {
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	return normalizeRecoveryCodes(body), nil
}
