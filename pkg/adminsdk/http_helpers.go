package adminsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// url builds a complete URL by appending the path to the base URL.
func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}

// doRequest performs an HTTP request without an Authorization header.
// Transport failures come back as *APIError with a zero status.
func (c *SDKClient) doRequest(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	return c.send(req)
}

// doAuthRequest performs an HTTP request carrying the current bearer token,
// if there is one. A 401 on a request that carried a token fires
// OnUnauthorized.
func (c *SDKClient) doAuthRequest(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	var token string
	if c.Tokens != nil {
		token = c.Tokens.AccessToken()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && token != "" && c.OnUnauthorized != nil {
		c.OnUnauthorized()
	}
	return resp, nil
}

func (c *SDKClient) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *SDKClient) send(req *http.Request) (*http.Response, error) {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &APIError{
			Message: "Unable to reach the server. Check your connection and try again.",
			Err:     err,
		}
	}
	return resp, nil
}

// readBody reads the response and turns any non-2xx status, or a 2xx body
// that explicitly says "success": false, into an *APIError.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    "failed to read response body",
			Err:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseErrorResponse(resp.StatusCode, body)
	}

	if len(bytes.TrimSpace(body)) > 0 {
		env := parseEnvelope(body)
		if ok, present := env.flag("success"); present && !ok {
			return nil, parseErrorResponse(resp.StatusCode, body)
		}
	}

	return body, nil
}
