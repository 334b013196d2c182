package adminsdk

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/backoffice/pkg/slogx"
)

// TokenSource supplies the bearer token for authenticated calls. The session
// controller is the only writer of the token; the client only reads it.
type TokenSource interface {
	AccessToken() string
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) AccessToken() string { return string(t) }

// SDKClient is a client for the backoffice REST API.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// Tokens provides the access token attached to authenticated requests.
	// May be nil, in which case requests go out without Authorization.
	Tokens TokenSource

	// OnUnauthorized is called when an authenticated request that carried a
	// token comes back 401. The console installs a hook that logs out.
	OnUnauthorized func()
}

// NewSDKClient creates a client whose transport stamps and logs every request.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: &slogx.Transport{Base: http.DefaultTransport},
		},
	}
}

// WithTokens sets the token source and returns the client for chaining.
func (c *SDKClient) WithTokens(ts TokenSource) *SDKClient {
	c.Tokens = ts
	return c
}
