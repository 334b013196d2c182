package adminsdk

import (
	"context"
	"net/http"
	"net/url"
)

// ListCache lists cache entries. The pattern is passed through untouched;
// its matching rules belong to the server. An empty pattern lists everything.
func (c *SDKClient) ListCache(ctx context.Context, pattern string) (*CacheList, error) {
	path := "/cache"
	if pattern != "" {
		path += "?" + url.Values{"pattern": {pattern}}.Encode()
	}

	resp, err := c.doAuthRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	return normalizeCacheList(body), nil
}

// DeleteCacheKey removes a single key.
func (c *SDKClient) DeleteCacheKey(ctx context.Context, key string) error {
	resp, err := c.doAuthRequest(ctx, http.MethodDelete, "/cache/"+url.PathEscape(key), nil)
	if err != nil {
		return err
	}

	_, err = readBody(resp)
	return err
}

// FlushCache removes every key.
func (c *SDKClient) FlushCache(ctx context.Context) error {
	resp, err := c.doAuthRequest(ctx, http.MethodDelete, "/cache", nil)
	if err != nil {
		return err
	}

	_, err = readBody(resp)
	return err
}
