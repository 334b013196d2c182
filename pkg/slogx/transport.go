package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/backoffice/pkg/idx"
)

// Transport is an http.RoundTripper that stamps every outbound request with
// an X-Request-ID and logs its outcome.
type Transport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := t.Logger
	if logger == nil {
		logger = FromContext(req.Context())
	}

	reqID := req.Header.Get(requestIDHeader)
	if reqID == "" {
		reqID = idx.New().String()
		req = req.Clone(req.Context())
		req.Header.Set(requestIDHeader, reqID)
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		logger.Warn("api request failed",
			"req_id", reqID,
			"method", req.Method,
			"path", req.URL.Path,
			"duration_ms", duration,
			"err", err,
		)
		return nil, err
	}

	logger.Debug("api request",
		"req_id", reqID,
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
