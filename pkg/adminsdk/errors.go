package adminsdk

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is the single error shape the client returns for any transport
// failure or non-2xx response. StatusCode is 0 for transport failures.
type APIError struct {
	StatusCode int
	Message    string

	// Err is the underlying transport or decode error, if any.
	Err error
}

// Error implements the error interface and returns the human-readable message.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "request failed"
}

func (e *APIError) Unwrap() error { return e.Err }

// rateLimitPhrases are matched case-insensitively against error messages.
// The backend has no structured rate-limit code, so the wording is all we get.
var rateLimitPhrases = []string{"too many", "wait", "rate limit"}

// IsRateLimited reports whether err means "slow down": an HTTP 429, or a
// message that reads like one.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Message extracts the human-readable text from err for display.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// parseErrorResponse builds an *APIError from an error body. The backend
// puts the text under message, error or error_description, sometimes nested
// under data or inside an error object.
func parseErrorResponse(status int, body []byte) error {
	env := parseEnvelope(body)

	msg := env.str("message", "error", "error_description", "detail")
	if msg == "" {
		if nested := env.object("error"); nested != nil {
			msg = nested.str("message", "description")
		}
	}
	if msg == "" {
		if errs := env.list("errors"); len(errs) > 0 {
			msg = strings.Join(errs, "; ")
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	}

	return &APIError{StatusCode: status, Message: msg}
}
