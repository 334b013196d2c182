package adminsdk

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsRateLimited(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429 status", &APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}, true},
		{"too many phrase", &APIError{StatusCode: 400, Message: "Too many attempts"}, true},
		{"wait phrase", &APIError{StatusCode: 400, Message: "Please WAIT 60 seconds"}, true},
		{"rate limit phrase", errors.New("rate limit exceeded"), true},
		{"wrapped", fmt.Errorf("regenerate: %w", &APIError{StatusCode: 429}), true},
		{"plain failure", &APIError{StatusCode: 400, Message: "Invalid code"}, false},
		{"server error", &APIError{StatusCode: 500}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, IsRateLimited(tt.err))
		})
	}
}

func TestParseErrorResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"message field", 400, `{"success":false,"message":"Invalid code"}`, "Invalid code"},
		{"error string", 401, `{"error":"Invalid credentials"}`, "Invalid credentials"},
		{"oauth style", 400, `{"error_description":"bad token"}`, "bad token"},
		{"error object", 400, `{"error":{"code":"E1","message":"nested"}}`, "nested"},
		{"nested under data", 422, `{"data":{"message":"inner"}}`, "inner"},
		{"errors list", 422, `{"errors":[{"field":"email","message":"email is required"},"password too short"]}`, "email is required; password too short"},
		{"html body", 502, `<html>bad gateway</html>`, "HTTP 502: Bad Gateway"},
		{"empty body", 404, ``, "HTTP 404: Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := parseErrorResponse(tt.status, []byte(tt.body))
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.status, apiErr.StatusCode)
			require.Equal(t, tt.wantMsg, apiErr.Error())
		})
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := &APIError{Message: "Unable to reach the server", Err: cause}
	require.ErrorIs(t, err, cause)
	require.Equal(t, "Unable to reach the server", Message(err))
	require.Equal(t, "HTTP 503: Service Unavailable", (&APIError{StatusCode: 503}).Error())
}
