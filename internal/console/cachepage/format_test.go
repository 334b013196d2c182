package cachepage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatTTL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ttl  int64
		want string
	}{
		{-2, "expired"},
		{-1, "no expiry"},
		{0, "0s"},
		{59, "59s"},
		{60, "1m"},
		{3599, "59m"},
		{3600, "1h"},
		{86400, "24h"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, FormatTTL(tt.ttl))
		})
	}
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	require.Equal(t, "plain", FormatValue("plain"))
	require.Equal(t, "null", FormatValue(nil))
	require.Equal(t, `{"a":1}`, FormatValue(map[string]any{"a": 1}))
	require.Equal(t, `["x","y"]`, FormatValue([]string{"x", "y"}))
	require.Equal(t, "42", FormatValue(42))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	s, cut := Truncate("short", 10)
	require.False(t, cut)
	require.Equal(t, "short", s)

	s, cut = Truncate(strings.Repeat("é", 12), 10)
	require.True(t, cut)
	require.Equal(t, strings.Repeat("é", 10)+"…", s)
}
