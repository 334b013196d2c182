package cachepage

import (
	"encoding/json"
	"fmt"

	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

// PreviewLength is the number of runes shown before a value is truncated.
const PreviewLength = 100

// FormatTTL renders a TTL in seconds into a coarse human bucket.
func FormatTTL(ttl int64) string {
	switch {
	case ttl == adminsdk.TTLExpired:
		return "expired"
	case ttl < 0:
		return "no expiry"
	case ttl < 60:
		return fmt.Sprintf("%ds", ttl)
	case ttl < 3600:
		return fmt.Sprintf("%dm", ttl/60)
	default:
		return fmt.Sprintf("%dh", ttl/3600)
	}
}

// FormatValue renders a cache value as a single line. Strings are shown
// as-is, everything else as compact JSON.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case []byte:
		return string(val)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Truncate shortens s to n runes followed by an ellipsis. The second
// result reports whether anything was cut.
func Truncate(s string, n int) (string, bool) {
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]) + "…", true
}
