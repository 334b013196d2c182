package idx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/backoffice/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := idx.New()
	require.False(t, id.IsZero())

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "not-a-ulid", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z"} {
		_, err := idx.Parse(in)
		require.ErrorIs(t, err, idx.ErrInvalid, in)
	}
}

func TestMonotonicWithinMillisecond(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	a := idx.NewAt(at)
	b := idx.NewAt(at)

	// Same timestamp, entropy must still move forward
	require.Less(t, a.String(), b.String())
	require.WithinDuration(t, at, a.Time(), time.Millisecond)
}

func TestPrefixed(t *testing.T) {
	id := idx.Prefixed("usr")
	require.True(t, strings.HasPrefix(id, "usr_"))

	_, err := idx.Parse(strings.TrimPrefix(id, "usr_"))
	require.NoError(t, err)
}
