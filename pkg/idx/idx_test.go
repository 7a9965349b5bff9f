package idx

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortable(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := NewAt(at)
	for range 100 {
		next := NewAt(at)
		require.Less(t, prev, next)
		prev = next
	}
	require.Less(t, prev, NewAt(at.Add(time.Millisecond)))
}

func TestNewAtEmbedsTimestamp(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.UTC)
	u, err := ulid.ParseStrict(NewAt(at))
	require.NoError(t, err)
	require.True(t, at.Equal(ulid.Time(u.Time())))
}
