package idx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/sessionkit/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	t.Parallel()

	id := idx.New()
	require.False(t, id.IsZero())

	parsed, err := idx.Parse(" " + id.String() + " ")
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	for _, bad := range []string{"", "not-a-ulid", "01ARZ3NDEKTSV4RRFFQ69G5FA"} {
		_, err := idx.Parse(bad)
		require.ErrorIs(t, err, idx.ErrInvalid, bad)
	}
}

func TestOrderingAndTime(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	a, b := idx.NewAt(at), idx.NewAt(at)
	require.Less(t, a.String(), b.String(), "same millisecond ids stay ordered")
	require.Equal(t, at, a.Time())

	require.True(t, idx.ID("garbage").Time().IsZero())
}
