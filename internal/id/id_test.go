package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUniqueAndSorted(t *testing.T) {
	prev := ""
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		s := New()
		require.False(t, seen[s], "duplicate id %s", s)
		seen[s] = true
		assert.Greater(t, s, prev)
		prev = s
	}
}

func TestAtRoundTripsTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	s := At(ts)

	got, err := Time(s)
	require.NoError(t, err)
	assert.True(t, got.Equal(ts))
}

func TestTimeRejectsGarbage(t *testing.T) {
	_, err := Time("not-an-id")
	assert.Error(t, err)
}
