package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSampleCacheLoadsOnceUntilExpiry(t *testing.T) {
	t.Parallel()

	c := NewSampleCache()
	go c.Start()

	defer c.Stop()

	calls := 0
	load := func() (any, error) {
		calls++

		return calls, nil
	}

	v, err := c.GetOrLoad("k", load)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	v, err = c.GetOrLoad("k", load)
	require.NoError(t, err)
	require.Equal(t, 1, v, "second call within TTL should be served from cache")
}

func TestSampleCacheTracksCallCountPerKey(t *testing.T) {
	t.Parallel()

	c := NewSampleCache()

	_, err := c.GetOrLoad("k", func() (any, error) { return 1, nil })
	require.NoError(t, err)

	require.Equal(t, 1, c.calls["k"])
	require.Equal(t, 0, c.calls["other"])
}
