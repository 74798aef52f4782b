package reader

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTenstorrentMemoryAndTDP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		board      string
		wantMemory uint64
		wantTDP    float64
	}{
		{"e75", 2 * 1024 * 1024 * 1024, 75.0},
		{"e150", 8 * 1024 * 1024 * 1024, 200.0},
		{"n300-board", 96 * 1024 * 1024 * 1024, 300.0},
		{"something-unknown", 8 * 1024 * 1024 * 1024, 200.0},
	}

	for _, c := range cases {
		mem, tdp := tenstorrentMemoryAndTDP(c.board)
		require.Equal(t, c.wantMemory, mem)
		require.InDelta(t, c.wantTDP, tdp, 0.01)
	}
}

func TestDetectTenstorrentAbsentWithoutDevNodes(t *testing.T) {
	t.Parallel()

	r, err := detectTenstorrent(nil, nil)
	require.NoError(t, err)
	require.Nil(t, r)
}
