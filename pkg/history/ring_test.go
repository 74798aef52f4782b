package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRingEvictsOldestOnOverflow(t *testing.T) {
	t.Parallel()

	r := NewRing(3)

	for i := 0; i < 5; i++ {
		r.Push(ClusterMetrics{Time: time.Unix(int64(i), 0)})
	}

	require.Equal(t, 3, r.Len())

	snap := r.Snapshot()
	require.Equal(t, int64(2), snap[0].Time.Unix())
	require.Equal(t, int64(3), snap[1].Time.Unix())
	require.Equal(t, int64(4), snap[2].Time.Unix())
}

func TestRingBelowCapacity(t *testing.T) {
	t.Parallel()

	r := NewRing(5)
	r.Push(ClusterMetrics{Time: time.Unix(1, 0)})
	r.Push(ClusterMetrics{Time: time.Unix(2, 0)})

	require.Equal(t, 2, r.Len())

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, int64(1), snap[0].Time.Unix())
}
