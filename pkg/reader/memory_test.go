package reader

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKBToBytes(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint64(0), kbToBytes(nil))

	v := uint64(1024)
	require.Equal(t, uint64(1024*1024), kbToBytes(&v))
}

func TestSwapUsed(t *testing.T) {
	t.Parallel()

	total := uint64(2000)
	free := uint64(500)
	require.Equal(t, uint64(1500*1024), swapUsed(&total, &free))

	require.Equal(t, uint64(0), swapUsed(nil, nil))
}
