package reader

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNumericSuffix(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint64(45), parseNumericSuffix[uint64]("45C", "C"))
	require.InDelta(t, 12.5, parseNumericSuffix[float64]("12.5", ""), 0.01)
	require.Equal(t, uint64(0), parseNumericSuffix[uint64]("garbage", ""))
}

func TestParseMemoryAllocation(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint64(66*1024*1024), parseMemoryAllocation("66.0MiB"))
	require.Equal(t, uint64(2*1024*1024*1024), parseMemoryAllocation("2.0GiB"))
	require.Equal(t, uint64(1024), parseMemoryAllocation("1024"))
	require.Equal(t, uint64(0), parseMemoryAllocation("garbage"))
}

func TestRebellionsDeviceModel(t *testing.T) {
	t.Parallel()

	require.Equal(t, "RBLN-CA12 (ATOM)", rebellionsDeviceModel("RBLN-CA12", 8*1024*1024*1024))
	require.Equal(t, "RBLN-CA22 (ATOM+)", rebellionsDeviceModel("RBLN-CA22", 24*1024*1024*1024))
	require.Equal(t, "RBLN-CA29 (ATOM Max)", rebellionsDeviceModel("RBLN-CA29", 64*1024*1024*1024))
}
