package reader

import (
	"runtime"
	"testing"

	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/require"

	"github.com/accelmetrics/all-smi/pkg/model"
)

func TestUtilizationSinceFirstCallReturnsZero(t *testing.T) {
	t.Parallel()

	r := &HostCPUReader{}
	got := r.utilizationSince(procfs.CPUStat{User: 10, Idle: 90})
	require.Equal(t, float64(0), got)
}

func TestUtilizationSinceComputesBusyFraction(t *testing.T) {
	t.Parallel()

	r := &HostCPUReader{}
	r.utilizationSince(procfs.CPUStat{User: 10, Idle: 90})

	got := r.utilizationSince(procfs.CPUStat{User: 60, Idle: 140})
	require.InDelta(t, 50.0, got, 0.01)
}

func TestPlatformFromArch(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "darwin" {
		require.Equal(t, model.PlatformAppleSilicon, platformFromArch("arm64"))

		return
	}

	require.Equal(t, model.PlatformArm, platformFromArch("arm64"))
}

