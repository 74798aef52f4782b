package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/accelmetrics/all-smi/pkg/model"
)

func TestReduceGPUsMeanAndStddev(t *testing.T) {
	t.Parallel()

	snap := &model.ClusterSnapshot{
		GPUs: []model.GpuInfo{
			{Hostname: "a", Utilization: 50, Temperature: 60, MemoryUsed: 50, MemoryTotal: 100},
			{Hostname: "a", Utilization: 70, Temperature: 70, MemoryUsed: 25, MemoryTotal: 100},
			{Hostname: "a", Utilization: 90, Temperature: 80, MemoryUsed: 75, MemoryTotal: 100},
		},
	}

	m := Reduce(snap, time.Now())
	require.Equal(t, 3, m.GPU.Count)
	require.InDelta(t, 70, m.GPU.MeanUtilization, 0.001)
	require.InDelta(t, 70, m.GPU.MeanTemperature, 0.001)
	require.InDelta(t, 10, m.GPU.TemperatureStddev, 0.001)
	require.InDelta(t, 50, m.GPU.MeanMemoryPercent, 0.001)
}

func TestReduceSingleSampleStddevIsZero(t *testing.T) {
	t.Parallel()

	snap := &model.ClusterSnapshot{
		GPUs: []model.GpuInfo{{Temperature: 60}},
	}

	m := Reduce(snap, time.Now())
	require.Equal(t, float64(0), m.GPU.TemperatureStddev)
}

func TestReduceByHostGroupsSeparately(t *testing.T) {
	t.Parallel()

	snap := &model.ClusterSnapshot{
		GPUs: []model.GpuInfo{
			{Hostname: "node-a", Utilization: 100},
			{Hostname: "node-b", Utilization: 0},
		},
	}

	byHost := ReduceByHost(snap)
	require.Len(t, byHost, 2)

	seen := map[string]float64{}
	for _, h := range byHost {
		seen[h.Hostname] = h.GPUClusterMetrics.MeanUtilization
	}

	require.Equal(t, float64(100), seen["node-a"])
	require.Equal(t, float64(0), seen["node-b"])
}

func TestReduceEmptySnapshotReturnsZeroValues(t *testing.T) {
	t.Parallel()

	m := Reduce(&model.ClusterSnapshot{}, time.Now())
	require.Equal(t, 0, m.GPU.Count)
	require.Equal(t, float64(0), m.GPU.MeanUtilization)
}
