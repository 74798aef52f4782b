package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/accelmetrics/all-smi/pkg/metrics"
	"github.com/accelmetrics/all-smi/pkg/model"
)

func TestParseRoundTripsGPUFields(t *testing.T) {
	t.Parallel()

	snap := &model.HostSnapshot{
		GPUs: []model.GpuInfo{
			{
				Snapshot:         model.Snapshot{Instance: "node-a:9400", Hostname: "node-a"},
				UUID:             "GPU-01",
				Name:             "Test GPU",
				Index:            2,
				Utilization:      73,
				MemoryUsed:       8589934592,
				MemoryTotal:      25769803776,
				Temperature:      71,
				PowerConsumption: 210.5,
				Frequency:        1755,
			},
		},
	}

	body := metrics.RenderHost(snap)

	entities, err := Parse(body)
	require.NoError(t, err)
	require.Len(t, entities.GPUs, 1)

	g := entities.GPUs[0]
	require.Equal(t, "GPU-01", g.UUID)
	require.Equal(t, "Test GPU", g.Name)
	require.Equal(t, 2, g.Index)
	require.Equal(t, float64(73), g.Utilization)
	require.Equal(t, uint64(8589934592), g.MemoryUsed)
	require.Equal(t, uint64(25769803776), g.MemoryTotal)
	require.Equal(t, float64(71), g.Temperature)
	require.Equal(t, 210.5, g.PowerConsumption)
	require.Equal(t, float64(1755), g.Frequency)
	require.Equal(t, "node-a:9400", entities.ActualHostname)
	require.Equal(t, "node-a:9400", g.Hostname)
}

func TestParseIgnoresUnknownPrefix(t *testing.T) {
	t.Parallel()

	body := "all_smi_future_metric{instance=\"x\"} 1\n"
	entities, err := Parse(body)
	require.NoError(t, err)
	require.Empty(t, entities.GPUs)
	require.Empty(t, entities.CPUs)
}

func TestParseLabelsHandlesEscapedQuotes(t *testing.T) {
	t.Parallel()

	labels := parseLabels(`a="b\"c",d="e,f"`)
	require.Equal(t, `b"c`, labels["a"])
	require.Equal(t, "e,f", labels["d"])
}

func TestSaturatingUintNegativeClampsToZero(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint64(0), saturatingUint(-5))
}

func TestParseCPUAndStorage(t *testing.T) {
	t.Parallel()

	body := `all_smi_cpu_utilization{cpu_model="Epyc",instance="node-a:9400",hostname="node-a",index="0",architecture="amd64",platform_type="Amd"} 12.5
all_smi_storage_total_bytes{instance="node-a:9400",hostname="node-a",mount_point="/data",index="0"} 1000
all_smi_storage_available_bytes{instance="node-a:9400",hostname="node-a",mount_point="/data",index="0"} 400
`

	entities, err := Parse(body)
	require.NoError(t, err)
	require.Len(t, entities.CPUs, 1)
	require.InDelta(t, 12.5, entities.CPUs[0].Utilization, 0.001)

	require.Len(t, entities.Storage, 1)
	require.Equal(t, uint64(1000), entities.Storage[0].TotalBytes)
	require.Equal(t, uint64(400), entities.Storage[0].AvailableBytes)
}
