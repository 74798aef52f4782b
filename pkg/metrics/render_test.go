package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/accelmetrics/all-smi/pkg/model"
)

func TestRenderHostSingleGPU(t *testing.T) {
	t.Parallel()

	snap := &model.HostSnapshot{
		GPUs: []model.GpuInfo{
			{
				Snapshot:         model.Snapshot{Instance: "node-a:9400"},
				UUID:             "GPU-01",
				Name:             "Test GPU",
				Index:            0,
				Utilization:      73.0,
				MemoryUsed:       8 * 1 << 30,
				MemoryTotal:      24 * 1 << 30,
				Temperature:      71,
				PowerConsumption: 210.5,
				Frequency:        1755,
			},
		},
	}

	body := RenderHost(snap)

	require.Contains(t, body, `all_smi_gpu_utilization{gpu="Test GPU",instance="node-a:9400",uuid="GPU-01",index="0"} 73`)
	require.Contains(t, body, `all_smi_gpu_memory_used_bytes{gpu="Test GPU",instance="node-a:9400",uuid="GPU-01",index="0"} 8589934592`)
	require.Equal(t, 1, strings.Count(body, "# HELP all_smi_gpu_utilization"))
	require.Equal(t, 1, strings.Count(body, "# TYPE all_smi_gpu_utilization"))
}

func TestRenderHostEmptySnapshotHasNoEmptyHelpType(t *testing.T) {
	t.Parallel()

	body := RenderHost(&model.HostSnapshot{})
	require.Empty(t, body)
}

func TestRenderChassisThermalPressure(t *testing.T) {
	t.Parallel()

	pressure := "Nominal"
	snap := &model.HostSnapshot{
		Chassis: []model.ChassisInfo{
			{
				Snapshot:        model.Snapshot{Hostname: "node-a", Instance: "node-a:9400"},
				ThermalPressure: &pressure,
			},
		},
	}

	body := RenderHost(snap)
	require.Contains(t, body, `all_smi_chassis_thermal_pressure_info{hostname="node-a",instance="node-a:9400",level="Nominal"} 1`)
	require.NotContains(t, body, "all_smi_chassis_power_watts")
}

func TestEscapeLabelValue(t *testing.T) {
	t.Parallel()

	require.Equal(t, `a\"b\\c\nd`, EscapeLabelValue("a\"b\\c\nd"))
	require.Equal(t, "plain", EscapeLabelValue("plain"))
}

func TestSanitizeLabelKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pci_bus_id", sanitizeLabelKey("PCI Bus ID"))
	require.Equal(t, "driver_version", sanitizeLabelKey("Driver Version"))
}

func TestVendorSlugFromName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "tenstorrent", vendorSlugFromName("Tenstorrent NPU"))
	require.Equal(t, "furiosa", vendorSlugFromName("RNGD Furiosa"))
	require.Equal(t, "tpu", vendorSlugFromName("Google TPU"))
}
