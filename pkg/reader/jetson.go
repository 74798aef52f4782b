package reader

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/accelmetrics/all-smi/pkg/session"
)

func init() {
	register(VendorJetson, detectJetson)
}

const jetsonGPUUUID = "JetsonGPU"

const (
	jetsonDeviceTreeModelPath = "/proc/device-tree/model"
	jetsonGPULoadPath         = "/sys/devices/platform/tegra-soc/gpu.0/load"
	jetsonGPUFreqPath         = "/sys/devices/platform/tegra-soc/gpu.0/cur_freq"
	jetsonThermalZonePath     = "/sys/devices/virtual/thermal/thermal_zone0/temp"
	jetsonPowerRailPath       = "/sys/bus/i2c/drivers/ina3221x/0-0040/iio:device0/in_power0_input"
	jetsonDLA0Path            = "/sys/kernel/debug/dla_0/load"
	jetsonDLA1Path            = "/sys/kernel/debug/dla_1/load"
)

// jetsonReader reads the integrated Tegra GPU through sysfs nodes; unlike
// every other vendor here it has no CLI or FFI session, the kernel's
// sysfs tree is both the static and dynamic source.
type jetsonReader struct {
	logger *slog.Logger

	staticOnce sync.Once
	name       string
}

func detectJetson(ctx context.Context, sessions *session.Registry) (Reader, error) {
	if _, err := os.Stat(jetsonDeviceTreeModelPath); err != nil {
		return nil, nil
	}

	if _, err := os.Stat(jetsonGPULoadPath); err != nil {
		return nil, nil
	}

	return &jetsonReader{logger: slog.Default().With("reader", "jetson")}, nil
}

// Capabilities implements Reader.
func (r *jetsonReader) Capabilities() Capabilities {
	return Capabilities{Vendor: VendorJetson, GPUInfo: true}
}

func (r *jetsonReader) staticName() string {
	r.staticOnce.Do(func() {
		b, err := os.ReadFile(jetsonDeviceTreeModelPath)
		if err != nil {
			r.name = "NVIDIA Jetson"

			return
		}

		r.name = strings.TrimRight(string(b), "\x00\n")
	})

	return r.name
}

// GPUInfo implements Reader.
func (r *jetsonReader) GPUInfo(ctx context.Context) ([]model.GpuInfo, error) {
	utilization := readSysfsFloat(jetsonGPULoadPath) / 10.0 // tenths of a percent
	frequencyHz := readSysfsFloat(jetsonGPUFreqPath)
	tempMilliC := readSysfsFloat(jetsonThermalZonePath)
	powerMW := readSysfsFloat(jetsonPowerRailPath)

	dla0 := readSysfsFloat(jetsonDLA0Path)
	dla1 := readSysfsFloat(jetsonDLA1Path)

	info := model.GpuInfo{
		UUID:             jetsonGPUUUID,
		Name:             r.staticName(),
		DeviceType:       model.DeviceTypeGPU,
		Utilization:      utilization,
		Frequency:        frequencyHz / 1000.0, // Hz -> MHz
		Temperature:      tempMilliC / 1000.0,  // mC -> C
		PowerConsumption: powerMW / 1000.0,     // mW -> W
		Detail: map[string]string{
			"GPU Type":     "Integrated",
			"Architecture": "Tegra",
		},
	}

	if dla0 > 0 || dla1 > 0 {
		total := dla0 + dla1
		info.DLAUtilization = &total
	}

	return []model.GpuInfo{info}, nil
}

// ProcessInfo implements Reader. Jetson exposes no native per-process GPU
// query; newer boards can answer nvidia-smi's compute-apps query, which
// a future revision can wire in the same way the NVIDIA discrete reader
// does.
func (r *jetsonReader) ProcessInfo(ctx context.Context) ([]model.ProcessInfo, error) {
	return nil, nil
}

// readSysfsFloat reads a single numeric sysfs node, returning 0 on any
// read or parse failure — sysfs absence is common across Jetson boards
// and must never be treated as a hard error.
func readSysfsFloat(path string) float64 {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0
	}

	return v
}
