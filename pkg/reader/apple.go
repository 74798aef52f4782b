package reader

import (
	"context"
	"log/slog"
	goruntime "runtime"
	"sync"

	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/accelmetrics/all-smi/pkg/session"
)

func init() {
	register(VendorAppleSilicon, detectAppleSilicon)
}

// appleSiliconGPUUUID is fixed: Apple Silicon exposes a single logical
// GPU per spec's invariant table.
const appleSiliconGPUUUID = "AppleSiliconGPU"

const appleFFISessionName = "apple-ioreport"

// appleSiliconReader reads the integrated GPU/ANE power and thermal state
// through the IOReport/SMC FFISession; everywhere but darwin this vendor
// is simply absent.
type appleSiliconReader struct {
	ffi    *session.FFISession
	logger *slog.Logger

	nameOnce sync.Once
	gpuName  string
}

func detectAppleSilicon(ctx context.Context, sessions *session.Registry) (Reader, error) {
	if goruntime.GOOS != "darwin" {
		return nil, nil
	}

	ffi := session.NewFFISession(appleFFISessionName, slog.Default().With("session", appleFFISessionName))
	if err := sessions.Register(ffi); err != nil {
		return nil, err
	}

	return &appleSiliconReader{
		ffi:     ffi,
		logger:  slog.Default().With("reader", "apple_silicon"),
		gpuName: "Apple Silicon GPU",
	}, nil
}

// Capabilities implements Reader.
func (r *appleSiliconReader) Capabilities() Capabilities {
	return Capabilities{Vendor: VendorAppleSilicon, GPUInfo: true}
}

// FFISession exposes the IOReport/SMC session so the chassis reader can
// reuse it instead of opening a second native handle.
func (r *appleSiliconReader) FFISession() *session.FFISession {
	return r.ffi
}

// GPUInfo implements Reader.
func (r *appleSiliconReader) GPUInfo(ctx context.Context) ([]model.GpuInfo, error) {
	m, err := r.ffi.Sample()
	if err != nil {
		r.logger.Warn("ioreport sample unavailable", "err", err)

		return []model.GpuInfo{
			{
				UUID:             appleSiliconGPUUUID,
				Name:             r.gpuName,
				DeviceType:       model.DeviceTypeGPU,
				Utilization:      float64(model.Unavailable),
				PowerConsumption: float64(model.Unavailable),
				Temperature:      float64(model.Unavailable),
			},
		}, nil
	}

	ane := m.ANEPowerWatts * 1000 // W -> mW per spec's ane_utilization unit

	return []model.GpuInfo{
		{
			UUID:             appleSiliconGPUUUID,
			Name:             r.gpuName,
			DeviceType:       model.DeviceTypeGPU,
			Utilization:      float64(model.Unavailable),
			Frequency:        m.GPUFreqMHz,
			Temperature:      m.SocTempC,
			PowerConsumption: m.GPUPowerWatts,
			ANEUtilization:   &ane,
			Detail: map[string]string{
				model.DetailThermalPressure: thermalStateLabel(m.ThermalState),
			},
		},
	}, nil
}

// ProcessInfo implements Reader. IOReport exposes no per-process GPU
// attribution.
func (r *appleSiliconReader) ProcessInfo(ctx context.Context) ([]model.ProcessInfo, error) {
	return nil, nil
}

// thermalStateLabel maps NSProcessInfoThermalState's integer values to the
// label text the metric builder and parser round-trip through the
// chassis thermal_pressure detail key.
func thermalStateLabel(state int) string {
	switch state {
	case 0:
		return "nominal"
	case 1:
		return "fair"
	case 2:
		return "serious"
	case 3:
		return "critical"
	default:
		return "unknown"
	}
}
