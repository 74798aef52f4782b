package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/accelmetrics/all-smi/internal/osexec"
	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/accelmetrics/all-smi/pkg/session"
)

func init() {
	register(VendorAMD, detectAMD)
}

var amdSMIQueryCmd = []string{"static", "-a", "-B", "-b", "-p", "--json"}
var amdSMIMetricCmd = []string{"metric", "-u", "-m", "-t", "--json"}

// amdStaticEntry mirrors the subset of `amd-smi static --json` this
// reader consumes.
type amdStaticEntry struct {
	GPU  int `json:"gpu"`
	ASIC struct {
		MarketName string `json:"market_name"`
	} `json:"asic"`
	Bus struct {
		BDF string `json:"bdf"`
	} `json:"bus"`
	VRAM struct {
		TotalVRAMMiB float64 `json:"total_vram"`
	} `json:"vram"`
}

// amdMetricEntry mirrors `amd-smi metric --json`.
type amdMetricEntry struct {
	GPU   int `json:"gpu"`
	Usage struct {
		GFXActivityPercent float64 `json:"gfx_activity"`
	} `json:"usage"`
	Power struct {
		SocketPowerWatts float64 `json:"socket_power"`
	} `json:"power"`
	Temperature struct {
		EdgeC float64 `json:"edge"`
	} `json:"temperature"`
	Clock struct {
		GFXMHz float64 `json:"clk"`
	} `json:"clk"`
	VRAMUsage struct {
		UsedVRAMMiB float64 `json:"vram_used"`
	} `json:"vram_usage"`
}

// amdReader reads AMD GPUs via `amd-smi`, grounded on the teacher's
// JSON-unmarshal pattern generalized to a second "metric" query for
// dynamic per-sample fields.
type amdReader struct {
	smiPath string
	logger  *slog.Logger
}

func detectAMD(ctx context.Context, sessions *session.Registry) (Reader, error) {
	path, err := exec.LookPath("amd-smi")
	if err != nil {
		return nil, nil
	}

	return &amdReader{smiPath: path, logger: slog.Default().With("reader", "amd")}, nil
}

// Capabilities implements Reader.
func (r *amdReader) Capabilities() Capabilities {
	return Capabilities{Vendor: VendorAMD, GPUInfo: true}
}

// GPUInfo implements Reader.
func (r *amdReader) GPUInfo(ctx context.Context) ([]model.GpuInfo, error) {
	staticOut, err := osexec.ExecuteContext(ctx, r.smiPath, amdSMIQueryCmd, nil)
	if err != nil {
		r.logger.Warn("amd-smi static query failed", "err", err)

		return nil, nil
	}

	var statics []amdStaticEntry
	if err := json.Unmarshal(staticOut, &statics); err != nil {
		r.logger.Warn("amd-smi static json parse failed", "err", err)

		return nil, nil
	}

	metricOut, err := osexec.ExecuteContext(ctx, r.smiPath, amdSMIMetricCmd, nil)
	if err != nil {
		r.logger.Warn("amd-smi metric query failed", "err", err)
		metricOut = nil
	}

	metrics := make(map[int]amdMetricEntry)

	if metricOut != nil {
		var entries []amdMetricEntry
		if err := json.Unmarshal(metricOut, &entries); err == nil {
			for _, e := range entries {
				metrics[e.GPU] = e
			}
		}
	}

	infos := make([]model.GpuInfo, 0, len(statics))

	for _, s := range statics {
		bdf := strings.ToLower(s.Bus.BDF)
		uuid := fmt.Sprintf("GPU-%s", bdf)

		info := model.GpuInfo{
			UUID:             uuid,
			Name:             s.ASIC.MarketName,
			DeviceType:       model.DeviceTypeGPU,
			Index:            s.GPU,
			Utilization:      float64(model.Unavailable),
			PowerConsumption: float64(model.Unavailable),
			Temperature:      float64(model.Unavailable),
			MemoryTotal:      uint64(s.VRAM.TotalVRAMMiB) * 1024 * 1024,
			Detail: map[string]string{
				model.DetailPCIBusID: bdf,
			},
		}

		if m, ok := metrics[s.GPU]; ok {
			info.Utilization = m.Usage.GFXActivityPercent
			info.PowerConsumption = m.Power.SocketPowerWatts
			info.Temperature = m.Temperature.EdgeC
			info.Frequency = m.Clock.GFXMHz
			info.MemoryUsed = uint64(m.VRAMUsage.UsedVRAMMiB) * 1024 * 1024
		}

		infos = append(infos, info)
	}

	return infos, nil
}

// ProcessInfo implements Reader. amd-smi does not expose per-process GPU
// attribution on every ROCm release; treated as vendor-absent capability.
func (r *amdReader) ProcessInfo(ctx context.Context) ([]model.ProcessInfo, error) {
	return nil, nil
}
