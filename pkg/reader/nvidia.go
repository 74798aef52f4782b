package reader

import (
	"context"
	"encoding/xml"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/accelmetrics/all-smi/internal/helpers"
	"github.com/accelmetrics/all-smi/internal/osexec"
	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/accelmetrics/all-smi/pkg/session"
)

func init() {
	register(VendorNVIDIA, detectNVIDIA)
}

var nvidiaSMIQueryCmd = []string{"--query", "--xml-format"}

// nvidiaGPULog mirrors the subset of `nvidia-smi --query --xml-format`'s
// XML shape this reader consumes.
type nvidiaGPULog struct {
	XMLName xml.Name    `xml:"nvidia_smi_log"`
	GPUs    []nvidiaGPU `xml:"gpu"`
}

type nvidiaGPU struct {
	ID            string       `xml:"id,attr"`
	ProductName   string       `xml:"product_name"`
	UUID          string       `xml:"uuid"`
	Utilization   nvidiaUtil   `xml:"utilization"`
	FBMemoryUsage nvidiaMemory `xml:"fb_memory_usage"`
	Temperature   nvidiaTemp   `xml:"temperature"`
	PowerReadings nvidiaPower  `xml:"gpu_power_readings"`
	ClocksInfo    nvidiaClocks `xml:"clocks"`
}

type nvidiaUtil struct {
	GPUUtil string `xml:"gpu_util"`
}

type nvidiaMemory struct {
	Total string `xml:"total"`
	Used  string `xml:"used"`
}

type nvidiaTemp struct {
	GPUTemp string `xml:"gpu_temp"`
}

type nvidiaPower struct {
	DrawW string `xml:"power_draw"`
}

type nvidiaClocks struct {
	GraphicsClock string `xml:"graphics_clock"`
}

// nvidiaReader reads NVIDIA discrete GPUs via `nvidia-smi`, grounded on
// the teacher's subprocess-then-xml-unmarshal pattern generalized to pull
// dynamic per-sample fields instead of static topology only.
type nvidiaReader struct {
	smiPath string
	logger  *slog.Logger

	staticOnce sync.Once
	staticInfo map[string]model.DeviceStaticInfo // keyed by UUID
}

func detectNVIDIA(ctx context.Context, sessions *session.Registry) (Reader, error) {
	path, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return nil, nil // vendor absent, not an error
	}

	return &nvidiaReader{
		smiPath:    path,
		logger:     slog.Default().With("reader", "nvidia"),
		staticInfo: make(map[string]model.DeviceStaticInfo),
	}, nil
}

// Capabilities implements Reader.
func (r *nvidiaReader) Capabilities() Capabilities {
	return Capabilities{Vendor: VendorNVIDIA, GPUInfo: true}
}

// GPUInfo implements Reader.
func (r *nvidiaReader) GPUInfo(ctx context.Context) ([]model.GpuInfo, error) {
	out, err := osexec.ExecuteContext(ctx, r.smiPath, nvidiaSMIQueryCmd, nil)
	if err != nil {
		r.logger.Warn("nvidia-smi query failed", "err", err)

		return nil, nil
	}

	var log nvidiaGPULog
	if err := xml.Unmarshal(out, &log); err != nil { //nolint:musttag
		r.logger.Warn("nvidia-smi xml parse failed", "err", err)

		return nil, nil
	}

	infos := make([]model.GpuInfo, 0, len(log.GPUs))

	for i, gpu := range log.GPUs {
		uuid := gpu.UUID
		if uuid == "" {
			synth, err := helpers.GetUUIDFromString([]string{"nvidia", gpu.ID})
			if err == nil {
				uuid = synth
			}
		}

		r.cacheStatic(uuid, gpu)

		info := model.GpuInfo{
			UUID:        uuid,
			Name:        gpu.ProductName,
			DeviceType:  model.DeviceTypeGPU,
			Index:       i,
			Utilization: parsePercent(gpu.Utilization.GPUUtil),
			MemoryUsed:  parseMiBToBytes(gpu.FBMemoryUsage.Used),
			MemoryTotal: parseMiBToBytes(gpu.FBMemoryUsage.Total),
			Temperature: parseCelsius(gpu.Temperature.GPUTemp),
			Frequency:   parseMHz(gpu.ClocksInfo.GraphicsClock),
			PowerConsumption: parseWatts(gpu.PowerReadings.DrawW),
			Detail: map[string]string{
				model.DetailPCIBusID: gpu.ID,
			},
		}

		infos = append(infos, info)
	}

	return infos, nil
}

// ProcessInfo implements Reader. nvidia-smi's process accounting requires
// a second query (--query-compute-apps); left empty until the remote
// aggregator's consumers need per-process NVIDIA data badly enough to
// justify the extra subprocess round trip every tick.
func (r *nvidiaReader) ProcessInfo(ctx context.Context) ([]model.ProcessInfo, error) {
	return nil, nil
}

func (r *nvidiaReader) cacheStatic(uuid string, gpu nvidiaGPU) {
	if _, ok := r.staticInfo[uuid]; ok {
		return
	}

	r.staticInfo[uuid] = model.DeviceStaticInfo{
		Name: gpu.ProductName,
		UUID: uuid,
		Detail: map[string]string{
			model.DetailPCIBusID: gpu.ID,
		},
	}
}

// parsePercent parses a "NN %" nvidia-smi field into a float, returning
// model.Unavailable on anything unparseable (e.g. "N/A").
func parsePercent(s string) float64 {
	return parseLeadingFloat(s, float64(model.Unavailable))
}

func parseCelsius(s string) float64 {
	return parseLeadingFloat(s, float64(model.Unavailable))
}

func parseMHz(s string) float64 {
	return parseLeadingFloat(s, 0)
}

func parseWatts(s string) float64 {
	return parseLeadingFloat(s, float64(model.Unavailable))
}

// parseMiBToBytes parses a "NNNN MiB" field into bytes.
func parseMiBToBytes(s string) uint64 {
	v := parseLeadingFloat(s, 0)
	if v < 0 {
		return 0
	}

	return uint64(v) * 1024 * 1024
}

// parseLeadingFloat extracts the leading numeric token of strings like
// "42 %", "1024 MiB", "N/A", returning def when nothing parses.
func parseLeadingFloat(s string, def float64) float64 {
	field := strings.Fields(s)
	if len(field) == 0 {
		return def
	}

	v, err := strconv.ParseFloat(field[0], 64)
	if err != nil {
		return def
	}

	return v
}
