package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/accelmetrics/all-smi/internal/osexec"
	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/accelmetrics/all-smi/pkg/session"
)

func init() {
	register(VendorRebellions, detectRebellions)
}

// rebellionsCandidatePaths mirrors the upstream tool's fixed-path probe
// order before falling back to $PATH lookup.
var rebellionsCandidatePaths = []string{
	"/usr/local/bin/rbln-stat",
	"/usr/bin/rbln-stat",
	"/usr/local/bin/rbln-smi",
	"/usr/bin/rbln-smi",
}

type rblnPCIInfo struct {
	BusID     string `json:"bus_id"`
	NUMANode  string `json:"numa_node"`
	LinkSpeed string `json:"link_speed"`
	LinkWidth string `json:"link_width"`
}

type rblnMemoryInfo struct {
	Used  string `json:"used"`
	Total string `json:"total"`
}

type rblnDevice struct {
	Name        string         `json:"name"`
	SID         string         `json:"sid"`
	UUID        string         `json:"uuid"`
	Device      string         `json:"device"`
	Status      string         `json:"status"`
	FWVer       string         `json:"fw_ver"`
	PCI         rblnPCIInfo    `json:"pci"`
	Temperature string         `json:"temperature"`
	CardPower   string         `json:"card_power"`
	Pstate      string         `json:"pstate"`
	Memory      rblnMemoryInfo `json:"memory"`
	Util        string         `json:"util"`
	BoardInfo   string         `json:"board_info"`
}

type rblnContext struct {
	NPU      string `json:"npu"`
	PID      string `json:"pid"`
	MemAlloc string `json:"memalloc"`
}

type rblnResponse struct {
	KMDVersion string        `json:"KMD_version"`
	Devices    []rblnDevice  `json:"devices"`
	Contexts   []rblnContext `json:"contexts"`
}

type rebellionsReader struct {
	cmdPath string
	logger  *slog.Logger
}

func detectRebellions(ctx context.Context, sessions *session.Registry) (Reader, error) {
	for _, p := range rebellionsCandidatePaths {
		if _, err := os.Stat(p); err == nil {
			return &rebellionsReader{cmdPath: p, logger: slog.Default().With("reader", "rebellions")}, nil
		}
	}

	for _, name := range []string{"rbln-stat", "rbln-smi"} {
		if p, err := exec.LookPath(name); err == nil {
			return &rebellionsReader{cmdPath: p, logger: slog.Default().With("reader", "rebellions")}, nil
		}
	}

	return nil, nil
}

// Capabilities implements Reader.
func (r *rebellionsReader) Capabilities() Capabilities {
	return Capabilities{Vendor: VendorRebellions, GPUInfo: true, ProcessInfo: true}
}

func (r *rebellionsReader) query(ctx context.Context) (*rblnResponse, error) {
	out, err := osexec.ExecuteContext(ctx, r.cmdPath, []string{"-j"}, nil)
	if err != nil {
		return nil, fmt.Errorf("reader: execute %s -j: %w", r.cmdPath, err)
	}

	var resp rblnResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("reader: parse %s json: %w", r.cmdPath, err)
	}

	return &resp, nil
}

// GPUInfo implements Reader.
func (r *rebellionsReader) GPUInfo(ctx context.Context) ([]model.GpuInfo, error) {
	resp, err := r.query(ctx)
	if err != nil {
		r.logger.Warn("rbln query failed", "err", err)

		return nil, nil
	}

	infos := make([]model.GpuInfo, 0, len(resp.Devices))

	for i, d := range resp.Devices {
		totalMemory := parseNumericSuffix[uint64](d.Memory.Total, "")
		model_ := fmt.Sprintf("Rebellions %s", rebellionsDeviceModel(d.Name, totalMemory))

		infos = append(infos, model.GpuInfo{
			UUID:             d.UUID,
			Name:             model_,
			DeviceType:       model.DeviceTypeNPU,
			Index:            i,
			Utilization:      parseNumericSuffix[float64](d.Util, ""),
			Temperature:      parseNumericSuffix[float64](d.Temperature, "C"),
			MemoryUsed:       parseNumericSuffix[uint64](d.Memory.Used, ""),
			MemoryTotal:      totalMemory,
			PowerConsumption: parseNumericSuffix[float64](d.CardPower, "mW") / 1000.0,
			Detail: map[string]string{
				"KMD Version":             resp.KMDVersion,
				"Firmware Version":        d.FWVer,
				"Device Name":             d.Device,
				"Serial ID":               d.SID,
				"Status":                  d.Status,
				model.DetailPCIBusID:      d.PCI.BusID,
				"PCIe Link Speed":         d.PCI.LinkSpeed,
				model.DetailPCIeLinkWidth: fmt.Sprintf("x%s", d.PCI.LinkWidth),
				"NUMA Node":               d.PCI.NUMANode,
				"Performance State":       d.Pstate,
				"Board Info":              d.BoardInfo,
			},
		})
	}

	return infos, nil
}

// ProcessInfo implements Reader.
func (r *rebellionsReader) ProcessInfo(ctx context.Context) ([]model.ProcessInfo, error) {
	resp, err := r.query(ctx)
	if err != nil {
		return nil, nil
	}

	byPID := make(map[int]uint64)

	for _, c := range resp.Contexts {
		pid, err := strconv.Atoi(c.PID)
		if err != nil {
			continue
		}

		byPID[pid] += parseMemoryAllocation(c.MemAlloc)
	}

	procs := make([]model.ProcessInfo, 0, len(byPID))
	for pid, mem := range byPID {
		procs = append(procs, model.ProcessInfo{
			PID:          pid,
			ContainerPID: resolveContainerPID(pid),
			UsesGPU:      true,
			UsedMemory:   mem,
		})
	}

	return procs, nil
}

func rebellionsDeviceModel(name string, totalMemoryBytes uint64) string {
	gb := float64(totalMemoryBytes) / (1024.0 * 1024.0 * 1024.0)

	variant := "ATOM"
	switch {
	case gb <= 16.0:
		variant = "ATOM"
	case gb <= 32.0:
		variant = "ATOM+"
	default:
		variant = "ATOM Max"
	}

	return fmt.Sprintf("%s (%s)", name, variant)
}

// parseNumericSuffix trims an optional trailing suffix (e.g. "45C" -> "45")
// and parses the remainder, returning the zero value on any failure —
// rbln-smi's fields are always plain numeric strings, so a parse failure
// means the field is genuinely absent, not malformed.
func parseNumericSuffix[T int64 | uint64 | float64](s, suffix string) T {
	trimmed := strings.TrimSpace(s)
	if suffix != "" {
		trimmed = strings.TrimSuffix(trimmed, suffix)
	}

	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		var zero T

		return zero
	}

	return T(f)
}

// parseMemoryAllocation parses strings like "66.0MiB" into bytes.
func parseMemoryAllocation(s string) uint64 {
	s = strings.TrimSpace(s)

	units := []struct {
		suffix string
		mult   float64
	}{
		{"TiB", 1024 * 1024 * 1024 * 1024},
		{"GiB", 1024 * 1024 * 1024},
		{"MiB", 1024 * 1024},
		{"KiB", 1024},
	}

	for _, u := range units {
		if idx := strings.Index(s, u.suffix); idx >= 0 {
			if v, err := strconv.ParseFloat(s[:idx], 64); err == nil {
				return uint64(v * u.mult)
			}
		}
	}

	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v
	}

	return 0
}
