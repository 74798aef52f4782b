package reader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/accelmetrics/all-smi/internal/helpers"
	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/accelmetrics/all-smi/pkg/session"
)

func init() {
	register(VendorTenstorrent, detectTenstorrent)
}

const tenstorrentDevDir = "/dev/tenstorrent"

// tenstorrentReader enumerates Tenstorrent NPUs through their /dev device
// nodes. The vendor's telemetry library (luwen) is a Rust crate with no
// portable C ABI to bind through cgo, so per-device power/clock/thermal
// readout here is intentionally degraded to Unavailable rather than
// fabricated. The board type is not read either: every device reports
// the e150-class memory size and TDP defaults of tenstorrentMemoryAndTDP.
type tenstorrentReader struct {
	logger *slog.Logger

	staticOnce sync.Once
	nodes      []string
}

func detectTenstorrent(ctx context.Context, sessions *session.Registry) (Reader, error) {
	entries, err := os.ReadDir(tenstorrentDevDir)
	if err != nil || len(entries) == 0 {
		return nil, nil
	}

	return &tenstorrentReader{logger: slog.Default().With("reader", "tenstorrent")}, nil
}

// Capabilities implements Reader.
func (r *tenstorrentReader) Capabilities() Capabilities {
	return Capabilities{Vendor: VendorTenstorrent, GPUInfo: true}
}

func (r *tenstorrentReader) deviceNodes() []string {
	r.staticOnce.Do(func() {
		entries, err := os.ReadDir(tenstorrentDevDir)
		if err != nil {
			return
		}

		var nodes []string

		for _, e := range entries {
			if e.IsDir() {
				continue
			}

			nodes = append(nodes, filepath.Join(tenstorrentDevDir, e.Name()))
		}

		sort.Strings(nodes)
		r.nodes = nodes
	})

	return r.nodes
}

// GPUInfo implements Reader.
func (r *tenstorrentReader) GPUInfo(ctx context.Context) ([]model.GpuInfo, error) {
	nodes := r.deviceNodes()
	infos := make([]model.GpuInfo, 0, len(nodes))

	for i, node := range nodes {
		uuid, err := helpers.GetUUIDFromString([]string{"tenstorrent", node})
		if err != nil {
			r.logger.Warn("uuid synthesis failed", "node", node, "err", err)

			continue
		}

		totalMemory, tdpLimit := tenstorrentMemoryAndTDP("unknown")

		infos = append(infos, model.GpuInfo{
			UUID:             uuid,
			Name:             "Tenstorrent NPU",
			DeviceType:       model.DeviceTypeNPU,
			Index:            i,
			Utilization:      float64(model.Unavailable),
			Temperature:      float64(model.Unavailable),
			PowerConsumption: float64(model.Unavailable),
			MemoryTotal:      totalMemory,
			Detail: map[string]string{
				"Device Node":             node,
				model.DetailLibName:       "Luwen",
				model.DetailPowerLimitMax: fmt.Sprintf("%.0fW", tdpLimit),
			},
		})
	}

	return infos, nil
}

// ProcessInfo implements Reader. Tenstorrent exposes no per-process
// attribution through the device-file interface used here.
func (r *tenstorrentReader) ProcessInfo(ctx context.Context) ([]model.ProcessInfo, error) {
	return nil, nil
}

// tenstorrentMemoryAndTDP classifies memory size and TDP from the board
// type string when it can be determined; unknown boards fall back to the
// e150-class defaults.
func tenstorrentMemoryAndTDP(boardType string) (uint64, float64) {
	const gib = 1024 * 1024 * 1024

	switch {
	case strings.Contains(boardType, "e75"):
		return 2 * gib, 75.0
	case strings.Contains(boardType, "e150"):
		return 8 * gib, 200.0
	case strings.Contains(boardType, "e300"):
		return 12 * gib, 300.0
	case strings.Contains(boardType, "galaxy"):
		return 32 * gib, 200.0
	case strings.Contains(boardType, "n150"):
		return 48 * gib, 160.0
	case strings.Contains(boardType, "n300"):
		return 96 * gib, 300.0
	default:
		return 8 * gib, 200.0
	}
}
