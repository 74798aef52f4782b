package reader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/prometheus/procfs"

	"github.com/accelmetrics/all-smi/pkg/model"
)

// HostCPUReader reads the host's processor complex through procfs,
// generalizing the teacher's cpuCollector (counter export) into an
// instantaneous utilization reader: it keeps the previous /proc/stat
// sample and reports the delta's busy fraction since the last call.
type HostCPUReader struct {
	fs     procfs.FS
	logger *slog.Logger

	staticOnce   sync.Once
	cpuModel     string
	architecture string
	platform     model.PlatformType
	socketCount  int
	totalCores   int
	totalThreads int

	mu   sync.Mutex
	prev procfs.CPUStat
	have bool
}

// NewHostCPUReader opens procfs at the default mount point.
func NewHostCPUReader(logger *slog.Logger) (*HostCPUReader, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("reader: open procfs: %w", err)
	}

	return &HostCPUReader{fs: fs, logger: logger}, nil
}

func (r *HostCPUReader) loadStatic() {
	r.staticOnce.Do(func() {
		r.architecture = runtime.GOARCH
		r.platform = platformFromArch(runtime.GOARCH)
		r.cpuModel = "unknown"

		info, err := r.fs.CPUInfo()
		if err != nil {
			r.logger.Warn("cpuinfo unavailable", "err", err)

			return
		}

		sockets := make(map[string]struct{})

		for _, c := range info {
			sockets[c.PhysicalID] = struct{}{}
			r.totalThreads++

			if c.ModelName != "" {
				r.cpuModel = c.ModelName
			}
		}

		r.socketCount = len(sockets)
		if r.socketCount == 0 {
			r.socketCount = 1
		}

		r.totalCores = r.totalThreads
	})
}

// CPUInfo samples one aggregate CPUInfo entry for the host.
func (r *HostCPUReader) CPUInfo(ctx context.Context) (model.CpuInfo, error) {
	r.loadStatic()

	stat, err := r.fs.Stat()
	if err != nil {
		return model.CpuInfo{}, fmt.Errorf("reader: read /proc/stat: %w", err)
	}

	utilization := r.utilizationSince(stat.CPUTotal)

	return model.CpuInfo{
		CPUModel:     r.cpuModel,
		Architecture: r.architecture,
		PlatformType: r.platform,
		SocketCount:  r.socketCount,
		TotalCores:   r.totalCores,
		TotalThreads: r.totalThreads,
		Utilization:  utilization,
	}, nil
}

// utilizationSince computes the busy fraction of CPU time between the
// previous sample and now, returning 0 on the first call since there is
// no prior sample to diff against.
func (r *HostCPUReader) utilizationSince(cur procfs.CPUStat) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.prev
	have := r.have
	r.prev = cur
	r.have = true

	if !have {
		return 0
	}

	prevIdle := prev.Idle + prev.Iowait
	curIdle := cur.Idle + cur.Iowait

	prevTotal := prev.User + prev.Nice + prev.System + prev.Idle + prev.Iowait +
		prev.IRQ + prev.SoftIRQ + prev.Steal
	curTotal := cur.User + cur.Nice + cur.System + cur.Idle + cur.Iowait +
		cur.IRQ + cur.SoftIRQ + cur.Steal

	totalDelta := curTotal - prevTotal
	idleDelta := curIdle - prevIdle

	if totalDelta <= 0 {
		return 0
	}

	busy := (totalDelta - idleDelta) / totalDelta * 100.0
	if busy < 0 {
		return 0
	}

	if busy > 100 {
		return 100
	}

	return busy
}

func platformFromArch(arch string) model.PlatformType {
	switch {
	case strings.HasPrefix(arch, "arm") || strings.HasPrefix(arch, "arm64"):
		if runtime.GOOS == "darwin" {
			return model.PlatformAppleSilicon
		}

		return model.PlatformArm
	case arch == "amd64", arch == "386":
		if isGenuineIntel() {
			return model.PlatformIntel
		}

		return model.PlatformAmd
	default:
		return model.PlatformOther
	}
}

// isGenuineIntel distinguishes Intel from AMD on x86 by scanning
// /proc/cpuinfo's vendor_id line; absence of procfs (non-Linux) reports
// false, which callers treat as the Amd branch — a harmless default since
// darwin/amd64 hosts are exceedingly rare in this fleet.
func isGenuineIntel() bool {
	b, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return false
	}

	return strings.Contains(string(b), "GenuineIntel")
}
