package reader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/procfs"

	"github.com/accelmetrics/all-smi/pkg/model"
)

// HostMemoryReader reads /proc/meminfo through procfs, generalizing the
// teacher's meminfoCollector (flat key/value counter export) into the
// single structured MemoryInfo entity the spec's snapshot wants.
type HostMemoryReader struct {
	fs     procfs.FS
	logger *slog.Logger
}

// NewHostMemoryReader opens procfs at the default mount point.
func NewHostMemoryReader(logger *slog.Logger) (*HostMemoryReader, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("reader: open procfs: %w", err)
	}

	return &HostMemoryReader{fs: fs, logger: logger}, nil
}

// MemoryInfo samples the host's current memory and swap usage.
func (r *HostMemoryReader) MemoryInfo(ctx context.Context) (model.MemoryInfo, error) {
	mi, err := r.fs.Meminfo()
	if err != nil {
		return model.MemoryInfo{}, fmt.Errorf("reader: read /proc/meminfo: %w", err)
	}

	total := kbToBytes(mi.MemTotal)
	free := kbToBytes(mi.MemFree)
	available := kbToBytes(mi.MemAvailable)
	buffers := kbToBytes(mi.Buffers)
	cached := kbToBytes(mi.Cached)

	used := uint64(0)
	if total > available {
		used = total - available
	}

	utilization := 0.0
	if total > 0 {
		utilization = float64(used) / float64(total) * 100.0
	}

	return model.MemoryInfo{
		TotalBytes:     total,
		UsedBytes:      used,
		AvailableBytes: available,
		FreeBytes:      free,
		BuffersBytes:   buffers,
		CachedBytes:    cached,
		SwapTotalBytes: kbToBytes(mi.SwapTotal),
		SwapUsedBytes:  swapUsed(mi.SwapTotal, mi.SwapFree),
		SwapFreeBytes:  kbToBytes(mi.SwapFree),
		Utilization:    utilization,
	}, nil
}

func kbToBytes(v *uint64) uint64 {
	if v == nil {
		return 0
	}

	return *v * 1024
}

func swapUsed(total, free *uint64) uint64 {
	t := kbToBytes(total)
	f := kbToBytes(free)

	if t > f {
		return t - f
	}

	return 0
}
