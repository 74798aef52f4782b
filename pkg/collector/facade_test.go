package collector

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/accelmetrics/all-smi/pkg/reader"
)

type fakeReader struct {
	gpus  []model.GpuInfo
	procs []model.ProcessInfo
	err   error
}

func (f *fakeReader) GPUInfo(ctx context.Context) ([]model.GpuInfo, error) {
	if f.err != nil {
		return nil, f.err
	}

	return f.gpus, nil
}

func (f *fakeReader) ProcessInfo(ctx context.Context) ([]model.ProcessInfo, error) {
	return f.procs, nil
}

func (f *fakeReader) Capabilities() reader.Capabilities {
	return reader.Capabilities{Vendor: reader.VendorNVIDIA, GPUInfo: true}
}

type fakeCPU struct{ info model.CpuInfo }

func (f fakeCPU) CPUInfo(ctx context.Context) (model.CpuInfo, error) { return f.info, nil }

func TestSnapshotStampsTimeAndHostnameAcrossEntities(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &Facade{
		logger:   logger,
		readers:  []reader.Reader{&fakeReader{gpus: []model.GpuInfo{{UUID: "GPU-1"}}, procs: []model.ProcessInfo{{PID: 42}}}},
		cpu:      fakeCPU{info: model.CpuInfo{CPUModel: "test-cpu"}},
		hostname: "node-a",
	}

	snap, err := f.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.GPUs, 1)
	require.Equal(t, "node-a", snap.GPUs[0].Hostname)
	require.Equal(t, "node-a", snap.GPUs[0].Instance)
	require.Equal(t, "node-a", snap.GPUs[0].HostID)
	require.False(t, snap.GPUs[0].Time.IsZero())

	require.Len(t, snap.Processes, 1)
	require.Equal(t, "node-a", snap.Processes[0].Hostname)

	require.Len(t, snap.CPUs, 1)
	require.Equal(t, "test-cpu", snap.CPUs[0].CPUModel)
	require.Equal(t, "node-a", snap.CPUs[0].Hostname)
	require.Equal(t, "node-a", snap.CPUs[0].Instance)
	require.Equal(t, "node-a", snap.CPUs[0].HostID)

	require.Equal(t, snap, f.Last())
}

func TestSnapshotSkipsFailingReader(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &Facade{
		logger:   logger,
		readers:  []reader.Reader{&fakeReader{err: context.DeadlineExceeded}},
		hostname: "node-b",
	}

	snap, err := f.Snapshot(context.Background())
	require.NoError(t, err)
	require.Empty(t, snap.GPUs)
}

func TestSnapshotWithNoHostReadersStillReturnsGPUSnapshot(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &Facade{
		logger:   logger,
		readers:  []reader.Reader{&fakeReader{gpus: []model.GpuInfo{{UUID: "GPU-only"}}}},
		hostname: "node-c",
	}

	before := time.Now()
	snap, err := f.Snapshot(context.Background())
	require.NoError(t, err)
	require.True(t, !snap.Time.Before(before))
	require.Empty(t, snap.CPUs)
	require.Empty(t, snap.Memory)
	require.Empty(t, snap.Chassis)
	require.Empty(t, snap.Storage)
}
