// Package collector implements the Collector Facade (C3): it invokes
// every detected vendor reader plus the host CPU/memory/storage/chassis
// readers in a fixed order and assembles one atomic HostSnapshot, the
// single producer the Exporter Service depends on.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/accelmetrics/all-smi/pkg/reader"
	"github.com/accelmetrics/all-smi/pkg/session"
)

// Facade owns the host's session.Registry and the detected vendor readers,
// producing one HostSnapshot per Snapshot call. Grounded on the teacher's
// CEEMSCollector: a registry of independent collectors invoked under one
// call, generalized from "many Prometheus collectors feeding one
// registry" to "many readers feeding one atomic snapshot," in the fixed
// order spec §5 requires for byte-stable export.
type Facade struct {
	logger *slog.Logger

	sessions *session.Registry
	readers  []reader.Reader

	cpu     readerCPU
	memory  readerMemory
	storage readerStorage
	chassis readerChassis

	hostname string

	mu   sync.RWMutex
	last *model.HostSnapshot
}

// readerCPU, readerMemory, readerStorage and readerChassis narrow
// pkg/reader's host readers to the single method the facade calls, so
// this package depends on behavior rather than concrete reader types.
type readerCPU interface {
	CPUInfo(ctx context.Context) (model.CpuInfo, error)
}

type readerMemory interface {
	MemoryInfo(ctx context.Context) (model.MemoryInfo, error)
}

type readerStorage interface {
	StorageInfo(ctx context.Context) ([]model.StorageInfo, error)
}

type readerChassis interface {
	ChassisInfo(ctx context.Context) (model.ChassisInfo, error)
}

// New detects every vendor reader and initializes their sessions. The
// returned Facade owns the session.Registry for the remainder of the
// process's life; callers must call Shutdown before exit.
func New(ctx context.Context, logger *slog.Logger) (*Facade, error) {
	sessions := session.NewRegistry(logger.With("component", "session_registry"))

	readers, err := reader.DetectAll(ctx, sessions)
	if err != nil {
		return nil, fmt.Errorf("collector: detect readers: %w", err)
	}

	sessions.Init(ctx)

	var cpu readerCPU

	if cpuReader, err := newHostCPUAdapter(logger); err != nil {
		logger.Warn("cpu reader unavailable", "err", err)
	} else {
		cpu = cpuReader
	}

	var mem readerMemory

	if memReader, err := newHostMemoryAdapter(logger); err != nil {
		logger.Warn("memory reader unavailable", "err", err)
	} else {
		mem = memReader
	}

	hostname, _ := os.Hostname()

	return &Facade{
		logger:   logger,
		sessions: sessions,
		readers:  readers,
		cpu:      cpu,
		memory:   mem,
		storage:  newHostStorageAdapter(logger),
		chassis:  newHostChassisAdapter(logger, readers),
		hostname: hostname,
	}, nil
}

// Shutdown stops every registered session.
func (f *Facade) Shutdown(ctx context.Context) error {
	return f.sessions.Shutdown(ctx)
}

// Snapshot invokes every reader in the fixed order (GPU families, then
// CPU, memory, chassis, storage) and returns one atomic HostSnapshot. A
// single failing reader is logged and contributes nothing to the
// snapshot rather than aborting the whole sample.
func (f *Facade) Snapshot(ctx context.Context) (*model.HostSnapshot, error) {
	now := time.Now()

	snap := &model.HostSnapshot{
		Time:     now,
		Hostname: f.hostname,
	}

	for _, r := range f.readers {
		gpus, err := r.GPUInfo(ctx)
		if err != nil {
			f.logger.Warn("reader gpu_info failed", "vendor", r.Capabilities().Vendor, "err", err)

			continue
		}

		stampGPUs(gpus, now, f.hostname)
		snap.GPUs = append(snap.GPUs, gpus...)

		procs, err := r.ProcessInfo(ctx)
		if err != nil {
			f.logger.Warn("reader process_info failed", "vendor", r.Capabilities().Vendor, "err", err)

			continue
		}

		stampProcesses(procs, now, f.hostname)
		snap.Processes = append(snap.Processes, procs...)
	}

	if f.cpu != nil {
		if cpu, err := f.cpu.CPUInfo(ctx); err != nil {
			f.logger.Warn("cpu reader failed", "err", err)
		} else {
			cpu.Time = now
			cpu.Hostname = f.hostname
			cpu.Instance = f.hostname
			cpu.HostID = f.hostname
			snap.CPUs = append(snap.CPUs, cpu)
		}
	}

	if f.memory != nil {
		if mem, err := f.memory.MemoryInfo(ctx); err != nil {
			f.logger.Warn("memory reader failed", "err", err)
		} else {
			mem.Time = now
			mem.Hostname = f.hostname
			mem.Instance = f.hostname
			mem.HostID = f.hostname
			snap.Memory = append(snap.Memory, mem)
		}
	}

	if f.chassis != nil {
		if ch, err := f.chassis.ChassisInfo(ctx); err != nil {
			f.logger.Warn("chassis reader failed", "err", err)
		} else {
			ch.Time = now
			ch.Hostname = f.hostname
			ch.Instance = f.hostname
			ch.HostID = f.hostname
			snap.Chassis = append(snap.Chassis, ch)
		}
	}

	if f.storage != nil {
		if disks, err := f.storage.StorageInfo(ctx); err != nil {
			f.logger.Warn("storage reader failed", "err", err)
		} else {
			stampStorage(disks, now, f.hostname)
			snap.Storage = append(snap.Storage, disks...)
		}
	}

	f.mu.Lock()
	f.last = snap
	f.mu.Unlock()

	return snap, nil
}

// Last returns the most recently produced snapshot, or nil before the
// first successful Snapshot call.
func (f *Facade) Last() *model.HostSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.last
}

func stampGPUs(gpus []model.GpuInfo, now time.Time, hostname string) {
	for i := range gpus {
		gpus[i].Time = now
		gpus[i].Hostname = hostname
		gpus[i].Instance = hostname
		gpus[i].HostID = hostname
	}
}

func stampProcesses(procs []model.ProcessInfo, now time.Time, hostname string) {
	for i := range procs {
		procs[i].Time = now
		procs[i].Hostname = hostname
		procs[i].Instance = hostname
		procs[i].HostID = hostname
	}
}

func stampStorage(disks []model.StorageInfo, now time.Time, hostname string) {
	for i := range disks {
		disks[i].Time = now
		disks[i].Hostname = hostname
		disks[i].Instance = hostname
		disks[i].HostID = hostname
	}
}
