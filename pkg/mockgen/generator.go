// Package mockgen implements the supplemented --mock fixture generator:
// an in-process HostSnapshot producer standing in for real hardware, so
// the exporter can be exercised end-to-end without any accelerator
// present. Grounded on original_source's mock/generator.rs (realistic
// ranges for utilization/power/temperature/frequency) translated into Go
// idiom rather than ported line for line. The original's Apple-only ANE
// and thermal pressure fields are not generated.
package mockgen

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/accelmetrics/all-smi/pkg/model"
)

// Config controls the shape of the fabricated HostSnapshot.
type Config struct {
	Hostname  string
	GPUCount  int
	GPUName   string
	MemoryGiB uint64
	Platform  model.PlatformType
	Rand      *rand.Rand
}

const defaultGPUMemoryGiB = 24

// Generator produces a new synthetic HostSnapshot on each call to
// Snapshot, with smoothly varying values across calls so a human
// watching a dashboard sees plausible motion instead of static numbers.
type Generator struct {
	cfg Config
	rng *rand.Rand

	gpuState []gpuState
}

type gpuState struct {
	uuid        string
	utilization float64
	powerWatts  float64
}

// New builds a Generator from cfg, filling in reasonable defaults for
// anything left zero.
func New(cfg Config) *Generator {
	if cfg.GPUCount <= 0 {
		cfg.GPUCount = 1
	}

	if cfg.GPUName == "" {
		cfg.GPUName = "Mock GPU 24GB"
	}

	if cfg.MemoryGiB == 0 {
		cfg.MemoryGiB = 128
	}

	if cfg.Hostname == "" {
		cfg.Hostname = "mock-host"
	}

	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(1))
	}

	g := &Generator{cfg: cfg, rng: cfg.Rand}

	for i := 0; i < cfg.GPUCount; i++ {
		g.gpuState = append(g.gpuState, gpuState{
			uuid:        fmt.Sprintf("MOCK-GPU-%d", i),
			utilization: 10 + g.rng.Float64()*80,
			powerWatts:  100 + g.rng.Float64()*200,
		})
	}

	return g
}

// Snapshot produces one fabricated HostSnapshot, evolving each GPU's
// utilization/power with a small random walk so consecutive samples are
// correlated the way real telemetry is.
func (g *Generator) Snapshot() *model.HostSnapshot {
	now := time.Now()

	memTotal := g.cfg.MemoryGiB * (1 << 30)

	snap := &model.HostSnapshot{
		Time:     now,
		Hostname: g.cfg.Hostname,
	}

	gpuMemTotal := defaultGPUMemoryGiB * uint64(1<<30)

	for i := range g.gpuState {
		g.walk(&g.gpuState[i])

		util := g.gpuState[i].utilization
		power := g.gpuState[i].powerWatts
		memUsed := uint64(util / 100 * float64(gpuMemTotal))
		temp := clamp(45+util*0.25+(power-200)*0.05, 35, 85)
		freq := clamp(1200+util*6, 1000, 1980)

		snap.GPUs = append(snap.GPUs, model.GpuInfo{
			Snapshot:         model.Snapshot{Time: now, Hostname: g.cfg.Hostname, Instance: g.cfg.Hostname, HostID: g.cfg.Hostname},
			UUID:             g.gpuState[i].uuid,
			Name:             g.cfg.GPUName,
			DeviceType:       model.DeviceTypeGPU,
			Index:            i,
			Utilization:      util,
			MemoryUsed:       memUsed,
			MemoryTotal:      gpuMemTotal,
			Temperature:      temp,
			PowerConsumption: power,
			Frequency:        freq,
		})
	}

	cpuUtil := 5 + g.rng.Float64()*60

	snap.CPUs = append(snap.CPUs, model.CpuInfo{
		Snapshot:     model.Snapshot{Time: now, Hostname: g.cfg.Hostname, Instance: g.cfg.Hostname, HostID: g.cfg.Hostname},
		CPUModel:     "Mock CPU",
		Architecture: "amd64",
		PlatformType: platformOrDefault(g.cfg.Platform),
		SocketCount:  1,
		TotalCores:   32,
		TotalThreads: 64,
		Utilization:  cpuUtil,
	})

	memUsedPct := 20 + g.rng.Float64()*50
	memUsed := uint64(memUsedPct / 100 * float64(memTotal))

	snap.Memory = append(snap.Memory, model.MemoryInfo{
		Snapshot:       model.Snapshot{Time: now, Hostname: g.cfg.Hostname, Instance: g.cfg.Hostname, HostID: g.cfg.Hostname},
		TotalBytes:     memTotal,
		UsedBytes:      memUsed,
		AvailableBytes: memTotal - memUsed,
		Utilization:    memUsedPct,
	})

	snap.Storage = append(snap.Storage, model.StorageInfo{
		Snapshot:       model.Snapshot{Time: now, Hostname: g.cfg.Hostname, Instance: g.cfg.Hostname, HostID: g.cfg.Hostname},
		MountPoint:     "/",
		TotalBytes:     2 << 40,
		AvailableBytes: 1 << 40,
	})

	power := sumPower(g.gpuState)

	snap.Chassis = append(snap.Chassis, model.ChassisInfo{
		Snapshot:        model.Snapshot{Time: now, Hostname: g.cfg.Hostname, Instance: g.cfg.Hostname, HostID: g.cfg.Hostname},
		TotalPowerWatts: &power,
	})

	return snap
}

func (g *Generator) walk(s *gpuState) {
	s.utilization = clamp(s.utilization+(g.rng.Float64()-0.5)*10, 5, 99)
	s.powerWatts = clamp(s.powerWatts+(g.rng.Float64()-0.5)*20, 80, 700)
}

func sumPower(states []gpuState) float64 {
	var total float64

	for _, s := range states {
		total += s.powerWatts
	}

	return total
}

func platformOrDefault(p model.PlatformType) model.PlatformType {
	if p == "" {
		return model.PlatformAmd
	}

	return p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
