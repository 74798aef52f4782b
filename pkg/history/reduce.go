package history

import (
	"math"
	"time"

	"github.com/accelmetrics/all-smi/pkg/model"
)

// ClusterMetrics is one tick's cluster-wide reduction, the unit the Ring
// stores.
type ClusterMetrics struct {
	Time time.Time

	GPU    ClusterGPUMetrics
	CPU    ClusterCPUMetrics
	Memory ClusterMemoryMetrics
}

// ClusterGPUMetrics summarizes every GPU across the cluster for one tick.
type ClusterGPUMetrics struct {
	Count             int
	MeanUtilization   float64
	MeanTemperature   float64
	TemperatureStddev float64
	MeanMemoryPercent float64
}

// ClusterCPUMetrics summarizes every CPU across the cluster for one tick.
type ClusterCPUMetrics struct {
	Count           int
	MeanUtilization float64
}

// ClusterMemoryMetrics summarizes every memory entity across the cluster
// for one tick.
type ClusterMemoryMetrics struct {
	Count           int
	MeanUtilization float64
}

// HostMetrics is the per-host grouping of the same three reductions,
// scoped to one host's devices rather than the whole cluster.
type HostMetrics struct {
	Hostname string

	GPUClusterMetrics    ClusterGPUMetrics
	CPUClusterMetrics    ClusterCPUMetrics
	MemoryClusterMetrics ClusterMemoryMetrics
}

// Reduce computes the cluster-wide ClusterMetrics for one ClusterSnapshot.
func Reduce(snap *model.ClusterSnapshot, at time.Time) ClusterMetrics {
	return ClusterMetrics{
		Time:   at,
		GPU:    reduceGPUs(snap.GPUs),
		CPU:    reduceCPUs(snap.CPUs),
		Memory: reduceMemory(snap.Memory),
	}
}

// ReduceByHost groups a ClusterSnapshot's entities by hostname and
// reduces each group independently.
func ReduceByHost(snap *model.ClusterSnapshot) []HostMetrics {
	hostnames := map[string]struct{}{}

	gpusByHost := map[string][]model.GpuInfo{}
	for _, g := range snap.GPUs {
		gpusByHost[g.Hostname] = append(gpusByHost[g.Hostname], g)
		hostnames[g.Hostname] = struct{}{}
	}

	cpusByHost := map[string][]model.CpuInfo{}
	for _, c := range snap.CPUs {
		cpusByHost[c.Hostname] = append(cpusByHost[c.Hostname], c)
		hostnames[c.Hostname] = struct{}{}
	}

	memByHost := map[string][]model.MemoryInfo{}
	for _, m := range snap.Memory {
		memByHost[m.Hostname] = append(memByHost[m.Hostname], m)
		hostnames[m.Hostname] = struct{}{}
	}

	out := make([]HostMetrics, 0, len(hostnames))

	for host := range hostnames {
		out = append(out, HostMetrics{
			Hostname:             host,
			GPUClusterMetrics:    reduceGPUs(gpusByHost[host]),
			CPUClusterMetrics:    reduceCPUs(cpusByHost[host]),
			MemoryClusterMetrics: reduceMemory(memByHost[host]),
		})
	}

	return out
}

func reduceGPUs(gpus []model.GpuInfo) ClusterGPUMetrics {
	if len(gpus) == 0 {
		return ClusterGPUMetrics{}
	}

	var sumUtil, sumTemp, sumMemPct float64

	temps := make([]float64, 0, len(gpus))

	for _, g := range gpus {
		sumUtil += g.Utilization
		sumTemp += g.Temperature
		temps = append(temps, g.Temperature)

		if g.MemoryTotal > 0 {
			sumMemPct += float64(g.MemoryUsed) / float64(g.MemoryTotal) * 100
		}
	}

	n := float64(len(gpus))

	return ClusterGPUMetrics{
		Count:             len(gpus),
		MeanUtilization:   sumUtil / n,
		MeanTemperature:   sumTemp / n,
		TemperatureStddev: sampleStddev(temps, sumTemp/n),
		MeanMemoryPercent: sumMemPct / n,
	}
}

func reduceCPUs(cpus []model.CpuInfo) ClusterCPUMetrics {
	if len(cpus) == 0 {
		return ClusterCPUMetrics{}
	}

	var sum float64

	for _, c := range cpus {
		sum += c.Utilization
	}

	return ClusterCPUMetrics{Count: len(cpus), MeanUtilization: sum / float64(len(cpus))}
}

func reduceMemory(mem []model.MemoryInfo) ClusterMemoryMetrics {
	if len(mem) == 0 {
		return ClusterMemoryMetrics{}
	}

	var sum float64

	for _, m := range mem {
		sum += m.Utilization
	}

	return ClusterMemoryMetrics{Count: len(mem), MeanUtilization: sum / float64(len(mem))}
}

// sampleStddev computes the sample standard deviation (n-1 denominator),
// guarded per spec by n>1; a single sample has no defined variance and
// reports 0.
func sampleStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n <= 1 {
		return 0
	}

	var sumSq float64

	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}

	return math.Sqrt(sumSq / float64(n-1))
}
