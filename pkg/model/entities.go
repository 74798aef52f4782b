// Package model implements the shared entity types produced by vendor
// readers and the wire-format parser, and consumed by everything else:
// the metric builder, the exporter, the remote aggregator and the
// history/aggregation layer.
package model

import (
	"sort"
	"time"
)

// Unavailable is the sentinel used for numeric fields that are reserved
// for "unknown", as opposed to zero meaning "measured zero". Label-based
// absence is expressed by omitting the field, never by an empty string.
const Unavailable = -1

// DeviceType enumerates the two accelerator classes the system reports.
type DeviceType string

// Device type values.
const (
	DeviceTypeGPU DeviceType = "GPU"
	DeviceTypeNPU DeviceType = "NPU"
)

// PlatformType enumerates recognized CPU platforms.
type PlatformType string

// Platform type values.
const (
	PlatformIntel        PlatformType = "Intel"
	PlatformAmd          PlatformType = "Amd"
	PlatformArm          PlatformType = "Arm"
	PlatformAppleSilicon PlatformType = "AppleSilicon"
	PlatformOther        PlatformType = "Other"
)

// CoreType enumerates per-core classes for heterogeneous CPUs (Apple P/E
// clusters; everything else reports Standard).
type CoreType string

// Core type values.
const (
	CorePerformance CoreType = "P"
	CoreEfficiency  CoreType = "E"
	CoreStandard    CoreType = "Standard"
)

// Snapshot carries the fields every device-scoped entity has in common.
type Snapshot struct {
	Time     time.Time `json:"time"`
	Hostname string    `json:"hostname"`
	// Instance is the display key for the exporter endpoint that produced
	// this entity, usually "host:port".
	Instance string `json:"instance"`
	// HostID is a stable identifier used for cross-tick deduplication.
	// For local readers it equals Hostname; for scraped entities it is the
	// endpoint URL the aggregator dialed, so renames of the reported
	// hostname never split one physical host into two cluster rows.
	HostID string `json:"host_id"`
}

// GpuInfo describes one physical or logical accelerator device, NPUs
// included (DeviceType discriminates).
type GpuInfo struct {
	Snapshot

	// UUID is stable across restarts for the same physical device. AMD
	// devices synthesize "GPU-<pci-bdf>"; Apple Silicon always reports the
	// fixed "AppleSiliconGPU"; vendors without a native UUID synthesize one
	// deterministically from stable identifying fields.
	UUID       string     `json:"uuid"`
	Name       string     `json:"name"`
	DeviceType DeviceType `json:"device_type"`
	Index      int        `json:"index"`

	// Utilization is a percentage in [0,100], or Unavailable.
	Utilization float64 `json:"utilization"`
	// MemoryUsed/MemoryTotal are in bytes. MemoryTotal == 0 means unknown;
	// MemoryUsed must never exceed MemoryTotal when both are known.
	MemoryUsed  uint64 `json:"memory_used"`
	MemoryTotal uint64 `json:"memory_total"`
	// Temperature is in degrees Celsius.
	Temperature float64 `json:"temperature"`
	// Frequency is in MHz.
	Frequency float64 `json:"frequency"`
	// PowerConsumption is in Watts, or Unavailable.
	PowerConsumption float64 `json:"power_consumption"`

	// ANEUtilization is in milliwatts; Apple Silicon only.
	ANEUtilization *float64 `json:"ane_utilization,omitempty"`
	// DLAUtilization and TensorcoreUtilization are vendor-specific
	// dedicated-engine utilizations, percentage, when exposed.
	DLAUtilization        *float64 `json:"dla_utilization,omitempty"`
	TensorcoreUtilization *float64 `json:"tensorcore_utilization,omitempty"`
	// GPUCoreCount is the number of shader/compute cores, when the vendor
	// reports it statically.
	GPUCoreCount *int `json:"gpu_core_count,omitempty"`

	// Detail is the free-form extension slot. See the Detail* constants for
	// well-known keys.
	Detail map[string]string `json:"detail,omitempty"`
}

// Validate checks the invariants GpuInfo must satisfy regardless of which
// reader produced it. It never mutates the receiver.
func (g GpuInfo) Validate() error {
	if g.MemoryTotal != 0 && g.MemoryUsed > g.MemoryTotal {
		return ErrMemoryUsedExceedsTotal
	}

	return nil
}

// SocketInfo describes one physical CPU socket.
type SocketInfo struct {
	SocketID    int     `json:"socket_id"`
	Utilization float64 `json:"utilization"`
	Temperature float64 `json:"temperature"`
}

// AppleSiliconCPUInfo carries the P/E-core and ANE fields unique to Apple
// Silicon hosts.
type AppleSiliconCPUInfo struct {
	PCoreCount       int     `json:"p_core_count"`
	ECoreCount       int     `json:"e_core_count"`
	PCoreUtilization float64 `json:"p_core_utilization"`
	ECoreUtilization float64 `json:"e_core_utilization"`
	GPUCoreCount     int     `json:"gpu_core_count"`
	// ANEOpsPerSecond is the Apple Neural Engine's reported ops/s, when
	// available from the SMC/IOReport session.
	ANEOpsPerSecond float64 `json:"ane_ops_per_second"`
}

// CoreUtilization reports one logical core's instantaneous utilization.
type CoreUtilization struct {
	CoreID      int      `json:"core_id"`
	CoreType    CoreType `json:"core_type"`
	Utilization float64  `json:"utilization"`
}

// CpuInfo describes the host's processor complex.
type CpuInfo struct {
	Snapshot

	CPUModel         string       `json:"cpu_model"`
	Architecture     string       `json:"architecture"`
	PlatformType     PlatformType `json:"platform_type"`
	Index            int          `json:"index"`
	SocketCount      int          `json:"socket_count"`
	TotalCores       int          `json:"total_cores"`
	TotalThreads     int          `json:"total_threads"`
	BaseFrequencyMHz float64      `json:"base_frequency_mhz"`
	MaxFrequencyMHz  float64      `json:"max_frequency_mhz"`
	CacheSizeMB      float64      `json:"cache_size_mb"`
	Utilization      float64      `json:"utilization"`

	Temperature      *float64 `json:"temperature,omitempty"`
	PowerConsumption *float64 `json:"power_consumption,omitempty"`

	PerSocketInfo       []SocketInfo         `json:"per_socket_info,omitempty"`
	AppleSiliconInfo    *AppleSiliconCPUInfo `json:"apple_silicon_info,omitempty"`
	PerCoreUtilization  []CoreUtilization    `json:"per_core_utilization,omitempty"`
}

// MemoryInfo describes the host's main memory and swap.
type MemoryInfo struct {
	Snapshot

	Index int `json:"index"`

	TotalBytes     uint64 `json:"total_bytes"`
	UsedBytes      uint64 `json:"used_bytes"`
	AvailableBytes uint64 `json:"available_bytes"`
	FreeBytes      uint64 `json:"free_bytes"`
	BuffersBytes   uint64 `json:"buffers_bytes"`
	CachedBytes    uint64 `json:"cached_bytes"`

	SwapTotalBytes uint64 `json:"swap_total_bytes"`
	SwapUsedBytes  uint64 `json:"swap_used_bytes"`
	SwapFreeBytes  uint64 `json:"swap_free_bytes"`

	Utilization float64 `json:"utilization"`
}

// StorageInfo describes one mounted filesystem.
type StorageInfo struct {
	Snapshot

	MountPoint     string `json:"mount_point"`
	TotalBytes     uint64 `json:"total_bytes"`
	AvailableBytes uint64 `json:"available_bytes"`
	Index          int    `json:"index"`
}

// FanSpeed describes one chassis fan.
type FanSpeed struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	SpeedRPM int    `json:"speed_rpm"`
}

// ChassisDetail carries the optional power-rail breakdown.
type ChassisDetail struct {
	CPUPowerWatts *float64 `json:"cpu_power_watts,omitempty"`
	GPUPowerWatts *float64 `json:"gpu_power_watts,omitempty"`
	ANEPowerWatts *float64 `json:"ane_power_watts,omitempty"`
}

// ChassisInfo describes node-scope sensors: combined power, thermal
// pressure, inlet/outlet temperatures and fans.
type ChassisInfo struct {
	Snapshot

	TotalPowerWatts    *float64 `json:"total_power_watts,omitempty"`
	ThermalPressure    *string  `json:"thermal_pressure,omitempty"`
	InletTemperature   *float64 `json:"inlet_temperature,omitempty"`
	OutletTemperature  *float64 `json:"outlet_temperature,omitempty"`
	FanSpeeds          []FanSpeed     `json:"fan_speeds,omitempty"`
	Detail             *ChassisDetail `json:"detail,omitempty"`
}

// ProcessInfo describes one process that is using, or attributed to, an
// accelerator device.
type ProcessInfo struct {
	Snapshot

	DeviceID   int    `json:"device_id"`
	DeviceUUID string `json:"device_uuid"`

	PID         int    `json:"pid"`
	PPID        int    `json:"ppid"`
	ProcessName string `json:"process_name"`
	// ContainerPID is PID as seen from its own PID namespace, when it
	// differs from the host PID above (0 when not running containerized
	// or when the mapping could not be resolved).
	ContainerPID int `json:"container_pid,omitempty"`

	UsedMemory uint64 `json:"used_memory"`

	CPUPercent   float64 `json:"cpu_percent"`
	MemoryRSS    uint64  `json:"memory_rss"`
	MemoryVMS    uint64  `json:"memory_vms"`
	MemoryPercent float64 `json:"memory_percent"`

	User      string    `json:"user"`
	State     string    `json:"state"`
	StartTime time.Time `json:"start_time"`
	CPUTime   float64   `json:"cpu_time"`
	Command   string    `json:"command"`
	Threads   int       `json:"threads"`

	UsesGPU         bool    `json:"uses_gpu"`
	GPUUtilization  float64 `json:"gpu_utilization"`

	Priority  int `json:"priority"`
	NiceValue int `json:"nice_value"`
}

// ConnectionStatus tracks the remote aggregator's view of one scrape
// endpoint's health across ticks.
type ConnectionStatus struct {
	HostID          string    `json:"host_id"`
	Endpoint        string    `json:"endpoint"`
	LastSuccessTime time.Time `json:"last_success_time"`
	LastFailureTime time.Time `json:"last_failure_time"`
	LastError       string    `json:"last_error,omitempty"`
	// ActualHostname is learned from the scraped "instance" label and is
	// preserved across failures for UI stability.
	ActualHostname string `json:"actual_hostname,omitempty"`
}

// HostSnapshot is one atomic measurement of every local device, produced
// by the Collector Facade (C3).
type HostSnapshot struct {
	Time     time.Time `json:"time"`
	Hostname string    `json:"hostname"`

	GPUs      []GpuInfo     `json:"gpus"`
	CPUs      []CpuInfo     `json:"cpus"`
	Memory    []MemoryInfo  `json:"memory"`
	Storage   []StorageInfo `json:"storage"`
	Chassis   []ChassisInfo `json:"chassis"`
	Processes []ProcessInfo `json:"processes"`
}

// ClusterSnapshot is the Remote Aggregator's merged view across every
// scraped exporter endpoint.
type ClusterSnapshot struct {
	Time time.Time `json:"time"`

	GPUs      []GpuInfo     `json:"gpus"`
	CPUs      []CpuInfo     `json:"cpus"`
	Memory    []MemoryInfo  `json:"memory"`
	Storage   []StorageInfo `json:"storage"`
	Chassis   []ChassisInfo `json:"chassis"`
	Processes []ProcessInfo `json:"processes"`

	Connections map[string]ConnectionStatus `json:"connections"`
}

// Tabs returns the sorted list of known hostnames, "All" first, derived
// from the union of known hosts including currently-failing ones.
func (c *ClusterSnapshot) Tabs() []string {
	seen := make(map[string]struct{}, len(c.Connections))

	for _, conn := range c.Connections {
		name := conn.ActualHostname
		if name == "" {
			name = conn.HostID
		}

		seen[name] = struct{}{}
	}

	tabs := make([]string, 0, len(seen)+1)
	tabs = append(tabs, "All")

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	sort.Strings(names)
	tabs = append(tabs, names...)

	return tabs
}
