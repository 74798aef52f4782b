package metrics

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/accelmetrics/all-smi/pkg/model"
)

// RenderHost builds the full Prometheus text body for one HostSnapshot,
// in the fixed emission order: GPU block, CPU block, memory block,
// chassis block, storage block, vendor extension blocks.
func RenderHost(snap *model.HostSnapshot) string {
	b := NewBuilder()

	renderGPUs(b, snap.GPUs)
	renderCPUs(b, snap.CPUs)
	renderMemory(b, snap.Memory)
	renderChassis(b, snap.Chassis)
	renderStorage(b, snap.Storage)
	renderVendorExtensions(b, snap.GPUs)

	return b.Build()
}

// RenderCluster builds the body for a ClusterSnapshot the same way, with
// the same per-block renderers as the single-host body, so both share one
// wire format. Nothing in this module calls it; pkg/aggregator only keeps
// the merged ClusterSnapshot.
func RenderCluster(snap *model.ClusterSnapshot) string {
	b := NewBuilder()

	renderGPUs(b, snap.GPUs)
	renderCPUs(b, snap.CPUs)
	renderMemory(b, snap.Memory)
	renderChassis(b, snap.Chassis)
	renderStorage(b, snap.Storage)
	renderVendorExtensions(b, snap.GPUs)

	return b.Build()
}

func gpuLabels(g model.GpuInfo) []Label {
	return []Label{
		{"gpu", g.Name},
		{"instance", g.Instance},
		{"uuid", g.UUID},
		{"index", strconv.Itoa(g.Index)},
	}
}

func renderGPUs(b *Builder, gpus []model.GpuInfo) {
	if len(gpus) == 0 {
		return
	}

	b.Help(nameGPUUtilization, "GPU utilization percentage").Type(nameGPUUtilization, "gauge")

	for _, g := range gpus {
		b.Metric(nameGPUUtilization, gpuLabels(g), g.Utilization)
	}

	b.Help(nameGPUMemoryUsed, "GPU memory used in bytes").Type(nameGPUMemoryUsed, "gauge")

	for _, g := range gpus {
		b.Metric(nameGPUMemoryUsed, gpuLabels(g), float64(g.MemoryUsed))
	}

	b.Help(nameGPUMemoryTotal, "GPU memory total in bytes").Type(nameGPUMemoryTotal, "gauge")

	for _, g := range gpus {
		b.Metric(nameGPUMemoryTotal, gpuLabels(g), float64(g.MemoryTotal))
	}

	b.Help(nameGPUTemperature, "GPU temperature in Celsius").Type(nameGPUTemperature, "gauge")

	for _, g := range gpus {
		b.Metric(nameGPUTemperature, gpuLabels(g), g.Temperature)
	}

	b.Help(nameGPUPower, "GPU power consumption in watts").Type(nameGPUPower, "gauge")

	for _, g := range gpus {
		b.Metric(nameGPUPower, gpuLabels(g), g.PowerConsumption)
	}

	b.Help(nameGPUFrequency, "GPU frequency in MHz").Type(nameGPUFrequency, "gauge")

	for _, g := range gpus {
		b.Metric(nameGPUFrequency, gpuLabels(g), g.Frequency)
	}

	b.Help(nameGPUInfo, "GPU static information").Type(nameGPUInfo, "info")

	for _, g := range gpus {
		labels := append(gpuLabels(g),
			Label{"driver_version", g.Detail[model.DetailDriverVersion]},
			Label{"cuda_version", g.Detail[model.DetailCUDAVersion]},
			Label{"lib_name", g.Detail[model.DetailLibName]},
			Label{"lib_version", g.Detail[model.DetailLibVersion]},
		)
		b.MetricRaw(nameGPUInfo, labels, "1")
	}

	hasANE := false

	for _, g := range gpus {
		if g.ANEUtilization != nil {
			hasANE = true

			break
		}
	}

	if hasANE {
		b.Help(nameANEUtilization, "Apple Neural Engine utilization in milliwatts").Type(nameANEUtilization, "gauge")

		for _, g := range gpus {
			if g.ANEUtilization != nil {
				b.Metric(nameANEUtilization, gpuLabels(g), *g.ANEUtilization)
			}
		}
	}
}

func cpuLabels(c model.CpuInfo) []Label {
	return []Label{
		{"cpu_model", c.CPUModel},
		{"instance", c.Instance},
		{"hostname", c.Hostname},
		{"index", strconv.Itoa(c.Index)},
		{"architecture", c.Architecture},
		{"platform_type", string(c.PlatformType)},
	}
}

func renderCPUs(b *Builder, cpus []model.CpuInfo) {
	if len(cpus) == 0 {
		return
	}

	b.Help(nameCPUUtilization, "CPU utilization percentage").Type(nameCPUUtilization, "gauge")

	for _, c := range cpus {
		b.Metric(nameCPUUtilization, cpuLabels(c), c.Utilization)
	}

	b.Help(nameCPUInfo, "CPU static information").Type(nameCPUInfo, "info")

	for _, c := range cpus {
		b.MetricRaw(nameCPUInfo, cpuLabels(c), "1")
	}

	b.Help(nameCPUSocketCount, "Physical CPU socket count").Type(nameCPUSocketCount, "gauge")

	for _, c := range cpus {
		b.Metric(nameCPUSocketCount, cpuLabels(c), float64(c.SocketCount))
	}

	b.Help(nameCPUCoreCount, "Total physical core count").Type(nameCPUCoreCount, "gauge")

	for _, c := range cpus {
		b.Metric(nameCPUCoreCount, cpuLabels(c), float64(c.TotalCores))
	}

	b.Help(nameCPUThreadCount, "Total logical thread count").Type(nameCPUThreadCount, "gauge")

	for _, c := range cpus {
		b.Metric(nameCPUThreadCount, cpuLabels(c), float64(c.TotalThreads))
	}

	hasCores := false

	for _, c := range cpus {
		if len(c.PerCoreUtilization) > 0 {
			hasCores = true

			break
		}
	}

	if hasCores {
		b.Help(nameCPUCoreUtil, "Per-core utilization percentage").Type(nameCPUCoreUtil, "gauge")

		for _, c := range cpus {
			for _, core := range c.PerCoreUtilization {
				labels := []Label{
					{"cpu_model", c.CPUModel},
					{"instance", c.Instance},
					{"hostname", c.Hostname},
					{"core_id", strconv.Itoa(core.CoreID)},
					{"core_type", string(core.CoreType)},
				}
				b.Metric(nameCPUCoreUtil, labels, core.Utilization)
			}
		}
	}
}

func memoryLabels(m model.MemoryInfo) []Label {
	return []Label{
		{"instance", m.Instance},
		{"hostname", m.Hostname},
		{"index", strconv.Itoa(m.Index)},
	}
}

func renderMemory(b *Builder, mem []model.MemoryInfo) {
	if len(mem) == 0 {
		return
	}

	b.Help(nameMemoryTotal, "Total system memory in bytes").Type(nameMemoryTotal, "gauge")

	for _, m := range mem {
		b.Metric(nameMemoryTotal, memoryLabels(m), float64(m.TotalBytes))
	}

	b.Help(nameMemoryUsed, "Used system memory in bytes").Type(nameMemoryUsed, "gauge")

	for _, m := range mem {
		b.Metric(nameMemoryUsed, memoryLabels(m), float64(m.UsedBytes))
	}

	b.Help(nameMemoryAvailable, "Available system memory in bytes").Type(nameMemoryAvailable, "gauge")

	for _, m := range mem {
		b.Metric(nameMemoryAvailable, memoryLabels(m), float64(m.AvailableBytes))
	}

	b.Help(nameMemoryUtil, "Memory utilization percentage").Type(nameMemoryUtil, "gauge")

	for _, m := range mem {
		b.Metric(nameMemoryUtil, memoryLabels(m), m.Utilization)
	}

	hasSwap := false

	for _, m := range mem {
		if m.SwapTotalBytes > 0 {
			hasSwap = true

			break
		}
	}

	if hasSwap {
		b.Help(nameMemorySwapTotal, "Total swap in bytes").Type(nameMemorySwapTotal, "gauge")

		for _, m := range mem {
			b.Metric(nameMemorySwapTotal, memoryLabels(m), float64(m.SwapTotalBytes))
		}

		b.Help(nameMemorySwapUsed, "Used swap in bytes").Type(nameMemorySwapUsed, "gauge")

		for _, m := range mem {
			b.Metric(nameMemorySwapUsed, memoryLabels(m), float64(m.SwapUsedBytes))
		}
	}
}

func storageLabels(s model.StorageInfo) []Label {
	return []Label{
		{"instance", s.Instance},
		{"hostname", s.Hostname},
		{"mount_point", s.MountPoint},
		{"index", strconv.Itoa(s.Index)},
	}
}

func renderStorage(b *Builder, disks []model.StorageInfo) {
	if len(disks) == 0 {
		return
	}

	b.Help(nameStorageTotal, "Total storage capacity in bytes").Type(nameStorageTotal, "gauge")

	for _, s := range disks {
		b.Metric(nameStorageTotal, storageLabels(s), float64(s.TotalBytes))
	}

	b.Help(nameStorageAvailable, "Available storage capacity in bytes").Type(nameStorageAvailable, "gauge")

	for _, s := range disks {
		b.Metric(nameStorageAvailable, storageLabels(s), float64(s.AvailableBytes))
	}
}

// chassisFlags is a single-pass presence scan over chassis entries, so a
// field absent from every entry emits no HELP/TYPE pair at all, ported
// from the presence-flags pattern the original exporter's chassis metric
// module used to avoid advertising metrics with zero sample lines.
type chassisFlags struct {
	power, thermal, cpuPower, gpuPower, anePower, inlet, outlet, fans bool
}

func scanChassis(chassis []model.ChassisInfo) chassisFlags {
	var f chassisFlags

	for _, c := range chassis {
		f.power = f.power || c.TotalPowerWatts != nil
		f.thermal = f.thermal || c.ThermalPressure != nil
		f.inlet = f.inlet || c.InletTemperature != nil
		f.outlet = f.outlet || c.OutletTemperature != nil
		f.fans = f.fans || len(c.FanSpeeds) > 0

		if c.Detail != nil {
			f.cpuPower = f.cpuPower || c.Detail.CPUPowerWatts != nil
			f.gpuPower = f.gpuPower || c.Detail.GPUPowerWatts != nil
			f.anePower = f.anePower || c.Detail.ANEPowerWatts != nil
		}
	}

	return f
}

func chassisLabels(c model.ChassisInfo) []Label {
	return []Label{
		{"hostname", c.Hostname},
		{"instance", c.Instance},
	}
}

func renderChassis(b *Builder, chassis []model.ChassisInfo) {
	if len(chassis) == 0 {
		return
	}

	flags := scanChassis(chassis)

	if flags.power {
		b.Help(nameChassisPower, "Total chassis power consumption in watts (CPU+GPU+ANE)").Type(nameChassisPower, "gauge")

		for _, c := range chassis {
			if c.TotalPowerWatts != nil {
				b.Metric(nameChassisPower, chassisLabels(c), *c.TotalPowerWatts)
			}
		}
	}

	if flags.thermal {
		b.Help(nameChassisThermal, "Thermal pressure level (Apple Silicon)").Type(nameChassisThermal, "gauge")

		for _, c := range chassis {
			if c.ThermalPressure != nil {
				labels := append(chassisLabels(c), Label{"level", *c.ThermalPressure})
				b.MetricRaw(nameChassisThermal, labels, "1")
			}
		}
	}

	if flags.cpuPower {
		b.Help(nameChassisCPUPower, "CPU power consumption in watts").Type(nameChassisCPUPower, "gauge")

		for _, c := range chassis {
			if c.Detail != nil && c.Detail.CPUPowerWatts != nil {
				b.Metric(nameChassisCPUPower, chassisLabels(c), *c.Detail.CPUPowerWatts)
			}
		}
	}

	if flags.gpuPower {
		b.Help(nameChassisGPUPower, "GPU power consumption in watts").Type(nameChassisGPUPower, "gauge")

		for _, c := range chassis {
			if c.Detail != nil && c.Detail.GPUPowerWatts != nil {
				b.Metric(nameChassisGPUPower, chassisLabels(c), *c.Detail.GPUPowerWatts)
			}
		}
	}

	if flags.anePower {
		b.Help(nameChassisANEPower, "ANE power consumption in watts").Type(nameChassisANEPower, "gauge")

		for _, c := range chassis {
			if c.Detail != nil && c.Detail.ANEPowerWatts != nil {
				b.Metric(nameChassisANEPower, chassisLabels(c), *c.Detail.ANEPowerWatts)
			}
		}
	}

	if flags.inlet {
		b.Help(nameChassisInlet, "Inlet air temperature in Celsius").Type(nameChassisInlet, "gauge")

		for _, c := range chassis {
			if c.InletTemperature != nil {
				b.Metric(nameChassisInlet, chassisLabels(c), *c.InletTemperature)
			}
		}
	}

	if flags.outlet {
		b.Help(nameChassisOutlet, "Outlet air temperature in Celsius").Type(nameChassisOutlet, "gauge")

		for _, c := range chassis {
			if c.OutletTemperature != nil {
				b.Metric(nameChassisOutlet, chassisLabels(c), *c.OutletTemperature)
			}
		}
	}

	if flags.fans {
		b.Help(nameChassisFanSpeed, "Fan speed in RPM").Type(nameChassisFanSpeed, "gauge")

		for _, c := range chassis {
			for _, fan := range c.FanSpeeds {
				labels := append(chassisLabels(c),
					Label{"fan_id", strconv.Itoa(fan.ID)},
					Label{"fan_name", fan.Name},
				)
				b.Metric(nameChassisFanSpeed, labels, float64(fan.SpeedRPM))
			}
		}
	}
}

// renderVendorExtensions emits one all_smi_<vendor>_info line per NPU
// device and per device whose Detail map sets metrics_available,
// covering the NPU-family vendors (Tenstorrent, Furiosa, Rebellions) and
// Google TPU, which have no dedicated numeric metric catalog of their own
// and instead surface their native telemetry through the generic Detail
// extension slot. All of a device's Detail entries become labels.
func renderVendorExtensions(b *Builder, gpus []model.GpuInfo) {
	byVendorName := map[string][]model.GpuInfo{}

	for _, g := range gpus {
		if g.DeviceType != model.DeviceTypeNPU && g.Detail[model.DetailMetricsAvailable] == "" {
			continue
		}

		vendor := vendorSlugFromName(g.Name)
		byVendorName[vendor] = append(byVendorName[vendor], g)
	}

	vendors := make([]string, 0, len(byVendorName))
	for v := range byVendorName {
		vendors = append(vendors, v)
	}

	sort.Strings(vendors)

	for _, vendor := range vendors {
		name := fmt.Sprintf("all_smi_%s_info", vendor)
		b.Help(name, fmt.Sprintf("%s vendor-specific device information", vendor)).Type(name, "info")

		for _, g := range byVendorName[vendor] {
			labels := append(gpuLabels(g), detailLabels(g.Detail)...)
			b.MetricRaw(name, labels, "1")
		}
	}
}

func vendorSlugFromName(name string) string {
	switch {
	case containsFold(name, "Tenstorrent"):
		return "tenstorrent"
	case containsFold(name, "Furiosa"):
		return "furiosa"
	case containsFold(name, "Rebellions"), containsFold(name, "ATOM"):
		return "rebellions"
	case containsFold(name, "TPU"):
		return "tpu"
	case containsFold(name, "Gaudi"):
		return "gaudi"
	default:
		return "npu"
	}
}

func containsFold(haystack, needle string) bool {
	hl, nl := len(haystack), len(needle)
	if nl == 0 || nl > hl {
		return nl == 0
	}

	for i := 0; i+nl <= hl; i++ {
		if equalFold(haystack[i:i+nl], needle) {
			return true
		}
	}

	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]

		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}

		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}

		if ca != cb {
			return false
		}
	}

	return true
}

func detailLabels(detail map[string]string) []Label {
	keys := make([]string, 0, len(detail))
	for k := range detail {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	labels := make([]Label, 0, len(keys))

	for _, k := range keys {
		labels = append(labels, Label{sanitizeLabelKey(k), detail[k]})
	}

	return labels
}

// sanitizeLabelKey converts a human-facing Detail key ("PCI Bus ID") into
// a valid Prometheus label name (pci_bus_id).
func sanitizeLabelKey(k string) string {
	out := make([]byte, 0, len(k))

	for i := 0; i < len(k); i++ {
		c := k[i]

		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
			out = append(out, c)
		case c >= 'A' && c <= 'Z':
			out = append(out, c+'a'-'A')
		default:
			if len(out) > 0 && out[len(out)-1] != '_' {
				out = append(out, '_')
			}
		}
	}

	for len(out) > 0 && out[len(out)-1] == '_' {
		out = out[:len(out)-1]
	}

	if len(out) == 0 {
		return "detail"
	}

	return string(out)
}
