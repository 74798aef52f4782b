package model

// Well-known Detail map keys shared across readers, the metric builder and
// the parser. A reader is free to add vendor-specific keys beyond these;
// these are merely the ones other components know to look for.
const (
	DetailDriverVersion    = "Driver Version"
	DetailCUDAVersion      = "CUDA Version"
	DetailLibName          = "lib_name"
	DetailLibVersion       = "lib_version"
	DetailPCIBusID         = "PCI Bus ID"
	DetailPCIeGeneration   = "PCIe Generation"
	DetailPCIeLinkWidth    = "PCIe Link Width"
	DetailThermalPressure  = "thermal_pressure"
	DetailPowerLimitMax    = "power_limit_max"
	DetailMetricsAvailable = "metrics_available"
)

// DeviceStaticInfo is the one-shot discovery result a reader caches for
// the life of the process: everything that does not change between
// samples (name, UUID, topology, firmware, core counts).
type DeviceStaticInfo struct {
	Name   string
	UUID   string
	Detail map[string]string
}
