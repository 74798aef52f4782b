package metrics

// Metric names share the all_smi_ prefix and follow
// all_smi_<subject>_<dimension>_<unit>, per spec's stable-naming rule.
const (
	nameGPUUtilization  = "all_smi_gpu_utilization"
	nameGPUMemoryUsed   = "all_smi_gpu_memory_used_bytes"
	nameGPUMemoryTotal  = "all_smi_gpu_memory_total_bytes"
	nameGPUTemperature  = "all_smi_gpu_temperature_celsius"
	nameGPUPower        = "all_smi_gpu_power_consumption_watts"
	nameGPUFrequency    = "all_smi_gpu_frequency_mhz"
	nameGPUInfo         = "all_smi_gpu_info"
	nameANEUtilization  = "all_smi_ane_utilization"

	nameCPUUtilization = "all_smi_cpu_utilization"
	nameCPUInfo        = "all_smi_cpu_info"
	nameCPUSocketCount = "all_smi_cpu_socket_count"
	nameCPUCoreCount   = "all_smi_cpu_core_count"
	nameCPUThreadCount = "all_smi_cpu_thread_count"
	nameCPUCoreUtil    = "all_smi_cpu_core_utilization"

	nameMemoryTotal     = "all_smi_memory_total_bytes"
	nameMemoryUsed      = "all_smi_memory_used_bytes"
	nameMemoryAvailable = "all_smi_memory_available_bytes"
	nameMemoryUtil      = "all_smi_memory_utilization"
	nameMemorySwapTotal = "all_smi_memory_swap_total_bytes"
	nameMemorySwapUsed  = "all_smi_memory_swap_used_bytes"

	nameStorageTotal     = "all_smi_storage_total_bytes"
	nameStorageAvailable = "all_smi_storage_available_bytes"

	nameChassisPower     = "all_smi_chassis_power_watts"
	nameChassisThermal   = "all_smi_chassis_thermal_pressure_info"
	nameChassisCPUPower  = "all_smi_chassis_cpu_power_watts"
	nameChassisGPUPower  = "all_smi_chassis_gpu_power_watts"
	nameChassisANEPower  = "all_smi_chassis_ane_power_watts"
	nameChassisInlet     = "all_smi_chassis_inlet_temperature_celsius"
	nameChassisOutlet    = "all_smi_chassis_outlet_temperature_celsius"
	nameChassisFanSpeed  = "all_smi_chassis_fan_speed_rpm"
)
