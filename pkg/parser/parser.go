// Package parser implements the Parser (C7): a line-oriented decoder
// that turns a scraped Prometheus text body back into typed device
// entities, the inverse of pkg/metrics's Builder.
package parser

import (
	"bufio"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/accelmetrics/all-smi/pkg/model"
)

// maxBodyBytes caps the input accepted before any regex is applied, so
// an adversarial endpoint cannot force unbounded work out of the line
// scanner regardless of the regex's own safety.
const maxBodyBytes = 10 << 20 // ~10MB, matching spec's DFA size cap

// lineRE is the one regex the parser is keyed off: metric subname,
// brace-enclosed label list, trailing numeric value. RE2 (Go's regexp
// engine) has no catastrophic-backtracking failure mode, but the line
// is still length-capped below before being matched.
var lineRE = regexp.MustCompile(`^all_smi_([^{]+)\{([^}]+)\} ([\d.]+)$`)

const maxLineBytes = 64 << 10

// Entities is everything one scraped endpoint's body decoded into.
type Entities struct {
	GPUs    []model.GpuInfo
	CPUs    []model.CpuInfo
	Memory  []model.MemoryInfo
	Storage []model.StorageInfo

	// ActualHostname is the instance label observed on the first matched
	// line, used by the post-pass to rewrite every entity's Hostname.
	ActualHostname string
}

type gpuKey = string

type cpuKey struct {
	instance string
	index    string
}

type storageKey struct {
	instance   string
	mountPoint string
}

// Parse decodes body into typed entities. Unknown metric-name prefixes
// are ignored for forward compatibility; malformed lines are skipped
// rather than aborting the whole body.
func Parse(body string) (*Entities, error) {
	if len(body) > maxBodyBytes {
		body = body[:maxBodyBytes]
	}

	gpus := map[gpuKey]*model.GpuInfo{}
	gpuOrder := []gpuKey{}

	cpus := map[cpuKey]*model.CpuInfo{}
	cpuOrder := []cpuKey{}

	mems := map[string]*model.MemoryInfo{}
	memOrder := []string{}

	disks := map[storageKey]*model.StorageInfo{}
	diskOrder := []storageKey{}

	var actualHostname string

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 4096), maxBodyBytes+1)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if len(line) > maxLineBytes {
			continue
		}

		m := lineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		subname, rawLabels, rawValue := m[1], m[2], m[3]
		labels := parseLabels(rawLabels)
		value := saturatingParseFloat(rawValue)

		if actualHostname == "" {
			if inst, ok := labels["instance"]; ok {
				actualHostname = inst
			}
		}

		switch {
		case subname == "gpu_info", strings.HasPrefix(subname, "gpu_"), subname == "ane_utilization":
			applyGPU(gpus, &gpuOrder, subname, labels, value)
		case strings.HasPrefix(subname, "cpu_"):
			applyCPU(cpus, &cpuOrder, subname, labels, value)
		case strings.HasPrefix(subname, "memory_"):
			applyMemory(mems, &memOrder, subname, labels, value)
		case strings.HasPrefix(subname, "storage_"):
			applyStorage(disks, &diskOrder, subname, labels, value)
		}
	}

	out := &Entities{ActualHostname: actualHostname}

	for _, k := range gpuOrder {
		out.GPUs = append(out.GPUs, *gpus[k])
	}

	for _, k := range cpuOrder {
		out.CPUs = append(out.CPUs, *cpus[k])
	}

	for _, k := range memOrder {
		out.Memory = append(out.Memory, *mems[k])
	}

	for _, k := range diskOrder {
		out.Storage = append(out.Storage, *disks[k])
	}

	if actualHostname != "" {
		rewriteHostnames(out, actualHostname)
	}

	return out, nil
}

func rewriteHostnames(e *Entities, hostname string) {
	for i := range e.GPUs {
		e.GPUs[i].Hostname = hostname
	}

	for i := range e.CPUs {
		e.CPUs[i].Hostname = hostname
	}

	for i := range e.Memory {
		e.Memory[i].Hostname = hostname
	}

	for i := range e.Storage {
		e.Storage[i].Hostname = hostname
	}
}

func applyGPU(acc map[gpuKey]*model.GpuInfo, order *[]gpuKey, subname string, labels map[string]string, value float64) {
	uuid := labels["uuid"]
	if uuid == "" {
		return
	}

	g, ok := acc[uuid]
	if !ok {
		g = &model.GpuInfo{UUID: uuid}
		g.Instance = labels["instance"]
		g.Name = labels["gpu"]
		g.Index = int(saturatingInt(labels["index"]))
		g.DeviceType = model.DeviceTypeGPU
		acc[uuid] = g
		*order = append(*order, uuid)
	}

	switch subname {
	case "gpu_utilization":
		g.Utilization = value
	case "gpu_memory_used_bytes":
		g.MemoryUsed = saturatingUint(value)
	case "gpu_memory_total_bytes":
		g.MemoryTotal = saturatingUint(value)
	case "gpu_temperature_celsius":
		g.Temperature = value
	case "gpu_power_consumption_watts":
		g.PowerConsumption = value
	case "gpu_frequency_mhz":
		g.Frequency = value
	case "gpu_info":
		g.Detail = mergeDetail(g.Detail, map[string]string{
			model.DetailDriverVersion: labels["driver_version"],
			model.DetailCUDAVersion:   labels["cuda_version"],
			model.DetailLibName:       labels["lib_name"],
			model.DetailLibVersion:    labels["lib_version"],
		})
	case "ane_utilization":
		ane := value
		g.ANEUtilization = &ane
	}
}

func applyCPU(acc map[cpuKey]*model.CpuInfo, order *[]cpuKey, subname string, labels map[string]string, value float64) {
	key := cpuKey{instance: labels["instance"], index: labels["index"]}

	c, ok := acc[key]
	if !ok {
		c = &model.CpuInfo{}
		c.Instance = labels["instance"]
		c.Hostname = labels["hostname"]
		c.CPUModel = labels["cpu_model"]
		c.Architecture = labels["architecture"]
		c.PlatformType = model.PlatformType(labels["platform_type"])
		c.Index = int(saturatingInt(labels["index"]))
		acc[key] = c
		*order = append(*order, key)
	}

	switch {
	case subname == "cpu_utilization":
		c.Utilization = value
	case subname == "cpu_socket_count":
		c.SocketCount = int(saturatingInt2(value))
	case subname == "cpu_core_count":
		c.TotalCores = int(saturatingInt2(value))
	case subname == "cpu_thread_count":
		c.TotalThreads = int(saturatingInt2(value))
	case subname == "cpu_core_utilization":
		c.PerCoreUtilization = append(c.PerCoreUtilization, model.CoreUtilization{
			CoreID:      int(saturatingInt(labels["core_id"])),
			CoreType:    model.CoreType(labels["core_type"]),
			Utilization: value,
		})
	}
}

func applyMemory(acc map[string]*model.MemoryInfo, order *[]string, subname string, labels map[string]string, value float64) {
	key := labels["instance"] + "|" + labels["index"]

	m, ok := acc[key]
	if !ok {
		m = &model.MemoryInfo{}
		m.Instance = labels["instance"]
		m.Hostname = labels["hostname"]
		m.Index = int(saturatingInt(labels["index"]))
		acc[key] = m
		*order = append(*order, key)
	}

	switch subname {
	case "memory_total_bytes":
		m.TotalBytes = saturatingUint(value)
	case "memory_used_bytes":
		m.UsedBytes = saturatingUint(value)
	case "memory_available_bytes":
		m.AvailableBytes = saturatingUint(value)
	case "memory_utilization":
		m.Utilization = value
	case "memory_swap_total_bytes":
		m.SwapTotalBytes = saturatingUint(value)
	case "memory_swap_used_bytes":
		m.SwapUsedBytes = saturatingUint(value)
	}
}

func applyStorage(acc map[storageKey]*model.StorageInfo, order *[]storageKey, subname string, labels map[string]string, value float64) {
	key := storageKey{instance: labels["instance"], mountPoint: labels["mount_point"]}

	s, ok := acc[key]
	if !ok {
		s = &model.StorageInfo{}
		s.Instance = labels["instance"]
		s.Hostname = labels["hostname"]
		s.MountPoint = labels["mount_point"]
		s.Index = int(saturatingInt(labels["index"]))
		acc[key] = s
		*order = append(*order, key)
	}

	switch subname {
	case "storage_total_bytes":
		s.TotalBytes = saturatingUint(value)
	case "storage_available_bytes":
		s.AvailableBytes = saturatingUint(value)
	}
}

func mergeDetail(dst map[string]string, src map[string]string) map[string]string {
	if dst == nil {
		dst = map[string]string{}
	}

	for k, v := range src {
		if v != "" {
			dst[k] = v
		}
	}

	return dst
}

// parseLabels splits a raw `k="v",k2="v2"` label list, respecting
// backslash-escaped quotes/backslashes/newlines inside values so commas
// embedded unescaped in a value never split a pair early.
func parseLabels(raw string) map[string]string {
	labels := map[string]string{}

	i := 0
	n := len(raw)

	for i < n {
		eq := strings.IndexByte(raw[i:], '=')
		if eq < 0 {
			break
		}

		key := raw[i : i+eq]
		i += eq + 1

		if i >= n || raw[i] != '"' {
			break
		}

		i++ // skip opening quote

		var val strings.Builder

		for i < n {
			c := raw[i]

			if c == '\\' && i+1 < n {
				switch raw[i+1] {
				case '"':
					val.WriteByte('"')
				case '\\':
					val.WriteByte('\\')
				case 'n':
					val.WriteByte('\n')
				default:
					val.WriteByte(raw[i+1])
				}

				i += 2

				continue
			}

			if c == '"' {
				i++

				break
			}

			val.WriteByte(c)
			i++
		}

		labels[key] = val.String()

		// skip the separating comma, if present
		for i < n && (raw[i] == ',' || raw[i] == ' ') {
			i++
		}
	}

	return labels
}

// saturatingParseFloat coerces the numeric suffix the regex captured;
// negative values saturate to 0, unparsable input to 0.
func saturatingParseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	if v < 0 {
		return 0
	}

	return v
}

// saturatingUint casts a float64 metric value to uint64, saturating at
// the type's bounds instead of wrapping on overflow or going negative.
func saturatingUint(v float64) uint64 {
	if v < 0 {
		return 0
	}

	if v > math.MaxUint64 {
		return math.MaxUint64
	}

	return uint64(v)
}

func saturatingInt2(v float64) int64 {
	if v < math.MinInt64 {
		return math.MinInt64
	}

	if v > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(v)
}

// saturatingInt parses a label value expected to be a small integer
// (index, core id); malformed or negative input saturates to 0.
func saturatingInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}

	if v < 0 {
		return 0
	}

	return v
}
