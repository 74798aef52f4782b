package reader

import (
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/accelmetrics/all-smi/pkg/session"
)

func init() {
	register(VendorGaudi, detectGaudi)
}

const gaudiSessionName = "hl-smi"

// gaudiCSVArgs holds hl-smi's continuous CSV stream arguments for
// `hl-smi -Q index,name,uuid,utilization.aip,memory.used,memory.total,
// temperature.aip,power.draw,clocks.current.soc -f csv`.
var gaudiCSVArgs = []string{
	"-Q",
	"index,name,uuid,utilization.aip,memory.used,memory.total,temperature.aip,power.draw,clocks.current.soc",
	"-f", "csv", "-l", "1",
}

// gaudiReader samples Intel Gaudi accelerators from a long-lived hl-smi
// subprocess streaming CSV lines, one per device per tick, rather than
// re-forking the CLI every scrape.
type gaudiReader struct {
	proc   *session.SubprocessSession
	logger *slog.Logger
}

func detectGaudi(ctx context.Context, sessions *session.Registry) (Reader, error) {
	path, err := exec.LookPath("hl-smi")
	if err != nil {
		return nil, nil
	}

	logger := slog.Default().With("reader", "gaudi")
	proc := session.NewSubprocessSession(gaudiSessionName, path, gaudiCSVArgs, logger)

	if err := sessions.Register(proc); err != nil {
		return nil, err
	}

	return &gaudiReader{proc: proc, logger: logger}, nil
}

// Capabilities implements Reader.
func (r *gaudiReader) Capabilities() Capabilities {
	return Capabilities{Vendor: VendorGaudi, GPUInfo: true}
}

// GPUInfo implements Reader.
func (r *gaudiReader) GPUInfo(ctx context.Context) ([]model.GpuInfo, error) {
	lines := r.proc.Lines()
	latest := latestSnapshotByIndex(lines)

	infos := make([]model.GpuInfo, 0, len(latest))
	for _, idx := range sortedIntKeys(latest) {
		infos = append(infos, parseGaudiCSVLine(idx, latest[idx]))
	}

	return infos, nil
}

// ProcessInfo implements Reader. hl-smi's process attribution requires a
// separate `-Q` invocation not wired into the shared streaming session.
func (r *gaudiReader) ProcessInfo(ctx context.Context) ([]model.ProcessInfo, error) {
	return nil, nil
}

// latestSnapshotByIndex keeps only the most recently seen CSV line per
// device index: the ring buffer can hold several ticks worth of lines,
// and the last occurrence of an index is always the freshest sample.
func latestSnapshotByIndex(lines []string) map[int]string {
	out := make(map[int]string)

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "index") {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) == 0 {
			continue
		}

		idx, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			continue
		}

		out[idx] = line
	}

	return out
}

func sortedIntKeys(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}

	return keys
}

func parseGaudiCSVLine(index int, line string) model.GpuInfo {
	fields := strings.Split(line, ",")
	get := func(i int) string {
		if i >= len(fields) {
			return ""
		}

		return strings.TrimSpace(fields[i])
	}

	return model.GpuInfo{
		UUID:             get(2),
		Name:             get(1),
		DeviceType:       model.DeviceTypeGPU,
		Index:            index,
		Utilization:      parseLeadingFloat(get(3), float64(model.Unavailable)),
		MemoryUsed:       uint64(parseLeadingFloat(get(4), 0)) * 1024 * 1024,
		MemoryTotal:      uint64(parseLeadingFloat(get(5), 0)) * 1024 * 1024,
		Temperature:      parseLeadingFloat(get(6), float64(model.Unavailable)),
		PowerConsumption: parseLeadingFloat(get(7), float64(model.Unavailable)),
		Frequency:        parseLeadingFloat(get(8), 0),
		Detail: map[string]string{
			"GPU Type": "Gaudi",
		},
	}
}
