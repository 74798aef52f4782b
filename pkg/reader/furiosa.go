package reader

import (
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/accelmetrics/all-smi/internal/osexec"
	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/accelmetrics/all-smi/pkg/session"
)

func init() {
	register(VendorFuriosa, detectFuriosa)
}

var furiosactlInfoCmd = []string{"info", "--format", "json"}

// furiosaInfoEntry mirrors `furiosactl info --format json`'s per-device
// shape.
type furiosaInfoEntry struct {
	DevName     string `json:"dev_name"`
	ProductName string `json:"product_name"`
	DeviceUUID  string `json:"device_uuid"`
	Temperature string `json:"temperature"` // "NN.N°C"
	Power       string `json:"power"`       // "NN.N W"
	Clock       string `json:"clock"`       // "NNNN MHz"
	PCIBDF      string `json:"pci_bdf"`
}

// furiosaReader reads FuriosaAI NPUs through furiosactl. Per-device
// utilization requires a second `furiosactl top` sample the upstream
// project itself marks TODO for several fields; this reader mirrors that
// honestly with the Unavailable sentinel rather than fabricating a value.
type furiosaReader struct {
	ctlPath string
	logger  *slog.Logger
}

func detectFuriosa(ctx context.Context, sessions *session.Registry) (Reader, error) {
	path, err := exec.LookPath("furiosactl")
	if err != nil {
		return nil, nil
	}

	return &furiosaReader{ctlPath: path, logger: slog.Default().With("reader", "furiosa")}, nil
}

// Capabilities implements Reader.
func (r *furiosaReader) Capabilities() Capabilities {
	return Capabilities{Vendor: VendorFuriosa, GPUInfo: true, ProcessInfo: true}
}

// GPUInfo implements Reader.
func (r *furiosaReader) GPUInfo(ctx context.Context) ([]model.GpuInfo, error) {
	out, err := osexec.ExecuteContext(ctx, r.ctlPath, furiosactlInfoCmd, nil)
	if err != nil {
		r.logger.Warn("furiosactl info failed", "err", err)

		return nil, nil
	}

	var entries []furiosaInfoEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		r.logger.Warn("furiosactl info json parse failed", "err", err)

		return nil, nil
	}

	infos := make([]model.GpuInfo, 0, len(entries))

	for i, e := range entries {
		infos = append(infos, model.GpuInfo{
			UUID:             e.DeviceUUID,
			Name:             e.ProductName,
			DeviceType:       model.DeviceTypeNPU,
			Index:            i,
			Utilization:      float64(model.Unavailable), // requires `furiosactl top` sampling
			Temperature:      parseDegreeString(e.Temperature),
			PowerConsumption: parseWattString(e.Power),
			Frequency:        parseMHzString(e.Clock),
			Detail: map[string]string{
				model.DetailPCIBusID: e.PCIBDF,
			},
		})
	}

	return infos, nil
}

// ProcessInfo implements Reader.
func (r *furiosaReader) ProcessInfo(ctx context.Context) ([]model.ProcessInfo, error) {
	out, err := osexec.ExecuteContext(ctx, r.ctlPath, []string{"ps", "--format", "json"}, nil)
	if err != nil {
		return nil, nil
	}

	var entries []struct {
		PID int    `json:"pid"`
		Cmd string `json:"cmd"`
	}
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, nil
	}

	procs := make([]model.ProcessInfo, 0, len(entries))
	for _, e := range entries {
		procs = append(procs, model.ProcessInfo{
			PID:          e.PID,
			ContainerPID: resolveContainerPID(e.PID),
			Command:      e.Cmd,
			UsesGPU:      true,
		})
	}


	return procs, nil
}

func parseDegreeString(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "°C")

	return parseLeadingFloat(s, float64(model.Unavailable))
}

func parseWattString(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), " W")

	return parseLeadingFloat(s, float64(model.Unavailable))
}

func parseMHzString(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), " MHz")

	return parseLeadingFloat(s, 0)
}
