package reader

import (
	"context"
	"log/slog"
	goruntime "runtime"
	"sync"

	"github.com/accelmetrics/all-smi/pkg/ipmi"
	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/accelmetrics/all-smi/pkg/session"
)

// defaultIPMIDevNum is the device file index `dcmi.go` probes
// (/dev/ipmi0, /dev/ipmi/0, /dev/ipmidev/0) when no BMC override is
// configured.
const defaultIPMIDevNum = 0

// HostChassisReader reports node-scope power and thermal sensors. On
// darwin it reads the same IOReport/SMC session the Apple Silicon GPU
// reader uses; on Linux servers with a BMC it reads DCMI power readings
// through pkg/ipmi. A host with neither source simply reports an empty
// ChassisInfo — chassis sensors are optional per spec.
type HostChassisReader struct {
	logger *slog.Logger

	appleFFI *session.FFISession

	ipmiOnce sync.Once
	dcmi     *ipmi.IPMIDCMI
}

// NewHostChassisReader wires chassis sensing to whatever session the
// Apple Silicon reader registered, if any; ipmiDCMI is opened lazily so a
// host without a BMC device file never pays the open cost.
func NewHostChassisReader(logger *slog.Logger, appleFFI *session.FFISession) *HostChassisReader {
	return &HostChassisReader{logger: logger, appleFFI: appleFFI}
}

func (r *HostChassisReader) dcmiClient() *ipmi.IPMIDCMI {
	r.ipmiOnce.Do(func() {
		if goruntime.GOOS != "linux" {
			return
		}

		client, err := ipmi.NewIPMIDCMI(defaultIPMIDevNum, r.logger)
		if err != nil {
			r.logger.Debug("ipmi dcmi unavailable", "err", err)

			return
		}

		r.dcmi = client
	})

	return r.dcmi
}

// ChassisInfo samples the host's combined power/thermal sensors.
func (r *HostChassisReader) ChassisInfo(ctx context.Context) (model.ChassisInfo, error) {
	if r.appleFFI != nil {
		return r.appleChassisInfo(), nil
	}

	if client := r.dcmiClient(); client != nil {
		if info, ok := r.ipmiChassisInfo(client); ok {
			return info, nil
		}
	}

	return model.ChassisInfo{}, nil
}

func (r *HostChassisReader) appleChassisInfo() model.ChassisInfo {
	m, err := r.appleFFI.Sample()
	if err != nil {
		r.logger.Warn("ioreport sample unavailable for chassis", "err", err)

		return model.ChassisInfo{}
	}

	cpu := m.CPUPowerWatts
	gpu := m.GPUPowerWatts
	ane := m.ANEPowerWatts

	total := cpu + gpu + ane
	if total > 500.0 {
		total = 500.0 // documented clamp; exact per-SKU ceiling is unknown
	}

	pressure := thermalStateLabel(m.ThermalState)

	return model.ChassisInfo{
		TotalPowerWatts: &total,
		ThermalPressure: &pressure,
		Detail: &model.ChassisDetail{
			CPUPowerWatts: &cpu,
			GPUPowerWatts: &gpu,
			ANEPowerWatts: &ane,
		},
	}
}

func (r *HostChassisReader) ipmiChassisInfo(client *ipmi.IPMIDCMI) (model.ChassisInfo, bool) {
	reading, err := client.PowerReading()
	if err != nil {
		r.logger.Debug("ipmi power reading failed", "err", err)

		return model.ChassisInfo{}, false
	}

	watts := float64(reading.Current)

	return model.ChassisInfo{
		TotalPowerWatts: &watts,
	}, true
}
