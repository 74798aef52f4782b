package reader

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/accelmetrics/all-smi/pkg/session"
)

func init() {
	register(VendorGoogleTPU, detectGoogleTPU)
}

const (
	googleTPUSessionName  = "tpu-runtime"
	googleTPUProbeTimeout = 300 * time.Millisecond

	metricTotalMemory  = "tpu.runtime.hbm.memory.total.bytes"
	metricMemoryUsage  = "tpu.runtime.hbm.memory.usage.bytes"
	metricDutyCyclePct = "tpu.runtime.tensorcore.dutycycle.percent"
)

// tpuReader samples Google TPU chips through libtpu's runtime metrics
// gRPC server, which is only reachable while a JAX/TensorFlow workload is
// actively driving the chip. Absence of the server is the common case,
// not an error.
type tpuReader struct {
	grpc   *session.GRPCSession
	logger *slog.Logger
}

func detectGoogleTPU(ctx context.Context, sessions *session.Registry) (Reader, error) {
	conn, err := net.DialTimeout("tcp", "localhost:8431", googleTPUProbeTimeout)
	if err != nil {
		return nil, nil
	}
	conn.Close()

	logger := slog.Default().With("reader", "google_tpu")
	grpcSession := session.NewGRPCSession(googleTPUSessionName, "", logger)

	if err := sessions.Register(grpcSession); err != nil {
		return nil, err
	}

	return &tpuReader{grpc: grpcSession, logger: logger}, nil
}

// Capabilities implements Reader.
func (r *tpuReader) Capabilities() Capabilities {
	return Capabilities{Vendor: VendorGoogleTPU, GPUInfo: true}
}

// GPUInfo implements Reader.
func (r *tpuReader) GPUInfo(ctx context.Context) ([]model.GpuInfo, error) {
	totals, err := r.grpc.Sample(ctx, metricTotalMemory)
	if err != nil {
		r.logger.Warn("tpu runtime unreachable", "err", err)

		return nil, nil
	}

	usages, err := r.grpc.Sample(ctx, metricMemoryUsage)
	if err != nil {
		usages = nil
	}

	duty, err := r.grpc.Sample(ctx, metricDutyCyclePct)
	if err != nil {
		duty = nil
	}

	usageByDevice := indexTPUMetricByDevice(usages)
	dutyByDevice := indexTPUMetricByDevice(duty)

	infos := make([]model.GpuInfo, 0, len(totals))

	for i, m := range totals {
		deviceID := tpuAttributeDeviceID(m, i)

		total := tpuGaugeUint64(m)
		used := uint64(0)

		if u, ok := usageByDevice[deviceID]; ok {
			used = tpuGaugeUint64(u)
		}

		utilization := float64(model.Unavailable)
		if d, ok := dutyByDevice[deviceID]; ok {
			utilization = tpuGaugeFloat64(d)
		}

		infos = append(infos, model.GpuInfo{
			UUID:        fmt.Sprintf("TPU-%d", deviceID),
			Name:        "Google TPU",
			DeviceType:  model.DeviceTypeGPU,
			Index:       int(deviceID),
			Utilization: utilization,
			MemoryUsed:  used,
			MemoryTotal: total,
			Detail: map[string]string{
				model.DetailMetricsAvailable: "grpc",
			},
		})
	}

	return infos, nil
}

// ProcessInfo implements Reader. The runtime metrics server reports no
// per-process attribution.
func (r *tpuReader) ProcessInfo(ctx context.Context) ([]model.ProcessInfo, error) {
	return nil, nil
}

func indexTPUMetricByDevice(metrics []session.TPUMetric) map[int64]session.TPUMetric {
	out := make(map[int64]session.TPUMetric, len(metrics))

	for i, m := range metrics {
		out[tpuAttributeDeviceID(m, i)] = m
	}

	return out
}

func tpuAttributeDeviceID(m session.TPUMetric, fallbackIndex int) int64 {
	if id := m.Attribute.Value.IntAttr; id != 0 {
		return id
	}

	return int64(fallbackIndex)
}

func tpuGaugeUint64(m session.TPUMetric) uint64 {
	if m.Gauge == nil {
		return 0
	}

	if m.Gauge.AsInt != 0 {
		return uint64(m.Gauge.AsInt)
	}

	return uint64(m.Gauge.AsFloat)
}

func tpuGaugeFloat64(m session.TPUMetric) float64 {
	if m.Gauge == nil {
		return float64(model.Unavailable)
	}

	if m.Gauge.AsFloat != 0 {
		return m.Gauge.AsFloat
	}

	return float64(m.Gauge.AsInt)
}
