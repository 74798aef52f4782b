package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

// defaultTPURuntimeAddr is where Google's Cloud TPU runtime exposes its
// metrics service. See
// https://github.com/google/cloud-accelerator-diagnostics/tree/main/tpu_info.
const defaultTPURuntimeAddr = "localhost:8431"

const tpuMetricServiceMethod = "/tensorflow.tpu.RuntimeMetricService/GetRuntimeMetric"

const jsonCodecName = "allsmi-json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec lets GRPCSession talk to the runtime metrics service without
// vendoring the upstream .proto-generated package; the service accepts
// either wire format on this endpoint.
type jsonCodec struct{}

func (jsonCodec) Name() string { return jsonCodecName }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// tpuMetricRequest mirrors tpu_info's MetricRequest message.
type tpuMetricRequest struct {
	MetricName string `json:"metric_name"`
}

// tpuMetricResponse mirrors tpu_info's MetricResponse message: one gauge
// or counter reading per TPU chip/core attribute.
type tpuMetricResponse struct {
	Metric []TPUMetric `json:"metric"`
}

// TPUMetric is one attributed gauge reading from the runtime metrics
// service, exported so vendor readers outside this package can interpret
// Sample's results without a second copy of the wire shape.
type TPUMetric struct {
	Attribute TPUAttribute `json:"attribute"`
	Gauge     *TPUGauge    `json:"gauge,omitempty"`
}

// TPUAttribute carries the attribute value tagging a TPUMetric, normally
// the chip/core ordinal the reading belongs to.
type TPUAttribute struct {
	Value TPUAttributeValue `json:"value"`
}

// TPUAttributeValue is the tagged union of attribute value kinds the
// runtime can send; only the integer form is used for device ordinals.
type TPUAttributeValue struct {
	IntAttr int64 `json:"int_attr"`
}

// TPUGauge is the tagged union of numeric gauge readings the runtime can
// send for a metric.
type TPUGauge struct {
	AsInt   int64   `json:"as_int"`
	AsFloat float64 `json:"as_float"`
}

// GRPCSession manages a lazily-dialed gRPC channel to a local accelerator
// runtime's metrics service (currently only the Google TPU runtime). The
// channel is not opened until the first Sample call, and is redialed
// whenever a call fails, since the runtime process can restart
// independently of this one. Readings are served through a SampleCache
// keyed by metric name, so repeated Sample calls for the same metric
// within the warm-up/steady-state TTL reuse the last RPC instead of
// issuing a fresh one.
type GRPCSession struct {
	name   string
	addr   string
	logger *slog.Logger

	mu   sync.Mutex
	conn *grpc.ClientConn

	cache *SampleCache
}

// NewGRPCSession builds a session for addr, defaulting to the TPU
// runtime's well-known localhost port when addr is empty.
func NewGRPCSession(name, addr string, logger *slog.Logger) *GRPCSession {
	if addr == "" {
		addr = defaultTPURuntimeAddr
	}

	cache := NewSampleCache()

	go cache.Start()

	return &GRPCSession{name: name, addr: addr, logger: logger, cache: cache}
}

// Name implements Session.
func (s *GRPCSession) Name() string { return s.name }

// Initialize is a no-op: the channel dials lazily on first Sample.
func (s *GRPCSession) Initialize(ctx context.Context) error { return nil }

// Shutdown closes the channel if one was ever dialed and stops the
// sample cache's eviction loop.
func (s *GRPCSession) Shutdown(ctx context.Context) error {
	s.cache.Stop()

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	return conn.Close()
}

// connect returns the current channel, dialing one if necessary.
// grpc.NewClient does not block on connection establishment: the actual
// TCP dial and handshake happen on first RPC, so a down runtime does not
// stall startup.
func (s *GRPCSession) connect() (*grpc.ClientConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.conn, nil
	}

	conn, err := grpc.NewClient(s.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("session: dial tpu runtime at %s: %w", s.addr, err)
	}

	s.conn = conn

	return conn, nil
}

// invalidate drops the current channel so the next Sample redials; called
// after any RPC failure since a stale channel against a restarted runtime
// never recovers on its own within gRPC's backoff alone.
func (s *GRPCSession) invalidate(conn *grpc.ClientConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == conn {
		_ = conn.Close()
		s.conn = nil
	}
}

// Sample fetches one metric series from the runtime, keyed by the
// upstream metric name (e.g. "tpu.runtime.hbm.memory.usage.bytes").
// Repeated calls for the same metricName within its cache TTL are served
// from SampleCache rather than issuing a new RPC.
func (s *GRPCSession) Sample(ctx context.Context, metricName string) ([]TPUMetric, error) {
	v, err := s.cache.GetOrLoad(metricName, func() (any, error) {
		return s.sampleUncached(ctx, metricName)
	})
	if err != nil {
		return nil, err
	}

	metrics, _ := v.([]TPUMetric)

	return metrics, nil
}

// sampleUncached performs the actual RPC; it is the load function
// SampleCache calls on a miss or expiry.
func (s *GRPCSession) sampleUncached(ctx context.Context, metricName string) ([]TPUMetric, error) {
	conn, err := s.connect()
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req := &tpuMetricRequest{MetricName: metricName}

	var resp tpuMetricResponse

	err = conn.Invoke(callCtx, tpuMetricServiceMethod, req, &resp, grpc.CallContentSubtype(jsonCodecName))
	if err != nil {
		s.logger.Warn("grpc session rpc failed, will redial", "session", s.name, "err", err)
		s.invalidate(conn)

		return nil, fmt.Errorf("session: GetRuntimeMetric(%s): %w", metricName, err)
	}

	return resp.Metric, nil
}
