package reader

import (
	"testing"

	"github.com/accelmetrics/all-smi/pkg/session"
	"github.com/stretchr/testify/require"
)

func TestTPUAttributeDeviceID(t *testing.T) {
	t.Parallel()

	withAttr := session.TPUMetric{Attribute: session.TPUAttribute{Value: session.TPUAttributeValue{IntAttr: 3}}}
	require.Equal(t, int64(3), tpuAttributeDeviceID(withAttr, 7))

	noAttr := session.TPUMetric{}
	require.Equal(t, int64(7), tpuAttributeDeviceID(noAttr, 7))
}

func TestTPUGaugeUint64(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint64(0), tpuGaugeUint64(session.TPUMetric{}))

	withInt := session.TPUMetric{Gauge: &session.TPUGauge{AsInt: 42}}
	require.Equal(t, uint64(42), tpuGaugeUint64(withInt))

	withFloat := session.TPUMetric{Gauge: &session.TPUGauge{AsFloat: 99.0}}
	require.Equal(t, uint64(99), tpuGaugeUint64(withFloat))
}

func TestTPUGaugeFloat64(t *testing.T) {
	t.Parallel()

	unavailable := tpuGaugeFloat64(session.TPUMetric{})
	require.Less(t, unavailable, 0.0)

	withFloat := session.TPUMetric{Gauge: &session.TPUGauge{AsFloat: 12.5}}
	require.InDelta(t, 12.5, tpuGaugeFloat64(withFloat), 0.01)
}

func TestDetectGoogleTPUAbsentWithoutRuntime(t *testing.T) {
	t.Parallel()

	r, err := detectGoogleTPU(nil, nil)
	require.NoError(t, err)
	require.Nil(t, r)
}
