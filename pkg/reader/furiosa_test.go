package reader

import (
	"testing"

	"github.com/accelmetrics/all-smi/pkg/model"
	"github.com/stretchr/testify/require"
)

func TestParseDegreeString(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 42.5, parseDegreeString("42.5°C"), 0.01)
	require.Equal(t, float64(model.Unavailable), parseDegreeString("n/a"))
}

func TestParseWattString(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 120.0, parseWattString("120 W"), 0.01)
}

func TestParseMHzString(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 1600.0, parseMHzString("1600 MHz"), 0.01)
	require.Equal(t, float64(0), parseMHzString("garbage"))
}
