package reader

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChassisInfoEmptyWithoutAnySource(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewHostChassisReader(logger, nil)

	info, err := r.ChassisInfo(context.Background())
	require.NoError(t, err)
	require.Nil(t, info.TotalPowerWatts)
}
