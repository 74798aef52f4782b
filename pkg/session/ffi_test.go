package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFFISessionReportsPlatformUnsupportedWhereApplicable(t *testing.T) {
	t.Parallel()

	s := NewFFISession("probe", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := s.Initialize(ctx)

	_, sampleErr := s.Sample()
	require.Error(t, sampleErr)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()

	require.NoError(t, s.Shutdown(shutdownCtx))

	if err != nil {
		require.ErrorIs(t, err, ErrPlatformUnsupported)
	}
}
