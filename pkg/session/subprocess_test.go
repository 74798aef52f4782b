package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubprocessSessionCapturesOutput(t *testing.T) {
	t.Parallel()

	s := NewSubprocessSession("probe", "/bin/sh", []string{"-c", "echo line1; echo line2"}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, s.Initialize(ctx))

	require.Eventually(t, func() bool {
		lines := s.Lines()

		return len(lines) >= 2 && lines[0] == "line1" && lines[1] == "line2"
	}, 2*time.Second, 10*time.Millisecond)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()

	require.NoError(t, s.Shutdown(shutdownCtx))
}

func TestSubprocessSessionRingBufferBounded(t *testing.T) {
	t.Parallel()

	s := NewSubprocessSession("probe", "/bin/echo", nil, testLogger())
	s.lines = make([]string, 3)

	for i := 0; i < 10; i++ {
		s.push("x")
	}

	require.Equal(t, 3, s.count)
	require.Len(t, s.Lines(), 3)
}
