package aggregator

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTickScrapesAndMergesOneEndpoint(t *testing.T) {
	t.Parallel()

	body := `# HELP all_smi_gpu_utilization GPU utilization percentage
# TYPE all_smi_gpu_utilization gauge
all_smi_gpu_utilization{gpu="Test GPU",instance="node-a:9400",uuid="GPU-1",index="0"} 42
`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a := New(&Config{
		Logger:         logger,
		Endpoints:      []string{srv.URL},
		RequestTimeout: time.Second,
		BaseInterval:   time.Second,
	})

	a.tick(context.Background())

	snap := a.Last()
	require.NotNil(t, snap)
	require.Len(t, snap.GPUs, 1)
	require.Equal(t, "GPU-1", snap.GPUs[0].UUID)

	conn, ok := snap.Connections[srv.URL]
	require.True(t, ok)
	require.False(t, conn.LastSuccessTime.IsZero())
}

func TestTickRecordsFailureForDeadEndpoint(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a := New(&Config{
		Logger:         logger,
		Endpoints:      []string{"http://127.0.0.1:1"},
		RequestTimeout: 200 * time.Millisecond,
		BaseInterval:   time.Second,
	})

	a.tick(context.Background())

	snap := a.Last()
	require.NotNil(t, snap)
	require.Empty(t, snap.GPUs)

	conn, ok := snap.Connections["http://127.0.0.1:1"]
	require.True(t, ok)
	require.NotEmpty(t, conn.LastError)
}

func TestAdaptiveIntervalWidensForLargeClusters(t *testing.T) {
	t.Parallel()

	base := adaptiveInterval(5*time.Second, 10, 64, 100*time.Millisecond)
	require.Equal(t, 5*time.Second, base)

	widened := adaptiveInterval(5*time.Second, 10000, 64, 100*time.Millisecond)
	require.Greater(t, widened, 5*time.Second)
}
