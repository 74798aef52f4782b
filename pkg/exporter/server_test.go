package exporter

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/accelmetrics/all-smi/pkg/model"
)

type fakeSnapshotter struct {
	snap *model.HostSnapshot
}

func (f *fakeSnapshotter) Snapshot(ctx context.Context) (*model.HostSnapshot, error) {
	return f.snap, nil
}

func (f *fakeSnapshotter) Last() *model.HostSnapshot { return f.snap }

func TestServeMetricsHeadersAndBody(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	snap := &model.HostSnapshot{
		GPUs: []model.GpuInfo{{UUID: "GPU-1", Utilization: 50}},
	}

	s, err := New(&Config{
		Logger:    logger,
		Collector: &fakeSnapshotter{snap: snap},
		Web:       WebConfig{Addresses: []string{"127.0.0.1:0"}},
	})
	require.NoError(t, err)

	s.renderOnce(context.Background())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	s.serveMetrics(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/plain; version=0.0.4; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, "max-age=2, must-revalidate", rec.Header().Get("Cache-Control"))
	require.Equal(t, "timeout=60, max=1000", rec.Header().Get("Keep-Alive"))
	require.Contains(t, rec.Body.String(), `all_smi_gpu_utilization{`)
}

func TestServeMetricsServesLastBodyBeforeFirstRender(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := New(&Config{
		Logger:    logger,
		Collector: &fakeSnapshotter{snap: &model.HostSnapshot{}},
		Web:       WebConfig{Addresses: []string{"127.0.0.1:0"}},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	s.serveMetrics(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "0", rec.Header().Get("Content-Length"))
}

func TestPollLoopStopsOnShutdown(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := New(&Config{
		Logger:    logger,
		Collector: &fakeSnapshotter{snap: &model.HostSnapshot{}},
		Web:       WebConfig{Addresses: []string{"127.0.0.1:0"}},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.pollLoop(ctx)

	close(s.stop)

	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("pollLoop did not stop after close(stop)")
	}
}
