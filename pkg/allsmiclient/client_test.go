package allsmiclient

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleBody = `# HELP all_smi_gpu_utilization_percent GPU utilization percentage
# TYPE all_smi_gpu_utilization_percent gauge
all_smi_gpu_utilization_percent{uuid="GPU-1",instance="node-a"} 42
`

func TestFetchParsesResponseBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/metrics", r.URL.Path)
		_, _ = w.Write([]byte(sampleBody))
	}))
	defer srv.Close()

	c := New(srv.URL)

	entities, err := c.Fetch(t.Context())
	require.NoError(t, err)
	require.Len(t, entities.GPUs, 1)
	require.Equal(t, "node-a", entities.GPUs[0].Hostname)
}

func TestURLAppendsMetricsSuffixOnce(t *testing.T) {
	t.Parallel()

	c := New("http://example.invalid")
	require.Equal(t, "http://example.invalid/metrics", c.url())

	c2 := New("http://example.invalid/metrics")
	require.Equal(t, "http://example.invalid/metrics", c2.url())
}

func TestFetchReturnsErrorOnNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)

	_, err := c.Fetch(t.Context())
	require.Error(t, err)
}

func TestGPUInfoConveniencePassesThrough(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleBody))
	}))
	defer srv.Close()

	c := New(srv.URL)

	gpus, err := c.GPUInfo(t.Context())
	require.NoError(t, err)
	require.Len(t, gpus, 1)
}
