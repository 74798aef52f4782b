package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGpuInfoValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		gpu     GpuInfo
		wantErr bool
	}{
		{
			name: "used within total",
			gpu:  GpuInfo{MemoryUsed: 8 << 30, MemoryTotal: 24 << 30},
		},
		{
			name: "total unknown is never a violation",
			gpu:  GpuInfo{MemoryUsed: 8 << 30, MemoryTotal: 0},
		},
		{
			name:    "used exceeds total",
			gpu:     GpuInfo{MemoryUsed: 32 << 30, MemoryTotal: 24 << 30},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.gpu.Validate()
			if tc.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestClusterSnapshotTabs(t *testing.T) {
	t.Parallel()

	c := &ClusterSnapshot{
		Connections: map[string]ConnectionStatus{
			"http://h2:9090": {HostID: "http://h2:9090", ActualHostname: "h2"},
			"http://h1:9090": {HostID: "http://h1:9090", ActualHostname: "h1"},
		},
	}

	assert.Equal(t, []string{"All", "h1", "h2"}, c.Tabs())
}
