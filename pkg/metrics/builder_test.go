package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderHelpTypeDedupe(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	b.Help("all_smi_gpu_utilization", "GPU utilization").Type("all_smi_gpu_utilization", "gauge")
	b.Help("all_smi_gpu_utilization", "GPU utilization").Type("all_smi_gpu_utilization", "gauge")
	b.Metric("all_smi_gpu_utilization", []Label{{"uuid", "GPU-1"}}, 42)

	body := b.Build()
	require.Equal(t, 1, countOccurrences(body, "# HELP"))
	require.Equal(t, 1, countOccurrences(body, "# TYPE"))
	require.Contains(t, body, `all_smi_gpu_utilization{uuid="GPU-1"} 42`)
}

func TestBuilderRejectsInvalidName(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	b.Help("not a valid name", "text")
	b.Metric("also invalid", nil, 1)
	require.Empty(t, b.Build())
}

func TestBuilderMetricWithoutLabels(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	b.Metric("all_smi_memory_total_bytes", nil, 100)
	require.Equal(t, "all_smi_memory_total_bytes 100\n", b.Build())
}

func countOccurrences(haystack, needle string) int {
	count := 0

	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			count++
		}
	}

	return count
}
