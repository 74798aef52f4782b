package reader

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLatestSnapshotByIndexKeepsNewestLine(t *testing.T) {
	t.Parallel()

	lines := []string{
		"0,HL-225,uuid-0,10,100,1000,40,50,1000",
		"1,HL-225,uuid-1,20,200,2000,45,60,1100",
		"0,HL-225,uuid-0,15,150,1000,42,55,1050",
	}

	latest := latestSnapshotByIndex(lines)
	require.Len(t, latest, 2)
	require.Equal(t, "0,HL-225,uuid-0,15,150,1000,42,55,1050", latest[0])
}

func TestParseGaudiCSVLine(t *testing.T) {
	t.Parallel()

	info := parseGaudiCSVLine(0, "0,HL-225,uuid-0,15,150,1000,42,55,1050")
	require.Equal(t, "uuid-0", info.UUID)
	require.Equal(t, "HL-225", info.Name)
	require.InDelta(t, 15.0, info.Utilization, 0.01)
	require.Equal(t, uint64(150*1024*1024), info.MemoryUsed)
	require.Equal(t, uint64(1000*1024*1024), info.MemoryTotal)
	require.InDelta(t, 42.0, info.Temperature, 0.01)
	require.InDelta(t, 55.0, info.PowerConsumption, 0.01)
}

func TestSortedIntKeys(t *testing.T) {
	t.Parallel()

	m := map[int]string{3: "c", 1: "a", 2: "b"}
	require.Equal(t, []int{1, 2, 3}, sortedIntKeys(m))
}
