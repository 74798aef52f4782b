package reader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNSpidReturnsInnermostPID(t *testing.T) {
	t.Parallel()

	status := "Name:\tsleep\nPid:\t4242\nNSpid:\t4242\t17\t3\n"
	require.Equal(t, 3, parseNSpid(strings.NewReader(status)))
}

func TestParseNSpidSingleValueMeansNotContainerized(t *testing.T) {
	t.Parallel()

	status := "Name:\tsleep\nNSpid:\t4242\n"
	require.Equal(t, 0, parseNSpid(strings.NewReader(status)))
}

func TestParseNSpidMissingLineReturnsZero(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, parseNSpid(strings.NewReader("Name:\tsleep\n")))
}

func TestContainerPIDFromProcRootReadsStatusFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "99"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "99", "status"), []byte("NSpid:\t99\t5\n"), 0o644))

	require.Equal(t, 5, containerPIDFromProcRoot(dir, 99))
}

func TestContainerPIDFromProcRootMissingPIDReturnsZero(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, containerPIDFromProcRoot(t.TempDir(), 404))
}
