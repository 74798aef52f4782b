package aggregator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadHostfileValid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nnode-a.example.com:9400\nnode-b:9400\n"), 0o600))

	hosts, err := LoadHostfile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"node-a.example.com:9400", "node-b:9400"}, hosts)
}

func TestLoadHostfileRejectsDisallowedCharset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.txt")
	require.NoError(t, os.WriteFile(path, []byte("http://node-a;rm -rf /\n"), 0o600))

	_, err := LoadHostfile(path)
	require.Error(t, err)
}

func TestLoadHostfileRejectsTooManyLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.txt")

	var sb strings.Builder
	for i := 0; i < maxHostfileLines+1; i++ {
		sb.WriteString("node:9400\n")
	}

	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o600))

	_, err := LoadHostfile(path)
	require.Error(t, err)
}
