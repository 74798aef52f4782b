package reader

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShouldIncludeMount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		entry mountEntry
		want  bool
	}{
		{"root", mountEntry{mountPoint: "/", fsType: "ext4"}, true},
		{"data volume", mountEntry{mountPoint: "/data", fsType: "xfs"}, true},
		{"proc", mountEntry{mountPoint: "/proc", fsType: "proc"}, false},
		{"sysfs by type", mountEntry{mountPoint: "/weird", fsType: "sysfs"}, false},
		{"tmp exact", mountEntry{mountPoint: "/tmp", fsType: "ext4"}, false},
		{"docker prefix", mountEntry{mountPoint: "/var/lib/docker/overlay2/abc", fsType: "ext4"}, false},
		{"dev prefix", mountEntry{mountPoint: "/dev/shm", fsType: "tmpfs"}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, c.want, shouldIncludeMount(c.entry))
		})
	}
}
