package reader

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/accelmetrics/all-smi/pkg/model"
)

const procMountsPath = "/proc/mounts"

// storageExcludedPrefixes and storageExcludedExact mirror the upstream
// disk-filter's Linux/common exclusion tables: virtual filesystems,
// container runtime state, and well-known non-data mount points never
// belong in a storage snapshot.
var storageExcludedPrefixes = []string{
	"/dev/", "/proc/", "/sys/", "/run/", "/snap/",
	"/var/lib/docker/", "/var/lib/containerd/",
}

var storageExcludedExact = map[string]struct{}{
	"/boot": {}, "/boot/efi": {}, "/tmp": {},
	"/var/lib/docker": {}, "/var/lib/containerd": {},
}

// storageExcludedFSTypes filters by filesystem type in addition to mount
// point, catching pseudo-filesystems mounted at arbitrary paths (tmpfs,
// overlay, cgroup, etc).
var storageExcludedFSTypes = map[string]struct{}{
	"proc": {}, "sysfs": {}, "devtmpfs": {}, "devpts": {}, "tmpfs": {},
	"cgroup": {}, "cgroup2": {}, "overlay": {}, "squashfs": {}, "mqueue": {},
	"debugfs": {}, "tracefs": {}, "securityfs": {}, "pstore": {}, "bpf": {},
	"autofs": {}, "rpc_pipefs": {}, "nsfs": {}, "binfmt_misc": {},
}

// HostStorageReader enumerates mounted filesystems from /proc/mounts and
// reports per-mount capacity via statfs(2), grounded on the upstream
// disk-filter's prefix/exact/fstype exclusion tables.
type HostStorageReader struct {
	logger *slog.Logger
}

// NewHostStorageReader constructs a storage reader.
func NewHostStorageReader(logger *slog.Logger) *HostStorageReader {
	return &HostStorageReader{logger: logger}
}

type mountEntry struct {
	mountPoint string
	fsType     string
}

func readMounts() ([]mountEntry, error) {
	f, err := os.Open(procMountsPath)
	if err != nil {
		return nil, fmt.Errorf("reader: open %s: %w", procMountsPath, err)
	}
	defer f.Close()

	var entries []mountEntry

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}

		entries = append(entries, mountEntry{mountPoint: fields[1], fsType: fields[2]})
	}

	return entries, scanner.Err()
}

func shouldIncludeMount(e mountEntry) bool {
	if _, excluded := storageExcludedFSTypes[e.fsType]; excluded {
		return false
	}

	if _, excluded := storageExcludedExact[e.mountPoint]; excluded {
		return false
	}

	for _, prefix := range storageExcludedPrefixes {
		if strings.HasPrefix(e.mountPoint, prefix) {
			return false
		}
	}

	return true
}

// StorageInfo returns one entry per included mounted filesystem.
func (r *HostStorageReader) StorageInfo(ctx context.Context) ([]model.StorageInfo, error) {
	entries, err := readMounts()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})

	var infos []model.StorageInfo

	index := 0

	for _, e := range entries {
		if !shouldIncludeMount(e) {
			continue
		}

		if _, dup := seen[e.mountPoint]; dup {
			continue
		}

		seen[e.mountPoint] = struct{}{}

		var stat unix.Statfs_t
		if err := unix.Statfs(e.mountPoint, &stat); err != nil {
			r.logger.Warn("statfs failed", "mount_point", e.mountPoint, "err", err)

			continue
		}

		total := stat.Blocks * uint64(stat.Bsize)
		available := stat.Bavail * uint64(stat.Bsize)

		infos = append(infos, model.StorageInfo{
			MountPoint:     e.mountPoint,
			TotalBytes:     total,
			AvailableBytes: available,
			Index:          index,
		})
		index++
	}

	return infos, nil
}
