package aggregator

import (
	"time"

	"github.com/accelmetrics/all-smi/pkg/model"
)

// staleAfterTicks is how many consecutive ticks a previously-seen entity
// is preserved after it stops appearing in a scrape, per spec §4.6: "a
// device absent in the latest scrape but present historically is
// preserved for one tick, then dropped."
const staleAfterTicks = 1

type gpuKey struct{ hostname, uuid string }

type cpuKey struct {
	hostname string
	index    int
}

type storageKey struct{ hostname, mountPoint string }

type memoryKey struct{ hostname string }

// entry wraps a merged value with the tick it was last refreshed on, so
// Merger can drop anything that missed staleAfterTicks consecutive
// merges.
type entry[T any] struct {
	value    T
	lastTick int64
}

// Merger accumulates per-endpoint parsed entities across ticks into one
// ClusterSnapshot, applying the merge keys and one-tick staleness grace
// period spec §4.6 requires.
type Merger struct {
	tick int64

	gpus    map[gpuKey]*entry[model.GpuInfo]
	cpus    map[cpuKey]*entry[model.CpuInfo]
	memory  map[memoryKey]*entry[model.MemoryInfo]
	storage map[storageKey]*entry[model.StorageInfo]
}

// NewMerger returns an empty Merger.
func NewMerger() *Merger {
	return &Merger{
		gpus:    map[gpuKey]*entry[model.GpuInfo]{},
		cpus:    map[cpuKey]*entry[model.CpuInfo]{},
		memory:  map[memoryKey]*entry[model.MemoryInfo]{},
		storage: map[storageKey]*entry[model.StorageInfo]{},
	}
}

// BeginTick advances the merge clock; call once before feeding the
// endpoints scraped during this tick.
func (m *Merger) BeginTick() {
	m.tick++
}

// MergeEndpoint folds one endpoint's freshly parsed entities in at the
// current tick.
func (m *Merger) MergeEndpoint(hostname string, gpus []model.GpuInfo, cpus []model.CpuInfo, mem []model.MemoryInfo, disks []model.StorageInfo) {
	for _, g := range gpus {
		k := gpuKey{hostname: hostname, uuid: g.UUID}
		m.gpus[k] = &entry[model.GpuInfo]{value: g, lastTick: m.tick}
	}

	for _, c := range cpus {
		k := cpuKey{hostname: hostname, index: c.Index}
		m.cpus[k] = &entry[model.CpuInfo]{value: c, lastTick: m.tick}
	}

	for _, mi := range mem {
		k := memoryKey{hostname: hostname}
		m.memory[k] = &entry[model.MemoryInfo]{value: mi, lastTick: m.tick}
	}

	// Storage entries from multiple sources for the same (hostname,
	// mount_point) collapse to the last-seen one, which this simple
	// last-write-wins map assignment already gives us.
	for _, s := range disks {
		k := storageKey{hostname: hostname, mountPoint: s.MountPoint}
		m.storage[k] = &entry[model.StorageInfo]{value: s, lastTick: m.tick}
	}
}

// Snapshot renders the merged view as of the current tick, dropping any
// entity whose lastTick is more than staleAfterTicks behind, and
// returns it alongside the connection map passed in by the caller.
func (m *Merger) Snapshot(connections map[string]model.ConnectionStatus) *model.ClusterSnapshot {
	out := &model.ClusterSnapshot{
		Time:        time.Now(),
		Connections: connections,
	}

	for k, e := range m.gpus {
		if m.tick-e.lastTick > staleAfterTicks {
			delete(m.gpus, k)

			continue
		}

		out.GPUs = append(out.GPUs, e.value)
	}

	for k, e := range m.cpus {
		if m.tick-e.lastTick > staleAfterTicks {
			delete(m.cpus, k)

			continue
		}

		out.CPUs = append(out.CPUs, e.value)
	}

	for k, e := range m.memory {
		if m.tick-e.lastTick > staleAfterTicks {
			delete(m.memory, k)

			continue
		}

		out.Memory = append(out.Memory, e.value)
	}

	for k, e := range m.storage {
		if m.tick-e.lastTick > staleAfterTicks {
			delete(m.storage, k)

			continue
		}

		out.Storage = append(out.Storage, e.value)
	}

	return out
}
