package telemetry

import (
	"github.com/Borislavv/go-tier-cache/config"
	"github.com/Borislavv/go-tier-cache/internal/diskcache"
	"github.com/Borislavv/go-tier-cache/internal/memcache"
)

// MemorySource is the part of the memory tier telemetry reads.
type MemorySource interface {
	Metrics() memcache.Metrics
	TotalCount() int64
	TotalCost() uint64
	CostLimit() config.Limit
}

// DiskSource is the part of the disk tier telemetry reads.
type DiskSource interface {
	Metrics() diskcache.Metrics
	TotalCount() (int64, error)
	TotalCost() (int64, error)
	CostLimit() config.Limit
}

type sampler struct {
	memory MemorySource
	disk   DiskSource
}

func newSampler(memory MemorySource, disk DiskSource) sampler {
	return sampler{memory: memory, disk: disk}
}

// snapshot holds cumulative counters (monotonic).
type snapshot struct {
	memHits        uint64
	memMisses      uint64
	memEvicted     uint64
	memExpired     uint64
	memWarnings    uint64
	memBackgrounds uint64

	diskHits         uint64
	diskMisses       uint64
	diskWrites       uint64
	diskWriteErrors  uint64
	diskTrimPasses   uint64
	diskTrimmedItems uint64
}

func (s sampler) snapshot() snapshot {
	var out snapshot
	if s.memory != nil {
		m := s.memory.Metrics()
		out.memHits = uint64(max(m.Hits, 0))
		out.memMisses = uint64(max(m.Misses, 0))
		out.memEvicted = uint64(max(m.Evicted, 0))
		out.memExpired = uint64(max(m.Expired, 0))
		out.memWarnings = uint64(max(m.MemoryWarnings, 0))
		out.memBackgrounds = uint64(max(m.Backgrounds, 0))
	}
	if s.disk != nil {
		d := s.disk.Metrics()
		out.diskHits = uint64(max(d.Hits, 0))
		out.diskMisses = uint64(max(d.Misses, 0))
		out.diskWrites = uint64(max(d.Writes, 0))
		out.diskWriteErrors = uint64(max(d.WriteErrors, 0))
		out.diskTrimPasses = uint64(max(d.TrimPasses, 0))
		out.diskTrimmedItems = uint64(max(d.TrimmedItems, 0))
	}
	return out
}

// deltaSnapshot converts cumulative snapshots to per-interval deltas.
// If counters reset (cur < prev), it treats cur as the delta.
func deltaSnapshot(prev, cur snapshot) snapshot {
	return snapshot{
		memHits:        delta(prev.memHits, cur.memHits),
		memMisses:      delta(prev.memMisses, cur.memMisses),
		memEvicted:     delta(prev.memEvicted, cur.memEvicted),
		memExpired:     delta(prev.memExpired, cur.memExpired),
		memWarnings:    delta(prev.memWarnings, cur.memWarnings),
		memBackgrounds: delta(prev.memBackgrounds, cur.memBackgrounds),

		diskHits:         delta(prev.diskHits, cur.diskHits),
		diskMisses:       delta(prev.diskMisses, cur.diskMisses),
		diskWrites:       delta(prev.diskWrites, cur.diskWrites),
		diskWriteErrors:  delta(prev.diskWriteErrors, cur.diskWriteErrors),
		diskTrimPasses:   delta(prev.diskTrimPasses, cur.diskTrimPasses),
		diskTrimmedItems: delta(prev.diskTrimmedItems, cur.diskTrimmedItems),
	}
}

func delta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}
