package diskcache

import "sync/atomic"

type diskCounters struct {
	hits         atomic.Int64
	misses       atomic.Int64
	writes       atomic.Int64
	writeErrors  atomic.Int64
	trimPasses   atomic.Int64
	trimmedItems atomic.Int64
}

func newDiskCounters() *diskCounters {
	return &diskCounters{
		hits:         atomic.Int64{},
		misses:       atomic.Int64{},
		writes:       atomic.Int64{},
		writeErrors:  atomic.Int64{},
		trimPasses:   atomic.Int64{},
		trimmedItems: atomic.Int64{},
	}
}

// Metrics is a snapshot of cumulative counters.
type Metrics struct {
	Hits         int64
	Misses       int64
	Writes       int64
	WriteErrors  int64
	TrimPasses   int64
	TrimmedItems int64
}

func (c *diskCounters) snapshot() Metrics {
	return Metrics{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Writes:       c.writes.Load(),
		WriteErrors:  c.writeErrors.Load(),
		TrimPasses:   c.trimPasses.Load(),
		TrimmedItems: c.trimmedItems.Load(),
	}
}
