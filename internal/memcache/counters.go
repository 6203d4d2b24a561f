package memcache

import "sync/atomic"

type memCounters struct {
	hits           atomic.Int64
	misses         atomic.Int64
	evicted        atomic.Int64 // removed by limits and trims
	expired        atomic.Int64 // removed on read or sweep because of age or ttl
	trimPasses     atomic.Int64
	memoryWarnings atomic.Int64
	backgrounds    atomic.Int64
}

func newMemCounters() *memCounters {
	return &memCounters{
		hits:           atomic.Int64{},
		misses:         atomic.Int64{},
		evicted:        atomic.Int64{},
		expired:        atomic.Int64{},
		trimPasses:     atomic.Int64{},
		memoryWarnings: atomic.Int64{},
		backgrounds:    atomic.Int64{},
	}
}

type Metrics struct {
	Hits           int64
	Misses         int64
	Evicted        int64
	Expired        int64
	TrimPasses     int64
	MemoryWarnings int64
	Backgrounds    int64
}

func (c *memCounters) snapshot() Metrics {
	return Metrics{
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		Evicted:        c.evicted.Load(),
		Expired:        c.expired.Load(),
		TrimPasses:     c.trimPasses.Load(),
		MemoryWarnings: c.memoryWarnings.Load(),
		Backgrounds:    c.backgrounds.Load(),
	}
}
