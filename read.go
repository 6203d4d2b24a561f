package tiercache

import (
	"errors"

	"github.com/Borislavv/go-tier-cache/internal/diskcache"
)

var (
	ErrNotFound     = diskcache.ErrNotFound
	ErrDiskDisabled = errors.New("disk tier is disabled")
)

// Get returns v from memory or, on a miss, from disk.
func (c *Cache[V]) Get(key string) (V, bool) {
	v, _, ok := c.GetWithType(key, TypeAll)
	return v, ok
}

// GetWithType looks key up in the requested tiers, memory first, and reports
// where the value came from. A disk hit is copied to memory only when the
// memory tier was requested too.
func (c *Cache[V]) GetWithType(key string, tier Type) (v V, from Type, ok bool) {
	if key == "" {
		return v, TypeNone, false
	}
	if v, ok = c.fromMemory(key, tier); ok {
		return v, TypeMemory, true
	}
	return c.fromDisk(key, tier)
}

// GetAsync checks memory on the calling goroutine and disk on the pool.
// fn is always called on another goroutine.
func (c *Cache[V]) GetAsync(key string, tier Type, fn func(v V, from Type, ok bool)) {
	if fn == nil {
		return
	}
	if v, ok := c.fromMemory(key, tier); ok && key != "" {
		c.deliver(func() { fn(v, TypeMemory, true) })
		return
	}
	c.deliver(func() {
		var (
			v    V
			from Type
			ok   bool
		)
		if key != "" {
			v, from, ok = c.fromDisk(key, tier)
		}
		fn(v, from, ok)
	})
}

// GetData returns the bytes stored on disk for key without decoding them.
func (c *Cache[V]) GetData(key string) ([]byte, error) {
	if c.disk == nil {
		return nil, ErrDiskDisabled
	}
	return c.disk.GetValue(key)
}

// GetDataAsync is GetData with the result delivered on the disk callback worker.
func (c *Cache[V]) GetDataAsync(key string, fn func(data []byte, err error)) {
	if fn == nil {
		return
	}
	if c.disk == nil {
		c.deliver(func() { fn(nil, ErrDiskDisabled) })
		return
	}
	c.disk.GetAsync(key, func(entry *diskcache.Entry, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(entry.Value, nil)
	})
}

func (c *Cache[V]) Contains(key string) bool {
	return c.ContainsWithType(key, TypeAll)
}

// ContainsWithType reports whether any requested tier holds key. Disk I/O
// errors are logged and reported as absent.
func (c *Cache[V]) ContainsWithType(key string, tier Type) bool {
	if key == "" {
		return false
	}
	if tier.Has(TypeMemory) && c.memory != nil && c.memory.Contains(key) {
		return true
	}
	if !tier.Has(TypeDisk) || c.disk == nil {
		return false
	}
	ok, err := c.disk.Contains(key)
	if err != nil {
		c.logger.Error("disk tier contains failed", "key", key, "err", err)
		return false
	}
	return ok
}

// ContainsAsync is ContainsWithType with the result delivered on another goroutine.
func (c *Cache[V]) ContainsAsync(key string, tier Type, fn func(ok bool)) {
	if fn == nil {
		return
	}
	if key != "" && tier.Has(TypeMemory) && c.memory != nil && c.memory.Contains(key) {
		c.deliver(func() { fn(true) })
		return
	}
	if key == "" || !tier.Has(TypeDisk) || c.disk == nil {
		c.deliver(func() { fn(false) })
		return
	}
	c.disk.ContainsAsync(key, func(ok bool, err error) {
		if err != nil {
			c.logger.Error("disk tier contains failed", "key", key, "err", err)
		}
		fn(ok && err == nil)
	})
}

func (c *Cache[V]) MemoryCount() int64 {
	if c.memory == nil {
		return 0
	}
	return c.memory.TotalCount()
}

func (c *Cache[V]) MemoryCost() uint64 {
	if c.memory == nil {
		return 0
	}
	return c.memory.TotalCost()
}

func (c *Cache[V]) DiskCount() (int64, error) {
	if c.disk == nil {
		return 0, nil
	}
	return c.disk.TotalCount()
}

// DiskCost returns the total size in bytes of the values stored on disk.
func (c *Cache[V]) DiskCost() (int64, error) {
	if c.disk == nil {
		return 0, nil
	}
	return c.disk.TotalCost()
}

func (c *Cache[V]) fromMemory(key string, tier Type) (v V, ok bool) {
	if !tier.Has(TypeMemory) || c.memory == nil {
		return v, false
	}
	return c.memory.Get(key)
}

func (c *Cache[V]) fromDisk(key string, tier Type) (v V, from Type, ok bool) {
	if !tier.Has(TypeDisk) || c.disk == nil {
		return v, TypeNone, false
	}
	if v, ok = c.load(key); !ok {
		return v, TypeNone, false
	}
	if tier.Has(TypeMemory) && c.memory != nil {
		c.memory.Add(key, v, c.cost(v))
	}
	return v, TypeDisk, true
}

type loaded[V any] struct {
	v  V
	ok bool
}

// load reads and decodes key from disk. Concurrent loads of one key share a
// single read. Read and decode failures are logged and count as misses.
func (c *Cache[V]) load(key string) (V, bool) {
	res, _, _ := c.loads.Do(key, func() (any, error) {
		entry, err := c.disk.Get(key)
		if err != nil {
			if !errors.Is(err, diskcache.ErrNotFound) {
				c.logger.Error("disk tier read failed", "key", key, "err", err)
			}
			return loaded[V]{}, nil
		}
		v, err := c.codec.Decode(entry.Value, entry.Extra)
		if err != nil {
			c.logger.Warn("disk tier value is not decodable", "key", key, "err", err)
			return loaded[V]{}, nil
		}
		return loaded[V]{v: v, ok: true}, nil
	})
	l := res.(loaded[V])
	return l.v, l.ok
}
