package memcache

import (
	"container/list"
	"time"

	"github.com/Borislavv/go-tier-cache/config"
)

// trimBatch bounds how many entries a trim pops per lock acquisition.
const trimBatch = 256

// Get returns the value of key and marks it most recently used.
// An entry older than the age limit or past its expiry is removed and reported as missing.
func (c *Cache[K, V]) Get(key K) (value V, ok bool) {
	now := c.now().UnixNano()

	c.mu.Lock()
	el, found := c.items[key]
	if !found {
		c.mu.Unlock()
		c.counters.misses.Add(1)
		return value, false
	}
	e := el.Value.(*entry[K, V])
	if c.expiredUnlocked(e, now) {
		c.lruOnDeleteUnlocked(el)
		c.mu.Unlock()

		c.counters.misses.Add(1)
		c.counters.expired.Add(1)
		c.release([]*entry[K, V]{e})
		return value, false
	}
	c.lruOnAccessUnlocked(el, now)
	value = e.value
	c.mu.Unlock()

	c.counters.hits.Add(1)
	return value, true
}

// Contains reports whether key is present without touching its LRU position.
func (c *Cache[K, V]) Contains(key K) bool {
	now := c.now().UnixNano()

	c.mu.Lock()
	el, found := c.items[key]
	if !found {
		c.mu.Unlock()
		return false
	}
	e := el.Value.(*entry[K, V])
	if !c.expiredUnlocked(e, now) {
		c.mu.Unlock()
		return true
	}
	c.lruOnDeleteUnlocked(el)
	c.mu.Unlock()

	c.counters.expired.Add(1)
	c.release([]*entry[K, V]{e})
	return false
}

// Set stores value with zero cost.
func (c *Cache[K, V]) Set(key K, value V) {
	c.set(key, value, 0, 0)
}

// SetWithCost stores value and evicts least recently used entries while the
// count or cost limit is exceeded.
func (c *Cache[K, V]) SetWithCost(key K, value V, cost uint64) {
	c.set(key, value, cost, 0)
}

// SetWithTTL is SetWithCost with a per-entry expiry. A non-positive ttl means no expiry.
func (c *Cache[K, V]) SetWithTTL(key K, value V, cost uint64, ttl time.Duration) {
	var expireAt int64
	if ttl > 0 {
		expireAt = c.now().Add(ttl).UnixNano()
	}
	c.set(key, value, cost, expireAt)
}

func (c *Cache[K, V]) set(key K, value V, cost uint64, expireAt int64) {
	now := c.now().UnixNano()

	var victims []*entry[K, V]
	c.mu.Lock()
	if el, found := c.items[key]; found {
		// the replaced value leaves the cache as well
		old := c.lruOnDeleteUnlocked(el)
		victims = append(victims, old)
	}
	c.lruOnInsertUnlocked(&entry[K, V]{
		key:        key,
		value:      value,
		cost:       cost,
		lastAccess: now,
		expireAt:   expireAt,
	})
	victims = c.evictOverLimitsUnlocked(victims)
	c.mu.Unlock()

	c.release(victims)
}

// Add stores value only when key is absent or expired and reports whether it did.
// A live entry keeps its value and LRU position.
func (c *Cache[K, V]) Add(key K, value V, cost uint64) bool {
	now := c.now().UnixNano()

	var victims []*entry[K, V]
	c.mu.Lock()
	if el, found := c.items[key]; found {
		if !c.expiredUnlocked(el.Value.(*entry[K, V]), now) {
			c.mu.Unlock()
			return false
		}
		victims = append(victims, c.lruOnDeleteUnlocked(el))
		c.counters.expired.Add(1)
	}
	c.lruOnInsertUnlocked(&entry[K, V]{key: key, value: value, cost: cost, lastAccess: now})
	victims = c.evictOverLimitsUnlocked(victims)
	c.mu.Unlock()

	c.release(victims)
	return true
}

// Remove deletes key and reports whether it was present.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	el, found := c.items[key]
	if !found {
		c.mu.Unlock()
		return false
	}
	e := c.lruOnDeleteUnlocked(el)
	c.mu.Unlock()

	c.release([]*entry[K, V]{e})
	return true
}

// RemoveAll swaps in an empty map and releases the old contents outside the lock.
func (c *Cache[K, V]) RemoveAll() {
	c.removeAll()
}

func (c *Cache[K, V]) removeAll() int {
	c.mu.Lock()
	old := c.lru
	c.items = make(map[K]*list.Element)
	c.lru = list.New()
	c.cost = 0
	c.ttls = 0
	c.mu.Unlock()

	if old.Len() == 0 {
		return 0
	}
	victims := make([]*entry[K, V], 0, old.Len())
	for el := old.Front(); el != nil; el = el.Next() {
		victims = append(victims, el.Value.(*entry[K, V]))
	}
	c.release(victims)
	return len(victims)
}

// TotalCount returns the number of resident entries, expired ones included.
func (c *Cache[K, V]) TotalCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(c.lru.Len())
}

func (c *Cache[K, V]) TotalCost() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cost
}

// TrimToCount removes least recently used entries until at most limit remain.
func (c *Cache[K, V]) TrimToCount(limit config.Limit) int {
	if limit.IsUnlimited() {
		return 0
	}
	if limit == 0 {
		return c.removeAllCounted()
	}
	return c.trimWhile(func() bool { return uint64(c.lru.Len()) > uint64(limit) })
}

// TrimToCost removes least recently used entries until their total cost is at most limit.
func (c *Cache[K, V]) TrimToCost(limit config.Limit) int {
	if limit.IsUnlimited() {
		return 0
	}
	if limit == 0 {
		return c.removeAllCounted()
	}
	return c.trimWhile(func() bool { return c.cost > uint64(limit) })
}

// TrimToAge removes entries not accessed within age. A non-positive age empties the cache.
func (c *Cache[K, V]) TrimToAge(age time.Duration) int {
	if age == config.NoAgeLimit {
		return 0
	}
	if age <= 0 {
		return c.removeAllCounted()
	}
	deadline := c.now().Add(-age).UnixNano()
	return c.trimWhile(func() bool {
		e, ok := c.lruPeekTailUnlocked()
		return ok && e.lastAccess < deadline
	})
}

// trimWhile pops tail entries while over() holds, in batches so readers are not
// starved, and releases every batch outside the lock.
func (c *Cache[K, V]) trimWhile(over func() bool) (trimmed int) {
	for {
		c.mu.Lock()
		batch := make([]*entry[K, V], 0, 8)
		for len(batch) < trimBatch && over() {
			e, ok := c.lruPopTailUnlocked()
			if !ok {
				break
			}
			batch = append(batch, e)
		}
		c.mu.Unlock()

		trimmed += len(batch)
		c.counters.evicted.Add(int64(len(batch)))
		c.release(batch)

		if len(batch) < trimBatch {
			return trimmed
		}
	}
}

// trimExpired drops entries whose own expiry has passed. The scan is linear
// and skipped while no entry carries an expiry.
func (c *Cache[K, V]) trimExpired() int {
	now := c.now().UnixNano()

	c.mu.Lock()
	if c.ttls == 0 {
		c.mu.Unlock()
		return 0
	}
	var victims []*entry[K, V]
	for el := c.lru.Back(); el != nil; {
		prev := el.Prev()
		if e := el.Value.(*entry[K, V]); e.expireAt != 0 && now > e.expireAt {
			victims = append(victims, c.lruOnDeleteUnlocked(el))
		}
		el = prev
	}
	c.mu.Unlock()

	c.counters.expired.Add(int64(len(victims)))
	c.release(victims)
	return len(victims)
}

func (c *Cache[K, V]) removeAllCounted() int {
	n := c.removeAll()
	c.counters.evicted.Add(int64(n))
	return n
}
