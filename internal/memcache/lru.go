package memcache

import (
	"container/list"
	"time"

	"github.com/Borislavv/go-tier-cache/config"
)

// lruOnInsertUnlocked - is unsafe without c.mu due to it mutates the list.
func (c *Cache[K, V]) lruOnInsertUnlocked(e *entry[K, V]) {
	c.items[e.key] = c.lru.PushFront(e)
	c.cost += e.cost
	if e.expireAt != 0 {
		c.ttls++
	}
}

// lruOnAccessUnlocked - is unsafe without c.mu due to it mutates the list.
func (c *Cache[K, V]) lruOnAccessUnlocked(el *list.Element, now int64) {
	el.Value.(*entry[K, V]).lastAccess = now
	c.lru.MoveToFront(el)
}

// lruOnDeleteUnlocked - is unsafe without c.mu due to it mutates the list.
func (c *Cache[K, V]) lruOnDeleteUnlocked(el *list.Element) *entry[K, V] {
	e := c.lru.Remove(el).(*entry[K, V])
	delete(c.items, e.key)
	c.cost -= e.cost
	if e.expireAt != 0 {
		c.ttls--
	}
	return e
}

// lruPopTailUnlocked removes the least recently used entry.
func (c *Cache[K, V]) lruPopTailUnlocked() (*entry[K, V], bool) {
	el := c.lru.Back()
	if el == nil {
		return nil, false
	}
	return c.lruOnDeleteUnlocked(el), true
}

func (c *Cache[K, V]) lruPeekTailUnlocked() (*entry[K, V], bool) {
	el := c.lru.Back()
	if el == nil {
		return nil, false
	}
	return el.Value.(*entry[K, V]), true
}

func (c *Cache[K, V]) expiredUnlocked(e *entry[K, V], now int64) bool {
	if e.expireAt != 0 && now > e.expireAt {
		return true
	}
	age := c.ageLimit.Load()
	return time.Duration(age) != config.NoAgeLimit && now-e.lastAccess > age
}

// evictOverLimitsUnlocked pops tail entries until count and cost fit.
func (c *Cache[K, V]) evictOverLimitsUnlocked(victims []*entry[K, V]) []*entry[K, V] {
	countLimit, costLimit := c.countLimit.Load(), c.costLimit.Load()
	for uint64(c.lru.Len()) > countLimit || c.cost > costLimit {
		e, ok := c.lruPopTailUnlocked()
		if !ok {
			break
		}
		c.counters.evicted.Add(1)
		victims = append(victims, e)
	}
	return victims
}
