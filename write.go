package tiercache

import (
	"reflect"
	"time"

	"github.com/Borislavv/go-tier-cache/config"
)

// Set stores v in every enabled tier.
func (c *Cache[V]) Set(key string, v V) error {
	return c.SetWithType(key, v, nil, TypeAll, nil)
}

// SetWithType stores v in the requested tiers. Memory is updated before
// returning, disk in background. raw, when given, is written to disk instead
// of the encoded value. done receives the disk result on another goroutine.
// A nil v removes key from the requested tiers.
func (c *Cache[V]) SetWithType(key string, v V, raw []byte, tier Type, done func(err error)) error {
	if key == "" {
		return ErrEmptyKey
	}
	if isNil(v) {
		c.RemoveWithType(key, tier, done)
		return nil
	}

	toDisk := tier.Has(TypeDisk) && c.disk != nil
	var data, extra []byte
	if toDisk {
		data = raw
		if data == nil {
			var err error
			if data, extra, err = c.codec.Encode(v); err != nil {
				return err
			}
		}
	}

	if tier.Has(TypeMemory) && c.memory != nil {
		c.memory.SetWithCost(key, v, c.cost(v))
	}

	if !toDisk {
		if done != nil {
			c.deliver(func() { done(nil) })
		}
		return nil
	}
	c.disk.SetAsync(key, data, extra, c.logged("write", key, done))
	return nil
}

// SetWithTTL stores v in memory with a per-entry expiry and on disk as usual.
// The disk copy follows the disk age limit only.
func (c *Cache[V]) SetWithTTL(key string, v V, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if isNil(v) {
		c.RemoveWithType(key, TypeAll, nil)
		return nil
	}
	if err := c.SetWithType(key, v, nil, TypeDisk, nil); err != nil {
		return err
	}
	if c.memory != nil {
		c.memory.SetWithTTL(key, v, c.cost(v), ttl)
	}
	return nil
}

func (c *Cache[V]) Remove(key string) {
	c.RemoveWithType(key, TypeAll, nil)
}

// RemoveWithType removes key from memory at once and from disk in background.
func (c *Cache[V]) RemoveWithType(key string, tier Type, done func(err error)) {
	if tier.Has(TypeMemory) && c.memory != nil {
		c.memory.Remove(key)
	}
	if tier.Has(TypeDisk) && c.disk != nil && key != "" {
		c.disk.RemoveAsync(key, c.logged("remove", key, done))
		return
	}
	if done != nil {
		c.deliver(func() { done(nil) })
	}
}

// Clear empties the requested tiers. The disk tier is cleared in background.
func (c *Cache[V]) Clear(tier Type, done func(err error)) {
	c.ClearWithProgress(tier, nil, done)
}

// ClearWithProgress is Clear reporting disk removal progress.
func (c *Cache[V]) ClearWithProgress(tier Type, progress func(removed, total int), done func(err error)) {
	if tier.Has(TypeMemory) && c.memory != nil {
		c.memory.RemoveAll()
	}
	if tier.Has(TypeDisk) && c.disk != nil {
		if progress != nil {
			c.disk.RemoveAllWithProgressAsync(progress, c.logged("clear", "", done))
		} else {
			c.disk.RemoveAllAsync(c.logged("clear", "", done))
		}
		return
	}
	if done != nil {
		c.deliver(func() { done(nil) })
	}
}

// TrimToCount trims memory at once and disk in background.
func (c *Cache[V]) TrimToCount(limit config.Limit) {
	if c.memory != nil {
		c.memory.TrimToCount(limit)
	}
	if c.disk != nil {
		c.disk.TrimToCountAsync(limit, c.logged("trim to count", "", nil))
	}
}

// TrimToCost trims memory at once and disk in background.
// The memory tier counts cost units, the disk tier bytes.
func (c *Cache[V]) TrimToCost(limit config.Limit) {
	if c.memory != nil {
		c.memory.TrimToCost(limit)
	}
	if c.disk != nil {
		c.disk.TrimToCostAsync(limit, c.logged("trim to cost", "", nil))
	}
}

// TrimToAge trims memory at once and disk in background.
func (c *Cache[V]) TrimToAge(age time.Duration) {
	if c.memory != nil {
		c.memory.TrimToAge(age)
	}
	if c.disk != nil {
		c.disk.TrimToAgeAsync(age, c.logged("trim to age", "", nil))
	}
}

// logged wraps a disk callback so failures are logged even without a callback.
func (c *Cache[V]) logged(op, key string, done func(err error)) func(err error) {
	return func(err error) {
		if err != nil {
			c.logger.Error("disk tier "+op+" failed", "key", key, "err", err)
		}
		if done != nil {
			done(err)
		}
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
