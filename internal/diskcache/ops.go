package diskcache

import (
	"errors"
	"math"
	"time"

	"github.com/Borislavv/go-tier-cache/config"
	"github.com/Borislavv/go-tier-cache/internal/storage"
)

// Contains reports whether key is stored and not older than the age limit.
func (c *Cache) Contains(key string) (ok bool, err error) {
	if xerr := c.exec(func() { ok, err = c.contains(key) }); xerr != nil {
		return false, xerr
	}
	return ok, err
}

// Get returns the entry of key or ErrNotFound.
func (c *Cache) Get(key string) (entry *Entry, err error) {
	if xerr := c.exec(func() { entry, err = c.get(key) }); xerr != nil {
		return nil, xerr
	}
	return entry, err
}

// GetValue is Get without metadata.
func (c *Cache) GetValue(key string) ([]byte, error) {
	entry, err := c.Get(key)
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

// GetInfo returns the entry of key without its value and without marking it accessed.
func (c *Cache) GetInfo(key string) (entry *Entry, err error) {
	if xerr := c.exec(func() {
		var rec *storage.Record
		if rec, err = c.engine.GetInfo(key); err == nil {
			entry = toEntry(rec)
		}
	}); xerr != nil {
		return nil, xerr
	}
	return entry, err
}

// Set stores value with optional extra data. Small values are kept inline,
// large ones in files named after the key.
func (c *Cache) Set(key string, value, extra []byte) (err error) {
	if xerr := c.exec(func() { err = c.set(key, value, "", extra) }); xerr != nil {
		return xerr
	}
	return err
}

// SetFile stores value in a loose file with the given name regardless of size.
func (c *Cache) SetFile(key string, value []byte, filename string, extra []byte) (err error) {
	if xerr := c.exec(func() { err = c.set(key, value, filename, extra) }); xerr != nil {
		return xerr
	}
	return err
}

// Remove deletes key. Removing a missing key is not an error.
func (c *Cache) Remove(key string) (err error) {
	if xerr := c.exec(func() { err = c.engine.Remove(key) }); xerr != nil {
		return xerr
	}
	return err
}

// RemoveAll drops every entry. Calling it on an empty cache is a no-op.
func (c *Cache) RemoveAll() (err error) {
	if xerr := c.exec(func() { err = c.engine.RemoveAll() }); xerr != nil {
		return xerr
	}
	return err
}

// RemoveAllWithProgress drops every entry batch by batch and reports progress
// from the worker goroutine. The progress func must not call into the cache.
func (c *Cache) RemoveAllWithProgress(progress func(removed, total int)) (err error) {
	if xerr := c.exec(func() { err = c.engine.RemoveAllWithProgress(progress) }); xerr != nil {
		return xerr
	}
	return err
}

func (c *Cache) TotalCount() (n int64, err error) {
	if xerr := c.exec(func() { n, err = c.engine.Count() }); xerr != nil {
		return 0, xerr
	}
	return n, err
}

// TotalCost returns the sum of stored payload sizes in bytes.
func (c *Cache) TotalCost() (n int64, err error) {
	if xerr := c.exec(func() { n, err = c.engine.Size() }); xerr != nil {
		return 0, xerr
	}
	return n, err
}

// TrimToCount removes least recently used entries until at most limit remain.
func (c *Cache) TrimToCount(limit config.Limit) (err error) {
	if xerr := c.exec(func() { err = c.trimToCount(limit) }); xerr != nil {
		return xerr
	}
	return err
}

// TrimToCost removes least recently used entries until their total size is at most limit.
func (c *Cache) TrimToCost(limit config.Limit) (err error) {
	if xerr := c.exec(func() { err = c.trimToCost(limit) }); xerr != nil {
		return xerr
	}
	return err
}

// TrimToAge removes entries not accessed within age.
func (c *Cache) TrimToAge(age time.Duration) (err error) {
	if xerr := c.exec(func() { err = c.trimToAge(age) }); xerr != nil {
		return xerr
	}
	return err
}

// TrimToFreeSpace removes least recently used entries until the volume has at
// least target free bytes, the cache is empty, or a round frees nothing.
func (c *Cache) TrimToFreeSpace(target uint64) (err error) {
	if xerr := c.exec(func() { err = c.trimToFreeSpace(target) }); xerr != nil {
		return xerr
	}
	return err
}

func (c *Cache) contains(key string) (bool, error) {
	rec, err := c.engine.GetInfo(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if c.expired(rec) {
		return false, c.engine.Remove(key)
	}
	return true, nil
}

func (c *Cache) get(key string) (*Entry, error) {
	if c.AgeLimit() != config.NoAgeLimit {
		if ok, err := c.contains(key); err != nil || !ok {
			c.counters.misses.Add(1)
			if err == nil {
				err = ErrNotFound
			}
			return nil, err
		}
	}

	rec, err := c.engine.Get(key)
	if err != nil {
		c.counters.misses.Add(1)
		return nil, err
	}
	c.counters.hits.Add(1)
	return toEntry(rec), nil
}

func (c *Cache) set(key string, value []byte, filename string, extra []byte) error {
	c.counters.writes.Add(1)
	if err := c.engine.Save(key, value, filename, extra); err != nil {
		c.counters.writeErrors.Add(1)
		return err
	}
	return nil
}

func (c *Cache) expired(rec *storage.Record) bool {
	age := c.AgeLimit()
	return age != config.NoAgeLimit && c.now().Sub(rec.AccessTime) > age
}

func (c *Cache) trimToCount(limit config.Limit) error {
	if limit.IsUnlimited() {
		return nil
	}
	n, err := c.engine.TrimToCount(clampInt64(uint64(limit)))
	c.counters.trimmedItems.Add(int64(n))
	return err
}

func (c *Cache) trimToCost(limit config.Limit) error {
	if limit.IsUnlimited() {
		return nil
	}
	n, err := c.engine.TrimToSize(clampInt64(uint64(limit)))
	c.counters.trimmedItems.Add(int64(n))
	return err
}

func (c *Cache) trimToAge(age time.Duration) error {
	if age == config.NoAgeLimit {
		return nil
	}
	if age <= 0 {
		return c.engine.RemoveAll()
	}
	n, err := c.engine.RemoveAccessedBefore(c.now().Add(-age))
	c.counters.trimmedItems.Add(int64(n))
	return err
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

func toEntry(rec *storage.Record) *Entry {
	return &Entry{
		Key:        rec.Key,
		Value:      rec.Value,
		Extra:      rec.Extra,
		Filename:   rec.Filename,
		Size:       rec.Size,
		ModTime:    rec.ModTime,
		AccessTime: rec.AccessTime,
	}
}
