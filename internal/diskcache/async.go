package diskcache

import (
	"bytes"
	"time"

	"github.com/Borislavv/go-tier-cache/config"
)

// Async variants return at once. The callback runs on the callback worker
// after the call returned, in submission order. A nil callback is allowed.

func (c *Cache) ContainsAsync(key string, fn func(ok bool, err error)) {
	c.submit(func() func() {
		ok, err := c.contains(key)
		return bind2(fn, ok, err)
	}, bind2(fn, false, ErrClosed))
}

func (c *Cache) GetAsync(key string, fn func(entry *Entry, err error)) {
	c.submit(func() func() {
		entry, err := c.get(key)
		return bind2(fn, entry, err)
	}, bind2(fn, nil, ErrClosed))
}

// SetAsync copies value and extra before returning, so the caller may reuse them.
func (c *Cache) SetAsync(key string, value, extra []byte, fn func(err error)) {
	value, extra = bytes.Clone(value), bytes.Clone(extra)
	c.submit(func() func() {
		return bind1(fn, c.set(key, value, "", extra))
	}, bind1(fn, ErrClosed))
}

func (c *Cache) SetFileAsync(key string, value []byte, filename string, extra []byte, fn func(err error)) {
	value, extra = bytes.Clone(value), bytes.Clone(extra)
	c.submit(func() func() {
		return bind1(fn, c.set(key, value, filename, extra))
	}, bind1(fn, ErrClosed))
}

func (c *Cache) RemoveAsync(key string, fn func(err error)) {
	c.submit(func() func() {
		return bind1(fn, c.engine.Remove(key))
	}, bind1(fn, ErrClosed))
}

func (c *Cache) RemoveAllAsync(fn func(err error)) {
	c.submit(func() func() {
		return bind1(fn, c.engine.RemoveAll())
	}, bind1(fn, ErrClosed))
}

// RemoveAllWithProgressAsync reports progress and the final result on the callback worker.
func (c *Cache) RemoveAllWithProgressAsync(progress func(removed, total int), fn func(err error)) {
	c.submit(func() func() {
		var report func(removed, total int)
		if progress != nil {
			report = func(removed, total int) {
				if !c.callbacks.Push(func() { progress(removed, total) }) {
					go progress(removed, total)
				}
			}
		}
		return bind1(fn, c.engine.RemoveAllWithProgress(report))
	}, bind1(fn, ErrClosed))
}

func (c *Cache) TotalCountAsync(fn func(n int64, err error)) {
	c.submit(func() func() {
		n, err := c.engine.Count()
		return bind2(fn, n, err)
	}, bind2(fn, 0, ErrClosed))
}

func (c *Cache) TotalCostAsync(fn func(n int64, err error)) {
	c.submit(func() func() {
		n, err := c.engine.Size()
		return bind2(fn, n, err)
	}, bind2(fn, 0, ErrClosed))
}

func (c *Cache) TrimToCountAsync(limit config.Limit, fn func(err error)) {
	c.submit(func() func() {
		return bind1(fn, c.trimToCount(limit))
	}, bind1(fn, ErrClosed))
}

func (c *Cache) TrimToCostAsync(limit config.Limit, fn func(err error)) {
	c.submit(func() func() {
		return bind1(fn, c.trimToCost(limit))
	}, bind1(fn, ErrClosed))
}

func (c *Cache) TrimToAgeAsync(age time.Duration, fn func(err error)) {
	c.submit(func() func() {
		return bind1(fn, c.trimToAge(age))
	}, bind1(fn, ErrClosed))
}

func bind1[A any](fn func(A), a A) func() {
	if fn == nil {
		return nil
	}
	return func() { fn(a) }
}

func bind2[A, B any](fn func(A, B), a A, b B) func() {
	if fn == nil {
		return nil
	}
	return func() { fn(a, b) }
}
