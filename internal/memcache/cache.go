package memcache

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Borislavv/go-tier-cache/config"
	"github.com/Borislavv/go-tier-cache/internal/shared/cachedtime"
	"github.com/Borislavv/go-tier-cache/internal/shared/pool"
	"github.com/Borislavv/go-tier-cache/pressure"
)

type entry[K comparable, V any] struct {
	key        K
	value      V
	cost       uint64
	lastAccess int64 // unix nano
	expireAt   int64 // unix nano, 0 means never
}

// Cache is an LRU map guarded by one mutex. The list front is the most
// recently used entry. Removed values are handed to the releaser after the
// lock is dropped.
type Cache[K comparable, V any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu    sync.Mutex
	items map[K]*list.Element
	lru   *list.List
	cost  uint64
	ttls  int // entries with expireAt set

	countLimit atomic.Uint64
	costLimit  atomic.Uint64
	ageLimit   atomic.Int64

	removeAllOnMemoryWarning atomic.Bool
	removeAllOnBackground    atomic.Bool
	releaseAsync             atomic.Bool

	releaser          func(K, V)
	pool              *pool.Pool
	source            pressure.Source
	unsubscribe       func()
	onMemoryWarning   func()
	onEnterBackground func()
	now               func() time.Time

	counters  *memCounters
	trimmer   *trimmer
	closeOnce sync.Once
}

type Option[K comparable, V any] func(*Cache[K, V])

// WithReleaser sets the func which receives every value leaving the cache.
func WithReleaser[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *Cache[K, V]) { c.releaser = fn }
}

// WithPool sets the pool used for async release. Defaults to pool.Shared().
func WithPool[K comparable, V any](p *pool.Pool) Option[K, V] {
	return func(c *Cache[K, V]) { c.pool = p }
}

// WithPressureSource subscribes the cache to host memory and lifecycle signals.
func WithPressureSource[K comparable, V any](src pressure.Source) Option[K, V] {
	return func(c *Cache[K, V]) { c.source = src }
}

func WithOnMemoryWarning[K comparable, V any](fn func()) Option[K, V] {
	return func(c *Cache[K, V]) { c.onMemoryWarning = fn }
}

func WithOnEnterBackground[K comparable, V any](fn func()) Option[K, V] {
	return func(c *Cache[K, V]) { c.onEnterBackground = fn }
}

func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) { c.now = now }
}

// New creates a memory cache. A nil cfg means config.DefaultMemory().
func New[K comparable, V any](ctx context.Context, cfg *config.MemoryCfg, logger *slog.Logger, opts ...Option[K, V]) *Cache[K, V] {
	if !cfg.Enabled() {
		cfg = config.DefaultMemory()
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache[K, V]{
		logger:   logger.With("component", "memory_cache"),
		items:    make(map[K]*list.Element),
		lru:      list.New(),
		now:      cachedtime.Now,
		counters: newMemCounters(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pool == nil {
		c.pool = pool.Shared()
	}

	c.SetCountLimit(cfg.CountLimit)
	c.SetCostLimit(cfg.CostLimit)
	c.SetAgeLimit(cfg.AgeLimit)
	c.removeAllOnMemoryWarning.Store(cfg.RemoveAllOnMemoryWarning)
	c.removeAllOnBackground.Store(cfg.RemoveAllOnBackground)
	c.releaseAsync.Store(cfg.ReleaseAsync)

	if c.source != nil {
		c.unsubscribe = c.source.Subscribe(c)
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.trimmer = newTrimmer(c.ctx, cfg.AutoTrimInterval, c.logger, c.trimPass)
	return c
}

// Close stops the trimmer, leaves the pressure source and releases every value.
// The cache stays usable afterwards but is no longer trimmed in background.
func (c *Cache[K, V]) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.trimmer.wait()
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		c.RemoveAll()
		c.logger.Info("memory cache is closed")
	})
	return nil
}

func (c *Cache[K, V]) SetCountLimit(limit config.Limit) { c.countLimit.Store(uint64(limit)) }
func (c *Cache[K, V]) SetCostLimit(limit config.Limit)  { c.costLimit.Store(uint64(limit)) }

// SetAgeLimit sets the maximum time since last access. Non-positive disables the limit.
func (c *Cache[K, V]) SetAgeLimit(age time.Duration) {
	if age <= 0 {
		age = config.NoAgeLimit
	}
	c.ageLimit.Store(int64(age))
}

func (c *Cache[K, V]) SetAutoTrimInterval(interval time.Duration) {
	c.trimmer.setInterval(interval)
}

func (c *Cache[K, V]) SetRemoveAllOnMemoryWarning(v bool) { c.removeAllOnMemoryWarning.Store(v) }
func (c *Cache[K, V]) SetRemoveAllOnBackground(v bool)    { c.removeAllOnBackground.Store(v) }
func (c *Cache[K, V]) SetReleaseAsync(v bool)             { c.releaseAsync.Store(v) }

func (c *Cache[K, V]) CountLimit() config.Limit        { return config.Limit(c.countLimit.Load()) }
func (c *Cache[K, V]) CostLimit() config.Limit         { return config.Limit(c.costLimit.Load()) }
func (c *Cache[K, V]) AgeLimit() time.Duration         { return time.Duration(c.ageLimit.Load()) }
func (c *Cache[K, V]) AutoTrimInterval() time.Duration { return c.trimmer.interval() }

func (c *Cache[K, V]) Metrics() Metrics {
	return c.counters.snapshot()
}

// release hands removed entries to the releaser, inline or on the pool.
// Must be called without c.mu held.
func (c *Cache[K, V]) release(victims []*entry[K, V]) {
	if c.releaser == nil || len(victims) == 0 {
		return
	}
	fn := func() {
		for _, e := range victims {
			c.releaser(e.key, e.value)
		}
	}
	if c.releaseAsync.Load() {
		c.pool.Go(fn)
		return
	}
	fn()
}
