package tiercache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Borislavv/go-tier-cache/config"
	"github.com/Borislavv/go-tier-cache/internal/diskcache"
	"github.com/Borislavv/go-tier-cache/internal/memcache"
	"github.com/Borislavv/go-tier-cache/internal/shared/cachedtime"
	"github.com/Borislavv/go-tier-cache/internal/shared/pool"
	"github.com/Borislavv/go-tier-cache/internal/telemetry"
	"github.com/Borislavv/go-tier-cache/pressure"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNilConfig = errors.New("cache config is nil")
	ErrNoTiers   = errors.New("both cache tiers are disabled")
	ErrNilCodec  = errors.New("disk tier needs a codec")
	ErrEmptyKey  = errors.New("cache key is empty")
)

// Cache keeps values in an in-process LRU and persists them on disk.
// Reads try memory first and fall through to disk; writes update memory at
// once and disk in background.
type Cache[V any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	name   string
	logger *slog.Logger
	codec  Codec[V]
	coster Coster[V]

	memory    *memcache.Cache[string, V]
	disk      *diskcache.Cache
	pool      *pool.Pool
	loads     singleflight.Group
	telemetry telemetry.Logger
	closeOnce sync.Once
}

type options[V any] struct {
	coster   Coster[V]
	releaser func(key string, v V)
	source   pressure.Source
}

type Option[V any] func(*options[V])

// WithCoster sets the memory cost of values. Without it every value costs 0.
func WithCoster[V any](fn Coster[V]) Option[V] {
	return func(o *options[V]) { o.coster = fn }
}

// WithReleaser sets the func receiving values evicted from the memory tier.
func WithReleaser[V any](fn func(key string, v V)) Option[V] {
	return func(o *options[V]) { o.releaser = fn }
}

// WithPressureSource subscribes the memory tier to host memory and lifecycle signals.
func WithPressureSource[V any](src pressure.Source) Option[V] {
	return func(o *options[V]) { o.source = src }
}

// New builds a cache from cfg. A nil cfg.Memory or cfg.Disk disables that tier.
// The disk tier shares one instance per directory within the process.
func New[V any](ctx context.Context, cfg *config.Cache, codec Codec[V], logger *slog.Logger, opts ...Option[V]) (*Cache[V], error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if !cfg.Memory.Enabled() && !cfg.Disk.Enabled() {
		return nil, ErrNoTiers
	}
	if cfg.Disk.Enabled() && codec == nil {
		return nil, ErrNilCodec
	}
	cfg.AdjustConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var o options[V]
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	cachedtime.Run(ctx)

	c := &Cache[V]{
		ctx:    ctx,
		cancel: cancel,
		name:   cfg.Name,
		logger: logger.With("cache", cfg.Name),
		codec:  codec,
		coster: o.coster,
		pool:   pool.New(ctx, 0),
	}

	if cfg.Memory.Enabled() {
		memOpts := []memcache.Option[string, V]{memcache.WithPool[string, V](c.pool)}
		if o.releaser != nil {
			memOpts = append(memOpts, memcache.WithReleaser(o.releaser))
		}
		if o.source != nil {
			memOpts = append(memOpts, memcache.WithPressureSource[string, V](o.source))
		}
		c.memory = memcache.New(ctx, cfg.Memory, c.logger, memOpts...)
	}

	if cfg.Disk.Enabled() {
		disk, err := diskcache.Open(ctx, cfg.Disk, c.logger)
		if err != nil {
			if c.memory != nil {
				_ = c.memory.Close()
			}
			c.pool.Wait()
			cancel()
			return nil, fmt.Errorf("open disk tier: %w", err)
		}
		c.disk = disk
	}

	var (
		memSrc  telemetry.MemorySource
		diskSrc telemetry.DiskSource
	)
	if c.memory != nil {
		memSrc = c.memory
	}
	if c.disk != nil {
		diskSrc = c.disk
	}
	c.telemetry = telemetry.New(ctx, cfg.Name, cfg.Telemetry, c.logger, memSrc, diskSrc)

	c.logger.Info("cache is running", "memory", c.memory != nil, "disk", c.disk != nil)
	return c, nil
}

// NewBytes builds a cache of raw byte slices charged by their length.
func NewBytes(ctx context.Context, cfg *config.Cache, logger *slog.Logger, opts ...Option[[]byte]) (*Cache[[]byte], error) {
	return New(ctx, cfg, Codec[[]byte](BytesCodec{}), logger, append([]Option[[]byte]{WithCoster(BytesCost)}, opts...)...)
}

// Close flushes queued disk writes and stops every background worker.
// Pending async callbacks are still delivered.
func (c *Cache[V]) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.telemetry.Close()
		c.pool.Wait()
		if c.disk != nil {
			err = c.disk.Close()
		}
		if c.memory != nil {
			_ = c.memory.Close()
		}
		c.pool.Wait()
		c.cancel()
		c.logger.Info("cache is closed")
	})
	return err
}

// Memory returns the memory tier or nil when it is disabled.
func (c *Cache[V]) Memory() *memcache.Cache[string, V] {
	return c.memory
}

// Disk returns the disk tier or nil when it is disabled.
func (c *Cache[V]) Disk() *diskcache.Cache {
	return c.disk
}

func (c *Cache[V]) Name() string {
	return c.name
}

// Metrics holds cumulative counters of both tiers.
type Metrics struct {
	Memory memcache.Metrics
	Disk   diskcache.Metrics
}

func (c *Cache[V]) Metrics() Metrics {
	var m Metrics
	if c.memory != nil {
		m.Memory = c.memory.Metrics()
	}
	if c.disk != nil {
		m.Disk = c.disk.Metrics()
	}
	return m
}

func (c *Cache[V]) cost(v V) uint64 {
	if c.coster == nil {
		return 0
	}
	return c.coster(v)
}

// deliver runs fn off the calling goroutine.
func (c *Cache[V]) deliver(fn func()) {
	if fn != nil {
		c.pool.Go(fn)
	}
}
