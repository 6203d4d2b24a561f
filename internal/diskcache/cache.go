package diskcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Borislavv/go-tier-cache/config"
	"github.com/Borislavv/go-tier-cache/internal/shared/diskspace"
	"github.com/Borislavv/go-tier-cache/internal/shared/queue"
	"github.com/Borislavv/go-tier-cache/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const queueInitSize = 64

var (
	ErrClosed   = errors.New("disk cache is closed")
	ErrNotFound = storage.ErrNotFound
)

// registry hands out one Cache per canonical directory. Opening a path which
// is already open returns the live instance; the last Close shuts it down.
var registry = struct {
	sync.Mutex
	caches map[string]*Cache
}{caches: make(map[string]*Cache)}

// Entry is a stored value with its metadata.
type Entry struct {
	Key        string
	Value      []byte
	Extra      []byte
	Filename   string
	Size       int64
	ModTime    time.Time
	AccessTime time.Time
}

// Cache serializes every storage access through one FIFO worker.
// Results of async calls are delivered on a second FIFO worker, so callbacks
// keep submission order and may call back into the cache.
type Cache struct {
	ctx    context.Context
	cancel context.CancelFunc
	path   string
	logger *slog.Logger
	engine *storage.Engine

	tasks       *queue.Queue[func()]
	callbacks   *queue.Queue[func()]
	taskWorker  sync.WaitGroup
	replyWorker sync.WaitGroup

	refs   int // guarded by registry
	closed chan struct{}

	countLimit     atomic.Uint64
	costLimit      atomic.Uint64
	ageLimit       atomic.Int64
	freeSpaceLimit atomic.Uint64

	freeSpace diskspace.Probe
	now       func() time.Time
	counters  *diskCounters
	trimmer   *Trimmer
}

type Option func(*Cache)

// WithFreeSpaceProbe replaces the free disk space probe.
func WithFreeSpaceProbe(probe diskspace.Probe) Option {
	return func(c *Cache) { c.freeSpace = probe }
}

// WithClock replaces the clock used for access times and age limits.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Open returns the disk cache rooted at cfg.Path. When the directory is already
// open in this process, the live instance is returned and cfg is ignored.
func Open(ctx context.Context, cfg *config.DiskCfg, logger *slog.Logger, opts ...Option) (*Cache, error) {
	if !cfg.Enabled() || cfg.Path == "" {
		return nil, config.ErrEmptyDiskPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create disk cache dir %s: %w", cfg.Path, err)
	}
	path, err := storage.CanonicalPath(cfg.Path)
	if err != nil {
		return nil, err
	}

	registry.Lock()
	defer registry.Unlock()
	for {
		c, ok := registry.caches[path]
		if !ok {
			break
		}
		if c.refs > 0 {
			c.refs++
			return c, nil
		}
		// the last owner is shutting it down
		registry.Unlock()
		<-c.closed
		registry.Lock()
	}

	c := &Cache{
		path:      path,
		logger:    logger.With("component", "disk_cache", "path", path),
		tasks:     queue.New[func()](queueInitSize),
		callbacks: queue.New[func()](queueInitSize),
		refs:      1,
		closed:    make(chan struct{}),
		freeSpace: diskspace.Free,
		now:       time.Now,
		counters:  newDiskCounters(),
	}
	for _, opt := range opts {
		opt(c)
	}

	engineOpts := []storage.Option{
		storage.WithInlineThreshold(uint64(cfg.InlineThreshold)),
		storage.WithLockTimeout(cfg.LockTimeout),
		storage.WithPurgeRate(cfg.PurgeRate),
		storage.WithClock(c.now),
		storage.WithLogger(storageLogger(cfg, path)),
	}
	if cfg.Compression.Enabled() {
		engineOpts = append(engineOpts, storage.WithCompression(cfg.Compression.Level, cfg.Compression.MinSize))
	}
	if c.engine, err = storage.Open(path, engineOpts...); err != nil {
		return nil, err
	}

	c.SetCountLimit(cfg.CountLimit)
	c.SetCostLimit(cfg.CostLimit)
	c.SetAgeLimit(cfg.AgeLimit)
	c.SetFreeDiskSpaceLimit(cfg.FreeDiskSpaceLimit)

	// shared by every opener, so it outlives the first one's ctx
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.taskWorker.Go(func() { serve(c.tasks) })
	c.replyWorker.Go(func() { serve(c.callbacks) })
	c.trimmer = newTrimmer(c.ctx, c, cfg.AutoTrimInterval, c.logger)

	registry.caches[path] = c
	return c, nil
}

func storageLogger(cfg *config.DiskCfg, path string) zerolog.Logger {
	if !cfg.ErrorLogsEnabled {
		return zerolog.Nop()
	}
	return log.Logger.With().Str("component", "storage").Str("path", path).Logger()
}

func serve(q *queue.Queue[func()]) {
	for {
		task, ok := q.Pop()
		if !ok {
			return
		}
		task()
	}
}

// Close releases one reference. The last one stops the trimmer, drains queued
// work and closes the storage. Must not be called from a callback.
func (c *Cache) Close() error {
	registry.Lock()
	if c.refs == 0 {
		registry.Unlock()
		return nil
	}
	c.refs--
	if c.refs > 0 {
		registry.Unlock()
		return nil
	}
	registry.Unlock()

	c.cancel()
	c.trimmer.wait()
	c.tasks.Close()
	c.taskWorker.Wait()
	c.callbacks.Close()
	c.replyWorker.Wait()

	err := c.engine.Close()

	registry.Lock()
	delete(registry.caches, c.path)
	registry.Unlock()
	close(c.closed)

	if err != nil {
		return fmt.Errorf("close disk cache %s: %w", c.path, err)
	}
	c.logger.Info("disk cache is closed")
	return nil
}

func (c *Cache) Path() string {
	return c.path
}

// exec runs task on the serial worker and waits for it.
func (c *Cache) exec(task func()) error {
	done := make(chan struct{})
	if !c.tasks.Push(func() {
		defer close(done)
		task()
	}) {
		return ErrClosed
	}
	<-done
	return nil
}

// submit runs task on the serial worker without waiting. The func returned by
// task, if any, is queued on the callback worker. When the cache is closed,
// onClosed is delivered on a fresh goroutine instead.
func (c *Cache) submit(task func() func(), onClosed func()) {
	ok := c.tasks.Push(func() {
		if cb := task(); cb != nil && !c.callbacks.Push(cb) {
			go cb()
		}
	})
	if !ok && onClosed != nil {
		go onClosed()
	}
}

func (c *Cache) SetCountLimit(limit config.Limit) { c.countLimit.Store(uint64(limit)) }
func (c *Cache) SetCostLimit(limit config.Limit)  { c.costLimit.Store(uint64(limit)) }
func (c *Cache) SetFreeDiskSpaceLimit(bytes uint64) {
	c.freeSpaceLimit.Store(bytes)
}

// SetAgeLimit sets the maximum time since last access. Non-positive disables the limit.
func (c *Cache) SetAgeLimit(age time.Duration) {
	if age <= 0 {
		age = config.NoAgeLimit
	}
	c.ageLimit.Store(int64(age))
}

// SetAutoTrimInterval changes the period of the background trim pass.
func (c *Cache) SetAutoTrimInterval(interval time.Duration) {
	c.trimmer.setInterval(interval)
}

func (c *Cache) CountLimit() config.Limit        { return config.Limit(c.countLimit.Load()) }
func (c *Cache) CostLimit() config.Limit         { return config.Limit(c.costLimit.Load()) }
func (c *Cache) AgeLimit() time.Duration         { return time.Duration(c.ageLimit.Load()) }
func (c *Cache) FreeDiskSpaceLimit() uint64      { return c.freeSpaceLimit.Load() }
func (c *Cache) AutoTrimInterval() time.Duration { return c.trimmer.interval() }

func (c *Cache) Metrics() Metrics {
	return c.counters.snapshot()
}
