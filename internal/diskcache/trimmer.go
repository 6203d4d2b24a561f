package diskcache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultAutoTrimInterval = 60 * time.Second
	maxFreeSpaceRounds      = 16
)

// Trimmer periodically enqueues a trim pass onto the cache worker, so passes
// never race with regular operations.
type Trimmer struct {
	ctx     context.Context
	cache   *Cache
	logger  *slog.Logger
	every   atomic.Int64
	resetCh chan struct{}
	wg      sync.WaitGroup
}

func newTrimmer(ctx context.Context, cache *Cache, interval time.Duration, logger *slog.Logger) *Trimmer {
	w := &Trimmer{
		ctx:     ctx,
		cache:   cache,
		logger:  logger,
		resetCh: make(chan struct{}, 1),
	}
	w.setInterval(interval)
	return w.run()
}

func (w *Trimmer) run() *Trimmer {
	w.logger.Info("disk trimmer is running", "interval", w.interval().String())
	w.wg.Go(w.provider)
	return w
}

func (w *Trimmer) wait() {
	w.wg.Wait()
}

func (w *Trimmer) interval() time.Duration {
	return time.Duration(w.every.Load())
}

func (w *Trimmer) setInterval(interval time.Duration) {
	if interval <= 0 {
		interval = defaultAutoTrimInterval
	}
	w.every.Store(int64(interval))
	select {
	case w.resetCh <- struct{}{}:
	default:
	}
}

// provider - enqueues one trim pass per tick onto the serial worker.
func (w *Trimmer) provider() {
	defer w.logger.Info("disk trimmer is stopped")

	tick := time.NewTicker(w.interval())
	defer tick.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.resetCh:
			tick.Reset(w.interval())
		case <-tick.C:
			w.cache.submit(func() func() {
				w.cache.trimPass()
				return nil
			}, nil)
		}
	}
}

// trimPass runs on the serial worker: count, cost, age, then free space.
func (c *Cache) trimPass() {
	c.counters.trimPasses.Add(1)
	before := c.counters.trimmedItems.Load()

	if err := c.trimToCount(c.CountLimit()); err != nil {
		c.logger.Error("trim to count limit", "limit", c.CountLimit().String(), "err", err)
	}
	if err := c.trimToCost(c.CostLimit()); err != nil {
		c.logger.Error("trim to cost limit", "limit", c.CostLimit().String(), "err", err)
	}
	if err := c.trimToAge(c.AgeLimit()); err != nil {
		c.logger.Error("trim to age limit", "limit", c.AgeLimit().String(), "err", err)
	}
	if err := c.trimToFreeSpace(c.FreeDiskSpaceLimit()); err != nil {
		c.logger.Error("trim to free disk space limit", "limit", c.FreeDiskSpaceLimit(), "err", err)
	}

	if trimmed := c.counters.trimmedItems.Load() - before; trimmed > 0 {
		c.logger.Debug("disk trim pass finished", "trimmed", trimmed)
	}
}

// TrimNow runs a full trim pass on the worker and waits for it.
func (c *Cache) TrimNow() error {
	return c.exec(c.trimPass)
}

// trimToFreeSpace is best effort: other processes may consume space at the
// same time, so it gives up when a round frees nothing or after a fixed
// number of rounds.
func (c *Cache) trimToFreeSpace(target uint64) error {
	if target == 0 {
		return nil
	}
	for round := 0; round < maxFreeSpaceRounds; round++ {
		free, err := c.freeSpace(c.path)
		if err != nil {
			return err
		}
		if free >= target {
			return nil
		}
		count, err := c.engine.Count()
		if err != nil || count == 0 {
			return err
		}
		n, freed, err := c.engine.TrimBytes(clampInt64(target - free))
		c.counters.trimmedItems.Add(int64(n))
		if err != nil {
			return err
		}
		if n == 0 || freed == 0 {
			return nil
		}
	}
	return nil
}
