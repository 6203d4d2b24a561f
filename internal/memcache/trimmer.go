package memcache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultAutoTrimInterval = 5 * time.Second

// trimmer calls pass on every tick until ctx is done.
type trimmer struct {
	ctx     context.Context
	logger  *slog.Logger
	pass    func()
	every   atomic.Int64
	resetCh chan struct{}
	wg      sync.WaitGroup
}

func newTrimmer(ctx context.Context, interval time.Duration, logger *slog.Logger, pass func()) *trimmer {
	w := &trimmer{
		ctx:     ctx,
		logger:  logger,
		pass:    pass,
		resetCh: make(chan struct{}, 1),
	}
	w.setInterval(interval)
	return w.run()
}

func (w *trimmer) run() *trimmer {
	w.logger.Info("memory trimmer is running", "interval", w.interval().String())
	w.wg.Go(w.provider)
	return w
}

func (w *trimmer) wait() {
	w.wg.Wait()
}

func (w *trimmer) interval() time.Duration {
	return time.Duration(w.every.Load())
}

func (w *trimmer) setInterval(interval time.Duration) {
	if interval <= 0 {
		interval = defaultAutoTrimInterval
	}
	w.every.Store(int64(interval))
	select {
	case w.resetCh <- struct{}{}:
	default:
	}
}

func (w *trimmer) provider() {
	defer w.logger.Info("memory trimmer is stopped")

	tick := time.NewTicker(w.interval())
	defer tick.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.resetCh:
			tick.Reset(w.interval())
		case <-tick.C:
			w.pass()
		}
	}
}

// trimPass enforces count, cost and age limits, then drops entries past their own expiry.
func (c *Cache[K, V]) trimPass() {
	c.counters.trimPasses.Add(1)

	trimmed := c.TrimToCount(c.CountLimit())
	trimmed += c.TrimToCost(c.CostLimit())
	trimmed += c.TrimToAge(c.AgeLimit())
	trimmed += c.trimExpired()

	if trimmed > 0 {
		c.logger.Debug("memory trim pass finished", "trimmed", trimmed)
	}
}
