package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Borislavv/go-tier-cache/config"
	"github.com/Borislavv/go-tier-cache/internal/shared/bytes"
)

type Logger interface {
	Interval() time.Duration
	Close() error
}

// Logs writes one line per tier every interval with per-interval deltas and current sizes.
type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	name     string
	logger   *slog.Logger
	memory   MemorySource
	disk     DiskSource
	interval time.Duration
	wg       sync.WaitGroup
}

// New starts the stat logger. A nil cfg returns a Logger which does nothing.
// A nil source skips the lines of that tier.
func New(
	ctx context.Context,
	name string,
	cfg *config.TelemetryCfg,
	logger *slog.Logger,
	memory MemorySource,
	disk DiskSource,
) Logger {
	if !cfg.Enabled() {
		return noopLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&Logs{
		ctx:      ctx,
		cancel:   cancel,
		name:     name,
		logger:   logger,
		memory:   memory,
		disk:     disk,
		interval: cfg.Interval,
	}).run()
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	l.wg.Wait()
	return nil
}

func (l *Logs) run() *Logs {
	if l.interval <= 0 {
		l.interval = 5 * time.Second
	}
	l.wg.Go(l.loop)
	return l
}

func (l *Logs) loop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	s := newSampler(l.memory, l.disk)
	prev := s.snapshot()

	for {
		select {
		case <-l.ctx.Done():
			return

		case <-ticker.C:
			cur := s.snapshot()
			d := deltaSnapshot(prev, cur)
			prev = cur
			l.write(d)
		}
	}
}

func (l *Logs) write(d snapshot) {
	common := []any{"cache", l.name, "interval", l.interval.String()}

	if l.memory != nil {
		l.logger.Info("memory_tier",
			append(common,
				"hits", int64(d.memHits),
				"misses", int64(d.memMisses),
				"evicted", int64(d.memEvicted),
				"expired", int64(d.memExpired),
				"memory_warnings", int64(d.memWarnings),
				"backgrounds", int64(d.memBackgrounds),
				"entries", l.memory.TotalCount(),
				"cost", l.memory.TotalCost(),
				"cost_limit", l.memory.CostLimit().String(),
			)...,
		)
	}

	if l.disk != nil {
		count, err := l.disk.TotalCount()
		if err != nil {
			l.logger.Error("disk_tier: read totals", "cache", l.name, "err", err)
			return
		}
		size, err := l.disk.TotalCost()
		if err != nil {
			l.logger.Error("disk_tier: read totals", "cache", l.name, "err", err)
			return
		}
		l.logger.Info("disk_tier",
			append(common,
				"hits", int64(d.diskHits),
				"misses", int64(d.diskMisses),
				"writes", int64(d.diskWrites),
				"write_errors", int64(d.diskWriteErrors),
				"trim_passes", int64(d.diskTrimPasses),
				"trimmed_items", int64(d.diskTrimmedItems),
				"entries", count,
				"size", bytes.FmtMem(uint64(max(size, 0))),
				"size_limit", bytes.FmtLimit(uint64(l.disk.CostLimit())),
			)...,
		)
	}
}

type noopLogger struct{}

func (noopLogger) Interval() time.Duration { return 0 }
func (noopLogger) Close() error            { return nil }
