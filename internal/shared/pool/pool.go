package pool

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool runs background tasks on at most N goroutines at once.
// Tasks are never dropped: Go waits for a free slot.
type Pool struct {
	ctx context.Context
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// New creates a pool. A non-positive size means GOMAXPROCS.
func New(ctx context.Context, size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{ctx: context.WithoutCancel(ctx), sem: semaphore.NewWeighted(int64(size))}
}

// Go schedules fn and returns without waiting for it to start.
func (p *Pool) Go(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		fn()
	}()
}

// Wait blocks until every scheduled task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

var (
	shared     *Pool
	sharedOnce sync.Once
)

// Shared returns the process-wide pool used for value release and disk read dispatch.
func Shared() *Pool {
	sharedOnce.Do(func() {
		shared = New(context.Background(), 0)
	})
	return shared
}
