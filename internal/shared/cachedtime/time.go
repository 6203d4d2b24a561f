package cachedtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const resolution = 10 * time.Millisecond

var (
	nowUnix atomic.Int64
	running atomic.Int32

	mu     sync.Mutex
	stopCh chan struct{}
)

// Run starts the shared ticker which refreshes the cached time every 10ms.
// Calls are counted: the ticker stops once every ctx passed to Run is done.
// While no ticker is running Now falls back to time.Now.
func Run(ctx context.Context) {
	mu.Lock()
	if running.Add(1) == 1 {
		nowUnix.Store(time.Now().UnixNano())
		stopCh = make(chan struct{})
		go tick(stopCh)
	}
	mu.Unlock()

	context.AfterFunc(ctx, release)
}

func release() {
	mu.Lock()
	if running.Add(-1) == 0 {
		close(stopCh)
	}
	mu.Unlock()
}

func tick(done <-chan struct{}) {
	ticker := time.NewTicker(resolution)
	defer ticker.Stop()
	for {
		select {
		case tt := <-ticker.C:
			nowUnix.Store(tt.UnixNano())
		case <-done:
			return
		}
	}
}

func Now() time.Time {
	if running.Load() == 0 {
		return time.Now()
	}
	return time.Unix(0, nowUnix.Load())
}

func UnixNano() int64 {
	if running.Load() == 0 {
		return time.Now().UnixNano()
	}
	return nowUnix.Load()
}

func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}
