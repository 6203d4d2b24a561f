package diskcache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDiskCounters_Snapshot verifies that counters correctly track metrics.
func TestDiskCounters_Snapshot(t *testing.T) {
	c := newDiskCounters()
	require.Equal(t, Metrics{}, c.snapshot())

	c.hits.Add(10)
	c.misses.Add(5)
	c.writes.Add(3)
	c.writeErrors.Add(1)
	c.trimPasses.Add(2)
	c.trimmedItems.Add(7)

	require.Equal(t, Metrics{Hits: 10, Misses: 5, Writes: 3, WriteErrors: 1, TrimPasses: 2, TrimmedItems: 7}, c.snapshot())
}

// TestDiskCounters_Concurrent verifies thread-safety.
func TestDiskCounters_Concurrent(t *testing.T) {
	c := newDiskCounters()

	const numGoroutines = 10
	const opsPerGoroutine = 50

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Go(func() {
			for j := 0; j < opsPerGoroutine; j++ {
				c.hits.Add(1)
				c.trimmedItems.Add(2)
			}
		})
	}
	wg.Wait()

	m := c.snapshot()
	require.Equal(t, int64(numGoroutines*opsPerGoroutine), m.Hits)
	require.Equal(t, int64(numGoroutines*opsPerGoroutine*2), m.TrimmedItems)
}
