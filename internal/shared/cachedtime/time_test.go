package cachedtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestNow_NotRunning returns real time when no ticker is running.
func TestNow_NotRunning(t *testing.T) {
	now1 := Now()
	time.Sleep(10 * time.Millisecond)
	now2 := Now()

	require.True(t, now2.After(now1), "time should advance without a ticker")
}

// TestRun_KeepsTimeFresh verifies the cached value follows the wall clock.
func TestRun_KeepsTimeFresh(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	Run(ctx)
	time.Sleep(30 * time.Millisecond)

	nano1 := UnixNano()
	time.Sleep(50 * time.Millisecond)
	nano2 := UnixNano()

	require.Greater(t, nano2, nano1, "cached time should be refreshed by the ticker")
	require.InDelta(t, time.Now().UnixNano(), nano2, float64(100*time.Millisecond))
}

// TestRun_StopsAfterLastContext verifies reference counting of Run calls.
func TestRun_StopsAfterLastContext(t *testing.T) {
	ctx1, cancel1 := context.WithCancel(t.Context())
	ctx2, cancel2 := context.WithCancel(t.Context())

	Run(ctx1)
	Run(ctx2)

	cancel1()
	require.Eventually(t, func() bool { return running.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel2()
	require.Eventually(t, func() bool { return running.Load() == 0 }, time.Second, 5*time.Millisecond)

	nano1 := UnixNano()
	time.Sleep(5 * time.Millisecond)
	require.Greater(t, UnixNano(), nano1, "time should advance after the ticker stopped")
}

// TestSince_CalculatesDuration verifies Since calculates duration correctly.
func TestSince_CalculatesDuration(t *testing.T) {
	start := Now()
	time.Sleep(50 * time.Millisecond)
	duration := Since(start)

	require.GreaterOrEqual(t, duration, 40*time.Millisecond)
	require.Less(t, duration, 500*time.Millisecond)
}
