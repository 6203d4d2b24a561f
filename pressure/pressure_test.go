package pressure

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingListener struct {
	warnings    atomic.Int64
	backgrounds atomic.Int64
}

func (l *countingListener) OnMemoryWarning()   { l.warnings.Add(1) }
func (l *countingListener) OnEnterBackground() { l.backgrounds.Add(1) }

// TestHub_DeliversToSubscribers verifies fan-out of both signals.
func TestHub_DeliversToSubscribers(t *testing.T) {
	h := NewHub()
	a, b := &countingListener{}, &countingListener{}
	h.Subscribe(a)
	h.Subscribe(b)

	h.MemoryWarning()
	h.EnterBackground()
	h.EnterBackground()

	for _, l := range []*countingListener{a, b} {
		require.Equal(t, int64(1), l.warnings.Load())
		require.Equal(t, int64(2), l.backgrounds.Load())
	}
}

// TestHub_Unsubscribe stops delivery and is idempotent.
func TestHub_Unsubscribe(t *testing.T) {
	var h Hub
	l := &countingListener{}
	unsubscribe := h.Subscribe(l)
	require.Equal(t, 1, h.Len())

	unsubscribe()
	unsubscribe()
	require.Equal(t, 0, h.Len())

	h.MemoryWarning()
	require.Equal(t, int64(0), l.warnings.Load())
}
