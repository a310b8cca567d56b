package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetFiresCallback(t *testing.T) {
	w := New()
	var fired atomic.Bool
	w.Set(10*time.Millisecond, func() { fired.Store(true) })

	require.Eventually(t, fired.Load, time.Second, time.Millisecond)
}

func TestUnsetPreventsCallback(t *testing.T) {
	w := New()
	var fired atomic.Bool
	id := w.Set(50*time.Millisecond, func() { fired.Store(true) })
	w.Unset(id)

	time.Sleep(100 * time.Millisecond)
	require.False(t, fired.Load())
}

func TestUnsetAfterFireIsNoop(t *testing.T) {
	w := New()
	var fired atomic.Bool
	id := w.Set(5*time.Millisecond, func() { fired.Store(true) })

	require.Eventually(t, fired.Load, time.Second, time.Millisecond)
	require.NotPanics(t, func() { w.Unset(id) })
}

func TestLenTracksOutstandingTimers(t *testing.T) {
	w := New()
	require.Equal(t, 0, w.Len())
	id := w.Set(time.Hour, func() {})
	require.Equal(t, 1, w.Len())
	w.Unset(id)
	require.Equal(t, 0, w.Len())
}
