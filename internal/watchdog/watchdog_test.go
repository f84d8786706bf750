package watchdog

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchdog_Fires(t *testing.T) {
	fired := make(chan uint64, 1)
	w := New(20*time.Millisecond, func(token uint64) { fired <- token })
	require.True(t, w.Enabled())

	w.Arm()
	select {
	case token := <-fired:
		assert.True(t, w.Current(token))
	case <-time.After(time.Second):
		t.Fatal("watchdog did not fire")
	}
}

func TestWatchdog_RearmPostpones(t *testing.T) {
	var fires atomic.Int32
	w := New(60*time.Millisecond, func(uint64) { fires.Add(1) })

	w.Arm()
	for i := 0; i < 4; i++ {
		time.Sleep(20 * time.Millisecond)
		w.Arm()
	}
	assert.Equal(t, int32(0), fires.Load(), "re-arming should postpone the fire")

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), fires.Load(), "only the last arm should fire")
}

func TestWatchdog_Disarm(t *testing.T) {
	var fires atomic.Int32
	w := New(20*time.Millisecond, func(uint64) { fires.Add(1) })

	w.Arm()
	w.Disarm()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fires.Load())
}

func TestWatchdog_StaleToken(t *testing.T) {
	w := New(time.Hour, nil)

	w.Arm()
	w.mu.Lock()
	first := w.gen
	w.mu.Unlock()
	assert.True(t, w.Current(first))

	w.Arm()
	assert.False(t, w.Current(first), "superseded token must be stale")

	w.Disarm()
	assert.False(t, w.Current(first+1), "disarm invalidates the live token")
}

func TestWatchdog_DisabledNeverFires(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("non-positive timeout never fires", prop.ForAll(
		func(ms int, arms int) bool {
			var fires atomic.Int32
			w := New(time.Duration(ms)*time.Millisecond, func(uint64) { fires.Add(1) })
			if w.Enabled() {
				return false
			}
			for i := 0; i < arms; i++ {
				w.Arm()
			}
			time.Sleep(time.Millisecond)
			return fires.Load() == 0 && !w.Current(0) && !w.Current(1)
		},
		gen.IntRange(-1000, 0),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}
