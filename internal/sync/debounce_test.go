package sync

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_LastWins(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { fired.Add(1) })
	defer d.Stop()

	// A burst of triggers collapses into one fire.
	for range 5 {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// No late second fire.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestDebouncer_TriggerAfterFire(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(10*time.Millisecond, func() { fired.Add(1) })
	defer d.Stop()

	d.Trigger()
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)

	d.Trigger()
	require.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, time.Millisecond)
}

func TestDebouncer_Stop(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(10*time.Millisecond, func() { fired.Add(1) })

	d.Trigger()
	d.Stop()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	// Triggers after Stop are ignored.
	d.Trigger()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}
