package app

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerCoalesces(t *testing.T) {
	var runs atomic.Int32
	d := newDebouncer(40*time.Millisecond, func() { runs.Add(1) })

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, d.Pending())
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending())
}

func TestDebouncerFlush(t *testing.T) {
	var runs atomic.Int32
	d := newDebouncer(time.Hour, func() { runs.Add(1) })

	d.Flush()
	assert.Equal(t, int32(0), runs.Load(), "nothing pending")

	d = newDebouncer(time.Hour, func() { runs.Add(1) })
	d.Trigger()
	d.Flush()
	assert.Equal(t, int32(1), runs.Load())

	d.Trigger()
	assert.False(t, d.Pending(), "stopped debouncer ignores triggers")
}
