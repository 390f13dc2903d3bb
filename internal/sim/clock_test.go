package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_Defaults(t *testing.T) {
	c := NewClock(t0)

	assert.True(t, c.Now().Equal(t0))
	assert.False(t, c.IsRunning())
	assert.False(t, c.IsPaused())
	assert.False(t, c.AutoAdvance())
	assert.Equal(t, 1.0, c.TimeScale())
}

func TestClock_StartStop(t *testing.T) {
	c := NewClock(t0)

	c.start(true, 2.5)
	assert.True(t, c.IsRunning())
	assert.True(t, c.AutoAdvance())
	assert.Equal(t, 2.5, c.TimeScale())

	c.advanceTo(t0.Add(time.Minute))
	assert.True(t, c.Now().Equal(t0.Add(time.Minute)))

	c.stop()
	assert.False(t, c.IsRunning())
	assert.False(t, c.AutoAdvance())
	assert.True(t, c.Now().Equal(t0.Add(time.Minute)), "stop keeps the position")
}
