package sim

import "time"

// Clock tracks virtual time for the simulation.
//
// Unlike a wall clock, virtual time only moves when the engine's
// time-advancement operations move it: manually via AdvanceTime /
// SetTime / SkipToNextEvent, or from the auto-advance loop which
// converts elapsed wall time through the scale factor.
//
// Thread-safety: Clock carries no lock of its own. It is owned by the
// Engine and mutated only inside the engine's exclusive section.
type Clock struct {
	current     time.Time
	paused      bool
	autoAdvance bool
	timeScale   float64
	running     bool
}

// NewClock creates a stopped clock positioned at start with scale 1.
func NewClock(start time.Time) *Clock {
	return &Clock{current: start, timeScale: 1}
}

// Now returns the current virtual time.
func (c *Clock) Now() time.Time {
	return c.current
}

// advanceTo moves the clock forward. Callers must never pass a time
// earlier than the current one; time-advancement logic enforces that
// before calling.
func (c *Clock) advanceTo(t time.Time) {
	c.current = t
}

// IsPaused reports whether the pause flag is set.
func (c *Clock) IsPaused() bool {
	return c.paused
}

// IsRunning reports whether the clock has been started.
func (c *Clock) IsRunning() bool {
	return c.running
}

// AutoAdvance reports whether the background loop drives this clock.
func (c *Clock) AutoAdvance() bool {
	return c.autoAdvance
}

// TimeScale returns the virtual-per-wall multiplier.
func (c *Clock) TimeScale() float64 {
	return c.timeScale
}

func (c *Clock) start(autoAdvance bool, timeScale float64) {
	c.running = true
	c.autoAdvance = autoAdvance
	c.timeScale = timeScale
	c.paused = false
}

func (c *Clock) stop() {
	c.running = false
	c.autoAdvance = false
}
