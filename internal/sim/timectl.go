package sim

import (
	"context"
	"time"
)

// Time control: start/stop, pause/resume, advance, jump, skip.

// AdvanceResult reports one time-advancement batch. Details lists the
// per-event outcomes in execution order, which callers need for
// deterministic replay and assertions.
type AdvanceResult struct {
	PreviousTime time.Time
	CurrentTime  time.Time
	Executed     int
	Failed       int
	Skipped      int
	Details      []ExecutionDetail
}

// AdvanceTime moves virtual time forward by delta, executing every due
// pending event in total order. One event's failure never aborts the
// batch. After no due events remain, the clock lands exactly on
// previous time + delta regardless of how many events fired.
func (e *Engine) AdvanceTime(delta time.Duration) (AdvanceResult, error) {
	if delta <= 0 {
		return AdvanceResult{}, NewSchedulingError("advance delta must be positive, got %s", delta)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advanceLocked(e.clock.Now().Add(delta)), nil
}

// advanceLocked runs the what-happens-next loop with the lock held:
// repeatedly take the next due pending event in total order and execute
// it, then land the clock on target. Re-reading the order after every
// execution means mid-batch status changes are honored.
func (e *Engine) advanceLocked(target time.Time) AdvanceResult {
	res := AdvanceResult{PreviousTime: e.clock.Now()}

	for {
		ev := e.queue.NextDue(target)
		if ev == nil {
			break
		}
		detail := e.executeLocked(ev, false)
		res.Details = append(res.Details, detail)
		if detail.Status == StatusExecuted {
			res.Executed++
		} else {
			res.Failed++
		}
	}

	// Never move backwards: undone events can be scheduled before the
	// current time, and skip-to-next targets their timestamps.
	if target.After(e.clock.Now()) {
		e.clock.advanceTo(target)
	}
	res.CurrentTime = e.clock.Now()
	e.updateQueueGauge()

	e.logger.Debug("time advanced",
		"previous", res.PreviousTime,
		"current", res.CurrentTime,
		"executed", res.Executed,
		"failed", res.Failed,
	)
	return res
}

// SetTime jumps virtual time to newTime. Due-but-unprocessed events up
// to newTime are executed when executeSkipped is true (same algorithm
// as AdvanceTime) or transitioned directly to Skipped without invoking
// apply. Skipped events remain visible but cannot be undone: they
// never mutated state.
//
// Backward jumps are unsupported and rejected with a scheduling error.
func (e *Engine) SetTime(newTime time.Time, executeSkipped bool) (AdvanceResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if newTime.Before(e.clock.Now()) {
		return AdvanceResult{}, NewSchedulingError("cannot set time backwards: %s is before current %s",
			newTime.Format(time.RFC3339), e.clock.Now().Format(time.RFC3339))
	}

	if executeSkipped {
		return e.advanceLocked(newTime), nil
	}

	res := AdvanceResult{PreviousTime: e.clock.Now()}
	for _, ev := range e.queue.Due(newTime) {
		ev.Status = StatusSkipped
		res.Skipped++
		res.Details = append(res.Details, ExecutionDetail{
			EventID:  ev.ID,
			Modality: ev.Modality,
			Status:   StatusSkipped,
		})
		e.counters.Skipped++
		if e.metrics != nil {
			e.metrics.EventsSkipped.Inc()
		}
	}

	e.clock.advanceTo(newTime)
	res.CurrentTime = newTime
	e.updateQueueGauge()

	e.logger.Debug("time set",
		"previous", res.PreviousTime,
		"current", res.CurrentTime,
		"skipped", res.Skipped,
	)
	return res, nil
}

// SkipResult reports a SkipToNextEvent call.
type SkipResult struct {
	Advanced bool
	Message  string
	Result   AdvanceResult
}

// SkipToNextEvent jumps to the earliest pending event's timestamp and
// executes every event due at that instant. With no pending events it
// reports the condition and leaves the clock unchanged.
func (e *Engine) SkipToNextEvent() (SkipResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.queue.PeekNext()
	if next == nil {
		return SkipResult{Message: "no pending events"}, nil
	}

	target := next.ScheduledAt
	if target.Before(e.clock.Now()) {
		// Undone events may sit in the past; execute them at the
		// current instant rather than jumping backwards.
		target = e.clock.Now()
	}
	return SkipResult{Advanced: true, Result: e.advanceLocked(target)}, nil
}

// Start transitions the engine to Running. With autoAdvance, a
// background loop begins advancing virtual time by elapsed wall time
// times timeScale on every tick.
func (e *Engine) Start(autoAdvance bool, timeScale float64) error {
	if timeScale <= 0 {
		return NewSchedulingError("time scale must be positive, got %v", timeScale)
	}

	e.mu.Lock()
	if e.clock.IsRunning() {
		e.mu.Unlock()
		return NewEngineStateError("engine already running")
	}
	e.clock.start(autoAdvance, timeScale)

	if autoAdvance {
		ctx, cancel := context.WithCancel(context.Background())
		e.loopCancel = cancel
		e.loopDone = make(chan struct{})
		go e.autoAdvanceLoop(ctx, e.loopDone)
	}
	e.mu.Unlock()

	e.logger.Info("engine started",
		"auto_advance", autoAdvance,
		"time_scale", timeScale,
	)
	return nil
}

// Stop halts the auto-advance loop if present, leaves pending events
// untouched, and returns the execution counters. The loop exits before
// its next tick; no partial batch is ever visible because every batch
// completes under the engine lock.
func (e *Engine) Stop() (Counters, error) {
	e.mu.Lock()
	if !e.clock.IsRunning() {
		e.mu.Unlock()
		return Counters{}, NewEngineStateError("engine not running")
	}
	e.clock.stop()
	counters := e.counters
	cancel, done := e.loopCancel, e.loopDone
	e.loopCancel, e.loopDone = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	e.logger.Info("engine stopped",
		"executed", counters.Executed,
		"failed", counters.Failed,
		"skipped", counters.Skipped,
	)
	return counters, nil
}

// Pause sets the pause flag. The auto-advance loop skips its ticks
// while paused; manual advance, set, and skip calls remain permitted.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.clock.IsRunning() {
		return NewEngineStateError("engine not running")
	}
	e.clock.paused = true
	e.logger.Info("engine paused")
	return nil
}

// Resume clears the pause flag.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.clock.IsRunning() {
		return NewEngineStateError("engine not running")
	}
	e.clock.paused = false
	e.logger.Info("engine resumed")
	return nil
}

// autoAdvanceLoop periodically advances virtual time by elapsed wall
// time scaled by the clock's time scale. It acquires the same exclusive
// section as manual operations, so a manual advance and a tick can
// never interleave partially. While paused it skips the tick instead of
// calling advance with a non-positive delta.
func (e *Engine) autoAdvanceLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	last := e.wallNow()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := e.wallNow()
			elapsed := now.Sub(last)
			last = now

			e.mu.Lock()
			if !e.clock.IsRunning() || e.clock.IsPaused() {
				e.mu.Unlock()
				continue
			}
			delta := time.Duration(float64(elapsed) * e.clock.TimeScale())
			if delta <= 0 {
				e.mu.Unlock()
				continue
			}
			e.advanceLocked(e.clock.Now().Add(delta))
			e.mu.Unlock()
		}
	}
}
