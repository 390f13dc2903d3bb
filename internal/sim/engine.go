// Package sim implements the holodeck simulation core: a virtual
// clock, a totally-ordered event queue, and multi-step undo/redo over
// per-channel modality states.
//
// The engine is the single logical owner of all mutable state. Event
// queue, clock, and undo/redo mutations happen inside one exclusive
// critical section, because advance, undo, redo, and submission all
// read-then-write the same structures and must not interleave
// partially. The only concurrent caller is the optional auto-advance
// loop, which takes the same lock as everyone else.
package sim

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/holodeck-sim/holodeck/internal/modality"
)

// Counters accumulates execution totals for the lifetime of the
// engine. Stop returns a copy.
type Counters struct {
	Executed int64
	Failed   int64
	Skipped  int64
	Undone   int64
	Redone   int64
}

// Engine orchestrates the clock, the event queue, the undo/redo
// stacks, and the modality registry.
//
// Construct one explicitly with New and pass it by handle; there is no
// ambient global instance.
type Engine struct {
	mu       sync.Mutex
	clock    *Clock
	queue    *EventQueue
	registry *modality.Registry
	undo     undoStack
	redo     undoStack
	counters Counters

	ids     IDGenerator
	logger  *slog.Logger
	metrics *Metrics
	wallNow func() time.Time
	tick    time.Duration

	epoch      time.Time // virtual time at construction, restored by Clear
	loopCancel func()
	loopDone   chan struct{}
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithIDGenerator overrides the event id generator.
// Tests use SequenceGenerator for deterministic golden traces.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger overrides the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics wires prometheus counters into the engine.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTickInterval sets the auto-advance loop's wall-clock tick.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) { e.tick = d }
}

// WithTimeScale sets the clock's initial virtual-per-wall multiplier.
// Start's own timeScale argument supersedes it once the engine runs.
// Non-positive values are ignored.
func WithTimeScale(f float64) Option {
	return func(e *Engine) {
		if f > 0 {
			e.clock.timeScale = f
		}
	}
}

// WithWallClock overrides the wall-clock source used by the
// auto-advance loop and for bookkeeping timestamps. Tests use a manual
// stub so traces carry fixed timestamps.
func WithWallClock(now func() time.Time) Option {
	return func(e *Engine) { e.wallNow = now }
}

// DefaultTickInterval is the auto-advance loop's default wall tick.
const DefaultTickInterval = 100 * time.Millisecond

// New creates an Engine positioned at start virtual time over the
// given registry. The registry may keep gaining modalities until the
// first event executes.
func New(registry *modality.Registry, start time.Time, opts ...Option) *Engine {
	e := &Engine{
		clock:    NewClock(start),
		queue:    NewEventQueue(),
		registry: registry,
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
		wallNow:  time.Now,
		tick:     DefaultTickInterval,
		epoch:    start,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submission describes one event to schedule.
type Submission struct {
	// Payload is the command to apply. Required.
	Payload modality.Input

	// Modality overrides the payload's own channel name. Rarely needed.
	Modality string

	// ScheduledAt is the virtual due time. Zero means "now".
	ScheduledAt time.Time

	// Priority breaks ties at equal ScheduledAt, 0-100, higher first.
	Priority int

	// AgentID optionally attributes the event to a driving agent.
	AgentID string

	// Metadata carries caller annotations, copied onto the event.
	Metadata map[string]string

	// ExecuteNow requests synchronous execution when the event is
	// already due at submission time.
	ExecuteNow bool
}

// AddEvent wraps the submission in an Event and inserts it into the
// queue in total order. Events scheduled before the current virtual
// time are rejected with a scheduling error.
func (e *Engine) AddEvent(sub Submission) (*Event, error) {
	if sub.Payload == nil {
		return nil, fmt.Errorf("add event: nil payload")
	}
	if sub.Priority < 0 || sub.Priority > 100 {
		return nil, NewSchedulingError("priority %d out of range [0,100]", sub.Priority)
	}

	name := sub.Modality
	if name == "" {
		name = sub.Payload.ModalityType()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	at := sub.ScheduledAt
	if at.IsZero() {
		at = e.clock.Now()
	}
	if at.Before(e.clock.Now()) {
		return nil, NewSchedulingError("event scheduled at %s is before current time %s",
			at.Format(time.RFC3339), e.clock.Now().Format(time.RFC3339))
	}

	ev := &Event{
		ID:          e.ids.NewID(),
		Modality:    name,
		Payload:     sub.Payload,
		ScheduledAt: at,
		Priority:    sub.Priority,
		Status:      StatusPending,
		CreatedAt:   e.wallNow(),
		AgentID:     sub.AgentID,
	}
	if len(sub.Metadata) > 0 {
		ev.Metadata = make(map[string]string, len(sub.Metadata))
		for k, v := range sub.Metadata {
			ev.Metadata[k] = v
		}
	}

	// Record the coalescing hint against the most recent pending event
	// on the same channel. Preserved for future use, never acted on.
	if prev := e.lastPendingFor(name); prev != nil && ev.Payload.ShouldMergeWith(prev.Payload) {
		if ev.Metadata == nil {
			ev.Metadata = make(map[string]string, 1)
		}
		ev.Metadata["coalesce_with"] = prev.ID
		e.logger.Debug("coalescing hint recorded",
			"event_id", ev.ID,
			"coalesce_with", prev.ID,
			"modality", name,
		)
	}

	if err := e.queue.Insert(ev); err != nil {
		return nil, err
	}

	e.logger.Debug("event enqueued",
		"event_id", ev.ID,
		"modality", ev.Modality,
		"scheduled_at", ev.ScheduledAt,
		"priority", ev.Priority,
		"summary", ev.Payload.Summary(),
	)

	if sub.ExecuteNow && !ev.ScheduledAt.After(e.clock.Now()) {
		e.executeLocked(ev, false)
	}

	e.updateQueueGauge()
	return ev, nil
}

// lastPendingFor returns the pending event on the channel with the
// greatest queue position, or nil.
func (e *Engine) lastPendingFor(name string) *Event {
	events := e.queue.Query(QueryFilter{
		Statuses: []EventStatus{StatusPending},
		Modality: name,
	})
	if len(events) == 0 {
		return nil
	}
	return events[len(events)-1]
}

// CancelEvent transitions a pending event to Cancelled.
func (e *Engine) CancelEvent(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.queue.Cancel(id); err != nil {
		return err
	}
	e.updateQueueGauge()
	e.logger.Debug("event cancelled", "event_id", id)
	return nil
}

// QueryEvents returns a read-only filtered view of the queue.
func (e *Engine) QueryEvents(f QueryFilter) []*Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Query(f)
}

// PendingCount returns the number of pending events.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.PendingCount()
}

// UndoResult reports the outcome of an Undo call.
type UndoResult struct {
	UndoneCount int
	Message     string
	Labels      []string
	CanUndo     bool
	CanRedo     bool
}

// Undo reverses up to count executed events, most recent first.
//
// An empty stack is a zero-count result, not an error. A reversal that
// raises aborts the call immediately without rolling back reversals
// already performed (the stacks encode a strict dependency chain; once
// one entry fails, entries beneath it may no longer match reality).
func (e *Engine) Undo(count int) (UndoResult, error) {
	if count < 1 {
		return UndoResult{}, NewEngineStateError("undo count must be positive, got %d", count)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res := UndoResult{}
	if e.undo.len() == 0 {
		res.Message = "Nothing to undo"
		res.CanRedo = e.redo.len() > 0
		return res, nil
	}

	for i := 0; i < count; i++ {
		entry, ok := e.undo.pop()
		if !ok {
			break
		}

		st, ok := e.registry.Get(entry.Modality)
		if !ok {
			e.undo.push(entry)
			e.finishUndoResult(&res)
			return res, NewUndoFailure(entry.EventID, entry.Modality,
				fmt.Errorf("modality no longer registered"))
		}
		if err := st.Undo(entry.Blob); err != nil {
			// Fail fast: the entry was not reversed, so it stays on the
			// undo stack and the remaining batch is abandoned.
			e.undo.push(entry)
			e.finishUndoResult(&res)
			e.logger.Error("undo failed",
				"event_id", entry.EventID,
				"modality", entry.Modality,
				"error", err,
			)
			return res, NewUndoFailure(entry.EventID, entry.Modality, err)
		}

		if ev, ok := e.queue.Get(entry.EventID); ok {
			ev.Status = StatusPending
			ev.ExecutedAt = nil
			ev.ErrorMessage = ""
		}
		e.registry.RecordMutation(entry.Modality, e.clock.Now())
		e.redo.push(entry)
		e.counters.Undone++
		if e.metrics != nil {
			e.metrics.UndoOps.Inc()
		}

		res.UndoneCount++
		res.Labels = append(res.Labels, entry.Label)
		e.logger.Debug("event undone",
			"event_id", entry.EventID,
			"modality", entry.Modality,
			"label", entry.Label,
		)
	}

	res.Message = fmt.Sprintf("Undid %d event(s)", res.UndoneCount)
	e.finishUndoResult(&res)
	e.updateQueueGauge()
	return res, nil
}

func (e *Engine) finishUndoResult(res *UndoResult) {
	res.CanUndo = e.undo.len() > 0
	res.CanRedo = e.redo.len() > 0
}

// RedoResult reports the outcome of a Redo call.
type RedoResult struct {
	RedoneCount int
	Message     string
	Labels      []string
	CanUndo     bool
	CanRedo     bool
}

// Redo re-executes up to count undone events, most recently undone
// first. Each redo recomputes a fresh undo snapshot at redo time: a
// modality's capacity limits may make it differ from the snapshot
// originally captured.
//
// An empty stack is a zero-count result. A re-execution failure aborts
// the remaining batch; the failed event stays visible with
// status=Failed.
func (e *Engine) Redo(count int) (RedoResult, error) {
	if count < 1 {
		return RedoResult{}, NewEngineStateError("redo count must be positive, got %d", count)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res := RedoResult{}
	if e.redo.len() == 0 {
		res.Message = "Nothing to redo"
		res.CanUndo = e.undo.len() > 0
		return res, nil
	}

	for i := 0; i < count; i++ {
		entry, ok := e.redo.pop()
		if !ok {
			break
		}

		ev, ok := e.queue.Get(entry.EventID)
		if !ok {
			e.finishRedoResult(&res)
			return res, NewUndoFailure(entry.EventID, entry.Modality,
				fmt.Errorf("event no longer in queue"))
		}

		detail := e.executeLocked(ev, true)
		if detail.Status != StatusExecuted {
			e.finishRedoResult(&res)
			return res, NewUndoFailure(entry.EventID, entry.Modality,
				fmt.Errorf("redo execution failed: %s", detail.Error))
		}

		e.counters.Redone++
		if e.metrics != nil {
			e.metrics.RedoOps.Inc()
		}
		res.RedoneCount++
		res.Labels = append(res.Labels, entry.Label)
	}

	res.Message = fmt.Sprintf("Redid %d event(s)", res.RedoneCount)
	e.finishRedoResult(&res)
	e.updateQueueGauge()
	return res, nil
}

func (e *Engine) finishRedoResult(res *RedoResult) {
	res.CanUndo = e.undo.len() > 0
	res.CanRedo = e.redo.len() > 0
}

// UndoDepth returns the number of reversible mutations on the stack.
func (e *Engine) UndoDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.undo.len()
}

// RedoDepth returns the number of redoable mutations on the stack.
func (e *Engine) RedoDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.redo.len()
}

// Reset unwinds every reversible mutation, returns all events to
// Pending, and clears both stacks. The clock keeps its position.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		entry, ok := e.undo.pop()
		if !ok {
			break
		}
		st, ok := e.registry.Get(entry.Modality)
		if !ok {
			e.undo.push(entry)
			return NewUndoFailure(entry.EventID, entry.Modality,
				fmt.Errorf("modality no longer registered"))
		}
		if err := st.Undo(entry.Blob); err != nil {
			e.undo.push(entry)
			return NewUndoFailure(entry.EventID, entry.Modality, err)
		}
		e.registry.RecordMutation(entry.Modality, e.clock.Now())
	}

	e.queue.ResetAll()
	e.undo.clear()
	e.redo.clear()
	e.counters = Counters{}
	e.updateQueueGauge()
	e.logger.Info("engine reset", "pending_events", e.queue.PendingCount())
	return nil
}

// Clear removes all events, resets every modality state to empty, and
// optionally returns the clock to its construction-time position.
func (e *Engine) Clear(resetClock bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queue.Clear()
	e.undo.clear()
	e.redo.clear()
	e.counters = Counters{}

	for _, name := range e.registry.Names() {
		if st, ok := e.registry.Get(name); ok {
			st.Reset()
			e.registry.RecordMutation(name, e.clock.Now())
		}
	}

	if resetClock {
		e.clock = NewClock(e.epoch)
	}
	e.updateQueueGauge()
	e.logger.Info("engine cleared", "reset_clock", resetClock)
}

// Validate aggregates every registered modality's consistency checks.
// Read-only diagnostic: it never self-corrects. The returned map has
// one entry per modality; an empty slice means healthy.
func (e *Engine) Validate() map[string][]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string][]string, e.registry.Len())
	for _, name := range e.registry.Names() {
		st, ok := e.registry.Get(name)
		if !ok {
			continue
		}
		out[name] = st.ValidateConsistency()
	}
	return out
}

// ModalitySnapshot is one channel's view inside an Environment.
type ModalitySnapshot struct {
	Data        map[string]any
	LastUpdated time.Time
	UpdateCount int64
}

// Environment is the aggregate "world" snapshot exposed externally:
// the live modality states plus the clock.
type Environment struct {
	CurrentTime time.Time
	IsPaused    bool
	AutoAdvance bool
	Running     bool
	TimeScale   float64
	Modalities  map[string]ModalitySnapshot
}

// Environment captures the current world snapshot.
func (e *Engine) Environment() Environment {
	e.mu.Lock()
	defer e.mu.Unlock()

	env := Environment{
		CurrentTime: e.clock.Now(),
		IsPaused:    e.clock.IsPaused(),
		AutoAdvance: e.clock.AutoAdvance(),
		Running:     e.clock.IsRunning(),
		TimeScale:   e.clock.TimeScale(),
		Modalities:  make(map[string]ModalitySnapshot, e.registry.Len()),
	}
	for _, name := range e.registry.Names() {
		reg, ok := e.registry.Lookup(name)
		if !ok {
			continue
		}
		env.Modalities[name] = ModalitySnapshot{
			Data:        reg.State.Snapshot(),
			LastUpdated: reg.LastUpdated,
			UpdateCount: reg.UpdateCount,
		}
	}
	return env
}

// QueryModality runs a channel-specific filtered query against the
// named modality's state.
func (e *Engine) QueryModality(name string, params map[string]any) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.registry.Get(name)
	if !ok {
		return nil, NewModalityNotFound(name)
	}
	return st.Query(params)
}

// Now returns the current virtual time.
func (e *Engine) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Now()
}

func (e *Engine) updateQueueGauge() {
	if e.metrics != nil {
		e.metrics.QueueDepth.Set(float64(e.queue.PendingCount()))
	}
}
