package sim

import (
	"time"

	"github.com/holodeck-sim/holodeck/internal/modality"
)

// EventStatus is the lifecycle state of a scheduled event.
type EventStatus string

const (
	// StatusPending means the event has not executed yet. Undone events
	// return to Pending.
	StatusPending EventStatus = "pending"

	// StatusExecuted means the event mutated its modality successfully.
	StatusExecuted EventStatus = "executed"

	// StatusFailed means execution raised; the modality is unchanged.
	// Failed events remain visible forever with their error message.
	StatusFailed EventStatus = "failed"

	// StatusSkipped means a time jump passed the event without
	// executing it. Skipped events never mutated state and therefore
	// cannot be undone.
	StatusSkipped EventStatus = "skipped"

	// StatusCancelled means the event was withdrawn while Pending.
	StatusCancelled EventStatus = "cancelled"
)

// Event wraps one modality input awaiting or having undergone
// execution.
//
// Ownership: the EventQueue owns events until they reach a terminal
// status. The payload is immutable; status, timestamps, and the error
// message are mutated by the engine inside its exclusive section.
type Event struct {
	// ID uniquely identifies the event.
	ID string

	// Modality names the target channel.
	Modality string

	// Payload is the command to apply. Never mutated after enqueue.
	Payload modality.Input

	// ScheduledAt is the virtual time the event becomes due.
	ScheduledAt time.Time

	// Priority breaks ties at equal ScheduledAt; higher runs first.
	// Range 0-100.
	Priority int

	// Status tracks the lifecycle state.
	Status EventStatus

	// CreatedAt is the wall-clock submission time (bookkeeping only;
	// it never participates in ordering).
	CreatedAt time.Time

	// ExecutedAt is the wall-clock execution time, nil until Executed.
	ExecutedAt *time.Time

	// ErrorMessage holds the failure reason when Status is Failed.
	ErrorMessage string

	// AgentID optionally attributes the event to a driving agent.
	AgentID string

	// Metadata carries optional caller annotations. The engine also
	// records coalescing hints here (key "coalesce_with").
	Metadata map[string]string

	// seq is the insertion order, the final ordering tiebreaker.
	seq int64
}

// ExecutionDetail is the per-event record returned from every
// time-advancement batch, in execution order. Required for
// deterministic replay and assertions.
type ExecutionDetail struct {
	EventID  string
	Modality string
	Status   EventStatus
	Error    string
}

// before reports whether e precedes other in the queue's total order:
// scheduled time ascending, then priority descending, then insertion
// order ascending. The order is stable for identical inputs, which is
// what makes replay deterministic.
func (e *Event) before(other *Event) bool {
	if !e.ScheduledAt.Equal(other.ScheduledAt) {
		return e.ScheduledAt.Before(other.ScheduledAt)
	}
	if e.Priority != other.Priority {
		return e.Priority > other.Priority
	}
	return e.seq < other.seq
}
