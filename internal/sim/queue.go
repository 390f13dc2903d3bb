package sim

import (
	"fmt"
	"sort"
	"time"
)

// EventQueue is the ordered multiset of events keyed by
// (scheduled_time asc, priority desc, insertion order asc).
//
// This total order is the sole source of truth for "what happens next".
// The queue is unbounded; events stay visible after reaching a terminal
// status so failures and skips are never silently dropped.
//
// Thread-safety: the queue carries no lock. It is owned by the Engine
// and accessed only inside the engine's exclusive section, because
// advance/undo/redo/submission all read-then-write it and must not
// interleave partially.
type EventQueue struct {
	// ordered holds every event, sorted by Event.before. Terminal
	// events are kept in place: order is a property of the timeline,
	// not of pendingness.
	ordered []*Event

	byID    map[string]*Event
	nextSeq int64
}

// NewEventQueue creates an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{
		ordered: make([]*Event, 0, 64),
		byID:    make(map[string]*Event),
	}
}

// Insert adds an event in total order and stamps its insertion seq.
// Scheduling validation (no past times) happens in the engine, which
// owns the clock.
func (q *EventQueue) Insert(ev *Event) error {
	if ev.ID == "" {
		return fmt.Errorf("insert: event has no id")
	}
	if _, ok := q.byID[ev.ID]; ok {
		return fmt.Errorf("insert: duplicate event id %q", ev.ID)
	}

	q.nextSeq++
	ev.seq = q.nextSeq

	// Binary search keeps insertion O(log n) compares; identical keys
	// land after existing entries because seq strictly increases.
	i := sort.Search(len(q.ordered), func(i int) bool {
		return ev.before(q.ordered[i])
	})
	q.ordered = append(q.ordered, nil)
	copy(q.ordered[i+1:], q.ordered[i:])
	q.ordered[i] = ev
	q.byID[ev.ID] = ev
	return nil
}

// Get returns the event with the given id.
func (q *EventQueue) Get(id string) (*Event, bool) {
	ev, ok := q.byID[id]
	return ev, ok
}

// PeekNext returns the next Pending event in total order without
// mutating anything, or nil if none remain.
func (q *EventQueue) PeekNext() *Event {
	for _, ev := range q.ordered {
		if ev.Status == StatusPending {
			return ev
		}
	}
	return nil
}

// NextDue returns the first Pending event with ScheduledAt <= upto, or
// nil. The advance loop calls this repeatedly so that each execution
// sees the order as it stands after the previous one.
func (q *EventQueue) NextDue(upto time.Time) *Event {
	for _, ev := range q.ordered {
		if ev.ScheduledAt.After(upto) {
			return nil
		}
		if ev.Status == StatusPending {
			return ev
		}
	}
	return nil
}

// Due returns the Pending events with ScheduledAt <= upto in total
// order. The slice is a snapshot: callers changing statuses afterwards
// do not perturb it.
func (q *EventQueue) Due(upto time.Time) []*Event {
	var due []*Event
	for _, ev := range q.ordered {
		if ev.ScheduledAt.After(upto) {
			break
		}
		if ev.Status == StatusPending {
			due = append(due, ev)
		}
	}
	return due
}

// Cancel transitions a Pending event to Cancelled.
func (q *EventQueue) Cancel(id string) error {
	ev, ok := q.byID[id]
	if !ok {
		return fmt.Errorf("cancel: unknown event %q", id)
	}
	if ev.Status != StatusPending {
		return fmt.Errorf("cancel: event %q is %s, not pending", id, ev.Status)
	}
	ev.Status = StatusCancelled
	return nil
}

// QueryFilter selects events for read-only views. Zero values mean
// "no constraint".
type QueryFilter struct {
	Statuses []EventStatus
	Modality string
	From     *time.Time // inclusive lower bound on ScheduledAt
	To       *time.Time // inclusive upper bound on ScheduledAt
	Limit    int        // 0 = unlimited
	Offset   int
}

// Query returns a filtered, paginated view in total order. The
// returned events are live; callers must treat them as read-only.
func (q *EventQueue) Query(f QueryFilter) []*Event {
	var out []*Event
	skipped := 0
	for _, ev := range q.ordered {
		if !f.matches(ev) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, ev)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

func (f QueryFilter) matches(ev *Event) bool {
	if f.Modality != "" && ev.Modality != f.Modality {
		return false
	}
	if f.From != nil && ev.ScheduledAt.Before(*f.From) {
		return false
	}
	if f.To != nil && ev.ScheduledAt.After(*f.To) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if ev.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ResetAll returns every event to Pending, clearing execution
// bookkeeping. Used by the engine's Reset after unwinding the undo
// stack.
func (q *EventQueue) ResetAll() {
	for _, ev := range q.ordered {
		ev.Status = StatusPending
		ev.ExecutedAt = nil
		ev.ErrorMessage = ""
	}
}

// Clear removes all events.
func (q *EventQueue) Clear() {
	q.ordered = q.ordered[:0]
	q.byID = make(map[string]*Event)
}

// Len returns the total number of events, terminal ones included.
func (q *EventQueue) Len() int {
	return len(q.ordered)
}

// PendingCount returns the number of Pending events.
func (q *EventQueue) PendingCount() int {
	n := 0
	for _, ev := range q.ordered {
		if ev.Status == StatusPending {
			n++
		}
	}
	return n
}
