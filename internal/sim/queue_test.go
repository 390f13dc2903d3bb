package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holodeck-sim/holodeck/internal/testutil"
)

var t0 = time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestEvent(id, channel string, at time.Time, priority int) *Event {
	return &Event{
		ID:          id,
		Modality:    channel,
		Payload:     testutil.ScriptedInput{Channel: channel, ID: "in-" + id, At: at},
		ScheduledAt: at,
		Priority:    priority,
		Status:      StatusPending,
	}
}

func TestEventQueue_TotalOrder(t *testing.T) {
	q := NewEventQueue()

	// Inserted out of order on purpose.
	require.NoError(t, q.Insert(newTestEvent("late", "chat", t0.Add(2*time.Hour), 50)))
	require.NoError(t, q.Insert(newTestEvent("early", "chat", t0.Add(time.Hour), 50)))
	require.NoError(t, q.Insert(newTestEvent("high", "chat", t0.Add(time.Hour), 90)))

	next := q.PeekNext()
	require.NotNil(t, next)
	assert.Equal(t, "high", next.ID, "higher priority runs first at equal time")

	due := q.Due(t0.Add(2 * time.Hour))
	require.Len(t, due, 3)
	assert.Equal(t, "high", due[0].ID)
	assert.Equal(t, "early", due[1].ID)
	assert.Equal(t, "late", due[2].ID)
}

func TestEventQueue_InsertionOrderBreaksTies(t *testing.T) {
	q := NewEventQueue()

	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, q.Insert(newTestEvent(id, "chat", t0, 50)))
	}

	due := q.Due(t0)
	require.Len(t, due, 3)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{due[0].ID, due[1].ID, due[2].ID})
}

func TestEventQueue_DuplicateID(t *testing.T) {
	q := NewEventQueue()

	require.NoError(t, q.Insert(newTestEvent("dup", "chat", t0, 50)))
	err := q.Insert(newTestEvent("dup", "chat", t0.Add(time.Minute), 50))
	assert.Error(t, err)
}

func TestEventQueue_NextDue_SkipsNonPending(t *testing.T) {
	q := NewEventQueue()

	first := newTestEvent("first", "chat", t0, 50)
	second := newTestEvent("second", "chat", t0.Add(time.Minute), 50)
	require.NoError(t, q.Insert(first))
	require.NoError(t, q.Insert(second))

	first.Status = StatusExecuted

	next := q.NextDue(t0.Add(time.Hour))
	require.NotNil(t, next)
	assert.Equal(t, "second", next.ID)
}

func TestEventQueue_NextDue_RespectsUpto(t *testing.T) {
	q := NewEventQueue()
	require.NoError(t, q.Insert(newTestEvent("future", "chat", t0.Add(time.Hour), 50)))

	assert.Nil(t, q.NextDue(t0.Add(30*time.Minute)))
	assert.NotNil(t, q.NextDue(t0.Add(time.Hour)), "upto is inclusive")
}

func TestEventQueue_Cancel(t *testing.T) {
	q := NewEventQueue()
	ev := newTestEvent("victim", "chat", t0, 50)
	require.NoError(t, q.Insert(ev))

	require.NoError(t, q.Cancel("victim"))
	assert.Equal(t, StatusCancelled, ev.Status)

	// Only Pending events can be cancelled.
	assert.Error(t, q.Cancel("victim"))
	assert.Error(t, q.Cancel("missing"))
}

func TestEventQueue_Query(t *testing.T) {
	q := NewEventQueue()
	a := newTestEvent("a", "chat", t0, 50)
	b := newTestEvent("b", "email", t0.Add(time.Hour), 50)
	c := newTestEvent("c", "chat", t0.Add(2*time.Hour), 50)
	for _, ev := range []*Event{a, b, c} {
		require.NoError(t, q.Insert(ev))
	}
	b.Status = StatusExecuted

	byModality := q.Query(QueryFilter{Modality: "chat"})
	require.Len(t, byModality, 2)

	byStatus := q.Query(QueryFilter{Statuses: []EventStatus{StatusExecuted}})
	require.Len(t, byStatus, 1)
	assert.Equal(t, "b", byStatus[0].ID)

	from := t0.Add(30 * time.Minute)
	to := t0.Add(90 * time.Minute)
	byRange := q.Query(QueryFilter{From: &from, To: &to})
	require.Len(t, byRange, 1)
	assert.Equal(t, "b", byRange[0].ID)

	paged := q.Query(QueryFilter{Limit: 1, Offset: 1})
	require.Len(t, paged, 1)
	assert.Equal(t, "b", paged[0].ID)
}

func TestEventQueue_ResetAll(t *testing.T) {
	q := NewEventQueue()
	ev := newTestEvent("exec", "chat", t0, 50)
	require.NoError(t, q.Insert(ev))

	now := time.Now()
	ev.Status = StatusFailed
	ev.ExecutedAt = &now
	ev.ErrorMessage = "boom"

	q.ResetAll()

	assert.Equal(t, StatusPending, ev.Status)
	assert.Nil(t, ev.ExecutedAt)
	assert.Empty(t, ev.ErrorMessage)
}

func TestEventQueue_PendingCount(t *testing.T) {
	q := NewEventQueue()
	a := newTestEvent("a", "chat", t0, 50)
	b := newTestEvent("b", "chat", t0, 50)
	require.NoError(t, q.Insert(a))
	require.NoError(t, q.Insert(b))

	a.Status = StatusSkipped
	assert.Equal(t, 1, q.PendingCount())
	assert.Equal(t, 2, q.Len(), "terminal events stay visible")
}
