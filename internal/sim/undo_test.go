package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holodeck-sim/holodeck/internal/modality"
	"github.com/holodeck-sim/holodeck/internal/modality/journal"
	"github.com/holodeck-sim/holodeck/internal/testutil"
)

func TestUndo_EmptyStack(t *testing.T) {
	eng, _ := newTestEngine(t, "chat")

	res, err := eng.Undo(1)
	require.NoError(t, err, "nothing to undo is a zero result, not an error")
	assert.Equal(t, 0, res.UndoneCount)
	assert.Equal(t, "Nothing to undo", res.Message)
	assert.False(t, res.CanUndo)
}

func TestRedo_EmptyStack(t *testing.T) {
	eng, _ := newTestEngine(t, "chat")

	res, err := eng.Redo(1)
	require.NoError(t, err)
	assert.Equal(t, 0, res.RedoneCount)
	assert.Equal(t, "Nothing to redo", res.Message)
	assert.False(t, res.CanRedo)
}

func TestUndoRedo_InverseLaw(t *testing.T) {
	reg := modality.NewRegistry()
	j := journal.New("notes", 0)
	require.NoError(t, reg.Register(j))

	eng := New(reg, t0,
		WithIDGenerator(NewSequenceGenerator("evt")),
		WithWallClock(testutil.NewManualClock(t0).Now),
	)

	_, err := eng.AddEvent(Submission{
		Payload: journal.Input{
			Channel: "notes", ID: "in-1", At: t0.Add(time.Minute),
			Op: journal.OpAdd, Entry: journal.Entry{ID: "n1", Body: "hello"},
		},
		ScheduledAt: t0.Add(time.Minute),
	})
	require.NoError(t, err)

	before := j.Snapshot()
	_, err = eng.AdvanceTime(time.Hour)
	require.NoError(t, err)
	after := j.Snapshot()
	require.NotEqual(t, before, after)

	// S --apply--> S'; undo yields S; redo yields S' again, stable
	// across at least 3 consecutive cycles.
	for cycle := 0; cycle < 3; cycle++ {
		undone, err := eng.Undo(1)
		require.NoError(t, err)
		require.Equal(t, 1, undone.UndoneCount, "cycle %d", cycle)
		assert.Equal(t, before, j.Snapshot(), "cycle %d: undo restores S", cycle)

		redone, err := eng.Redo(1)
		require.NoError(t, err)
		require.Equal(t, 1, redone.RedoneCount, "cycle %d", cycle)
		assert.Equal(t, after, j.Snapshot(), "cycle %d: redo restores S'", cycle)
	}
}

func TestUndo_EventBackToPending(t *testing.T) {
	eng, _ := newTestEngine(t, "chat")
	ev := submit(t, eng, "chat", "in-1", t0.Add(time.Minute), 50)

	_, err := eng.AdvanceTime(time.Hour)
	require.NoError(t, err)
	require.Equal(t, StatusExecuted, ev.Status)
	require.NotNil(t, ev.ExecutedAt)

	res, err := eng.Undo(1)
	require.NoError(t, err)
	require.Equal(t, 1, res.UndoneCount)

	assert.Equal(t, StatusPending, ev.Status)
	assert.Nil(t, ev.ExecutedAt)
	assert.True(t, res.CanRedo)
	assert.False(t, res.CanUndo)
}

func TestRedo_InvalidatedByNewExecution(t *testing.T) {
	eng, states := newTestEngine(t, "chat")
	submit(t, eng, "chat", "in-1", t0.Add(time.Minute), 50)

	_, err := eng.AdvanceTime(10 * time.Minute)
	require.NoError(t, err)

	undone, err := eng.Undo(1)
	require.NoError(t, err)
	require.Equal(t, 1, undone.UndoneCount)

	// Any execution outside of redo diverges the timeline.
	_, err = eng.AddEvent(Submission{
		Payload:    testutil.ScriptedInput{Channel: "chat", ID: "in-2"},
		ExecuteNow: true,
	})
	require.NoError(t, err)

	res, err := eng.Redo(1)
	require.NoError(t, err)
	assert.Equal(t, 0, res.RedoneCount)
	assert.False(t, res.CanRedo)
	assert.Equal(t, []string{"in-2"}, states["chat"].Applied)
}

func TestUndo_MultiStepOrder(t *testing.T) {
	eng, states := newTestEngine(t, "chat")
	submit(t, eng, "chat", "in-1", t0.Add(time.Minute), 50)
	submit(t, eng, "chat", "in-2", t0.Add(2*time.Minute), 50)
	submit(t, eng, "chat", "in-3", t0.Add(3*time.Minute), 50)

	_, err := eng.AdvanceTime(time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{"in-1", "in-2", "in-3"}, states["chat"].Applied)

	res, err := eng.Undo(2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.UndoneCount)
	assert.Equal(t, []string{"in-1"}, states["chat"].Applied, "most recent first")
	assert.True(t, res.CanUndo)
	assert.True(t, res.CanRedo)

	redone, err := eng.Redo(2)
	require.NoError(t, err)
	assert.Equal(t, 2, redone.RedoneCount)
	assert.Equal(t, []string{"in-1", "in-2", "in-3"}, states["chat"].Applied,
		"redo replays in original execution order")
}

func TestUndo_CountBeyondStack(t *testing.T) {
	eng, _ := newTestEngine(t, "chat")
	submit(t, eng, "chat", "in-1", t0.Add(time.Minute), 50)
	_, err := eng.AdvanceTime(time.Hour)
	require.NoError(t, err)

	res, err := eng.Undo(10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.UndoneCount, "undo stops at the stack bottom")
}

func TestUndo_FailFastAbortsBatch(t *testing.T) {
	eng, states := newTestEngine(t, "chat", "email")

	// email executes first so it sits beneath chat on the undo stack.
	submit(t, eng, "email", "e1", t0.Add(time.Minute), 50)
	submit(t, eng, "chat", "c1", t0.Add(2*time.Minute), 50)
	_, err := eng.AdvanceTime(time.Hour)
	require.NoError(t, err)

	states["email"].FailUndo = true

	res, err := eng.Undo(2)
	require.Error(t, err)
	assert.True(t, IsUndoFailure(err))
	assert.Equal(t, 1, res.UndoneCount,
		"the reversal already performed is not rolled back")
	assert.Empty(t, states["chat"].Applied)
	assert.Equal(t, []string{"e1"}, states["email"].Applied)
	assert.Equal(t, 1, eng.UndoDepth(), "the failed entry stays on the stack")
}

func TestUndo_RejectsNonPositiveCount(t *testing.T) {
	eng, _ := newTestEngine(t, "chat")

	_, err := eng.Undo(0)
	assert.Error(t, err)
	_, err = eng.Redo(-1)
	assert.Error(t, err)
}

func TestRedo_FreshSnapshotAtCapacity(t *testing.T) {
	// A capacity-2 journal: redoing an add against a refilled journal
	// recomputes the eviction snapshot instead of trusting the original.
	reg := modality.NewRegistry()
	j := journal.New("notes", 2)
	require.NoError(t, reg.Register(j))

	eng := New(reg, t0,
		WithIDGenerator(NewSequenceGenerator("evt")),
		WithWallClock(testutil.NewManualClock(t0).Now),
	)

	add := func(entryID string, at time.Time) {
		_, err := eng.AddEvent(Submission{
			Payload: journal.Input{
				Channel: "notes", ID: "in-" + entryID, At: at,
				Op: journal.OpAdd, Entry: journal.Entry{ID: entryID},
			},
			ScheduledAt: at,
		})
		require.NoError(t, err)
	}

	add("a", t0.Add(1*time.Minute))
	add("b", t0.Add(2*time.Minute))
	add("c", t0.Add(3*time.Minute)) // evicts a

	_, err := eng.AdvanceTime(time.Hour)
	require.NoError(t, err)
	require.Equal(t, []journal.Entry{{ID: "b"}, {ID: "c"}}, j.Entries())

	// Undo the add of c: a comes back.
	undone, err := eng.Undo(1)
	require.NoError(t, err)
	require.Equal(t, 1, undone.UndoneCount)
	require.Equal(t, []journal.Entry{{ID: "a"}, {ID: "b"}}, j.Entries())

	// Redo recomputes the snapshot against the current state and
	// evicts a again.
	redone, err := eng.Redo(1)
	require.NoError(t, err)
	require.Equal(t, 1, redone.RedoneCount)
	assert.Equal(t, []journal.Entry{{ID: "b"}, {ID: "c"}}, j.Entries())
}

func TestUndo_IrreversibleMutation(t *testing.T) {
	reg := modality.NewRegistry()
	j := journal.New("notes", 0)
	require.NoError(t, reg.Register(j))
	eng := New(reg, t0, WithIDGenerator(NewSequenceGenerator("evt")))

	_, err := eng.AddEvent(Submission{
		Payload: journal.Input{
			Channel: "notes", ID: "in-1", At: t0,
			Op: journal.OpAdd, Entry: journal.Entry{ID: "n1"},
		},
		ExecuteNow: true,
	})
	require.NoError(t, err)

	_, err = eng.AddEvent(Submission{
		Payload:    journal.Input{Channel: "notes", ID: "in-2", At: t0, Op: journal.OpClear},
		ExecuteNow: true,
	})
	require.NoError(t, err)

	_, err = eng.Undo(1)
	require.Error(t, err, "clear declares itself irreversible; its undo raises")
	assert.True(t, IsUndoFailure(err))
}
