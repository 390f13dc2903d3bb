package scenario

import (
	"fmt"
	"time"

	"github.com/holodeck-sim/holodeck/internal/sim"
)

// evaluateAssertions checks every assertion against the final engine
// state, appending one error string per failure. A run with failures
// still produces a full trace so golden diffs remain useful.
func evaluateAssertions(sc *Scenario, eng *sim.Engine, start time.Time, result *Result) {
	for i, a := range sc.Assertions {
		if err := evaluateAssertion(a, eng, start, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("assertions[%d]: %v", i, err))
			result.Pass = false
		}
	}
}

func evaluateAssertion(a Assertion, eng *sim.Engine, start time.Time, result *Result) error {
	switch a.Type {
	case AssertStatusCount:
		got := len(eng.QueryEvents(sim.QueryFilter{
			Statuses: []sim.EventStatus{sim.EventStatus(a.Status)},
		}))
		if got != a.Count {
			return fmt.Errorf("status_count: expected %d %s event(s), got %d", a.Count, a.Status, got)
		}

	case AssertEntryCount:
		got, ok := result.EntryCounts[a.Channel]
		if !ok {
			return fmt.Errorf("entry_count: unknown channel %q", a.Channel)
		}
		if got != a.Count {
			return fmt.Errorf("entry_count: expected %d entries in %s, got %d", a.Count, a.Channel, got)
		}

	case AssertClockAt:
		d, err := time.ParseDuration(a.At)
		if err != nil {
			return fmt.Errorf("clock_at: %w", err)
		}
		want := start.Add(d)
		if !result.FinalTime.Equal(want) {
			return fmt.Errorf("clock_at: expected %s, got %s",
				want.Format(time.RFC3339), result.FinalTime.Format(time.RFC3339))
		}

	case AssertUndoDepth:
		if result.UndoDepth != a.Count {
			return fmt.Errorf("undo_depth: expected %d, got %d", a.Count, result.UndoDepth)
		}

	case AssertRedoDepth:
		if result.RedoDepth != a.Count {
			return fmt.Errorf("redo_depth: expected %d, got %d", a.Count, result.RedoDepth)
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
