package scenario

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/holodeck-sim/holodeck/internal/modality"
	"github.com/holodeck-sim/holodeck/internal/modality/journal"
	"github.com/holodeck-sim/holodeck/internal/sim"
)

// EventTrace is one event outcome inside a step trace.
type EventTrace struct {
	ID      string          `json:"id"`
	Channel string          `json:"channel"`
	Status  sim.EventStatus `json:"status"`
	Error   string          `json:"error,omitempty"`
}

// StepTrace records the observable outcome of one script step.
type StepTrace struct {
	// Op is the step operation: advance, set_time, skip_to_next,
	// undo, or redo.
	Op string `json:"op"`

	// Executed, Failed, and Skipped count event transitions caused by
	// clock operations.
	Executed int `json:"executed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`

	// Count is the number of events undone or redone.
	Count int `json:"count,omitempty"`

	// Labels describes undone events, most recent first.
	Labels []string `json:"labels,omitempty"`

	// Message carries the engine's human-readable outcome, if any.
	Message string `json:"message,omitempty"`

	// Events lists per-event outcomes in execution order.
	Events []EventTrace `json:"events,omitempty"`

	// Time is the virtual clock after the step.
	Time time.Time `json:"time"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Steps traces each script step in order.
	Steps []StepTrace `json:"steps"`

	// Errors lists assertion failures. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FinalTime is the virtual clock after the last step.
	FinalTime time.Time `json:"final_time"`

	// EntryCounts maps each channel to its journal size after the run.
	EntryCounts map[string]int `json:"entry_counts"`

	// UndoDepth and RedoDepth are the final history stack depths.
	UndoDepth int `json:"undo_depth"`
	RedoDepth int `json:"redo_depth"`
}

// Run executes a scenario against a fresh engine with one journal per
// declared channel. IDs are sequential and the wall clock is pinned to
// the scenario's start time, so repeated runs produce identical traces.
//
// Script operations that the engine rejects (backward set_time, undo
// batch failures) abort the run with an error: a scenario that trips
// them is itself broken. Assertion failures do not abort; they are
// collected into Result.Errors.
func Run(sc *Scenario) (*Result, error) {
	return RunWith(sc)
}

// RunWith is Run with extra engine options appended after the runner's
// defaults, so callers can feed in configured tick interval and time
// scale (or override the defaults outright).
func RunWith(sc *Scenario, engineOpts ...sim.Option) (*Result, error) {
	start, err := time.Parse(time.RFC3339, sc.StartTime)
	if err != nil {
		return nil, fmt.Errorf("start_time: %w", err)
	}

	registry := modality.NewRegistry()
	journals := make(map[string]*journal.State, len(sc.Channels))
	for _, ch := range sc.Channels {
		st := journal.New(ch.Name, ch.Capacity)
		if err := registry.Register(st); err != nil {
			return nil, fmt.Errorf("channel %q: %w", ch.Name, err)
		}
		journals[ch.Name] = st
	}

	opts := []sim.Option{
		sim.WithIDGenerator(sim.NewSequenceGenerator("evt")),
		sim.WithWallClock(func() time.Time { return start }),
		sim.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	opts = append(opts, engineOpts...)
	eng := sim.New(registry, start, opts...)

	for i, ev := range sc.Events {
		if _, err := scheduleEvent(eng, start, i, ev); err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
	}

	result := &Result{Pass: true}
	for i, st := range sc.Script {
		trace, err := runStep(eng, start, st)
		if err != nil {
			return nil, fmt.Errorf("script[%d]: %w", i, err)
		}
		result.Steps = append(result.Steps, trace)
	}

	result.FinalTime = eng.Now()
	result.EntryCounts = make(map[string]int, len(journals))
	for name, st := range journals {
		result.EntryCounts[name] = st.Len()
	}
	result.UndoDepth = eng.UndoDepth()
	result.RedoDepth = eng.RedoDepth()

	evaluateAssertions(sc, eng, start, result)
	return result, nil
}

// scheduleEvent converts one EventSpec into a journal command and
// submits it. The input id is derived from the spec index so traces
// stay deterministic.
func scheduleEvent(eng *sim.Engine, start time.Time, index int, ev EventSpec) (*sim.Event, error) {
	due := start
	if ev.After != "" {
		d, err := time.ParseDuration(ev.After)
		if err != nil {
			return nil, fmt.Errorf("after: %w", err)
		}
		due = start.Add(d)
	}

	in := journal.Input{
		Channel: ev.Channel,
		ID:      fmt.Sprintf("in-%06d", index+1),
		At:      due,
		Op:      journal.Op(ev.Action),
		EntryID: ev.EntryID,
	}
	if ev.Entry != nil {
		in.Entry = journal.Entry{ID: ev.Entry.ID, Body: ev.Entry.Body, Tags: ev.Entry.Tags}
	}

	return eng.AddEvent(sim.Submission{
		Payload:     in,
		ScheduledAt: due,
		Priority:    ev.Priority,
		AgentID:     ev.AgentID,
	})
}

func runStep(eng *sim.Engine, start time.Time, st Step) (StepTrace, error) {
	var trace StepTrace
	switch {
	case st.Advance != "":
		d, err := time.ParseDuration(st.Advance)
		if err != nil {
			return trace, fmt.Errorf("advance: %w", err)
		}
		res, err := eng.AdvanceTime(d)
		if err != nil {
			return trace, err
		}
		trace = advanceTrace("advance", res)

	case st.SetTime != "":
		d, err := time.ParseDuration(st.SetTime)
		if err != nil {
			return trace, fmt.Errorf("set_time: %w", err)
		}
		res, err := eng.SetTime(start.Add(d), st.ExecuteSkipped)
		if err != nil {
			return trace, err
		}
		trace = advanceTrace("set_time", res)

	case st.SkipToNext:
		res, err := eng.SkipToNextEvent()
		if err != nil {
			return trace, err
		}
		trace = advanceTrace("skip_to_next", res.Result)
		trace.Message = res.Message

	case st.Undo != 0:
		res, err := eng.Undo(st.Undo)
		if err != nil {
			return trace, err
		}
		trace = StepTrace{
			Op:      "undo",
			Count:   res.UndoneCount,
			Labels:  res.Labels,
			Message: res.Message,
		}

	case st.Redo != 0:
		res, err := eng.Redo(st.Redo)
		if err != nil {
			return trace, err
		}
		trace = StepTrace{
			Op:      "redo",
			Count:   res.RedoneCount,
			Labels:  res.Labels,
			Message: res.Message,
		}
	}

	trace.Time = eng.Now()
	return trace, nil
}

func advanceTrace(op string, res sim.AdvanceResult) StepTrace {
	trace := StepTrace{
		Op:       op,
		Executed: res.Executed,
		Failed:   res.Failed,
		Skipped:  res.Skipped,
	}
	for _, d := range res.Details {
		trace.Events = append(trace.Events, EventTrace{
			ID:      d.EventID,
			Channel: d.Modality,
			Status:  d.Status,
			Error:   d.Error,
		})
	}
	return trace
}
