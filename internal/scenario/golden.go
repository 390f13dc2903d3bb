package scenario

import (
	"sort"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the complete trace of a scenario execution.
// It marshals through MarshalCanonical, so golden files are stable
// byte-for-byte across runs.
type TraceSnapshot struct {
	ScenarioName string
	Steps        []StepTrace
	FinalTime    time.Time
	EntryCounts  map[string]int
	UndoDepth    int
	RedoDepth    int
}

// snapshotOf extracts the golden-relevant portion of a run result.
func snapshotOf(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		Steps:        result.Steps,
		FinalTime:    result.FinalTime,
		EntryCounts:  result.EntryCounts,
		UndoDepth:    result.UndoDepth,
		RedoDepth:    result.RedoDepth,
	}
}

// toCanonicalMap converts the snapshot to the map shape MarshalCanonical
// accepts. Optional fields are omitted rather than emitted as zero
// values, matching ordinary JSON omitempty conventions.
func (s TraceSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, step := range s.Steps {
		m := map[string]any{
			"op":   step.Op,
			"time": step.Time.UTC().Format(time.RFC3339),
		}
		switch step.Op {
		case "undo", "redo":
			m["count"] = step.Count
			if len(step.Labels) > 0 {
				m["labels"] = toAnySlice(step.Labels)
			}
			if step.Message != "" {
				m["message"] = step.Message
			}
		default:
			m["executed"] = step.Executed
			m["failed"] = step.Failed
			m["skipped"] = step.Skipped
			if step.Message != "" {
				m["message"] = step.Message
			}
			if len(step.Events) > 0 {
				events := make([]any, len(step.Events))
				for j, ev := range step.Events {
					em := map[string]any{
						"id":      ev.ID,
						"channel": ev.Channel,
						"status":  string(ev.Status),
					}
					if ev.Error != "" {
						em["error"] = ev.Error
					}
					events[j] = em
				}
				m["events"] = events
			}
		}
		steps[i] = m
	}

	channels := make(map[string]any, len(s.EntryCounts))
	for name, n := range s.EntryCounts {
		channels[name] = n
	}

	return map[string]any{
		"scenario": s.ScenarioName,
		"steps":    steps,
		"final": map[string]any{
			"time":       s.FinalTime.UTC().Format(time.RFC3339),
			"channels":   channels,
			"undo_depth": s.UndoDepth,
			"redo_depth": s.RedoDepth,
		},
	}
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// RunWithGolden executes a scenario, fails the test on any assertion
// error, and compares the canonical trace against the golden file at
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/scenario -update
func RunWithGolden(t *testing.T, sc *Scenario) error {
	t.Helper()

	result, err := Run(sc)
	if err != nil {
		return err
	}
	if !result.Pass {
		sort.Strings(result.Errors)
		for _, e := range result.Errors {
			t.Errorf("scenario %s: %s", sc.Name, e)
		}
	}

	traceJSON, err := MarshalCanonical(snapshotOf(sc.Name, result).toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, traceJSON)
	return nil
}
