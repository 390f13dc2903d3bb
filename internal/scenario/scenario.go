// Package scenario provides a declarative conformance harness for the
// simulation engine. Scenarios are YAML documents that declare channels,
// schedule journal events, drive the clock through a script, and assert
// on the resulting state. Executions produce a deterministic trace that
// can be compared against golden files.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance test: an initial environment, a set
// of scheduled events, the script of clock and history operations to
// drive, and assertions over the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// StartTime is the virtual epoch, RFC 3339.
	StartTime string `yaml:"start_time"`

	// Channels lists the journal modalities to register before the run.
	Channels []ChannelSpec `yaml:"channels"`

	// Events are the journal commands to schedule before the script
	// starts. Scheduling order in the file is insertion order.
	Events []EventSpec `yaml:"events,omitempty"`

	// Script is the sequence of clock and history operations to drive.
	Script []Step `yaml:"script"`

	// Assertions validate the final environment after the script runs.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ChannelSpec declares one journal channel.
type ChannelSpec struct {
	Name string `yaml:"name"`

	// Capacity bounds the journal; 0 means unbounded.
	Capacity int `yaml:"capacity,omitempty"`
}

// EventSpec schedules one journal command.
type EventSpec struct {
	// Channel names the target journal.
	Channel string `yaml:"channel"`

	// After is the due-time offset from StartTime in time.ParseDuration
	// syntax ("5m", "1h30m"). Empty means due at StartTime.
	After string `yaml:"after,omitempty"`

	// Priority breaks ties at equal due time, 0-100, higher first.
	Priority int `yaml:"priority,omitempty"`

	// Action is the journal op: add, remove, update, or clear.
	Action string `yaml:"action"`

	// Entry carries the record for add and update.
	Entry *EntrySpec `yaml:"entry,omitempty"`

	// EntryID targets an existing record for remove and update.
	EntryID string `yaml:"entry_id,omitempty"`

	// AgentID optionally attributes the event to a driving agent.
	AgentID string `yaml:"agent_id,omitempty"`
}

// EntrySpec is the YAML shape of a journal record.
type EntrySpec struct {
	ID   string   `yaml:"id"`
	Body string   `yaml:"body,omitempty"`
	Tags []string `yaml:"tags,omitempty"`
}

// Step is one script operation. Exactly one of the operation fields
// must be set.
type Step struct {
	// Advance moves the clock forward by a duration offset.
	Advance string `yaml:"advance,omitempty"`

	// SetTime jumps the clock to an offset from StartTime.
	SetTime string `yaml:"set_time,omitempty"`

	// ExecuteSkipped makes SetTime execute overtaken events instead of
	// marking them skipped. Only meaningful with SetTime.
	ExecuteSkipped bool `yaml:"execute_skipped,omitempty"`

	// SkipToNext jumps to the next pending event's due time.
	SkipToNext bool `yaml:"skip_to_next,omitempty"`

	// Undo reverses the N most recent executions.
	Undo int `yaml:"undo,omitempty"`

	// Redo re-executes the N most recently undone events.
	Redo int `yaml:"redo,omitempty"`
}

// Assertion validates the final environment.
//
// Supported types:
//   - "status_count": Count events in a given status across the queue.
//   - "entry_count": Count entries in a channel's journal.
//   - "clock_at": Check the final virtual time against an offset.
//   - "undo_depth": Check the undo stack depth.
//   - "redo_depth": Check the redo stack depth.
type Assertion struct {
	Type string `yaml:"type"`

	// Status is the expected event status (status_count).
	Status string `yaml:"status,omitempty"`

	// Channel names the journal to inspect (entry_count).
	Channel string `yaml:"channel,omitempty"`

	// At is the expected clock offset from StartTime (clock_at).
	At string `yaml:"at,omitempty"`

	// Count is the expected cardinality (status_count, entry_count,
	// undo_depth, redo_depth).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStatusCount = "status_count"
	AssertEntryCount  = "entry_count"
	AssertClockAt     = "clock_at"
	AssertUndoDepth   = "undo_depth"
	AssertRedoDepth   = "redo_depth"
)

// Load reads and parses a scenario YAML file. The document is first
// validated against the embedded schema, then decoded with strict
// field checking so typos surface as errors rather than silently
// dropped fields.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario document from raw YAML bytes.
func Parse(data []byte) (*Scenario, error) {
	// Schema validation happens on the generic document so CUE sees
	// the raw shape, including unknown fields.
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// validateScenario checks cross-field constraints the schema cannot
// express, and pre-parses every duration and timestamp so runs never
// fail halfway through the script.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := time.Parse(time.RFC3339, s.StartTime); err != nil {
		return fmt.Errorf("start_time: %w", err)
	}
	if len(s.Channels) == 0 {
		return fmt.Errorf("channels list is required and must be non-empty")
	}
	declared := make(map[string]bool, len(s.Channels))
	for i, ch := range s.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channels[%d]: name is required", i)
		}
		if declared[ch.Name] {
			return fmt.Errorf("channels[%d]: duplicate channel %q", i, ch.Name)
		}
		declared[ch.Name] = true
	}
	for i, ev := range s.Events {
		if !declared[ev.Channel] {
			return fmt.Errorf("events[%d]: undeclared channel %q", i, ev.Channel)
		}
		if ev.After != "" {
			d, err := time.ParseDuration(ev.After)
			if err != nil {
				return fmt.Errorf("events[%d]: after: %w", i, err)
			}
			if d < 0 {
				return fmt.Errorf("events[%d]: after must not be negative", i)
			}
		}
	}
	if len(s.Script) == 0 {
		return fmt.Errorf("script list is required and must be non-empty")
	}
	for i, st := range s.Script {
		if err := validateStep(st); err != nil {
			return fmt.Errorf("script[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertStatusCount:
			if a.Status == "" {
				return fmt.Errorf("assertions[%d]: status is required", i)
			}
		case AssertEntryCount:
			if !declared[a.Channel] {
				return fmt.Errorf("assertions[%d]: undeclared channel %q", i, a.Channel)
			}
		case AssertClockAt:
			if _, err := time.ParseDuration(a.At); err != nil {
				return fmt.Errorf("assertions[%d]: at: %w", i, err)
			}
		case AssertUndoDepth, AssertRedoDepth:
			// Count alone suffices.
		default:
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
	}
	return nil
}

func validateStep(st Step) error {
	ops := 0
	if st.Advance != "" {
		if _, err := time.ParseDuration(st.Advance); err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		ops++
	}
	if st.SetTime != "" {
		if _, err := time.ParseDuration(st.SetTime); err != nil {
			return fmt.Errorf("set_time: %w", err)
		}
		ops++
	}
	if st.SkipToNext {
		ops++
	}
	if st.Undo != 0 {
		if st.Undo < 0 {
			return fmt.Errorf("undo must be positive")
		}
		ops++
	}
	if st.Redo != 0 {
		if st.Redo < 0 {
			return fmt.Errorf("redo must be positive")
		}
		ops++
	}
	if ops != 1 {
		return fmt.Errorf("exactly one operation per step, got %d", ops)
	}
	if st.ExecuteSkipped && st.SetTime == "" {
		return fmt.Errorf("execute_skipped requires set_time")
	}
	return nil
}
