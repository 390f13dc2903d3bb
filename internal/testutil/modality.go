package testutil

import (
	"fmt"
	"time"

	"github.com/holodeck-sim/holodeck/internal/modality"
)

// ScriptedInput is a minimal modality input for engine tests.
// Invalid makes Validate fail; MergeHint makes ShouldMergeWith true
// for inputs on the same channel.
type ScriptedInput struct {
	Channel   string
	ID        string
	At        time.Time
	Invalid   bool
	MergeHint bool
}

var _ modality.Input = ScriptedInput{}

func (in ScriptedInput) ModalityType() string { return in.Channel }
func (in ScriptedInput) Timestamp() time.Time { return in.At }
func (in ScriptedInput) InputID() string      { return in.ID }

func (in ScriptedInput) Validate() error {
	if in.Invalid {
		return fmt.Errorf("input %s marked invalid", in.ID)
	}
	return nil
}

func (in ScriptedInput) AffectedEntities() []string { return []string{in.ID} }

func (in ScriptedInput) Summary() string {
	return fmt.Sprintf("%s: scripted input %s", in.Channel, in.ID)
}

func (in ScriptedInput) ShouldMergeWith(other modality.Input) bool {
	o, ok := other.(ScriptedInput)
	return ok && in.MergeHint && in.Channel == o.Channel
}

// appliedBlob is the scripted state's single undo variant.
type appliedBlob struct {
	inputID string
}

// ScriptedState records applied input ids in order and fails on
// command, letting tests exercise every engine failure path.
type ScriptedState struct {
	Channel string
	Applied []string

	FailApply    bool
	FailSnapshot bool
	FailUndo     bool
}

var _ modality.State = (*ScriptedState)(nil)

// NewScriptedState creates an empty scripted state for channel.
func NewScriptedState(channel string) *ScriptedState {
	return &ScriptedState{Channel: channel}
}

func (s *ScriptedState) ModalityType() string { return s.Channel }

func (s *ScriptedState) SnapshotForUndo(in modality.Input) (modality.UndoBlob, error) {
	if s.FailSnapshot {
		return nil, fmt.Errorf("snapshot failure injected on %s", s.Channel)
	}
	cmd, ok := in.(ScriptedInput)
	if !ok {
		return nil, fmt.Errorf("foreign input type %T", in)
	}
	return appliedBlob{inputID: cmd.ID}, nil
}

func (s *ScriptedState) Apply(in modality.Input) error {
	if s.FailApply {
		return fmt.Errorf("apply failure injected on %s", s.Channel)
	}
	cmd, ok := in.(ScriptedInput)
	if !ok {
		return fmt.Errorf("foreign input type %T", in)
	}
	s.Applied = append(s.Applied, cmd.ID)
	return nil
}

func (s *ScriptedState) Undo(blob modality.UndoBlob) error {
	if s.FailUndo {
		return fmt.Errorf("undo failure injected on %s", s.Channel)
	}
	b, ok := blob.(appliedBlob)
	if !ok {
		return fmt.Errorf("unrecognized undo blob %T", blob)
	}
	if len(s.Applied) == 0 {
		return fmt.Errorf("undo %s: nothing applied", b.inputID)
	}
	last := s.Applied[len(s.Applied)-1]
	if last != b.inputID {
		return fmt.Errorf("undo %s: last applied is %s", b.inputID, last)
	}
	s.Applied = s.Applied[:len(s.Applied)-1]
	return nil
}

func (s *ScriptedState) Snapshot() map[string]any {
	applied := make([]any, len(s.Applied))
	for i, id := range s.Applied {
		applied[i] = id
	}
	return map[string]any{
		"channel": s.Channel,
		"count":   len(s.Applied),
		"applied": applied,
	}
}

func (s *ScriptedState) ValidateConsistency() []string {
	seen := make(map[string]bool, len(s.Applied))
	var violations []string
	for _, id := range s.Applied {
		if seen[id] {
			violations = append(violations, fmt.Sprintf("input %s applied twice", id))
		}
		seen[id] = true
	}
	return violations
}

func (s *ScriptedState) Query(params map[string]any) (any, error) {
	return append([]string(nil), s.Applied...), nil
}

func (s *ScriptedState) Reset() {
	s.Applied = nil
}
