// Package journal ships a generic reference modality: a
// capacity-bounded log of entries, registrable under any channel name.
//
// The scenario harness and the CLI register one journal per simulated
// channel, and real channel implementations can use it as the template
// for the plugin contract: typed inputs, all-or-nothing apply, and a
// closed tagged set of undo blob variants instead of stringly-typed
// reversal dispatch.
package journal

import (
	"fmt"
	"time"

	"github.com/holodeck-sim/holodeck/internal/modality"
)

// Op enumerates the journal's input kinds.
type Op string

const (
	// OpAdd appends an entry, evicting the oldest past capacity.
	OpAdd Op = "add"
	// OpRemove deletes an entry by id.
	OpRemove Op = "remove"
	// OpUpdate replaces the body/tags of an entry by id.
	OpUpdate Op = "update"
	// OpClear wipes the journal. Irreversible: its undo raises.
	OpClear Op = "clear"
)

// Entry is one journal record.
type Entry struct {
	ID   string
	Body string
	Tags []string
}

// Input is an immutable journal command.
type Input struct {
	Channel string
	ID      string
	At      time.Time
	Op      Op
	Entry   Entry  // add, update
	EntryID string // remove; defaults to Entry.ID for update
}

var _ modality.Input = Input{}

// ModalityType returns the channel this input targets.
func (in Input) ModalityType() string { return in.Channel }

// Timestamp returns the virtual time of the described change.
func (in Input) Timestamp() time.Time { return in.At }

// InputID returns the input's unique id.
func (in Input) InputID() string { return in.ID }

// Validate rejects semantically invalid commands.
func (in Input) Validate() error {
	switch in.Op {
	case OpAdd:
		if in.Entry.ID == "" {
			return fmt.Errorf("add: entry id required")
		}
	case OpRemove:
		if in.EntryID == "" {
			return fmt.Errorf("remove: entry id required")
		}
	case OpUpdate:
		if in.target() == "" {
			return fmt.Errorf("update: entry id required")
		}
	case OpClear:
		// No fields required.
	default:
		return fmt.Errorf("unknown journal op %q", in.Op)
	}
	return nil
}

// target returns the entry id the input addresses.
func (in Input) target() string {
	switch in.Op {
	case OpAdd:
		return in.Entry.ID
	case OpRemove:
		return in.EntryID
	case OpUpdate:
		if in.EntryID != "" {
			return in.EntryID
		}
		return in.Entry.ID
	default:
		return ""
	}
}

// AffectedEntities returns the ids this input touches.
func (in Input) AffectedEntities() []string {
	if id := in.target(); id != "" {
		return []string{id}
	}
	return nil
}

// Summary returns a one-line log description.
func (in Input) Summary() string {
	switch in.Op {
	case OpClear:
		return fmt.Sprintf("%s: clear journal", in.Channel)
	default:
		return fmt.Sprintf("%s: %s entry %s", in.Channel, in.Op, in.target())
	}
}

// ShouldMergeWith hints that consecutive updates to the same entry
// could coalesce. The engine records the hint without acting on it.
func (in Input) ShouldMergeWith(other modality.Input) bool {
	o, ok := other.(Input)
	if !ok {
		return false
	}
	return in.Op == OpUpdate && o.Op == OpUpdate &&
		in.Channel == o.Channel && in.target() == o.target()
}

// Undo blobs: the closed set of reversal variants this modality
// produces. State.Undo rejects anything else.

type addedBlob struct {
	entryID string
	evicted []Entry // oldest-first, restored to the front on undo
}

type removedBlob struct {
	entry Entry
	index int
}

type updatedBlob struct {
	before Entry
	index  int
}

// clearedBlob marks an irreversible mutation: undo must raise.
type clearedBlob struct {
	count int
}

// State is the journal's mutable data: an ordered entry list with an
// optional capacity. Appends past capacity evict the oldest entries,
// which is what makes a redo-time snapshot observably differ from the
// originally captured one.
type State struct {
	channel  string
	capacity int // 0 = unbounded
	entries  []Entry
}

var _ modality.State = (*State)(nil)

// New creates an empty journal for the given channel name.
// capacity 0 means unbounded.
func New(channel string, capacity int) *State {
	return &State{channel: channel, capacity: capacity}
}

// ModalityType returns the channel name this state serves.
func (s *State) ModalityType() string { return s.channel }

// Len returns the number of entries.
func (s *State) Len() int { return len(s.entries) }

// Entries returns a copy of the current entries, oldest first.
func (s *State) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *State) indexOf(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// SnapshotForUndo captures exactly what the next Apply of in will
// change. Called before Apply; never mutates.
func (s *State) SnapshotForUndo(in modality.Input) (modality.UndoBlob, error) {
	cmd, ok := in.(Input)
	if !ok {
		return nil, fmt.Errorf("journal %s: foreign input type %T", s.channel, in)
	}

	switch cmd.Op {
	case OpAdd:
		if s.indexOf(cmd.Entry.ID) >= 0 {
			return nil, fmt.Errorf("journal %s: entry %s already exists", s.channel, cmd.Entry.ID)
		}
		blob := addedBlob{entryID: cmd.Entry.ID}
		if s.capacity > 0 && len(s.entries)+1 > s.capacity {
			overflow := len(s.entries) + 1 - s.capacity
			blob.evicted = make([]Entry, overflow)
			copy(blob.evicted, s.entries[:overflow])
		}
		return blob, nil

	case OpRemove:
		i := s.indexOf(cmd.EntryID)
		if i < 0 {
			return nil, fmt.Errorf("journal %s: no entry %s", s.channel, cmd.EntryID)
		}
		return removedBlob{entry: s.entries[i], index: i}, nil

	case OpUpdate:
		i := s.indexOf(cmd.target())
		if i < 0 {
			return nil, fmt.Errorf("journal %s: no entry %s", s.channel, cmd.target())
		}
		return updatedBlob{before: s.entries[i], index: i}, nil

	case OpClear:
		return clearedBlob{count: len(s.entries)}, nil

	default:
		return nil, fmt.Errorf("journal %s: unknown op %q", s.channel, cmd.Op)
	}
}

// Apply mutates the journal, all-or-nothing.
func (s *State) Apply(in modality.Input) error {
	cmd, ok := in.(Input)
	if !ok {
		return fmt.Errorf("journal %s: foreign input type %T", s.channel, in)
	}

	switch cmd.Op {
	case OpAdd:
		if s.indexOf(cmd.Entry.ID) >= 0 {
			return fmt.Errorf("journal %s: entry %s already exists", s.channel, cmd.Entry.ID)
		}
		s.entries = append(s.entries, cmd.Entry)
		if s.capacity > 0 && len(s.entries) > s.capacity {
			overflow := len(s.entries) - s.capacity
			s.entries = append(s.entries[:0:0], s.entries[overflow:]...)
		}
		return nil

	case OpRemove:
		i := s.indexOf(cmd.EntryID)
		if i < 0 {
			return fmt.Errorf("journal %s: no entry %s", s.channel, cmd.EntryID)
		}
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		return nil

	case OpUpdate:
		i := s.indexOf(cmd.target())
		if i < 0 {
			return fmt.Errorf("journal %s: no entry %s", s.channel, cmd.target())
		}
		updated := cmd.Entry
		updated.ID = s.entries[i].ID
		s.entries[i] = updated
		return nil

	case OpClear:
		s.entries = nil
		return nil

	default:
		return fmt.Errorf("journal %s: unknown op %q", s.channel, cmd.Op)
	}
}

// Undo reverses exactly one prior Apply using its blob.
func (s *State) Undo(blob modality.UndoBlob) error {
	switch b := blob.(type) {
	case addedBlob:
		i := s.indexOf(b.entryID)
		if i < 0 {
			return fmt.Errorf("journal %s: undo add: entry %s not present", s.channel, b.entryID)
		}
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		if len(b.evicted) > 0 {
			restored := make([]Entry, 0, len(b.evicted)+len(s.entries))
			restored = append(restored, b.evicted...)
			restored = append(restored, s.entries...)
			s.entries = restored
		}
		return nil

	case removedBlob:
		if s.indexOf(b.entry.ID) >= 0 {
			return fmt.Errorf("journal %s: undo remove: entry %s already present", s.channel, b.entry.ID)
		}
		i := b.index
		if i > len(s.entries) {
			i = len(s.entries)
		}
		s.entries = append(s.entries, Entry{})
		copy(s.entries[i+1:], s.entries[i:])
		s.entries[i] = b.entry
		return nil

	case updatedBlob:
		i := s.indexOf(b.before.ID)
		if i < 0 {
			return fmt.Errorf("journal %s: undo update: entry %s not present", s.channel, b.before.ID)
		}
		s.entries[i] = b.before
		return nil

	case clearedBlob:
		return fmt.Errorf("journal %s: clear of %d entries is irreversible", s.channel, b.count)

	default:
		return fmt.Errorf("journal %s: unrecognized undo blob %T", s.channel, blob)
	}
}

// Snapshot returns a full-state view for external reporting.
func (s *State) Snapshot() map[string]any {
	entries := make([]map[string]any, len(s.entries))
	for i, e := range s.entries {
		m := map[string]any{"id": e.ID, "body": e.Body}
		if len(e.Tags) > 0 {
			tags := make([]any, len(e.Tags))
			for j, t := range e.Tags {
				tags[j] = t
			}
			m["tags"] = tags
		}
		entries[i] = m
	}
	return map[string]any{
		"channel": s.channel,
		"count":   len(s.entries),
		"entries": entries,
	}
}

// ValidateConsistency returns violation messages; empty means healthy.
func (s *State) ValidateConsistency() []string {
	var violations []string
	seen := make(map[string]bool, len(s.entries))
	for _, e := range s.entries {
		if e.ID == "" {
			violations = append(violations, "entry with empty id")
			continue
		}
		if seen[e.ID] {
			violations = append(violations, fmt.Sprintf("duplicate entry id %s", e.ID))
		}
		seen[e.ID] = true
	}
	if s.capacity > 0 && len(s.entries) > s.capacity {
		violations = append(violations,
			fmt.Sprintf("entry count %d exceeds capacity %d", len(s.entries), s.capacity))
	}
	return violations
}

// Query filters entries. Supported params: "tag" (string), "limit" (int).
func (s *State) Query(params map[string]any) (any, error) {
	tag, _ := params["tag"].(string)
	limit := 0
	switch v := params["limit"].(type) {
	case int:
		limit = v
	case nil:
	default:
		return nil, fmt.Errorf("journal %s: limit must be an int, got %T", s.channel, v)
	}

	var out []Entry
	for _, e := range s.entries {
		if tag != "" && !hasTag(e, tag) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func hasTag(e Entry, tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Reset empties the journal.
func (s *State) Reset() {
	s.entries = nil
}
