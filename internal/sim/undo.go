package sim

import "github.com/holodeck-sim/holodeck/internal/modality"

// UndoEntry records everything needed to reverse one executed event.
//
// The blob is opaque to the engine: each modality produces its own
// closed set of typed reversal variants and is the only party that can
// interpret them.
type UndoEntry struct {
	EventID  string
	Modality string
	Blob     modality.UndoBlob
	Label    string
}

// undoStack is a LIFO log of reversible mutations, bounded only by
// memory. The engine owns two: the undo stack and the redo stack.
//
// The stacks encode a strict dependency chain: entry N assumes the
// state produced by entries 1..N-1. That is why undo/redo batches are
// fail-fast rather than partial-failure tolerant.
type undoStack struct {
	entries []UndoEntry
}

func (s *undoStack) push(e UndoEntry) {
	s.entries = append(s.entries, e)
}

func (s *undoStack) pop() (UndoEntry, bool) {
	if len(s.entries) == 0 {
		return UndoEntry{}, false
	}
	e := s.entries[len(s.entries)-1]
	// Zero the slot so the blob's references are collectable.
	s.entries[len(s.entries)-1] = UndoEntry{}
	s.entries = s.entries[:len(s.entries)-1]
	return e, true
}

func (s *undoStack) len() int {
	return len(s.entries)
}

func (s *undoStack) clear() {
	for i := range s.entries {
		s.entries[i] = UndoEntry{}
	}
	s.entries = s.entries[:0]
}
