// Package modality defines the plugin contract between the simulation
// engine and the per-channel state machines it orchestrates.
//
// A modality is one simulated channel (email, messaging, calendar,
// location, weather, chat, time-of-day settings). The engine never
// branches on concrete channel types: it holds States in a Registry
// keyed by channel name and drives them exclusively through the
// Input/State interfaces below.
//
// Implementations live outside the core. The journal subpackage ships a
// generic reference implementation used by the scenario harness and as
// a template for real channels.
package modality

import "time"

// Input is an immutable command value describing one state change.
//
// Inputs are constructed by whatever layer deserializes external
// payloads; the engine treats them as opaque beyond this interface.
type Input interface {
	// ModalityType returns the channel name this input targets.
	ModalityType() string

	// Timestamp returns the virtual time the input describes.
	Timestamp() time.Time

	// InputID returns a unique identifier for this input.
	InputID() string

	// Validate reports a domain error for semantically invalid payloads.
	// Validation failures surface as Failed events, never as panics.
	Validate() error

	// AffectedEntities returns the ids this input touches.
	// Reserved for future conflict detection; not enforced today.
	AffectedEntities() []string

	// Summary returns a one-line description for logs and undo labels.
	Summary() string

	// ShouldMergeWith reports whether this input could be coalesced
	// with another. The engine records the hint but does not act on it.
	ShouldMergeWith(other Input) bool
}

// UndoBlob is an opaque reversal token produced by SnapshotForUndo and
// consumed by Undo. Each modality defines its own closed set of typed
// blob variants; Undo must reject blobs it does not recognize.
type UndoBlob any

// State is the mutable, queryable current data of one modality.
//
// States are mutated only through Apply and Undo. Apply must be
// all-or-nothing: on error the state is unchanged. A stalled Apply
// stalls the whole engine, so implementations must be synchronous and
// bounded.
type State interface {
	// ModalityType returns the channel name this state serves.
	ModalityType() string

	// Apply mutates the state according to the input, all-or-nothing.
	Apply(in Input) error

	// SnapshotForUndo captures exactly what the next Apply of in will
	// change. Called before Apply; must not mutate. For irreversible
	// inputs the blob may record that fact, in which case Undo must
	// return an error when handed it.
	SnapshotForUndo(in Input) (UndoBlob, error)

	// Undo reverses exactly one prior Apply using its blob. Returns an
	// error on malformed, foreign, or inconsistent blobs.
	Undo(blob UndoBlob) error

	// Snapshot returns a full-state view for external reporting.
	Snapshot() map[string]any

	// ValidateConsistency returns violation messages; empty means healthy.
	ValidateConsistency() []string

	// Query returns a channel-specific filtered view.
	Query(params map[string]any) (any, error)

	// Reset returns the state to empty. Used by the engine's Clear.
	Reset()
}
