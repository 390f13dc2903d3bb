package sim

// Event execution. All functions here run with the engine lock held.

// executeLocked applies one event to its modality state.
//
// Sequence: look up the state, validate the payload, capture the undo
// snapshot, apply. Apply is all-or-nothing: on any error the state is
// unchanged and the event is marked Failed with a message. Execution
// never propagates errors to its caller; the outcome is the returned
// detail record.
//
// viaRedo distinguishes redo re-execution: every execution outside of
// redo clears the redo stack, because the state has diverged from what
// the redo entries assumed.
func (e *Engine) executeLocked(ev *Event, viaRedo bool) ExecutionDetail {
	detail := ExecutionDetail{EventID: ev.ID, Modality: ev.Modality}

	st, ok := e.registry.Get(ev.Modality)
	if !ok {
		return e.failLocked(ev, &detail, NewModalityNotFound(ev.Modality))
	}

	if err := ev.Payload.Validate(); err != nil {
		return e.failLocked(ev, &detail, NewValidationError(ev.ID, ev.Modality, err))
	}

	blob, err := st.SnapshotForUndo(ev.Payload)
	if err != nil {
		return e.failLocked(ev, &detail, err)
	}

	if err := st.Apply(ev.Payload); err != nil {
		return e.failLocked(ev, &detail, err)
	}

	now := e.wallNow()
	ev.Status = StatusExecuted
	ev.ExecutedAt = &now
	ev.ErrorMessage = ""
	detail.Status = StatusExecuted

	e.registry.RecordMutation(ev.Modality, e.clock.Now())
	e.undo.push(UndoEntry{
		EventID:  ev.ID,
		Modality: ev.Modality,
		Blob:     blob,
		Label:    ev.Payload.Summary(),
	})
	if !viaRedo {
		e.redo.clear()
	}

	e.counters.Executed++
	if e.metrics != nil {
		e.metrics.EventsExecuted.Inc()
	}

	e.logger.Debug("event executed",
		"event_id", ev.ID,
		"modality", ev.Modality,
		"scheduled_at", ev.ScheduledAt,
		"summary", ev.Payload.Summary(),
		"affected", ev.Payload.AffectedEntities(),
		"via_redo", viaRedo,
	)
	return detail
}

// failLocked marks an event Failed. Failed events stay visible forever
// with their message; nothing is silently dropped.
func (e *Engine) failLocked(ev *Event, detail *ExecutionDetail, cause error) ExecutionDetail {
	ev.Status = StatusFailed
	ev.ErrorMessage = cause.Error()
	detail.Status = StatusFailed
	detail.Error = cause.Error()

	e.counters.Failed++
	if e.metrics != nil {
		e.metrics.EventsFailed.Inc()
	}

	e.logger.Error("event execution failed",
		"event_id", ev.ID,
		"modality", ev.Modality,
		"error", cause,
	)
	return *detail
}
