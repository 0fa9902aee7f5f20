// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"sync"

	"github.com/AleutianAI/nextedit/services/next_edit/edit"
)

// StateMachine enforces the session lifecycle transition graph:
//
//	initializing → active     : Analysis produced a suggestion batch
//	initializing → error      : Analysis failed
//	active → paused           : Reviewer suspended the session
//	active → completed        : Reviewer finished the session
//	active → cancelled        : Reviewer abandoned the session
//	active → error            : Unrecoverable failure mid-review
//	paused → active           : Reviewer resumed
//	paused → completed        : Session finished while suspended
//	paused → cancelled        : Session abandoned while suspended
//	paused → error            : Unrecoverable failure while suspended
//
// Terminal states (completed, cancelled, error) have no outgoing edges.
//
// # Thread Safety
//
// StateMachine is safe for concurrent use.
type StateMachine struct {
	mu sync.RWMutex

	// transitions maps valid (from, to) pairs.
	transitions map[edit.SessionStatus]map[edit.SessionStatus]bool
}

// NewStateMachine creates a state machine with the session lifecycle
// graph. Each manager owns its own instance; there is no shared default.
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: make(map[edit.SessionStatus]map[edit.SessionStatus]bool),
	}

	for _, status := range edit.AllSessionStatuses() {
		sm.transitions[status] = make(map[edit.SessionStatus]bool)
	}

	sm.addTransition(edit.SessionInitializing, edit.SessionActive)
	sm.addTransition(edit.SessionInitializing, edit.SessionError)

	sm.addTransition(edit.SessionActive, edit.SessionPaused)
	sm.addTransition(edit.SessionActive, edit.SessionCompleted)
	sm.addTransition(edit.SessionActive, edit.SessionCancelled)
	sm.addTransition(edit.SessionActive, edit.SessionError)

	sm.addTransition(edit.SessionPaused, edit.SessionActive)
	sm.addTransition(edit.SessionPaused, edit.SessionCompleted)
	sm.addTransition(edit.SessionPaused, edit.SessionCancelled)
	sm.addTransition(edit.SessionPaused, edit.SessionError)

	return sm
}

// addTransition registers a valid transition.
func (sm *StateMachine) addTransition(from, to edit.SessionStatus) {
	sm.transitions[from][to] = true
}

// CanTransition reports whether from → to is a valid lifecycle edge.
func (sm *StateMachine) CanTransition(from, to edit.SessionStatus) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if toMap, ok := sm.transitions[from]; ok {
		return toMap[to]
	}
	return false
}

// Transition moves the session to the target status.
//
// # Outputs
//
//   - error: VALIDATION_ERROR when the edge is not in the lifecycle
//     graph. The session is left unchanged on error.
func (sm *StateMachine) Transition(session *edit.Session, to edit.SessionStatus) error {
	if !sm.CanTransition(session.Status, to) {
		return edit.NewError(edit.KindValidationError, map[string]any{
			"session_id": session.ID,
			"from":       session.Status.String(),
			"to":         to.String(),
			"reason":     "invalid session state transition",
		})
	}

	session.Status = to
	return nil
}

// ValidTransitionsFrom returns every status reachable from the given one.
func (sm *StateMachine) ValidTransitionsFrom(from edit.SessionStatus) []edit.SessionStatus {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var result []edit.SessionStatus
	for _, status := range edit.AllSessionStatuses() {
		if sm.transitions[from][status] {
			result = append(result, status)
		}
	}
	return result
}
