// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package next_edit exposes the review engine over HTTP.
//
// The package wires the analyzer, sequencer, executor, storage, and
// session manager into one service and maps the engine's error taxonomy
// onto HTTP status codes.
package next_edit

import (
	"github.com/AleutianAI/nextedit/services/next_edit/analyzer"
	"github.com/AleutianAI/nextedit/services/next_edit/edit"
	"github.com/AleutianAI/nextedit/services/next_edit/executor"
)

// =============================================================================
// Requests
// =============================================================================

// StartSessionRequest starts a new review session.
type StartSessionRequest struct {
	// WorkspaceURI is the workspace root under review.
	WorkspaceURI string `json:"workspace_uri" binding:"required"`

	// Goal is the reviewer's objective.
	Goal string `json:"goal" binding:"required"`

	// Options tunes the analysis pass. Zero value uses defaults.
	Options *analyzer.Options `json:"options,omitempty"`
}

// ApplyEditRequest applies the addressed suggestion.
type ApplyEditRequest struct {
	// UserModification replaces the suggested content when non-empty.
	UserModification string `json:"user_modification,omitempty"`
}

// SkipEditRequest declines the addressed suggestion.
type SkipEditRequest struct {
	// Reason is an optional note recorded with the skip.
	Reason string `json:"reason,omitempty"`
}

// UndoRequest selects the undo granularity.
type UndoRequest struct {
	// Level is "edit", "file", or "all". Defaults to "edit".
	Level string `json:"level,omitempty"`
}

// =============================================================================
// Responses
// =============================================================================

// SessionResponse returns a session with its derived progress.
type SessionResponse struct {
	Session  *edit.Session `json:"session"`
	Progress edit.Progress `json:"progress"`
}

// SessionListResponse returns all stored sessions, newest first.
type SessionListResponse struct {
	Sessions []*edit.Session `json:"sessions"`
	Count    int             `json:"count"`
}

// NextEditResponse returns the suggestion to review next, bundled with
// its derived context so the reviewer UI can render in one round trip.
// Context is nil when derivation failed; the suggestion is still served.
type NextEditResponse struct {
	Edit     *edit.Suggestion `json:"edit"`
	Context  *edit.Context    `json:"context,omitempty"`
	Progress edit.Progress    `json:"progress"`
}

// ApplyEditResponse returns the apply outcome.
type ApplyEditResponse struct {
	Result   *executor.ApplyResult `json:"result"`
	Progress edit.Progress         `json:"progress"`
}

// UndoResponse returns the reverted actions, most recent first.
type UndoResponse struct {
	Reverted []edit.Action `json:"reverted"`
	Progress edit.Progress `json:"progress"`
}

// RedoResponse returns the reapplied action.
type RedoResponse struct {
	Action   *edit.Action  `json:"action"`
	Progress edit.Progress `json:"progress"`
}

// DiffResponse returns a rendered unified diff for one suggestion.
type DiffResponse struct {
	EditID string `json:"edit_id"`
	Diff   string `json:"diff"`
}

// ContextResponse returns derived context for one suggestion.
type ContextResponse struct {
	Context *edit.Context `json:"context"`
}

// PreviewResponse returns rendered diffs for all unprocessed suggestions.
type PreviewResponse struct {
	Previews []executor.Preview `json:"previews"`
	Count    int                `json:"count"`
}

// ChangesResponse returns the net applied change per touched file.
type ChangesResponse struct {
	Changes []executor.FileChange `json:"changes"`
	Count   int                   `json:"count"`
}

// SummaryResponse returns the end-of-session report.
type SummaryResponse struct {
	Summary edit.SessionSummary `json:"summary"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// ReadyResponse reports whether the session store is reachable.
type ReadyResponse struct {
	Ready        bool `json:"ready"`
	SessionCount int  `json:"session_count"`
}

// ErrorResponse is the error envelope for all endpoints.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
