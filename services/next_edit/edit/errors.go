// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package edit

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind is the closed set of error categories raised by the engine.
//
// Every raised error carries a kind plus a structured detail bag for
// programmatic handling. Human-readable messages are derived from
// kind+details, never hand-authored at call sites.
type ErrorKind string

const (
	// KindSessionNotFound indicates an unknown session id.
	KindSessionNotFound ErrorKind = "SESSION_NOT_FOUND"

	// KindSessionAlreadyActive indicates a second session start while one
	// is in progress.
	KindSessionAlreadyActive ErrorKind = "SESSION_ALREADY_ACTIVE"

	// KindInvalidSessionID indicates a malformed or empty session id.
	KindInvalidSessionID ErrorKind = "INVALID_SESSION_ID"

	// KindEditNotFound indicates an unknown suggestion id.
	KindEditNotFound ErrorKind = "EDIT_NOT_FOUND"

	// KindEditAlreadyProcessed indicates a decision on a suggestion that
	// already has a terminal status.
	KindEditAlreadyProcessed ErrorKind = "EDIT_ALREADY_PROCESSED"

	// KindDependencyNotMet indicates an apply attempted before the
	// suggestion's dependencies were completed.
	KindDependencyNotMet ErrorKind = "DEPENDENCY_NOT_MET"

	// KindFileNotFound indicates a file store read/write miss.
	KindFileNotFound ErrorKind = "FILE_NOT_FOUND"

	// KindAnalysisFailed indicates the analyzer could not produce edits.
	KindAnalysisFailed ErrorKind = "ANALYSIS_FAILED"

	// KindApplyFailed indicates a file substitution failed.
	KindApplyFailed ErrorKind = "APPLY_FAILED"

	// KindUndoFailed indicates undo/redo history was missing or stale.
	KindUndoFailed ErrorKind = "UNDO_FAILED"

	// KindGitError indicates diff generation failed.
	KindGitError ErrorKind = "GIT_ERROR"

	// KindValidationError indicates invalid input before any side effect.
	KindValidationError ErrorKind = "VALIDATION_ERROR"
)

// ErrNoMoreEdits is returned by GetNextEdit when every suggestion has a
// terminal status. This is a distinguishable business outcome, not a fault:
// callers should treat it as the signal to move toward Complete.
var ErrNoMoreEdits = errors.New("no more edits remain in session")

// Error is a structured engine error: a kind from the closed taxonomy plus
// a detail bag identifying the offending entities.
//
// Errors already tagged with a kind pass through the call stack unchanged;
// public entry points wrap untagged errors via WrapError.
type Error struct {
	// Kind is the error category.
	Kind ErrorKind

	// Details identifies the entities involved (session_id, edit_id, ...).
	Details map[string]any

	// Err is the underlying cause, if any.
	Err error
}

// Error derives the message from kind and details.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, e.Details[k])
		}
		sb.WriteString(")")
	}

	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a tagged error with the given kind and details.
//
// # Inputs
//
//   - kind: The error category. Must be one of the defined kinds.
//   - details: Structured context. May be nil.
//
// # Outputs
//
//   - *Error: The tagged error.
func NewError(kind ErrorKind, details map[string]any) *Error {
	return &Error{Kind: kind, Details: details}
}

// WrapError tags an underlying error with a kind and details.
//
// If err is already a tagged *Error, it is returned unchanged - the
// propagation policy is that known kinds pass through without re-wrapping.
func WrapError(kind ErrorKind, err error, details map[string]any) error {
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	return &Error{Kind: kind, Details: details, Err: err}
}

// KindOf extracts the kind from a tagged error.
//
// # Outputs
//
//   - ErrorKind: The kind, or "" if the error is untagged.
//   - bool: True if the error carries a kind.
func KindOf(err error) (ErrorKind, bool) {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
