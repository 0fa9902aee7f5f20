// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package edit defines the data model for the NextEdit orchestration engine.
//
// # Description
//
// This package holds the entity definitions shared by every other NextEdit
// component: suggestions, actions, sequences, sessions, contexts, and the
// structured error taxonomy. It contains no behavior beyond derived
// accessors; the sequencer, executor, and session packages depend on it.
//
// # Thread Safety
//
// Types in this package are plain records and are NOT safe for concurrent
// modification. The session manager serializes all mutation per session.
package edit

import (
	"math"
	"time"
)

// =============================================================================
// Suggestion
// =============================================================================

// SuggestionStatus tracks the review state of a suggestion.
type SuggestionStatus string

const (
	// StatusPending indicates the suggestion has not been reviewed.
	StatusPending SuggestionStatus = "pending"

	// StatusReviewing indicates the suggestion is currently presented.
	StatusReviewing SuggestionStatus = "reviewing"

	// StatusAccepted indicates the suggestion was applied unchanged.
	StatusAccepted SuggestionStatus = "accepted"

	// StatusSkipped indicates the reviewer declined the suggestion.
	StatusSkipped SuggestionStatus = "skipped"

	// StatusModified indicates the suggestion was applied with a user edit.
	StatusModified SuggestionStatus = "modified"

	// StatusError indicates the suggestion failed to apply.
	StatusError SuggestionStatus = "error"
)

// String returns the string representation of the status.
func (s SuggestionStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the status is a final decision.
func (s SuggestionStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusSkipped || s == StatusModified || s == StatusError
}

// Suggestion is a single proposed change to one file.
//
// # Description
//
// Created by the analyzer at session start, mutated only by the session
// manager (status transitions), and never deleted - skipped and errored
// suggestions remain in the session record for audit.
type Suggestion struct {
	// ID uniquely identifies the suggestion within its session.
	ID string `json:"id" validate:"required"`

	// SessionID is the owning session.
	SessionID string `json:"session_id"`

	// FilePath is the target file, relative to the workspace root.
	FilePath string `json:"file_path" validate:"required"`

	// LineStart is the 1-indexed inclusive first line of the target region.
	LineStart int `json:"line_start" validate:"gte=1"`

	// LineEnd is the 1-indexed inclusive last line of the target region.
	LineEnd int `json:"line_end" validate:"gtefield=LineStart"`

	// OriginalContent is the text block being replaced.
	OriginalContent string `json:"original_content"`

	// SuggestedContent is the proposed replacement text.
	SuggestedContent string `json:"suggested_content"`

	// Rationale explains why this change was proposed.
	Rationale string `json:"rationale"`

	// Confidence is the analyzer's confidence in [0,1].
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`

	// Dependencies lists suggestion ids that must be applied first.
	Dependencies []string `json:"dependencies,omitempty"`

	// Dependents lists suggestion ids that depend on this one.
	Dependents []string `json:"dependents,omitempty"`

	// Status is the review state.
	Status SuggestionStatus `json:"status"`

	// Category groups suggestions (e.g. "todo", "deprecation", "refactor").
	Category string `json:"category,omitempty"`

	// Priority orders suggestions within the same dependency tier.
	// Higher values are served first.
	Priority int `json:"priority"`

	// UserModification holds the reviewer's replacement text when the
	// suggestion was applied with Status == StatusModified.
	UserModification string `json:"user_modification,omitempty"`
}

// Replacement returns the content that should be written when the
// suggestion is applied: the user modification if present, otherwise
// the analyzer's suggested content.
func (s *Suggestion) Replacement() string {
	if s.UserModification != "" {
		return s.UserModification
	}
	return s.SuggestedContent
}

// =============================================================================
// Action
// =============================================================================

// ActionType categorizes reviewer decisions.
type ActionType string

const (
	// ActionAccept records an applied suggestion.
	ActionAccept ActionType = "accept"

	// ActionSkip records a declined suggestion. No file mutation.
	ActionSkip ActionType = "skip"

	// ActionModify records a suggestion applied with user changes.
	ActionModify ActionType = "modify"

	// ActionUndo records a reverted suggestion.
	ActionUndo ActionType = "undo"

	// ActionRedo records a reapplied suggestion.
	ActionRedo ActionType = "redo"
)

// String returns the string representation of the action type.
func (a ActionType) String() string {
	return string(a)
}

// Action is an immutable record of one reviewer decision.
//
// # Description
//
// Actions capture before/after content snapshots at the moment a decision
// was applied. Undo and redo replay by reading the stored content, not by
// reapplying a diff, so an Action must never be mutated after creation.
type Action struct {
	// ID uniquely identifies the action.
	ID string `json:"id"`

	// SessionID is the owning session.
	SessionID string `json:"session_id"`

	// EditID is the suggestion this action was taken on.
	EditID string `json:"edit_id"`

	// Type is the decision kind.
	Type ActionType `json:"type"`

	// FilePath is the file the action touched (empty for skip).
	FilePath string `json:"file_path,omitempty"`

	// BeforeContent is the full file content before the action.
	BeforeContent string `json:"before_content,omitempty"`

	// AfterContent is the full file content after the action.
	AfterContent string `json:"after_content,omitempty"`

	// Timestamp is when the decision was applied.
	Timestamp time.Time `json:"timestamp"`

	// ReviewDuration is how long the reviewer spent on the edit.
	ReviewDuration time.Duration `json:"review_duration,omitempty"`

	// Notes holds an optional reviewer comment (e.g. skip reason).
	Notes string `json:"notes,omitempty"`
}

// =============================================================================
// Sequence
// =============================================================================

// Sequence is a dependency-coherent batch of suggestion ids.
//
// # Description
//
// Produced once per sequencing pass. A sequence's members can be presented
// or executed as a unit without violating dependency order. Sequences are a
// presentation and estimation artifact; the executor never consults them.
type Sequence struct {
	// Name identifies the sequence (e.g. "sequence-1").
	Name string `json:"name"`

	// EditIDs lists member suggestions in execution order.
	EditIDs []string `json:"edit_ids"`

	// DependsOn lists names of sequences that must run first.
	DependsOn []string `json:"depends_on,omitempty"`

	// EstimatedDuration is the projected review time for the batch.
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// =============================================================================
// Session
// =============================================================================

// SessionStatus is the lifecycle state of a review session.
type SessionStatus string

const (
	// SessionInitializing is the state during analyzer discovery.
	SessionInitializing SessionStatus = "initializing"

	// SessionActive is the normal reviewing state.
	SessionActive SessionStatus = "active"

	// SessionPaused is a resumable suspension.
	SessionPaused SessionStatus = "paused"

	// SessionCompleted is terminal: the reviewer finished the session.
	SessionCompleted SessionStatus = "completed"

	// SessionCancelled is terminal: the reviewer abandoned the session.
	SessionCancelled SessionStatus = "cancelled"

	// SessionError is terminal: the session failed irrecoverably.
	SessionError SessionStatus = "error"
)

// String returns the string representation of the status.
func (s SessionStatus) String() string {
	return string(s)
}

// IsTerminal returns true for completed, cancelled, and error.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionCancelled || s == SessionError
}

// AllSessionStatuses returns every defined session status.
func AllSessionStatuses() []SessionStatus {
	return []SessionStatus{
		SessionInitializing,
		SessionActive,
		SessionPaused,
		SessionCompleted,
		SessionCancelled,
		SessionError,
	}
}

// Session is the root aggregate for one reviewer interaction lifecycle.
//
// # Description
//
// Created by the session manager's Start, mutated on every accept / skip /
// undo / redo / pause / resume / cancel / complete, persisted after every
// mutation, and retired (status completed or cancelled) but never physically
// deleted by the engine itself.
type Session struct {
	// ID uniquely identifies the session.
	ID string `json:"id"`

	// WorkspaceURI is the root of the workspace under review.
	WorkspaceURI string `json:"workspace_uri"`

	// Goal is the reviewer's stated objective for this session.
	Goal string `json:"goal"`

	// Status is the lifecycle state.
	Status SessionStatus `json:"status"`

	// Edits is the full ordered suggestion list (analyzer arrival order).
	Edits []*Suggestion `json:"edits"`

	// CurrentIndex tracks forward progress through Edits.
	CurrentIndex int `json:"current_index"`

	// CompletedEdits lists accepted/modified suggestion ids.
	CompletedEdits []string `json:"completed_edits"`

	// SkippedEdits lists skipped suggestion ids.
	SkippedEdits []string `json:"skipped_edits"`

	// UndoStack holds applied actions, oldest first.
	UndoStack []Action `json:"undo_stack"`

	// RedoStack holds reverted actions available for redo.
	RedoStack []Action `json:"redo_stack"`

	// DecisionLog is the chronological audit trail of every reviewer
	// decision: applied actions plus the skip/undo/redo records that
	// never enter the undo stack. Append-only.
	DecisionLog []Action `json:"decision_log,omitempty"`

	// CircularDependencies holds cycles reported by the sequencer,
	// surfaced to the reviewer but not fatal.
	CircularDependencies [][]string `json:"circular_dependencies,omitempty"`

	// TotalFiles is the number of distinct files with suggestions.
	TotalFiles int `json:"total_files"`

	// EstimatedTime is the analyzer's projected total review time.
	EstimatedTime time.Duration `json:"estimated_time"`

	// CreatedAt is the session creation time.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the last mutation time.
	UpdatedAt time.Time `json:"updated_at"`
}

// FindEdit returns the suggestion with the given id, or nil.
func (s *Session) FindEdit(editID string) *Suggestion {
	for _, e := range s.Edits {
		if e.ID == editID {
			return e
		}
	}
	return nil
}

// NextPending returns the first suggestion with status pending, or nil.
func (s *Session) NextPending() *Suggestion {
	for _, e := range s.Edits {
		if e.Status == StatusPending {
			return e
		}
	}
	return nil
}

// CompletedSet returns the completed edit ids as a set.
func (s *Session) CompletedSet() map[string]bool {
	set := make(map[string]bool, len(s.CompletedEdits))
	for _, id := range s.CompletedEdits {
		set[id] = true
	}
	return set
}

// Progress derives the session's progress from its counters.
//
// The invariant Completed + Skipped + Remaining == Total holds for every
// reachable session state, and Percentage is always within [0,100].
func (s *Session) Progress() Progress {
	total := len(s.Edits)
	completed := len(s.CompletedEdits)
	skipped := len(s.SkippedEdits)
	remaining := total - completed - skipped
	if remaining < 0 {
		remaining = 0
	}

	percentage := 0
	if total > 0 {
		percentage = int(math.Round(float64(completed+skipped) / float64(total) * 100))
	}

	return Progress{
		Current:    s.CurrentIndex,
		Total:      total,
		Completed:  completed,
		Skipped:    skipped,
		Remaining:  remaining,
		Percentage: percentage,
	}
}

// Summary computes the end-of-session report.
//
// Remaining time is estimated at 30 seconds per pending edit.
func (s *Session) Summary() SessionSummary {
	summary := SessionSummary{
		SessionID: s.ID,
		Goal:      s.Goal,
		Status:    s.Status,
		Total:     len(s.Edits),
	}

	files := make(map[string]bool)
	for _, e := range s.Edits {
		switch e.Status {
		case StatusAccepted, StatusModified:
			summary.Accepted++
			files[e.FilePath] = true
		case StatusSkipped:
			summary.Skipped++
		case StatusError:
			summary.Errored++
		default:
			summary.Pending++
		}
	}

	summary.FilesTouched = len(files)
	summary.EstimatedRemaining = time.Duration(summary.Pending) * EstimatePerEdit
	return summary
}

// EstimatePerEdit is the nominal review time per edit used for estimates.
const EstimatePerEdit = 30 * time.Second

// Progress reports how far a session has advanced.
type Progress struct {
	// Current is the session's forward index into its edit list.
	Current int `json:"current"`

	// Total is the number of suggestions in the session.
	Total int `json:"total"`

	// Completed is the number of accepted/modified suggestions.
	Completed int `json:"completed"`

	// Skipped is the number of skipped suggestions.
	Skipped int `json:"skipped"`

	// Remaining is the number of suggestions still pending.
	Remaining int `json:"remaining"`

	// Percentage is the processed share in [0,100].
	Percentage int `json:"percentage"`
}

// SessionSummary is the report returned when a session completes.
type SessionSummary struct {
	// SessionID identifies the summarized session.
	SessionID string `json:"session_id"`

	// Goal is the session's stated objective.
	Goal string `json:"goal"`

	// Status is the session status at summary time.
	Status SessionStatus `json:"status"`

	// Total is the number of suggestions discovered.
	Total int `json:"total"`

	// Accepted counts accepted and modified suggestions.
	Accepted int `json:"accepted"`

	// Skipped counts skipped suggestions.
	Skipped int `json:"skipped"`

	// Pending counts suggestions never reviewed.
	Pending int `json:"pending"`

	// Errored counts suggestions that failed to apply.
	Errored int `json:"errored"`

	// FilesTouched is the number of distinct files modified.
	FilesTouched int `json:"files_touched"`

	// EstimatedRemaining projects the time to review pending edits.
	EstimatedRemaining time.Duration `json:"estimated_remaining"`
}

// =============================================================================
// Context
// =============================================================================

// Context is read-only, derived-on-demand metadata about one suggestion's
// surroundings.
//
// # Description
//
// Computed lazily by the analyzer and cached keyed by (edit id, content
// hash); a changed content hash invalidates the cached entry.
type Context struct {
	// EditID is the suggestion this context describes.
	EditID string `json:"edit_id"`

	// Function is the containing function name, if detected.
	Function string `json:"function,omitempty"`

	// Module is the containing module/package name, if detected.
	Module string `json:"module,omitempty"`

	// LinesBefore holds the lines immediately preceding the target region.
	LinesBefore []string `json:"lines_before,omitempty"`

	// LinesAfter holds the lines immediately following the target region.
	LinesAfter []string `json:"lines_after,omitempty"`

	// Imports lists import/include statements found in the file.
	Imports []string `json:"imports,omitempty"`

	// AnalysisMethod names the analysis that produced the suggestion
	// ("pattern" or "semantic").
	AnalysisMethod string `json:"analysis_method,omitempty"`

	// SemanticScore is the analyzer's relevance score in [0,1].
	SemanticScore float64 `json:"semantic_score,omitempty"`

	// ContentHash is the sha256 of the file content the context was
	// derived from. Used for cache invalidation.
	ContentHash string `json:"content_hash"`
}
