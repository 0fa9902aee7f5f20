// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package executor applies accepted edits to files and maintains the
// undo/redo history that makes every application reversible.
//
// # Description
//
// The executor owns three responsibilities: substituting a suggestion's
// target region in a file (recording full before/after snapshots), walking
// the undo/redo stacks at edit, file, or session granularity, and rendering
// previews/diffs without touching disk. Undo and redo replay stored
// snapshots rather than recomputing substitutions, so a revert is exact
// even when the suggestion's line numbers have drifted.
//
// # Thread Safety
//
// Executor is safe for concurrent use; per-session history is guarded by
// a single mutex.
package executor

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/nextedit/services/next_edit/edit"
)

// UndoLevel selects how much history one undo call reverts.
type UndoLevel string

const (
	// UndoEdit reverts the single most recent action.
	UndoEdit UndoLevel = "edit"

	// UndoFile reverts every action touching the most recent action's file.
	UndoFile UndoLevel = "file"

	// UndoAll reverts the entire session history.
	UndoAll UndoLevel = "all"
)

// ApplyResult reports the outcome of one apply attempt.
//
// Apply failures caused by file state (missing file, read/write errors)
// are reported in the result, not returned as errors - the session
// continues past a failed edit.
type ApplyResult struct {
	// Action is the recorded decision. Nil when the apply failed before
	// any mutation.
	Action *edit.Action `json:"action,omitempty"`

	// EditID is the suggestion the attempt was made on.
	EditID string `json:"edit_id"`

	// Success reports whether the file was modified.
	Success bool `json:"success"`

	// Error holds the failure description when Success is false.
	Error string `json:"error,omitempty"`
}

// Preview is a rendered diff for one suggestion, computed without writing.
type Preview struct {
	// EditID is the previewed suggestion.
	EditID string `json:"edit_id"`

	// FilePath is the target file.
	FilePath string `json:"file_path"`

	// Diff is the unified diff the apply would produce.
	Diff string `json:"diff"`

	// Error holds the render failure, if any.
	Error string `json:"error,omitempty"`
}

// history is the per-session undo/redo state.
type history struct {
	undo []edit.Action
	redo []edit.Action
}

// Executor applies suggestions against a FileStore and tracks history.
type Executor struct {
	store  FileStore
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*history
}

// New creates an executor over the given file store.
//
// # Inputs
//
//   - store: File backend. Must be non-nil.
//   - logger: Structured logger. May be nil; a discard logger is used.
func New(store FileStore, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{
		store:    store,
		logger:   logger,
		sessions: make(map[string]*history),
	}
}

// ApplyEdit substitutes the suggestion's target region in its file.
//
// # Description
//
// Reads the current file content, checks that the target region still
// holds the suggestion's recorded original content, replaces lines
// [LineStart, LineEnd] with the replacement text (the user modification
// when present), writes the result, and records an Action with full
// before/after snapshots. The action is pushed on the session's undo
// stack and the redo stack is cleared - a new decision invalidates any
// previously undone future.
//
// # Inputs
//
//   - ctx: Request context.
//   - sessionID: Owning session. Must be non-empty.
//   - sug: The suggestion to apply. Must be non-nil.
//
// # Outputs
//
//   - *ApplyResult: Outcome. File-state failures set Success=false and
//     Error rather than returning an error.
//   - error: Non-nil only for programmer errors (nil suggestion, empty
//     session id) or context cancellation.
func (x *Executor) ApplyEdit(ctx context.Context, sessionID string, sug *edit.Suggestion) (*ApplyResult, error) {
	if sug == nil {
		return nil, edit.NewError(edit.KindValidationError, map[string]any{
			"reason": "nil suggestion",
		})
	}
	if sessionID == "" {
		return nil, edit.NewError(edit.KindInvalidSessionID, map[string]any{
			"reason": "empty session id",
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &ApplyResult{EditID: sug.ID}

	before, err := x.store.ReadFile(ctx, sug.FilePath)
	if err != nil {
		result.Error = err.Error()
		x.logger.Warn("apply failed reading file",
			"session_id", sessionID, "edit_id", sug.ID, "file", sug.FilePath, "error", err)
		return result, nil
	}

	after, err := substituteRegion(string(before), sug.LineStart, sug.LineEnd, sug.OriginalContent, sug.Replacement())
	if err != nil {
		result.Error = err.Error()
		x.logger.Warn("apply failed substituting region",
			"session_id", sessionID, "edit_id", sug.ID, "file", sug.FilePath, "error", err)
		return result, nil
	}

	if err := x.store.WriteFile(ctx, sug.FilePath, []byte(after)); err != nil {
		result.Error = err.Error()
		x.logger.Warn("apply failed writing file",
			"session_id", sessionID, "edit_id", sug.ID, "file", sug.FilePath, "error", err)
		return result, nil
	}

	actionType := edit.ActionAccept
	if sug.UserModification != "" {
		actionType = edit.ActionModify
	}
	action := edit.Action{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		EditID:        sug.ID,
		Type:          actionType,
		FilePath:      sug.FilePath,
		BeforeContent: string(before),
		AfterContent:  after,
		Timestamp:     time.Now().UTC(),
	}

	x.mu.Lock()
	h := x.sessionHistory(sessionID)
	h.undo = append(h.undo, action)
	h.redo = h.redo[:0]
	x.mu.Unlock()

	result.Action = &action
	result.Success = true
	x.logger.Info("applied edit",
		"session_id", sessionID, "edit_id", sug.ID, "file", sug.FilePath, "type", actionType)
	return result, nil
}

// BulkApply applies a batch of suggestions in order.
//
// Each suggestion gets its own ApplyResult; a failed apply does not stop
// the batch. Callers are responsible for passing the batch in dependency
// order.
func (x *Executor) BulkApply(ctx context.Context, sessionID string, sugs []*edit.Suggestion) ([]*ApplyResult, error) {
	results := make([]*ApplyResult, 0, len(sugs))
	for _, sug := range sugs {
		res, err := x.ApplyEdit(ctx, sessionID, sug)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// UndoLast reverts applied actions at the requested granularity.
//
// # Description
//
// Pops actions off the session's undo stack, writes each action's
// BeforeContent back to its file, and pushes the reverted actions onto
// the redo stack. UndoEdit reverts one action; UndoFile reverts the
// contiguous run of most recent actions that touched the same file as
// the top action; UndoAll drains the stack.
//
// # Outputs
//
//   - []edit.Action: The reverted actions, most recent first. Callers
//     reconcile suggestion statuses from these.
//   - error: UNDO_FAILED when the stack is empty, or the write failure.
func (x *Executor) UndoLast(ctx context.Context, sessionID string, level UndoLevel) ([]edit.Action, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	h := x.sessionHistory(sessionID)
	if len(h.undo) == 0 {
		return nil, edit.NewError(edit.KindUndoFailed, map[string]any{
			"session_id": sessionID,
			"reason":     "nothing to undo",
		})
	}

	count := x.undoCount(h, level)
	reverted := make([]edit.Action, 0, count)
	for i := 0; i < count; i++ {
		action := h.undo[len(h.undo)-1]

		if err := x.store.WriteFile(ctx, action.FilePath, []byte(action.BeforeContent)); err != nil {
			// Already-reverted actions stay reverted; the failed one
			// remains on the undo stack.
			return reverted, edit.WrapError(edit.KindUndoFailed, err, map[string]any{
				"session_id": sessionID,
				"edit_id":    action.EditID,
			})
		}

		h.undo = h.undo[:len(h.undo)-1]
		h.redo = append(h.redo, action)
		reverted = append(reverted, action)
		x.logger.Info("undid edit",
			"session_id", sessionID, "edit_id", action.EditID, "file", action.FilePath)
	}

	return reverted, nil
}

// undoCount resolves an undo level to a number of actions to pop.
// Caller must hold x.mu.
func (x *Executor) undoCount(h *history, level UndoLevel) int {
	switch level {
	case UndoAll:
		return len(h.undo)
	case UndoFile:
		top := h.undo[len(h.undo)-1]
		count := 0
		for i := len(h.undo) - 1; i >= 0; i-- {
			if h.undo[i].FilePath != top.FilePath {
				break
			}
			count++
		}
		return count
	default:
		return 1
	}
}

// RedoLast reapplies the most recently undone action.
//
// Writes the action's AfterContent back to its file and moves the action
// from the redo stack to the undo stack.
func (x *Executor) RedoLast(ctx context.Context, sessionID string) (*edit.Action, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	h := x.sessionHistory(sessionID)
	if len(h.redo) == 0 {
		return nil, edit.NewError(edit.KindUndoFailed, map[string]any{
			"session_id": sessionID,
			"reason":     "nothing to redo",
		})
	}

	action := h.redo[len(h.redo)-1]
	if err := x.store.WriteFile(ctx, action.FilePath, []byte(action.AfterContent)); err != nil {
		return nil, edit.WrapError(edit.KindUndoFailed, err, map[string]any{
			"session_id": sessionID,
			"edit_id":    action.EditID,
		})
	}

	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, action)
	x.logger.Info("redid edit",
		"session_id", sessionID, "edit_id", action.EditID, "file", action.FilePath)

	redone := action
	return &redone, nil
}

// FileChange is the net applied change to one file across a session.
type FileChange struct {
	// FilePath is the touched file.
	FilePath string `json:"file_path"`

	// Diff is the rendered diff from the file's earliest recorded
	// original to its latest recorded content. Empty when the actions
	// cancelled out.
	Diff string `json:"diff"`

	// Edits is the number of applied actions that touched the file.
	Edits int `json:"edits"`
}

// AggregateChanges collapses a session's applied actions into one change
// per touched file.
//
// # Description
//
// Walks the actions oldest first and, per file, pairs the earliest
// BeforeContent with the latest AfterContent - intermediate states are
// not rendered. Files appear in first-touch order. A file whose content
// ended up byte-identical to its original still appears, with an empty
// diff.
//
// # Inputs
//
//   - actions: The session's undo stack, oldest first.
//
// # Outputs
//
//   - []FileChange: One entry per touched file. Empty for an empty stack.
//   - error: GIT_ERROR when a diff fails to render.
func AggregateChanges(actions []edit.Action) ([]FileChange, error) {
	type bounds struct {
		first string
		last  string
		count int
	}

	perFile := make(map[string]*bounds)
	var order []string
	for _, action := range actions {
		b, ok := perFile[action.FilePath]
		if !ok {
			b = &bounds{first: action.BeforeContent}
			perFile[action.FilePath] = b
			order = append(order, action.FilePath)
		}
		b.last = action.AfterContent
		b.count++
	}

	changes := make([]FileChange, 0, len(order))
	for _, path := range order {
		b := perFile[path]
		rendered, err := GenerateGitDiff(path, b.first, b.last)
		if err != nil {
			return nil, err
		}
		changes = append(changes, FileChange{
			FilePath: path,
			Diff:     rendered,
			Edits:    b.count,
		})
	}
	return changes, nil
}

// PreviewAll renders the diff each pending suggestion would produce,
// without writing anything.
func (x *Executor) PreviewAll(ctx context.Context, sugs []*edit.Suggestion) []Preview {
	previews := make([]Preview, 0, len(sugs))
	for _, sug := range sugs {
		p := Preview{EditID: sug.ID, FilePath: sug.FilePath}

		before, err := x.store.ReadFile(ctx, sug.FilePath)
		if err != nil {
			p.Error = err.Error()
			previews = append(previews, p)
			continue
		}

		after, err := substituteRegion(string(before), sug.LineStart, sug.LineEnd, sug.OriginalContent, sug.Replacement())
		if err != nil {
			p.Error = err.Error()
			previews = append(previews, p)
			continue
		}

		diff, err := GenerateGitDiff(sug.FilePath, string(before), after)
		if err != nil {
			p.Error = err.Error()
			previews = append(previews, p)
			continue
		}

		p.Diff = diff
		previews = append(previews, p)
	}
	return previews
}

// CanUndo reports whether the session has undoable actions.
func (x *Executor) CanUndo(sessionID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	h, ok := x.sessions[sessionID]
	return ok && len(h.undo) > 0
}

// CanRedo reports whether the session has redoable actions.
func (x *Executor) CanRedo(sessionID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	h, ok := x.sessions[sessionID]
	return ok && len(h.redo) > 0
}

// Stacks returns copies of the session's undo and redo stacks, oldest
// first. Used to mirror executor history into the persisted session.
func (x *Executor) Stacks(sessionID string) (undo, redo []edit.Action) {
	x.mu.Lock()
	defer x.mu.Unlock()

	h, ok := x.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	undo = append([]edit.Action(nil), h.undo...)
	redo = append([]edit.Action(nil), h.redo...)
	return undo, redo
}

// Rehydrate restores a session's history from a persisted session record.
//
// Called after a process restart before serving undo/redo for a session
// the executor has never seen. Replaces any existing in-memory history.
func (x *Executor) Rehydrate(session *edit.Session) {
	if session == nil {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	h := &history{
		undo: append([]edit.Action(nil), session.UndoStack...),
		redo: append([]edit.Action(nil), session.RedoStack...),
	}
	x.sessions[session.ID] = h
	x.logger.Debug("rehydrated session history",
		"session_id", session.ID, "undo_depth", len(h.undo), "redo_depth", len(h.redo))
}

// Forget drops a session's in-memory history. Terminal sessions keep
// their persisted stacks; only the live copy is released.
func (x *Executor) Forget(sessionID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.sessions, sessionID)
}

// sessionHistory returns the session's history, creating it if needed.
// Caller must hold x.mu.
func (x *Executor) sessionHistory(sessionID string) *history {
	h, ok := x.sessions[sessionID]
	if !ok {
		h = &history{}
		x.sessions[sessionID] = h
	}
	return h
}

// substituteRegion replaces lines [start, end] (1-indexed, inclusive)
// of content with replacement text.
//
// A trailing newline on the input is preserved. The region must lie
// within the file, and when original is non-empty the region's current
// text must match it - a mismatch means the file drifted since the
// suggestion was made, and substituting anyway would overwrite lines
// the suggestion never described.
func substituteRegion(content string, start, end int, original, replacement string) (string, error) {
	lines := strings.Split(content, "\n")

	// Split on a trailing newline yields one empty trailing element;
	// drop it for line accounting and restore the newline at the end.
	trailingNewline := strings.HasSuffix(content, "\n")
	if trailingNewline && len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}

	if start < 1 || end < start || end > len(lines) {
		return "", edit.NewError(edit.KindApplyFailed, map[string]any{
			"line_start": start,
			"line_end":   end,
			"file_lines": len(lines),
			"reason":     "target region out of range",
		})
	}

	if original != "" {
		region := strings.Join(lines[start-1:end], "\n")
		if region != strings.TrimSuffix(original, "\n") {
			return "", edit.NewError(edit.KindApplyFailed, map[string]any{
				"line_start": start,
				"line_end":   end,
				"reason":     "original content not found at target region",
			})
		}
	}

	replLines := strings.Split(strings.TrimSuffix(replacement, "\n"), "\n")
	if replacement == "" {
		replLines = nil
	}

	out := make([]string, 0, len(lines)-(end-start+1)+len(replLines))
	out = append(out, lines[:start-1]...)
	out = append(out, replLines...)
	out = append(out, lines[end:]...)

	result := strings.Join(out, "\n")
	if trailingNewline {
		result += "\n"
	}
	return result, nil
}
