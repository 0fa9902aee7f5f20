// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session orchestrates the review lifecycle: analysis, the
// accept/skip loop, undo/redo, and persistence.
//
// # Description
//
// The Manager is the only component that mutates sessions. Every mutation
// happens under a per-session mutex and is persisted before the call
// returns, so a crash at any point leaves the store with the last
// consistent state. After a restart the executor's in-memory undo/redo
// history is rehydrated from the persisted session on first touch.
//
// # Thread Safety
//
// Manager is safe for concurrent use.
package session

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/nextedit/services/next_edit/analyzer"
	"github.com/AleutianAI/nextedit/services/next_edit/edit"
	"github.com/AleutianAI/nextedit/services/next_edit/executor"
	"github.com/AleutianAI/nextedit/services/next_edit/sequencer"
	"github.com/AleutianAI/nextedit/services/next_edit/storage"
)

// startRequest carries the validated inputs of Start.
type startRequest struct {
	WorkspaceURI string `validate:"required"`
	Goal         string `validate:"required"`
}

// ManagerConfig wires the manager's collaborators.
type ManagerConfig struct {
	// Analyzer produces suggestion batches. Defaults to the pattern
	// analyzer when nil.
	Analyzer analyzer.Analyzer

	// Executor applies edits and owns undo/redo history. Required.
	Executor *executor.Executor

	// Files is the workspace file backend, shared with the executor.
	// Required.
	Files executor.FileStore

	// Store persists sessions. Required.
	Store storage.SessionStore

	// Contexts caches derived edit contexts. Optional.
	Contexts *analyzer.ContextCache

	// Logger is the structured logger. Defaults to a discard logger.
	Logger *slog.Logger
}

// Manager drives review sessions end to end.
type Manager struct {
	analyzer analyzer.Analyzer
	exec     *executor.Executor
	files    executor.FileStore
	store    storage.SessionStore
	contexts *analyzer.ContextCache
	validate *validator.Validate
	logger   *slog.Logger
	sm       *StateMachine

	// mu guards locks and hydrated. Session state itself is guarded by
	// the per-session mutex in locks.
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	hydrated map[string]bool
}

// NewManager creates a manager over the given collaborators.
//
// # Outputs
//
//   - *Manager: Ready manager.
//   - error: VALIDATION_ERROR when a required collaborator is missing.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Executor == nil || cfg.Store == nil || cfg.Files == nil {
		return nil, edit.NewError(edit.KindValidationError, map[string]any{
			"reason": "executor, files, and store are required",
		})
	}
	if cfg.Analyzer == nil {
		cfg.Analyzer = analyzer.NewPatternAnalyzer(cfg.Logger)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Manager{
		analyzer: cfg.Analyzer,
		exec:     cfg.Executor,
		files:    cfg.Files,
		store:    cfg.Store,
		contexts: cfg.Contexts,
		validate: validator.New(),
		logger:   cfg.Logger,
		sm:       NewStateMachine(),
		locks:    make(map[string]*sync.Mutex),
		hydrated: make(map[string]bool),
	}, nil
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start begins a new review session.
//
// # Description
//
// Validates the inputs, rejects a second concurrent session, runs the
// analyzer, sequences the resulting batch, and activates the session.
// Cycles reported by the sequencer are stored on the session and
// surfaced to the reviewer; they do not fail the start.
//
// # Inputs
//
//   - ctx: Request context.
//   - workspaceURI: Workspace root under review. Required.
//   - goal: Reviewer's objective. Required.
//   - opts: Analysis options.
//
// # Outputs
//
//   - *edit.Session: The active session.
//   - error: VALIDATION_ERROR on bad input, SESSION_ALREADY_ACTIVE when
//     a session is in progress, ANALYSIS_FAILED when the analyzer fails.
func (m *Manager) Start(ctx context.Context, workspaceURI, goal string, opts analyzer.Options) (*edit.Session, error) {
	ctx, span := tracer.Start(ctx, "session.start",
		trace.WithAttributes(attribute.String("workspace", workspaceURI)))
	defer span.End()
	_ = initMetrics()

	if err := m.validate.Struct(startRequest{WorkspaceURI: workspaceURI, Goal: goal}); err != nil {
		return nil, edit.WrapError(edit.KindValidationError, err, map[string]any{
			"reason": "workspace_uri and goal are required",
		})
	}

	activeID, err := m.store.ActiveID(ctx)
	if err != nil {
		return nil, err
	}
	if activeID != "" {
		return nil, edit.NewError(edit.KindSessionAlreadyActive, map[string]any{
			"active_session_id": activeID,
		})
	}

	now := time.Now().UTC()
	session := &edit.Session{
		ID:           uuid.NewString(),
		WorkspaceURI: workspaceURI,
		Goal:         goal,
		Status:       edit.SessionInitializing,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	span.SetAttributes(attribute.String("session_id", session.ID))

	edits, err := m.analyzer.AnalyzeCodebase(ctx, workspaceURI, goal, opts)
	if err != nil {
		_ = m.sm.Transition(session, edit.SessionError)
		_ = m.store.Save(ctx, session)
		m.logger.Error("analysis failed", "session_id", session.ID, "error", err)
		return nil, edit.WrapError(edit.KindAnalysisFailed, err, map[string]any{
			"session_id": session.ID,
		})
	}
	for _, e := range edits {
		e.SessionID = session.ID
	}

	seq, err := sequencer.Sequence(edits)
	if err != nil {
		_ = m.sm.Transition(session, edit.SessionError)
		_ = m.store.Save(ctx, session)
		return nil, err
	}

	files := make(map[string]bool, len(edits))
	for _, e := range edits {
		files[e.FilePath] = true
	}

	session.Edits = edits
	session.CircularDependencies = seq.CircularDependencies
	session.TotalFiles = len(files)
	session.EstimatedTime = time.Duration(len(edits)) * edit.EstimatePerEdit

	if err := m.sm.Transition(session, edit.SessionActive); err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, session); err != nil {
		return nil, err
	}
	if err := m.store.SetActive(ctx, session.ID); err != nil {
		return nil, err
	}

	m.markHydrated(session.ID)
	if sessionsStarted != nil {
		sessionsStarted.Add(ctx, 1)
	}
	m.logger.Info("session started",
		"session_id", session.ID, "edits", len(edits), "files", session.TotalFiles,
		"cycles", len(session.CircularDependencies))
	return session, nil
}

// Get returns the persisted session.
func (m *Manager) Get(ctx context.Context, sessionID string) (*edit.Session, error) {
	return m.loadSession(ctx, sessionID)
}

// List returns all stored sessions, newest first.
func (m *Manager) List(ctx context.Context) ([]*edit.Session, error) {
	return m.store.List(ctx)
}

// Pause suspends the active session. The session stays resumable and
// keeps the active pointer.
func (m *Manager) Pause(ctx context.Context, sessionID string) (*edit.Session, error) {
	unlock := m.lockSession(sessionID)
	defer unlock()

	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := m.sm.Transition(session, edit.SessionPaused); err != nil {
		return nil, err
	}
	if err := m.persist(ctx, session); err != nil {
		return nil, err
	}
	m.logger.Info("session paused", "session_id", sessionID)
	return session, nil
}

// Resume reactivates a paused session.
func (m *Manager) Resume(ctx context.Context, sessionID string) (*edit.Session, error) {
	unlock := m.lockSession(sessionID)
	defer unlock()

	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := m.sm.Transition(session, edit.SessionActive); err != nil {
		return nil, err
	}
	if err := m.persist(ctx, session); err != nil {
		return nil, err
	}
	if err := m.store.SetActive(ctx, sessionID); err != nil {
		return nil, err
	}
	m.logger.Info("session resumed", "session_id", sessionID)
	return session, nil
}

// Complete finishes the session and returns its summary.
func (m *Manager) Complete(ctx context.Context, sessionID string) (edit.SessionSummary, error) {
	return m.finish(ctx, sessionID, edit.SessionCompleted)
}

// Cancel abandons the session and returns its summary. Applied edits
// stay applied; cancellation does not roll back files.
func (m *Manager) Cancel(ctx context.Context, sessionID string) (edit.SessionSummary, error) {
	return m.finish(ctx, sessionID, edit.SessionCancelled)
}

// finish moves the session to a terminal status, retires the active
// pointer, and releases in-memory executor history.
func (m *Manager) finish(ctx context.Context, sessionID string, status edit.SessionStatus) (edit.SessionSummary, error) {
	ctx, span := tracer.Start(ctx, "session.finish",
		trace.WithAttributes(
			attribute.String("session_id", sessionID),
			attribute.String("status", status.String())))
	defer span.End()

	unlock := m.lockSession(sessionID)
	defer unlock()

	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return edit.SessionSummary{}, err
	}
	if err := m.sm.Transition(session, status); err != nil {
		return edit.SessionSummary{}, err
	}
	if err := m.persist(ctx, session); err != nil {
		return edit.SessionSummary{}, err
	}

	activeID, err := m.store.ActiveID(ctx)
	if err == nil && activeID == sessionID {
		if err := m.store.ClearActive(ctx); err != nil {
			return edit.SessionSummary{}, err
		}
	}

	m.exec.Forget(sessionID)
	m.forgetHydrated(sessionID)

	if sessionsEnded != nil {
		sessionsEnded.Add(ctx, 1)
	}
	if reviewDuration != nil {
		reviewDuration.Record(ctx, time.Since(session.CreatedAt).Seconds())
	}
	m.logger.Info("session finished", "session_id", sessionID, "status", status)
	return session.Summary(), nil
}

// =============================================================================
// Review loop
// =============================================================================

// GetNextEdit returns the next suggestion to review.
//
// # Description
//
// Serves the first pending suggestion whose dependencies are complete,
// falling back to the first pending one when every remaining suggestion
// is blocked (e.g. on a dependency cycle) so the reviewer can still skip
// it. The served suggestion is marked reviewing and persisted.
//
// # Outputs
//
//   - *edit.Suggestion: The suggestion to present.
//   - error: edit.ErrNoMoreEdits when every suggestion has a terminal
//     status; VALIDATION_ERROR when the session is not active.
func (m *Manager) GetNextEdit(ctx context.Context, sessionID string) (*edit.Suggestion, error) {
	unlock := m.lockSession(sessionID)
	defer unlock()

	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := m.requireActive(session); err != nil {
		return nil, err
	}

	completed := session.CompletedSet()
	var fallback *edit.Suggestion
	var next *edit.Suggestion
	for _, e := range session.Edits {
		if e.Status != edit.StatusPending && e.Status != edit.StatusReviewing {
			continue
		}
		if fallback == nil {
			fallback = e
		}
		if sequencer.ValidateDependenciesMet(e, completed) {
			next = e
			break
		}
	}
	if next == nil {
		next = fallback
	}
	if next == nil {
		return nil, edit.ErrNoMoreEdits
	}

	if next.Status == edit.StatusPending {
		next.Status = edit.StatusReviewing
		if err := m.persist(ctx, session); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// ApplyEdit applies a suggestion, optionally with a reviewer modification.
//
// # Description
//
// Verifies the suggestion is unprocessed and its dependencies complete,
// then delegates the file substitution to the executor. On success the
// suggestion becomes accepted (or modified), progress counters advance,
// and the executor's undo/redo stacks are mirrored into the persisted
// session. A file-level failure marks the suggestion errored and returns
// APPLY_FAILED; the session continues.
//
// # Inputs
//
//   - ctx: Request context.
//   - sessionID: The active session.
//   - editID: The suggestion to apply.
//   - userModification: Replacement text overriding the suggestion, or "".
//
// # Outputs
//
//   - *executor.ApplyResult: The apply outcome, including the recorded
//     action on success.
//   - error: EDIT_NOT_FOUND, EDIT_ALREADY_PROCESSED, DEPENDENCY_NOT_MET,
//     or APPLY_FAILED.
func (m *Manager) ApplyEdit(ctx context.Context, sessionID, editID, userModification string) (*executor.ApplyResult, error) {
	ctx, span := tracer.Start(ctx, "session.apply_edit",
		trace.WithAttributes(
			attribute.String("session_id", sessionID),
			attribute.String("edit_id", editID)))
	defer span.End()

	unlock := m.lockSession(sessionID)
	defer unlock()

	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := m.requireActive(session); err != nil {
		return nil, err
	}

	sug := session.FindEdit(editID)
	if sug == nil {
		return nil, edit.NewError(edit.KindEditNotFound, map[string]any{
			"session_id": sessionID,
			"edit_id":    editID,
		})
	}
	if sug.Status.IsTerminal() {
		return nil, edit.NewError(edit.KindEditAlreadyProcessed, map[string]any{
			"edit_id": editID,
			"status":  sug.Status.String(),
		})
	}
	if !sequencer.ValidateDependenciesMet(sug, session.CompletedSet()) {
		return nil, edit.NewError(edit.KindDependencyNotMet, map[string]any{
			"edit_id":      editID,
			"dependencies": sug.Dependencies,
		})
	}

	sug.UserModification = userModification

	result, err := m.exec.ApplyEdit(ctx, sessionID, sug)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		sug.Status = edit.StatusError
		if perr := m.persist(ctx, session); perr != nil {
			return result, perr
		}
		return result, edit.NewError(edit.KindApplyFailed, map[string]any{
			"edit_id": editID,
			"cause":   result.Error,
		})
	}

	if result.Action.Type == edit.ActionModify {
		sug.Status = edit.StatusModified
	} else {
		sug.Status = edit.StatusAccepted
	}
	session.CompletedEdits = append(session.CompletedEdits, editID)
	session.CurrentIndex++
	session.DecisionLog = append(session.DecisionLog, *result.Action)
	m.mirrorStacks(session)

	if err := m.persist(ctx, session); err != nil {
		return result, err
	}
	if editsApplied != nil {
		editsApplied.Add(ctx, 1)
	}
	return result, nil
}

// SkipEdit declines a suggestion without touching files.
//
// The decision is recorded as a skip action on the session's decision
// log, carrying the reviewer's reason, so the skip survives restarts
// alongside applied actions. Skipping an edit that already has a
// terminal status (including a previous skip) is EDIT_ALREADY_PROCESSED;
// a skip is never double-counted.
func (m *Manager) SkipEdit(ctx context.Context, sessionID, editID, reason string) error {
	unlock := m.lockSession(sessionID)
	defer unlock()

	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := m.requireActive(session); err != nil {
		return err
	}

	sug := session.FindEdit(editID)
	if sug == nil {
		return edit.NewError(edit.KindEditNotFound, map[string]any{
			"session_id": sessionID,
			"edit_id":    editID,
		})
	}
	if sug.Status.IsTerminal() {
		return edit.NewError(edit.KindEditAlreadyProcessed, map[string]any{
			"edit_id": editID,
			"status":  sug.Status.String(),
		})
	}

	sug.Status = edit.StatusSkipped
	session.SkippedEdits = append(session.SkippedEdits, editID)
	session.CurrentIndex++
	session.DecisionLog = append(session.DecisionLog, edit.Action{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		EditID:    editID,
		Type:      edit.ActionSkip,
		Notes:     reason,
		Timestamp: time.Now().UTC(),
	})

	if err := m.persist(ctx, session); err != nil {
		return err
	}
	if editsSkipped != nil {
		editsSkipped.Add(ctx, 1)
	}
	m.logger.Info("edit skipped", "session_id", sessionID, "edit_id", editID, "reason", reason)
	return nil
}

// Undo reverts applied edits at the requested granularity and reconciles
// the session: reverted suggestions return to pending and leave the
// completed set.
//
// A file- or session-level undo can fail partway through. The actions
// reverted before the failure have already changed files on disk, so
// they are reconciled and persisted even when an error is returned -
// the stored session never lists a reverted edit as applied.
func (m *Manager) Undo(ctx context.Context, sessionID string, level executor.UndoLevel) ([]edit.Action, error) {
	unlock := m.lockSession(sessionID)
	defer unlock()

	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := m.requireActive(session); err != nil {
		return nil, err
	}

	reverted, undoErr := m.exec.UndoLast(ctx, sessionID, level)
	if len(reverted) > 0 {
		if perr := m.reconcileUndone(ctx, session, reverted); perr != nil {
			return reverted, perr
		}
		if undosTotal != nil {
			undosTotal.Add(ctx, int64(len(reverted)))
		}
	}
	return reverted, undoErr
}

// reconcileUndone folds a batch of reverted actions back into the
// session and persists it: statuses return to pending, completed ids
// are removed, and each revert is logged as an undo decision.
func (m *Manager) reconcileUndone(ctx context.Context, session *edit.Session, reverted []edit.Action) error {
	for _, action := range reverted {
		if sug := session.FindEdit(action.EditID); sug != nil {
			sug.Status = edit.StatusPending
			sug.UserModification = ""
		}
		session.CompletedEdits = removeID(session.CompletedEdits, action.EditID)
		if session.CurrentIndex > 0 {
			session.CurrentIndex--
		}
		session.DecisionLog = append(session.DecisionLog, edit.Action{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			EditID:    action.EditID,
			Type:      edit.ActionUndo,
			FilePath:  action.FilePath,
			Timestamp: time.Now().UTC(),
		})
	}
	m.mirrorStacks(session)
	return m.persist(ctx, session)
}

// Redo reapplies the most recently undone edit.
func (m *Manager) Redo(ctx context.Context, sessionID string) (*edit.Action, error) {
	unlock := m.lockSession(sessionID)
	defer unlock()

	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := m.requireActive(session); err != nil {
		return nil, err
	}

	action, err := m.exec.RedoLast(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if sug := session.FindEdit(action.EditID); sug != nil {
		if action.Type == edit.ActionModify {
			sug.Status = edit.StatusModified
		} else {
			sug.Status = edit.StatusAccepted
		}
	}
	session.CompletedEdits = append(session.CompletedEdits, action.EditID)
	session.CurrentIndex++
	session.DecisionLog = append(session.DecisionLog, edit.Action{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		EditID:    action.EditID,
		Type:      edit.ActionRedo,
		FilePath:  action.FilePath,
		Timestamp: time.Now().UTC(),
	})
	m.mirrorStacks(session)

	if err := m.persist(ctx, session); err != nil {
		return action, err
	}
	if redosTotal != nil {
		redosTotal.Add(ctx, 1)
	}
	return action, nil
}

// =============================================================================
// Read-only queries
// =============================================================================

// GetProgress returns the session's derived progress counters.
func (m *Manager) GetProgress(ctx context.Context, sessionID string) (edit.Progress, error) {
	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return edit.Progress{}, err
	}
	return session.Progress(), nil
}

// PreviewAll renders the diff of every unprocessed suggestion without
// applying anything.
func (m *Manager) PreviewAll(ctx context.Context, sessionID string) ([]executor.Preview, error) {
	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var pending []*edit.Suggestion
	for _, e := range session.Edits {
		if !e.Status.IsTerminal() {
			pending = append(pending, e)
		}
	}
	return m.exec.PreviewAll(ctx, pending), nil
}

// GetChanges returns the net applied change per touched file, aggregated
// from the session's persisted undo stack.
func (m *Manager) GetChanges(ctx context.Context, sessionID string) ([]executor.FileChange, error) {
	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return executor.AggregateChanges(session.UndoStack)
}

// GetDiff renders the diff for one suggestion.
//
// For applied suggestions the diff is reconstructed from the recorded
// action's snapshots; for unprocessed ones it is a preview against the
// current file content.
func (m *Manager) GetDiff(ctx context.Context, sessionID, editID string) (string, error) {
	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return "", err
	}

	sug := session.FindEdit(editID)
	if sug == nil {
		return "", edit.NewError(edit.KindEditNotFound, map[string]any{
			"session_id": sessionID,
			"edit_id":    editID,
		})
	}

	for i := len(session.UndoStack) - 1; i >= 0; i-- {
		action := session.UndoStack[i]
		if action.EditID == editID {
			return executor.GenerateGitDiff(action.FilePath, action.BeforeContent, action.AfterContent)
		}
	}

	previews := m.exec.PreviewAll(ctx, []*edit.Suggestion{sug})
	if previews[0].Error != "" {
		return "", edit.NewError(edit.KindGitError, map[string]any{
			"edit_id": editID,
			"cause":   previews[0].Error,
		})
	}
	return previews[0].Diff, nil
}

// GetContext derives (or serves from cache) the read-only context for a
// suggestion.
func (m *Manager) GetContext(ctx context.Context, sessionID, editID string) (*edit.Context, error) {
	session, err := m.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sug := session.FindEdit(editID)
	if sug == nil {
		return nil, edit.NewError(edit.KindEditNotFound, map[string]any{
			"session_id": sessionID,
			"edit_id":    editID,
		})
	}

	data, err := m.files.ReadFile(ctx, sug.FilePath)
	if err != nil {
		return nil, err
	}
	content := string(data)

	hash := analyzer.HashContent(content)
	if m.contexts != nil {
		if cached, ok := m.contexts.Get(editID, hash); ok {
			return cached, nil
		}
	}

	ectx, err := analyzer.GenerateContext(sug, content)
	if err != nil {
		return nil, err
	}
	if m.contexts != nil {
		m.contexts.Put(ectx, filepath.Join(session.WorkspaceURI, filepath.FromSlash(sug.FilePath)))
	}
	return ectx, nil
}

// =============================================================================
// Internal helpers
// =============================================================================

// lockSession acquires the per-session mutex and returns its unlock.
func (m *Manager) lockSession(sessionID string) func() {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[sessionID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// loadSession loads the persisted session, rehydrating the executor's
// history on first touch after a restart.
func (m *Manager) loadSession(ctx context.Context, sessionID string) (*edit.Session, error) {
	session, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	needsHydration := !m.hydrated[sessionID]
	if needsHydration {
		m.hydrated[sessionID] = true
	}
	m.mu.Unlock()

	if needsHydration {
		m.exec.Rehydrate(session)
	}
	return session, nil
}

// persist stamps UpdatedAt and saves the session.
func (m *Manager) persist(ctx context.Context, session *edit.Session) error {
	session.UpdatedAt = time.Now().UTC()
	return m.store.Save(ctx, session)
}

// mirrorStacks copies the executor's history into the session record so
// it survives restarts.
func (m *Manager) mirrorStacks(session *edit.Session) {
	undo, redo := m.exec.Stacks(session.ID)
	session.UndoStack = undo
	session.RedoStack = redo
}

// requireActive rejects review operations on non-active sessions.
func (m *Manager) requireActive(session *edit.Session) error {
	if session.Status != edit.SessionActive {
		return edit.NewError(edit.KindValidationError, map[string]any{
			"session_id": session.ID,
			"status":     session.Status.String(),
			"reason":     "session is not active",
		})
	}
	return nil
}

func (m *Manager) markHydrated(sessionID string) {
	m.mu.Lock()
	m.hydrated[sessionID] = true
	m.mu.Unlock()
}

func (m *Manager) forgetHydrated(sessionID string) {
	m.mu.Lock()
	delete(m.hydrated, sessionID)
	delete(m.locks, sessionID)
	m.mu.Unlock()
}

// removeID returns ids without the first occurrence of id.
func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
