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
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/nextedit/services/next_edit/analyzer"
	"github.com/AleutianAI/nextedit/services/next_edit/edit"
	"github.com/AleutianAI/nextedit/services/next_edit/executor"
	"github.com/AleutianAI/nextedit/services/next_edit/storage"
)

// stubAnalyzer returns a canned batch and records whether it ran.
type stubAnalyzer struct {
	edits  []*edit.Suggestion
	err    error
	called bool
}

func (s *stubAnalyzer) AnalyzeCodebase(_ context.Context, _, _ string, _ analyzer.Options) ([]*edit.Suggestion, error) {
	s.called = true
	if s.err != nil {
		return nil, s.err
	}
	// Fresh copies so reruns are independent.
	out := make([]*edit.Suggestion, len(s.edits))
	for i, e := range s.edits {
		clone := *e
		out[i] = &clone
	}
	return out, nil
}

// harness bundles a manager with its collaborators.
type harness struct {
	manager  *Manager
	files    *executor.MemStore
	store    storage.SessionStore
	analyzer *stubAnalyzer
}

func newHarness(t *testing.T, sugs []*edit.Suggestion) *harness {
	t.Helper()

	store, err := storage.NewBadgerStore(storage.InMemoryConfig())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	files := executor.NewMemStore()
	stub := &stubAnalyzer{edits: sugs}

	manager, err := NewManager(ManagerConfig{
		Analyzer: stub,
		Executor: executor.New(files, nil),
		Files:    files,
		Store:    store,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	return &harness{manager: manager, files: files, store: store, analyzer: stub}
}

// threeEdits is a chain a <- b plus an independent c, all in distinct files.
func threeEdits() []*edit.Suggestion {
	return []*edit.Suggestion{
		{ID: "a", FilePath: "a.go", LineStart: 1, LineEnd: 1, SuggestedContent: "A", Status: edit.StatusPending},
		{ID: "b", FilePath: "b.go", LineStart: 1, LineEnd: 1, SuggestedContent: "B", Status: edit.StatusPending, Dependencies: []string{"a"}},
		{ID: "c", FilePath: "c.go", LineStart: 1, LineEnd: 1, SuggestedContent: "C", Status: edit.StatusPending},
	}
}

func (h *harness) seedFiles() {
	h.files.Seed("a.go", "a0\n")
	h.files.Seed("b.go", "b0\n")
	h.files.Seed("c.go", "c0\n")
}

func (h *harness) start(t *testing.T) *edit.Session {
	t.Helper()
	session, err := h.manager.Start(context.Background(), "/workspace", "cleanup", analyzer.DefaultOptions())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return session
}

func TestStart_ValidatesBeforeAnalysis(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.manager.Start(context.Background(), "", "goal", analyzer.Options{})
	if !edit.IsKind(err, edit.KindValidationError) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	_, err = h.manager.Start(context.Background(), "/workspace", "", analyzer.Options{})
	if !edit.IsKind(err, edit.KindValidationError) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if h.analyzer.called {
		t.Error("analyzer must not run for invalid input")
	}
}

func TestStart_SingleActiveSession(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	h.start(t)

	_, err := h.manager.Start(context.Background(), "/workspace", "another", analyzer.Options{})
	if !edit.IsKind(err, edit.KindSessionAlreadyActive) {
		t.Fatalf("expected SESSION_ALREADY_ACTIVE, got %v", err)
	}
}

func TestStart_AnalysisFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.analyzer.err = errors.New("scanner blew up")

	_, err := h.manager.Start(context.Background(), "/workspace", "goal", analyzer.Options{})
	if !edit.IsKind(err, edit.KindAnalysisFailed) {
		t.Fatalf("expected ANALYSIS_FAILED, got %v", err)
	}
}

func TestStart_ReportsCyclesWithoutFailing(t *testing.T) {
	h := newHarness(t, []*edit.Suggestion{
		{ID: "x", FilePath: "x.go", LineStart: 1, LineEnd: 1, Status: edit.StatusPending, Dependencies: []string{"y"}},
		{ID: "y", FilePath: "y.go", LineStart: 1, LineEnd: 1, Status: edit.StatusPending, Dependencies: []string{"x"}},
	})

	session := h.start(t)
	if len(session.CircularDependencies) == 0 {
		t.Error("cycle should be reported on the session")
	}
	if session.Status != edit.SessionActive {
		t.Errorf("status = %s, cycles must not fail the start", session.Status)
	}
}

func TestGetNextEdit_DependencyOrder(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	// b depends on a, so a (or the independent c) must come first.
	next, err := h.manager.GetNextEdit(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetNextEdit: %v", err)
	}
	if next.ID == "b" {
		t.Fatal("b served before its dependency a")
	}
	if next.Status != edit.StatusReviewing {
		t.Errorf("served edit status = %s, want reviewing", next.Status)
	}
}

func TestReviewLoop_EndToEnd(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	// Apply a, then b (now unblocked), skip c.
	if _, err := h.manager.ApplyEdit(ctx, session.ID, "a", ""); err != nil {
		t.Fatalf("apply a: %v", err)
	}
	if h.files.Content("a.go") != "A\n" {
		t.Errorf("a.go = %q", h.files.Content("a.go"))
	}

	progress, err := h.manager.GetProgress(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if progress.Completed != 1 || progress.Remaining != 2 || progress.Percentage != 33 {
		t.Errorf("progress after first apply = %+v", progress)
	}

	if _, err := h.manager.ApplyEdit(ctx, session.ID, "b", ""); err != nil {
		t.Fatalf("apply b: %v", err)
	}
	if err := h.manager.SkipEdit(ctx, session.ID, "c", "not relevant"); err != nil {
		t.Fatalf("skip c: %v", err)
	}

	progress, err = h.manager.GetProgress(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if progress.Completed != 2 || progress.Skipped != 1 || progress.Remaining != 0 || progress.Percentage != 100 {
		t.Errorf("final progress = %+v", progress)
	}

	if _, err := h.manager.GetNextEdit(ctx, session.ID); !errors.Is(err, edit.ErrNoMoreEdits) {
		t.Fatalf("expected ErrNoMoreEdits, got %v", err)
	}

	summary, err := h.manager.Complete(ctx, session.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if summary.Accepted != 2 || summary.Skipped != 1 || summary.Pending != 0 {
		t.Errorf("summary = %+v", summary)
	}

	// The active pointer is retired and a new session may start.
	if _, err := h.manager.Start(ctx, "/workspace", "again", analyzer.DefaultOptions()); err != nil {
		t.Fatalf("start after complete: %v", err)
	}
}

func TestApplyEdit_DependencyNotMet(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)

	_, err := h.manager.ApplyEdit(context.Background(), session.ID, "b", "")
	if !edit.IsKind(err, edit.KindDependencyNotMet) {
		t.Fatalf("expected DEPENDENCY_NOT_MET, got %v", err)
	}
}

func TestApplyEdit_AlreadyProcessed(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	if _, err := h.manager.ApplyEdit(ctx, session.ID, "a", ""); err != nil {
		t.Fatalf("apply: %v", err)
	}
	_, err := h.manager.ApplyEdit(ctx, session.ID, "a", "")
	if !edit.IsKind(err, edit.KindEditAlreadyProcessed) {
		t.Fatalf("expected EDIT_ALREADY_PROCESSED, got %v", err)
	}
}

func TestApplyEdit_UnknownEdit(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)

	_, err := h.manager.ApplyEdit(context.Background(), session.ID, "ghost", "")
	if !edit.IsKind(err, edit.KindEditNotFound) {
		t.Fatalf("expected EDIT_NOT_FOUND, got %v", err)
	}
}

func TestApplyEdit_FileFailureMarksEditErrored(t *testing.T) {
	h := newHarness(t, threeEdits())
	// a.go intentionally missing.
	h.files.Seed("b.go", "b0\n")
	h.files.Seed("c.go", "c0\n")
	session := h.start(t)
	ctx := context.Background()

	result, err := h.manager.ApplyEdit(ctx, session.ID, "a", "")
	if !edit.IsKind(err, edit.KindApplyFailed) {
		t.Fatalf("expected APPLY_FAILED, got %v", err)
	}
	if result == nil || result.Success {
		t.Fatalf("result = %+v", result)
	}

	reloaded, err := h.manager.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reloaded.FindEdit("a").Status != edit.StatusError {
		t.Errorf("edit a status = %s, want error", reloaded.FindEdit("a").Status)
	}

	// The session continues: c is still applicable.
	if _, err := h.manager.ApplyEdit(ctx, session.ID, "c", ""); err != nil {
		t.Fatalf("apply c after failure: %v", err)
	}
}

func TestApplyEdit_UserModification(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	if _, err := h.manager.ApplyEdit(ctx, session.ID, "a", "custom"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if h.files.Content("a.go") != "custom\n" {
		t.Errorf("a.go = %q", h.files.Content("a.go"))
	}

	reloaded, _ := h.manager.Get(ctx, session.ID)
	if reloaded.FindEdit("a").Status != edit.StatusModified {
		t.Errorf("status = %s, want modified", reloaded.FindEdit("a").Status)
	}
}

func TestSkipEdit_SecondSkipRejected(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	if err := h.manager.SkipEdit(ctx, session.ID, "c", "first"); err != nil {
		t.Fatalf("skip: %v", err)
	}
	err := h.manager.SkipEdit(ctx, session.ID, "c", "second")
	if !edit.IsKind(err, edit.KindEditAlreadyProcessed) {
		t.Fatalf("expected EDIT_ALREADY_PROCESSED, got %v", err)
	}

	reloaded, _ := h.manager.Get(ctx, session.ID)
	if len(reloaded.SkippedEdits) != 1 {
		t.Errorf("skipped = %v, want single entry", reloaded.SkippedEdits)
	}
}

func TestSkipEdit_RecordsDecision(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	if err := h.manager.SkipEdit(ctx, session.ID, "c", "out of scope"); err != nil {
		t.Fatalf("skip: %v", err)
	}
	if err := h.manager.SkipEdit(ctx, session.ID, "c", "again"); !edit.IsKind(err, edit.KindEditAlreadyProcessed) {
		t.Fatalf("second skip: %v", err)
	}

	reloaded, _ := h.manager.Get(ctx, session.ID)
	if len(reloaded.DecisionLog) != 1 {
		t.Fatalf("decision log = %+v, want a single skip record", reloaded.DecisionLog)
	}
	rec := reloaded.DecisionLog[0]
	if rec.Type != edit.ActionSkip || rec.EditID != "c" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Notes != "out of scope" {
		t.Errorf("notes = %q, want the skip reason", rec.Notes)
	}
	if rec.FilePath != "" || rec.BeforeContent != "" || rec.AfterContent != "" {
		t.Error("skip record must not carry file content")
	}
}

func TestDecisionLog_CoversReviewVerbs(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	if _, err := h.manager.ApplyEdit(ctx, session.ID, "a", ""); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := h.manager.Undo(ctx, session.ID, executor.UndoEdit); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if _, err := h.manager.Redo(ctx, session.ID); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if err := h.manager.SkipEdit(ctx, session.ID, "c", "later"); err != nil {
		t.Fatalf("skip: %v", err)
	}

	reloaded, _ := h.manager.Get(ctx, session.ID)
	want := []edit.ActionType{edit.ActionAccept, edit.ActionUndo, edit.ActionRedo, edit.ActionSkip}
	if len(reloaded.DecisionLog) != len(want) {
		t.Fatalf("decision log depth = %d, want %d", len(reloaded.DecisionLog), len(want))
	}
	for i, rec := range reloaded.DecisionLog {
		if rec.Type != want[i] {
			t.Errorf("record %d type = %s, want %s", i, rec.Type, want[i])
		}
	}
	if reloaded.DecisionLog[1].FilePath != "a.go" || reloaded.DecisionLog[2].FilePath != "a.go" {
		t.Error("undo/redo records should name the touched file")
	}
}

func TestUndo_ReconcilesSession(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	if _, err := h.manager.ApplyEdit(ctx, session.ID, "a", ""); err != nil {
		t.Fatalf("apply: %v", err)
	}

	reverted, err := h.manager.Undo(ctx, session.ID, executor.UndoEdit)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if len(reverted) != 1 || reverted[0].EditID != "a" {
		t.Fatalf("reverted = %+v", reverted)
	}
	if h.files.Content("a.go") != "a0\n" {
		t.Errorf("a.go = %q, want original", h.files.Content("a.go"))
	}

	reloaded, _ := h.manager.Get(ctx, session.ID)
	if reloaded.FindEdit("a").Status != edit.StatusPending {
		t.Errorf("undone edit status = %s, want pending", reloaded.FindEdit("a").Status)
	}
	if len(reloaded.CompletedEdits) != 0 {
		t.Errorf("completed = %v, want empty", reloaded.CompletedEdits)
	}
	if reloaded.CurrentIndex != 0 {
		t.Errorf("current index = %d, want 0", reloaded.CurrentIndex)
	}
	if len(reloaded.RedoStack) != 1 {
		t.Errorf("redo stack depth = %d, want 1", len(reloaded.RedoStack))
	}
}

func TestUndoAll_RevertsEverything(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := h.manager.ApplyEdit(ctx, session.ID, id, ""); err != nil {
			t.Fatalf("apply %s: %v", id, err)
		}
	}

	reverted, err := h.manager.Undo(ctx, session.ID, executor.UndoAll)
	if err != nil {
		t.Fatalf("Undo all: %v", err)
	}
	if len(reverted) != 3 {
		t.Fatalf("reverted %d, want 3", len(reverted))
	}
	for file, want := range map[string]string{"a.go": "a0\n", "b.go": "b0\n", "c.go": "c0\n"} {
		if h.files.Content(file) != want {
			t.Errorf("%s = %q, want %q", file, h.files.Content(file), want)
		}
	}

	progress, _ := h.manager.GetProgress(ctx, session.ID)
	if progress.Completed != 0 || progress.Remaining != 3 {
		t.Errorf("progress after undo all = %+v", progress)
	}
}

// flakyStore wraps a MemStore and fails writes to selected paths.
type flakyStore struct {
	*executor.MemStore
	failWrites map[string]bool
}

func (s *flakyStore) WriteFile(ctx context.Context, path string, data []byte) error {
	if s.failWrites[path] {
		return errors.New("disk full")
	}
	return s.MemStore.WriteFile(ctx, path, data)
}

func TestUndoAll_PartialFailurePersistsRevertedPrefix(t *testing.T) {
	store, err := storage.NewBadgerStore(storage.InMemoryConfig())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	files := &flakyStore{MemStore: executor.NewMemStore(), failWrites: map[string]bool{}}
	files.Seed("a.go", "a0\n")
	files.Seed("b.go", "b0\n")
	files.Seed("c.go", "c0\n")

	manager, err := NewManager(ManagerConfig{
		Analyzer: &stubAnalyzer{edits: threeEdits()},
		Executor: executor.New(files, nil),
		Files:    files,
		Store:    store,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx := context.Background()
	session, err := manager.Start(ctx, "/workspace", "cleanup", analyzer.DefaultOptions())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	for _, id := range []string{"a", "c"} {
		if _, err := manager.ApplyEdit(ctx, session.ID, id, ""); err != nil {
			t.Fatalf("apply %s: %v", id, err)
		}
	}

	// Undo all reverts c first, then fails restoring a.
	files.failWrites["a.go"] = true
	reverted, err := manager.Undo(ctx, session.ID, executor.UndoAll)
	if !edit.IsKind(err, edit.KindUndoFailed) {
		t.Fatalf("expected UNDO_FAILED, got %v", err)
	}
	if len(reverted) != 1 || reverted[0].EditID != "c" {
		t.Fatalf("reverted = %+v", reverted)
	}
	if files.Content("c.go") != "c0\n" {
		t.Errorf("c.go = %q, want restored", files.Content("c.go"))
	}
	if files.Content("a.go") != "A\n" {
		t.Errorf("a.go = %q, must stay applied", files.Content("a.go"))
	}

	// The reverted prefix is reconciled and persisted even though the
	// undo as a whole failed: the stored session must agree with disk.
	reloaded, err := manager.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := reloaded.FindEdit("c").Status; got != edit.StatusPending {
		t.Errorf("edit c status = %s, want pending", got)
	}
	if got := reloaded.FindEdit("a").Status; got != edit.StatusAccepted {
		t.Errorf("edit a status = %s, want accepted", got)
	}
	if len(reloaded.CompletedEdits) != 1 || reloaded.CompletedEdits[0] != "a" {
		t.Errorf("completed = %v, want [a]", reloaded.CompletedEdits)
	}
	if len(reloaded.UndoStack) != 1 || reloaded.UndoStack[0].EditID != "a" {
		t.Errorf("undo stack = %+v, want only a", reloaded.UndoStack)
	}
	if len(reloaded.RedoStack) != 1 || reloaded.RedoStack[0].EditID != "c" {
		t.Errorf("redo stack = %+v, want c", reloaded.RedoStack)
	}
}

func TestRedo_ReappliesEdit(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	if _, err := h.manager.ApplyEdit(ctx, session.ID, "a", ""); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := h.manager.Undo(ctx, session.ID, executor.UndoEdit); err != nil {
		t.Fatalf("undo: %v", err)
	}

	action, err := h.manager.Redo(ctx, session.ID)
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if action.EditID != "a" {
		t.Errorf("redone edit = %s", action.EditID)
	}
	if h.files.Content("a.go") != "A\n" {
		t.Errorf("a.go = %q, want reapplied", h.files.Content("a.go"))
	}

	reloaded, _ := h.manager.Get(ctx, session.ID)
	if reloaded.FindEdit("a").Status != edit.StatusAccepted {
		t.Errorf("status = %s, want accepted", reloaded.FindEdit("a").Status)
	}
}

func TestPauseResume(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	paused, err := h.manager.Pause(ctx, session.ID)
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if paused.Status != edit.SessionPaused {
		t.Errorf("status = %s", paused.Status)
	}

	// Review operations are rejected while paused.
	if _, err := h.manager.ApplyEdit(ctx, session.ID, "a", ""); !edit.IsKind(err, edit.KindValidationError) {
		t.Errorf("apply on paused session: %v", err)
	}
	if _, err := h.manager.GetNextEdit(ctx, session.ID); !edit.IsKind(err, edit.KindValidationError) {
		t.Errorf("next on paused session: %v", err)
	}

	resumed, err := h.manager.Resume(ctx, session.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Status != edit.SessionActive {
		t.Errorf("status = %s", resumed.Status)
	}
	if _, err := h.manager.ApplyEdit(ctx, session.ID, "a", ""); err != nil {
		t.Fatalf("apply after resume: %v", err)
	}
}

func TestCancel_TerminalAndNotResumable(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	if _, err := h.manager.Cancel(ctx, session.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if _, err := h.manager.Resume(ctx, session.ID); !edit.IsKind(err, edit.KindValidationError) {
		t.Errorf("resume of cancelled session: %v", err)
	}

	// Cancelled sessions remain loadable for audit.
	reloaded, err := h.manager.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reloaded.Status != edit.SessionCancelled {
		t.Errorf("status = %s", reloaded.Status)
	}
}

func TestRestart_RehydratesExecutorHistory(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	if _, err := h.manager.ApplyEdit(ctx, session.ID, "a", ""); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// Simulate a restart: new executor and manager over the same store
	// and workspace.
	restarted, err := NewManager(ManagerConfig{
		Analyzer: h.analyzer,
		Executor: executor.New(h.files, nil),
		Files:    h.files,
		Store:    h.store,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	reverted, err := restarted.Undo(ctx, session.ID, executor.UndoEdit)
	if err != nil {
		t.Fatalf("undo after restart: %v", err)
	}
	if len(reverted) != 1 || reverted[0].EditID != "a" {
		t.Fatalf("reverted = %+v", reverted)
	}
	if h.files.Content("a.go") != "a0\n" {
		t.Errorf("a.go = %q, want original restored", h.files.Content("a.go"))
	}
}

func TestGetDiff(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	// Preview diff for a pending edit.
	diff, err := h.manager.GetDiff(ctx, session.ID, "a")
	if err != nil {
		t.Fatalf("GetDiff pending: %v", err)
	}
	if diff == "" {
		t.Error("expected non-empty preview diff")
	}

	// After applying, the diff is reconstructed from the action.
	if _, err := h.manager.ApplyEdit(ctx, session.ID, "a", ""); err != nil {
		t.Fatalf("apply: %v", err)
	}
	diff, err = h.manager.GetDiff(ctx, session.ID, "a")
	if err != nil {
		t.Fatalf("GetDiff applied: %v", err)
	}
	if diff == "" {
		t.Error("expected non-empty historical diff")
	}
}

func TestGetChanges_AggregatesPerFile(t *testing.T) {
	h := newHarness(t, threeEdits())
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	changes, err := h.manager.GetChanges(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetChanges: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("changes before any apply = %+v", changes)
	}

	for _, id := range []string{"a", "c"} {
		if _, err := h.manager.ApplyEdit(ctx, session.ID, id, ""); err != nil {
			t.Fatalf("apply %s: %v", id, err)
		}
	}

	changes, err = h.manager.GetChanges(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetChanges: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want one per touched file", len(changes))
	}
	if changes[0].FilePath != "a.go" || changes[1].FilePath != "c.go" {
		t.Errorf("files = %s, %s", changes[0].FilePath, changes[1].FilePath)
	}
	if changes[0].Diff == "" {
		t.Error("expected non-empty diff for a.go")
	}
}

func TestGetContext_CachesByHash(t *testing.T) {
	cache, err := analyzer.NewContextCache(nil)
	if err != nil {
		t.Fatalf("NewContextCache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	h := newHarness(t, threeEdits())
	h.manager.contexts = cache
	h.seedFiles()
	session := h.start(t)
	ctx := context.Background()

	first, err := h.manager.GetContext(ctx, session.ID, "a")
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if first.ContentHash == "" {
		t.Fatal("context must carry a content hash")
	}
	if cache.Len() != 1 {
		t.Errorf("cache len = %d, want 1", cache.Len())
	}

	second, err := h.manager.GetContext(ctx, session.ID, "a")
	if err != nil {
		t.Fatalf("GetContext cached: %v", err)
	}
	if second != first {
		t.Error("unchanged file should serve the cached context")
	}

	// Changing the file invalidates by hash.
	h.files.Seed("a.go", "changed\n")
	third, err := h.manager.GetContext(ctx, session.ID, "a")
	if err != nil {
		t.Fatalf("GetContext after change: %v", err)
	}
	if third == first {
		t.Error("changed file must produce a fresh context")
	}
}

func TestStateMachine_Graph(t *testing.T) {
	sm := NewStateMachine()

	valid := [][2]edit.SessionStatus{
		{edit.SessionInitializing, edit.SessionActive},
		{edit.SessionInitializing, edit.SessionError},
		{edit.SessionActive, edit.SessionPaused},
		{edit.SessionPaused, edit.SessionActive},
		{edit.SessionActive, edit.SessionCompleted},
		{edit.SessionPaused, edit.SessionCancelled},
	}
	for _, pair := range valid {
		if !sm.CanTransition(pair[0], pair[1]) {
			t.Errorf("%s -> %s should be valid", pair[0], pair[1])
		}
	}

	invalid := [][2]edit.SessionStatus{
		{edit.SessionInitializing, edit.SessionPaused},
		{edit.SessionCompleted, edit.SessionActive},
		{edit.SessionCancelled, edit.SessionActive},
		{edit.SessionError, edit.SessionActive},
		{edit.SessionActive, edit.SessionInitializing},
	}
	for _, pair := range invalid {
		if sm.CanTransition(pair[0], pair[1]) {
			t.Errorf("%s -> %s must be invalid", pair[0], pair[1])
		}
	}

	// Transition leaves the session untouched on an invalid edge.
	s := &edit.Session{ID: "s", Status: edit.SessionCompleted}
	if err := sm.Transition(s, edit.SessionActive); !edit.IsKind(err, edit.KindValidationError) {
		t.Errorf("expected VALIDATION_ERROR, got %v", err)
	}
	if s.Status != edit.SessionCompleted {
		t.Errorf("status mutated on invalid transition: %s", s.Status)
	}
}
