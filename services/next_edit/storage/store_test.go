// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/nextedit/services/next_edit/edit"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testSession(id string) *edit.Session {
	return &edit.Session{
		ID:           id,
		WorkspaceURI: "/workspace",
		Goal:         "clean up todos",
		Status:       edit.SessionActive,
		Edits: []*edit.Suggestion{
			{ID: id + "-e1", FilePath: "main.go", LineStart: 1, LineEnd: 1, Status: edit.StatusPending},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestBadgerStore_SaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := testSession("s1")
	session.UndoStack = []edit.Action{{
		ID:            "a1",
		SessionID:     "s1",
		EditID:        "s1-e1",
		Type:          edit.ActionAccept,
		FilePath:      "main.go",
		BeforeContent: "old\n",
		AfterContent:  "new\n",
		Timestamp:     time.Now().UTC(),
	}}

	require.NoError(t, store.Save(ctx, session))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, loaded.ID)
	assert.Equal(t, session.Goal, loaded.Goal)
	assert.Equal(t, edit.SessionActive, loaded.Status)
	require.Len(t, loaded.Edits, 1)
	assert.Equal(t, "s1-e1", loaded.Edits[0].ID)
	require.Len(t, loaded.UndoStack, 1)
	assert.Equal(t, "old\n", loaded.UndoStack[0].BeforeContent)
}

func TestBadgerStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background(), "ghost")
	assert.True(t, edit.IsKind(err, edit.KindSessionNotFound), "got %v", err)
}

func TestBadgerStore_LoadEmptyID(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background(), "")
	assert.True(t, edit.IsKind(err, edit.KindInvalidSessionID), "got %v", err)
}

func TestBadgerStore_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := testSession("s1")
	require.NoError(t, store.Save(ctx, session))

	session.Status = edit.SessionCompleted
	require.NoError(t, store.Save(ctx, session))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, edit.SessionCompleted, loaded.Status)
}

func TestBadgerStore_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := testSession("older")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := testSession("newer")

	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, newer))

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "newer", sessions[0].ID, "list should be newest first")
	assert.Equal(t, "older", sessions[1].ID)
}

func TestBadgerStore_ActivePointerLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// No active session initially.
	id, err := store.ActiveID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, store.Save(ctx, testSession("s1")))
	require.NoError(t, store.SetActive(ctx, "s1"))

	id, err = store.ActiveID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", id)

	// Retiring moves active to last.
	require.NoError(t, store.ClearActive(ctx))

	id, err = store.ActiveID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	last, err := store.LastID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", last)
}

func TestBadgerStore_SetActiveUnknownSession(t *testing.T) {
	store := newTestStore(t)

	err := store.SetActive(context.Background(), "ghost")
	assert.True(t, edit.IsKind(err, edit.KindSessionNotFound), "got %v", err)
}

func TestBadgerStore_ClearActiveWithoutActive(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.ClearActive(context.Background()))
}

func TestBadgerStore_DeleteClearsPointers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("s1")))
	require.NoError(t, store.SetActive(ctx, "s1"))
	require.NoError(t, store.Delete(ctx, "s1"))

	_, err := store.Load(ctx, "s1")
	assert.True(t, edit.IsKind(err, edit.KindSessionNotFound))

	id, err := store.ActiveID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id, "deleting the active session must clear the pointer")
}

func TestBadgerStore_DeleteMissingIsNoop(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Delete(context.Background(), "ghost"))
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Path: dir, SyncWrites: true}
	ctx := context.Background()

	store, err := NewBadgerStore(cfg)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, testSession("s1")))
	require.NoError(t, store.SetActive(ctx, "s1"))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", loaded.ID)

	id, err := reopened.ActiveID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", id)
}
