// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage persists review sessions in an embedded BadgerDB.
//
// # Description
//
// Sessions are stored as JSON under "session:<id>" keys, with two pointer
// keys tracking the lifecycle: "pointer:active" names the session currently
// being reviewed (at most one) and "pointer:last" names the most recently
// retired session, which resume-style flows reopen.
//
// Sessions survive process restarts; the session manager reloads the active
// pointer at startup and rehydrates the executor from the stored undo/redo
// stacks.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/nextedit/services/next_edit/edit"
)

const (
	sessionKeyPrefix = "session:"
	activePointerKey = "pointer:active"
	lastPointerKey   = "pointer:last"
)

// SessionStore is the persistence boundary for review sessions.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// Save persists the session, overwriting any previous version.
	Save(ctx context.Context, session *edit.Session) error

	// Load returns the session with the given id, or SESSION_NOT_FOUND.
	Load(ctx context.Context, id string) (*edit.Session, error)

	// Delete removes the session record. Missing ids are not an error.
	Delete(ctx context.Context, id string) error

	// List returns all stored sessions, newest first.
	List(ctx context.Context) ([]*edit.Session, error)

	// SetActive marks the session as the single active one.
	SetActive(ctx context.Context, id string) error

	// ActiveID returns the active session id, or "" when none is active.
	ActiveID(ctx context.Context) (string, error)

	// ClearActive retires the active pointer, recording it as last.
	ClearActive(ctx context.Context) error

	// LastID returns the most recently retired session id, or "".
	LastID(ctx context.Context) (string, error)

	// Close releases the underlying database.
	Close() error
}

// BadgerStore is the BadgerDB-backed SessionStore.
type BadgerStore struct {
	db *DB
}

// NewBadgerStore opens a session store with the given configuration.
//
// # Inputs
//
//   - cfg: Database configuration. Path is required unless InMemory.
//
// # Outputs
//
//   - *BadgerStore: Ready store. Caller must Close when done.
//   - error: Non-nil if the database cannot be opened.
func NewBadgerStore(cfg Config) (*BadgerStore, error) {
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close stops GC and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Save persists the session as JSON under its session key.
func (s *BadgerStore) Save(ctx context.Context, session *edit.Session) error {
	if session == nil || session.ID == "" {
		return edit.NewError(edit.KindValidationError, map[string]any{
			"reason": "session missing id",
		})
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.ID, err)
	}

	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(sessionKey(session.ID), data)
	})
}

// Load returns the stored session, or SESSION_NOT_FOUND.
func (s *BadgerStore) Load(ctx context.Context, id string) (*edit.Session, error) {
	if id == "" {
		return nil, edit.NewError(edit.KindInvalidSessionID, map[string]any{
			"reason": "empty session id",
		})
	}

	var session edit.Session
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return edit.NewError(edit.KindSessionNotFound, map[string]any{
					"session_id": id,
				})
			}
			return fmt.Errorf("get session %s: %w", id, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete removes the session record and any pointer referencing it.
func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		for _, pointerKey := range []string{activePointerKey, lastPointerKey} {
			target, err := readPointer(txn, pointerKey)
			if err != nil {
				return err
			}
			if target == id {
				if err := txn.Delete([]byte(pointerKey)); err != nil {
					return fmt.Errorf("clear %s: %w", pointerKey, err)
				}
			}
		}
		return txn.Delete(sessionKey(id))
	})
}

// List returns every stored session, newest first by CreatedAt.
func (s *BadgerStore) List(ctx context.Context) ([]*edit.Session, error) {
	var sessions []*edit.Session

	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var session edit.Session
				if err := json.Unmarshal(val, &session); err != nil {
					return fmt.Errorf("unmarshal session %s: %w", it.Item().Key(), err)
				}
				sessions = append(sessions, &session)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// SetActive points "pointer:active" at the session. The session must exist.
func (s *BadgerStore) SetActive(ctx context.Context, id string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(sessionKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return edit.NewError(edit.KindSessionNotFound, map[string]any{
					"session_id": id,
				})
			}
			return fmt.Errorf("get session %s: %w", id, err)
		}
		return txn.Set([]byte(activePointerKey), []byte(id))
	})
}

// ActiveID returns the active session id, or "".
func (s *BadgerStore) ActiveID(ctx context.Context) (string, error) {
	return s.pointer(ctx, activePointerKey)
}

// ClearActive moves the active pointer to "pointer:last".
//
// A no-op when no session is active.
func (s *BadgerStore) ClearActive(ctx context.Context) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		id, err := readPointer(txn, activePointerKey)
		if err != nil {
			return err
		}
		if id == "" {
			return nil
		}
		if err := txn.Set([]byte(lastPointerKey), []byte(id)); err != nil {
			return fmt.Errorf("set last pointer: %w", err)
		}
		return txn.Delete([]byte(activePointerKey))
	})
}

// LastID returns the most recently retired session id, or "".
func (s *BadgerStore) LastID(ctx context.Context) (string, error) {
	return s.pointer(ctx, lastPointerKey)
}

func (s *BadgerStore) pointer(ctx context.Context, key string) (string, error) {
	var id string
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		id, err = readPointer(txn, key)
		return err
	})
	return id, err
}

// readPointer returns the pointer's target id, or "" when unset.
func readPointer(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("get %s: %w", key, err)
	}

	var id string
	err = item.Value(func(val []byte) error {
		id = string(val)
		return nil
	})
	return id, err
}

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}
