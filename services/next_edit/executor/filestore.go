// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/AleutianAI/nextedit/services/next_edit/edit"
)

// FileStore abstracts the bytes-on-disk backend the executor edits against.
//
// Failures to locate a file surface as FILE_NOT_FOUND tagged errors.
type FileStore interface {
	// ReadFile returns the current content of the file at path.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile replaces the content of the file at path.
	WriteFile(ctx context.Context, path string, data []byte) error
}

// WorkspaceStore is a FileStore rooted at a workspace directory.
//
// # Description
//
// Resolves relative paths against the workspace root and rejects paths
// that escape it. All writes preserve a 0644 mode for new files.
//
// # Thread Safety
//
// Safe for concurrent use.
type WorkspaceStore struct {
	root string
}

// NewWorkspaceStore creates a store rooted at the given directory.
//
// # Inputs
//
//   - root: Workspace root. Must be an absolute path to a directory.
//
// # Outputs
//
//   - *WorkspaceStore: Ready-to-use store.
//   - error: Non-nil if root is relative, missing, or not a directory.
func NewWorkspaceStore(root string) (*WorkspaceStore, error) {
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("workspace root must be absolute: %s", root)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root is not a directory: %s", root)
	}

	return &WorkspaceStore{root: root}, nil
}

// Root returns the workspace root directory.
func (s *WorkspaceStore) Root() string {
	return s.root
}

// ReadFile reads the file at path, resolved against the workspace root.
func (s *WorkspaceStore) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, edit.WrapError(edit.KindFileNotFound, err, map[string]any{"path": path})
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes the file at path, resolved against the workspace root.
func (s *WorkspaceStore) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.WriteFile(full, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// resolve joins path with the root and rejects escapes via "..".
func (s *WorkspaceStore) resolve(path string) (string, error) {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(s.root, full)
	}

	rel, err := filepath.Rel(filepath.Clean(s.root), filepath.Clean(full))
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", edit.NewError(edit.KindValidationError, map[string]any{
			"path":   path,
			"reason": "path escapes workspace root",
		})
	}
	return full, nil
}

// MemStore is an in-memory FileStore for tests.
//
// # Thread Safety
//
// Safe for concurrent use.
type MemStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string][]byte)}
}

// Seed sets the content of a file without error handling. Test helper.
func (s *MemStore) Seed(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = []byte(content)
}

// ReadFile returns the stored content, or a FILE_NOT_FOUND error.
func (s *MemStore) ReadFile(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.files[path]
	if !ok {
		return nil, edit.NewError(edit.KindFileNotFound, map[string]any{"path": path})
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteFile stores the content under path.
func (s *MemStore) WriteFile(_ context.Context, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.files[path] = stored
	return nil
}

// Content returns the current content of path as a string. Test helper.
func (s *MemStore) Content(path string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return string(s.files[path])
}
