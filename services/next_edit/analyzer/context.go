// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/nextedit/services/next_edit/edit"
)

// contextWindow is the number of surrounding lines captured on each side
// of a suggestion's target region.
const contextWindow = 3

var (
	// functionRe matches function declarations across the languages the
	// pattern analyzer scans (Go, Python, JavaScript/TypeScript).
	functionRe = regexp.MustCompile(`^\s*(?:func\s+(?:\([^)]*\)\s*)?(\w+)|def\s+(\w+)|function\s+(\w+))`)

	// moduleRe matches Go package clauses and Python/JS module markers.
	moduleRe = regexp.MustCompile(`^\s*(?:package\s+(\w+)|module\s+(\w+))`)

	// importRe matches import lines.
	importRe = regexp.MustCompile(`^\s*(?:import\b|from\s+\S+\s+import\b|#include\b)`)
)

// GenerateContext derives read-only context for a suggestion from the
// current content of its file.
//
// # Description
//
// Captures the surrounding lines, the nearest enclosing function above
// the target region, the module/package name, and the file's import
// lines. The returned context carries the sha256 of the content it was
// derived from, which the cache uses for invalidation.
//
// # Inputs
//
//   - sug: The suggestion. Must be non-nil with a valid line range.
//   - content: Current content of the suggestion's file.
//
// # Outputs
//
//   - *edit.Context: The derived context. Never nil on success.
//   - error: VALIDATION_ERROR when the target region is out of range.
func GenerateContext(sug *edit.Suggestion, content string) (*edit.Context, error) {
	lines := strings.Split(content, "\n")
	if strings.HasSuffix(content, "\n") && len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}

	if sug.LineStart < 1 || sug.LineEnd > len(lines) {
		return nil, edit.NewError(edit.KindValidationError, map[string]any{
			"edit_id":    sug.ID,
			"line_start": sug.LineStart,
			"line_end":   sug.LineEnd,
			"file_lines": len(lines),
			"reason":     "target region out of range",
		})
	}

	ectx := &edit.Context{
		EditID:         sug.ID,
		AnalysisMethod: "pattern",
		ContentHash:    HashContent(content),
	}

	before := sug.LineStart - 1 - contextWindow
	if before < 0 {
		before = 0
	}
	ectx.LinesBefore = append(ectx.LinesBefore, lines[before:sug.LineStart-1]...)

	after := sug.LineEnd + contextWindow
	if after > len(lines) {
		after = len(lines)
	}
	ectx.LinesAfter = append(ectx.LinesAfter, lines[sug.LineEnd:after]...)

	// Nearest function declaration at or above the region.
	for i := sug.LineStart - 1; i >= 0; i-- {
		if m := functionRe.FindStringSubmatch(lines[i]); m != nil {
			for _, name := range m[1:] {
				if name != "" {
					ectx.Function = name
					break
				}
			}
			break
		}
	}

	for _, line := range lines {
		if m := moduleRe.FindStringSubmatch(line); m != nil && ectx.Module == "" {
			for _, name := range m[1:] {
				if name != "" {
					ectx.Module = name
					break
				}
			}
		}
		if importRe.MatchString(line) {
			ectx.Imports = append(ectx.Imports, strings.TrimSpace(line))
		}
	}

	return ectx, nil
}

// HashContent returns the hex sha256 of file content, the cache key
// component contexts are invalidated on.
func HashContent(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// cacheEntry pairs a derived context with the file it was derived from.
type cacheEntry struct {
	ctx  *edit.Context
	path string
}

// ContextCache caches derived contexts keyed by edit id and content hash.
//
// # Description
//
// A cached entry is served only when the caller's content hash matches
// the hash the context was derived from. Entries are additionally evicted
// when fsnotify reports a change to the underlying file, so a stale
// context is never served after an out-of-band file modification.
//
// # Thread Safety
//
// Safe for concurrent use.
type ContextCache struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewContextCache creates a cache with a running eviction watcher.
//
// Call Close to release the watcher.
func NewContextCache(logger *slog.Logger) (*ContextCache, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	c := &ContextCache{
		logger:  logger,
		entries: make(map[string]cacheEntry),
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go c.watch()
	return c, nil
}

// Get returns the cached context when the content hash still matches.
func (c *ContextCache) Get(editID, contentHash string) (*edit.Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[editID]
	if !ok || entry.ctx.ContentHash != contentHash {
		return nil, false
	}
	return entry.ctx, true
}

// Put caches a context and registers its file for eviction watching.
//
// absPath is the absolute path of the file the context was derived from;
// a watch failure (e.g. file deleted meanwhile) only disables eviction
// for that entry, the hash check still protects correctness.
func (c *ContextCache) Put(ectx *edit.Context, absPath string) {
	c.mu.Lock()
	c.entries[ectx.EditID] = cacheEntry{ctx: ectx, path: absPath}
	c.mu.Unlock()

	if err := c.watcher.Add(absPath); err != nil {
		c.logger.Debug("context cache watch failed", "path", absPath, "error", err)
	}
}

// Len returns the number of cached entries.
func (c *ContextCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the watcher and drops all entries.
func (c *ContextCache) Close() error {
	close(c.done)
	err := c.watcher.Close()

	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	return err
}

// watch evicts cached entries when their file changes on disk.
func (c *ContextCache) watch() {
	for {
		select {
		case <-c.done:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			c.evictPath(event.Name)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("context cache watcher error", "error", err)
		}
	}
}

// evictPath removes every entry derived from the given file.
func (c *ContextCache) evictPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, entry := range c.entries {
		if entry.path == path {
			delete(c.entries, id)
			c.logger.Debug("evicted cached context", "edit_id", id, "path", path)
		}
	}
}
