// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analyzer discovers edit suggestions in a workspace.
//
// # Description
//
// The analyzer is the producer side of the review loop: given a workspace
// root and a goal, it proposes a batch of suggestions with dependency
// edges. The engine treats the analyzer as a black box behind the Analyzer
// interface; PatternAnalyzer is the built-in implementation that scans for
// marker comments (TODO, FIXME, XXX, DEPRECATED) and proposes their
// cleanup.
//
// Suggestions within one file are chained bottom-up: the edit lowest in
// the file carries no dependency and each edit above it depends on the one
// below, so applying in dependency order never invalidates the stored line
// numbers of a pending suggestion.
package analyzer

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/nextedit/services/next_edit/edit"
)

// Options controls one analysis pass.
type Options struct {
	// IncludePatterns are doublestar globs selecting candidate files.
	// Empty means every file.
	IncludePatterns []string `json:"include_patterns,omitempty"`

	// ExcludePatterns are doublestar globs removing candidates.
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`

	// MaxFiles caps the number of scanned files. Zero means no cap.
	MaxFiles int `json:"max_files,omitempty"`

	// UsePatternMatching enables marker comment scanning.
	UsePatternMatching bool `json:"use_pattern_matching"`

	// UseSemanticAnalysis enables goal-relevance scoring of findings.
	UseSemanticAnalysis bool `json:"use_semantic_analysis"`
}

// DefaultOptions enables pattern matching with semantic scoring.
func DefaultOptions() Options {
	return Options{
		UsePatternMatching:  true,
		UseSemanticAnalysis: true,
	}
}

// Analyzer proposes edits for a workspace.
//
// Implementations must return suggestions whose Dependencies reference
// only ids within the same batch.
type Analyzer interface {
	// AnalyzeCodebase scans the workspace and proposes suggestions.
	//
	// An empty result is a valid outcome; a failure to scan at all is
	// an ANALYSIS_FAILED error.
	AnalyzeCodebase(ctx context.Context, workspaceRoot, goal string, opts Options) ([]*edit.Suggestion, error)
}

// marker is one recognized maintenance comment pattern.
type marker struct {
	token      string
	category   string
	confidence float64
}

// markers are scanned in order; the first match on a line wins.
var markers = []marker{
	{"FIXME", "fixme", 0.9},
	{"TODO", "todo", 0.8},
	{"XXX", "xxx", 0.7},
	{"DEPRECATED", "deprecation", 0.85},
}

// skipDirs are never descended into during the workspace walk.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".idea":        true,
	"__pycache__":  true,
}

// maxScanConcurrency bounds parallel file scans.
const maxScanConcurrency = 8

// PatternAnalyzer scans files for marker comments.
//
// # Thread Safety
//
// Safe for concurrent use.
type PatternAnalyzer struct {
	logger *slog.Logger
}

// NewPatternAnalyzer creates the built-in pattern analyzer.
func NewPatternAnalyzer(logger *slog.Logger) *PatternAnalyzer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &PatternAnalyzer{logger: logger}
}

// AnalyzeCodebase walks the workspace and proposes marker cleanups.
//
// # Description
//
// Walks the tree under workspaceRoot (skipping VCS and dependency
// directories), filters candidates through the include/exclude globs,
// then scans files concurrently. Each marker line yields one suggestion
// proposing removal of the line; suggestions in the same file are chained
// bottom-up so dependency order preserves line numbers.
//
// # Outputs
//
//   - []*edit.Suggestion: Proposed edits, grouped by file, deepest line
//     first within each file. May be empty.
//   - error: ANALYSIS_FAILED when the workspace cannot be walked.
func (a *PatternAnalyzer) AnalyzeCodebase(ctx context.Context, workspaceRoot, goal string, opts Options) ([]*edit.Suggestion, error) {
	if !opts.UsePatternMatching {
		return nil, nil
	}

	files, err := a.collectFiles(workspaceRoot, opts)
	if err != nil {
		return nil, edit.WrapError(edit.KindAnalysisFailed, err, map[string]any{
			"workspace": workspaceRoot,
		})
	}

	var mu sync.Mutex
	perFile := make(map[string][]*edit.Suggestion, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxScanConcurrency)
	for _, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found, err := a.scanFile(workspaceRoot, rel, goal, opts)
			if err != nil {
				// Unreadable files are skipped, not fatal for the pass.
				a.logger.Warn("skipping unreadable file", "file", rel, "error", err)
				return nil
			}
			if len(found) > 0 {
				mu.Lock()
				perFile[rel] = found
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, edit.WrapError(edit.KindAnalysisFailed, err, map[string]any{
			"workspace": workspaceRoot,
		})
	}

	paths := make([]string, 0, len(perFile))
	for p := range perFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var suggestions []*edit.Suggestion
	for _, p := range paths {
		suggestions = append(suggestions, chainFileSuggestions(perFile[p])...)
	}

	a.logger.Info("analysis complete",
		"workspace", workspaceRoot, "files_scanned", len(files), "suggestions", len(suggestions))
	return suggestions, nil
}

// collectFiles walks the workspace and applies the glob filters.
func (a *PatternAnalyzer) collectFiles(root string, opts Options) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if opts.MaxFiles > 0 && len(files) >= opts.MaxFiles {
			return filepath.SkipAll
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if !matchesGlobs(rel, opts.IncludePatterns, true) {
			return nil
		}
		if matchesGlobs(rel, opts.ExcludePatterns, false) {
			return nil
		}

		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk workspace %s: %w", root, err)
	}
	return files, nil
}

// matchesGlobs reports whether path matches any pattern. An empty pattern
// list returns emptyDefault.
func matchesGlobs(path string, patterns []string, emptyDefault bool) bool {
	if len(patterns) == 0 {
		return emptyDefault
	}
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

// scanFile reads one file and emits a suggestion per marker line,
// deepest line first.
func (a *PatternAnalyzer) scanFile(root, rel, goal string, opts Options) ([]*edit.Suggestion, error) {
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var found []*edit.Suggestion
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		m, ok := matchMarker(line)
		if !ok {
			continue
		}

		confidence := m.confidence
		if opts.UseSemanticAnalysis {
			confidence = adjustForGoal(confidence, line, goal)
		}

		found = append(found, &edit.Suggestion{
			ID:               uuid.NewString(),
			FilePath:         rel,
			LineStart:        lineNo,
			LineEnd:          lineNo,
			OriginalContent:  line,
			SuggestedContent: "",
			Rationale:        fmt.Sprintf("%s marker at %s:%d should be resolved and removed", m.token, rel, lineNo),
			Confidence:       confidence,
			Status:           edit.StatusPending,
			Category:         m.category,
			Priority:         int(m.confidence * 10),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// Deepest line first, so the in-file dependency chain applies
	// bottom-up.
	sort.Slice(found, func(i, j int) bool {
		return found[i].LineStart > found[j].LineStart
	})
	return found, nil
}

// matchMarker returns the first marker token present on the line.
func matchMarker(line string) (marker, bool) {
	upper := strings.ToUpper(line)
	for _, m := range markers {
		if strings.Contains(upper, m.token) {
			return m, true
		}
	}
	return marker{}, false
}

// adjustForGoal nudges confidence up when the line shares words with the
// reviewer's goal, and caps the result at 1.
func adjustForGoal(confidence float64, line, goal string) float64 {
	lower := strings.ToLower(line)
	for _, word := range strings.Fields(strings.ToLower(goal)) {
		if len(word) < 4 {
			continue
		}
		if strings.Contains(lower, word) {
			confidence += 0.05
		}
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// chainFileSuggestions links same-file suggestions bottom-up: the edit
// deepest in the file is the root, each edit above depends on the one
// below it.
func chainFileSuggestions(sugs []*edit.Suggestion) []*edit.Suggestion {
	for i := 1; i < len(sugs); i++ {
		below := sugs[i-1]
		sugs[i].Dependencies = []string{below.ID}
		below.Dependents = append(below.Dependents, sugs[i].ID)
	}
	return sugs
}
