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
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/nextedit/services/next_edit/edit"
)

// diffContextLines is the number of unchanged lines kept around each
// change in a hunk, matching git's default.
const diffContextLines = 3

// GenerateGitDiff renders a git-style unified diff between two versions
// of a file.
//
// # Description
//
// Computes a line-level LCS diff, groups changes into hunks with three
// context lines, and renders through the go-diff printer with a/ and b/
// path prefixes. Identical content yields an empty string.
//
// # Inputs
//
//   - path: File path, relative to the workspace root.
//   - before: Original content.
//   - after: Modified content.
//
// # Outputs
//
//   - string: The rendered diff, or "" when the contents are identical.
//   - error: GIT_ERROR when rendering fails.
func GenerateGitDiff(path, before, after string) (string, error) {
	return renderDiff("a/"+path, "b/"+path, before, after)
}

// GenerateDiff renders a unified diff without git path prefixes.
func GenerateDiff(path, before, after string) (string, error) {
	return renderDiff(path, path, before, after)
}

func renderDiff(origName, newName, before, after string) (string, error) {
	if before == after {
		return "", nil
	}

	hunks := buildHunks(splitLines(before), splitLines(after))
	if len(hunks) == 0 {
		return "", nil
	}

	fd := &diff.FileDiff{
		OrigName: origName,
		NewName:  newName,
		Hunks:    hunks,
	}

	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return "", edit.WrapError(edit.KindGitError, err, map[string]any{
			"file": newName,
		})
	}
	return string(out), nil
}

// lineOp is one line of a computed diff: ' ' context, '-' deletion,
// '+' insertion.
type lineOp struct {
	kind byte
	text string
}

// buildHunks groups diff operations into hunks with context.
func buildHunks(before, after []string) []*diff.Hunk {
	ops := diffOps(before, after)

	changed := false
	for _, op := range ops {
		if op.kind != ' ' {
			changed = true
			break
		}
	}
	if !changed {
		return nil
	}

	var hunks []*diff.Hunk
	i := 0
	for i < len(ops) {
		if ops[i].kind == ' ' {
			i++
			continue
		}

		// Expand the hunk backward for leading context and forward until
		// the next change is more than 2*context lines away.
		start := i - diffContextLines
		if start < 0 {
			start = 0
		}
		end := i
		lastChange := i
		for end < len(ops) {
			if ops[end].kind != ' ' {
				lastChange = end
			} else if end-lastChange > 2*diffContextLines {
				break
			}
			end++
		}
		stop := lastChange + diffContextLines + 1
		if stop > len(ops) {
			stop = len(ops)
		}

		hunks = append(hunks, makeHunk(ops, start, stop))
		i = stop
	}

	return hunks
}

// makeHunk renders ops[start:stop] into a go-diff hunk. Line numbers are
// recovered by counting orig/new lines consumed before start.
func makeHunk(ops []lineOp, start, stop int) *diff.Hunk {
	origBefore, newBefore := 0, 0
	for _, op := range ops[:start] {
		switch op.kind {
		case ' ':
			origBefore++
			newBefore++
		case '-':
			origBefore++
		case '+':
			newBefore++
		}
	}

	var body strings.Builder
	origLines, newLines := 0, 0
	for _, op := range ops[start:stop] {
		body.WriteByte(op.kind)
		body.WriteString(op.text)
		body.WriteByte('\n')
		switch op.kind {
		case ' ':
			origLines++
			newLines++
		case '-':
			origLines++
		case '+':
			newLines++
		}
	}

	origStart := int32(origBefore + 1)
	if origLines == 0 {
		origStart = int32(origBefore)
	}
	newStart := int32(newBefore + 1)
	if newLines == 0 {
		newStart = int32(newBefore)
	}

	return &diff.Hunk{
		OrigStartLine: origStart,
		OrigLines:     int32(origLines),
		NewStartLine:  newStart,
		NewLines:      int32(newLines),
		Body:          []byte(strings.TrimSuffix(body.String(), "\n")),
	}
}

// diffOps computes a line-level diff via longest common subsequence.
func diffOps(before, after []string) []lineOp {
	n, m := len(before), len(after)

	// lcs[i][j] = length of the LCS of before[i:] and after[j:].
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if before[i] == after[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	ops := make([]lineOp, 0, n+m)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case before[i] == after[j]:
			ops = append(ops, lineOp{' ', before[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			ops = append(ops, lineOp{'-', before[i]})
			i++
		default:
			ops = append(ops, lineOp{'+', after[j]})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, lineOp{'-', before[i]})
	}
	for ; j < m; j++ {
		ops = append(ops, lineOp{'+', after[j]})
	}

	return ops
}

// splitLines splits content into lines without a phantom trailing entry.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if strings.HasSuffix(content, "\n") {
		lines = lines[:len(lines)-1]
	}
	return lines
}
