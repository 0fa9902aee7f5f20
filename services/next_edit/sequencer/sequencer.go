// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sequencer orders edit suggestions by their declared dependencies.
//
// # Description
//
// The sequencer is a pure, synchronous graph algorithm: it builds a
// dependency graph over a batch of suggestions, detects cycles with a DFS
// recursion stack, produces a dependency-respecting linear order with
// Kahn's algorithm, and partitions that order into coherent execution
// groups. Cycles are reported, not fatal - nodes on unresolved cycles are
// excluded from the ordering and callers must surface them to the reviewer.
//
// # Thread Safety
//
// All functions are pure and safe for concurrent use.
package sequencer

import (
	"fmt"
	"sort"
	"time"

	"github.com/AleutianAI/nextedit/services/next_edit/edit"
)

// Result is the outcome of one sequencing pass.
type Result struct {
	// OrderedIDs is a topological order over the batch. Suggestions on
	// unresolved cycles are excluded.
	OrderedIDs []string `json:"ordered_ids"`

	// Sequences partitions OrderedIDs into dependency-coherent groups.
	Sequences []edit.Sequence `json:"sequences"`

	// CircularDependencies lists each detected cycle as the path from the
	// first repeated node to the revisited node, inclusive.
	CircularDependencies [][]string `json:"circular_dependencies,omitempty"`
}

// SequenceCount returns the number of execution groups.
func (r *Result) SequenceCount() int {
	return len(r.Sequences)
}

// HasCycles reports whether any circular dependency was detected.
func (r *Result) HasCycles() bool {
	return len(r.CircularDependencies) > 0
}

// Sequence orders a batch of suggestions by their dependencies.
//
// # Description
//
// Validates the batch (unique ids, no dangling dependency references),
// reports cycles, and computes a deterministic topological order: the
// ready set is drained highest Priority first, ties broken by id. An empty
// batch yields an empty result with zero sequences - not an error.
//
// # Inputs
//
//   - edits: The suggestion batch. May be empty.
//
// # Outputs
//
//   - *Result: Ordering, grouping, and cycle report.
//   - error: VALIDATION_ERROR on duplicate ids or dangling dependencies.
func Sequence(edits []*edit.Suggestion) (*Result, error) {
	result := &Result{
		OrderedIDs: make([]string, 0, len(edits)),
		Sequences:  make([]edit.Sequence, 0),
	}
	if len(edits) == 0 {
		return result, nil
	}

	byID := make(map[string]*edit.Suggestion, len(edits))
	for _, e := range edits {
		if _, exists := byID[e.ID]; exists {
			return nil, edit.NewError(edit.KindValidationError, map[string]any{
				"edit_id": e.ID,
				"reason":  "duplicate suggestion id",
			})
		}
		byID[e.ID] = e
	}

	// Adjacency: id -> dependency ids. Dangling references are a
	// validation error, never silently dropped.
	deps := make(map[string][]string, len(edits))
	dependents := make(map[string][]string, len(edits))
	for _, e := range edits {
		for _, dep := range e.Dependencies {
			if _, exists := byID[dep]; !exists {
				return nil, edit.NewError(edit.KindValidationError, map[string]any{
					"edit_id":    e.ID,
					"dependency": dep,
					"reason":     "dependency references unknown suggestion",
				})
			}
			deps[e.ID] = append(deps[e.ID], dep)
			dependents[dep] = append(dependents[dep], e.ID)
		}
	}

	result.CircularDependencies = detectCycles(byID, deps)
	result.OrderedIDs = topologicalOrder(byID, deps, dependents)
	result.Sequences = groupSequences(result.OrderedIDs, deps)

	return result, nil
}

// detectCycles finds dependency cycles with a DFS recursion stack.
//
// Each edge into a node still on the recursion stack yields one reported
// cycle: the path slice from the first occurrence of the revisited node to
// the revisit, inclusive.
func detectCycles(byID map[string]*edit.Suggestion, deps map[string][]string) [][]string {
	visited := make(map[string]bool, len(byID))
	recStack := make(map[string]bool, len(byID))
	path := make([]string, 0, len(byID))
	var cycles [][]string

	var dfs func(node string)
	dfs = func(node string) {
		visited[node] = true
		recStack[node] = true
		path = append(path, node)

		for _, dep := range deps[node] {
			if !visited[dep] {
				dfs(dep)
			} else if recStack[dep] {
				start := 0
				for i, n := range path {
					if n == dep {
						start = i
						break
					}
				}
				cycle := make([]string, 0, len(path)-start+1)
				cycle = append(cycle, path[start:]...)
				cycle = append(cycle, dep)
				cycles = append(cycles, cycle)
			}
		}

		path = path[:len(path)-1]
		recStack[node] = false
	}

	for _, id := range sortedIDs(byID) {
		if !visited[id] {
			dfs(id)
		}
	}

	return cycles
}

// topologicalOrder runs Kahn's algorithm over the dependency edges.
//
// An edge dependency -> node increases the node's in-degree. The ready set
// is drained deterministically: highest Priority first, then id ascending.
// Nodes on unresolved cycles never reach in-degree zero and are excluded.
func topologicalOrder(
	byID map[string]*edit.Suggestion,
	deps map[string][]string,
	dependents map[string][]string,
) []string {
	inDegree := make(map[string]int, len(byID))
	for id := range byID {
		inDegree[id] = len(deps[id])
	}

	ready := make([]string, 0, len(byID))
	for _, id := range sortedIDs(byID) {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	less := func(a, b string) bool {
		if byID[a].Priority != byID[b].Priority {
			return byID[a].Priority > byID[b].Priority
		}
		return a < b
	}
	sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })

	ordered := make([]string, 0, len(byID))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, id)

		for _, dependent := range dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
	}

	return ordered
}

// groupSequences partitions an ordering into dependency-coherent tiers.
//
// A new sequence starts whenever the current edit's dependencies are not a
// subset of ids already placed in earlier sequences - members of one
// sequence only depend on prior sequences, so each group can be presented
// or executed as a unit.
func groupSequences(orderedIDs []string, deps map[string][]string) []edit.Sequence {
	sequences := make([]edit.Sequence, 0)
	if len(orderedIDs) == 0 {
		return sequences
	}

	placed := make(map[string]bool, len(orderedIDs))
	current := edit.Sequence{Name: "sequence-1"}

	flush := func() {
		if len(current.EditIDs) == 0 {
			return
		}
		current.EstimatedDuration = time.Duration(len(current.EditIDs)) * edit.EstimatePerEdit
		sequences = append(sequences, current)
		for _, id := range current.EditIDs {
			placed[id] = true
		}
		next := edit.Sequence{Name: fmt.Sprintf("sequence-%d", len(sequences)+1)}
		next.DependsOn = []string{current.Name}
		current = next
	}

	for _, id := range orderedIDs {
		satisfied := true
		for _, dep := range deps[id] {
			if !placed[dep] {
				satisfied = false
				break
			}
		}
		if !satisfied {
			flush()
		}
		current.EditIDs = append(current.EditIDs, id)
	}
	flush()

	return sequences
}

// ValidateDependenciesMet reports whether every dependency of the edit is
// present in the completed set.
//
// Used by the session manager before serving or applying an edit out of
// band.
func ValidateDependenciesMet(e *edit.Suggestion, completedIDs map[string]bool) bool {
	for _, dep := range e.Dependencies {
		if !completedIDs[dep] {
			return false
		}
	}
	return true
}

// sortedIDs returns the map keys in ascending order for determinism.
func sortedIDs(byID map[string]*edit.Suggestion) []string {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
