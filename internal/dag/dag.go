// Package dag provides dependency-graph operations over a mission's
// decomposed task set: cycle detection at submission time and ready-set
// computation on every scheduling tick.
package dag

import (
	"fmt"
	"sort"

	"github.com/cuemby/aegis/internal/types"
)

// Graph is a lightweight view over a mission's tasks keyed by id, used for
// cycle detection and ready-set queries. It does not own the tasks; callers
// pass the current task slice in on every call, since task status mutates
// as the mission runs.
type Graph struct {
	byID map[string]*types.Task
}

// Build indexes a task slice by id. Returns an error if two tasks share an
// id or a dependency references an id not present in the set.
func Build(tasks []*types.Task) (*Graph, error) {
	byID := make(map[string]*types.Task, len(tasks))
	for _, t := range tasks {
		if _, dup := byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate task id %q", t.ID)
		}
		byID[t.ID] = t
	}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("task %q depends on unknown task %q", t.ID, dep)
			}
		}
	}
	return &Graph{byID: byID}, nil
}

// color marks DFS visitation state for cycle detection.
type color int

const (
	white color = iota // unvisited
	gray               // on the current DFS stack
	black              // fully processed
)

// HasCycle reports whether the dependency graph contains a cycle, using
// recursive DFS with a three-color visited map.
func HasCycle(tasks []*types.Task) bool {
	byID := make(map[string]*types.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	colors := make(map[string]color, len(tasks))

	var visit func(id string) bool
	visit = func(id string) bool {
		switch colors[id] {
		case gray:
			return true // back edge: cycle
		case black:
			return false
		}
		colors[id] = gray
		t := byID[id]
		if t != nil {
			for _, dep := range t.Dependencies {
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = black
		return false
	}

	for _, t := range tasks {
		if colors[t.ID] == white {
			if visit(t.ID) {
				return true
			}
		}
	}
	return false
}

// ReadySet returns the subset of pending tasks whose dependencies are all
// Completed, sorted by priority (Critical first) and, within a priority
// tier, by original creation order (FIFO tie-break) — spec §4.4 step 2.
func ReadySet(tasks []*types.Task) []*types.Task {
	statusOf := make(map[string]types.TaskStatus, len(tasks))
	for _, t := range tasks {
		statusOf[t.ID] = t.Status
	}

	var ready []*types.Task
	for _, t := range tasks {
		if t.Status == types.TaskPending && t.DependenciesMet(statusOf) {
			ready = append(ready, t)
		}
	}

	sort.SliceStable(ready, func(i, j int) bool {
		pi, pj := ready[i].Priority.Rank(), ready[j].Priority.Rank()
		if pi != pj {
			return pi < pj
		}
		return ready[i].CreatedAt.Before(ready[j].CreatedAt)
	})
	return ready
}
