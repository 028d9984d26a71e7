package dag

import (
	"testing"
	"time"

	"github.com/cuemby/aegis/internal/types"
)

func taskAt(id string, offset time.Duration, deps ...string) *types.Task {
	return &types.Task{
		ID:           id,
		Status:       types.TaskPending,
		Priority:     types.PriorityMedium,
		Dependencies: deps,
		CreatedAt:    time.Unix(0, 0).Add(offset),
	}
}

func TestBuildRejectsDuplicateID(t *testing.T) {
	tasks := []*types.Task{taskAt("a", 0), taskAt("a", time.Second)}
	if _, err := Build(tasks); err == nil {
		t.Fatal("expected error for duplicate task id")
	}
}

func TestBuildRejectsUnknownDependency(t *testing.T) {
	tasks := []*types.Task{taskAt("a", 0, "ghost")}
	if _, err := Build(tasks); err == nil {
		t.Fatal("expected error for dependency on unknown task")
	}
}

func TestBuildAcceptsValidGraph(t *testing.T) {
	tasks := []*types.Task{taskAt("a", 0), taskAt("b", time.Second, "a")}
	g, err := Build(tasks)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if g == nil {
		t.Fatal("expected non-nil graph")
	}
}

func TestHasCycleDetectsDirectCycle(t *testing.T) {
	tasks := []*types.Task{
		taskAt("a", 0, "b"),
		taskAt("b", time.Second, "a"),
	}
	if !HasCycle(tasks) {
		t.Error("expected cycle to be detected")
	}
}

func TestHasCycleDetectsIndirectCycle(t *testing.T) {
	tasks := []*types.Task{
		taskAt("a", 0, "c"),
		taskAt("b", time.Second, "a"),
		taskAt("c", 2*time.Second, "b"),
	}
	if !HasCycle(tasks) {
		t.Error("expected indirect cycle to be detected")
	}
}

func TestHasCycleAcceptsDAG(t *testing.T) {
	tasks := []*types.Task{
		taskAt("a", 0),
		taskAt("b", time.Second, "a"),
		taskAt("c", 2*time.Second, "a", "b"),
	}
	if HasCycle(tasks) {
		t.Error("expected no cycle in valid DAG")
	}
}

func TestReadySetExcludesTasksWithUnmetDependencies(t *testing.T) {
	a := taskAt("a", 0)
	b := taskAt("b", time.Second, "a")
	tasks := []*types.Task{a, b}

	ready := ReadySet(tasks)
	if len(ready) != 1 || ready[0].ID != "a" {
		t.Fatalf("expected only task a ready, got %v", ready)
	}
}

func TestReadySetIncludesTaskOnceDependencyCompletes(t *testing.T) {
	a := taskAt("a", 0)
	a.Status = types.TaskCompleted
	b := taskAt("b", time.Second, "a")
	tasks := []*types.Task{a, b}

	ready := ReadySet(tasks)
	if len(ready) != 1 || ready[0].ID != "b" {
		t.Fatalf("expected only task b ready, got %v", ready)
	}
}

func TestReadySetExcludesNonPendingTasks(t *testing.T) {
	a := taskAt("a", 0)
	a.Status = types.TaskInProgress

	ready := ReadySet([]*types.Task{a})
	if len(ready) != 0 {
		t.Fatalf("expected no ready tasks, got %v", ready)
	}
}

func TestReadySetOrdersByPriorityThenFIFO(t *testing.T) {
	low := taskAt("low", 0)
	low.Priority = types.PriorityLow
	critical := taskAt("critical", time.Second)
	critical.Priority = types.PriorityCritical
	medium1 := taskAt("medium1", 2*time.Second)
	medium1.Priority = types.PriorityMedium
	medium2 := taskAt("medium2", 3*time.Second)
	medium2.Priority = types.PriorityMedium

	ready := ReadySet([]*types.Task{low, critical, medium1, medium2})

	want := []string{"critical", "medium1", "medium2", "low"}
	if len(ready) != len(want) {
		t.Fatalf("expected %d ready tasks, got %d", len(want), len(ready))
	}
	for i, id := range want {
		if ready[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, ready[i].ID)
		}
	}
}
