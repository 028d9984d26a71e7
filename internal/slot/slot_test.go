package slot

import (
	"sync"
	"testing"
	"time"

	"github.com/cuemby/aegis/internal/types"
)

func fastStrategy(taskID string) func(*types.Task) ExecutionStrategy {
	return func(*types.Task) ExecutionStrategy {
		return NewSimulatedStrategy(taskID, 20*time.Millisecond)
	}
}

func TestAssignTaskRunsToCompletion(t *testing.T) {
	s := New("slot-0", 0, time.Minute, fastStrategy("task-1"))
	task := &types.Task{ID: "task-1"}

	var mu sync.Mutex
	var progresses []int
	started := false
	completed := false

	done := make(chan struct{})
	ev := Events{
		OnStarted: func() { started = true },
		OnProgress: func(p int) {
			mu.Lock()
			progresses = append(progresses, p)
			mu.Unlock()
		},
		OnComplete: func() { completed = true; close(done) },
		OnFailed:   func(reason string) { t.Errorf("unexpected failure: %s", reason); close(done) },
	}

	if err := s.AssignTask("agent-1", task, t.TempDir(), ev); err != nil {
		t.Fatalf("AssignTask() error = %v", err)
	}
	if !started {
		t.Error("expected OnStarted to fire synchronously before background run")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
	}

	if !completed {
		t.Error("expected task to complete")
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(progresses); i++ {
		if progresses[i] < progresses[i-1] {
			t.Errorf("progress went backwards: %v", progresses)
		}
	}
	if len(progresses) == 0 || progresses[len(progresses)-1] != 100 {
		t.Errorf("expected final progress of 100, got %v", progresses)
	}

	if s.Status() != types.SlotAvailable {
		t.Errorf("expected slot to return to Available, got %s", s.Status())
	}
	metrics := s.Metrics()
	if metrics.TasksCompleted != 1 {
		t.Errorf("expected 1 completed task in metrics, got %d", metrics.TasksCompleted)
	}
}

func TestAssignTaskWhenBusyFails(t *testing.T) {
	s := New("slot-0", 0, time.Minute, fastStrategy("task-1"))
	task := &types.Task{ID: "task-1"}

	done := make(chan struct{})
	ev := Events{OnComplete: func() { close(done) }, OnFailed: func(string) { close(done) }}

	if err := s.AssignTask("agent-1", task, t.TempDir(), ev); err != nil {
		t.Fatalf("AssignTask() error = %v", err)
	}

	err := s.AssignTask("agent-2", &types.Task{ID: "task-2"}, t.TempDir(), Events{})
	if err == nil {
		t.Fatal("expected SlotBusy error for second assignment")
	}

	<-done
}

func TestTerminateEmitsTerminalFailure(t *testing.T) {
	s := New("slot-0", 0, time.Minute, func(*types.Task) ExecutionStrategy {
		return NewSimulatedStrategy("task-1", time.Hour)
	})
	task := &types.Task{ID: "task-1"}

	failed := make(chan string, 1)
	ev := Events{
		OnFailed:   func(reason string) { failed <- reason },
		OnComplete: func() { t.Error("did not expect completion after terminate") },
	}

	if err := s.AssignTask("agent-1", task, t.TempDir(), ev); err != nil {
		t.Fatalf("AssignTask() error = %v", err)
	}

	s.Terminate("operator requested stop", ev)

	select {
	case reason := <-failed:
		if reason != "operator requested stop" {
			t.Errorf("expected terminate reason, got %q", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for terminal failure")
	}

	if s.Status() != types.SlotAvailable {
		t.Errorf("expected slot to return to Available after terminate, got %s", s.Status())
	}
}

func TestCheckHealthUnhealthyPastCeiling(t *testing.T) {
	s := New("slot-0", 0, 10*time.Millisecond, func(*types.Task) ExecutionStrategy {
		return NewSimulatedStrategy("task-1", time.Hour)
	})
	task := &types.Task{ID: "task-1"}

	if err := s.AssignTask("agent-1", task, t.TempDir(), Events{}); err != nil {
		t.Fatalf("AssignTask() error = %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := s.CheckHealth(); got != types.SlotUnhealthy {
		t.Errorf("expected Unhealthy past ceiling, got %s", got)
	}

	s.Terminate("health check failed", Events{})
}

func TestCheckHealthAvailableSlot(t *testing.T) {
	s := New("slot-0", 0, time.Minute, fastStrategy("task-1"))
	if got := s.CheckHealth(); got != types.SlotAvailable {
		t.Errorf("expected Available for idle slot, got %s", got)
	}
}
