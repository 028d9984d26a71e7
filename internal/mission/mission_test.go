package mission

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/aegis/internal/events"
	"github.com/cuemby/aegis/internal/slot"
	"github.com/cuemby/aegis/internal/swarm"
	"github.com/cuemby/aegis/internal/types"
	"github.com/cuemby/aegis/internal/workspace"
)

func fastStrategy(*types.Task) slot.ExecutionStrategy {
	return slot.NewSimulatedStrategy("task", 10*time.Millisecond)
}

func newTestRegistry(t *testing.T) (*Registry, *events.Bus) {
	reg, bus, _ := newTestRegistryWithWorkspace(t)
	return reg, bus
}

func newTestRegistryWithWorkspace(t *testing.T) (*Registry, *events.Bus, *workspace.Store) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "workspaces")
	tmp := filepath.Join(t.TempDir(), "tmp")
	ws := workspace.New(root, tmp, 10*1024*1024, time.Hour, time.Hour)
	if err := ws.Start(); err != nil {
		t.Fatalf("workspace.Start() error = %v", err)
	}
	t.Cleanup(ws.Stop)

	bus := events.NewBus(nil)
	sw := swarm.New(4, time.Minute, time.Hour, bus, fastStrategy)
	sw.Start()
	t.Cleanup(sw.Stop)

	reg := NewRegistry(sw, ws, bus)
	reg.Start()
	t.Cleanup(reg.Stop)

	return reg, bus, ws
}

func sampleBrief() types.MissionBrief {
	return types.MissionBrief{
		Title: "build a widget",
		Tasks: []types.UserTask{
			{ID: "t1", Title: "write the widget"},
			{ID: "t2", Title: "write the widget docs", Dependencies: []string{"t1"}},
		},
	}
}

func waitForStatus(t *testing.T, reg *Registry, missionID string, want types.MissionStatus, timeout time.Duration) types.MissionState {
	t.Helper()
	deadline := time.After(timeout)
	for {
		state, err := reg.GetMission(missionID)
		if err != nil {
			t.Fatalf("GetMission() error = %v", err)
		}
		if state.Status == want {
			return state
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for status %s, last seen %s", want, state.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestInitializeMissionRejectsInvalidBrief(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.InitializeMission(types.MissionBrief{}, false)
	if err == nil {
		t.Fatal("expected InvalidBrief error for empty brief")
	}
}

func TestInitializeMissionRejectsCycle(t *testing.T) {
	reg, _ := newTestRegistry(t)

	brief := types.MissionBrief{
		Title: "cyclic",
		Tasks: []types.UserTask{
			{ID: "a", Title: "a", Dependencies: []string{"b"}},
			{ID: "b", Title: "b", Dependencies: []string{"a"}},
		},
	}
	_, err := reg.InitializeMission(brief, false)
	if err == nil {
		t.Fatal("expected InvalidBrief error for cyclic dependency graph")
	}
}

func TestMissionRunsToCompletion(t *testing.T) {
	reg, _ := newTestRegistry(t)

	result, err := reg.InitializeMission(sampleBrief(), false)
	if err != nil {
		t.Fatalf("InitializeMission() error = %v", err)
	}
	if result.TotalTasks != 5 { // scaffold + 2 implement + review + document
		t.Errorf("expected 5 decomposed tasks, got %d", result.TotalTasks)
	}

	state := waitForStatus(t, reg, result.MissionID, types.MissionCompleted, 5*time.Second)
	if state.Progress != 100 {
		t.Errorf("expected progress 100 at completion, got %d", state.Progress)
	}
	if len(state.Buckets.Failed) != 0 {
		t.Errorf("expected no failed tasks, got %v", state.Buckets.Failed)
	}
}

func TestDryRunDoesNotSchedule(t *testing.T) {
	reg, _ := newTestRegistry(t)

	result, err := reg.InitializeMission(sampleBrief(), true)
	if err != nil {
		t.Fatalf("InitializeMission() error = %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	state, err := reg.GetMission(result.MissionID)
	if err != nil {
		t.Fatalf("GetMission() error = %v", err)
	}
	if state.Status != types.MissionPending {
		t.Errorf("expected dry-run mission to stay Pending, got %s", state.Status)
	}
}

func TestDryRunDoesNotCreateWorkspace(t *testing.T) {
	reg, _, ws := newTestRegistryWithWorkspace(t)

	result, err := reg.InitializeMission(sampleBrief(), true)
	if err != nil {
		t.Fatalf("InitializeMission() error = %v", err)
	}

	state, err := reg.GetMission(result.MissionID)
	if err != nil {
		t.Fatalf("GetMission() error = %v", err)
	}
	if state.WorkspacePath != "" {
		t.Errorf("expected no workspace path for a dry-run mission, got %q", state.WorkspacePath)
	}
	if _, ok := ws.Get(result.MissionID); ok {
		t.Error("expected no workspace record to exist for a dry-run mission")
	}
}

func TestCancelMission(t *testing.T) {
	reg, _ := newTestRegistry(t)

	result, err := reg.InitializeMission(sampleBrief(), false)
	if err != nil {
		t.Fatalf("InitializeMission() error = %v", err)
	}

	if err := reg.CancelMission(result.MissionID, "operator requested stop"); err != nil {
		t.Fatalf("CancelMission() error = %v", err)
	}

	state, err := reg.GetMission(result.MissionID)
	if err != nil {
		t.Fatalf("GetMission() error = %v", err)
	}
	if state.Status != types.MissionCancelled {
		t.Errorf("expected Cancelled, got %s", state.Status)
	}
}

func TestCancelMissionTwiceFails(t *testing.T) {
	reg, _ := newTestRegistry(t)

	result, err := reg.InitializeMission(sampleBrief(), false)
	if err != nil {
		t.Fatalf("InitializeMission() error = %v", err)
	}
	if err := reg.CancelMission(result.MissionID, "first"); err != nil {
		t.Fatalf("CancelMission() error = %v", err)
	}
	if err := reg.CancelMission(result.MissionID, "second"); err == nil {
		t.Fatal("expected AlreadyCancelled error on second cancel")
	}
}

func TestCancelDryRunMissionDoesNotBlock(t *testing.T) {
	reg, _ := newTestRegistry(t)

	result, err := reg.InitializeMission(sampleBrief(), true)
	if err != nil {
		t.Fatalf("InitializeMission() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- reg.CancelMission(result.MissionID, "never started") }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("CancelMission() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("CancelMission() on a never-started dry-run mission deadlocked")
	}

	state, err := reg.GetMission(result.MissionID)
	if err != nil {
		t.Fatalf("GetMission() error = %v", err)
	}
	if state.Status != types.MissionCancelled {
		t.Errorf("expected Cancelled, got %s", state.Status)
	}
}

func TestGetMissionUnknown(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if _, err := reg.GetMission("ghost"); err == nil {
		t.Fatal("expected NotFound error for unknown mission")
	}
}

func TestListMissions(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if _, err := reg.InitializeMission(sampleBrief(), true); err != nil {
		t.Fatalf("InitializeMission() error = %v", err)
	}
	if _, err := reg.InitializeMission(sampleBrief(), true); err != nil {
		t.Fatalf("InitializeMission() error = %v", err)
	}

	if got := len(reg.ListMissions()); got != 2 {
		t.Errorf("expected 2 missions, got %d", got)
	}
}
