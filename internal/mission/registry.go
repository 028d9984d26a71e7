package mission

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cuemby/aegis/internal/apierr"
	"github.com/cuemby/aegis/internal/dag"
	"github.com/cuemby/aegis/internal/events"
	"github.com/cuemby/aegis/internal/types"
)

// InitResult is the response shape for initializeMission (spec §6).
type InitResult struct {
	MissionID           string
	Channel             string
	EstimatedDurationMs int64
	TotalTasks          int
}

// estimatedMsPerTask is a rough per-task duration estimate used only for the
// initializeMission response; it does not affect scheduling.
const estimatedMsPerTask = 30_000

// Registry owns every live mission and dispatches swarm task-completion/
// failure events to the right mission (spec §4.4).
type Registry struct {
	mu       sync.RWMutex
	missions map[string]*Mission

	swarm     SwarmHandle
	workspace WorkspaceHandle
	bus       *events.Bus

	sub    *events.Subscription
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewRegistry creates a mission registry wired to the given Swarm,
// Workspace Store, and event Bus.
func NewRegistry(swarm SwarmHandle, ws WorkspaceHandle, bus *events.Bus) *Registry {
	return &Registry{
		missions:  make(map[string]*Mission),
		swarm:     swarm,
		workspace: ws,
		bus:       bus,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start subscribes to the global event stream and launches the dispatch
// loop that routes agent:task_completed/agent:task_failed events back to
// their owning mission.
func (r *Registry) Start() {
	r.sub = r.bus.Subscribe(events.GlobalTarget, []events.Type{events.AgentTaskCompleted, events.AgentTaskFailed})
	go r.dispatchLoop()
}

// Stop unsubscribes and waits for the dispatch loop to exit.
func (r *Registry) Stop() {
	close(r.stopCh)
	<-r.doneCh
	r.bus.Unsubscribe(r.sub)
}

func (r *Registry) dispatchLoop() {
	defer close(r.doneCh)
	for {
		select {
		case <-r.stopCh:
			return
		case evt, ok := <-r.sub.Ch:
			if !ok {
				return
			}
			r.route(evt)
		}
	}
}

func (r *Registry) route(evt events.Event) {
	r.mu.RLock()
	m, ok := r.missions[evt.MissionID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	switch p := evt.Payload.(type) {
	case events.AgentTaskCompletedPayload:
		m.OnTaskCompleted(p.TaskID)
	case events.AgentTaskFailedPayload:
		m.OnTaskFailed(p.TaskID, p.Reason)
	}
}

// InitializeMission validates, decomposes, and schedules a new mission
// (spec §4.4 Decomposition / §6 initializeMission). Unless dryRun is set,
// the mission's scheduling loop begins running asynchronously before this
// call returns.
func (r *Registry) InitializeMission(brief types.MissionBrief, dryRun bool) (InitResult, error) {
	if err := ValidateBrief(brief); err != nil {
		return InitResult{}, err
	}
	if CyclicDependencies(brief) {
		return InitResult{}, errInvalidBrief("cyclic task dependency graph")
	}

	tasks := Decompose(brief)
	if _, err := dag.Build(tasks); err != nil {
		return InitResult{}, errInvalidBrief(err.Error())
	}

	missionID := brief.ID
	if missionID == "" {
		missionID = uuid.NewString()
	}

	r.mu.Lock()
	if _, exists := r.missions[missionID]; exists {
		r.mu.Unlock()
		return InitResult{}, errAlreadyExists(missionID)
	}
	r.mu.Unlock()

	// dryRun performs validation and decomposition only: no workspace is
	// created and the scheduling loop is never started (spec §6
	// initializeMission). The mission is still registered below, so it can
	// be fetched, listed and cancelled.
	var workspacePath string
	if !dryRun {
		wp, err := r.workspace.CreateWorkspace(missionID)
		if err != nil {
			return InitResult{}, err
		}
		workspacePath = wp
	}

	m := newMission(missionID, brief, tasks, workspacePath, missionID, r.swarm, r.workspace, r.bus)

	r.mu.Lock()
	r.missions[missionID] = m
	r.mu.Unlock()

	if !dryRun {
		m.start()
	}

	return InitResult{
		MissionID:           missionID,
		Channel:             missionID,
		EstimatedDurationMs: int64(len(tasks)) * estimatedMsPerTask,
		TotalTasks:          len(tasks),
	}, nil
}

// GetMission returns a snapshot of one mission's state.
func (r *Registry) GetMission(id string) (types.MissionState, error) {
	r.mu.RLock()
	m, ok := r.missions[id]
	r.mu.RUnlock()
	if !ok {
		return types.MissionState{}, errNotFound(id)
	}
	return m.Snapshot(), nil
}

// GetMissionTasks returns the decomposed task list for one mission.
func (r *Registry) GetMissionTasks(id string) ([]*types.Task, error) {
	r.mu.RLock()
	m, ok := r.missions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errNotFound(id)
	}
	return m.Tasks(), nil
}

// ListMissions returns a snapshot of every known mission.
func (r *Registry) ListMissions() []types.MissionState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.MissionState, 0, len(r.missions))
	for _, m := range r.missions {
		out = append(out, m.Snapshot())
	}
	return out
}

// CancelMission stops a mission's scheduling loop, terminates its agents,
// deletes its workspace, and transitions it to Cancelled (spec §4.4
// Cancellation).
func (r *Registry) CancelMission(id, reason string) error {
	r.mu.RLock()
	m, ok := r.missions[id]
	r.mu.RUnlock()
	if !ok {
		return errNotFound(id)
	}
	return m.cancel(reason)
}

func errAlreadyExists(missionID string) error {
	return apierr.New(apierr.AlreadyExists, "mission already exists: "+missionID)
}
