package mission

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/aegis/internal/dag"
	"github.com/cuemby/aegis/internal/events"
	"github.com/cuemby/aegis/internal/log"
	"github.com/cuemby/aegis/internal/types"
)

// tickInterval is how often a running mission's scheduling loop fires
// (spec §4.4: "ticks ≈ every 1 s").
const tickInterval = time.Second

// Mission is one running mission: its state, its task DAG, and the
// goroutine driving its scheduling loop.
type Mission struct {
	mu      sync.Mutex
	state   types.MissionState
	tasks   map[string]*types.Task // by id
	started bool                   // true once the scheduling loop goroutine is running

	swarm     SwarmHandle
	workspace WorkspaceHandle
	bus       *events.Bus

	stopCh chan struct{}
	doneCh chan struct{}
}

// SwarmHandle is the subset of the Swarm the scheduling loop needs,
// narrowed to an interface so mission can be tested without a real pool.
type SwarmHandle interface {
	SpawnAgent(task *types.Task, missionID, workspacePath string) (*types.Agent, error)
	CountAvailableSlots() int
	TerminateAll(missionID string, reason string)
}

// WorkspaceHandle is the subset of the Workspace Store the orchestrator
// needs.
type WorkspaceHandle interface {
	CreateWorkspace(missionID string) (string, error)
	DeleteWorkspace(missionID string) error
}

func newMission(id string, brief types.MissionBrief, tasks []*types.Task, workspacePath, channel string, swarm SwarmHandle, ws WorkspaceHandle, bus *events.Bus) *Mission {
	byID := make(map[string]*types.Task, len(tasks))
	buckets := types.TaskBuckets{}
	for _, t := range tasks {
		byID[t.ID] = t
		buckets.Pending = append(buckets.Pending, t.ID)
	}

	return &Mission{
		state: types.MissionState{
			ID:            id,
			Brief:         brief,
			Status:        types.MissionPending,
			Buckets:       buckets,
			StartTime:     time.Now(),
			WorkspacePath: workspacePath,
			Channel:       channel,
		},
		tasks:     byID,
		swarm:     swarm,
		workspace: ws,
		bus:       bus,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Snapshot returns a copy of the mission's current state.
func (m *Mission) Snapshot() types.MissionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Tasks returns a copy of every decomposed task.
func (m *Mission) Tasks() []*types.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

func (m *Mission) publish(typ events.Type, payload events.Payload) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.Event{Type: typ, MissionID: m.state.ID, Payload: payload})
}

// start transitions the mission into InProgress and launches its
// scheduling loop goroutine.
func (m *Mission) start() {
	m.mu.Lock()
	m.state.Status = types.MissionInProgress
	m.started = true
	m.mu.Unlock()

	m.publish(events.MissionInitialized, events.MissionInitializedPayload{TotalTasks: len(m.tasks)})
	m.publish(events.MissionStarted, events.MissionStartedPayload{})

	go m.run()
}

func (m *Mission) run() {
	defer close(m.doneCh)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	logger := log.WithComponent("mission").With().Str("mission_id", m.state.ID).Logger()

	if m.tick(logger) {
		return
	}
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if m.tick(logger) {
				return
			}
		}
	}
}

// tick runs one scheduling cycle (spec §4.4 items 1-6). Returns true once
// the mission has reached a terminal status and the loop should stop.
func (m *Mission) tick(logger zerolog.Logger) bool {
	m.mu.Lock()
	if m.state.Status.IsTerminal() {
		m.mu.Unlock()
		return true
	}

	ready := m.readySetLocked()
	available := m.swarm.CountAvailableSlots()
	n := len(ready)
	if available < n {
		n = available
	}
	chosen := ready[:n]

	for _, task := range chosen {
		m.moveBucketLocked(task.ID, types.TaskPending, types.TaskInProgress)
		task.Status = types.TaskInProgress
	}
	workspacePath := m.state.WorkspacePath
	missionID := m.state.ID
	m.mu.Unlock()

	for _, task := range chosen {
		t := task
		if _, err := m.swarm.SpawnAgent(t, missionID, workspacePath); err != nil {
			m.mu.Lock()
			m.moveBucketLocked(t.ID, types.TaskInProgress, types.TaskPending)
			t.Status = types.TaskPending
			m.mu.Unlock()
			logger.Warn().Str("task_id", t.ID).Err(err).Msg("spawnAgent failed, task reverted to pending")
			continue
		}
		m.publish(events.TaskStarted, events.TaskStartedPayload{TaskID: t.ID})
	}

	return m.recomputeProgressAndMaybeFinish(logger)
}

// readySetLocked computes the §4.4 ready set under m.mu.
func (m *Mission) readySetLocked() []*types.Task {
	all := make([]*types.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		all = append(all, t)
	}
	return dag.ReadySet(all)
}

func (m *Mission) moveBucketLocked(taskID string, from, to types.TaskStatus) {
	m.state.Buckets = removeFromBucket(m.state.Buckets, from, taskID)
	m.state.Buckets = addToBucket(m.state.Buckets, to, taskID)
}

func removeFromBucket(b types.TaskBuckets, status types.TaskStatus, id string) types.TaskBuckets {
	switch status {
	case types.TaskPending:
		b.Pending = removeID(b.Pending, id)
	case types.TaskInProgress:
		b.InProgress = removeID(b.InProgress, id)
	case types.TaskCompleted:
		b.Completed = removeID(b.Completed, id)
	case types.TaskFailed:
		b.Failed = removeID(b.Failed, id)
	}
	return b
}

func addToBucket(b types.TaskBuckets, status types.TaskStatus, id string) types.TaskBuckets {
	switch status {
	case types.TaskPending:
		b.Pending = append(b.Pending, id)
	case types.TaskInProgress:
		b.InProgress = append(b.InProgress, id)
	case types.TaskCompleted:
		b.Completed = append(b.Completed, id)
	case types.TaskFailed:
		b.Failed = append(b.Failed, id)
	}
	return b
}

func removeID(ids []string, target string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// recomputeProgressAndMaybeFinish implements §4.4 items 5-6.
func (m *Mission) recomputeProgressAndMaybeFinish(logger zerolog.Logger) bool {
	m.mu.Lock()
	total := m.state.Buckets.Total()
	completed := len(m.state.Buckets.Completed)
	progress := 0
	if total > 0 {
		progress = int(math.Floor(100 * float64(completed) / float64(total)))
	}
	changed := progress != m.state.Progress
	m.state.Progress = progress

	done := len(m.state.Buckets.Pending) == 0 && len(m.state.Buckets.InProgress) == 0
	m.mu.Unlock()

	if changed {
		m.publish(events.MissionProgress, events.MissionProgressPayload{Progress: progress})
	}

	if !done {
		return false
	}
	m.finish(logger)
	return true
}

// OnTaskCompleted handles an agent:task_completed event for this mission
// (spec §4.4 "Task completion handling").
func (m *Mission) OnTaskCompleted(taskID string) {
	m.mu.Lock()
	task, ok := m.tasks[taskID]
	if !ok || task.Status != types.TaskInProgress {
		m.mu.Unlock()
		return
	}
	task.Status = types.TaskCompleted
	m.moveBucketLocked(taskID, types.TaskInProgress, types.TaskCompleted)
	m.mu.Unlock()

	m.publish(events.TaskCompleted, events.TaskCompletedPayload{TaskID: taskID})
}

// OnTaskFailed handles an agent:task_failed event for this mission (spec
// §4.4 "Task failure handling").
func (m *Mission) OnTaskFailed(taskID, reason string) {
	m.mu.Lock()
	task, ok := m.tasks[taskID]
	if !ok || task.Status != types.TaskInProgress {
		m.mu.Unlock()
		return
	}
	task.LastError = reason

	if task.CanRetry() {
		task.RetryCount++
		task.Status = types.TaskPending
		m.moveBucketLocked(taskID, types.TaskInProgress, types.TaskPending)
		m.mu.Unlock()
		return
	}

	task.Status = types.TaskFailed
	m.moveBucketLocked(taskID, types.TaskInProgress, types.TaskFailed)
	critical := task.Priority == types.PriorityCritical
	m.mu.Unlock()

	m.publish(events.TaskFailed, events.TaskFailedPayload{TaskID: taskID, Reason: reason})

	if critical {
		m.failNow("critical task failed: " + reason)
	}
}

// failNow immediately fails the mission (used by the Critical-task
// short-circuit, outside the normal completion check).
func (m *Mission) failNow(reason string) {
	m.mu.Lock()
	if m.state.Status.IsTerminal() {
		m.mu.Unlock()
		return
	}
	m.state.Status = types.MissionFailed
	m.state.FailureReason = reason
	now := time.Now()
	m.state.EndTime = &now
	m.mu.Unlock()

	close(m.stopCh)
	m.swarm.TerminateAll(m.state.ID, "mission failed: "+reason)
	m.publish(events.MissionFailed, events.MissionFailedPayload{Reason: reason})
}

// finish implements §4.4's "Completion" paragraph once Pending and
// InProgress are both empty.
func (m *Mission) finish(logger zerolog.Logger) {
	m.mu.Lock()
	if m.state.Status.IsTerminal() {
		m.mu.Unlock()
		return
	}
	failed := len(m.state.Buckets.Failed) > 0
	now := time.Now()
	m.state.EndTime = &now
	if failed {
		m.state.Status = types.MissionFailed
	} else {
		m.state.Status = types.MissionCompleted
	}
	durationMs := now.Sub(m.state.StartTime).Milliseconds()
	workspacePath := m.state.WorkspacePath
	m.mu.Unlock()

	if failed {
		m.publish(events.MissionFailed, events.MissionFailedPayload{Reason: "one or more tasks failed"})
	} else {
		m.publish(events.MissionCompleted, events.MissionCompletedPayload{DurationMs: durationMs, WorkspacePath: workspacePath})
	}
	logger.Info().Bool("failed", failed).Msg("mission reached terminal state")
}

// cancel implements §4.4's "Cancellation" paragraph.
func (m *Mission) cancel(reason string) error {
	m.mu.Lock()
	if m.state.Status == types.MissionCancelled || m.state.Status == types.MissionFailed {
		m.mu.Unlock()
		return errAlreadyTerminalForCancel(m.state.Status)
	}
	if m.state.Status.IsTerminal() {
		m.mu.Unlock()
		return errAlreadyTerminalForCancel(m.state.Status)
	}
	started := m.started
	m.mu.Unlock()

	// Only the scheduling loop closes doneCh, and it only ever runs once
	// start() has launched it (never for a dry-run mission that was only
	// initialized). Waiting on doneCh unconditionally would block forever
	// for a dry-run mission cancelled before being started.
	if started {
		select {
		case <-m.stopCh:
		default:
			close(m.stopCh)
		}
		<-m.doneCh
	}

	m.swarm.TerminateAll(m.state.ID, "mission cancelled: "+reason)

	m.mu.Lock()
	m.state.Status = types.MissionCancelled
	now := time.Now()
	m.state.EndTime = &now
	missionID := m.state.ID
	m.mu.Unlock()

	if err := m.workspace.DeleteWorkspace(missionID); err != nil {
		log.WithComponent("mission").Warn().Str("mission_id", missionID).Err(err).Msg("failed to delete workspace on cancel")
	}

	m.publish(events.MissionCancelled, events.MissionCancelledPayload{Reason: reason})
	return nil
}
