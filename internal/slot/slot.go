// Package slot implements the Worker Slot (C2): a single-assignment task
// executor with pluggable simulated/containerised execution strategies, a
// cancellation token, and health checking (spec §4.2).
package slot

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/aegis/internal/apierr"
	"github.com/cuemby/aegis/internal/types"
)

// DefaultHealthCeiling is the maximum time an assignment may run before
// checkHealth reports Unhealthy (spec §4.2 default: 10 minutes).
const DefaultHealthCeiling = 10 * time.Minute

// Assignment is the task currently bound to a slot.
type Assignment struct {
	AgentID       string
	Task          *types.Task
	WorkspacePath string
	StartedAt     time.Time
}

// Slot is a single-assignment executor: exactly one agent at a time.
type Slot struct {
	ID    string
	Index int

	mu             sync.Mutex
	status         types.SlotStatus
	current        *Assignment
	cancel         context.CancelFunc
	terminalSeen   bool
	metrics        types.SlotMetrics
	healthCeiling  time.Duration
	newStrategy    func(*types.Task) ExecutionStrategy
}

// New creates an Available slot at the given index, using newStrategy to
// build an ExecutionStrategy per assignment (simulated or containerised,
// selected by configuration at the Swarm level).
func New(id string, index int, healthCeiling time.Duration, newStrategy func(*types.Task) ExecutionStrategy) *Slot {
	if healthCeiling <= 0 {
		healthCeiling = DefaultHealthCeiling
	}
	return &Slot{
		ID:            id,
		Index:         index,
		status:        types.SlotAvailable,
		healthCeiling: healthCeiling,
		newStrategy:   newStrategy,
	}
}

// Status returns the slot's current status.
func (s *Slot) Status() types.SlotStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Metrics returns a snapshot of the slot's execution metrics.
func (s *Slot) Metrics() types.SlotMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// CurrentAgentID returns the agent id bound to the slot, or "" if Available.
func (s *Slot) CurrentAgentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.AgentID
}

// Events reports the lifecycle events one AssignTask call produces, in
// order, for the Swarm to translate onto the event bus (spec §4.3).
type Events struct {
	OnStarted  func()
	OnProgress func(percent int)
	OnLog      func(line string)
	OnComplete func()
	OnFailed   func(reason string)
}

// AssignTask transitions the slot Available -> Busy and runs task to
// completion in the background, invoking ev's callbacks as the strategy
// reports progress. Returns SlotBusy if the slot isn't Available.
func (s *Slot) AssignTask(agentID string, task *types.Task, workspacePath string, ev Events) error {
	s.mu.Lock()
	if s.status != types.SlotAvailable {
		s.mu.Unlock()
		return apierr.New(apierr.SlotBusy, "slot "+s.ID+" is not available")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.status = types.SlotBusy
	s.cancel = cancel
	s.terminalSeen = false
	s.current = &Assignment{AgentID: agentID, Task: task, WorkspacePath: workspacePath, StartedAt: time.Now()}
	s.mu.Unlock()

	if ev.OnStarted != nil {
		ev.OnStarted()
	}

	strategy := s.newStrategy(task)
	go s.run(ctx, strategy, workspacePath, ev)
	return nil
}

func (s *Slot) run(ctx context.Context, strategy ExecutionStrategy, workspacePath string, ev Events) {
	lastProgress := 0
	cb := Callbacks{
		OnProgress: func(percent int) {
			if percent < lastProgress {
				percent = lastProgress
			}
			lastProgress = percent
			if ev.OnProgress != nil {
				ev.OnProgress(percent)
			}
		},
		OnLog: ev.OnLog,
	}

	outcome := strategy.Execute(ctx, workspacePath, cb)
	s.finish(outcome, ev)
}

// finish records the terminal event exactly once, updates metrics, and
// resets the slot to Available.
func (s *Slot) finish(outcome Outcome, ev Events) {
	s.mu.Lock()
	if s.terminalSeen {
		s.mu.Unlock()
		return
	}
	s.terminalSeen = true
	started := s.current.StartedAt
	s.status = types.SlotAvailable
	s.current = nil
	s.cancel = nil
	durationMs := time.Since(started).Milliseconds()
	s.metrics.Observe(outcome.Success, durationMs)
	s.mu.Unlock()

	if outcome.Success {
		if ev.OnComplete != nil {
			ev.OnComplete()
		}
	} else {
		if ev.OnFailed != nil {
			ev.OnFailed(outcome.Reason)
		}
	}
}

// Terminate cancels the running task's context (a strategy that watches it,
// such as ContainerStrategy, tears down its own container once it sees the
// cancellation), emits a terminal failure if no terminal event has been
// observed yet, and resets status to Available.
func (s *Slot) Terminate(reason string, ev Events) {
	s.mu.Lock()
	cancel := s.cancel
	alreadyTerminal := s.terminalSeen
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if !alreadyTerminal {
		s.finish(Outcome{Success: false, Reason: reason}, ev)
	}
}

// CheckHealth reports Unhealthy if the current assignment has run longer
// than the configured ceiling; otherwise it returns the slot's own status
// (Busy or Available). Does not itself change
// slot status (spec §4.2: the Swarm decides what to do with the result).
func (s *Slot) CheckHealth() types.SlotStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != types.SlotBusy || s.current == nil {
		return s.status
	}
	if time.Since(s.current.StartedAt) > s.healthCeiling {
		return types.SlotUnhealthy
	}
	return types.SlotBusy
}
