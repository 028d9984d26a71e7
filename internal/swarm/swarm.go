// Package swarm implements the Swarm (C3): a fixed pool of worker slots, the
// live agent registry, and the translation of slot events onto the event
// bus with each agent's mission id attached (spec §4.3).
package swarm

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/aegis/internal/apierr"
	"github.com/cuemby/aegis/internal/events"
	"github.com/cuemby/aegis/internal/log"
	"github.com/cuemby/aegis/internal/slot"
	"github.com/cuemby/aegis/internal/types"
)

// Swarm holds N worker slots and the agents currently bound to them.
type Swarm struct {
	mu    sync.Mutex // serializes slot selection/assignment, spec §4.2 "atomically"
	slots []*slot.Slot

	agentsMu sync.RWMutex
	agents   map[string]*types.Agent

	bus            *events.Bus
	healthInterval time.Duration
	newStrategy    func(*types.Task) slot.ExecutionStrategy

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Swarm of n slots. newStrategy builds the ExecutionStrategy
// (simulated or containerised) for each task assignment.
func New(n int, healthCeiling, healthInterval time.Duration, bus *events.Bus, newStrategy func(*types.Task) slot.ExecutionStrategy) *Swarm {
	slots := make([]*slot.Slot, n)
	for i := 0; i < n; i++ {
		slots[i] = slot.New(uuid.NewString(), i, healthCeiling, newStrategy)
	}
	return &Swarm{
		slots:          slots,
		agents:         make(map[string]*types.Agent),
		bus:            bus,
		healthInterval: healthInterval,
		newStrategy:    newStrategy,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start launches the periodic health sweep goroutine.
func (s *Swarm) Start() {
	go s.healthLoop()
}

// Stop signals the health sweep goroutine to exit and waits for it.
func (s *Swarm) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// SpawnAgent selects the lowest-indexed Available slot and assigns task to
// it, returning the new Agent. Returns a NoSlot error without side effects
// if every slot is Busy or Unhealthy.
func (s *Swarm) SpawnAgent(task *types.Task, missionID, workspacePath string) (*types.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chosen *slot.Slot
	for _, sl := range s.slots {
		if sl.Status() == types.SlotAvailable {
			chosen = sl
			break
		}
	}
	if chosen == nil {
		return nil, apierr.New(apierr.NoSlot, "no available slot")
	}

	agentID := uuid.NewString()
	agent := types.NewAgent(agentID, chosen.Index, missionID, task.ID)

	s.agentsMu.Lock()
	s.agents[agentID] = agent
	s.agentsMu.Unlock()

	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:      events.AgentSpawned,
			MissionID: missionID,
			Payload:   events.AgentSpawnedPayload{AgentID: agentID, SlotIndex: chosen.Index, TaskID: task.ID},
		})
	}

	ev := s.translate(agent)
	if err := chosen.AssignTask(agentID, task, workspacePath, ev); err != nil {
		s.agentsMu.Lock()
		delete(s.agents, agentID)
		s.agentsMu.Unlock()
		return nil, err
	}

	return agent, nil
}

// translate builds the slot.Events callbacks that forward slot lifecycle
// events onto the bus as the agent-scoped events of spec §4.3's mapping
// table.
func (s *Swarm) translate(agent *types.Agent) slot.Events {
	publish := func(missionID string, typ events.Type, payload events.Payload) {
		if s.bus == nil {
			return
		}
		s.bus.Publish(events.Event{Type: typ, MissionID: missionID, Payload: payload})
	}

	statusChange := func(next types.AgentStatus) {
		s.agentsMu.Lock()
		prev := agent.Status
		agent.Status = next
		agent.UpdatedAt = time.Now()
		s.agentsMu.Unlock()
		publish(agent.MissionID, events.AgentStatusChanged, events.AgentStatusChangedPayload{
			AgentID: agent.ID, Previous: prev, Next: next,
		})
	}

	return slot.Events{
		OnStarted: func() {
			statusChange(types.AgentCoding)
			publish(agent.MissionID, events.AgentTaskStarted, events.AgentTaskStartedPayload{AgentID: agent.ID, TaskID: agent.TaskID})
		},
		OnProgress: func(percent int) {
			s.agentsMu.Lock()
			agent.Progress = percent
			agent.UpdatedAt = time.Now()
			s.agentsMu.Unlock()
			publish(agent.MissionID, events.TaskProgress, events.TaskProgressPayload{TaskID: agent.TaskID, Progress: percent})
		},
		OnLog: func(line string) {
			s.agentsMu.Lock()
			agent.AppendLog(line)
			s.agentsMu.Unlock()
			publish(agent.MissionID, events.AgentLog, events.AgentLogPayload{AgentID: agent.ID, Line: line})
		},
		OnComplete: func() {
			statusChange(types.AgentComplete)
			publish(agent.MissionID, events.AgentTaskCompleted, events.AgentTaskCompletedPayload{AgentID: agent.ID, TaskID: agent.TaskID})
		},
		OnFailed: func(reason string) {
			statusChange(types.AgentError)
			publish(agent.MissionID, events.AgentTaskFailed, events.AgentTaskFailedPayload{AgentID: agent.ID, TaskID: agent.TaskID, Reason: reason})
		},
	}
}

// GetAgent returns an agent by id, or nil if unknown.
func (s *Swarm) GetAgent(agentID string) *types.Agent {
	s.agentsMu.RLock()
	defer s.agentsMu.RUnlock()
	return s.agents[agentID]
}

// ListAgents returns every agent, optionally filtered to one mission.
func (s *Swarm) ListAgents(missionID string) []*types.Agent {
	s.agentsMu.RLock()
	defer s.agentsMu.RUnlock()

	result := make([]*types.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		if missionID == "" || a.MissionID == missionID {
			result = append(result, a)
		}
	}
	return result
}

// CountActive returns the number of agents not in {Complete, Error,
// Terminated}.
func (s *Swarm) CountActive() int {
	s.agentsMu.RLock()
	defer s.agentsMu.RUnlock()

	n := 0
	for _, a := range s.agents {
		if a.IsActive() {
			n++
		}
	}
	return n
}

// CountAvailableSlots returns the number of slots currently Available.
func (s *Swarm) CountAvailableSlots() int {
	n := 0
	for _, sl := range s.slots {
		if sl.Status() == types.SlotAvailable {
			n++
		}
	}
	return n
}

// TotalSlots returns the fixed slot count N.
func (s *Swarm) TotalSlots() int {
	return len(s.slots)
}

// SlotSnapshot describes one slot for the getSwarm control operation (§6).
type SlotSnapshot struct {
	Index     int
	Status    types.SlotStatus
	AgentID   string
	TaskID    string
	Progress  int
}

// Slots returns a point-in-time snapshot of every slot.
func (s *Swarm) Slots() []SlotSnapshot {
	snaps := make([]SlotSnapshot, len(s.slots))
	for i, sl := range s.slots {
		agentID := sl.CurrentAgentID()
		snap := SlotSnapshot{Index: sl.Index, Status: sl.Status(), AgentID: agentID}
		if agentID != "" {
			if agent := s.GetAgent(agentID); agent != nil {
				snap.TaskID = agent.TaskID
				snap.Progress = agent.Progress
			}
		}
		snaps[i] = snap
	}
	return snaps
}

// TerminateAgent forwards termination to the owning slot and transitions
// the agent to Terminated, emitting agent:terminated regardless of the
// task's natural outcome (spec §4.3: "any state → Terminated via explicit
// termination").
func (s *Swarm) TerminateAgent(agentID, reason string) error {
	s.agentsMu.Lock()
	agent, ok := s.agents[agentID]
	s.agentsMu.Unlock()
	if !ok {
		return apierr.New(apierr.NotFound, "unknown agent: "+agentID)
	}

	if agent.SlotIndex >= 0 && agent.SlotIndex < len(s.slots) {
		s.slots[agent.SlotIndex].Terminate(reason, slot.Events{})
	}

	s.agentsMu.Lock()
	prev := agent.Status
	agent.Status = types.AgentTerminated
	agent.UpdatedAt = time.Now()
	s.agentsMu.Unlock()

	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:      events.AgentStatusChanged,
			MissionID: agent.MissionID,
			Payload:   events.AgentStatusChangedPayload{AgentID: agent.ID, Previous: prev, Next: types.AgentTerminated},
		})
		s.bus.Publish(events.Event{
			Type:      events.AgentTerminated,
			MissionID: agent.MissionID,
			Payload:   events.AgentTerminatedPayload{AgentID: agent.ID, Reason: reason},
		})
	}
	return nil
}

// TerminateAll terminates every active agent belonging to missionID (or
// every active agent in the swarm if missionID is empty).
func (s *Swarm) TerminateAll(missionID, reason string) {
	for _, agent := range s.ListAgents(missionID) {
		if agent.IsActive() {
			_ = s.TerminateAgent(agent.ID, reason)
		}
	}
}

// healthLoop runs checkHealth on every slot on a fixed interval, logging
// Unhealthy slots. An Unhealthy Busy slot keeps its assignment: the Mission
// Orchestrator decides based on the task's own timeout (spec §4.3).
func (s *Swarm) healthLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()

	logger := log.WithComponent("swarm")
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			for _, sl := range s.slots {
				if sl.CheckHealth() == types.SlotUnhealthy {
					logger.Warn().Str("slot_id", sl.ID).Int("slot_index", sl.Index).Msg("slot unhealthy")
				}
			}
		}
	}
}
