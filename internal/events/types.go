// Package events implements the subscription-based fan-out of agent/task/
// mission lifecycle events to subscribers keyed by mission id (spec §4.5).
package events

import "time"

// Type is one of the closed set of event types from spec §4.5.
type Type string

const (
	// Agent events
	AgentSpawned        Type = "agent:spawned"
	AgentStatusChanged  Type = "agent:status_changed"
	AgentTaskStarted    Type = "agent:task_started"
	AgentTaskCompleted  Type = "agent:task_completed"
	AgentTaskFailed     Type = "agent:task_failed"
	AgentTerminated     Type = "agent:terminated"
	AgentLog            Type = "agent:log"

	// Mission events
	MissionInitialized  Type = "mission:initialized"
	MissionStarted      Type = "mission:started"
	MissionProgress     Type = "mission:progress"
	MissionPhaseChanged Type = "mission:phase_changed"
	MissionCompleted    Type = "mission:completed"
	MissionFailed       Type = "mission:failed"
	MissionCancelled    Type = "mission:cancelled"

	// Task events
	TaskStarted   Type = "task:started"
	TaskProgress  Type = "task:progress"
	TaskCompleted Type = "task:completed"
	TaskFailed    Type = "task:failed"
)

// AllTypes returns every defined event type, used for "subscribe to
// everything" filters and for validating incoming filter lists.
func AllTypes() []Type {
	return []Type{
		AgentSpawned, AgentStatusChanged, AgentTaskStarted, AgentTaskCompleted,
		AgentTaskFailed, AgentTerminated, AgentLog,
		MissionInitialized, MissionStarted, MissionProgress, MissionPhaseChanged,
		MissionCompleted, MissionFailed, MissionCancelled,
		TaskStarted, TaskProgress, TaskCompleted, TaskFailed,
	}
}

// Event is a tagged record: a Type plus a type-specific Payload. Per
// spec.md DESIGN NOTES §9, the payload is a strongly-typed Go value behind
// an interface, one variant per event type, rather than a bag of
// map[string]interface{}.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	MissionID string    `json:"mission_id"`
	CreatedAt time.Time `json:"created_at"`
	Payload   Payload   `json:"payload"`
}

// Payload is implemented by every per-event-type payload struct.
type Payload interface {
	EventType() Type
}

// GlobalTarget is the reserved subscription key that receives every
// mission's events in addition to mission-scoped subscribers.
const GlobalTarget = "global"
