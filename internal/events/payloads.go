package events

import "github.com/cuemby/aegis/internal/types"

// AgentSpawnedPayload accompanies AgentSpawned.
type AgentSpawnedPayload struct {
	AgentID   string `json:"agent_id"`
	SlotIndex int    `json:"slot_index"`
	TaskID    string `json:"task_id"`
}

func (AgentSpawnedPayload) EventType() Type { return AgentSpawned }

// AgentStatusChangedPayload accompanies AgentStatusChanged.
type AgentStatusChangedPayload struct {
	AgentID  string            `json:"agent_id"`
	Previous types.AgentStatus `json:"previous_status"`
	Next     types.AgentStatus `json:"new_status"`
}

func (AgentStatusChangedPayload) EventType() Type { return AgentStatusChanged }

// AgentTaskStartedPayload accompanies AgentTaskStarted.
type AgentTaskStartedPayload struct {
	AgentID string `json:"agent_id"`
	TaskID  string `json:"task_id"`
}

func (AgentTaskStartedPayload) EventType() Type { return AgentTaskStarted }

// AgentTaskCompletedPayload accompanies AgentTaskCompleted.
type AgentTaskCompletedPayload struct {
	AgentID    string `json:"agent_id"`
	TaskID     string `json:"task_id"`
	DurationMs int64  `json:"duration_ms"`
}

func (AgentTaskCompletedPayload) EventType() Type { return AgentTaskCompleted }

// AgentTaskFailedPayload accompanies AgentTaskFailed.
type AgentTaskFailedPayload struct {
	AgentID string `json:"agent_id"`
	TaskID  string `json:"task_id"`
	Reason  string `json:"reason"`
}

func (AgentTaskFailedPayload) EventType() Type { return AgentTaskFailed }

// AgentTerminatedPayload accompanies AgentTerminated.
type AgentTerminatedPayload struct {
	AgentID string `json:"agent_id"`
	Reason  string `json:"reason"`
}

func (AgentTerminatedPayload) EventType() Type { return AgentTerminated }

// AgentLogPayload accompanies AgentLog.
type AgentLogPayload struct {
	AgentID string `json:"agent_id"`
	Line    string `json:"line"`
}

func (AgentLogPayload) EventType() Type { return AgentLog }

// MissionInitializedPayload accompanies MissionInitialized.
type MissionInitializedPayload struct {
	TotalTasks int `json:"total_tasks"`
}

func (MissionInitializedPayload) EventType() Type { return MissionInitialized }

// MissionStartedPayload accompanies MissionStarted.
type MissionStartedPayload struct{}

func (MissionStartedPayload) EventType() Type { return MissionStarted }

// MissionProgressPayload accompanies MissionProgress.
type MissionProgressPayload struct {
	Progress int `json:"progress"`
}

func (MissionProgressPayload) EventType() Type { return MissionProgress }

// MissionPhaseChangedPayload accompanies MissionPhaseChanged.
type MissionPhaseChangedPayload struct {
	Phase string `json:"phase"`
}

func (MissionPhaseChangedPayload) EventType() Type { return MissionPhaseChanged }

// MissionCompletedPayload accompanies MissionCompleted.
type MissionCompletedPayload struct {
	DurationMs    int64  `json:"duration_ms"`
	WorkspacePath string `json:"workspace_path"`
}

func (MissionCompletedPayload) EventType() Type { return MissionCompleted }

// MissionFailedPayload accompanies MissionFailed.
type MissionFailedPayload struct {
	Reason string `json:"reason"`
}

func (MissionFailedPayload) EventType() Type { return MissionFailed }

// MissionCancelledPayload accompanies MissionCancelled.
type MissionCancelledPayload struct {
	Reason string `json:"reason"`
}

func (MissionCancelledPayload) EventType() Type { return MissionCancelled }

// TaskStartedPayload accompanies TaskStarted.
type TaskStartedPayload struct {
	TaskID string `json:"task_id"`
}

func (TaskStartedPayload) EventType() Type { return TaskStarted }

// TaskProgressPayload accompanies TaskProgress.
type TaskProgressPayload struct {
	TaskID   string `json:"task_id"`
	Progress int    `json:"progress"`
}

func (TaskProgressPayload) EventType() Type { return TaskProgress }

// TaskCompletedPayload accompanies TaskCompleted.
type TaskCompletedPayload struct {
	TaskID string `json:"task_id"`
}

func (TaskCompletedPayload) EventType() Type { return TaskCompleted }

// TaskFailedPayload accompanies TaskFailed.
type TaskFailedPayload struct {
	TaskID string `json:"task_id"`
	Reason string `json:"reason"`
}

func (TaskFailedPayload) EventType() Type { return TaskFailed }
