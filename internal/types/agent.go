package types

import "time"

// AgentStatus is the lifecycle state of a live task assignment (spec §4.3).
type AgentStatus string

const (
	AgentInitializing AgentStatus = "initializing"
	AgentCoding       AgentStatus = "coding"
	AgentTesting      AgentStatus = "testing"
	AgentComplete     AgentStatus = "complete"
	AgentError        AgentStatus = "error"
	AgentTerminated   AgentStatus = "terminated"
)

// LogLine is one entry in an agent's bounded log ring.
type LogLine struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// Agent is the live execution context for one task assignment on one slot.
type Agent struct {
	ID          string      `json:"id"`
	SlotIndex   int         `json:"slot_index"`
	MissionID   string      `json:"mission_id"`
	TaskID      string      `json:"task_id"`
	Status      AgentStatus `json:"status"`
	Progress    int         `json:"progress"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Log         []LogLine   `json:"log"`
	maxLogLines int
}

// NewAgent creates an Agent bound to exactly one slot and task.
func NewAgent(id string, slotIndex int, missionID, taskID string) *Agent {
	now := time.Now()
	return &Agent{
		ID:          id,
		SlotIndex:   slotIndex,
		MissionID:   missionID,
		TaskID:      taskID,
		Status:      AgentInitializing,
		CreatedAt:   now,
		UpdatedAt:   now,
		maxLogLines: 200,
	}
}

// AppendLog appends a line to the agent's bounded log ring, dropping the
// oldest line once the ring is full.
func (a *Agent) AppendLog(text string) {
	if a.maxLogLines == 0 {
		a.maxLogLines = 200
	}
	a.Log = append(a.Log, LogLine{At: time.Now(), Text: text})
	if len(a.Log) > a.maxLogLines {
		a.Log = a.Log[len(a.Log)-a.maxLogLines:]
	}
}

// IsActive reports whether the agent is in a state counted toward
// countActive() (not Idle/Terminated/Complete/Error; since this model has no
// Idle state, active means Initializing/Coding/Testing).
func (a *Agent) IsActive() bool {
	switch a.Status {
	case AgentInitializing, AgentCoding, AgentTesting:
		return true
	default:
		return false
	}
}
