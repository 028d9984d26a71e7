package types

import "time"

// MissionStatus is the lifecycle state of a mission.
type MissionStatus string

const (
	MissionPending      MissionStatus = "pending"
	MissionInitializing MissionStatus = "initializing"
	MissionInProgress   MissionStatus = "in_progress"
	MissionTesting      MissionStatus = "testing"
	MissionCompleted    MissionStatus = "completed"
	MissionFailed       MissionStatus = "failed"
	MissionCancelled    MissionStatus = "cancelled"
)

// IsTerminal reports whether a mission status is a final state.
func (s MissionStatus) IsTerminal() bool {
	switch s {
	case MissionCompleted, MissionFailed, MissionCancelled:
		return true
	default:
		return false
	}
}

// TaskBuckets partitions a mission's task set by status. Every task belongs
// to exactly one bucket at every observable moment (spec §3 invariant 1).
type TaskBuckets struct {
	Pending    []string `json:"pending"`
	InProgress []string `json:"in_progress"`
	Completed  []string `json:"completed"`
	Failed     []string `json:"failed"`
}

// Total returns the number of tasks across all four buckets.
func (b TaskBuckets) Total() int {
	return len(b.Pending) + len(b.InProgress) + len(b.Completed) + len(b.Failed)
}

// MissionCounters is the observable bucket-size summary used by list/get
// responses (spec §6).
type MissionCounters struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// MissionState is the full record the orchestrator owns for one mission.
type MissionState struct {
	ID            string        `json:"id"`
	Brief         MissionBrief  `json:"brief"`
	Status        MissionStatus `json:"status"`
	Buckets       TaskBuckets   `json:"buckets"`
	AgentIDs      []string      `json:"agent_ids"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       *time.Time    `json:"end_time,omitempty"`
	Progress      int           `json:"progress"`
	WorkspacePath string        `json:"workspace_path"`
	Channel       string        `json:"channel"`
	FailureReason string        `json:"failure_reason,omitempty"`
}

// Counters computes the MissionCounters summary from the task buckets.
func (m *MissionState) Counters() MissionCounters {
	return MissionCounters{
		Pending:    len(m.Buckets.Pending),
		InProgress: len(m.Buckets.InProgress),
		Completed:  len(m.Buckets.Completed),
		Failed:     len(m.Buckets.Failed),
		Total:      m.Buckets.Total(),
	}
}
