package types

import "time"

// TaskType is the decomposed-task category (spec §3).
type TaskType string

const (
	TaskScaffold  TaskType = "scaffold"
	TaskImplement TaskType = "implement"
	TaskTest      TaskType = "test"
	TaskReview    TaskType = "review"
	TaskDocument  TaskType = "document"
)

// TaskStatus is the lifecycle state of a decomposed task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// DefaultMaxRetries returns the §4.1 default retry budget for a task type:
// Scaffold gets one retry (maxRetries=1, two attempts in all), everything
// else gets three retries.
func DefaultMaxRetries(t TaskType) int {
	if t == TaskScaffold {
		return 1
	}
	return 3
}

// Task is one node of a mission's decomposed task DAG.
type Task struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Priority     Priority   `json:"priority"`
	Dependencies []string   `json:"dependencies"`
	Type         TaskType   `json:"type"`
	Phase        string     `json:"phase"`
	Status       TaskStatus `json:"status"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	CreatedAt    time.Time  `json:"created_at"`
	AssignedTo   string     `json:"assigned_to,omitempty"` // agent id
	LastError    string     `json:"last_error,omitempty"`
}

// CanRetry reports whether the task has retry budget remaining.
func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

// DependenciesMet reports whether every dependency id is present and
// Completed in the given status lookup.
func (t *Task) DependenciesMet(statusOf map[string]TaskStatus) bool {
	for _, dep := range t.Dependencies {
		if statusOf[dep] != TaskCompleted {
			return false
		}
	}
	return true
}
