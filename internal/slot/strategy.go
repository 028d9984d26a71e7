package slot

import "context"

// Outcome is the terminal result of one execution strategy run.
type Outcome struct {
	Success bool
	Reason  string
}

// Callbacks lets a strategy report progress and log lines back to the slot
// without depending on the event bus directly.
type Callbacks struct {
	OnProgress func(percent int)
	OnLog      func(line string)
}

// ExecutionStrategy runs one task to completion inside a workspace. Progress
// reported via cb.OnProgress must be non-decreasing, 0..100 (spec §4.2).
type ExecutionStrategy interface {
	Execute(ctx context.Context, workspacePath string, cb Callbacks) Outcome
}
