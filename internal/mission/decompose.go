package mission

import (
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/aegis/internal/dag"
	"github.com/cuemby/aegis/internal/types"
)

// Decompose expands a validated Mission Brief into the ordered task DAG of
// spec §4.4: one Scaffold, one Implement per user task, an optional Test,
// one Review, and one Document task.
func Decompose(brief types.MissionBrief) []*types.Task {
	now := time.Now()
	var tasks []*types.Task

	scaffold := &types.Task{
		ID:           uuid.NewString(),
		Title:        "Scaffold",
		Description:  "Set up project scaffolding for " + brief.Title,
		Priority:     types.PriorityCritical,
		Dependencies: nil,
		Type:         types.TaskScaffold,
		Phase:        "scaffold",
		Status:       types.TaskPending,
		MaxRetries:   types.DefaultMaxRetries(types.TaskScaffold),
		CreatedAt:    now,
	}
	tasks = append(tasks, scaffold)

	// Implement task ids are freshly generated UUIDs, not the brief's own
	// user-task ids, so a user task's Dependencies (expressed in terms of
	// those user-task ids) must be translated through this map before being
	// assigned to the Implement task's Dependencies.
	implIDByUserID := make(map[string]string, len(brief.Tasks))
	for _, u := range brief.Tasks {
		implIDByUserID[u.ID] = uuid.NewString()
	}

	implementIDs := make([]string, 0, len(brief.Tasks))
	for i, u := range brief.Tasks {
		var deps []string
		for _, dep := range u.Dependencies {
			deps = append(deps, implIDByUserID[dep])
		}
		if len(deps) == 0 {
			deps = []string{scaffold.ID}
		}
		priority := u.Priority
		if !priority.Valid() {
			priority = types.PriorityMedium
		}
		impl := &types.Task{
			ID:           implIDByUserID[u.ID],
			Title:        "Implement: " + u.Title,
			Description:  u.Description,
			Priority:     priority,
			Dependencies: deps,
			Type:         types.TaskImplement,
			Phase:        "implement",
			Status:       types.TaskPending,
			MaxRetries:   types.DefaultMaxRetries(types.TaskImplement),
			CreatedAt:    now.Add(time.Duration(i+1) * time.Nanosecond),
		}
		tasks = append(tasks, impl)
		implementIDs = append(implementIDs, impl.ID)
	}

	var testID string
	if brief.TestRequired {
		test := &types.Task{
			ID:           uuid.NewString(),
			Title:        "Test",
			Description:  "Run the test suite for " + brief.Title,
			Priority:     types.PriorityHigh,
			Dependencies: append([]string{}, implementIDs...),
			Type:         types.TaskTest,
			Phase:        "test",
			Status:       types.TaskPending,
			MaxRetries:   types.DefaultMaxRetries(types.TaskTest),
			CreatedAt:    now.Add(time.Duration(len(tasks)+1) * time.Nanosecond),
		}
		tasks = append(tasks, test)
		testID = test.ID
	}

	reviewDeps := implementIDs
	if testID != "" {
		reviewDeps = []string{testID}
	}
	review := &types.Task{
		ID:           uuid.NewString(),
		Title:        "Review",
		Description:  "Review the completed work for " + brief.Title,
		Priority:     types.PriorityMedium,
		Dependencies: append([]string{}, reviewDeps...),
		Type:         types.TaskReview,
		Phase:        "review",
		Status:       types.TaskPending,
		MaxRetries:   types.DefaultMaxRetries(types.TaskReview),
		CreatedAt:    now.Add(time.Duration(len(tasks)+1) * time.Nanosecond),
	}
	tasks = append(tasks, review)

	document := &types.Task{
		ID:           uuid.NewString(),
		Title:        "Document",
		Description:  "Write documentation for " + brief.Title,
		Priority:     types.PriorityLow,
		Dependencies: []string{review.ID},
		Type:         types.TaskDocument,
		Phase:        "document",
		Status:       types.TaskPending,
		MaxRetries:   types.DefaultMaxRetries(types.TaskDocument),
		CreatedAt:    now.Add(time.Duration(len(tasks)+2) * time.Nanosecond),
	}
	tasks = append(tasks, document)

	return tasks
}

// ValidateBrief checks the structural rules of §4.4's InvalidBrief
// sub-reasons. It does not check the dependency graph for cycles (callers
// do that separately with dag.HasCycle once the brief's task ids are known
// to be unique).
func ValidateBrief(brief types.MissionBrief) error {
	if brief.Title == "" {
		return errInvalidBrief("missing title")
	}
	if len(brief.Tasks) == 0 {
		return errInvalidBrief("empty task list")
	}
	seen := make(map[string]bool, len(brief.Tasks))
	for _, t := range brief.Tasks {
		if t.ID == "" {
			return errInvalidBrief("malformed task: missing id")
		}
		if t.Title == "" {
			return errInvalidBrief("malformed task: missing title")
		}
		if seen[t.ID] {
			return errInvalidBrief("duplicate task id: " + t.ID)
		}
		seen[t.ID] = true
	}
	for _, t := range brief.Tasks {
		for _, dep := range t.Dependencies {
			if !seen[dep] {
				return errInvalidBrief("malformed task: unknown dependency " + dep)
			}
		}
	}
	return nil
}

// CyclicDependencies reports whether the brief's user tasks contain a
// dependency cycle, checked before decomposition (decomposition only ever
// adds acyclic fixed edges around the user graph, so checking the user
// graph alone is sufficient).
func CyclicDependencies(brief types.MissionBrief) bool {
	asTasks := make([]*types.Task, 0, len(brief.Tasks))
	for _, u := range brief.Tasks {
		asTasks = append(asTasks, &types.Task{ID: u.ID, Dependencies: u.Dependencies})
	}
	return dag.HasCycle(asTasks)
}
