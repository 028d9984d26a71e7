package mission

import (
	"testing"

	"github.com/cuemby/aegis/internal/dag"
	"github.com/cuemby/aegis/internal/types"
)

func findByTitle(tasks []*types.Task, title string) *types.Task {
	for _, t := range tasks {
		if t.Title == title {
			return t
		}
	}
	return nil
}

func TestDecomposeTranslatesUserDependenciesToImplementIDs(t *testing.T) {
	brief := types.MissionBrief{
		Title: "diamond",
		Tasks: []types.UserTask{
			{ID: "t1", Title: "first"},
			{ID: "t2", Title: "second", Dependencies: []string{"t1"}},
		},
	}

	tasks := Decompose(brief)

	t1Impl := findByTitle(tasks, "Implement: first")
	t2Impl := findByTitle(tasks, "Implement: second")
	if t1Impl == nil || t2Impl == nil {
		t.Fatalf("expected both implement tasks to exist, got %+v", tasks)
	}
	if len(t2Impl.Dependencies) != 1 || t2Impl.Dependencies[0] != t1Impl.ID {
		t.Fatalf("expected second's dependency to resolve to first's generated id %q, got %v", t1Impl.ID, t2Impl.Dependencies)
	}

	// The decomposed graph must actually validate: every dependency id must
	// reference a real task id in the set, not a raw brief-level user id.
	if _, err := dag.Build(tasks); err != nil {
		t.Fatalf("dag.Build() error = %v", err)
	}
}

func TestDecomposeFallsBackToScaffoldWhenNoUserDependencies(t *testing.T) {
	brief := types.MissionBrief{
		Title: "flat",
		Tasks: []types.UserTask{
			{ID: "t1", Title: "only task"},
		},
	}

	tasks := Decompose(brief)
	scaffold := findByTitle(tasks, "Scaffold")
	impl := findByTitle(tasks, "Implement: only task")
	if scaffold == nil || impl == nil {
		t.Fatalf("expected scaffold and implement tasks, got %+v", tasks)
	}
	if len(impl.Dependencies) != 1 || impl.Dependencies[0] != scaffold.ID {
		t.Errorf("expected implement task with no user dependencies to depend on scaffold, got %v", impl.Dependencies)
	}
}
