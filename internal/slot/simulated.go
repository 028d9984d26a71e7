package slot

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// phaseStep is one stretch of the simulated timeline: it runs for a
// proportional share of the total dwell time and ends at endPercent.
type phaseStep struct {
	name       string
	endPercent int
}

// defaultTimeline is the four-step phase timeline every simulated task runs
// through, whatever its task type; each step's dwell time is proportional to
// its share of total progress.
var defaultTimeline = []phaseStep{
	{name: "starting", endPercent: 10},
	{name: "working", endPercent: 60},
	{name: "verifying", endPercent: 90},
	{name: "finalizing", endPercent: 100},
}

// SimulatedStrategy synthesizes progress across a fixed phase timeline and
// writes a small output JSON file into the task's workspace subdirectory.
// It stands in for the wezterm/process-spawning backend the teacher uses,
// since this domain has no terminal multiplexer to drive (spec §4.2).
type SimulatedStrategy struct {
	TaskID   string
	Dwell    time.Duration
	FailRate float64 // 0 means never synthetically fail
}

// NewSimulatedStrategy builds a strategy with a total dwell time spread
// across the phase timeline.
func NewSimulatedStrategy(taskID string, totalDwell time.Duration) *SimulatedStrategy {
	return &SimulatedStrategy{TaskID: taskID, Dwell: totalDwell}
}

func (s *SimulatedStrategy) Execute(ctx context.Context, workspacePath string, cb Callbacks) Outcome {
	if cb.OnLog != nil {
		cb.OnLog(fmt.Sprintf("starting simulated execution of task %s", s.TaskID))
	}

	prev := 0
	for _, step := range defaultTimeline {
		stepDuration := s.Dwell * time.Duration(step.endPercent-prev) / 100
		select {
		case <-ctx.Done():
			return Outcome{Success: false, Reason: "cancelled"}
		case <-time.After(stepDuration):
		}

		if cb.OnLog != nil {
			cb.OnLog(fmt.Sprintf("phase %s reached", step.name))
		}
		if cb.OnProgress != nil {
			cb.OnProgress(step.endPercent)
		}
		prev = step.endPercent
	}

	if s.FailRate > 0 && rand.Float64() < s.FailRate {
		return Outcome{Success: false, Reason: "synthetic failure injected"}
	}

	if err := s.writeOutput(workspacePath); err != nil {
		return Outcome{Success: false, Reason: "failed to write output: " + err.Error()}
	}

	return Outcome{Success: true}
}

func (s *SimulatedStrategy) writeOutput(workspacePath string) error {
	outDir := filepath.Join(workspacePath, ".aegis")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	output := map[string]any{
		"taskId":      s.TaskID,
		"completedAt": time.Now(),
	}
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, s.TaskID+".output.json"), data, 0644)
}
