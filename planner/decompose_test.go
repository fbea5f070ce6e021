package planner

import (
	"context"
	"testing"

	"taskforge/config"
	"taskforge/db"
	"taskforge/llm"
	"taskforge/prompts"
)

// offlinePlanner builds a planner with no model configured, so
// decomposition falls back to one subtask per stage
func offlinePlanner() *Planner {
	client := llm.NewClient(&config.Config{})
	return NewPlanner(nil, client, prompts.NewStore(""), nil, nil)
}

// TestSubtaskBounds tests the per-stage subtask count buckets
func TestSubtaskBounds(t *testing.T) {
	cases := []struct {
		hours   float64
		wantMax int
	}{
		{2, 3},
		{4, 3},
		{6, 5},
		{8, 5},
		{12, 8},
	}
	for _, tc := range cases {
		_, max := subtaskBounds(tc.hours)
		if max != tc.wantMax {
			t.Errorf("hours=%f: expected max %d, got %d", tc.hours, tc.wantMax, max)
		}
	}
}

// TestDecomposeCrossStageEdges tests point-to-point cross-stage
// sequencing: dependents attach to the last subtask of the prerequisite
// stage only
func TestDecomposeCrossStageEdges(t *testing.T) {
	p := offlinePlanner()
	task := &db.Task{ID: "task-1", Title: "Build feature"}
	plan := &Plan{
		Stages: []*Stage{
			{ID: "stage-1", Name: "Design", EstimatedHours: 4},
			{ID: "stage-2", Name: "Build", EstimatedHours: 4, Dependencies: []string{"stage-1"}},
		},
	}

	subs, edges, err := p.decomposeStages(context.Background(), task, plan)
	if err != nil {
		t.Fatalf("decompose failed: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("Expected 2 fallback subtasks, got %d", len(subs))
	}

	designID := subs[0].ID
	buildID := subs[1].ID
	deps := edges[buildID]
	if len(deps) != 1 || deps[0] != designID {
		t.Errorf("Expected build subtask to depend on [%s], got %v", designID, deps)
	}
	if len(edges[designID]) != 0 {
		t.Errorf("Expected design subtask to have no dependencies, got %v", edges[designID])
	}
}

// TestDecomposeSequenceNumbers tests global sequence numbering across stages
func TestDecomposeSequenceNumbers(t *testing.T) {
	p := offlinePlanner()
	task := &db.Task{ID: "task-2", Title: "Three stages"}
	plan := &Plan{
		Stages: []*Stage{
			{ID: "a", Name: "First"},
			{ID: "b", Name: "Second"},
			{ID: "c", Name: "Third"},
		},
	}

	subs, _, err := p.decomposeStages(context.Background(), task, plan)
	if err != nil {
		t.Fatalf("decompose failed: %v", err)
	}
	for i, sub := range subs {
		if sub.SequenceNumber != i+1 {
			t.Errorf("Expected sequence %d, got %d", i+1, sub.SequenceNumber)
		}
		if sub.Status != db.SubtaskStatusPending {
			t.Errorf("Expected pending status, got %s", sub.Status)
		}
	}
}

// TestDecomposeUnknownStageDependency tests that a dependency on a
// missing stage id contributes no edge
func TestDecomposeUnknownStageDependency(t *testing.T) {
	p := offlinePlanner()
	task := &db.Task{ID: "task-3", Title: "Dangling dep"}
	plan := &Plan{
		Stages: []*Stage{
			{ID: "only", Name: "Only stage", Dependencies: []string{"ghost"}},
		},
	}

	subs, edges, err := p.decomposeStages(context.Background(), task, plan)
	if err != nil {
		t.Fatalf("decompose failed: %v", err)
	}
	if len(edges[subs[0].ID]) != 0 {
		t.Errorf("Expected no edges for dangling stage dependency, got %v", edges[subs[0].ID])
	}
}
