package pipeline

import (
	"context"
	"testing"

	"taskforge/config"
	"taskforge/llm"
	"taskforge/prompts"
)

func offlineUnderstandingStep() *TaskUnderstandingStep {
	return NewTaskUnderstandingStep(llm.NewClient(&config.Config{}), prompts.NewStore(""))
}

// TestTaskUnderstandingRequiresContent tests hard failure on an empty task
func TestTaskUnderstandingRequiresContent(t *testing.T) {
	step := offlineUnderstandingStep()
	result := step.Execute(context.Background(), "task-1", map[string]interface{}{
		"task": map[string]interface{}{"title": "", "description": ""},
	}, NewContext("task-1"))

	if result.Success {
		t.Error("Expected failure for empty task")
	}
}

// TestTaskUnderstandingRequiresModel tests hard failure without the
// text-generation capability
func TestTaskUnderstandingRequiresModel(t *testing.T) {
	step := offlineUnderstandingStep()
	result := step.Execute(context.Background(), "task-1", map[string]interface{}{
		"task": map[string]interface{}{"title": "", "description": "Add CSV export"},
	}, NewContext("task-1"))

	if result.Success {
		t.Error("Expected failure when model is unavailable")
	}
	if !step.Metadata().RequiresLLM {
		t.Error("Expected metadata to mark the model as required")
	}
}

// TestParseFallbackRecoversTaskType tests that non-JSON model output
// still yields the task type through fallback extraction
func TestParseFallbackRecoversTaskType(t *testing.T) {
	step := offlineUnderstandingStep()
	result := newResult("task understanding")

	payload := step.parse("Sure! This looks like an export task.\ntask_type: export\n", result)

	analysis, ok := payload["task_analysis"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected task_analysis object")
	}
	if analysis["task_type"] != "export" {
		t.Errorf("Expected task_type export, got %v", analysis["task_type"])
	}
	if len(result.Warnings) == 0 {
		t.Error("Expected a fallback warning")
	}
	// unmatched fields carry safe defaults
	if analysis["task_description"] != "Unknown" {
		t.Errorf("Expected Unknown description, got %v", analysis["task_description"])
	}
}

// TestParseStrictJSON tests the strict path with nested objects intact
func TestParseStrictJSON(t *testing.T) {
	step := offlineUnderstandingStep()
	result := newResult("task understanding")

	output := `{"task_analysis": {"task_type": "feature", "task_description": "d",
		"requirements": ["r1"]}, "task_classification": {"complexity": "high"}}`
	payload := step.parse(output, result)

	analysis := payload["task_analysis"].(map[string]interface{})
	if analysis["task_type"] != "feature" {
		t.Errorf("Expected feature, got %v", analysis["task_type"])
	}
	classification := payload["task_classification"].(map[string]interface{})
	if classification["complexity"] != "high" {
		t.Errorf("Expected high complexity, got %v", classification["complexity"])
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Expected no warnings on strict parse, got %v", result.Warnings)
	}
}
