package pipeline

import (
	"context"
	"testing"

	"taskforge/events"
	"taskforge/validation"
)

// memContextStore is an in-memory ContextStore for tests
type memContextStore struct {
	contexts map[string]*Context
}

func newMemContextStore() *memContextStore {
	return &memContextStore{contexts: make(map[string]*Context)}
}

func (m *memContextStore) Save(c *Context) error {
	m.contexts[c.TaskID] = c
	return nil
}

func (m *memContextStore) Load(taskID string) (*Context, error) {
	if c, ok := m.contexts[taskID]; ok {
		return c, nil
	}
	return nil, errNotFound
}

var errNotFound = &notFoundError{}

type notFoundError struct{}

func (e *notFoundError) Error() string { return "context not found" }

// fakeStep runs a supplied function under a given name
type fakeStep struct {
	name string
	run  func(pc *Context) *StepResult
}

func (s *fakeStep) Metadata() StepMetadata {
	return StepMetadata{Name: s.name}
}

func (s *fakeStep) Execute(ctx context.Context, taskID string, input map[string]interface{}, pc *Context) *StepResult {
	return s.run(pc)
}

// TestRunnerRecordsOneResultPerStep tests the happy path: every step
// executes once and records exactly one result
func TestRunnerRecordsOneResultPerStep(t *testing.T) {
	store := newMemContextStore()
	runner := NewRunner([]Step{
		&fakeStep{name: "first", run: func(pc *Context) *StepResult {
			return newResult("first done")
		}},
		&fakeStep{name: "second", run: func(pc *Context) *StepResult {
			// second step sees the first step's result
			if pc.Result("first") == nil {
				t.Error("Expected first step's result in context")
			}
			return newResult("second done")
		}},
	}, validation.NewManager(false), store, events.NewBus())

	pc, err := runner.Run(context.Background(), "task-1", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(pc.StepResults) != 2 {
		t.Errorf("Expected 2 step results, got %d", len(pc.StepResults))
	}
	if pc.CurrentState != "completed" {
		t.Errorf("Expected completed state, got %s", pc.CurrentState)
	}
}

// TestRunnerStopsOnFailure tests that a failed step halts the pipeline
// with its result preserved
func TestRunnerStopsOnFailure(t *testing.T) {
	ran := false
	runner := NewRunner([]Step{
		&fakeStep{name: "failing", run: func(pc *Context) *StepResult {
			return newResult("failing").fail("model call failed")
		}},
		&fakeStep{name: "after", run: func(pc *Context) *StepResult {
			ran = true
			return newResult("after")
		}},
	}, validation.NewManager(false), newMemContextStore(), events.NewBus())

	pc, err := runner.Run(context.Background(), "task-2", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if ran {
		t.Error("Step after a failure should not run")
	}
	result := pc.Result("failing")
	if result == nil || result.Success {
		t.Error("Expected recorded failed result")
	}
	if pc.CurrentState != "failed:failing" {
		t.Errorf("Expected failed state, got %s", pc.CurrentState)
	}
}

// TestRunnerRecoversPanic tests the panic barrier: a panicking step
// becomes a failed result, not a crash
func TestRunnerRecoversPanic(t *testing.T) {
	runner := NewRunner([]Step{
		&fakeStep{name: "panicky", run: func(pc *Context) *StepResult {
			panic("boom")
		}},
	}, validation.NewManager(false), newMemContextStore(), events.NewBus())

	pc, err := runner.Run(context.Background(), "task-3", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	result := pc.Result("panicky")
	if result == nil {
		t.Fatal("Expected a result for the panicked step")
	}
	if result.Success {
		t.Error("Expected panicked step to be recorded as failed")
	}
}

// TestRunnerValidatesOutput tests that a payload violating the output
// schema downgrades the result to failed
func TestRunnerValidatesOutput(t *testing.T) {
	schema := `{"type":"object","required":["answer"],"properties":{"answer":{"type":"string"}}}`
	step := &schemaStep{schema: schema}

	runner := NewRunner([]Step{step}, validation.NewManager(false),
		newMemContextStore(), events.NewBus())

	pc, _ := runner.Run(context.Background(), "task-4", nil)
	result := pc.Result("schema-step")
	if result != nil && !result.Success {
		return // downgraded as expected
	}
	t.Error("Expected output validation to fail the step")
}

type schemaStep struct {
	schema string
}

func (s *schemaStep) Metadata() StepMetadata {
	return StepMetadata{Name: "schema-step", OutputSchema: s.schema}
}

func (s *schemaStep) Execute(ctx context.Context, taskID string, input map[string]interface{}, pc *Context) *StepResult {
	result := newResult("schema-step")
	result.Payload = map[string]interface{}{"wrong_field": 1}
	return result
}

// TestRerunOverwritesResult tests idempotent re-runs: a second run
// replaces the prior result for the same step
func TestRerunOverwritesResult(t *testing.T) {
	store := newMemContextStore()
	calls := 0
	steps := []Step{
		&fakeStep{name: "only", run: func(pc *Context) *StepResult {
			calls++
			r := newResult("only")
			r.Summary = "run"
			return r
		}},
	}
	runner := NewRunner(steps, validation.NewManager(false), store, events.NewBus())

	if _, err := runner.Run(context.Background(), "task-5", nil); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	pc, err := runner.Run(context.Background(), "task-5", nil)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if calls != 2 {
		t.Errorf("Expected 2 executions, got %d", calls)
	}
	if len(pc.StepResults) != 1 {
		t.Errorf("Expected a single result entry after rerun, got %d", len(pc.StepResults))
	}
}
