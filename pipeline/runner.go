package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rohanthewiz/logger"

	"taskforge/events"
	"taskforge/validation"
)

// Runner executes a task's steps strictly in sequence. Each step reads
// prior results from the context and records its own; the runner
// validates inputs and outputs against step schemas, persists the
// context after every step, and stops at the first failed result.
type Runner struct {
	steps     []Step
	validator *validation.Manager
	contexts  ContextStore
	bus       *events.Bus
}

// NewRunner creates a pipeline runner over an ordered step list
func NewRunner(steps []Step, validator *validation.Manager, contexts ContextStore, bus *events.Bus) *Runner {
	return &Runner{steps: steps, validator: validator, contexts: contexts, bus: bus}
}

// Run executes the pipeline for a task. An existing context is resumed;
// re-run steps overwrite their prior entries. The returned context holds
// one result per executed step regardless of outcome.
func (r *Runner) Run(ctx context.Context, taskID string, input map[string]interface{}) (*Context, error) {
	pc, err := r.contexts.Load(taskID)
	if err != nil {
		pc = NewContext(taskID)
	}

	total := len(r.steps)
	for i, step := range r.steps {
		meta := step.Metadata()
		pc.SetState("running:"+meta.Name, fmt.Sprintf("executing step %d of %d", i+1, total))
		r.notifyProgress(taskID, i*100/total, "starting "+meta.Name)

		result := r.runStep(ctx, step, taskID, input, pc)
		pc.RecordResult(meta.Name, result)

		if err := r.contexts.Save(pc); err != nil {
			logger.LogErr(err, "failed to persist pipeline context", "taskId", taskID)
		}

		if !result.Success {
			pc.SetState("failed:"+meta.Name, result.Error)
			r.notifyProgress(taskID, i*100/total, meta.Name+" failed")
			if err := r.contexts.Save(pc); err != nil {
				logger.LogErr(err, "failed to persist pipeline context", "taskId", taskID)
			}
			logger.Info("Pipeline stopped on failed step",
				"taskId", taskID, "step", meta.Name, "error", result.Error)
			return pc, nil
		}

		r.notifyProgress(taskID, (i+1)*100/total, meta.Name+" completed")
	}

	pc.SetState("completed", "all steps completed")
	if err := r.contexts.Save(pc); err != nil {
		logger.LogErr(err, "failed to persist pipeline context", "taskId", taskID)
	}
	r.notifyProgress(taskID, 100, "pipeline completed")
	return pc, nil
}

// runStep executes one step with schema gates on both sides and a panic
// barrier: nothing a step does escapes as anything but a StepResult.
func (r *Runner) runStep(ctx context.Context, step Step, taskID string, input map[string]interface{}, pc *Context) (result *StepResult) {
	meta := step.Metadata()
	started := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			logger.LogErr(fmt.Errorf("%v", rec), "step panicked", "step", meta.Name)
			result = newResult(meta.Name).fail(fmt.Sprintf("step panicked: %v", rec)).finish(started)
		}
	}()

	if check := r.validateAgainst(meta.InputSchema, input); !check.Valid {
		res := newResult(meta.Name).fail("input validation failed")
		res.Warnings = check.Errors
		return res.finish(started)
	}

	result = step.Execute(ctx, taskID, input, pc)
	if result == nil {
		return newResult(meta.Name).fail("step returned no result").finish(started)
	}
	if result.Duration == 0 {
		result.finish(started)
	}

	if result.Success && result.Payload != nil {
		if check := r.validateAgainst(meta.OutputSchema, result.Payload); !check.Valid {
			result.fail("output validation failed")
			result.Warnings = append(result.Warnings, check.Errors...)
		}
	}
	return result
}

// validateAgainst is a no-op valid result when no schema is declared
func (r *Runner) validateAgainst(schema string, data interface{}) validation.Result {
	if schema == "" || r.validator == nil {
		return validation.Result{Valid: true, Errors: []string{}}
	}
	return r.validator.Validate(data, schema)
}

// notifyProgress is fire-and-forget; the bus drops on slow consumers
func (r *Runner) notifyProgress(taskID string, percent int, message string) {
	if r.bus == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	r.bus.Publish(events.Event{
		Type:   "pipeline_progress",
		TaskID: taskID,
		Payload: map[string]interface{}{
			"percent": percent,
			"message": message,
		},
	})
}
