// Package pipeline implements the step-execution framework: a uniform
// step contract with schema-validated inputs and outputs, a per-task
// accumulating context, defensive parsing of model output, and a
// sequential runner with graceful degradation.
package pipeline

import (
	"context"
	"time"
)

// StepMetadata is the static, advisory contract of one step type.
// Timeout and MaxRetries are declared for an external scheduler to
// enforce; steps do not self-enforce them.
type StepMetadata struct {
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	Timeout           time.Duration `json:"timeout"`
	MaxRetries        int           `json:"max_retries"`
	RequiresLLM       bool          `json:"requires_llm"`
	RequiresGit       bool          `json:"requires_git"`
	RequiresExecution bool          `json:"requires_execution"`
	InputSchema       string        `json:"-"`
	OutputSchema      string        `json:"-"`
}

// StepResult is the outcome of one step execution. Payload carries the
// step-specific output, validated against the step's output schema.
type StepResult struct {
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	Warnings  []string               `json:"warnings"`
	Summary   string                 `json:"summary"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Step is one stage of the pipeline. Execute must not panic or return a
// Go error: every internal failure becomes a StepResult with
// Success=false so the runner can always branch on the result.
type Step interface {
	Metadata() StepMetadata
	Execute(ctx context.Context, taskID string, input map[string]interface{}, pc *Context) *StepResult
}

// newResult starts a successful result stamped now. Steps fill in
// payload and warnings, or downgrade it via fail.
func newResult(summary string) *StepResult {
	return &StepResult{
		Success:   true,
		Warnings:  []string{},
		Summary:   summary,
		Timestamp: time.Now(),
	}
}

// fail converts a result into a failure with the given message
func (r *StepResult) fail(message string) *StepResult {
	r.Success = false
	r.Error = message
	return r
}

// warn appends a degradation warning
func (r *StepResult) warn(message string) {
	r.Warnings = append(r.Warnings, message)
}

// finish stamps the elapsed duration
func (r *StepResult) finish(started time.Time) *StepResult {
	r.Duration = time.Since(started)
	return r
}
