package planner

import (
	"context"
	"encoding/json"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"

	"taskforge/db"
	"taskforge/events"
	"taskforge/llm"
	"taskforge/pipeline"
	"taskforge/prompts"
)

// Event types emitted by the planner
const (
	EventPlanCreated    = "plan_created"
	EventPlanUpdated    = "plan_updated"
	EventTaskDecomposed = "task_decomposed"
)

// Store is the persistence surface the planner writes through
type Store interface {
	GetTask(taskID string) (*db.Task, error)
	SetTaskEstimate(taskID string, hours float64) error
	InsertSubtask(sub *db.Subtask, deps []string) error
	SavePlan(taskID, key string, content json.RawMessage) error
	GetPlan(taskID, key string) (*db.PlanRecord, error)
}

// Planner generates weighted plans for tasks and decomposes them into
// subtasks. Plan generation requires the text-generation capability;
// decomposition degrades stage by stage.
type Planner struct {
	store    Store
	llm      *llm.Client
	prompts  *prompts.Store
	contexts pipeline.ContextStore
	bus      *events.Bus
}

// NewPlanner creates a planner. contexts may be nil when no pipeline
// context is available to draw analysis from.
func NewPlanner(store Store, client *llm.Client, promptStore *prompts.Store,
	contexts pipeline.ContextStore, bus *events.Bus) *Planner {
	return &Planner{store: store, llm: client, prompts: promptStore, contexts: contexts, bus: bus}
}

// TaskPlan bundles a task's plan with its decomposed subtasks
type TaskPlan struct {
	TaskID   string        `json:"task_id"`
	Plan     *Plan         `json:"plan"`
	Subtasks []*db.Subtask `json:"subtasks"`
}

// CreateTaskPlan generates a plan for a task, enriches and persists it,
// then decomposes it into subtasks with dependency edges
func (p *Planner) CreateTaskPlan(ctx context.Context, taskID string) (*TaskPlan, error) {
	task, err := p.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	plan, err := p.generatePlan(ctx, task)
	if err != nil {
		return nil, err
	}

	if err := p.savePlan(taskID, plan); err != nil {
		return nil, err
	}
	p.publish(EventPlanCreated, taskID, plan)

	subtasks, err := p.persistDecomposition(ctx, task, plan)
	if err != nil {
		return nil, err
	}

	if plan.EstimatedHours > 0 {
		if err := p.store.SetTaskEstimate(taskID, plan.EstimatedHours); err != nil {
			logger.LogErr(err, "failed to store task estimate", "taskId", taskID)
		}
	}

	return &TaskPlan{TaskID: taskID, Plan: plan, Subtasks: subtasks}, nil
}

// DecomposeTask decomposes a plan into persisted subtasks. When plan is
// nil the task's stored plan is used.
func (p *Planner) DecomposeTask(ctx context.Context, taskID string, plan *Plan) ([]*db.Subtask, error) {
	task, err := p.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	if plan == nil {
		plan, err = p.GetTaskPlan(taskID)
		if err != nil {
			return nil, err
		}
	} else {
		Enrich(plan)
	}

	return p.persistDecomposition(ctx, task, plan)
}

// GetTaskPlan loads a task's stored plan
func (p *Planner) GetTaskPlan(taskID string) (*Plan, error) {
	rec, err := p.store.GetPlan(taskID, db.PlanKeyCurrent)
	if err != nil {
		return nil, err
	}
	var plan Plan
	if err := json.Unmarshal(rec.Content, &plan); err != nil {
		return nil, serr.Wrap(err, "failed to unmarshal stored plan")
	}
	return &plan, nil
}

// UpdateTaskPlan enriches and stores a caller-supplied plan
func (p *Planner) UpdateTaskPlan(taskID string, plan *Plan) error {
	if _, err := p.store.GetTask(taskID); err != nil {
		return err
	}
	Enrich(plan)
	if err := p.savePlan(taskID, plan); err != nil {
		return err
	}
	p.publish(EventPlanUpdated, taskID, plan)
	return nil
}

// generatePlan prompts the model and parses a plan, enriching the
// result. Non-JSON output degrades to a single-stage plan derived from
// the task itself.
func (p *Planner) generatePlan(ctx context.Context, task *db.Task) (*Plan, error) {
	if !p.llm.Available() {
		return nil, llm.ErrUnavailable
	}

	prompt, err := p.prompts.Render("plan_generation", map[string]string{
		"Title":       task.Title,
		"Description": task.Description,
		"Analysis":    p.analysisFor(task.ID),
	})
	if err != nil {
		return nil, err
	}

	output, err := p.llm.Generate(ctx, prompt, llm.GenerateOptions{ResponseFormat: "json"})
	if err != nil {
		return nil, serr.Wrap(err, "plan generation call failed")
	}

	plan := p.parsePlan(output, task)
	Enrich(plan)
	return plan, nil
}

// parsePlan is best-effort: strict JSON first, otherwise a minimal
// single-stage plan covering the whole task
func (p *Planner) parsePlan(output string, task *db.Task) *Plan {
	if candidate, ok := pipeline.ExtractJSONObject(output); ok {
		var plan Plan
		if err := json.Unmarshal([]byte(candidate), &plan); err == nil && len(plan.Stages) > 0 {
			return &plan
		}
	}

	logger.Info("Plan output unusable, falling back to single-stage plan", "taskId", task.ID)
	return &Plan{
		Title:       task.Title,
		Description: task.Description,
		Stages: []*Stage{{
			Name:        "Implement " + task.Title,
			Description: task.Description,
		}},
	}
}

// analysisFor pulls the task understanding payload out of the pipeline
// context, if one exists
func (p *Planner) analysisFor(taskID string) string {
	if p.contexts == nil {
		return ""
	}
	pc, err := p.contexts.Load(taskID)
	if err != nil {
		return ""
	}
	result := pc.Result(pipeline.StepNameTaskUnderstanding)
	if result == nil || !result.Success || result.Payload == nil {
		return ""
	}
	data, err := json.Marshal(result.Payload)
	if err != nil {
		return ""
	}
	return string(data)
}

// persistDecomposition generates subtasks for each stage and writes them
// with their dependency edges
func (p *Planner) persistDecomposition(ctx context.Context, task *db.Task, plan *Plan) ([]*db.Subtask, error) {
	subtasks, edges, err := p.decomposeStages(ctx, task, plan)
	if err != nil {
		return nil, err
	}

	for _, sub := range subtasks {
		if err := p.store.InsertSubtask(sub, edges[sub.ID]); err != nil {
			return nil, serr.Wrap(err, "failed to persist subtask", "taskId", task.ID)
		}
	}

	p.publish(EventTaskDecomposed, task.ID, map[string]interface{}{
		"subtask_count": len(subtasks),
	})
	logger.Info("Task decomposed", "taskId", task.ID, "subtasks", len(subtasks))
	return subtasks, nil
}

func (p *Planner) savePlan(taskID string, plan *Plan) error {
	content, err := json.Marshal(plan)
	if err != nil {
		return serr.Wrap(err, "failed to marshal plan")
	}
	return p.store.SavePlan(taskID, db.PlanKeyCurrent, content)
}

func (p *Planner) publish(eventType, taskID string, payload interface{}) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(events.Event{Type: eventType, TaskID: taskID, Payload: payload})
}
