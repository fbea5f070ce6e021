package handlers

import (
	"context"
	"encoding/json"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"

	"taskforge/planner"
)

func (h *Handlers) createPlanHandler(c rweb.Context) error {
	taskID := c.Request().Param("id")

	taskPlan, err := h.planner.CreateTaskPlan(context.Background(), taskID)
	if err != nil {
		return c.WriteError(err, 500)
	}

	logger.Info("Plan created", "taskId", taskID, "stages", len(taskPlan.Plan.Stages))
	return c.WriteJSON(taskPlan)
}

func (h *Handlers) getPlanHandler(c rweb.Context) error {
	plan, err := h.planner.GetTaskPlan(c.Request().Param("id"))
	if err != nil {
		return c.WriteError(err, 404)
	}
	return c.WriteJSON(plan)
}

func (h *Handlers) updatePlanHandler(c rweb.Context) error {
	var plan planner.Plan
	if err := json.Unmarshal(c.Request().Body(), &plan); err != nil {
		return c.WriteError(serr.Wrap(err, "invalid plan body"), 400)
	}

	taskID := c.Request().Param("id")
	if err := h.planner.UpdateTaskPlan(taskID, &plan); err != nil {
		return c.WriteError(err, 400)
	}
	return c.WriteJSON(&plan)
}

func (h *Handlers) decomposeHandler(c rweb.Context) error {
	taskID := c.Request().Param("id")

	// Plan in the body is optional; the stored plan is used otherwise
	var plan *planner.Plan
	if body := c.Request().Body(); len(body) > 0 {
		var parsed planner.Plan
		if err := json.Unmarshal(body, &parsed); err != nil {
			return c.WriteError(serr.Wrap(err, "invalid plan body"), 400)
		}
		if len(parsed.Stages) > 0 {
			plan = &parsed
		}
	}

	subs, err := h.planner.DecomposeTask(context.Background(), taskID, plan)
	if err != nil {
		return c.WriteError(err, 500)
	}
	return c.WriteJSON(subs)
}

// runPipelineHandler runs the understanding pipeline for a task
func (h *Handlers) runPipelineHandler(c rweb.Context) error {
	taskID := c.Request().Param("id")
	task, err := h.tasks.GetTask(taskID)
	if err != nil {
		return c.WriteError(err, 404)
	}

	input := map[string]interface{}{
		"task": map[string]interface{}{
			"title":       task.Title,
			"description": task.Description,
		},
		"project_id": task.ProjectID,
	}

	pc, err := h.runner.Run(context.Background(), taskID, input)
	if err != nil {
		return c.WriteError(err, 500)
	}
	return c.WriteJSON(pc)
}

func (h *Handlers) getContextHandler(c rweb.Context) error {
	pc, err := h.contexts.Load(c.Request().Param("id"))
	if err != nil {
		return c.WriteError(err, 404)
	}
	return c.WriteJSON(pc)
}
