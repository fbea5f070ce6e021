package handlers

import (
	"encoding/json"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"

	"taskforge/db"
	"taskforge/planner"
)

// TaskRequest is the body for task creation
type TaskRequest struct {
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority,omitempty"`
}

func (h *Handlers) listTasksHandler(c rweb.Context) error {
	tasks, err := h.tasks.ListTasks(c.Request().QueryParam("project_id"))
	if err != nil {
		return c.WriteError(serr.Wrap(err, "failed to list tasks"), 500)
	}
	return c.WriteJSON(tasks)
}

func (h *Handlers) createTaskHandler(c rweb.Context) error {
	var req TaskRequest
	if err := json.Unmarshal(c.Request().Body(), &req); err != nil {
		return c.WriteError(serr.Wrap(err, "invalid request body"), 400)
	}

	task, err := h.tasks.CreateTask(db.TaskOptions{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return c.WriteError(err, 400)
	}

	logger.F("Created task %s", task.ID)
	return c.WriteJSON(task)
}

func (h *Handlers) getTaskHandler(c rweb.Context) error {
	task, err := h.tasks.GetTask(c.Request().Param("id"))
	if err != nil {
		return c.WriteError(err, 404)
	}
	return c.WriteJSON(task)
}

func (h *Handlers) setTaskStatusHandler(c rweb.Context) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(c.Request().Body(), &req); err != nil {
		return c.WriteError(serr.Wrap(err, "invalid request body"), 400)
	}

	taskID := c.Request().Param("id")
	if err := h.tasks.SetTaskStatus(taskID, req.Status); err != nil {
		return c.WriteError(err, 400)
	}

	task, err := h.tasks.GetTask(taskID)
	if err != nil {
		return c.WriteError(err, 404)
	}
	return c.WriteJSON(task)
}

// prioritizedTasksHandler scores and orders the tasks of the same
// project as the given task
func (h *Handlers) prioritizedTasksHandler(c rweb.Context) error {
	task, err := h.tasks.GetTask(c.Request().Param("id"))
	if err != nil {
		return c.WriteError(err, 404)
	}

	tasks, err := h.tasks.ListTasks(task.ProjectID)
	if err != nil {
		return c.WriteError(serr.Wrap(err, "failed to list tasks"), 500)
	}
	return c.WriteJSON(planner.Prioritize(tasks, time.Now()))
}
