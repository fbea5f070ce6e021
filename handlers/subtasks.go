package handlers

import (
	"encoding/json"
	"errors"

	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"

	"taskforge/subtasks"
)

// SubtaskRequest is the body for subtask creation and update
type SubtaskRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies,omitempty"`
}

func (h *Handlers) listSubtasksHandler(c rweb.Context) error {
	subs, err := h.subtasks.List(c.Request().Param("id"))
	if err != nil {
		return c.WriteError(err, 500)
	}
	return c.WriteJSON(subs)
}

func (h *Handlers) createSubtaskHandler(c rweb.Context) error {
	var req SubtaskRequest
	if err := json.Unmarshal(c.Request().Body(), &req); err != nil {
		return c.WriteError(serr.Wrap(err, "invalid request body"), 400)
	}

	sub, err := h.subtasks.Create(c.Request().Param("id"), subtasks.CreateOptions{
		Title:        req.Title,
		Description:  req.Description,
		Dependencies: req.Dependencies,
	})
	if err != nil {
		return c.WriteError(err, graphErrorStatus(err))
	}
	return c.WriteJSON(sub)
}

func (h *Handlers) updateSubtaskHandler(c rweb.Context) error {
	var req SubtaskRequest
	if err := json.Unmarshal(c.Request().Body(), &req); err != nil {
		return c.WriteError(serr.Wrap(err, "invalid request body"), 400)
	}

	sub, err := h.subtasks.Update(c.Request().Param("id"), req.Title, req.Description)
	if err != nil {
		return c.WriteError(err, graphErrorStatus(err))
	}
	return c.WriteJSON(sub)
}

func (h *Handlers) deleteSubtaskHandler(c rweb.Context) error {
	if err := h.subtasks.Delete(c.Request().Param("id")); err != nil {
		return c.WriteError(err, graphErrorStatus(err))
	}
	return c.WriteJSON(map[string]bool{"success": true})
}

func (h *Handlers) subtaskStatusHandler(c rweb.Context) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(c.Request().Body(), &req); err != nil {
		return c.WriteError(serr.Wrap(err, "invalid request body"), 400)
	}

	sub, unmet, err := h.subtasks.ChangeStatus(c.Request().Param("id"), req.Status)
	if err != nil {
		var constraint *subtasks.ConstraintError
		if errors.As(err, &constraint) {
			c.Response().SetStatus(409)
			return c.WriteJSON(map[string]interface{}{
				"error":             constraint.Reason,
				"unmet_dependencies": unmet,
			})
		}
		return c.WriteError(err, graphErrorStatus(err))
	}
	return c.WriteJSON(sub)
}

func (h *Handlers) reorderSubtasksHandler(c rweb.Context) error {
	var req struct {
		Order []string `json:"order"`
	}
	if err := json.Unmarshal(c.Request().Body(), &req); err != nil {
		return c.WriteError(serr.Wrap(err, "invalid request body"), 400)
	}

	taskID := c.Request().Param("id")
	if err := h.subtasks.Reorder(taskID, req.Order); err != nil {
		return c.WriteError(err, graphErrorStatus(err))
	}

	subs, err := h.subtasks.List(taskID)
	if err != nil {
		return c.WriteError(err, 500)
	}
	return c.WriteJSON(subs)
}

func (h *Handlers) replaceDependenciesHandler(c rweb.Context) error {
	var req struct {
		Dependencies []string `json:"dependencies"`
	}
	if err := json.Unmarshal(c.Request().Body(), &req); err != nil {
		return c.WriteError(serr.Wrap(err, "invalid request body"), 400)
	}

	sub, err := h.subtasks.ReplaceDependencies(c.Request().Param("id"), req.Dependencies)
	if err != nil {
		return c.WriteError(err, graphErrorStatus(err))
	}
	return c.WriteJSON(sub)
}

// graphErrorStatus maps service errors to HTTP statuses: constraint
// violations conflict, integrity failures are bad requests
func graphErrorStatus(err error) int {
	var constraint *subtasks.ConstraintError
	if errors.As(err, &constraint) {
		return 409
	}
	var integrity *subtasks.IntegrityError
	if errors.As(err, &integrity) {
		return 400
	}
	return 500
}
