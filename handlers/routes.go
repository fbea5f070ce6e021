// Package handlers exposes the HTTP surface: task and subtask CRUD,
// planning and pipeline endpoints, an SSE event stream, and a small
// status dashboard.
package handlers

import (
	"github.com/rohanthewiz/rweb"

	"taskforge/config"
	"taskforge/db"
	"taskforge/events"
	"taskforge/pipeline"
	"taskforge/planner"
	"taskforge/subtasks"
)

// Handlers bundles the services the HTTP layer dispatches into
type Handlers struct {
	cfg      *config.Config
	tasks    *db.TaskStore
	subtasks *subtasks.Service
	planner  *planner.Planner
	runner   *pipeline.Runner
	contexts pipeline.ContextStore
	bus      *events.Bus
}

// New creates the handler set
func New(cfg *config.Config, tasks *db.TaskStore, subtaskSvc *subtasks.Service,
	plannerSvc *planner.Planner, runner *pipeline.Runner,
	contexts pipeline.ContextStore, bus *events.Bus) *Handlers {
	return &Handlers{
		cfg:      cfg,
		tasks:    tasks,
		subtasks: subtaskSvc,
		planner:  plannerSvc,
		runner:   runner,
		contexts: contexts,
		bus:      bus,
	}
}

// SetupRoutes configures all HTTP routes for the server
func (h *Handlers) SetupRoutes(s *rweb.Server) {
	// Root endpoint - serves the status dashboard
	s.Get("/", h.dashboardHandler)

	// App info
	s.Get("/api/app", h.appInfoHandler)

	// Task endpoints
	s.Get("/api/task", h.listTasksHandler)
	s.Post("/api/task", h.createTaskHandler)
	s.Get("/api/task/:id", h.getTaskHandler)
	s.Post("/api/task/:id/status", h.setTaskStatusHandler)
	s.Get("/api/task/:id/prioritized", h.prioritizedTasksHandler)

	// Planning and pipeline endpoints
	s.Post("/api/task/:id/plan", h.createPlanHandler)
	s.Get("/api/task/:id/plan", h.getPlanHandler)
	s.Put("/api/task/:id/plan", h.updatePlanHandler)
	s.Post("/api/task/:id/decompose", h.decomposeHandler)
	s.Post("/api/task/:id/pipeline", h.runPipelineHandler)
	s.Get("/api/task/:id/context", h.getContextHandler)

	// Subtask endpoints
	s.Get("/api/task/:id/subtask", h.listSubtasksHandler)
	s.Post("/api/task/:id/subtask", h.createSubtaskHandler)
	s.Post("/api/task/:id/subtask/reorder", h.reorderSubtasksHandler)
	s.Put("/api/subtask/:id", h.updateSubtaskHandler)
	s.Delete("/api/subtask/:id", h.deleteSubtaskHandler)
	s.Post("/api/subtask/:id/status", h.subtaskStatusHandler)
	s.Put("/api/subtask/:id/dependencies", h.replaceDependenciesHandler)

	// SSE endpoint for streaming domain events
	s.Get("/events", h.eventsHandler)
}

// appInfoHandler returns application information
func (h *Handlers) appInfoHandler(c rweb.Context) error {
	return c.WriteJSON(map[string]interface{}{
		"version": "0.1.0",
		"status":  "ok",
		"model":   h.cfg.Model,
	})
}
