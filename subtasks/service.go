// Package subtasks implements subtask mutations over a task's dependency
// graph: creation, deletion, status changes gated by dependency
// completion, all-or-nothing reordering, and bulk dependency replacement
// with cycle rejection. Every accepted mutation emits a domain event.
package subtasks

import (
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"

	"taskforge/db"
	"taskforge/events"
	"taskforge/graph"
)

// Event types emitted on accepted mutations
const (
	EventSubtaskCreated      = "subtask_created"
	EventSubtaskUpdated      = "subtask_updated"
	EventSubtaskDeleted      = "subtask_deleted"
	EventStatusChanged       = "subtask_status_changed"
	EventSubtasksReordered   = "subtasks_reordered"
	EventDependenciesChanged = "subtask_dependencies_changed"
	EventTaskCompleted       = "task_completed"
)

// Store is the persistence surface the service mutates through.
// Implemented by the db task and subtask stores.
type Store interface {
	GetTask(taskID string) (*db.Task, error)
	MarkTaskCompleted(taskID string) error

	GetSubtask(id string) (*db.Subtask, error)
	ListSubtasks(taskID string) ([]*db.Subtask, error)
	EdgeSet(taskID string) (map[string][]string, error)
	InsertSubtask(sub *db.Subtask, deps []string) error
	UpdateSubtask(id, title, description string) error
	SetSubtaskStatus(id, status string) error
	DeleteSubtask(id string) error
	ReplaceDependencies(id string, deps []string) error
	Resequence(taskID string, ordered []string) error
}

// Service coordinates subtask mutations: it reads the task's current
// graph, validates the mutation in memory, and hands the store a single
// atomic write. Checks are advisory at write time; the store's
// transactions keep each accepted write all-or-nothing.
type Service struct {
	store Store
	bus   *events.Bus
}

// NewService creates a subtask service
func NewService(store Store, bus *events.Bus) *Service {
	return &Service{store: store, bus: bus}
}

// CreateOptions holds caller-supplied fields for subtask creation
type CreateOptions struct {
	Title        string
	Description  string
	Dependencies []string
}

// Create inserts a subtask at the end of the task's sequence. Declared
// dependencies must reference existing subtasks of the same task.
func (s *Service) Create(taskID string, opts CreateOptions) (*db.Subtask, error) {
	if opts.Title == "" {
		return nil, serr.New("subtask requires a title")
	}
	if _, err := s.store.GetTask(taskID); err != nil {
		return nil, &IntegrityError{Reason: "unknown task " + taskID}
	}

	siblings, err := s.store.ListSubtasks(taskID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(siblings))
	for _, sib := range siblings {
		known[sib.ID] = true
	}
	for _, depID := range opts.Dependencies {
		if !known[depID] {
			return nil, &IntegrityError{Reason: "unknown dependency subtask " + depID}
		}
	}

	sub := &db.Subtask{
		TaskID:      taskID,
		Title:       opts.Title,
		Description: opts.Description,
	}
	if err := s.store.InsertSubtask(sub, opts.Dependencies); err != nil {
		return nil, err
	}

	s.publish(EventSubtaskCreated, taskID, sub)
	return sub, nil
}

// List returns a task's subtasks in sequence order
func (s *Service) List(taskID string) ([]*db.Subtask, error) {
	return s.store.ListSubtasks(taskID)
}

// Update changes a subtask's title and description
func (s *Service) Update(id, title, description string) (*db.Subtask, error) {
	if err := s.store.UpdateSubtask(id, title, description); err != nil {
		return nil, err
	}
	sub, err := s.store.GetSubtask(id)
	if err != nil {
		return nil, err
	}
	s.publish(EventSubtaskUpdated, sub.TaskID, sub)
	return sub, nil
}

// Delete removes a subtask. The store cascades its dependency edges and
// compacts the remaining sequence numbers.
func (s *Service) Delete(id string) error {
	sub, err := s.store.GetSubtask(id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSubtask(id); err != nil {
		return err
	}
	s.publish(EventSubtaskDeleted, sub.TaskID, map[string]string{"id": id})
	return nil
}

// ChangeStatus transitions a subtask. Completion is gated: the subtask
// may become completed only when every dependency is already completed;
// otherwise the status is unchanged and the unmet ids are returned.
// Completing the task's last open subtask auto-completes the parent task.
func (s *Service) ChangeStatus(id, status string) (*db.Subtask, []string, error) {
	switch status {
	case db.SubtaskStatusPending, db.SubtaskStatusInProgress,
		db.SubtaskStatusCompleted, db.SubtaskStatusFailed:
	default:
		return nil, nil, serr.New("invalid subtask status: " + status)
	}

	sub, err := s.store.GetSubtask(id)
	if err != nil {
		return nil, nil, err
	}

	if status == db.SubtaskStatusCompleted {
		siblings, edges, err := s.loadGraphInputs(sub.TaskID)
		if err != nil {
			return nil, nil, err
		}
		completed := make(map[string]bool, len(siblings))
		for _, sib := range siblings {
			completed[sib.ID] = sib.Status == db.SubtaskStatusCompleted
		}

		g := graph.New(idsOf(siblings), edges)
		unmet := g.Unmet(id, func(depID string) bool { return completed[depID] })
		if len(unmet) > 0 {
			return nil, unmet, &ConstraintError{Reason: "unmet dependencies", IDs: unmet}
		}
	}

	if err := s.store.SetSubtaskStatus(id, status); err != nil {
		return nil, nil, err
	}
	sub.Status = status
	s.publish(EventStatusChanged, sub.TaskID, sub)

	if status == db.SubtaskStatusCompleted {
		if err := s.aggregateCompletion(sub.TaskID); err != nil {
			return nil, nil, serr.Wrap(err, "completion aggregation failed", "taskId", sub.TaskID)
		}
	}

	return sub, nil, nil
}

// Reorder applies a full new sequence to a task's subtasks. The ordered
// ids must be exactly the task's current membership; partial or foreign
// sets are rejected with no mutation.
func (s *Service) Reorder(taskID string, ordered []string) error {
	current, err := s.store.ListSubtasks(taskID)
	if err != nil {
		return err
	}
	if len(ordered) != len(current) {
		return &IntegrityError{Reason: "reorder must include every subtask of the task"}
	}
	existing := make(map[string]bool, len(current))
	for _, sub := range current {
		existing[sub.ID] = true
	}
	seen := make(map[string]bool, len(ordered))
	for _, id := range ordered {
		if !existing[id] {
			return &IntegrityError{Reason: "unknown subtask in reorder: " + id}
		}
		if seen[id] {
			return &IntegrityError{Reason: "duplicate subtask in reorder: " + id}
		}
		seen[id] = true
	}

	if err := s.store.Resequence(taskID, ordered); err != nil {
		return err
	}
	s.publish(EventSubtasksReordered, taskID, map[string][]string{"order": ordered})
	return nil
}

// ReplaceDependencies swaps a subtask's dependency set wholesale. Each
// new edge is checked against the graph as it would stand after the
// replacement; any edge that would close a cycle rejects the whole call.
func (s *Service) ReplaceDependencies(id string, deps []string) (*db.Subtask, error) {
	sub, err := s.store.GetSubtask(id)
	if err != nil {
		return nil, err
	}

	siblings, edges, err := s.loadGraphInputs(sub.TaskID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(siblings))
	for _, sib := range siblings {
		known[sib.ID] = true
	}

	// Validate against the graph with this subtask's edges removed,
	// since the replacement discards them first.
	delete(edges, id)
	g := graph.New(idsOf(siblings), edges)

	seen := make(map[string]bool, len(deps))
	for _, depID := range deps {
		if !known[depID] {
			return nil, &IntegrityError{Reason: "unknown dependency subtask " + depID}
		}
		if seen[depID] {
			return nil, &IntegrityError{Reason: "duplicate dependency " + depID}
		}
		seen[depID] = true
		if g.WouldCycle(id, depID) {
			return nil, &ConstraintError{Reason: "dependency would create a cycle", IDs: []string{depID}}
		}
	}

	if err := s.store.ReplaceDependencies(id, deps); err != nil {
		return nil, err
	}
	sub.Dependencies = append([]string(nil), deps...)
	s.publish(EventDependenciesChanged, sub.TaskID, sub)
	return sub, nil
}

// aggregateCompletion completes the parent task once every subtask is
// completed. MarkTaskCompleted is a no-op on an already-completed task,
// so repeated triggers are harmless.
func (s *Service) aggregateCompletion(taskID string) error {
	siblings, err := s.store.ListSubtasks(taskID)
	if err != nil {
		return err
	}
	if len(siblings) == 0 {
		return nil
	}
	for _, sib := range siblings {
		if sib.Status != db.SubtaskStatusCompleted {
			return nil
		}
	}

	task, err := s.store.GetTask(taskID)
	if err != nil {
		return err
	}
	alreadyCompleted := task.Status == db.TaskStatusCompleted

	if err := s.store.MarkTaskCompleted(taskID); err != nil {
		return err
	}
	if !alreadyCompleted {
		logger.Info("Task auto-completed", "taskId", taskID)
		s.publish(EventTaskCompleted, taskID, map[string]string{"task_id": taskID})
	}
	return nil
}

// loadGraphInputs reads a task's subtasks and full edge set
func (s *Service) loadGraphInputs(taskID string) ([]*db.Subtask, map[string][]string, error) {
	siblings, err := s.store.ListSubtasks(taskID)
	if err != nil {
		return nil, nil, err
	}
	edges, err := s.store.EdgeSet(taskID)
	if err != nil {
		return nil, nil, err
	}
	return siblings, edges, nil
}

func (s *Service) publish(eventType, taskID string, payload interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Type: eventType, TaskID: taskID, Payload: payload})
}

func idsOf(subs []*db.Subtask) []string {
	ids := make([]string, len(subs))
	for i, sub := range subs {
		ids[i] = sub.ID
	}
	return ids
}
