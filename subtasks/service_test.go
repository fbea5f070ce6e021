package subtasks

import (
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"taskforge/db"
	"taskforge/events"
)

// fakeStore is an in-memory Store for service tests
type fakeStore struct {
	tasks          map[string]*db.Task
	subs           map[string]*db.Subtask
	edges          map[string][]string
	completedCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks: make(map[string]*db.Task),
		subs:  make(map[string]*db.Subtask),
		edges: make(map[string][]string),
	}
}

func (f *fakeStore) addTask(id string) *db.Task {
	task := &db.Task{ID: id, Status: db.TaskStatusInProgress, CreatedAt: time.Now()}
	f.tasks[id] = task
	return task
}

func (f *fakeStore) addSubtask(id, taskID, status string, deps ...string) *db.Subtask {
	sub := &db.Subtask{
		ID: id, TaskID: taskID, Title: id, Status: status,
		SequenceNumber: len(f.listFor(taskID)) + 1,
	}
	f.subs[id] = sub
	if len(deps) > 0 {
		f.edges[id] = deps
	}
	return sub
}

func (f *fakeStore) listFor(taskID string) []*db.Subtask {
	var out []*db.Subtask
	for _, sub := range f.subs {
		if sub.TaskID == taskID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SequenceNumber < out[j].SequenceNumber
	})
	return out
}

func (f *fakeStore) GetTask(taskID string) (*db.Task, error) {
	if task, ok := f.tasks[taskID]; ok {
		return task, nil
	}
	return nil, errors.New("task not found")
}

func (f *fakeStore) MarkTaskCompleted(taskID string) error {
	f.completedCalls++
	task, ok := f.tasks[taskID]
	if !ok {
		return errors.New("task not found")
	}
	if task.Status != db.TaskStatusCompleted {
		task.Status = db.TaskStatusCompleted
		now := time.Now()
		task.CompletedAt = &now
	}
	return nil
}

func (f *fakeStore) GetSubtask(id string) (*db.Subtask, error) {
	if sub, ok := f.subs[id]; ok {
		copied := *sub
		copied.Dependencies = append([]string(nil), f.edges[id]...)
		return &copied, nil
	}
	return nil, errors.New("subtask not found")
}

func (f *fakeStore) ListSubtasks(taskID string) ([]*db.Subtask, error) {
	return f.listFor(taskID), nil
}

func (f *fakeStore) EdgeSet(taskID string) (map[string][]string, error) {
	out := make(map[string][]string)
	for id, deps := range f.edges {
		if sub, ok := f.subs[id]; ok && sub.TaskID == taskID {
			out[id] = append([]string(nil), deps...)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertSubtask(sub *db.Subtask, deps []string) error {
	if sub.ID == "" {
		sub.ID = fmt.Sprintf("sub-%d", len(f.subs)+1)
	}
	if sub.Status == "" {
		sub.Status = db.SubtaskStatusPending
	}
	sub.SequenceNumber = len(f.listFor(sub.TaskID)) + 1
	f.subs[sub.ID] = sub
	if len(deps) > 0 {
		f.edges[sub.ID] = append([]string(nil), deps...)
	}
	return nil
}

func (f *fakeStore) UpdateSubtask(id, title, description string) error {
	sub, ok := f.subs[id]
	if !ok {
		return errors.New("subtask not found")
	}
	sub.Title, sub.Description = title, description
	return nil
}

func (f *fakeStore) SetSubtaskStatus(id, status string) error {
	sub, ok := f.subs[id]
	if !ok {
		return errors.New("subtask not found")
	}
	sub.Status = status
	return nil
}

func (f *fakeStore) DeleteSubtask(id string) error {
	sub, ok := f.subs[id]
	if !ok {
		return errors.New("subtask not found")
	}
	delete(f.subs, id)
	delete(f.edges, id)
	for from, deps := range f.edges {
		var kept []string
		for _, dep := range deps {
			if dep != id {
				kept = append(kept, dep)
			}
		}
		f.edges[from] = kept
	}
	for i, sib := range f.listFor(sub.TaskID) {
		sib.SequenceNumber = i + 1
	}
	return nil
}

func (f *fakeStore) ReplaceDependencies(id string, deps []string) error {
	if _, ok := f.subs[id]; !ok {
		return errors.New("subtask not found")
	}
	f.edges[id] = append([]string(nil), deps...)
	return nil
}

func (f *fakeStore) Resequence(taskID string, ordered []string) error {
	for i, id := range ordered {
		sub, ok := f.subs[id]
		if !ok || sub.TaskID != taskID {
			return errors.New("subtask not found in task")
		}
		sub.SequenceNumber = i + 1
	}
	return nil
}

func newTestService(store *fakeStore) *Service {
	return NewService(store, events.NewBus())
}

// TestChangeStatusRejectsUnmetDependencies tests completion gating:
// a subtask with a non-completed dependency cannot complete
func TestChangeStatusRejectsUnmetDependencies(t *testing.T) {
	store := newFakeStore()
	store.addTask("task-1")
	store.addSubtask("a", "task-1", db.SubtaskStatusCompleted)
	store.addSubtask("b", "task-1", db.SubtaskStatusCompleted)
	store.addSubtask("c", "task-1", db.SubtaskStatusPending, "d")
	store.addSubtask("d", "task-1", db.SubtaskStatusPending)

	svc := newTestService(store)
	_, unmet, err := svc.ChangeStatus("c", db.SubtaskStatusCompleted)

	if err == nil {
		t.Fatal("Expected completion to be rejected")
	}
	var constraint *ConstraintError
	if !errors.As(err, &constraint) {
		t.Fatalf("Expected ConstraintError, got %T", err)
	}
	if len(unmet) != 1 || unmet[0] != "d" {
		t.Errorf("Expected unmet [d], got %v", unmet)
	}
	if store.subs["c"].Status != db.SubtaskStatusPending {
		t.Error("Expected status unchanged after rejection")
	}
}

// TestChangeStatusCompletesWhenDependenciesMet tests the accepting path
func TestChangeStatusCompletesWhenDependenciesMet(t *testing.T) {
	store := newFakeStore()
	store.addTask("task-1")
	store.addSubtask("a", "task-1", db.SubtaskStatusCompleted)
	store.addSubtask("b", "task-1", db.SubtaskStatusPending, "a")

	svc := newTestService(store)
	sub, unmet, err := svc.ChangeStatus("b", db.SubtaskStatusCompleted)
	if err != nil {
		t.Fatalf("Expected completion accepted, got %v (unmet %v)", err, unmet)
	}
	if sub.Status != db.SubtaskStatusCompleted {
		t.Errorf("Expected completed, got %s", sub.Status)
	}
}

// TestAutoCompletionIdempotent tests that completing the last subtask
// completes the parent task, and re-triggering stamps nothing twice
func TestAutoCompletionIdempotent(t *testing.T) {
	store := newFakeStore()
	store.addTask("task-1")
	store.addSubtask("a", "task-1", db.SubtaskStatusCompleted)
	store.addSubtask("b", "task-1", db.SubtaskStatusCompleted)
	store.addSubtask("c", "task-1", db.SubtaskStatusPending)

	svc := newTestService(store)
	if _, _, err := svc.ChangeStatus("c", db.SubtaskStatusCompleted); err != nil {
		t.Fatalf("Completion failed: %v", err)
	}

	task := store.tasks["task-1"]
	if task.Status != db.TaskStatusCompleted {
		t.Errorf("Expected task auto-completed, got %s", task.Status)
	}
	if task.CompletedAt == nil {
		t.Fatal("Expected completed_at set")
	}
	stamped := *task.CompletedAt

	// re-trigger by re-completing an already-completed subtask
	if _, _, err := svc.ChangeStatus("a", db.SubtaskStatusCompleted); err != nil {
		t.Fatalf("Re-trigger failed: %v", err)
	}
	if !task.CompletedAt.Equal(stamped) {
		t.Error("Expected completed_at stamped exactly once")
	}
}

// completionFailStore injects a failure into the parent-task completion
// write to exercise aggregation error propagation
type completionFailStore struct {
	*fakeStore
	completeErr error
}

func (f *completionFailStore) MarkTaskCompleted(taskID string) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	return f.fakeStore.MarkTaskCompleted(taskID)
}

// TestChangeStatusSurfacesAggregationFailure tests that a failing
// parent-task completion write reaches the caller instead of being
// silently logged
func TestChangeStatusSurfacesAggregationFailure(t *testing.T) {
	inner := newFakeStore()
	inner.addTask("task-1")
	inner.addSubtask("a", "task-1", db.SubtaskStatusPending)

	store := &completionFailStore{
		fakeStore:   inner,
		completeErr: errors.New("disk full"),
	}

	svc := NewService(store, events.NewBus())
	_, _, err := svc.ChangeStatus("a", db.SubtaskStatusCompleted)

	if err == nil {
		t.Fatal("Expected aggregation failure to propagate to the caller")
	}
	if err.Error() == "" {
		t.Error("Expected a descriptive error")
	}
	if inner.tasks["task-1"].Status == db.TaskStatusCompleted {
		t.Error("Expected parent task left uncompleted after failed write")
	}
}

// TestReorderRejectsPartialMembership tests all-or-nothing reordering
func TestReorderRejectsPartialMembership(t *testing.T) {
	store := newFakeStore()
	store.addTask("task-1")
	store.addSubtask("a", "task-1", db.SubtaskStatusPending)
	store.addSubtask("b", "task-1", db.SubtaskStatusPending)
	store.addSubtask("c", "task-1", db.SubtaskStatusPending)

	svc := newTestService(store)

	err := svc.Reorder("task-1", []string{"b", "a"})
	var integrity *IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("Expected IntegrityError for partial set, got %v", err)
	}
	if store.subs["a"].SequenceNumber != 1 {
		t.Error("Expected no mutation on rejected reorder")
	}

	if err := svc.Reorder("task-1", []string{"c", "a", "b"}); err != nil {
		t.Fatalf("Full reorder failed: %v", err)
	}
	if store.subs["c"].SequenceNumber != 1 || store.subs["b"].SequenceNumber != 3 {
		t.Error("Expected new sequence applied")
	}
}

// TestReorderRejectsDuplicates tests duplicate ids in the new order
func TestReorderRejectsDuplicates(t *testing.T) {
	store := newFakeStore()
	store.addTask("task-1")
	store.addSubtask("a", "task-1", db.SubtaskStatusPending)
	store.addSubtask("b", "task-1", db.SubtaskStatusPending)

	svc := newTestService(store)
	err := svc.Reorder("task-1", []string{"a", "a"})
	var integrity *IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("Expected IntegrityError for duplicates, got %v", err)
	}
}

// TestReplaceDependenciesRejectsCycle tests bulk replacement: an edge
// closing a cycle rejects the whole call naming the offending id
func TestReplaceDependenciesRejectsCycle(t *testing.T) {
	store := newFakeStore()
	store.addTask("task-1")
	store.addSubtask("a", "task-1", db.SubtaskStatusPending, "b")
	store.addSubtask("b", "task-1", db.SubtaskStatusPending)

	svc := newTestService(store)
	_, err := svc.ReplaceDependencies("b", []string{"a"})

	var constraint *ConstraintError
	if !errors.As(err, &constraint) {
		t.Fatalf("Expected ConstraintError, got %v", err)
	}
	if len(constraint.IDs) != 1 || constraint.IDs[0] != "a" {
		t.Errorf("Expected offending id [a], got %v", constraint.IDs)
	}
	if len(store.edges["b"]) != 0 {
		t.Error("Expected no mutation on rejected replacement")
	}
}

// TestReplaceDependenciesSwapsOwnEdges tests that replacement validates
// against the graph without the subtask's prior edges
func TestReplaceDependenciesSwapsOwnEdges(t *testing.T) {
	store := newFakeStore()
	store.addTask("task-1")
	store.addSubtask("a", "task-1", db.SubtaskStatusPending, "b")
	store.addSubtask("b", "task-1", db.SubtaskStatusPending)
	store.addSubtask("c", "task-1", db.SubtaskStatusPending)

	svc := newTestService(store)
	sub, err := svc.ReplaceDependencies("a", []string{"c"})
	if err != nil {
		t.Fatalf("Replacement failed: %v", err)
	}
	if len(sub.Dependencies) != 1 || sub.Dependencies[0] != "c" {
		t.Errorf("Expected dependencies [c], got %v", sub.Dependencies)
	}
}

// TestCreateRejectsUnknownDependency tests referencing a foreign subtask
func TestCreateRejectsUnknownDependency(t *testing.T) {
	store := newFakeStore()
	store.addTask("task-1")

	svc := newTestService(store)
	_, err := svc.Create("task-1", CreateOptions{
		Title:        "new",
		Dependencies: []string{"ghost"},
	})

	var integrity *IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("Expected IntegrityError, got %v", err)
	}
}

// TestDeleteCascadesEdges tests that deletion drops edges referencing
// the removed subtask
func TestDeleteCascadesEdges(t *testing.T) {
	store := newFakeStore()
	store.addTask("task-1")
	store.addSubtask("a", "task-1", db.SubtaskStatusPending)
	store.addSubtask("b", "task-1", db.SubtaskStatusPending, "a")

	svc := newTestService(store)
	if err := svc.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(store.edges["b"]) != 0 {
		t.Errorf("Expected b's edge to a removed, got %v", store.edges["b"])
	}
	if store.subs["b"].SequenceNumber != 1 {
		t.Error("Expected sequence compacted after delete")
	}
}
