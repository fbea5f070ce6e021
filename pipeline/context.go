package pipeline

import (
	"encoding/json"
	"time"

	"github.com/rohanthewiz/serr"

	"taskforge/db"
)

// HistoryEntry records one state transition of a task's pipeline
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state"`
	Message   string    `json:"message"`
}

// Context is the per-task accumulating record threading outputs between
// steps. Each step reads prior StepResults and writes its own; re-running
// a step overwrites its prior entry.
type Context struct {
	TaskID       string                 `json:"task_id"`
	CurrentState string                 `json:"current_state"`
	History      []HistoryEntry         `json:"history"`
	StepResults  map[string]*StepResult `json:"step_results"`
	Data         map[string]interface{} `json:"data"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// NewContext creates a fresh context for a task entering the pipeline
func NewContext(taskID string) *Context {
	now := time.Now()
	return &Context{
		TaskID:       taskID,
		CurrentState: "created",
		History:      []HistoryEntry{{Timestamp: now, State: "created", Message: "pipeline context created"}},
		StepResults:  make(map[string]*StepResult),
		Data:         make(map[string]interface{}),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SetState transitions the context and appends to history
func (c *Context) SetState(state, message string) {
	c.CurrentState = state
	c.History = append(c.History, HistoryEntry{
		Timestamp: time.Now(),
		State:     state,
		Message:   message,
	})
	c.UpdatedAt = time.Now()
}

// RecordResult stores a step's result, replacing any prior entry for
// the same step name
func (c *Context) RecordResult(stepName string, result *StepResult) {
	c.StepResults[stepName] = result
	c.UpdatedAt = time.Now()
}

// Result returns a prior step's result, or nil
func (c *Context) Result(stepName string) *StepResult {
	return c.StepResults[stepName]
}

// ContextStore persists pipeline contexts
type ContextStore interface {
	Save(c *Context) error
	Load(taskID string) (*Context, error)
}

// DBContextStore adapts the database context store to the pipeline,
// serializing history, results, and scratch data as JSON blobs.
type DBContextStore struct {
	store *db.ContextStore
}

// NewDBContextStore wraps a database context store
func NewDBContextStore(store *db.ContextStore) *DBContextStore {
	return &DBContextStore{store: store}
}

// Save persists a context
func (s *DBContextStore) Save(c *Context) error {
	history, err := json.Marshal(c.History)
	if err != nil {
		return serr.Wrap(err, "failed to marshal context history")
	}
	results, err := json.Marshal(c.StepResults)
	if err != nil {
		return serr.Wrap(err, "failed to marshal step results")
	}
	data, err := json.Marshal(c.Data)
	if err != nil {
		return serr.Wrap(err, "failed to marshal context data")
	}

	return s.store.SaveContext(&db.ContextRecord{
		TaskID:       c.TaskID,
		CurrentState: c.CurrentState,
		History:      history,
		StepResults:  results,
		Data:         data,
	})
}

// Load retrieves a task's context
func (s *DBContextStore) Load(taskID string) (*Context, error) {
	rec, err := s.store.LoadContext(taskID)
	if err != nil {
		return nil, err
	}

	c := &Context{
		TaskID:       rec.TaskID,
		CurrentState: rec.CurrentState,
		StepResults:  make(map[string]*StepResult),
		Data:         make(map[string]interface{}),
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
	if err := json.Unmarshal(rec.History, &c.History); err != nil {
		return nil, serr.Wrap(err, "failed to unmarshal context history")
	}
	if err := json.Unmarshal(rec.StepResults, &c.StepResults); err != nil {
		return nil, serr.Wrap(err, "failed to unmarshal step results")
	}
	if err := json.Unmarshal(rec.Data, &c.Data); err != nil {
		return nil, serr.Wrap(err, "failed to unmarshal context data")
	}
	return c, nil
}
