package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rohanthewiz/serr"
)

// ContextRecord is the persisted form of a pipeline context. History,
// step results, and scratch data are stored as JSON blobs so the schema
// does not chase the pipeline's shapes.
type ContextRecord struct {
	TaskID       string          `json:"task_id"`
	CurrentState string          `json:"current_state"`
	History      json.RawMessage `json:"history"`
	StepResults  json.RawMessage `json:"step_results"`
	Data         json.RawMessage `json:"data"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ContextStore handles pipeline context persistence
type ContextStore struct {
	db *DB
}

// NewContextStore creates a new ContextStore
func NewContextStore(db *DB) *ContextStore {
	return &ContextStore{db: db}
}

// SaveContext upserts a task's pipeline context
func (s *ContextStore) SaveContext(rec *ContextRecord) error {
	query := `
		INSERT INTO task_contexts (task_id, current_state, history, step_results, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (task_id) DO UPDATE SET
			current_state = excluded.current_state,
			history = excluded.history,
			step_results = excluded.step_results,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := s.db.Exec(query, rec.TaskID, rec.CurrentState,
		string(rec.History), string(rec.StepResults), string(rec.Data))
	if err != nil {
		return serr.Wrap(err, "failed to save context")
	}
	return nil
}

// LoadContext retrieves a task's pipeline context
func (s *ContextStore) LoadContext(taskID string) (*ContextRecord, error) {
	var rec ContextRecord
	var history, stepResults, data string

	query := `
		SELECT task_id, current_state, history, step_results, data, created_at, updated_at
		FROM task_contexts
		WHERE task_id = ?
	`
	err := s.db.QueryRow(query, taskID).Scan(
		&rec.TaskID, &rec.CurrentState, &history, &stepResults, &data,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, serr.New("context not found")
		}
		return nil, serr.Wrap(err, "failed to load context")
	}

	rec.History = json.RawMessage(history)
	rec.StepResults = json.RawMessage(stepResults)
	rec.Data = json.RawMessage(data)
	return &rec, nil
}
