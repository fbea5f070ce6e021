package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rohanthewiz/serr"
)

// Plan blob keys
const (
	PlanKeyCurrent = "current"
)

// PlanRecord is a stored plan blob keyed by (task_id, key)
type PlanRecord struct {
	TaskID    string          `json:"task_id"`
	Key       string          `json:"key"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PlanStore handles plan blob persistence
type PlanStore struct {
	db *DB
}

// NewPlanStore creates a new PlanStore
func NewPlanStore(db *DB) *PlanStore {
	return &PlanStore{db: db}
}

// SavePlan upserts a plan blob for a task
func (s *PlanStore) SavePlan(taskID, key string, content json.RawMessage) error {
	query := `
		INSERT INTO task_plans (task_id, key, content)
		VALUES (?, ?, ?)
		ON CONFLICT (task_id, key) DO UPDATE SET
			content = excluded.content,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := s.db.Exec(query, taskID, key, string(content))
	if err != nil {
		return serr.Wrap(err, "failed to save plan")
	}
	return nil
}

// GetPlan retrieves a plan blob for a task
func (s *PlanStore) GetPlan(taskID, key string) (*PlanRecord, error) {
	var rec PlanRecord
	var content string

	query := `
		SELECT task_id, key, content, created_at, updated_at
		FROM task_plans
		WHERE task_id = ? AND key = ?
	`
	err := s.db.QueryRow(query, taskID, key).Scan(
		&rec.TaskID, &rec.Key, &content, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, serr.New("plan not found")
		}
		return nil, serr.Wrap(err, "failed to get plan")
	}

	rec.Content = json.RawMessage(content)
	return &rec, nil
}

// DeletePlan removes a plan blob
func (s *PlanStore) DeletePlan(taskID, key string) error {
	_, err := s.db.Exec("DELETE FROM task_plans WHERE task_id = ? AND key = ?", taskID, key)
	if err != nil {
		return serr.Wrap(err, "failed to delete plan")
	}
	return nil
}
