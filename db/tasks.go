package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rohanthewiz/serr"
)

// Task statuses
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusBlocked    = "blocked"
	TaskStatusFailed     = "failed"
)

// Task priorities
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Task is a top-level unit of work entering the pipeline
type Task struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"project_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// TaskStore handles task persistence
type TaskStore struct {
	db *DB
}

// NewTaskStore creates a new TaskStore
func NewTaskStore(db *DB) *TaskStore {
	return &TaskStore{db: db}
}

// TaskOptions holds the caller-supplied fields for task creation
type TaskOptions struct {
	ProjectID   string
	Title       string
	Description string
	Priority    string
}

// CreateTask inserts a new task in pending status
func (s *TaskStore) CreateTask(opts TaskOptions) (*Task, error) {
	if opts.Title == "" && opts.Description == "" {
		return nil, serr.New("task requires a title or description")
	}
	if opts.Priority == "" {
		opts.Priority = PriorityMedium
	}

	task := &Task{
		ID:          uuid.New().String(),
		ProjectID:   opts.ProjectID,
		Title:       opts.Title,
		Description: opts.Description,
		Priority:    opts.Priority,
		Status:      TaskStatusPending,
	}

	query := `
		INSERT INTO tasks (id, project_id, title, description, priority, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, task.ID, task.ProjectID, task.Title, task.Description,
		task.Priority, task.Status)
	if err != nil {
		return nil, serr.Wrap(err, "failed to create task")
	}

	return s.GetTask(task.ID)
}

// GetTask retrieves a task by ID
func (s *TaskStore) GetTask(taskID string) (*Task, error) {
	var task Task
	var estimated, actual sql.NullFloat64
	var completedAt sql.NullTime

	query := `
		SELECT id, project_id, title, description, priority, status,
		       estimated_hours, actual_hours, created_at, updated_at, completed_at
		FROM tasks
		WHERE id = ?
	`
	err := s.db.QueryRow(query, taskID).Scan(
		&task.ID, &task.ProjectID, &task.Title, &task.Description,
		&task.Priority, &task.Status,
		&estimated, &actual, &task.CreatedAt, &task.UpdatedAt, &completedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, serr.New("task not found")
		}
		return nil, serr.Wrap(err, "failed to get task")
	}

	if estimated.Valid {
		task.EstimatedHours = &estimated.Float64
	}
	if actual.Valid {
		task.ActualHours = &actual.Float64
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}

	return &task, nil
}

// ListTasks retrieves tasks, optionally filtered by project
func (s *TaskStore) ListTasks(projectID string) ([]*Task, error) {
	query := `
		SELECT id, project_id, title, description, priority, status,
		       estimated_hours, actual_hours, created_at, updated_at, completed_at
		FROM tasks
	`
	args := []interface{}{}
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, serr.Wrap(err, "failed to query tasks")
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		var task Task
		var estimated, actual sql.NullFloat64
		var completedAt sql.NullTime

		err := rows.Scan(
			&task.ID, &task.ProjectID, &task.Title, &task.Description,
			&task.Priority, &task.Status,
			&estimated, &actual, &task.CreatedAt, &task.UpdatedAt, &completedAt,
		)
		if err != nil {
			return nil, serr.Wrap(err, "failed to scan task")
		}

		if estimated.Valid {
			task.EstimatedHours = &estimated.Float64
		}
		if actual.Valid {
			task.ActualHours = &actual.Float64
		}
		if completedAt.Valid {
			task.CompletedAt = &completedAt.Time
		}

		tasks = append(tasks, &task)
	}

	return tasks, nil
}

// SetTaskStatus updates a task's status
func (s *TaskStore) SetTaskStatus(taskID, status string) error {
	result, err := s.db.Exec(
		"UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, taskID)
	if err != nil {
		return serr.Wrap(err, "failed to update task status")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return serr.New("task not found")
	}
	return nil
}

// SetTaskEstimate updates a task's estimated hours
func (s *TaskStore) SetTaskEstimate(taskID string, hours float64) error {
	_, err := s.db.Exec(
		"UPDATE tasks SET estimated_hours = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		hours, taskID)
	if err != nil {
		return serr.Wrap(err, "failed to update task estimate")
	}
	return nil
}

// MarkTaskCompleted transitions a task to completed and stamps completed_at
// exactly once. A no-op when the task is already completed.
func (s *TaskStore) MarkTaskCompleted(taskID string) error {
	query := `
		UPDATE tasks
		SET status = ?, completed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status != ?
	`
	_, err := s.db.Exec(query, TaskStatusCompleted, taskID, TaskStatusCompleted)
	if err != nil {
		return serr.Wrap(err, "failed to complete task")
	}
	return nil
}
