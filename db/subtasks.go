package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rohanthewiz/serr"
)

// Subtask statuses
const (
	SubtaskStatusPending    = "pending"
	SubtaskStatusInProgress = "in_progress"
	SubtaskStatusCompleted  = "completed"
	SubtaskStatusFailed     = "failed"
)

// Subtask is an atomic, independently completable unit from a task's
// decomposition. Dependencies holds the ids of subtasks it depends on.
type Subtask struct {
	ID             string    `json:"id"`
	TaskID         string    `json:"task_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Status         string    `json:"status"`
	SequenceNumber int       `json:"sequence_number"`
	Dependencies   []string  `json:"dependencies"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SubtaskStore handles subtask and dependency-edge persistence.
// Multi-row operations run in a single transaction: either the whole
// write lands or none of it does.
type SubtaskStore struct {
	db *DB
}

// NewSubtaskStore creates a new SubtaskStore
func NewSubtaskStore(db *DB) *SubtaskStore {
	return &SubtaskStore{db: db}
}

// InsertSubtask inserts a subtask at the end of its task's sequence along
// with its dependency edges. Assigns a fresh id when the subtask has none.
func (s *SubtaskStore) InsertSubtask(sub *Subtask, deps []string) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.Status == "" {
		sub.Status = SubtaskStatusPending
	}

	return s.db.Transaction(func(tx *sql.Tx) error {
		if sub.SequenceNumber == 0 {
			var maxSeq sql.NullInt64
			err := tx.QueryRow(
				"SELECT MAX(sequence_number) FROM subtasks WHERE task_id = ?",
				sub.TaskID).Scan(&maxSeq)
			if err != nil {
				return serr.Wrap(err, "failed to read sequence number")
			}
			sub.SequenceNumber = int(maxSeq.Int64) + 1
		}

		_, err := tx.Exec(`
			INSERT INTO subtasks (id, task_id, title, description, status, sequence_number)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sub.ID, sub.TaskID, sub.Title, sub.Description, sub.Status, sub.SequenceNumber)
		if err != nil {
			return serr.Wrap(err, "failed to insert subtask")
		}

		for _, depID := range deps {
			_, err := tx.Exec(`
				INSERT INTO subtask_dependencies (subtask_id, depends_on_subtask_id)
				VALUES (?, ?)`,
				sub.ID, depID)
			if err != nil {
				return serr.Wrap(err, "failed to insert dependency edge")
			}
		}
		sub.Dependencies = append([]string(nil), deps...)
		return nil
	})
}

// GetSubtask retrieves a subtask with its dependency ids
func (s *SubtaskStore) GetSubtask(id string) (*Subtask, error) {
	var sub Subtask
	query := `
		SELECT id, task_id, title, description, status, sequence_number, created_at, updated_at
		FROM subtasks
		WHERE id = ?
	`
	err := s.db.QueryRow(query, id).Scan(
		&sub.ID, &sub.TaskID, &sub.Title, &sub.Description,
		&sub.Status, &sub.SequenceNumber, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, serr.New("subtask not found")
		}
		return nil, serr.Wrap(err, "failed to get subtask")
	}

	rows, err := s.db.Query(
		"SELECT depends_on_subtask_id FROM subtask_dependencies WHERE subtask_id = ? ORDER BY depends_on_subtask_id",
		id)
	if err != nil {
		return nil, serr.Wrap(err, "failed to query dependencies")
	}
	defer rows.Close()

	sub.Dependencies = []string{}
	for rows.Next() {
		var depID string
		if err := rows.Scan(&depID); err != nil {
			return nil, serr.Wrap(err, "failed to scan dependency")
		}
		sub.Dependencies = append(sub.Dependencies, depID)
	}

	return &sub, nil
}

// ListSubtasks retrieves all subtasks of a task in sequence order,
// dependencies populated
func (s *SubtaskStore) ListSubtasks(taskID string) ([]*Subtask, error) {
	query := `
		SELECT id, task_id, title, description, status, sequence_number, created_at, updated_at
		FROM subtasks
		WHERE task_id = ?
		ORDER BY sequence_number
	`
	rows, err := s.db.Query(query, taskID)
	if err != nil {
		return nil, serr.Wrap(err, "failed to query subtasks")
	}
	defer rows.Close()

	var subtasks []*Subtask
	byID := make(map[string]*Subtask)
	for rows.Next() {
		var sub Subtask
		err := rows.Scan(
			&sub.ID, &sub.TaskID, &sub.Title, &sub.Description,
			&sub.Status, &sub.SequenceNumber, &sub.CreatedAt, &sub.UpdatedAt,
		)
		if err != nil {
			return nil, serr.Wrap(err, "failed to scan subtask")
		}
		sub.Dependencies = []string{}
		subtasks = append(subtasks, &sub)
		byID[sub.ID] = &sub
	}

	edges, err := s.EdgeSet(taskID)
	if err != nil {
		return nil, err
	}
	for id, deps := range edges {
		if sub, ok := byID[id]; ok {
			sub.Dependencies = deps
		}
	}

	return subtasks, nil
}

// EdgeSet returns the full depends_on edge set of one task's subtasks
// in a single batched query: subtask id -> ids it depends on.
func (s *SubtaskStore) EdgeSet(taskID string) (map[string][]string, error) {
	query := `
		SELECT d.subtask_id, d.depends_on_subtask_id
		FROM subtask_dependencies d
		JOIN subtasks s ON s.id = d.subtask_id
		WHERE s.task_id = ?
		ORDER BY d.subtask_id, d.depends_on_subtask_id
	`
	rows, err := s.db.Query(query, taskID)
	if err != nil {
		return nil, serr.Wrap(err, "failed to query edge set")
	}
	defer rows.Close()

	edges := make(map[string][]string)
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, serr.Wrap(err, "failed to scan edge")
		}
		edges[from] = append(edges[from], to)
	}
	return edges, nil
}

// UpdateSubtask updates title and description
func (s *SubtaskStore) UpdateSubtask(id, title, description string) error {
	result, err := s.db.Exec(`
		UPDATE subtasks
		SET title = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		title, description, id)
	if err != nil {
		return serr.Wrap(err, "failed to update subtask")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return serr.New("subtask not found")
	}
	return nil
}

// SetSubtaskStatus updates a subtask's status
func (s *SubtaskStore) SetSubtaskStatus(id, status string) error {
	result, err := s.db.Exec(
		"UPDATE subtasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	if err != nil {
		return serr.Wrap(err, "failed to update subtask status")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return serr.New("subtask not found")
	}
	return nil
}

// DeleteSubtask removes a subtask, cascades its dependency edges in both
// directions, and compacts the remaining sequence numbers to 1..N.
func (s *SubtaskStore) DeleteSubtask(id string) error {
	return s.db.Transaction(func(tx *sql.Tx) error {
		var taskID string
		err := tx.QueryRow("SELECT task_id FROM subtasks WHERE id = ?", id).Scan(&taskID)
		if err != nil {
			if err == sql.ErrNoRows {
				return serr.New("subtask not found")
			}
			return serr.Wrap(err, "failed to look up subtask")
		}

		_, err = tx.Exec(
			"DELETE FROM subtask_dependencies WHERE subtask_id = ? OR depends_on_subtask_id = ?",
			id, id)
		if err != nil {
			return serr.Wrap(err, "failed to delete dependency edges")
		}

		_, err = tx.Exec("DELETE FROM subtasks WHERE id = ?", id)
		if err != nil {
			return serr.Wrap(err, "failed to delete subtask")
		}

		return compactSequence(tx, taskID)
	})
}

// ReplaceDependencies deletes all of a subtask's outgoing edges and
// inserts the given set, atomically.
func (s *SubtaskStore) ReplaceDependencies(id string, deps []string) error {
	return s.db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec("DELETE FROM subtask_dependencies WHERE subtask_id = ?", id)
		if err != nil {
			return serr.Wrap(err, "failed to clear dependencies")
		}
		for _, depID := range deps {
			_, err := tx.Exec(`
				INSERT INTO subtask_dependencies (subtask_id, depends_on_subtask_id)
				VALUES (?, ?)`,
				id, depID)
			if err != nil {
				return serr.Wrap(err, "failed to insert dependency edge")
			}
		}
		return nil
	})
}

// Resequence assigns positions 1..N to the given subtask ids, in order.
// The caller is responsible for membership validation; this is the
// atomic write half of reordering.
func (s *SubtaskStore) Resequence(taskID string, ordered []string) error {
	return s.db.Transaction(func(tx *sql.Tx) error {
		for i, id := range ordered {
			result, err := tx.Exec(`
				UPDATE subtasks
				SET sequence_number = ?, updated_at = CURRENT_TIMESTAMP
				WHERE id = ? AND task_id = ?`,
				i+1, id, taskID)
			if err != nil {
				return serr.Wrap(err, "failed to resequence subtask")
			}
			if n, _ := result.RowsAffected(); n == 0 {
				return serr.New("subtask not found in task")
			}
		}
		return nil
	})
}

// compactSequence renumbers a task's subtasks densely 1..N preserving order
func compactSequence(tx *sql.Tx, taskID string) error {
	rows, err := tx.Query(
		"SELECT id FROM subtasks WHERE task_id = ? ORDER BY sequence_number", taskID)
	if err != nil {
		return serr.Wrap(err, "failed to query subtasks for compaction")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return serr.Wrap(err, "failed to scan subtask id")
		}
		ids = append(ids, id)
	}
	rows.Close()

	for i, id := range ids {
		_, err := tx.Exec("UPDATE subtasks SET sequence_number = ? WHERE id = ?", i+1, id)
		if err != nil {
			return serr.Wrap(err, "failed to compact sequence")
		}
	}
	return nil
}
