package db

import (
	"database/sql"
	"fmt"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations list all database migrations in order
var migrations = []Migration{
	{
		Version:     1,
		Description: "Create initial schema",
		SQL: `
			-- Top-level tasks entering the pipeline
			CREATE TABLE IF NOT EXISTS tasks (
				id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				priority TEXT NOT NULL DEFAULT 'medium',
				status TEXT NOT NULL DEFAULT 'pending'
					CHECK (status IN ('pending', 'in_progress', 'completed', 'blocked', 'failed')),
				estimated_hours DOUBLE,
				actual_hours DOUBLE,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				completed_at TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);

			-- Atomic units produced by decomposition
			CREATE TABLE IF NOT EXISTS subtasks (
				id TEXT PRIMARY KEY,
				task_id TEXT NOT NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'pending'
					CHECK (status IN ('pending', 'in_progress', 'completed', 'failed')),
				sequence_number INTEGER NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (task_id) REFERENCES tasks(id)
			);
			CREATE INDEX IF NOT EXISTS idx_subtasks_task ON subtasks(task_id);

			-- Directed depends_on edges between subtasks of one task
			CREATE TABLE IF NOT EXISTS subtask_dependencies (
				subtask_id TEXT NOT NULL,
				depends_on_subtask_id TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (subtask_id, depends_on_subtask_id)
			);

			-- Plan blobs keyed by (task_id, key)
			CREATE TABLE IF NOT EXISTS task_plans (
				task_id TEXT NOT NULL,
				key TEXT NOT NULL,
				content JSON NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (task_id, key)
			);

			-- Per-task pipeline context, retained for resume/audit
			CREATE TABLE IF NOT EXISTS task_contexts (
				task_id TEXT PRIMARY KEY,
				current_state TEXT NOT NULL DEFAULT 'created',
				history JSON NOT NULL,
				step_results JSON NOT NULL,
				data JSON NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			-- Create migrations table
			CREATE TABLE IF NOT EXISTS migrations (
				version INTEGER PRIMARY KEY,
				description TEXT NOT NULL,
				applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
}

// Migrate runs all pending database migrations
func (db *DB) Migrate() error {
	// Ensure migrations table exists before querying it
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return serr.Wrap(err, "failed to create migrations table")
	}

	current, err := db.currentVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		logger.Info("Applying migration", "version", fmt.Sprintf("%d", m.Version), "description", m.Description)

		err := db.Transaction(func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.SQL); err != nil {
				return serr.Wrap(err, fmt.Sprintf("migration %d failed", m.Version))
			}
			_, err := tx.Exec("INSERT INTO migrations (version, description) VALUES (?, ?)",
				m.Version, m.Description)
			if err != nil {
				return serr.Wrap(err, "failed to record migration")
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// currentVersion returns the highest applied migration version
func (db *DB) currentVersion() (int, error) {
	var version sql.NullInt64
	err := db.conn.QueryRow("SELECT MAX(version) FROM migrations").Scan(&version)
	if err != nil {
		return 0, serr.Wrap(err, "failed to read migration version")
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
