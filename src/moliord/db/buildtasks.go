package db

import (
	"database/sql"
	"fmt"
)

// BuildTaskRepository handles the buildtask audit row attached to a Build
// while it is being driven by a handler, deleted once that handler's work
// concludes or is reconciled away at startup.
type BuildTaskRepository struct {
	db *Database
}

// NewBuildTaskRepository creates a new buildtask repository.
func NewBuildTaskRepository(db *Database) *BuildTaskRepository {
	return &BuildTaskRepository{db: db}
}

// Create records that the given task is now driving buildID.
func (r *BuildTaskRepository) Create(buildID int64, task string) error {
	_, err := r.db.DB().Exec("INSERT INTO build_tasks (build_id, task) VALUES (?, ?)", buildID, task)
	if err != nil {
		return fmt.Errorf("failed to record buildtask for build %d: %w", buildID, err)
	}
	return nil
}

// GetByBuildID returns the buildtask row for buildID, or nil if none exists.
func (r *BuildTaskRepository) GetByBuildID(buildID int64) (*BuildTaskRow, error) {
	row := r.db.DB().QueryRow("SELECT id, build_id, task, created_at FROM build_tasks WHERE build_id = ?", buildID)
	t := &BuildTaskRow{}
	err := row.Scan(&t.ID, &t.BuildID, &t.Task, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load buildtask for build %d: %w", buildID, err)
	}
	return t, nil
}

// DeleteByBuildID removes the buildtask row for buildID, if any.
func (r *BuildTaskRepository) DeleteByBuildID(buildID int64) error {
	_, err := r.db.DB().Exec("DELETE FROM build_tasks WHERE build_id = ?", buildID)
	if err != nil {
		return fmt.Errorf("failed to delete buildtask for build %d: %w", buildID, err)
	}
	return nil
}
